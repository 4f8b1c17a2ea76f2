package extract_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	anyllmlib "github.com/mozilla-ai/any-llm-go/errors"

	"github.com/MrWong99/scribe/internal/extract"
	"github.com/MrWong99/scribe/internal/record"
	"github.com/MrWong99/scribe/internal/resilience"
	"github.com/MrWong99/scribe/pkg/provider/llm"
	"github.com/MrWong99/scribe/pkg/provider/llm/mock"
	"github.com/MrWong99/scribe/pkg/provider/llm/openai"
)

const validReply = "```json\n" + `{
  "participants": ["Alice Smith", " ", "Carol"],
  "projects": ["Winter Gala"],
  "topics": [{"name": "Sponsorship", "summary": "Discussed new sponsors."}],
  "tasks": [
    {"name": "Book venue", "description": "Call the hall", "deadline": "2024-11-30", "assignees": ["Alice Smith"], "project": "Winter Gala"},
    {"name": "Draft post", "description": "", "deadline": "null", "assignees": [], "project": ""}
  ],
  "summary": "The committee met."
}` + "\n```"

var meta = record.MeetingMeta{
	Name: "weekly_sync",
	Type: record.MeetingEventsSubcommittee,
	Date: time.Date(2024, 11, 1, 0, 0, 0, 0, time.UTC),
}

func zeroBackOff() extract.Option {
	return extract.WithBackOff(func() backoff.BackOff { return &backoff.ZeroBackOff{} })
}

func reply(content string) *llm.CompletionResponse {
	return &llm.CompletionResponse{Content: content, FinishReason: "stop"}
}

func TestExtract_Success(t *testing.T) {
	t.Parallel()

	p := &mock.Provider{CompleteResponse: reply(validReply)}
	o := extract.New(p)

	known := extract.KnownNames{Members: []string{"Alice Smyth"}, Projects: []string{"Winter Gala 2024"}}
	ex, err := o.Extract(context.Background(), "Alice: let's book the hall.", meta, known)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}

	if got := strings.Join(ex.Participants, ","); got != "Alice Smith,Carol" {
		t.Errorf("Participants = %q", got)
	}
	if len(ex.Topics) != 1 || ex.Topics[0].Summary != "Discussed new sponsors." {
		t.Errorf("Topics = %+v", ex.Topics)
	}
	if len(ex.Tasks) != 2 {
		t.Fatalf("Tasks = %+v", ex.Tasks)
	}
	if d := ex.Tasks[0].Deadline; d == nil || d.Format("2006-01-02") != "2024-11-30" {
		t.Errorf("Tasks[0].Deadline = %v", d)
	}
	if ex.Tasks[1].Deadline != nil {
		t.Errorf("Tasks[1].Deadline = %v, want nil", ex.Tasks[1].Deadline)
	}
	if ex.Tasks[0].Project != "Winter Gala" {
		t.Errorf("Tasks[0].Project = %q", ex.Tasks[0].Project)
	}
	if ex.Summary != "The committee met." {
		t.Errorf("Summary = %q", ex.Summary)
	}

	if p.Calls() != 1 {
		t.Fatalf("provider called %d times, want 1", p.Calls())
	}
	req := p.CompleteCalls[0].Req
	if req.ResponseSchema == nil || !req.ResponseSchema.Strict || req.ResponseSchema.Name != extract.SchemaName {
		t.Errorf("ResponseSchema = %+v", req.ResponseSchema)
	}
	if req.Temperature != 0.1 {
		t.Errorf("Temperature = %v, want 0.1", req.Temperature)
	}
	for _, want := range []string{"Events Subcommittee", "weekly_sync", "2024-11-01", "Alice Smyth", "Winter Gala 2024"} {
		if !strings.Contains(req.SystemPrompt, want) {
			t.Errorf("system prompt missing %q", want)
		}
	}
	if !strings.Contains(req.Messages[0].Content, "let's book the hall") {
		t.Errorf("user message = %q", req.Messages[0].Content)
	}
}

func TestExtract_SchemaFailuresAreNotRetried(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		wantOp  string
		wantMsg string
	}{
		{
			name:    "malformed deadline",
			content: `{"participants":[],"projects":[],"topics":[],"tasks":[{"name":"x","description":"","deadline":"next friday","assignees":[],"project":""}],"summary":"s"}`,
			wantOp:  extract.OpValidate,
			wantMsg: "deadline",
		},
		{
			name:    "missing summary",
			content: `{"participants":[],"projects":[],"topics":[],"tasks":[],"summary":"  "}`,
			wantOp:  extract.OpValidate,
			wantMsg: "summary is required",
		},
		{
			name:    "task without name",
			content: `{"participants":[],"projects":[],"topics":[],"tasks":[{"name":"","description":"d","deadline":"","assignees":[],"project":""}],"summary":"s"}`,
			wantOp:  extract.OpValidate,
			wantMsg: "tasks[0].name is required",
		},
		{
			name:    "unknown field",
			content: `{"participants":[],"projects":[],"topics":[],"tasks":[],"summary":"s","mood":"happy"}`,
			wantOp:  extract.OpDecode,
		},
		{
			name:    "prose instead of JSON",
			content: "Here is the summary you asked for.",
			wantOp:  extract.OpDecode,
		},
		{
			name:    "trailing data",
			content: `{"participants":[],"projects":[],"topics":[],"tasks":[],"summary":"s"} {"again":1}`,
			wantOp:  extract.OpDecode,
		},
		{
			name:    "empty reply",
			content: "",
			wantOp:  extract.OpDecode,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			p := &mock.Provider{CompleteResponse: reply(tt.content)}
			_, err := extract.New(p, zeroBackOff()).Extract(context.Background(), "transcript", meta, extract.KnownNames{})

			var oe *extract.OracleError
			if !errors.As(err, &oe) {
				t.Fatalf("error = %v, want *OracleError", err)
			}
			if !errors.Is(err, extract.ErrOracle) {
				t.Error("errors.Is(err, ErrOracle) = false")
			}
			if oe.Op != tt.wantOp || oe.Retryable {
				t.Errorf("Op = %q Retryable = %v, want %q false", oe.Op, oe.Retryable, tt.wantOp)
			}
			if tt.wantMsg != "" && !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error %q does not mention %q", err, tt.wantMsg)
			}
			if p.Calls() != 1 {
				t.Errorf("provider called %d times, want 1", p.Calls())
			}
		})
	}
}

func TestExtract_RetriesTransientFailure(t *testing.T) {
	t.Parallel()

	p := &mock.Provider{Script: []mock.Result{
		{Err: errors.New("connection reset by peer")},
		{Err: llm.ErrEmptyResponse},
		{Response: reply(validReply)},
	}}
	ex, err := extract.New(p, zeroBackOff()).Extract(context.Background(), "t", meta, extract.KnownNames{})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if ex.Summary == "" {
		t.Error("empty summary")
	}
	if p.Calls() != 3 {
		t.Errorf("provider called %d times, want 3", p.Calls())
	}
}

func TestExtract_RetriesExhausted(t *testing.T) {
	t.Parallel()

	p := &mock.Provider{CompleteErr: errors.New("dial tcp: connection refused")}
	_, err := extract.New(p, zeroBackOff(), extract.WithMaxRetries(2)).
		Extract(context.Background(), "t", meta, extract.KnownNames{})

	var oe *extract.OracleError
	if !errors.As(err, &oe) {
		t.Fatalf("error = %v, want *OracleError", err)
	}
	if oe.Op != extract.OpComplete || !oe.Retryable || oe.Attempts != 3 {
		t.Errorf("OracleError = %+v", oe)
	}
	if p.Calls() != 3 {
		t.Errorf("provider called %d times, want 3", p.Calls())
	}
}

func TestExtract_Timeout(t *testing.T) {
	t.Parallel()

	p := &mock.Provider{CompleteFunc: func(ctx context.Context, _ llm.CompletionRequest) (*llm.CompletionResponse, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	_, err := extract.New(p, zeroBackOff(), extract.WithTimeout(20*time.Millisecond)).
		Extract(context.Background(), "t", meta, extract.KnownNames{})

	var oe *extract.OracleError
	if !errors.As(err, &oe) {
		t.Fatalf("error = %v, want *OracleError", err)
	}
	if oe.Op != extract.OpTimeout {
		t.Errorf("Op = %q, want %q", oe.Op, extract.OpTimeout)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("error %v does not wrap DeadlineExceeded", err)
	}
}

func TestExtract_EmptyTranscript(t *testing.T) {
	t.Parallel()

	p := &mock.Provider{}
	_, err := extract.New(p).Extract(context.Background(), " \n ", meta, extract.KnownNames{})
	if !errors.Is(err, extract.ErrOracle) {
		t.Fatalf("error = %v, want ErrOracle", err)
	}
	if p.Calls() != 0 {
		t.Errorf("provider called %d times, want 0", p.Calls())
	}
}

func TestExtract_BreakerIgnoresSchemaFailures(t *testing.T) {
	t.Parallel()

	cb := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		Name: "oracle", MaxFailures: 2, ResetTimeout: time.Hour,
	})
	bad := &mock.Provider{CompleteResponse: reply("not json")}
	o := extract.New(bad, zeroBackOff(), extract.WithBreaker(cb))
	for i := 0; i < 3; i++ {
		_, _ = o.Extract(context.Background(), "t", meta, extract.KnownNames{})
	}
	if cb.State() != resilience.StateClosed {
		t.Fatalf("breaker = %v after schema failures, want closed", cb.State())
	}

	down := &mock.Provider{CompleteErr: errors.New("connection refused")}
	o = extract.New(down, zeroBackOff(), extract.WithBreaker(cb), extract.WithMaxRetries(5))
	_, err := o.Extract(context.Background(), "t", meta, extract.KnownNames{})
	if cb.State() != resilience.StateOpen {
		t.Fatalf("breaker = %v after provider failures, want open", cb.State())
	}
	if !errors.Is(err, resilience.ErrCircuitOpen) {
		t.Errorf("error = %v, want ErrCircuitOpen once the breaker opens", err)
	}
	if down.Calls() != 2 {
		t.Errorf("provider called %d times, want 2 before the breaker opened", down.Calls())
	}
}

func TestExtract_OpenAIStatusCodes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		status    int
		wantCalls int32
		retryable bool
	}{
		{"bad request is permanent", http.StatusBadRequest, 1, false},
		{"rate limit is retried", http.StatusTooManyRequests, 3, true},
		{"server error is retried", http.StatusBadGateway, 3, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var calls atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				_, _ = io.Copy(io.Discard, r.Body)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, `{"error":{"message":"nope","type":"test"}}`)
			}))
			defer srv.Close()

			p, err := openai.New("sk-test", "gpt-4.1-mini", openai.WithBaseURL(srv.URL+"/v1/"))
			if err != nil {
				t.Fatal(err)
			}
			_, err = extract.New(p, zeroBackOff(), extract.WithMaxRetries(2)).
				Extract(context.Background(), "t", meta, extract.KnownNames{})

			var oe *extract.OracleError
			if !errors.As(err, &oe) {
				t.Fatalf("error = %v, want *OracleError", err)
			}
			if oe.Retryable != tt.retryable {
				t.Errorf("Retryable = %v, want %v", oe.Retryable, tt.retryable)
			}
			if got := calls.Load(); got != tt.wantCalls {
				t.Errorf("server called %d times, want %d", got, tt.wantCalls)
			}
		})
	}
}

func TestExtract_AnyLLMErrors(t *testing.T) {
	t.Parallel()

	providerErr := func(code int) error {
		e := anyllmlib.NewProviderError("mistral", errors.New("upstream said no"))
		e.StatusCode = code
		return e
	}
	tests := []struct {
		name      string
		err       error
		wantCalls int
		retryable bool
	}{
		{"authentication is permanent", anyllmlib.NewAuthenticationError("anthropic", errors.New("401 invalid x-api-key")), 1, false},
		{"invalid request is permanent", anyllmlib.NewInvalidRequestError("anthropic", errors.New("400 bad request")), 1, false},
		{"missing key is permanent", anyllmlib.NewMissingAPIKeyError("gemini", "GEMINI_API_KEY"), 1, false},
		{"rate limit is retried", anyllmlib.NewRateLimitError("groq", errors.New("429")), 3, true},
		{"provider client error is permanent", providerErr(http.StatusNotFound), 1, false},
		{"provider server error is retried", providerErr(http.StatusServiceUnavailable), 3, true},
		{"provider error without status is retried", providerErr(0), 3, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			// The any-llm adapter wraps backend errors.
			p := &mock.Provider{CompleteErr: fmt.Errorf("anyllm: completion: %w", tt.err)}
			_, err := extract.New(p, zeroBackOff(), extract.WithMaxRetries(2)).
				Extract(context.Background(), "t", meta, extract.KnownNames{})

			var oe *extract.OracleError
			if !errors.As(err, &oe) {
				t.Fatalf("error = %v, want *OracleError", err)
			}
			if oe.Retryable != tt.retryable {
				t.Errorf("Retryable = %v, want %v", oe.Retryable, tt.retryable)
			}
			if p.Calls() != tt.wantCalls {
				t.Errorf("provider called %d times, want %d", p.Calls(), tt.wantCalls)
			}
		})
	}
}

func TestSchema_Strict(t *testing.T) {
	t.Parallel()

	raw, err := json.Marshal(extract.Schema())
	if err != nil {
		t.Fatal(err)
	}
	var doc struct {
		Type                 string         `json:"type"`
		Required             []string       `json:"required"`
		AdditionalProperties any            `json:"additionalProperties"`
		Properties           map[string]any `json:"properties"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		t.Fatal(err)
	}
	if doc.Type != "object" || doc.AdditionalProperties != false {
		t.Errorf("schema type=%q additionalProperties=%v", doc.Type, doc.AdditionalProperties)
	}
	want := []string{"participants", "projects", "topics", "tasks", "summary"}
	if strings.Join(doc.Required, ",") != strings.Join(want, ",") {
		t.Errorf("required = %v, want %v", doc.Required, want)
	}
	if len(doc.Properties) != len(want) {
		t.Errorf("properties = %v", doc.Properties)
	}
}
