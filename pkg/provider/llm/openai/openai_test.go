package openai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	oai "github.com/openai/openai-go"

	"github.com/MrWong99/scribe/pkg/provider/llm"
)

// TestConvertMessage_Roles checks that each supported role maps to the
// matching SDK union member.
func TestConvertMessage_Roles(t *testing.T) {
	sys, err := convertMessage(llm.Message{Role: llm.RoleSystem, Content: "You are helpful."})
	if err != nil || sys.OfSystem == nil {
		t.Fatalf("system: param=%+v err=%v", sys, err)
	}
	user, err := convertMessage(llm.Message{Role: llm.RoleUser, Content: "Hello!"})
	if err != nil || user.OfUser == nil {
		t.Fatalf("user: param=%+v err=%v", user, err)
	}
	asst, err := convertMessage(llm.Message{Role: llm.RoleAssistant, Content: "Hi there!"})
	if err != nil || asst.OfAssistant == nil {
		t.Fatalf("assistant: param=%+v err=%v", asst, err)
	}
	tool, err := convertMessage(llm.Message{Role: llm.RoleTool, Content: `{"ok":true}`, ToolCallID: "call_1"})
	if err != nil || tool.OfTool == nil || tool.OfTool.ToolCallID != "call_1" {
		t.Fatalf("tool: param=%+v err=%v", tool, err)
	}
}

// TestConvertMessage_AssistantToolCalls checks that requested calls are
// replayed on the assistant message.
func TestConvertMessage_AssistantToolCalls(t *testing.T) {
	asst, err := convertMessage(llm.Message{
		Role:      llm.RoleAssistant,
		ToolCalls: []llm.ToolCall{{ID: "call_1", Name: "find_member", Arguments: `{"name":"Alice"}`}},
	})
	if err != nil || asst.OfAssistant == nil {
		t.Fatalf("param=%+v err=%v", asst, err)
	}
	calls := asst.OfAssistant.ToolCalls
	if len(calls) != 1 || calls[0].ID != "call_1" || calls[0].Function.Name != "find_member" {
		t.Errorf("ToolCalls = %+v", calls)
	}
}

// TestConvertMessage_UnknownRole checks that unknown roles return an error.
func TestConvertMessage_UnknownRole(t *testing.T) {
	if _, err := convertMessage(llm.Message{Role: "function", Content: "test"}); err == nil {
		t.Fatal("expected error for unknown role, got nil")
	}
}

// TestModelCapabilities checks structured output support per model family.
func TestModelCapabilities(t *testing.T) {
	tests := []struct {
		model      string
		structured bool
	}{
		{"gpt-4.1-mini", true},
		{"gpt-4o-mini", true},
		{"o3-mini", true},
		{"gpt-4", false},
		{"gpt-3.5-turbo", false},
		{"my-custom-model", true},
	}
	for _, tt := range tests {
		caps := modelCapabilities(tt.model)
		if caps.SupportsStructuredOutput != tt.structured {
			t.Errorf("%s: SupportsStructuredOutput = %v, want %v", tt.model, caps.SupportsStructuredOutput, tt.structured)
		}
		if caps.ContextWindow <= 0 || caps.MaxOutputTokens <= 0 {
			t.Errorf("%s: expected positive limits, got %+v", tt.model, caps)
		}
	}
}

// TestNew_MissingAPIKey ensures constructor rejects an empty API key.
func TestNew_MissingAPIKey(t *testing.T) {
	if _, err := New("", "gpt-4o"); err == nil {
		t.Fatal("expected error for empty API key")
	}
}

// TestNew_DefaultModel checks that an empty model selects the default.
func TestNew_DefaultModel(t *testing.T) {
	p, err := New("sk-test", "", WithOrganization("org-123"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Model() != DefaultModel {
		t.Errorf("Model() = %q, want %q", p.Model(), DefaultModel)
	}
}

type recorder struct {
	mu   sync.Mutex
	body map[string]any
}

func (r *recorder) handler(status int, reply string) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		raw, _ := io.ReadAll(req.Body)
		r.mu.Lock()
		_ = json.Unmarshal(raw, &r.body)
		r.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, reply)
	}
}

const okReply = `{
  "id": "chatcmpl-1",
  "object": "chat.completion",
  "created": 1,
  "model": "gpt-4.1-mini-2025-04-14",
  "choices": [{"index": 0, "finish_reason": "stop", "message": {"role": "assistant", "content": "{\"summary\":\"ok\"}"}}],
  "usage": {"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15}
}`

// TestComplete_StructuredOutput sends a schema-bearing request to a fake
// endpoint and checks both the wire request and the parsed response.
func TestComplete_StructuredOutput(t *testing.T) {
	rec := &recorder{}
	srv := httptest.NewServer(rec.handler(http.StatusOK, okReply))
	defer srv.Close()

	p, err := New("sk-test", "gpt-4.1-mini", WithBaseURL(srv.URL+"/v1/"))
	if err != nil {
		t.Fatal(err)
	}

	resp, err := p.Complete(context.Background(), llm.CompletionRequest{
		SystemPrompt: "extract",
		Messages:     []llm.Message{{Role: llm.RoleUser, Content: "transcript"}},
		Temperature:  0.1,
		ResponseSchema: &llm.ResponseSchema{
			Name:   "meeting_extraction",
			Schema: map[string]any{"type": "object"},
			Strict: true,
		},
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Content != `{"summary":"ok"}` {
		t.Errorf("Content = %q", resp.Content)
	}
	if resp.Usage.TotalTokens != 15 || resp.FinishReason != "stop" {
		t.Errorf("response = %+v", resp)
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	rf, ok := rec.body["response_format"].(map[string]any)
	if !ok {
		t.Fatalf("request has no response_format: %v", rec.body)
	}
	if rf["type"] != "json_schema" {
		t.Errorf("response_format.type = %v, want json_schema", rf["type"])
	}
	js, _ := rf["json_schema"].(map[string]any)
	if js["name"] != "meeting_extraction" || js["strict"] != true {
		t.Errorf("json_schema = %v", js)
	}
	if msgs, _ := rec.body["messages"].([]any); len(msgs) != 2 {
		t.Errorf("messages = %v, want system + user", rec.body["messages"])
	}
}

// TestComplete_APIError checks that HTTP failures surface as *openai.Error
// without SDK-level retries.
func TestComplete_APIError(t *testing.T) {
	var calls int
	var mu sync.Mutex
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls++
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = io.WriteString(w, `{"error":{"message":"slow down","type":"rate_limit_error"}}`)
	}))
	defer srv.Close()

	p, err := New("sk-test", "gpt-4.1-mini", WithBaseURL(srv.URL+"/v1/"))
	if err != nil {
		t.Fatal(err)
	}
	_, err = p.Complete(context.Background(), llm.CompletionRequest{
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "hi"}},
	})
	var apiErr *oai.Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %v, want *openai.Error", err)
	}
	if apiErr.StatusCode != http.StatusTooManyRequests {
		t.Errorf("StatusCode = %d, want 429", apiErr.StatusCode)
	}
	mu.Lock()
	defer mu.Unlock()
	if calls != 1 {
		t.Errorf("server called %d times, want 1", calls)
	}
}

// TestComplete_EmptyChoices checks the empty-response sentinel.
func TestComplete_EmptyChoices(t *testing.T) {
	srv := httptest.NewServer((&recorder{}).handler(http.StatusOK,
		`{"id":"x","object":"chat.completion","created":1,"model":"m","choices":[]}`))
	defer srv.Close()

	p, _ := New("sk-test", "m", WithBaseURL(srv.URL+"/v1/"))
	_, err := p.Complete(context.Background(), llm.CompletionRequest{
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "hi"}},
	})
	if !errors.Is(err, llm.ErrEmptyResponse) {
		t.Errorf("error = %v, want ErrEmptyResponse", err)
	}
}

const toolReply = `{
  "id": "chatcmpl-2",
  "object": "chat.completion",
  "created": 1,
  "model": "gpt-4.1-mini",
  "choices": [{"index": 0, "finish_reason": "tool_calls", "message": {"role": "assistant", "content": null,
    "tool_calls": [{"id": "call_1", "type": "function", "function": {"name": "recent_meetings", "arguments": "{\"limit\":3}"}}]}}],
  "usage": {"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15}
}`

// TestComplete_ToolCalls checks that tool definitions reach the wire and
// requested calls come back on the response.
func TestComplete_ToolCalls(t *testing.T) {
	rec := &recorder{}
	srv := httptest.NewServer(rec.handler(http.StatusOK, toolReply))
	defer srv.Close()

	p, err := New("sk-test", "gpt-4.1-mini", WithBaseURL(srv.URL+"/v1/"))
	if err != nil {
		t.Fatal(err)
	}
	resp, err := p.Complete(context.Background(), llm.CompletionRequest{
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "what happened lately?"}},
		Tools: []llm.ToolDefinition{{
			Name:        "recent_meetings",
			Description: "List recent meetings.",
			Parameters:  map[string]any{"type": "object", "properties": map[string]any{"limit": map[string]any{"type": "integer"}}},
		}},
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if len(resp.ToolCalls) != 1 {
		t.Fatalf("ToolCalls = %+v, want one", resp.ToolCalls)
	}
	if tc := resp.ToolCalls[0]; tc.ID != "call_1" || tc.Name != "recent_meetings" || tc.Arguments != `{"limit":3}` {
		t.Errorf("ToolCalls[0] = %+v", tc)
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	tools, _ := rec.body["tools"].([]any)
	if len(tools) != 1 {
		t.Fatalf("tools = %v, want one", rec.body["tools"])
	}
	fn, _ := tools[0].(map[string]any)["function"].(map[string]any)
	if fn["name"] != "recent_meetings" {
		t.Errorf("tools[0].function = %v", fn)
	}
}
