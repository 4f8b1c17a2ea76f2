// Package extract turns a meeting transcript into validated structured data
// by asking an LLM for a JSON document of a fixed shape.
//
// The [Oracle] sends the transcript together with a strict JSON Schema
// (generated from a tagged Go struct) to an [llm.Provider], then decodes and
// validates the reply. Transient provider failures are retried with
// exponential backoff; malformed replies fail immediately. Every failure is
// reported as an [*OracleError].
package extract

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	anyllmlib "github.com/mozilla-ai/any-llm-go"
	oai "github.com/openai/openai-go"

	"github.com/MrWong99/scribe/internal/record"
	"github.com/MrWong99/scribe/internal/resilience"
	"github.com/MrWong99/scribe/pkg/provider/llm"
)

const (
	defaultTimeout     = 120 * time.Second
	defaultMaxRetries  = 3
	defaultTemperature = 0.1
)

// Option is a functional option for configuring an [Oracle].
type Option func(*Oracle)

// WithTimeout bounds a whole [Oracle.Extract] call including retries.
// Zero disables the bound. Default: 120s.
func WithTimeout(d time.Duration) Option {
	return func(o *Oracle) {
		o.timeout = d
	}
}

// WithMaxRetries sets how many times a transient failure is retried.
// Default: 3.
func WithMaxRetries(n int) Option {
	return func(o *Oracle) {
		o.maxRetries = max(n, 0)
	}
}

// WithTemperature sets the sampling temperature. Default: 0.1.
func WithTemperature(t float64) Option {
	return func(o *Oracle) {
		o.temperature = t
	}
}

// WithMaxTokens caps the completion length. Default: provider default.
func WithMaxTokens(n int) Option {
	return func(o *Oracle) {
		o.maxTokens = n
	}
}

// WithBreaker routes provider calls through cb. Only provider errors count
// against it; malformed replies do not.
func WithBreaker(cb *resilience.CircuitBreaker) Option {
	return func(o *Oracle) {
		o.breaker = cb
	}
}

// WithBackOff replaces the retry delay policy. newBackOff is called once per
// Extract.
func WithBackOff(newBackOff func() backoff.BackOff) Option {
	return func(o *Oracle) {
		o.newBackOff = newBackOff
	}
}

// Oracle extracts structured data from transcripts. It is safe for
// concurrent use.
type Oracle struct {
	provider    llm.Provider
	breaker     *resilience.CircuitBreaker
	timeout     time.Duration
	maxRetries  int
	temperature float64
	maxTokens   int
	newBackOff  func() backoff.BackOff
}

// New returns an [Oracle] backed by provider.
func New(provider llm.Provider, opts ...Option) *Oracle {
	o := &Oracle{
		provider:    provider,
		timeout:     defaultTimeout,
		maxRetries:  defaultMaxRetries,
		temperature: defaultTemperature,
		newBackOff:  defaultBackOff,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func defaultBackOff() backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = time.Second
	bo.MaxInterval = 10 * time.Second
	bo.MaxElapsedTime = 0
	return bo
}

// Extract asks the oracle for the structured content of transcript. known
// adds canonical-name hints to the prompt.
func (o *Oracle) Extract(ctx context.Context, transcript string, meta record.MeetingMeta, known KnownNames) (*Extraction, error) {
	if strings.TrimSpace(transcript) == "" {
		return nil, &OracleError{Op: OpRequest, Err: errors.New("empty transcript")}
	}

	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	req := llm.CompletionRequest{
		SystemPrompt: buildSystemPrompt(meta, known),
		Messages:     []llm.Message{{Role: llm.RoleUser, Content: buildUserMessage(transcript)}},
		Temperature:  o.temperature,
		MaxTokens:    o.maxTokens,
		ResponseSchema: &llm.ResponseSchema{
			Name:        SchemaName,
			Description: "Structured content of a committee meeting transcript",
			Schema:      Schema(),
			Strict:      true,
		},
	}

	var (
		ex       *Extraction
		attempts int
	)
	op := func() error {
		attempts++
		resp, err := o.complete(ctx, req)
		if err != nil {
			if !IsRetryable(ctx, err) {
				return backoff.Permanent(err)
			}
			return err
		}
		ex, err = Decode(resp.Content)
		if err != nil {
			slog.WarnContext(ctx, "extraction reply rejected",
				"attempt", attempts,
				"finish_reason", resp.FinishReason,
				"error", err)
			return backoff.Permanent(err)
		}
		return nil
	}
	notify := func(err error, wait time.Duration) {
		slog.WarnContext(ctx, "extraction failed, retrying",
			"attempt", attempts,
			"wait", wait,
			"error", err)
	}

	bo := backoff.WithContext(backoff.WithMaxRetries(o.newBackOff(), uint64(o.maxRetries)), ctx)
	if err := backoff.RetryNotify(op, bo, notify); err != nil {
		return nil, classify(ctx, err, attempts)
	}
	return ex, nil
}

func (o *Oracle) complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	call := func() (*llm.CompletionResponse, error) {
		resp, err := o.provider.Complete(ctx, req)
		if err == nil && resp == nil {
			err = llm.ErrEmptyResponse
		}
		return resp, err
	}
	if o.breaker == nil {
		return call()
	}
	var resp *llm.CompletionResponse
	err := o.breaker.Execute(func() error {
		var err error
		resp, err = call()
		return err
	})
	return resp, err
}

// classify converts the final retry error into an OracleError.
func classify(ctx context.Context, err error, attempts int) *OracleError {
	var se *schemaError
	switch {
	case errors.As(err, &se):
		return &OracleError{Op: se.op, Attempts: attempts, Err: se.err}
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded):
		return &OracleError{Op: OpTimeout, Retryable: true, Attempts: attempts, Err: err}
	case errors.Is(err, context.Canceled):
		return &OracleError{Op: OpComplete, Attempts: attempts, Err: err}
	case errors.Is(err, resilience.ErrCircuitOpen):
		return &OracleError{Op: OpComplete, Retryable: true, Attempts: attempts, Err: err}
	default:
		return &OracleError{Op: OpComplete, Retryable: IsRetryable(ctx, err), Attempts: attempts, Err: err}
	}
}

// IsRetryable reports whether a provider error is transient: rate limits,
// server errors, empty replies and network failures are; cancellation,
// deadlines, an open breaker and other API errors are not. Errors from
// openai-go are judged by status code, any-llm errors by their kind.
func IsRetryable(ctx context.Context, err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, resilience.ErrCircuitOpen) {
		return false
	}
	if errors.Is(err, llm.ErrEmptyResponse) {
		return true
	}

	if retry, ok := anyLLMRetryable(ctx, err); ok {
		return retry
	}

	var apiErr *oai.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == http.StatusTooManyRequests:
			slog.WarnContext(ctx, "oracle rate limited", "status_code", apiErr.StatusCode)
			return true
		case apiErr.StatusCode >= http.StatusInternalServerError:
			slog.WarnContext(ctx, "oracle server error", "status_code", apiErr.StatusCode)
			return true
		default:
			slog.ErrorContext(ctx, "oracle client error, not retryable",
				"status_code", apiErr.StatusCode,
				"error_type", apiErr.Type,
				"error_code", apiErr.Code)
			return false
		}
	}

	// No API response at all: network trouble.
	return true
}

// permanentAnyLLM are any-llm failures that another attempt cannot fix.
var permanentAnyLLM = []error{
	anyllmlib.ErrAuthentication,
	anyllmlib.ErrInvalidRequest,
	anyllmlib.ErrContextLength,
	anyllmlib.ErrContentFilter,
	anyllmlib.ErrModelNotFound,
	anyllmlib.ErrMissingAPIKey,
	anyllmlib.ErrUnsupportedProvider,
	anyllmlib.ErrUnsupportedParam,
}

// anyLLMRetryable classifies the typed errors of any-llm backends. ok is
// false when err is not one of them.
func anyLLMRetryable(ctx context.Context, err error) (retry, ok bool) {
	if errors.Is(err, anyllmlib.ErrRateLimit) {
		slog.WarnContext(ctx, "oracle rate limited")
		return true, true
	}
	var provErr *anyllmlib.ProviderError
	if errors.As(err, &provErr) {
		code := provErr.StatusCode
		if code != 0 && code != http.StatusTooManyRequests && code < http.StatusInternalServerError {
			slog.ErrorContext(ctx, "oracle client error, not retryable", "provider", provErr.Provider, "status_code", code)
			return false, true
		}
		slog.WarnContext(ctx, "oracle provider error", "provider", provErr.Provider, "status_code", code)
		return true, true
	}
	for _, target := range permanentAnyLLM {
		if errors.Is(err, target) {
			slog.ErrorContext(ctx, "oracle request rejected, not retryable", "error", err)
			return false, true
		}
	}
	return false, false
}
