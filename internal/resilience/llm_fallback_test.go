package resilience

import (
	"context"
	"errors"
	"testing"

	"github.com/MrWong99/scribe/pkg/provider/llm"
	llmmock "github.com/MrWong99/scribe/pkg/provider/llm/mock"
)

func newLLMFallback(primary, secondary llm.Provider) *LLMFallback {
	fb := NewLLMFallback(primary, "primary", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})
	fb.AddFallback("secondary", secondary)
	return fb
}

func TestLLMFallback_Complete_PrimarySuccess(t *testing.T) {
	primary := &llmmock.Provider{
		CompleteResponse: &llm.CompletionResponse{Content: "hello from primary"},
	}
	secondary := &llmmock.Provider{
		CompleteResponse: &llm.CompletionResponse{Content: "hello from secondary"},
	}

	resp, err := newLLMFallback(primary, secondary).Complete(context.Background(), llm.CompletionRequest{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Content != "hello from primary" {
		t.Fatalf("content = %q, want 'hello from primary'", resp.Content)
	}
	if primary.Calls() != 1 || secondary.Calls() != 0 {
		t.Fatalf("calls primary=%d secondary=%d, want 1/0", primary.Calls(), secondary.Calls())
	}
}

func TestLLMFallback_Complete_Failover(t *testing.T) {
	primary := &llmmock.Provider{CompleteErr: errors.New("primary down")}
	secondary := &llmmock.Provider{
		CompleteResponse: &llm.CompletionResponse{Content: "hello from secondary"},
	}

	resp, err := newLLMFallback(primary, secondary).Complete(context.Background(), llm.CompletionRequest{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Content != "hello from secondary" {
		t.Fatalf("content = %q, want 'hello from secondary'", resp.Content)
	}
}

func TestLLMFallback_Complete_AllFail(t *testing.T) {
	primary := &llmmock.Provider{CompleteErr: errors.New("primary down")}
	secondary := &llmmock.Provider{CompleteErr: errors.New("secondary down")}

	_, err := newLLMFallback(primary, secondary).Complete(context.Background(), llm.CompletionRequest{})
	if !errors.Is(err, ErrAllFailed) {
		t.Fatalf("err = %v, want ErrAllFailed", err)
	}
}

func TestLLMFallback_Capabilities(t *testing.T) {
	primary := &llmmock.Provider{ModelCapabilities: llm.ModelCapabilities{
		ContextWindow: 1000, SupportsStructuredOutput: true,
	}}
	structured := &llmmock.Provider{ModelCapabilities: llm.ModelCapabilities{SupportsStructuredOutput: true}}
	prompted := &llmmock.Provider{}

	caps := newLLMFallback(primary, structured).Capabilities()
	if caps.ContextWindow != 1000 || !caps.SupportsStructuredOutput {
		t.Errorf("caps = %+v, want primary caps with structured output", caps)
	}

	caps = newLLMFallback(primary, prompted).Capabilities()
	if caps.SupportsStructuredOutput {
		t.Error("structured output reported although a fallback lacks it")
	}
}
