// Package llm defines the Provider interface for Large Language Model backends.
//
// A provider wraps a remote or local model API (OpenAI, Anthropic, a local
// Ollama instance, ...) and exposes a single blocking completion call. The
// extraction oracle uses it to turn a transcript into structured JSON, so the
// request can carry a JSON schema that providers with native structured
// output enforce server-side. The chat assistant offers tools instead and
// runs the calls the model asks for.
//
// Implementors must be safe for concurrent use.
package llm

import (
	"context"
	"errors"
)

// ErrEmptyResponse is returned when a backend answers without any choices.
// Callers may retry it.
var ErrEmptyResponse = errors.New("llm: empty response")

// Usage holds token accounting information returned by the LLM backend.
// Counts are in the model's native token unit and may differ between providers
// for the same textual content.
type Usage struct {
	PromptTokens     int
	CompletionTokens int

	// TotalTokens is PromptTokens + CompletionTokens. Some providers return it
	// directly rather than computing it from the parts.
	TotalTokens int
}

// CompletionRequest carries everything the LLM needs to produce a response.
// At minimum Messages must be non-empty.
type CompletionRequest struct {
	// Messages is the ordered conversation. The last message is typically from
	// the "user" role and drives the response.
	Messages []Message

	// SystemPrompt is an optional instruction injected before Messages as a
	// "system"-role message.
	SystemPrompt string

	// Temperature controls output randomness in the range [0.0, 2.0]. Zero
	// means the provider default.
	Temperature float64

	// Tools is the set of tools offered to the model. Callers should check
	// Capabilities().SupportsToolCalling first.
	Tools []ToolDefinition

	// MaxTokens caps the number of completion tokens. Zero means the provider
	// default.
	MaxTokens int

	// ResponseSchema, when set, asks the model to reply with a single JSON
	// document conforming to the schema. Providers without native structured
	// output must still honour it, e.g. by describing the schema in the
	// system prompt.
	ResponseSchema *ResponseSchema
}

// CompletionResponse is returned by Complete.
type CompletionResponse struct {
	// Content is the full text of the assistant's reply. Empty when the model
	// responds only with tool calls.
	Content string

	// ToolCalls lists the tool invocations requested by the model. The caller
	// executes them and appends the results to the conversation.
	ToolCalls []ToolCall

	// FinishReason is why generation stopped: "stop", "length",
	// "content_filter", ...
	FinishReason string

	// Model is the model that served the request as reported by the backend.
	// Empty when the backend does not report it.
	Model string

	Usage Usage
}

// Provider is the abstraction over any LLM backend.
//
// Complete must return promptly when ctx is cancelled.
type Provider interface {
	// Complete sends req to the model and waits for the full response.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// Capabilities returns static metadata describing what the underlying
	// model supports. The result is constant for the lifetime of the Provider.
	Capabilities() ModelCapabilities
}
