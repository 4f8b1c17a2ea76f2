package llm

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message represents a single message in an LLM conversation.
type Message struct {
	// Role is one of [RoleSystem], [RoleUser], [RoleAssistant] or [RoleTool].
	Role string

	// Content is the text content of the message.
	Content string

	// ToolCalls contains any tool invocations requested by the assistant.
	ToolCalls []ToolCall

	// ToolCallID is set when Role is [RoleTool], identifying which tool call
	// this message answers.
	ToolCallID string
}

// ToolCall represents a tool invocation requested by the model.
type ToolCall struct {
	// ID is the provider-assigned identifier of the call.
	ID string

	// Name is the tool name.
	Name string

	// Arguments is the JSON-encoded arguments object.
	Arguments string
}

// ToolDefinition describes a tool that can be offered to the model.
type ToolDefinition struct {
	Name        string
	Description string

	// Parameters is the JSON Schema of the tool's arguments object.
	Parameters map[string]any
}

// ResponseSchema describes the JSON document a completion must produce.
type ResponseSchema struct {
	// Name identifies the schema to the backend. Letters, digits, '_' and '-'
	// only.
	Name string

	// Description is an optional human-readable explanation of the document.
	Description string

	// Schema is the JSON Schema value. Anything that marshals to a JSON
	// Schema object is accepted, typically a *jsonschema.Schema.
	Schema any

	// Strict requests exact schema adherence from backends that support it.
	Strict bool
}

// ModelCapabilities describes what an LLM model supports.
type ModelCapabilities struct {
	// ContextWindow is the maximum token count for input + output.
	ContextWindow int

	// MaxOutputTokens is the maximum tokens the model can generate in one completion.
	MaxOutputTokens int

	// SupportsToolCalling indicates native function/tool calling support.
	SupportsToolCalling bool

	// SupportsStructuredOutput indicates the backend enforces ResponseSchema
	// natively rather than relying on prompt instructions.
	SupportsStructuredOutput bool
}
