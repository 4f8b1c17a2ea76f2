package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/invopop/jsonschema"

	"github.com/MrWong99/scribe/internal/observe"
	"github.com/MrWong99/scribe/pkg/provider/llm"
)

// Tool is a function the assistant may offer to the model.
type Tool struct {
	// Definition is the model-facing name, description and argument schema.
	Definition llm.ToolDefinition

	// Handler executes the tool with JSON-encoded args and returns a
	// JSON-encoded result. Implementations must be safe for concurrent use.
	Handler func(ctx context.Context, args string) (string, error)
}

// Result is the outcome of one tool call. Failed calls are reported to the
// model as content with IsError set rather than aborting the conversation.
type Result struct {
	Content string
	IsError bool
}

// Toolbox holds the registered tools. The zero value is not usable; call
// [NewToolbox].
type Toolbox struct {
	mu      sync.RWMutex
	tools   map[string]Tool
	metrics *observe.Metrics
}

// NewToolbox returns a toolbox holding tools. metrics may be nil.
func NewToolbox(metrics *observe.Metrics, tools ...Tool) (*Toolbox, error) {
	tb := &Toolbox{tools: make(map[string]Tool, len(tools)), metrics: metrics}
	for _, t := range tools {
		if err := tb.Register(t); err != nil {
			return nil, err
		}
	}
	return tb, nil
}

// Register adds t. Names must be unique.
func (tb *Toolbox) Register(t Tool) error {
	name := t.Definition.Name
	if name == "" || t.Handler == nil {
		return fmt.Errorf("chat: tool %q needs a name and a handler", name)
	}
	tb.mu.Lock()
	defer tb.mu.Unlock()
	if _, dup := tb.tools[name]; dup {
		return fmt.Errorf("chat: tool %q registered twice", name)
	}
	tb.tools[name] = t
	return nil
}

// Definitions returns the tool definitions sorted by name.
func (tb *Toolbox) Definitions() []llm.ToolDefinition {
	tb.mu.RLock()
	defs := make([]llm.ToolDefinition, 0, len(tb.tools))
	for _, t := range tb.tools {
		defs = append(defs, t.Definition)
	}
	tb.mu.RUnlock()
	slices.SortFunc(defs, func(a, b llm.ToolDefinition) int { return strings.Compare(a.Name, b.Name) })
	return defs
}

// Execute runs the named tool. Unknown tools and handler errors become an
// error result the model can read. A nil Toolbox knows no tools.
func (tb *Toolbox) Execute(ctx context.Context, name, args string) Result {
	if tb == nil {
		return errorResult(fmt.Errorf("unknown tool %q", name))
	}
	tb.mu.RLock()
	t, ok := tb.tools[name]
	tb.mu.RUnlock()
	if !ok {
		return errorResult(fmt.Errorf("unknown tool %q", name))
	}
	if strings.TrimSpace(args) == "" {
		args = "{}"
	}

	start := time.Now()
	out, err := t.Handler(ctx, args)
	if tb.metrics != nil {
		tb.metrics.RecordToolCall(ctx, name, err != nil, time.Since(start).Seconds())
	}
	if err != nil {
		observe.Logger(ctx).Debug("chat tool failed", "tool", name, "err", err)
		return errorResult(err)
	}
	return Result{Content: out}
}

func errorResult(err error) Result {
	raw, _ := json.Marshal(map[string]string{"error": err.Error()})
	return Result{Content: string(raw), IsError: true}
}

// paramsOf reflects the JSON Schema of an argument struct. Fields without
// omitempty are required.
func paramsOf(v any) map[string]any {
	r := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	s := r.Reflect(v)
	s.Version = ""
	s.ID = ""
	raw, err := json.Marshal(s)
	if err != nil {
		return map[string]any{"type": "object"}
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return map[string]any{"type": "object"}
	}
	return m
}

// decodeArgs unmarshals args into dst, naming the tool on failure.
func decodeArgs(tool, args string, dst any) error {
	if err := json.Unmarshal([]byte(args), dst); err != nil {
		return fmt.Errorf("%s: invalid arguments: %w", tool, err)
	}
	return nil
}

// encode marshals a tool result.
func encode(tool string, v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("%s: encode result: %w", tool, err)
	}
	return string(raw), nil
}
