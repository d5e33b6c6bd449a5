package actionports

import "context"

// PromptMessage is a single chat message.
type PromptMessage struct {
	Role    string // "system", "user", "assistant", "tool"
	Content string
}

// ToolDeclaration is the provider-facing form of a registered tool.
type ToolDeclaration struct {
	Name        string
	Description string // rendered by the registry: name: type pairs plus the literal-value rule
	JSONSchema  []byte
}

// PromptInput aggregates everything the provider needs to produce a completion.
type PromptInput struct {
	System   string
	Messages []PromptMessage
	Tools    []ToolDeclaration
	Meta     map[string]string
}

// Options controls sampling and limits for one provider call.
type Options struct {
	MaxNewTokens int
	Temperature  float32
	Seed         int
	Stop         []string
}

// Usage captures token accounting for cost/telemetry.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Completion is the raw model output for one step.
type Completion struct {
	Text  string
	Usage *Usage
}

// Provider is the model-provider collaborator. The executor only ever sees
// Completion.Text as an opaque string.
type Provider interface {
	Complete(ctx context.Context, in PromptInput, opts Options) (Completion, error)
}
