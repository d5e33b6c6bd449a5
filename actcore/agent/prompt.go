package agent

import (
	"fmt"
	"strings"

	ports "github.com/ZanzyTHEbar/agent-actions/actcore/executor/ports"
)

const actionFormat = `Reply with exactly one action per turn as JSON:
{"action": "<tool name>", "action_input": {<parameter>: <literal value>}}`

// PromptBuilder assembles the provider input for one step: system text with
// the tool documentation, the task, and the replayed transcript window.
type PromptBuilder struct{}

func NewPromptBuilder() *PromptBuilder { return &PromptBuilder{} }

// Build flattens everything the model needs into a PromptInput. Each
// transcript entry becomes an assistant turn (the action) followed by a tool
// turn (the rendered observation).
func (b *PromptBuilder) Build(system, toolDocs, task string, decls []ports.ToolDeclaration, history []ports.TranscriptEntry, meta map[string]string) ports.PromptInput {
	// Normalize newlines and trim whitespace to reduce prompt diffs
	norm := func(s string) string { return strings.TrimSpace(strings.ReplaceAll(s, "\r\n", "\n")) }

	var sys strings.Builder
	sys.WriteString(norm(system))
	if docs := norm(toolDocs); docs != "" {
		sys.WriteString("\n\nAvailable tools:\n\n")
		sys.WriteString(docs)
	}
	sys.WriteString("\n\n")
	sys.WriteString(actionFormat)

	messages := make([]ports.PromptMessage, 0, 1+2*len(history))
	messages = append(messages, ports.PromptMessage{Role: "user", Content: norm(task)})
	for _, e := range history {
		messages = append(messages,
			ports.PromptMessage{Role: "assistant", Content: norm(string(e.Request))},
			ports.PromptMessage{Role: "tool", Content: fmt.Sprintf("step %d: %s", e.Step, norm(string(e.Observation)))},
		)
	}

	return ports.PromptInput{
		System:   sys.String(),
		Messages: messages,
		Tools:    decls,
		Meta:     meta,
	}
}
