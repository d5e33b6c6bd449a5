package runner

import (
	"context"
	"errors"
	"strings"
	"sync"

	ports "github.com/ZanzyTHEbar/agent-actions/actcore/executor/ports"
)

// ErrScriptExhausted is returned once every scripted reply has been used.
var ErrScriptExhausted = errors.New("scripted provider: no responses left")

// ScriptedProvider replays fixed completions in order.
type ScriptedProvider struct {
	mu        sync.Mutex
	responses []string
	next      int
}

func NewScriptedProvider(responses ...string) *ScriptedProvider {
	return &ScriptedProvider{responses: append([]string(nil), responses...)}
}

func (p *ScriptedProvider) Complete(ctx context.Context, in ports.PromptInput, _ ports.Options) (ports.Completion, error) {
	if err := ctx.Err(); err != nil {
		return ports.Completion{}, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.next >= len(p.responses) {
		return ports.Completion{}, ErrScriptExhausted
	}
	text := p.responses[p.next]
	p.next++

	// word counts stand in for tokens
	prompt := len(strings.Fields(in.System))
	for _, m := range in.Messages {
		prompt += len(strings.Fields(m.Content))
	}
	completion := len(strings.Fields(text))
	return ports.Completion{
		Text:  text,
		Usage: &ports.Usage{PromptTokens: prompt, CompletionTokens: completion, TotalTokens: prompt + completion},
	}, nil
}

// Remaining reports how many replies are left.
func (p *ScriptedProvider) Remaining() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.responses) - p.next
}

var _ ports.Provider = (*ScriptedProvider)(nil)
