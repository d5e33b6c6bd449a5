package tools

import (
	"context"
	"errors"
	"sync"

	"github.com/ZanzyTHEbar/agent-actions/actcore/executor"
)

const (
	SendMessageName = "send_message_to_user"
	FinalAnswerName = "final_answer"
)

// MessageSink receives what the agent says to the user.
type MessageSink interface {
	Deliver(ctx context.Context, content string) error
}

// MemorySink records messages in order. Safe for concurrent use.
type MemorySink struct {
	mu       sync.Mutex
	messages []string
}

func NewMemorySink() *MemorySink { return &MemorySink{} }

func (s *MemorySink) Deliver(_ context.Context, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, content)
	return nil
}

func (s *MemorySink) Messages() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.messages...)
}

// SendMessageSpec declares send_message_to_user.
func SendMessageSpec() executor.ToolSpec {
	return executor.ToolSpec{
		Name:    SendMessageName,
		Summary: "Show a message to the user.",
		Parameters: []executor.ParameterSpec{
			{Name: "content", Type: executor.TypeString, Required: true, Description: "the exact text the user will read"},
		},
	}
}

// SendMessage delivers content to sink.
func SendMessage(sink MessageSink) executor.ToolFunc {
	return func(ctx context.Context, args executor.Args) (any, error) {
		content := args.String("content")
		if content == "" {
			return nil, errors.New("content is empty")
		}
		if err := sink.Deliver(ctx, content); err != nil {
			return nil, err
		}
		return "message sent", nil
	}
}

// FinalAnswerSpec declares final_answer; a successful call ends the episode.
func FinalAnswerSpec() executor.ToolSpec {
	return executor.ToolSpec{
		Name:    FinalAnswerName,
		Summary: "Finish the task with the answer for the user.",
		Parameters: []executor.ParameterSpec{
			{Name: "answer", Type: executor.TypeString, Required: true, Description: "the final answer"},
		},
	}
}

func FinalAnswer(_ context.Context, args executor.Args) (any, error) {
	return args.String("answer"), nil
}
