package tools

import (
	"github.com/ZanzyTHEbar/agent-actions/actcore/executor"
	"github.com/ZanzyTHEbar/agent-actions/actcore/fscache"
)

// Builtins configures RegisterBuiltins. A nil Files cache leaves the file
// tools out.
type Builtins struct {
	Sink      MessageSink
	Files     *fscache.Cache
	FilesRoot string
}

// RegisterBuiltins adds the built-in tools to r in a fixed order.
func RegisterBuiltins(r *executor.ToolRegistry, b Builtins) error {
	sink := b.Sink
	if sink == nil {
		sink = NewMemorySink()
	}
	if err := r.Register(SendMessageSpec(), SendMessage(sink)); err != nil {
		return err
	}
	if err := r.Register(FinalAnswerSpec(), FinalAnswer); err != nil {
		return err
	}
	if b.Files == nil {
		return nil
	}

	ft := NewFileTools(b.Files, b.FilesRoot)
	if err := r.Register(ListFilesSpec(), ft.ListFiles); err != nil {
		return err
	}
	return r.Register(FileInfoSpec(), ft.FileInfo)
}
