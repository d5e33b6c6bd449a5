package tools

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZanzyTHEbar/agent-actions/actcore/executor"
	"github.com/ZanzyTHEbar/agent-actions/actcore/executor/adapters"
	"github.com/ZanzyTHEbar/agent-actions/actcore/fscache"
)

func newExecutor(t *testing.T) (*executor.Executor, *MemorySink, string) {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "docs"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "docs", "guide.md"), []byte("# guide"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, ".env"), []byte("X=1"), 0o600))

	sink := NewMemorySink()
	cache := fscache.New(adapters.NewLRUCache(16), fscache.WithLogger(zerolog.Nop()))
	r := executor.NewToolRegistry()
	require.NoError(t, RegisterBuiltins(r, Builtins{Sink: sink, Files: cache, FilesRoot: root}))
	return executor.NewExecutor(r), sink, root
}

func TestRegisterBuiltins_Order(t *testing.T) {
	exec, _, _ := newExecutor(t)
	assert.Equal(t, []string{SendMessageName, FinalAnswerName, ListFilesName, FileInfoName}, exec.Registry().Names())
}

func TestRegisterBuiltins_WithoutFiles(t *testing.T) {
	r := executor.NewToolRegistry()
	require.NoError(t, RegisterBuiltins(r, Builtins{}))
	assert.Equal(t, []string{SendMessageName, FinalAnswerName}, r.Names())
}

func TestSendMessage_DeliversRepairedContent(t *testing.T) {
	exec, sink, _ := newExecutor(t)

	res := exec.Step(context.Background(),
		`{"action": "send_message_to_user", "action_input": {"content": {"type": "string", "description": "hello"}}}`)

	require.True(t, res.Observation.IsSuccess(), res.Rendered)
	assert.Equal(t, []string{"hello"}, sink.Messages())
	assert.Equal(t, "message sent", res.Observation.ReturnValue)
}

func TestSendMessage_RejectsEmptyContent(t *testing.T) {
	exec, sink, _ := newExecutor(t)

	res := exec.Step(context.Background(), `send_message_to_user({"content": ""})`)

	assert.Equal(t, executor.FailureToolExecution, res.Observation.FailureKind())
	assert.Empty(t, sink.Messages())
}

func TestFinalAnswer(t *testing.T) {
	exec, _, _ := newExecutor(t)

	res := exec.Step(context.Background(), "Action: final_answer\nAction Input: {\"answer\": \"42\"}")

	require.True(t, res.Observation.IsSuccess(), res.Rendered)
	assert.Equal(t, "42", res.Observation.ReturnValue)
}

func TestListFiles(t *testing.T) {
	exec, _, _ := newExecutor(t)

	res := exec.Step(context.Background(), `list_files({"path": "docs"})`)
	require.True(t, res.Observation.IsSuccess(), res.Rendered)
	assert.Equal(t, []string{"/docs/guide.md"}, res.Observation.ReturnValue)

	res = exec.Step(context.Background(), `list_files({"path": "/", "limit": 1})`)
	require.True(t, res.Observation.IsSuccess(), res.Rendered)
	assert.Len(t, res.Observation.ReturnValue, 1)

	res = exec.Step(context.Background(), `list_files({"path": "/", "limit": 0})`)
	assert.Equal(t, executor.FailureToolExecution, res.Observation.FailureKind())
}

func TestFileInfo(t *testing.T) {
	exec, _, _ := newExecutor(t)

	res := exec.Step(context.Background(), `file_info({"path": "docs/guide.md"})`)
	require.True(t, res.Observation.IsSuccess(), res.Rendered)
	meta, ok := res.Observation.ReturnValue.(FileMetadata)
	require.True(t, ok)
	assert.Equal(t, "guide.md", meta.Name)
	assert.Equal(t, "file", meta.Type)
	assert.Equal(t, "md", meta.Extension)
	assert.Equal(t, int64(7), meta.Size)

	res = exec.Step(context.Background(), `file_info({"path": ".env"})`)
	require.True(t, res.Observation.IsSuccess(), res.Rendered)
	assert.True(t, res.Observation.ReturnValue.(FileMetadata).IsHidden)

	res = exec.Step(context.Background(), `file_info({"path": "docs"})`)
	require.True(t, res.Observation.IsSuccess(), res.Rendered)
	assert.Equal(t, "directory", res.Observation.ReturnValue.(FileMetadata).Type)
}

func TestFileTools_RejectTraversal(t *testing.T) {
	exec, _, _ := newExecutor(t)

	for _, raw := range []string{
		`file_info({"path": "../../etc/passwd"})`,
		`list_files({"path": "docs/../../"})`,
	} {
		res := exec.Step(context.Background(), raw)
		assert.Equal(t, executor.FailureToolExecution, res.Observation.FailureKind(), raw)
		assert.Contains(t, res.Observation.Failure.Message, "escapes the root")
	}
}
