package command

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type harness struct {
	config string
	stdout *bytes.Buffer
	stderr *bytes.Buffer
	dir    string
}

func newHarness(t *testing.T, backend string) *harness {
	t.Helper()
	dir := t.TempDir()
	root := filepath.Join(dir, "workspace")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "docs"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "docs", "readme.md"), []byte("# hi"), 0o644))

	cfg := fmt.Sprintf(`
files:
  root: %q
transcript:
  backend: %s
  dsn: %q
log:
  pretty: false
agent:
  max_steps: 4
  rate_limit_refill_rate: 1ms
`, root, backend, filepath.Join(dir, "db", "transcripts.db"))
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o644))

	return &harness{config: path, stdout: &bytes.Buffer{}, stderr: &bytes.Buffer{}, dir: dir}
}

func (h *harness) run(stdin string, args ...string) error {
	h.stdout.Reset()
	h.stderr.Reset()
	app := BuildApp(Deps{Stdin: strings.NewReader(stdin), Stdout: h.stdout, Stderr: h.stderr})
	return app.RunContext(context.Background(), append([]string{"actcore", "--config", h.config}, args...))
}

func (h *harness) writeScenarios(t *testing.T, doc string) string {
	t.Helper()
	path := filepath.Join(h.dir, "scenarios.yaml")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))
	return path
}

const passingScenarios = `
scenarios:
  - name: list-then-answer
    task: What is in docs?
    responses:
      - '{"action": "list_files", "action_input": {"path": "docs"}}'
      - '{"action": "final_answer", "action_input": {"answer": "a readme"}}'
    expect:
      answer: a readme
`

func TestDescribe(t *testing.T) {
	h := newHarness(t, "memory")

	require.NoError(t, h.run("", "describe"))
	out := h.stdout.String()
	for _, name := range []string{"send_message_to_user", "final_answer", "list_files", "file_info"} {
		assert.Contains(t, out, name)
	}

	require.NoError(t, h.run("", "describe", "--schema", "final_answer"))
	var schema map[string]any
	require.NoError(t, json.Unmarshal(h.stdout.Bytes(), &schema))
	assert.Contains(t, h.stdout.String(), `"answer"`)

	assert.Error(t, h.run("", "describe", "delete_everything"))
}

func TestExec(t *testing.T) {
	h := newHarness(t, "memory")

	require.NoError(t, h.run(`{"action": "send_message_to_user", "action_input": {"content": "hi"}}`, "exec"))
	assert.Contains(t, h.stdout.String(), `"status":"success"`)
	assert.Contains(t, h.stderr.String(), `"content":"hi"`)

	require.NoError(t, h.run("", "exec", "--text", `list_files({"path": "docs"})`))
	assert.Contains(t, h.stdout.String(), "/docs/readme.md")

	require.NoError(t, h.run("", "exec", "--text", "nothing to see"))
	assert.Contains(t, h.stdout.String(), `"status":"failure"`)

	assert.Error(t, h.run("   ", "exec"))
}

func TestRun(t *testing.T) {
	h := newHarness(t, "memory")

	require.NoError(t, h.run("", "run", h.writeScenarios(t, passingScenarios)))
	assert.Contains(t, h.stdout.String(), "passed: 1")
	assert.Contains(t, h.stdout.String(), "scenario: list-then-answer")

	failing := strings.Replace(passingScenarios, "answer: a readme\n", "answer: something else\n", 1)
	err := h.run("", "run", h.writeScenarios(t, failing))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 1 scenarios failed")

	assert.Error(t, h.run("", "run"))
	assert.Error(t, h.run("", "run", filepath.Join(h.dir, "missing.yaml")))
}

func TestRunWithLibSQLTranscripts(t *testing.T) {
	h := newHarness(t, "libsql")

	require.NoError(t, h.run("", "run", h.writeScenarios(t, passingScenarios)))
	assert.Contains(t, h.stdout.String(), "passed: 1")

	require.NoError(t, h.run("", "migrate", "status"))
	assert.Equal(t, "schema version 1\n", h.stdout.String())
}

func TestMigrate(t *testing.T) {
	h := newHarness(t, "libsql")

	require.NoError(t, h.run("", "migrate", "up"))
	assert.Equal(t, "schema version 1\n", h.stdout.String())

	require.NoError(t, h.run("", "migrate", "down"))
	assert.Equal(t, "schema version 0\n", h.stdout.String())
}

func TestBadConfigIsAnError(t *testing.T) {
	h := newHarness(t, "redis")
	assert.Error(t, h.run("", "describe"))
}
