package executor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZanzyTHEbar/agent-actions/actcore/executor/literal"
)

func argString(t *testing.T, req ActionRequest, key string) string {
	t.Helper()
	v, ok := req.RawArguments[key]
	require.True(t, ok, "argument %q missing", key)
	s, ok := v.AsString()
	require.True(t, ok, "argument %q is %s", key, v.Shape())
	return s
}

func TestActionParser_Encodings(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		encoding string
	}{
		{
			name:     "json fence",
			raw:      "Thought: greet\n```json\n{\"action\": \"send_message_to_user\", \"action_input\": {\"content\": \"hi\"}}\n```",
			encoding: "json-fence",
		},
		{
			name:     "yaml fence",
			raw:      "```yaml\naction: send_message_to_user\naction_input:\n  content: hi\n```",
			encoding: "yaml-fence",
		},
		{
			name:     "untyped fence",
			raw:      "```\n{\"tool\": \"send_message_to_user\", \"args\": {\"content\": \"hi\"}}\n```",
			encoding: "fence",
		},
		{
			name:     "bare json in prose",
			raw:      `I will now reply. {"tool_name": "send_message_to_user", "arguments": {"content": "hi"}} Done.`,
			encoding: "json",
		},
		{
			name:     "arguments as encoded string",
			raw:      `{"name": "send_message_to_user", "arguments": "{\"content\": \"hi\"}"}`,
			encoding: "json",
		},
		{
			name:     "tool_calls wrapper",
			raw:      `{"tool_calls": [{"id": "c1", "type": "function", "function": {"name": "send_message_to_user", "arguments": "{\"content\": \"hi\"}"}}]}`,
			encoding: "json",
		},
		{
			name:     "function call",
			raw:      `Calling send_message_to_user({"content": "hi"}) now.`,
			encoding: "call",
		},
		{
			name:     "inline with action input",
			raw:      "Thought: answer\nAction: send_message_to_user\nAction Input: {\"content\": \"hi\"}",
			encoding: "inline",
		},
		{
			name:     "inline key value lines",
			raw:      "Action: send_message_to_user\ncontent: hi\n\nThat should do it.",
			encoding: "inline",
		},
		{
			name:     "repaired json",
			raw:      `{'action': 'send_message_to_user', 'action_input': {'content': 'hi',},}`,
			encoding: "json",
		},
	}

	p := NewActionParser()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := p.Parse(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, "send_message_to_user", req.ToolName)
			assert.Equal(t, tt.encoding, req.Encoding)
			assert.Equal(t, "hi", argString(t, req, "content"))
		})
	}
}

func TestActionParser_KeyValueScalars(t *testing.T) {
	req, err := NewActionParser().Parse("Action: list_files\npath = docs\nlimit = 5\nrecursive: true\n")
	require.NoError(t, err)
	assert.Equal(t, "list_files", req.ToolName)
	assert.Equal(t, "docs", argString(t, req, "path"))
	assert.Equal(t, literal.Integer, req.RawArguments["limit"].Kind())
	assert.Equal(t, literal.Bool, req.RawArguments["recursive"].Kind())
}

func TestActionParser_NameOnlyObject(t *testing.T) {
	req, err := NewActionParser().Parse(`{"action": "final_answer"}`)
	require.NoError(t, err)
	assert.Equal(t, "final_answer", req.ToolName)
	assert.Empty(t, req.RawArguments)
}

func TestActionParser_LastCandidateWins(t *testing.T) {
	raw := "Draft:\n```json\n{\"action\": \"send_message_to_user\", \"action_input\": {\"content\": \"first\"}}\n```\n" +
		"Correction:\n```json\n{\"action\": \"final_answer\", \"action_input\": {\"answer\": \"second\"}}\n```"

	req, err := NewActionParser().Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "final_answer", req.ToolName)
	assert.Equal(t, "second", argString(t, req, "answer"))
}

func TestActionParser_LaterEncodingWinsAcrossForms(t *testing.T) {
	raw := `{"action": "send_message_to_user", "action_input": {"content": "draft"}}` + "\nActually:\nfinal_answer({\"answer\": \"done\"})"

	req, err := NewActionParser().Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "final_answer", req.ToolName)
	assert.Equal(t, "call", req.Encoding)
}

func TestActionParser_ArgumentObjectsAreNotCalls(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		encoding string
		check    func(t *testing.T, req ActionRequest)
	}{
		{
			name:     "call argument names an action",
			raw:      `set_mode({"action": "archive"})`,
			encoding: "call",
			check: func(t *testing.T, req ActionRequest) {
				assert.Equal(t, "archive", argString(t, req, "action"))
			},
		},
		{
			name:     "inline input names an action",
			raw:      "Action: set_mode\nAction Input: {\"action\": \"archive\"}",
			encoding: "inline",
			check: func(t *testing.T, req ActionRequest) {
				assert.Equal(t, "archive", argString(t, req, "action"))
			},
		},
		{
			name:     "call argument shaped like a request",
			raw:      `set_mode({"tool": "rm_all", "args": {}})`,
			encoding: "call",
			check: func(t *testing.T, req ActionRequest) {
				assert.Equal(t, "rm_all", argString(t, req, "tool"))
				assert.Equal(t, literal.Object, req.RawArguments["args"].Kind())
			},
		},
	}

	p := NewActionParser()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := p.Parse(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, "set_mode", req.ToolName)
			assert.Equal(t, tt.encoding, req.Encoding)
			tt.check(t, req)
		})
	}
}

func TestActionParser_BareJSONAfterInlineStillCounts(t *testing.T) {
	raw := "Action: send_message_to_user\nAction Input: {\"content\": \"draft\"}\nObservation: sent\n" +
		`{"action": "final_answer", "action_input": {"answer": "done"}}`

	req, err := NewActionParser().Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "final_answer", req.ToolName)
	assert.Equal(t, "json", req.Encoding)
}

func TestActionParser_BatchIsAmbiguous(t *testing.T) {
	raw := "```json\n[{\"action\": \"send_message_to_user\", \"action_input\": {\"content\": \"a\"}}, {\"action\": \"final_answer\", \"action_input\": {\"answer\": \"b\"}}]\n```"

	_, err := NewActionParser().Parse(raw)
	assert.ErrorIs(t, err, ErrAmbiguousAction)

	var perr *ParseError
	require.ErrorAs(t, err, &perr)
	assert.Contains(t, perr.Detail, "send_message_to_user")
}

func TestActionParser_RepeatedIdenticalCallIsNotAmbiguous(t *testing.T) {
	raw := `[{"action": "final_answer", "action_input": {"answer": "x"}}, {"action": "final_answer", "action_input": {"answer": "x"}}]`

	req, err := NewActionParser().Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "final_answer", req.ToolName)
}

func TestActionParser_Malformed(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{name: "empty", raw: "   "},
		{name: "prose only", raw: "I am not sure what to do next."},
		{name: "unrelated json", raw: `{"name": "Bob", "age": 4}`},
		{name: "broken json fence", raw: "```json\n{\"action\": \n```"},
		{name: "non object arguments", raw: `{"action": "send_message_to_user", "action_input": [1, 2]}`},
		{name: "bad tool name", raw: `{"action": "rm -rf /", "action_input": {}}`},
	}

	p := NewActionParser()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.Parse(tt.raw)
			assert.ErrorIs(t, err, ErrMalformedAction)
		})
	}
}

func TestActionParser_KeepsArgumentsVerbatim(t *testing.T) {
	raw := `{"action": "send_message_to_user", "action_input": {"content": {"type": "string", "description": "hello"}, "extra": 1}}`

	req, err := NewActionParser().Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, literal.Object, req.RawArguments["content"].Kind())
	assert.Contains(t, req.RawArguments, "extra")
}
