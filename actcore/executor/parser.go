package executor

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/ZanzyTHEbar/agent-actions/actcore/executor/literal"
)

var (
	fencePattern      = regexp.MustCompile("(?s)```[ \t]*([A-Za-z0-9_+-]*)[ \t]*\r?\n(.*?)```")
	callPattern       = regexp.MustCompile(`\b([A-Za-z_][A-Za-z0-9_.\-]*)\s*\(\s*\{`)
	actionLinePattern = regexp.MustCompile(`(?im)^[ \t]*action[ \t]*:[ \t]*(.*)$`)
	actionInputPrefix = regexp.MustCompile(`(?i)^[ \t]*action[ _]input[ \t]*:[ \t]*(.*)$`)
	stopLinePattern   = regexp.MustCompile(`(?i)^[ \t]*(action|thought|observation|final answer)[ \t]*:`)
	kvLinePattern     = regexp.MustCompile(`^[ \t]*-?[ \t]*([A-Za-z_][A-Za-z0-9_]*)[ \t]*(?::|=)[ \t]*(.*)$`)

	trailingCommaPattern = regexp.MustCompile(`,\s*([}\]])`)
	unquotedKeyPattern   = regexp.MustCompile(`([{,]\s*)([a-zA-Z_][a-zA-Z0-9_]*)\s*:`)
)

// ActionParser recovers a single ActionRequest from free-form model output.
type ActionParser struct {
	nameKeys []string
	argKeys  []string
}

// NewActionParser creates a parser with the default key vocabulary.
func NewActionParser() *ActionParser {
	return &ActionParser{
		nameKeys: []string{"action", "tool", "tool_name", "name"},
		argKeys:  []string{"action_input", "arguments", "args", "parameters", "input"},
	}
}

// candidate is one block of text that looked like an action.
type candidate struct {
	offset   int
	encoding string
	calls    []ActionRequest
	err      error
}

type span struct{ start, end int }

// Parse extracts the action to execute. Every well-formed candidate is
// collected and the last one in the text wins, since models often restate a
// corrected action after a draft. A candidate that itself carries several
// distinct calls cannot be resolved and yields ErrAmbiguousAction.
func (p *ActionParser) Parse(raw string) (ActionRequest, error) {
	if strings.TrimSpace(raw) == "" {
		return ActionRequest{}, malformed("empty model output")
	}

	// Text claimed by a fence, a call or an inline action is never rescanned
	// for bare JSON, so an argument object cannot become a call of its own.
	var cands []candidate
	claimed := p.scanFences(raw, &cands)
	claimed = append(claimed, p.scanCalls(raw, claimed, &cands)...)
	claimed = append(claimed, p.scanInline(raw, claimed, &cands)...)
	p.scanJSON(raw, claimed, &cands)

	sort.SliceStable(cands, func(i, j int) bool { return cands[i].offset < cands[j].offset })

	var (
		best    *candidate
		lastErr error
	)
	for i := range cands {
		c := &cands[i]
		if c.err != nil {
			lastErr = c.err
			continue
		}
		if len(c.calls) > 0 {
			best = c
		}
	}

	if best == nil {
		if lastErr != nil {
			return ActionRequest{}, lastErr
		}
		return ActionRequest{}, malformed("no tool name/argument structure found")
	}

	calls := dedupeCalls(best.calls)
	if len(calls) > 1 {
		names := make([]string, len(calls))
		for i, c := range calls {
			names[i] = c.ToolName
		}
		return ActionRequest{}, ambiguous("block at offset %d carries %d calls (%s); emit one action per step",
			best.offset, len(calls), strings.Join(names, ", "))
	}

	req := calls[0]
	req.Encoding = best.encoding
	req.offset = best.offset
	return req, nil
}

func (p *ActionParser) scanFences(raw string, out *[]candidate) []span {
	var fenced []span
	for _, m := range fencePattern.FindAllStringSubmatchIndex(raw, -1) {
		fenced = append(fenced, span{m[0], m[1]})
		lang := strings.ToLower(raw[m[2]:m[3]])
		body := raw[m[4]:m[5]]

		var (
			v        literal.Value
			err      error
			encoding string
		)
		switch lang {
		case "json", "jsonc", "json5":
			encoding = "json-fence"
			v, err = decodeLenientJSON(body)
		case "yaml", "yml":
			encoding = "yaml-fence"
			v, err = literal.DecodeYAML([]byte(body))
		default:
			encoding = "fence"
			if v, err = decodeLenientJSON(body); err != nil {
				v, err = literal.DecodeYAML([]byte(body))
			}
		}
		if err != nil {
			if lang == "json" || lang == "yaml" || lang == "yml" {
				*out = append(*out, candidate{offset: m[0], encoding: encoding, err: malformed("%s block at offset %d: %v", lang, m[0], err)})
			}
			continue
		}

		calls, err := p.interpret(v)
		if err != nil || len(calls) > 0 {
			*out = append(*out, candidate{offset: m[0], encoding: encoding, calls: calls, err: err})
		}
	}
	return fenced
}

func (p *ActionParser) scanCalls(raw string, fenced []span, out *[]candidate) []span {
	var consumed []span
	for _, m := range callPattern.FindAllStringSubmatchIndex(raw, -1) {
		if inSpans(fenced, m[0]) || inSpans(consumed, m[0]) {
			continue
		}
		name := raw[m[2]:m[3]]
		open := m[1] - 1
		end := matchBracket(raw, open)
		if end < 0 {
			continue
		}
		rest := strings.TrimLeft(raw[end+1:], " \t\r\n")
		if !strings.HasPrefix(rest, ")") {
			continue
		}
		consumed = append(consumed, span{m[0], len(raw) - len(rest) + 1})
		v, err := decodeLenientJSON(raw[open : end+1])
		if err != nil {
			*out = append(*out, candidate{offset: m[0], encoding: "call", err: malformed("arguments of %s(...) at offset %d: %v", name, m[0], err)})
			continue
		}
		args, err := argumentsFrom(v)
		if err != nil {
			*out = append(*out, candidate{offset: m[0], encoding: "call", err: err})
			continue
		}
		*out = append(*out, candidate{offset: m[0], encoding: "call", calls: []ActionRequest{{ToolName: name, RawArguments: args}}})
	}
	return consumed
}

func (p *ActionParser) scanJSON(raw string, claimed []span, out *[]candidate) {
	for i := 0; i < len(raw); i++ {
		if raw[i] != '{' && raw[i] != '[' {
			continue
		}
		if inSpans(claimed, i) {
			continue
		}
		end := matchBracket(raw, i)
		if end < 0 {
			continue
		}
		v, err := decodeLenientJSON(raw[i : end+1])
		if err != nil {
			continue
		}
		calls, err := p.interpret(v)
		if err == nil && len(calls) == 0 {
			continue
		}
		*out = append(*out, candidate{offset: i, encoding: "json", calls: calls, err: err})
		i = end
	}
}

func (p *ActionParser) scanInline(raw string, fenced []span, out *[]candidate) []span {
	var consumed []span
	for _, m := range actionLinePattern.FindAllStringSubmatchIndex(raw, -1) {
		if inSpans(fenced, m[0]) {
			continue
		}
		name := strings.Trim(strings.TrimSpace(raw[m[2]:m[3]]), "`'\"*")
		if name == "" || strings.ContainsAny(name, "{[") {
			continue
		}
		if !toolNamePattern.MatchString(name) {
			*out = append(*out, candidate{offset: m[0], encoding: "inline", err: malformed("inline action name %q is not an identifier", name)})
			continue
		}

		// lines[0] is the remainder of the action line itself
		lines := strings.Split(raw[m[1]:], "\n")
		skip := 0
		for skip < len(lines) && strings.TrimSpace(lines[skip]) == "" {
			skip++
		}

		args, used, err := p.inlineArguments(lines[skip:])
		end := m[1]
		for _, line := range lines[:skip+used] {
			end += len(line) + 1
		}
		consumed = append(consumed, span{m[0], min(end, len(raw))})

		if err != nil {
			*out = append(*out, candidate{offset: m[0], encoding: "inline", err: err})
			continue
		}
		*out = append(*out, candidate{offset: m[0], encoding: "inline", calls: []ActionRequest{{ToolName: name, RawArguments: args}}})
	}
	return consumed
}

// inlineArguments reads the arguments following an inline action line and
// reports how many lines it consumed.
func (p *ActionParser) inlineArguments(lines []string) (map[string]literal.Value, int, error) {
	if len(lines) > 0 {
		if im := actionInputPrefix.FindStringSubmatch(lines[0]); im != nil {
			body := []string{im[1]}
			for _, line := range lines[1:] {
				if stopLinePattern.MatchString(line) {
					break
				}
				body = append(body, line)
			}
			used := len(body)
			text := strings.TrimSpace(strings.Join(body, "\n"))
			text = strings.TrimSpace(strings.Trim(text, "`"))
			if text == "" {
				return map[string]literal.Value{}, used, nil
			}
			v, err := decodeLenientJSON(text)
			if err != nil {
				if v, err = literal.DecodeYAML([]byte(text)); err != nil {
					return nil, used, malformed("action input is neither JSON nor YAML: %v", err)
				}
			}
			args, err := argumentsFrom(v)
			return args, used, err
		}
	}

	args := map[string]literal.Value{}
	used := 0
	for _, line := range lines {
		if strings.TrimSpace(line) == "" || stopLinePattern.MatchString(line) {
			break
		}
		kv := kvLinePattern.FindStringSubmatch(line)
		if kv == nil {
			break
		}
		args[kv[1]] = literal.ParseScalar(kv[2])
		used++
	}
	return args, used, nil
}

// interpret turns a decoded value into zero or more calls. A nil error with
// no calls means the value is not action-shaped at all.
func (p *ActionParser) interpret(v literal.Value) ([]ActionRequest, error) {
	switch v.Kind() {
	case literal.List:
		items, _ := v.AsList()
		var calls []ActionRequest
		for _, item := range items {
			sub, err := p.interpret(item)
			if err != nil {
				return nil, err
			}
			calls = append(calls, sub...)
		}
		return calls, nil
	case literal.Object:
	default:
		return nil, nil
	}

	if tc, ok := v.Field("tool_calls"); ok && tc.Kind() == literal.List {
		return p.interpret(tc)
	}
	if fn, ok := v.Field("function"); ok && fn.Kind() == literal.Object {
		return p.interpret(fn)
	}

	var (
		name    string
		nameKey string
	)
	for _, key := range p.nameKeys {
		if nv, ok := v.Field(key); ok {
			if s, isStr := nv.AsString(); isStr {
				name, nameKey = strings.TrimSpace(s), key
				break
			}
		}
	}
	if nameKey == "" {
		return nil, nil
	}

	var (
		argVal literal.Value
		hasArg bool
	)
	for _, key := range p.argKeys {
		if av, ok := v.Field(key); ok {
			argVal, hasArg = av, true
			break
		}
	}
	if !hasArg {
		// {"action": "final_answer"} on its own is a call without arguments;
		// a lone "name" member is too common in ordinary data to count.
		if nameKey == "name" || v.Len() != 1 {
			return nil, nil
		}
	}

	if !toolNamePattern.MatchString(name) {
		return nil, malformed("tool name %q is not an identifier", name)
	}

	args := map[string]literal.Value{}
	if hasArg {
		var err error
		if args, err = argumentsFrom(argVal); err != nil {
			return nil, err
		}
	}
	return []ActionRequest{{ToolName: name, RawArguments: args}}, nil
}

// argumentsFrom accepts an object, a JSON-encoded object string or null.
func argumentsFrom(v literal.Value) (map[string]literal.Value, error) {
	switch v.Kind() {
	case literal.Object:
		obj, _ := v.AsObject()
		return obj, nil
	case literal.Null:
		return map[string]literal.Value{}, nil
	case literal.String:
		s, _ := v.AsString()
		if strings.TrimSpace(s) == "" {
			return map[string]literal.Value{}, nil
		}
		inner, err := decodeLenientJSON(s)
		if err != nil {
			return nil, malformed("arguments string is not JSON: %v", err)
		}
		if inner.Kind() != literal.Object {
			return nil, malformed("arguments must be an object, got %s", inner.Shape())
		}
		obj, _ := inner.AsObject()
		return obj, nil
	}
	return nil, malformed("arguments must be an object, got %s", v.Shape())
}

func dedupeCalls(calls []ActionRequest) []ActionRequest {
	out := make([]ActionRequest, 0, len(calls))
	for _, c := range calls {
		dup := false
		for _, seen := range out {
			if seen.ToolName == c.ToolName && literal.EqualMaps(seen.RawArguments, c.RawArguments) {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, c)
		}
	}
	return out
}

// decodeLenientJSON decodes strictly first, then retries after fixing the
// common defects of model-written JSON.
func decodeLenientJSON(text string) (literal.Value, error) {
	text = strings.TrimSpace(text)
	v, err := literal.DecodeJSON([]byte(text))
	if err == nil {
		return v, nil
	}
	fixed := fixJSON(text)
	if fixed != text && json.Valid([]byte(fixed)) {
		return literal.DecodeJSON([]byte(fixed))
	}
	return literal.Value{}, err
}

// fixJSON attempts to fix common JSON formatting issues.
func fixJSON(s string) string {
	s = trailingCommaPattern.ReplaceAllString(s, "$1")
	s = unquotedKeyPattern.ReplaceAllString(s, `$1"$2":`)
	if json.Valid([]byte(s)) {
		return s
	}
	return strings.ReplaceAll(s, "'", "\"")
}

// matchBracket returns the index of the bracket closing the one at open,
// skipping string literals, or -1.
func matchBracket(s string, open int) int {
	var stack []byte
	inString := byte(0)
	escaped := false
	for i := open; i < len(s); i++ {
		c := s[i]
		if inString != 0 {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == inString:
				inString = 0
			}
			continue
		}
		switch c {
		case '"':
			inString = c
		case '{':
			stack = append(stack, '}')
		case '[':
			stack = append(stack, ']')
		case '}', ']':
			if len(stack) == 0 || stack[len(stack)-1] != c {
				return -1
			}
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				return i
			}
		}
	}
	return -1
}

func inSpans(spans []span, pos int) bool {
	for _, s := range spans {
		if pos >= s.start && pos < s.end {
			return true
		}
	}
	return false
}

func (c candidate) String() string {
	return fmt.Sprintf("%s@%d", c.encoding, c.offset)
}
