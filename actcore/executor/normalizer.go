package executor

import (
	"strings"

	"github.com/ZanzyTHEbar/agent-actions/actcore/executor/literal"
)

// RepairRule recovers the intended literal from one known wrong shape.
// Repair must be conservative: it returns ok=false for anything it cannot
// map to a single unambiguous value.
type RepairRule interface {
	Name() string
	Repair(p ParameterSpec, v literal.Value) (literal.Value, bool)
}

// Repair records a rule application.
type Repair struct {
	Parameter string
	Rule      string
	Before    string
}

// ArgumentNormalizer maps raw arguments to their intended literals using a
// table of repair rules keyed by declared type.
type ArgumentNormalizer struct {
	rules map[DeclaredType][]RepairRule
}

// NewArgumentNormalizer returns a normalizer with the schema-echo rule for
// string parameters installed.
func NewArgumentNormalizer() *ArgumentNormalizer {
	n := &ArgumentNormalizer{rules: make(map[DeclaredType][]RepairRule)}
	n.RegisterRule(TypeString, SchemaEchoRule{})
	return n
}

// RegisterRule appends a rule for parameters declared as t.
func (n *ArgumentNormalizer) RegisterRule(t DeclaredType, rule RepairRule) {
	n.rules[t] = append(n.rules[t], rule)
}

// Normalize returns a new argument map. It never fails: keys the spec does
// not declare, values that already fit and values no rule recognizes all
// pass through unchanged for the validator to judge.
func (n *ArgumentNormalizer) Normalize(spec ToolSpec, raw map[string]literal.Value) Arguments {
	out, _ := n.NormalizeWithReport(spec, raw)
	return out
}

// NormalizeWithReport is Normalize plus the list of repairs applied.
func (n *ArgumentNormalizer) NormalizeWithReport(spec ToolSpec, raw map[string]literal.Value) (Arguments, []Repair) {
	out := make(Arguments, len(raw))
	var repairs []Repair
	for key, v := range raw {
		out[key] = v
		p, declared := spec.Parameter(key)
		if !declared || p.Type.Accepts(v) {
			continue
		}
		for _, rule := range n.rules[p.Type] {
			if fixed, ok := rule.Repair(p, v); ok && p.Type.Accepts(fixed) {
				out[key] = fixed
				repairs = append(repairs, Repair{Parameter: key, Rule: rule.Name(), Before: v.Shape()})
				break
			}
		}
	}
	return out, repairs
}

var schemaKeywords = map[string]struct{}{
	"type": {}, "description": {}, "required": {}, "enum": {}, "default": {},
	"title": {}, "examples": {}, "format": {}, "minLength": {}, "maxLength": {},
	"pattern": {}, "nullable": {},
}

// SchemaEchoRule undoes the model copying a parameter's schema fragment in
// place of its value: {"type": "string", "description": "hello"} becomes
// "hello". The type tag must name the parameter's declared type.
type SchemaEchoRule struct{}

func (SchemaEchoRule) Name() string { return "schema-echo" }

func (SchemaEchoRule) Repair(p ParameterSpec, v literal.Value) (literal.Value, bool) {
	if p.Type != TypeString || v.Kind() != literal.Object {
		return v, false
	}
	obj, _ := v.AsObject()
	for key := range obj {
		if _, ok := schemaKeywords[key]; !ok {
			return v, false
		}
	}
	tag, ok := obj["type"].AsString()
	if !ok || !strings.EqualFold(strings.TrimSpace(tag), string(p.Type)) {
		return v, false
	}
	desc, ok := obj["description"].AsString()
	if !ok {
		return v, false
	}
	return literal.StringValue(desc), true
}
