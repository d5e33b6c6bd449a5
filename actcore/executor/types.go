package executor

import (
	"context"
	"encoding/json"

	"github.com/ZanzyTHEbar/agent-actions/actcore/executor/literal"
	"github.com/xeipuuv/gojsonschema"
)

// DeclaredType is the contract type of a tool parameter.
type DeclaredType string

const (
	TypeString  DeclaredType = "string"
	TypeInteger DeclaredType = "integer"
	TypeFloat   DeclaredType = "float"
	TypeBoolean DeclaredType = "boolean"
	TypeList    DeclaredType = "list"
	TypeObject  DeclaredType = "object"
)

// Valid reports whether t is one of the supported declared types.
func (t DeclaredType) Valid() bool {
	switch t {
	case TypeString, TypeInteger, TypeFloat, TypeBoolean, TypeList, TypeObject:
		return true
	}
	return false
}

// Accepts reports whether v has exactly the shape t declares. There is no
// numeric widening.
func (t DeclaredType) Accepts(v literal.Value) bool {
	switch t {
	case TypeString:
		return v.Kind() == literal.String
	case TypeInteger:
		return v.Kind() == literal.Integer
	case TypeFloat:
		return v.Kind() == literal.Float
	case TypeBoolean:
		return v.Kind() == literal.Bool
	case TypeList:
		return v.Kind() == literal.List
	case TypeObject:
		return v.Kind() == literal.Object
	}
	return false
}

func (t DeclaredType) jsonSchemaType() string {
	switch t {
	case TypeFloat:
		return "number"
	case TypeList:
		return "array"
	}
	return string(t)
}

// ParameterSpec declares one tool parameter.
type ParameterSpec struct {
	Name        string
	Type        DeclaredType
	Required    bool
	Default     *literal.Value
	Description string
	// Schema optionally constrains list/object values further (JSON Schema).
	Schema []byte

	compiled *gojsonschema.Schema
}

// ToolSpec is the typed contract a tool implementation satisfies.
type ToolSpec struct {
	Name       string
	Summary    string
	Parameters []ParameterSpec
}

// Parameter returns the declared parameter called name.
func (s ToolSpec) Parameter(name string) (ParameterSpec, bool) {
	for _, p := range s.Parameters {
		if p.Name == name {
			return p, true
		}
	}
	return ParameterSpec{}, false
}

func (s ToolSpec) clone() ToolSpec {
	out := s
	out.Parameters = append([]ParameterSpec(nil), s.Parameters...)
	return out
}

// ActionRequest is the tool name and raw arguments recovered from model text.
// It is never mutated after parsing.
type ActionRequest struct {
	ToolName     string
	RawArguments map[string]literal.Value
	// Encoding names the form the action was found in: "json-fence",
	// "yaml-fence", "fence", "json", "call" or "inline".
	Encoding string

	offset int
}

func (r ActionRequest) MarshalJSON() ([]byte, error) {
	args := r.RawArguments
	if args == nil {
		args = map[string]literal.Value{}
	}
	return json.Marshal(struct {
		ToolName  string                   `json:"tool_name"`
		Arguments map[string]literal.Value `json:"arguments"`
		Encoding  string                   `json:"encoding,omitempty"`
	}{r.ToolName, args, r.Encoding})
}

// Arguments maps parameter names to literal values; produced by the
// normalizer and certified by the validator.
type Arguments map[string]literal.Value

func (a Arguments) clone() Arguments {
	out := make(Arguments, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

// Args is what a tool implementation receives: validated values in declared
// parameter order. Optional parameters without a default that the model
// omitted are null.
type Args struct {
	names  []string
	values []literal.Value
}

func newArgs(spec ToolSpec, args Arguments) Args {
	out := Args{
		names:  make([]string, len(spec.Parameters)),
		values: make([]literal.Value, len(spec.Parameters)),
	}
	for i, p := range spec.Parameters {
		out.names[i] = p.Name
		out.values[i] = args[p.Name]
	}
	return out
}

// NewArgs builds Args directly; intended for tests of tool implementations.
func NewArgs(spec ToolSpec, args Arguments) Args { return newArgs(spec, args) }

func (a Args) Len() int                { return len(a.values) }
func (a Args) At(i int) literal.Value  { return a.values[i] }
func (a Args) Names() []string         { return append([]string(nil), a.names...) }
func (a Args) Values() []literal.Value { return append([]literal.Value(nil), a.values...) }

// Value returns the argument bound to the named parameter.
func (a Args) Value(name string) (literal.Value, bool) {
	for i, n := range a.names {
		if n == name {
			return a.values[i], true
		}
	}
	return literal.Value{}, false
}

// Has reports whether the named parameter carries a non-null value.
func (a Args) Has(name string) bool {
	v, ok := a.Value(name)
	return ok && !v.IsNull()
}

func (a Args) String(name string) string {
	v, _ := a.Value(name)
	s, _ := v.AsString()
	return s
}

func (a Args) Int(name string) int64 {
	v, _ := a.Value(name)
	i, _ := v.AsInt()
	return i
}

func (a Args) Float(name string) float64 {
	v, _ := a.Value(name)
	f, _ := v.AsFloat()
	return f
}

func (a Args) Bool(name string) bool {
	v, _ := a.Value(name)
	b, _ := v.AsBool()
	return b
}

func (a Args) List(name string) []literal.Value {
	v, _ := a.Value(name)
	l, _ := v.AsList()
	return l
}

func (a Args) Object(name string) map[string]literal.Value {
	v, _ := a.Value(name)
	o, _ := v.AsObject()
	return o
}

// ToolFunc is the callable bound to a ToolSpec. A returned error (or a panic)
// is reported as a ToolExecutionError observation.
type ToolFunc func(ctx context.Context, args Args) (any, error)
