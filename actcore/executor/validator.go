package executor

import (
	"sort"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/ZanzyTHEbar/agent-actions/actcore/executor/literal"
)

// TypeValidator certifies that arguments satisfy a tool's contract exactly.
type TypeValidator struct{}

func NewTypeValidator() *TypeValidator { return &TypeValidator{} }

// Validate checks required parameters first, then undeclared extras, then
// each value's shape, and reports the first violation as a *ValidationError.
// On success it returns a new map with defaults substituted for omitted
// optional parameters.
func (v *TypeValidator) Validate(spec ToolSpec, args Arguments) (Arguments, error) {
	for _, p := range spec.Parameters {
		if _, ok := args[p.Name]; !ok && p.Required {
			return nil, &ValidationError{
				Tool: spec.Name, Field: p.Name, Reason: ReasonMissing,
				Expected: string(p.Type), Actual: "nothing",
			}
		}
	}

	extras := make([]string, 0)
	for key := range args {
		if _, declared := spec.Parameter(key); !declared {
			extras = append(extras, key)
		}
	}
	if len(extras) > 0 {
		sort.Strings(extras)
		return nil, &ValidationError{
			Tool: spec.Name, Field: extras[0], Reason: ReasonUnexpected,
			Expected: "one of " + declaredNames(spec), Actual: args[extras[0]].Shape(),
		}
	}

	out := make(Arguments, len(spec.Parameters))
	for _, p := range spec.Parameters {
		value, present := args[p.Name]
		if !present {
			if p.Default != nil {
				out[p.Name] = *p.Default
			}
			continue
		}
		if !p.Type.Accepts(value) {
			return nil, &ValidationError{
				Tool: spec.Name, Field: p.Name, Reason: ReasonMismatch,
				Expected: string(p.Type), Actual: value.Shape(),
			}
		}
		if p.compiled != nil {
			if err := checkSchema(p.compiled, value); err != "" {
				return nil, &ValidationError{
					Tool: spec.Name, Field: p.Name, Reason: ReasonSchema,
					Expected: string(p.Type) + " matching its schema", Actual: err,
				}
			}
		}
		out[p.Name] = value
	}
	return out, nil
}

func checkSchema(schema *gojsonschema.Schema, value literal.Value) string {
	data, err := value.MarshalJSON()
	if err != nil {
		return err.Error()
	}
	result, err := schema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return err.Error()
	}
	if result.Valid() {
		return ""
	}
	msgs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		msgs = append(msgs, e.String())
	}
	return strings.Join(msgs, "; ")
}

func declaredNames(spec ToolSpec) string {
	if len(spec.Parameters) == 0 {
		return "no parameters"
	}
	names := make([]string, len(spec.Parameters))
	for i, p := range spec.Parameters {
		names[i] = p.Name
	}
	return "[" + strings.Join(names, ", ") + "]"
}
