package executor

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/xeipuuv/gojsonschema"

	"github.com/ZanzyTHEbar/agent-actions/actcore/executor/literal"
	ports "github.com/ZanzyTHEbar/agent-actions/actcore/executor/ports"
)

var (
	toolNamePattern  = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_.\-]*$`)
	paramNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
)

type registration struct {
	spec ToolSpec
	fn   ToolFunc
}

// ToolRegistry maps tool names to their specs and bound implementations.
// Register is not safe for concurrent use; once Seal has been called the
// registry is read-only and may be shared by any number of agents.
type ToolRegistry struct {
	order   []string
	entries map[string]registration
	sealed  bool
}

// NewToolRegistry creates an empty, unsealed registry.
func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{entries: make(map[string]registration)}
}

// Register adds a tool. Fails with ErrDuplicateTool when the name is taken.
func (r *ToolRegistry) Register(spec ToolSpec, fn ToolFunc) error {
	if r.sealed {
		return fmt.Errorf("%w: cannot register %q", ErrRegistrySealed, spec.Name)
	}
	if fn == nil {
		return fmt.Errorf("%w: %q has no implementation", ErrInvalidToolSpec, spec.Name)
	}
	if err := validateSpec(spec); err != nil {
		return err
	}
	if _, exists := r.entries[spec.Name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateTool, spec.Name)
	}

	spec = spec.clone()
	for i := range spec.Parameters {
		p := &spec.Parameters[i]
		if len(p.Schema) == 0 {
			continue
		}
		compiled, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(p.Schema))
		if err != nil {
			return fmt.Errorf("%w: %s.%s: schema: %v", ErrInvalidToolSpec, spec.Name, p.Name, err)
		}
		p.compiled = compiled
	}

	r.entries[spec.Name] = registration{spec: spec, fn: fn}
	r.order = append(r.order, spec.Name)
	return nil
}

// MustRegister is Register for static wiring; it panics on error.
func (r *ToolRegistry) MustRegister(spec ToolSpec, fn ToolFunc) {
	if err := r.Register(spec, fn); err != nil {
		panic(err)
	}
}

// Seal makes the registry read-only.
func (r *ToolRegistry) Seal() { r.sealed = true }

func (r *ToolRegistry) Sealed() bool { return r.sealed }

// Lookup returns the spec registered under name or ErrUnknownTool.
func (r *ToolRegistry) Lookup(name string) (ToolSpec, error) {
	entry, ok := r.entries[name]
	if !ok {
		return ToolSpec{}, fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}
	return entry.spec.clone(), nil
}

func (r *ToolRegistry) binding(name string) (ToolFunc, bool) {
	entry, ok := r.entries[name]
	return entry.fn, ok
}

// Names lists registered tools in registration order.
func (r *ToolRegistry) Names() []string {
	return append([]string(nil), r.order...)
}

// Describe renders the model-facing documentation of one tool: every
// parameter as a "name: type" pair and the rule that values are literals.
func (r *ToolRegistry) Describe(name string) (string, error) {
	spec, err := r.Lookup(name)
	if err != nil {
		return "", err
	}
	return describeSpec(spec), nil
}

// DescribeAll renders every tool in registration order.
func (r *ToolRegistry) DescribeAll() string {
	parts := make([]string, 0, len(r.order))
	for _, name := range r.order {
		parts = append(parts, describeSpec(r.entries[name].spec))
	}
	return strings.Join(parts, "\n\n")
}

// JSONSchema renders the argument schema of one tool for providers that
// accept native tool declarations.
func (r *ToolRegistry) JSONSchema(name string) ([]byte, error) {
	spec, err := r.Lookup(name)
	if err != nil {
		return nil, err
	}
	return renderSchema(spec)
}

// Declarations renders every tool as a native declaration carrying its JSON
// Schema. It is meant only for providers with native tool calling; the
// prompt text uses DescribeAll, which carries no schema fragments.
func (r *ToolRegistry) Declarations() ([]ports.ToolDeclaration, error) {
	out := make([]ports.ToolDeclaration, 0, len(r.order))
	for _, name := range r.order {
		spec := r.entries[name].spec
		schema, err := renderSchema(spec)
		if err != nil {
			return nil, err
		}
		out = append(out, ports.ToolDeclaration{
			Name:        spec.Name,
			Description: describeSpec(spec),
			JSONSchema:  schema,
		})
	}
	return out, nil
}

func validateSpec(spec ToolSpec) error {
	err := validation.ValidateStruct(&spec,
		validation.Field(&spec.Name, validation.Required, validation.Match(toolNamePattern).Error("must be an identifier")),
		validation.Field(&spec.Parameters, validation.Each(validation.By(validateParameter))),
	)
	if err != nil {
		return fmt.Errorf("%w: %q: %v", ErrInvalidToolSpec, spec.Name, err)
	}

	seen := make(map[string]struct{}, len(spec.Parameters))
	for _, p := range spec.Parameters {
		if _, dup := seen[p.Name]; dup {
			return fmt.Errorf("%w: %s: duplicate parameter %q", ErrInvalidToolSpec, spec.Name, p.Name)
		}
		seen[p.Name] = struct{}{}
	}
	return nil
}

func validateParameter(value interface{}) error {
	p, ok := value.(ParameterSpec)
	if !ok {
		return fmt.Errorf("unexpected parameter value %T", value)
	}
	return validation.ValidateStruct(&p,
		validation.Field(&p.Name, validation.Required, validation.Match(paramNamePattern).Error("must be an identifier")),
		validation.Field(&p.Type, validation.Required, validation.By(func(v interface{}) error {
			if t, _ := v.(DeclaredType); !t.Valid() {
				return fmt.Errorf("unknown declared type %q", v)
			}
			return nil
		})),
		validation.Field(&p.Default, validation.By(func(v interface{}) error {
			def, _ := v.(*literal.Value)
			if def != nil && !p.Type.Accepts(*def) {
				return fmt.Errorf("default %s does not match declared type %s", def.Shape(), p.Type)
			}
			return nil
		})),
	)
}

func describeSpec(spec ToolSpec) string {
	var b strings.Builder
	b.WriteString(spec.Name)
	if spec.Summary != "" {
		b.WriteString(" - ")
		b.WriteString(spec.Summary)
	}
	b.WriteByte('\n')

	if len(spec.Parameters) == 0 {
		b.WriteString("Parameters: none. Call it with empty arguments {}.")
		return b.String()
	}

	b.WriteString("Parameters:\n")
	for _, p := range spec.Parameters {
		fmt.Fprintf(&b, "  %s: %s", p.Name, p.Type)
		switch {
		case p.Required:
			b.WriteString(" (required)")
		case p.Default != nil:
			fmt.Fprintf(&b, " (optional, default %s)", p.Default.String())
		default:
			b.WriteString(" (optional)")
		}
		if p.Description != "" {
			b.WriteString(" - ")
			b.WriteString(p.Description)
		}
		b.WriteByte('\n')
	}

	first := spec.Parameters[0]
	fmt.Fprintf(&b,
		"Pass each value as a literal of the listed type, e.g. {%q: %s}. "+
			"Never pass a schema object such as {\"type\": \"%s\", \"description\": \"...\"} in place of a value.",
		first.Name, exampleLiteral(first.Type), first.Type)
	return b.String()
}

func exampleLiteral(t DeclaredType) string {
	switch t {
	case TypeInteger:
		return "3"
	case TypeFloat:
		return "0.5"
	case TypeBoolean:
		return "true"
	case TypeList:
		return `["a", "b"]`
	case TypeObject:
		return `{"key": "value"}`
	}
	return `"hello"`
}

func renderSchema(spec ToolSpec) ([]byte, error) {
	props := make(map[string]any, len(spec.Parameters))
	required := make([]string, 0)
	for _, p := range spec.Parameters {
		prop := map[string]any{"type": p.Type.jsonSchemaType()}
		if p.Description != "" {
			prop["description"] = p.Description
		}
		if p.Default != nil {
			prop["default"] = *p.Default
		}
		props[p.Name] = prop
		if p.Required {
			required = append(required, p.Name)
		}
	}
	sort.Strings(required)

	schema := map[string]any{
		"type":                 "object",
		"properties":           props,
		"additionalProperties": false,
	}
	if len(required) > 0 {
		schema["required"] = required
	}

	data, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("render schema for %s: %w", spec.Name, err)
	}
	if _, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(data)); err != nil {
		return nil, fmt.Errorf("render schema for %s: %w", spec.Name, err)
	}
	return data, nil
}
