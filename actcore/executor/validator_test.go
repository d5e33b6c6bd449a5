package executor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZanzyTHEbar/agent-actions/actcore/executor/literal"
)

func listFilesSpec() ToolSpec {
	limit := literal.IntValue(100)
	return ToolSpec{
		Name: "list_files",
		Parameters: []ParameterSpec{
			{Name: "path", Type: TypeString, Required: true},
			{Name: "limit", Type: TypeInteger, Default: &limit},
			{Name: "ratio", Type: TypeFloat},
		},
	}
}

func requireValidationError(t *testing.T, err error) *ValidationError {
	t.Helper()
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	return verr
}

func TestTypeValidator_SubstitutesDefaults(t *testing.T) {
	out, err := NewTypeValidator().Validate(listFilesSpec(), Arguments{"path": literal.StringValue("docs")})
	require.NoError(t, err)

	limit, ok := out["limit"].AsInt()
	require.True(t, ok)
	assert.Equal(t, int64(100), limit)
	assert.NotContains(t, out, "ratio")
}

func TestTypeValidator_MissingRequired(t *testing.T) {
	_, err := NewTypeValidator().Validate(listFilesSpec(), Arguments{"limit": literal.IntValue(1)})

	verr := requireValidationError(t, err)
	assert.Equal(t, "path", verr.Field)
	assert.Equal(t, ReasonMissing, verr.Reason)
	assert.Contains(t, err.Error(), `"path"`)
}

func TestTypeValidator_RejectsExtrasInSortedOrder(t *testing.T) {
	args := Arguments{
		"path":  literal.StringValue("docs"),
		"zeta":  literal.IntValue(1),
		"alpha": literal.IntValue(2),
	}

	_, err := NewTypeValidator().Validate(listFilesSpec(), args)
	verr := requireValidationError(t, err)
	assert.Equal(t, "alpha", verr.Field)
	assert.Equal(t, ReasonUnexpected, verr.Reason)
}

func TestTypeValidator_RequiredCheckedBeforeExtras(t *testing.T) {
	_, err := NewTypeValidator().Validate(listFilesSpec(), Arguments{"bogus": literal.IntValue(1)})
	verr := requireValidationError(t, err)
	assert.Equal(t, "path", verr.Field)
}

func TestTypeValidator_ExactShapes(t *testing.T) {
	tests := []struct {
		name  string
		args  Arguments
		field string
	}{
		{name: "string for integer", args: Arguments{"path": literal.StringValue("a"), "limit": literal.StringValue("5")}, field: "limit"},
		{name: "float for integer", args: Arguments{"path": literal.StringValue("a"), "limit": literal.FloatValue(5)}, field: "limit"},
		{name: "object for string", args: Arguments{"path": schemaEcho("integer", "42")}, field: "path"},
		{name: "null for string", args: Arguments{"path": literal.NullValue()}, field: "path"},
		{name: "string for float", args: Arguments{"path": literal.StringValue("a"), "ratio": literal.StringValue("0.5")}, field: "ratio"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewTypeValidator().Validate(listFilesSpec(), tt.args)
			verr := requireValidationError(t, err)
			assert.Equal(t, tt.field, verr.Field)
			assert.Equal(t, ReasonMismatch, verr.Reason)
		})
	}
}

func TestTypeValidator_IntegerDoesNotSatisfyFloat(t *testing.T) {
	_, err := NewTypeValidator().Validate(listFilesSpec(), Arguments{
		"path":  literal.StringValue("a"),
		"ratio": literal.IntValue(2),
	})
	verr := requireValidationError(t, err)
	assert.Equal(t, "ratio", verr.Field)
	assert.Equal(t, ReasonMismatch, verr.Reason)
	assert.Equal(t, "float", verr.Expected)
	assert.Equal(t, "integer", verr.Actual)
}

func TestTypeValidator_AcceptsFloatForFloat(t *testing.T) {
	out, err := NewTypeValidator().Validate(listFilesSpec(), Arguments{
		"path":  literal.StringValue("a"),
		"ratio": literal.FloatValue(2.0),
	})
	require.NoError(t, err)
	f, ok := out["ratio"].AsFloat()
	require.True(t, ok)
	assert.Equal(t, 2.0, f)
}

func TestTypeValidator_ParameterSchema(t *testing.T) {
	r := NewToolRegistry()
	r.MustRegister(ToolSpec{
		Name: "tag",
		Parameters: []ParameterSpec{
			{Name: "labels", Type: TypeList, Required: true, Schema: []byte(`{"type": "array", "items": {"type": "string"}}`)},
		},
	}, noopTool)
	spec, err := r.Lookup("tag")
	require.NoError(t, err)

	_, err = NewTypeValidator().Validate(spec, Arguments{"labels": literal.ListValue(literal.StringValue("a"))})
	require.NoError(t, err)

	_, err = NewTypeValidator().Validate(spec, Arguments{"labels": literal.ListValue(literal.IntValue(1))})
	verr := requireValidationError(t, err)
	assert.Equal(t, "labels", verr.Field)
	assert.Equal(t, ReasonSchema, verr.Reason)
}

func TestTypeValidator_DoesNotMutateInput(t *testing.T) {
	args := Arguments{"path": literal.StringValue("a")}
	_, err := NewTypeValidator().Validate(listFilesSpec(), args)
	require.NoError(t, err)
	assert.Len(t, args, 1)
}
