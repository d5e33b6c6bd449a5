package literal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeJSON_KeepsIntegersAndFloatsApart(t *testing.T) {
	v, err := DecodeJSON([]byte(`{"count": 3, "ratio": 0.5, "big": 1e3, "name": "x", "ok": true, "tags": ["a", 1], "none": null}`))
	require.NoError(t, err)
	require.Equal(t, Object, v.Kind())

	count, _ := v.Field("count")
	assert.Equal(t, Integer, count.Kind())
	ratio, _ := v.Field("ratio")
	assert.Equal(t, Float, ratio.Kind())
	big, _ := v.Field("big")
	assert.Equal(t, Float, big.Kind())
	ok, _ := v.Field("ok")
	assert.Equal(t, Bool, ok.Kind())
	none, _ := v.Field("none")
	assert.True(t, none.IsNull())

	tags, _ := v.Field("tags")
	items, isList := tags.AsList()
	require.True(t, isList)
	assert.Equal(t, String, items[0].Kind())
	assert.Equal(t, Integer, items[1].Kind())
}

func TestDecodeJSON_RejectsTrailingData(t *testing.T) {
	_, err := DecodeJSON([]byte(`{"a": 1} {"b": 2}`))
	assert.Error(t, err)
}

func TestDecodeYAML(t *testing.T) {
	v, err := DecodeYAML([]byte("content: hello\nretries: 2\nweight: 1.5\nflags:\n  - on\n"))
	require.NoError(t, err)

	content, _ := v.Field("content")
	s, ok := content.AsString()
	require.True(t, ok)
	assert.Equal(t, "hello", s)

	retries, _ := v.Field("retries")
	assert.Equal(t, Integer, retries.Kind())
	weight, _ := v.Field("weight")
	assert.Equal(t, Float, weight.Kind())
}

func TestParseScalar(t *testing.T) {
	tests := []struct {
		in   string
		kind Kind
		want any
	}{
		{in: "hello world", kind: String, want: "hello world"},
		{in: `"quoted"`, kind: String, want: "quoted"},
		{in: "'single'", kind: String, want: "single"},
		{in: "42", kind: Integer, want: int64(42)},
		{in: "-7", kind: Integer, want: int64(-7)},
		{in: "2.5", kind: Float, want: 2.5},
		{in: "true", kind: Bool, want: true},
		{in: "null", kind: Null, want: nil},
		{in: "e", kind: String, want: "e"},
		{in: "v1.2.3", kind: String, want: "v1.2.3"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			v := ParseScalar(tt.in)
			assert.Equal(t, tt.kind, v.Kind())
			assert.Equal(t, tt.want, v.Interface())
		})
	}

	obj := ParseScalar(`{"type": "string"}`)
	assert.Equal(t, Object, obj.Kind())
}

func TestEqual(t *testing.T) {
	a := MustFrom(map[string]any{"x": []any{int64(1), "two"}, "y": true})
	b := MustFrom(map[string]any{"y": true, "x": []any{1, "two"}})
	assert.True(t, Equal(a, b))

	assert.False(t, Equal(IntValue(1), FloatValue(1)))
	assert.False(t, Equal(StringValue("a"), StringValue("b")))
	assert.True(t, Equal(NullValue(), Value{}))
}

func TestShape(t *testing.T) {
	assert.Equal(t, "string", StringValue("x").Shape())
	assert.Equal(t, "list[2]", ListValue(IntValue(1), IntValue(2)).Shape())
	obj := MustFrom(map[string]any{"type": "string", "description": "hi"})
	assert.Equal(t, "object{description,type}", obj.Shape())
}

func TestMarshalJSON_SortedAndTyped(t *testing.T) {
	v := MustFrom(map[string]any{"b": 2.0, "a": int64(1), "c": []any{"x"}})
	data, err := v.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `{"a":1,"b":2.0,"c":["x"]}`, string(data))

	back, err := DecodeJSON(data)
	require.NoError(t, err)
	assert.True(t, Equal(v, back))
}

func TestObjectValue_CopiesInput(t *testing.T) {
	m := map[string]Value{"a": IntValue(1)}
	v := ObjectValue(m)
	m["a"] = IntValue(2)

	got, _ := v.Field("a")
	n, _ := got.AsInt()
	assert.Equal(t, int64(1), n)
}
