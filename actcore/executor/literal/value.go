// Package literal models the untyped values a language model supplies as tool
// arguments. A Value is a tagged union over the JSON data model with integers
// and floats kept apart, so declared parameter types can be checked exactly.
package literal

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// Kind tags the runtime shape of a Value.
type Kind uint8

const (
	Null Kind = iota
	String
	Integer
	Float
	Bool
	List
	Object
)

var kindNames = [...]string{
	Null:    "null",
	String:  "string",
	Integer: "integer",
	Float:   "float",
	Bool:    "boolean",
	List:    "list",
	Object:  "object",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", k)
}

// Value is an immutable literal. The zero Value is null.
type Value struct {
	kind Kind
	str  string
	num  int64
	flt  float64
	b    bool
	list []Value
	obj  map[string]Value
}

func NullValue() Value               { return Value{} }
func StringValue(s string) Value     { return Value{kind: String, str: s} }
func IntValue(i int64) Value         { return Value{kind: Integer, num: i} }
func FloatValue(f float64) Value     { return Value{kind: Float, flt: f} }
func BoolValue(b bool) Value         { return Value{kind: Bool, b: b} }
func ListValue(items ...Value) Value { return Value{kind: List, list: append([]Value(nil), items...)} }

// ObjectValue copies m so later mutation of the caller's map is not observed.
func ObjectValue(m map[string]Value) Value {
	cp := make(map[string]Value, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return Value{kind: Object, obj: cp}
}

func (v Value) Kind() Kind   { return v.kind }
func (v Value) IsNull() bool { return v.kind == Null }

func (v Value) AsString() (string, bool) { return v.str, v.kind == String }
func (v Value) AsInt() (int64, bool)     { return v.num, v.kind == Integer }
func (v Value) AsBool() (bool, bool)     { return v.b, v.kind == Bool }

// AsFloat accepts integers as well; the conversion is exact for |i| < 2^53.
func (v Value) AsFloat() (float64, bool) {
	switch v.kind {
	case Float:
		return v.flt, true
	case Integer:
		return float64(v.num), true
	}
	return 0, false
}

func (v Value) AsList() ([]Value, bool) {
	if v.kind != List {
		return nil, false
	}
	return append([]Value(nil), v.list...), true
}

func (v Value) AsObject() (map[string]Value, bool) {
	if v.kind != Object {
		return nil, false
	}
	cp := make(map[string]Value, len(v.obj))
	for k, item := range v.obj {
		cp[k] = item
	}
	return cp, true
}

// Field returns the member key of an object value.
func (v Value) Field(key string) (Value, bool) {
	if v.kind != Object {
		return Value{}, false
	}
	item, ok := v.obj[key]
	return item, ok
}

// Keys returns the sorted member names of an object value.
func (v Value) Keys() []string {
	if v.kind != Object {
		return nil
	}
	keys := make([]string, 0, len(v.obj))
	for k := range v.obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (v Value) Len() int {
	switch v.kind {
	case List:
		return len(v.list)
	case Object:
		return len(v.obj)
	case String:
		return len(v.str)
	}
	return 0
}

// Equal reports deep value equality. Integer 1 and float 1.0 are not equal.
func Equal(a, b Value) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case Null:
		return true
	case String:
		return a.str == b.str
	case Integer:
		return a.num == b.num
	case Float:
		return a.flt == b.flt || (math.IsNaN(a.flt) && math.IsNaN(b.flt))
	case Bool:
		return a.b == b.b
	case List:
		if len(a.list) != len(b.list) {
			return false
		}
		for i := range a.list {
			if !Equal(a.list[i], b.list[i]) {
				return false
			}
		}
		return true
	case Object:
		if len(a.obj) != len(b.obj) {
			return false
		}
		for k, av := range a.obj {
			bv, ok := b.obj[k]
			if !ok || !Equal(av, bv) {
				return false
			}
		}
		return true
	}
	return false
}

// EqualMaps compares two argument mappings member by member.
func EqualMaps(a, b map[string]Value) bool {
	if len(a) != len(b) {
		return false
	}
	for k, av := range a {
		bv, ok := b[k]
		if !ok || !Equal(av, bv) {
			return false
		}
	}
	return true
}

// Shape renders a short description of the runtime shape, used in
// field-level validation messages: "string", "list[3]", "object{description,type}".
func (v Value) Shape() string {
	switch v.kind {
	case List:
		return fmt.Sprintf("list[%d]", len(v.list))
	case Object:
		return "object{" + strings.Join(v.Keys(), ",") + "}"
	}
	return v.kind.String()
}

// Interface converts the value to plain Go data: nil, string, int64, float64,
// bool, []any or map[string]any.
func (v Value) Interface() any {
	switch v.kind {
	case String:
		return v.str
	case Integer:
		return v.num
	case Float:
		return v.flt
	case Bool:
		return v.b
	case List:
		out := make([]any, len(v.list))
		for i, item := range v.list {
			out[i] = item.Interface()
		}
		return out
	case Object:
		out := make(map[string]any, len(v.obj))
		for k, item := range v.obj {
			out[k] = item.Interface()
		}
		return out
	}
	return nil
}

func (v Value) String() string {
	switch v.kind {
	case String:
		return v.str
	case Null:
		return "null"
	}
	data, err := v.MarshalJSON()
	if err != nil {
		return v.Shape()
	}
	return string(data)
}
