package literal

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DecodeJSON decodes a single JSON document, keeping integers and floats apart.
func DecodeJSON(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return Value{}, fmt.Errorf("decode json literal: %w", err)
	}
	if dec.More() {
		return Value{}, fmt.Errorf("decode json literal: trailing data after value")
	}
	return FromInterface(raw)
}

// DecodeYAML decodes a single YAML document.
func DecodeYAML(data []byte) (Value, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Value{}, fmt.Errorf("decode yaml literal: %w", err)
	}
	return FromInterface(raw)
}

// FromInterface converts decoded JSON/YAML data or plain Go values into a Value.
func FromInterface(raw any) (Value, error) {
	switch v := raw.(type) {
	case nil:
		return NullValue(), nil
	case Value:
		return v, nil
	case string:
		return StringValue(v), nil
	case bool:
		return BoolValue(v), nil
	case json.Number:
		return fromNumber(string(v))
	case int:
		return IntValue(int64(v)), nil
	case int8:
		return IntValue(int64(v)), nil
	case int16:
		return IntValue(int64(v)), nil
	case int32:
		return IntValue(int64(v)), nil
	case int64:
		return IntValue(v), nil
	case uint:
		return fromUnsigned(uint64(v))
	case uint8:
		return IntValue(int64(v)), nil
	case uint16:
		return IntValue(int64(v)), nil
	case uint32:
		return IntValue(int64(v)), nil
	case uint64:
		return fromUnsigned(v)
	case float32:
		return FloatValue(float64(v)), nil
	case float64:
		return FloatValue(v), nil
	case time.Time:
		return StringValue(v.Format(time.RFC3339)), nil
	case []any:
		items := make([]Value, len(v))
		for i, item := range v {
			conv, err := FromInterface(item)
			if err != nil {
				return Value{}, fmt.Errorf("index %d: %w", i, err)
			}
			items[i] = conv
		}
		return Value{kind: List, list: items}, nil
	case map[string]any:
		obj := make(map[string]Value, len(v))
		for k, item := range v {
			conv, err := FromInterface(item)
			if err != nil {
				return Value{}, fmt.Errorf("key %q: %w", k, err)
			}
			obj[k] = conv
		}
		return Value{kind: Object, obj: obj}, nil
	case map[any]any:
		obj := make(map[string]Value, len(v))
		for k, item := range v {
			key, ok := k.(string)
			if !ok {
				key = fmt.Sprint(k)
			}
			conv, err := FromInterface(item)
			if err != nil {
				return Value{}, fmt.Errorf("key %q: %w", key, err)
			}
			obj[key] = conv
		}
		return Value{kind: Object, obj: obj}, nil
	}
	return fromReflect(raw)
}

// MustFrom is FromInterface for static test and registration data.
func MustFrom(raw any) Value {
	v, err := FromInterface(raw)
	if err != nil {
		panic(err)
	}
	return v
}

func fromReflect(raw any) (Value, error) {
	rv := reflect.ValueOf(raw)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		items := make([]Value, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			conv, err := FromInterface(rv.Index(i).Interface())
			if err != nil {
				return Value{}, err
			}
			items[i] = conv
		}
		return Value{kind: List, list: items}, nil
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			break
		}
		obj := make(map[string]Value, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			conv, err := FromInterface(iter.Value().Interface())
			if err != nil {
				return Value{}, err
			}
			obj[iter.Key().String()] = conv
		}
		return Value{kind: Object, obj: obj}, nil
	}
	return Value{}, fmt.Errorf("unsupported literal type %T", raw)
}

func fromNumber(s string) (Value, error) {
	if !strings.ContainsAny(s, ".eE") {
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return IntValue(i), nil
		}
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return Value{}, fmt.Errorf("invalid number %q: %w", s, err)
	}
	return FloatValue(f), nil
}

func fromUnsigned(u uint64) (Value, error) {
	if u > math.MaxInt64 {
		return FloatValue(float64(u)), nil
	}
	return IntValue(int64(u)), nil
}

// ParseScalar interprets the right-hand side of an inline "key: value" or
// "key=value" pair. JSON-looking text is decoded as JSON; anything else is a
// bare string with surrounding whitespace trimmed.
func ParseScalar(s string) Value {
	s = strings.TrimSpace(s)
	if s == "" {
		return StringValue("")
	}
	switch {
	case s == "true" || s == "false" || s == "null":
		v, _ := DecodeJSON([]byte(s))
		return v
	case strings.HasPrefix(s, `"`) && strings.HasSuffix(s, `"`) && len(s) >= 2,
		strings.HasPrefix(s, "{") && strings.HasSuffix(s, "}"),
		strings.HasPrefix(s, "[") && strings.HasSuffix(s, "]"):
		if v, err := DecodeJSON([]byte(s)); err == nil {
			return v
		}
	case strings.HasPrefix(s, "'") && strings.HasSuffix(s, "'") && len(s) >= 2:
		return StringValue(s[1 : len(s)-1])
	}
	if v, err := fromNumber(s); err == nil && looksNumeric(s) {
		return v
	}
	return StringValue(s)
}

func looksNumeric(s string) bool {
	for i, r := range s {
		switch {
		case r >= '0' && r <= '9':
		case (r == '-' || r == '+') && i == 0:
		case r == '.' || r == 'e' || r == 'E':
		default:
			return false
		}
	}
	return true
}

// MarshalJSON encodes the value; object members are emitted in sorted order.
func (v Value) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := v.writeJSON(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (v Value) writeJSON(buf *bytes.Buffer) error {
	switch v.kind {
	case Null:
		buf.WriteString("null")
	case String:
		enc, err := json.Marshal(v.str)
		if err != nil {
			return err
		}
		buf.Write(enc)
	case Integer:
		buf.WriteString(strconv.FormatInt(v.num, 10))
	case Float:
		if math.IsNaN(v.flt) || math.IsInf(v.flt, 0) {
			return fmt.Errorf("unsupported float value %v", v.flt)
		}
		s := strconv.FormatFloat(v.flt, 'g', -1, 64)
		if !strings.ContainsAny(s, ".eE") {
			s += ".0"
		}
		buf.WriteString(s)
	case Bool:
		buf.WriteString(strconv.FormatBool(v.b))
	case List:
		buf.WriteByte('[')
		for i, item := range v.list {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := item.writeJSON(buf); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case Object:
		buf.WriteByte('{')
		for i, k := range v.Keys() {
			if i > 0 {
				buf.WriteByte(',')
			}
			key, err := json.Marshal(k)
			if err != nil {
				return err
			}
			buf.Write(key)
			buf.WriteByte(':')
			if err := v.obj[k].writeJSON(buf); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	}
	return nil
}

// UnmarshalJSON decodes with integer/float separation preserved.
func (v *Value) UnmarshalJSON(data []byte) error {
	decoded, err := DecodeJSON(data)
	if err != nil {
		return err
	}
	*v = decoded
	return nil
}
