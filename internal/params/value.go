package params

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Kind identifies which member of the Value union is set
type Kind int

const (
	KindInvalid Kind = iota
	KindString
	KindNumber
	KindBool
	KindStringArray
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	case KindStringArray:
		return "string[]"
	}
	return "invalid"
}

// Value is a model input parameter value: a string, a number, a bool or a list of strings.
// The zero Value is invalid and is never sent to a provider.
type Value struct {
	kind Kind
	str  string
	num  float64
	b    bool
	arr  []string
}

// String builds a string Value
func String(s string) Value { return Value{kind: KindString, str: s} }

// Number builds a numeric Value
func Number(n float64) Value { return Value{kind: KindNumber, num: n} }

// Int builds a numeric Value from an integer
func Int(n int) Value { return Value{kind: KindNumber, num: float64(n)} }

// Bool builds a boolean Value
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// StringArray builds a string list Value
func StringArray(items ...string) Value {
	cp := make([]string, len(items))
	copy(cp, items)
	return Value{kind: KindStringArray, arr: cp}
}

// Kind returns the union member held by v
func (v Value) Kind() Kind { return v.kind }

// IsValid reports whether v holds a value
func (v Value) IsValid() bool { return v.kind != KindInvalid }

// Str returns the string member and whether v is a string
func (v Value) Str() (string, bool) { return v.str, v.kind == KindString }

// Num returns the numeric member and whether v is a number
func (v Value) Num() (float64, bool) { return v.num, v.kind == KindNumber }

// BoolVal returns the boolean member and whether v is a bool
func (v Value) BoolVal() (bool, bool) { return v.b, v.kind == KindBool }

// Strings returns a copy of the list member and whether v is a list
func (v Value) Strings() ([]string, bool) {
	if v.kind != KindStringArray {
		return nil, false
	}
	cp := make([]string, len(v.arr))
	copy(cp, v.arr)
	return cp, true
}

// Interface returns the plain Go value used when encoding a provider payload
func (v Value) Interface() interface{} {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		if v.num == math.Trunc(v.num) && math.Abs(v.num) < 1<<53 {
			return int64(v.num)
		}
		return v.num
	case KindBool:
		return v.b
	case KindStringArray:
		cp := make([]string, len(v.arr))
		copy(cp, v.arr)
		return cp
	}
	return nil
}

// Equal reports whether two values hold the same member and content
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindString:
		return v.str == o.str
	case KindNumber:
		return v.num == o.num
	case KindBool:
		return v.b == o.b
	case KindStringArray:
		if len(v.arr) != len(o.arr) {
			return false
		}
		for i := range v.arr {
			if v.arr[i] != o.arr[i] {
				return false
			}
		}
	}
	return true
}

func (v Value) String() string {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindStringArray:
		data, _ := json.Marshal(v.arr)
		return string(data)
	}
	return "<invalid>"
}

// MarshalJSON implements json.Marshaler
func (v Value) MarshalJSON() ([]byte, error) {
	if v.kind == KindInvalid {
		return []byte("null"), nil
	}
	return json.Marshal(v.Interface())
}

// UnmarshalJSON implements json.Unmarshaler
func (v *Value) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw interface{}
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	parsed, err := FromAny(raw)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// MarshalYAML implements yaml.Marshaler
func (v Value) MarshalYAML() (interface{}, error) {
	return v.Interface(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler
func (v *Value) UnmarshalYAML(node *yaml.Node) error {
	var raw interface{}
	if err := node.Decode(&raw); err != nil {
		return err
	}
	parsed, err := FromAny(raw)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*v = parsed
	return nil
}

// FromAny converts a decoded JSON or YAML value into a Value
func FromAny(raw interface{}) (Value, error) {
	switch t := raw.(type) {
	case string:
		return String(t), nil
	case bool:
		return Bool(t), nil
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return Value{}, fmt.Errorf("invalid number %q: %w", t.String(), err)
		}
		return Number(f), nil
	case float64:
		return Number(t), nil
	case float32:
		return Number(float64(t)), nil
	case int:
		return Number(float64(t)), nil
	case int64:
		return Number(float64(t)), nil
	case []string:
		return StringArray(t...), nil
	case []interface{}:
		items := make([]string, 0, len(t))
		for i, item := range t {
			s, ok := item.(string)
			if !ok {
				return Value{}, fmt.Errorf("array element %d is %T, only strings are supported", i, item)
			}
			items = append(items, s)
		}
		return StringArray(items...), nil
	case Value:
		return t, nil
	case nil:
		return Value{}, fmt.Errorf("null is not a parameter value")
	}
	return Value{}, fmt.Errorf("unsupported parameter value of type %T", raw)
}
