package params

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Type is the declared JSON-schema type of a model input
type Type string

const (
	TypeUnknown Type = ""
	TypeString  Type = "string"
	TypeInteger Type = "integer"
	TypeNumber  Type = "number"
	TypeBoolean Type = "boolean"
	TypeArray   Type = "array"
)

// ParseType maps a schema "type" keyword onto a Type
func ParseType(s string) Type {
	switch strings.ToLower(s) {
	case "string":
		return TypeString
	case "integer":
		return TypeInteger
	case "number", "float":
		return TypeNumber
	case "boolean", "bool":
		return TypeBoolean
	case "array":
		return TypeArray
	}
	return TypeUnknown
}

// Params maps schema field names onto values
type Params map[string]Value

// Clone returns a shallow copy (values are immutable)
func (p Params) Clone() Params {
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Merge returns a copy of p with every entry of other written on top
func (p Params) Merge(other Params) Params {
	out := p.Clone()
	for k, v := range other {
		out[k] = v
	}
	return out
}

// Keys returns the field names in sorted order
func (p Params) Keys() []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Payload converts p into the plain map sent as a prediction input.
// Invalid values are dropped.
func (p Params) Payload() map[string]interface{} {
	out := make(map[string]interface{}, len(p))
	for k, v := range p {
		if !v.IsValid() {
			continue
		}
		out[k] = v.Interface()
	}
	return out
}

// FromMap converts a decoded JSON object into Params
func FromMap(raw map[string]interface{}) (Params, error) {
	out := make(Params, len(raw))
	for k, item := range raw {
		v, err := FromAny(item)
		if err != nil {
			return nil, fmt.Errorf("parameter %q: %w", k, err)
		}
		out[k] = v
	}
	return out, nil
}

// Coerce converts v to the declared schema type.
// Strings are parsed into numbers and booleans, scalars are wrapped into one element
// arrays and numbers/bools are formatted when a string is expected.
// TypeUnknown leaves v untouched.
func Coerce(v Value, declared Type) (Value, error) {
	if !v.IsValid() {
		return v, fmt.Errorf("invalid value")
	}

	switch declared {
	case TypeUnknown:
		return v, nil

	case TypeString:
		if v.kind == KindStringArray {
			if len(v.arr) == 1 {
				return String(v.arr[0]), nil
			}
			return v, fmt.Errorf("expected string, got %d element list", len(v.arr))
		}
		if v.kind == KindString {
			return v, nil
		}
		return String(v.String()), nil

	case TypeInteger:
		n, err := toNumber(v)
		if err != nil {
			return v, err
		}
		if n != float64(int64(n)) {
			return v, fmt.Errorf("expected integer, got %v", n)
		}
		return Number(n), nil

	case TypeNumber:
		n, err := toNumber(v)
		if err != nil {
			return v, err
		}
		return Number(n), nil

	case TypeBoolean:
		switch v.kind {
		case KindBool:
			return v, nil
		case KindString:
			b, err := strconv.ParseBool(strings.TrimSpace(v.str))
			if err != nil {
				return v, fmt.Errorf("expected boolean, got %q", v.str)
			}
			return Bool(b), nil
		case KindNumber:
			return Bool(v.num != 0), nil
		}
		return v, fmt.Errorf("expected boolean, got %s", v.kind)

	case TypeArray:
		switch v.kind {
		case KindStringArray:
			return v, nil
		case KindString:
			if v.str == "" {
				return StringArray(), nil
			}
			return StringArray(v.str), nil
		}
		return StringArray(v.String()), nil
	}

	return v, fmt.Errorf("unsupported schema type %q", declared)
}

func toNumber(v Value) (float64, error) {
	switch v.kind {
	case KindNumber:
		return v.num, nil
	case KindString:
		n, err := strconv.ParseFloat(strings.TrimSpace(v.str), 64)
		if err != nil {
			return 0, fmt.Errorf("expected number, got %q", v.str)
		}
		return n, nil
	case KindBool:
		if v.b {
			return 1, nil
		}
		return 0, nil
	}
	return 0, fmt.Errorf("expected number, got %s", v.kind)
}

// CoerceAll coerces every entry of p against the declared types.
// Fields with no declared type pass through unchanged.
func CoerceAll(p Params, types map[string]Type) (Params, error) {
	out := make(Params, len(p))
	for _, k := range p.Keys() {
		v, err := Coerce(p[k], types[k])
		if err != nil {
			return nil, fmt.Errorf("parameter %q: %w", k, err)
		}
		out[k] = v
	}
	return out, nil
}
