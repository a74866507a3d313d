package arg

import (
	"fmt"
	"strconv"
	"strings"
)

// Type is the concrete scalar type of a Value.
type Type uint8

const (
	TypeInvalid Type = iota
	TypeInt
	TypeFloat
	TypeString
	TypeBool
)

// String returns the lower-case name of the type.
func (t Type) String() string {
	switch t {
	case TypeInt:
		return "int"
	case TypeFloat:
		return "float"
	case TypeString:
		return "string"
	case TypeBool:
		return "bool"
	default:
		return "invalid"
	}
}

// ParseType is the inverse of Type.String.
func ParseType(s string) (Type, error) {
	switch s {
	case "int":
		return TypeInt, nil
	case "float":
		return TypeFloat, nil
	case "string":
		return TypeString, nil
	case "bool":
		return TypeBool, nil
	default:
		return TypeInvalid, fmt.Errorf("unknown argument type %q", s)
	}
}

// Value is a scalar or list argument value. The zero Value means "absent".
type Value struct {
	typ   Type
	list  bool
	i     int64
	f     float64
	s     string
	b     bool
	elems []Value
}

// Int returns an int scalar.
func Int(v int64) Value { return Value{typ: TypeInt, i: v} }

// Float returns a float scalar.
func Float(v float64) Value { return Value{typ: TypeFloat, f: v} }

// String returns a string scalar.
func String(v string) Value { return Value{typ: TypeString, s: v} }

// Bool returns a bool scalar.
func Bool(v bool) Value { return Value{typ: TypeBool, b: v} }

// List returns a list holding copies of elems. The elements may have mixed types.
func List(elems ...Value) Value {
	out := make([]Value, len(elems))
	copy(out, elems)
	return Value{list: true, elems: out}
}

// Ints is a convenience constructor for an int list.
func Ints(vs ...int) Value {
	elems := make([]Value, len(vs))
	for i, v := range vs {
		elems[i] = Int(int64(v))
	}
	return Value{list: true, elems: elems}
}

// Floats is a convenience constructor for a float list.
func Floats(vs ...float64) Value {
	elems := make([]Value, len(vs))
	for i, v := range vs {
		elems[i] = Float(v)
	}
	return Value{list: true, elems: elems}
}

// Strings is a convenience constructor for a string list.
func Strings(vs ...string) Value {
	elems := make([]Value, len(vs))
	for i, v := range vs {
		elems[i] = String(v)
	}
	return Value{list: true, elems: elems}
}

// Of converts a native Go value into a Value. Supported inputs are the Go
// integer and float kinds, string, bool, Value itself, and slices of those.
// A nil input yields the absent Value.
func Of(v any) (Value, error) {
	switch x := v.(type) {
	case nil:
		return Value{}, nil
	case Value:
		return x, nil
	case int:
		return Int(int64(x)), nil
	case int32:
		return Int(int64(x)), nil
	case int64:
		return Int(x), nil
	case uint8:
		return Int(int64(x)), nil
	case uint32:
		return Int(int64(x)), nil
	case float32:
		return Float(float64(x)), nil
	case float64:
		return Float(x), nil
	case string:
		return String(x), nil
	case bool:
		return Bool(x), nil
	case []int:
		return Ints(x...), nil
	case []float64:
		return Floats(x...), nil
	case []string:
		return Strings(x...), nil
	case []Value:
		return List(x...), nil
	case []any:
		elems := make([]Value, 0, len(x))
		for i, e := range x {
			ev, err := Of(e)
			if err != nil {
				return Value{}, fmt.Errorf("element %d: %w", i, err)
			}
			elems = append(elems, ev)
		}
		return Value{list: true, elems: elems}, nil
	default:
		return Value{}, fmt.Errorf("unsupported argument value of Go type %T", v)
	}
}

// IsZero reports whether v is the absent value.
func (v Value) IsZero() bool {
	return !v.list && v.typ == TypeInvalid
}

// IsEmpty reports whether v is absent, an empty string or an empty list.
// Zero numbers and false are not empty.
func (v Value) IsEmpty() bool {
	switch {
	case v.IsZero():
		return true
	case v.list:
		return len(v.elems) == 0
	case v.typ == TypeString:
		return v.s == ""
	default:
		return false
	}
}

// IsList reports whether v is a list.
func (v Value) IsList() bool { return v.list }

// Len returns the number of list elements, or 1 for a scalar and 0 when absent.
func (v Value) Len() int {
	if v.list {
		return len(v.elems)
	}
	if v.IsZero() {
		return 0
	}
	return 1
}

// Type returns the scalar type of v. For a list it returns the shared element
// type, or TypeInvalid when the list is empty, mixed or nested.
func (v Value) Type() Type {
	if !v.list {
		return v.typ
	}
	if len(v.elems) == 0 {
		return TypeInvalid
	}
	first := v.elems[0]
	if first.list {
		return TypeInvalid
	}
	for _, e := range v.elems[1:] {
		if e.list || e.typ != first.typ {
			return TypeInvalid
		}
	}
	return first.typ
}

// Elems returns a copy of the list elements. A scalar yields itself.
func (v Value) Elems() []Value {
	if !v.list {
		if v.IsZero() {
			return nil
		}
		return []Value{v}
	}
	out := make([]Value, len(v.elems))
	copy(out, v.elems)
	return out
}

// AsInt returns the int payload of a scalar.
func (v Value) AsInt() int64 { return v.i }

// AsFloat returns the float payload of a scalar. Int scalars are widened.
func (v Value) AsFloat() float64 {
	if v.typ == TypeInt {
		return float64(v.i)
	}
	return v.f
}

// AsString returns the string payload of a scalar.
func (v Value) AsString() string { return v.s }

// AsBool returns the bool payload of a scalar.
func (v Value) AsBool() bool { return v.b }

// IntSlice returns the elements of v as ints.
func (v Value) IntSlice() []int {
	elems := v.Elems()
	out := make([]int, len(elems))
	for i, e := range elems {
		out[i] = int(e.i)
	}
	return out
}

// FloatSlice returns the elements of v as floats.
func (v Value) FloatSlice() []float64 {
	elems := v.Elems()
	out := make([]float64, len(elems))
	for i, e := range elems {
		out[i] = e.AsFloat()
	}
	return out
}

// Equal reports whether v and o hold the same tag and payload.
func (v Value) Equal(o Value) bool {
	if v.list != o.list {
		return false
	}
	if v.list {
		if len(v.elems) != len(o.elems) {
			return false
		}
		for i := range v.elems {
			if !v.elems[i].Equal(o.elems[i]) {
				return false
			}
		}
		return true
	}
	if v.typ != o.typ {
		return false
	}
	switch v.typ {
	case TypeInt:
		return v.i == o.i
	case TypeFloat:
		return v.f == o.f
	case TypeString:
		return v.s == o.s
	case TypeBool:
		return v.b == o.b
	default:
		return true
	}
}

// String renders v the way it would be written in a definition file.
func (v Value) String() string {
	if v.list {
		parts := make([]string, len(v.elems))
		for i, e := range v.elems {
			parts[i] = e.String()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	}
	switch v.typ {
	case TypeInt:
		return strconv.FormatInt(v.i, 10)
	case TypeFloat:
		s := strconv.FormatFloat(v.f, 'g', -1, 64)
		if !strings.ContainsAny(s, ".eEnN") {
			s += ".0"
		}
		return s
	case TypeString:
		return strconv.Quote(v.s)
	case TypeBool:
		return strconv.FormatBool(v.b)
	default:
		return "<absent>"
	}
}

// describe names the runtime shape of v for error messages.
func (v Value) describe() string {
	if v.list {
		if t := v.Type(); t != TypeInvalid {
			return fmt.Sprintf("list(%s)", t)
		}
		return "list"
	}
	return v.typ.String()
}
