package arg

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/zclconf/go-cty/cty"
	ctyjson "github.com/zclconf/go-cty/cty/json"
)

// CtyType returns the cty type that carries values of t.
func CtyType(t Type) cty.Type {
	switch t {
	case TypeInt, TypeFloat:
		return cty.Number
	case TypeString:
		return cty.String
	case TypeBool:
		return cty.Bool
	default:
		return cty.DynamicPseudoType
	}
}

// FromCty converts a cty value into a Value. Numbers become ints when they
// are whole and want is not TypeFloat, and floats otherwise, so the caller's
// declared type decides how `1` is read. A null value yields the absent Value.
func FromCty(v cty.Value, want Type) (Value, error) {
	if v.IsNull() {
		return Value{}, nil
	}
	if !v.IsWhollyKnown() {
		return Value{}, fmt.Errorf("value is not known")
	}

	ty := v.Type()
	switch {
	case ty == cty.String:
		return String(v.AsString()), nil
	case ty == cty.Bool:
		return Bool(v.True()), nil
	case ty == cty.Number:
		bf := v.AsBigFloat()
		if want != TypeFloat && bf.IsInt() {
			i, acc := bf.Int64()
			if acc != big.Exact {
				return Value{}, fmt.Errorf("number %s overflows int64", bf.Text('f', -1))
			}
			return Int(i), nil
		}
		f, _ := bf.Float64()
		return Float(f), nil
	case ty.IsListType() || ty.IsTupleType() || ty.IsSetType():
		elems := make([]Value, 0, v.LengthInt())
		for it := v.ElementIterator(); it.Next(); {
			_, ev := it.Element()
			e, err := FromCty(ev, want)
			if err != nil {
				return Value{}, err
			}
			if e.IsZero() {
				return Value{}, fmt.Errorf("list element %d is null", len(elems))
			}
			elems = append(elems, e)
		}
		return Value{list: true, elems: elems}, nil
	default:
		return Value{}, fmt.Errorf("unsupported value of type %s", ty.FriendlyName())
	}
}

// Cty converts v into a cty value. Homogeneous lists become cty lists and
// mixed lists become tuples.
func (v Value) Cty() cty.Value {
	if v.list {
		if len(v.elems) == 0 {
			return cty.ListValEmpty(cty.DynamicPseudoType)
		}
		vals := make([]cty.Value, len(v.elems))
		for i, e := range v.elems {
			vals[i] = e.Cty()
		}
		if v.Type() != TypeInvalid {
			return cty.ListVal(vals)
		}
		return cty.TupleVal(vals)
	}
	switch v.typ {
	case TypeInt:
		return cty.NumberIntVal(v.i)
	case TypeFloat:
		return cty.NumberFloatVal(v.f)
	case TypeString:
		return cty.StringVal(v.s)
	case TypeBool:
		return cty.BoolVal(v.b)
	default:
		return cty.NullVal(cty.DynamicPseudoType)
	}
}

// Wire is the JSON encoding of a Value used on the remote engine protocol.
// The cty JSON payload loses the int/float distinction, so the element type
// travels next to it.
type Wire struct {
	Type  string          `json:"type"`
	List  bool            `json:"list"`
	Value json.RawMessage `json:"value"`
}

// ToWire encodes a homogeneous, non-empty value.
func (v Value) ToWire() (Wire, error) {
	t := v.Type()
	if t == TypeInvalid {
		return Wire{}, fmt.Errorf("cannot encode %s value", v.describe())
	}
	cv := v.Cty()
	raw, err := ctyjson.Marshal(cv, cv.Type())
	if err != nil {
		return Wire{}, fmt.Errorf("failed to marshal argument: %w", err)
	}
	return Wire{Type: t.String(), List: v.list, Value: raw}, nil
}

// Decode is the inverse of Value.ToWire.
func (w Wire) Decode() (Value, error) {
	t, err := ParseType(w.Type)
	if err != nil {
		return Value{}, err
	}
	ty := CtyType(t)
	if w.List {
		ty = cty.List(ty)
	}
	cv, err := ctyjson.Unmarshal(w.Value, ty)
	if err != nil {
		return Value{}, fmt.Errorf("failed to unmarshal argument: %w", err)
	}
	return FromCty(cv, t)
}
