package arg

import (
	"fmt"
	"strings"
)

// Desc declares the constraints one argument must satisfy.
type Desc struct {
	Name string
	Type Type
	// Count, when positive, is the exact number of list elements. Scalars are
	// broadcast to this length.
	Count    int
	Choices  []Value
	Optional bool
}

// Validate applies d to raw and returns the value to store. The boolean is
// false when an optional argument was omitted and must not be stored.
//
// Checks run in a fixed order and stop at the first failure: emptiness,
// element count, list homogeneity, type, allowed choices. A scalar given for a
// counted argument is broadcast last.
func Validate(d Desc, raw Value) (Value, bool, error) {
	if raw.IsEmpty() {
		if d.Optional {
			return Value{}, false, nil
		}
		return Value{}, false, &Error{Arg: d.Name, Reason: ReasonMissing, Expected: "a value"}
	}

	if d.Count > 0 && raw.list && len(raw.elems) != d.Count {
		return Value{}, false, &Error{
			Arg:      d.Name,
			Reason:   ReasonCount,
			Expected: fmt.Sprintf("%d elements", d.Count),
			Actual:   fmt.Sprintf("%d", len(raw.elems)),
		}
	}

	if raw.list {
		first := raw.elems[0]
		for i, e := range raw.elems[1:] {
			if e.list != first.list || e.typ != first.typ {
				return Value{}, false, &Error{
					Arg:      d.Name,
					Reason:   ReasonMixedTypes,
					Expected: fmt.Sprintf("all elements of type %s", first.describe()),
					Actual:   fmt.Sprintf("element %d of type %s", i+1, e.describe()),
				}
			}
		}
		if first.list || first.typ != d.Type {
			return Value{}, false, &Error{
				Arg:      d.Name,
				Reason:   ReasonType,
				Expected: fmt.Sprintf("list(%s)", d.Type),
				Actual:   raw.describe(),
			}
		}
	} else if raw.typ != d.Type {
		return Value{}, false, &Error{
			Arg:      d.Name,
			Reason:   ReasonType,
			Expected: d.Type.String(),
			Actual:   raw.describe(),
		}
	}

	if len(d.Choices) > 0 {
		for _, e := range raw.Elems() {
			if !containsValue(d.Choices, e) {
				return Value{}, false, &Error{
					Arg:      d.Name,
					Reason:   ReasonChoice,
					Expected: "one of " + renderChoices(d.Choices),
					Actual:   e.String(),
				}
			}
		}
	}

	if d.Count > 0 && !raw.list {
		elems := make([]Value, d.Count)
		for i := range elems {
			elems[i] = raw
		}
		return Value{list: true, elems: elems}, true, nil
	}
	return raw, true, nil
}

func containsValue(set []Value, v Value) bool {
	for _, c := range set {
		if c.Equal(v) {
			return true
		}
	}
	return false
}

func renderChoices(set []Value) string {
	parts := make([]string, len(set))
	for i, c := range set {
		parts[i] = c.String()
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
