package arg

import (
	"errors"
	"fmt"
	"strings"
)

// ErrArgument matches every *Error with errors.Is.
var ErrArgument = errors.New("argument error")

// Reason classifies an argument failure.
type Reason uint8

const (
	ReasonMissing Reason = iota + 1
	ReasonCount
	ReasonMixedTypes
	ReasonType
	ReasonChoice
	ReasonRange
	ReasonReference
	ReasonUnknown
)

// String returns the reason's short name.
func (r Reason) String() string {
	switch r {
	case ReasonMissing:
		return "missing"
	case ReasonCount:
		return "count"
	case ReasonMixedTypes:
		return "mixed types"
	case ReasonType:
		return "type"
	case ReasonChoice:
		return "choice"
	case ReasonRange:
		return "range"
	case ReasonReference:
		return "reference"
	case ReasonUnknown:
		return "unknown"
	default:
		return "invalid"
	}
}

// Error is a construction-time argument or input reference failure.
type Error struct {
	Op       string
	Arg      string
	Reason   Reason
	Expected string
	Actual   string
	// Node is set for reference failures.
	Node string
}

func (e *Error) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "argument error (%s)", e.Reason)
	switch {
	case e.Op != "" && e.Arg != "":
		fmt.Fprintf(&sb, ": %s.%s", e.Op, e.Arg)
	case e.Op != "":
		fmt.Fprintf(&sb, ": %s", e.Op)
	case e.Arg != "":
		fmt.Fprintf(&sb, ": %s", e.Arg)
	}
	if e.Node != "" {
		fmt.Fprintf(&sb, " node %q", e.Node)
	}
	if e.Expected != "" {
		fmt.Fprintf(&sb, ": expected %s", e.Expected)
		if e.Actual != "" {
			fmt.Fprintf(&sb, ", got %s", e.Actual)
		}
	} else if e.Actual != "" {
		fmt.Fprintf(&sb, ": got %s", e.Actual)
	}
	return sb.String()
}

// Is makes errors.Is(err, ErrArgument) hold for every *Error.
func (e *Error) Is(target error) bool {
	return target == ErrArgument
}

// ReasonOf returns the reason of the first *Error in err's chain, or 0.
func ReasonOf(err error) Reason {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Reason
	}
	return 0
}
