package graph

import (
	"errors"
	"fmt"
)

// ErrStructure matches every *StructureError with errors.Is.
var ErrStructure = errors.New("graph structure error")

// Reason classifies a structural failure.
type Reason uint8

const (
	ReasonNoOutputsRequested Reason = iota + 1
	ReasonNoDataNodeForOutput
	ReasonNoPathToOutput
	ReasonForwardReference
	ReasonDuplicateProducer
	ReasonInvalidSpec
)

func (r Reason) String() string {
	switch r {
	case ReasonNoOutputsRequested:
		return "no outputs requested"
	case ReasonNoDataNodeForOutput:
		return "no data node found for output"
	case ReasonNoPathToOutput:
		return "no path to generate the output"
	case ReasonForwardReference:
		return "input produced by a later operator"
	case ReasonDuplicateProducer:
		return "node produced more than once"
	case ReasonInvalidSpec:
		return "invalid operator spec"
	default:
		return "unknown"
	}
}

// StructureError is returned by Assemble when the spec list cannot produce
// the requested outputs.
type StructureError struct {
	Reason Reason
	// Node is the data node the failure is about, if any.
	Node string
	// Op and Index locate the offending spec, if any. Index is -1 otherwise.
	Op    string
	Index int
}

func (e *StructureError) Error() string {
	msg := "graph structure error: " + e.Reason.String()
	if e.Node != "" {
		msg += fmt.Sprintf(" (node %q)", e.Node)
	}
	if e.Op != "" {
		msg += fmt.Sprintf(" at %s #%d", e.Op, e.Index)
	}
	return msg
}

// Is makes errors.Is(err, ErrStructure) hold for every *StructureError.
func (e *StructureError) Is(target error) bool {
	return target == ErrStructure
}

// ReasonOf returns the reason of the first *StructureError in err's chain, or 0.
func ReasonOf(err error) Reason {
	var se *StructureError
	if errors.As(err, &se) {
		return se.Reason
	}
	return 0
}
