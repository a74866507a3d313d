package opspec

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/vk/accgraph/internal/arg"
	"github.com/vk/accgraph/internal/nodeid"
)

// Spec is an immutable operator description.
type Spec struct {
	op      string
	inputs  []nodeid.Node
	outputs []nodeid.Node
	args    map[string]arg.Value
}

// New assembles a spec from parts that were already validated, such as the
// union produced by the fusion rewriter or a spec decoded from the wire.
func New(op string, inputs, outputs []nodeid.Node, args map[string]arg.Value) *Spec {
	return &Spec{
		op:      op,
		inputs:  slices.Clone(inputs),
		outputs: slices.Clone(outputs),
		args:    maps.Clone(args),
	}
}

// Op returns the operator kind name.
func (s *Spec) Op() string { return s.op }

// Inputs returns a copy of the input nodes in declaration order.
func (s *Spec) Inputs() []nodeid.Node { return slices.Clone(s.inputs) }

// Outputs returns a copy of the output nodes in declaration order.
func (s *Spec) Outputs() []nodeid.Node { return slices.Clone(s.outputs) }

// Output returns the first output node, or the zero Node when there is none.
func (s *Spec) Output() nodeid.Node {
	if len(s.outputs) == 0 {
		return nodeid.Node{}
	}
	return s.outputs[0]
}

// Arg returns one argument.
func (s *Spec) Arg(name string) (arg.Value, bool) {
	v, ok := s.args[name]
	return v, ok
}

// Args returns a copy of the argument map.
func (s *Spec) Args() map[string]arg.Value {
	if s.args == nil {
		return map[string]arg.Value{}
	}
	return maps.Clone(s.args)
}

// ArgNames returns the argument names in sorted order.
func (s *Spec) ArgNames() []string {
	return slices.Sorted(maps.Keys(s.args))
}

// Equal compares two specs structurally.
func (s *Spec) Equal(o *Spec) bool {
	if s == nil || o == nil {
		return s == o
	}
	if s.op != o.op || !slices.Equal(s.inputs, o.inputs) || !slices.Equal(s.outputs, o.outputs) {
		return false
	}
	if len(s.args) != len(o.args) {
		return false
	}
	for k, v := range s.args {
		ov, ok := o.args[k]
		if !ok || !v.Equal(ov) {
			return false
		}
	}
	return true
}

// String renders the spec as `Op(in, ...) -> out, ... {k=v, ...}`.
func (s *Spec) String() string {
	var sb strings.Builder
	sb.WriteString(s.op)
	sb.WriteString("(")
	sb.WriteString(joinNodes(s.inputs))
	sb.WriteString(") -> ")
	sb.WriteString(joinNodes(s.outputs))
	if len(s.args) > 0 {
		parts := make([]string, 0, len(s.args))
		for _, k := range s.ArgNames() {
			parts = append(parts, fmt.Sprintf("%s=%s", k, s.args[k]))
		}
		sb.WriteString(" {")
		sb.WriteString(strings.Join(parts, ", "))
		sb.WriteString("}")
	}
	return sb.String()
}

func joinNodes(nodes []nodeid.Node) string {
	names := make([]string, len(nodes))
	for i, n := range nodes {
		names[i] = n.Name
	}
	return strings.Join(names, ", ")
}
