package opspec

import (
	"errors"
	"fmt"

	"github.com/vk/accgraph/internal/arg"
	"github.com/vk/accgraph/internal/nodeid"
)

// Registrar issues output nodes and vouches for input nodes.
type Registrar interface {
	Register(base, device string) nodeid.Node
	Owns(n nodeid.Node) bool
}

type outputDecl struct {
	base   string
	device string
}

// Builder accumulates one spec. Methods are chainable; after the first
// failure the remaining calls are ignored.
type Builder struct {
	reg     Registrar
	op      string
	inputs  []nodeid.Node
	outputs []outputDecl
	args    map[string]arg.Value
	checks  []func(map[string]arg.Value) error
	err     error
}

// NewBuilder starts a spec of the given operator kind.
func NewBuilder(reg Registrar, op string) *Builder {
	return &Builder{
		reg:  reg,
		op:   op,
		args: make(map[string]arg.Value),
	}
}

// Input appends an input node. The node must come from the same registry.
func (b *Builder) Input(n nodeid.Node) *Builder {
	if b.err != nil {
		return b
	}
	if !b.reg.Owns(n) {
		b.err = &arg.Error{
			Op:       b.op,
			Arg:      fmt.Sprintf("input[%d]", len(b.inputs)),
			Reason:   arg.ReasonReference,
			Expected: "a node registered in this pipeline",
			Node:     n.Name,
		}
		return b
	}
	b.inputs = append(b.inputs, n)
	return b
}

// Arg validates raw against d and stores the result under d.Name.
func (b *Builder) Arg(d arg.Desc, raw arg.Value) *Builder {
	if b.err != nil {
		return b
	}
	v, present, err := arg.Validate(d, raw)
	if err != nil {
		b.err = b.withOp(err)
		return b
	}
	if present {
		b.args[d.Name] = v
	}
	return b
}

// Value returns an argument stored by an earlier Arg call.
func (b *Builder) Value(name string) (arg.Value, bool) {
	v, ok := b.args[name]
	return v, ok
}

// Check registers a cross-argument rule run by Build after all arguments
// were validated.
func (b *Builder) Check(fn func(args map[string]arg.Value) error) *Builder {
	b.checks = append(b.checks, fn)
	return b
}

// Output declares one output node. Nodes are registered by Build.
func (b *Builder) Output(base, device string) *Builder {
	b.outputs = append(b.outputs, outputDecl{base: base, device: device})
	return b
}

// Err returns the first failure recorded so far.
func (b *Builder) Err() error {
	return b.err
}

// Build returns the finished spec, or the first failure. Output nodes are
// registered only on success.
func (b *Builder) Build() (*Spec, error) {
	if b.err != nil {
		return nil, b.err
	}
	for _, check := range b.checks {
		if err := check(b.args); err != nil {
			b.err = b.withOp(err)
			return nil, b.err
		}
	}
	if len(b.outputs) == 0 {
		return nil, fmt.Errorf("operator %s declares no outputs", b.op)
	}

	outputs := make([]nodeid.Node, len(b.outputs))
	for i, decl := range b.outputs {
		outputs[i] = b.reg.Register(decl.base, decl.device)
	}
	return New(b.op, b.inputs, outputs, b.args), nil
}

func (b *Builder) withOp(err error) error {
	var ae *arg.Error
	if errors.As(err, &ae) && ae.Op == "" {
		ae.Op = b.op
	}
	return err
}
