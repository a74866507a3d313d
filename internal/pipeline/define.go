package pipeline

import (
	"context"

	"github.com/vk/accgraph/internal/engine"
	"github.com/vk/accgraph/internal/nodeid"
	"github.com/vk/accgraph/internal/ops"
	"github.com/vk/accgraph/internal/opspec"
)

// Plan is what a definition function declares: the external inputs, the
// specs in topological order and the outputs to request.
type Plan struct {
	Inputs  []nodeid.Node
	Specs   []*opspec.Spec
	Outputs []nodeid.Node
}

// Define creates a pipeline, lets fn declare its plan against the pipeline's
// operator set and builds it. It returns the built pipeline and the plan's
// inputs in declaration order.
func Define(ctx context.Context, cfg Config, eng engine.Engine, fn func(*ops.Set) (Plan, error)) (*Pipeline, []nodeid.Node, error) {
	p := New(cfg, eng)
	plan, err := fn(p.Ops())
	if err != nil {
		return nil, nil, err
	}
	if len(plan.Inputs) == 0 {
		return nil, nil, &InputError{Reason: ReasonNoInputs, Detail: "a pipeline definition must declare at least one input"}
	}
	if err := p.Build(ctx, plan.Specs, plan.Outputs); err != nil {
		return nil, nil, err
	}
	return p, plan.Inputs, nil
}
