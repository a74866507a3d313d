package definition

import (
	"context"
	"fmt"

	"github.com/vk/accgraph/internal/arg"
	"github.com/vk/accgraph/internal/ctxlog"
	"github.com/vk/accgraph/internal/engine"
	"github.com/vk/accgraph/internal/nodeid"
	"github.com/vk/accgraph/internal/ops"
	"github.com/vk/accgraph/internal/pipeline"
	"github.com/vk/accgraph/internal/tensor"
)

// Materialize declares def against set. Sources come first, then operators
// in declaration order; an operator may only consume a source or an operator
// declared before it.
func Materialize(ctx context.Context, def *Pipeline, set *ops.Set) (pipeline.Plan, error) {
	logger := ctxlog.FromContext(ctx).With("pipeline", def.Name)
	logger.Debug("Materialize: declaring specs.", "sources", len(def.Sources), "operators", len(def.Operators))

	local := make(map[string]nodeid.Node)
	var plan pipeline.Plan
	declare := func(op, name string) error {
		if _, dup := local[name]; dup {
			return &arg.Error{Op: op, Arg: "name", Reason: arg.ReasonReference, Node: name, Expected: "a name not used by another source or operator"}
		}
		return nil
	}

	for _, src := range def.Sources {
		if err := declare(ops.KindExternalSource, src.Name); err != nil {
			return pipeline.Plan{}, err
		}
		spec, err := set.ExternalSource(src.Name, src.Device)
		if err != nil {
			return pipeline.Plan{}, err
		}
		local[src.Name] = spec.Output()
		plan.Inputs = append(plan.Inputs, spec.Output())
		plan.Specs = append(plan.Specs, spec)
	}

	for _, op := range def.Operators {
		if err := declare(op.Kind, op.Name); err != nil {
			return pipeline.Plan{}, err
		}
		in, ok := local[op.Input]
		if !ok {
			return pipeline.Plan{}, &arg.Error{Op: op.Kind, Arg: "input", Reason: arg.ReasonReference, Node: op.Input, Expected: "a source or an earlier operator"}
		}
		spec, err := set.BuildCty(op.Kind, []nodeid.Node{in}, op.Args)
		if err != nil {
			return pipeline.Plan{}, fmt.Errorf("operator %q: %w", op.Name, err)
		}
		logger.Debug("Materialize: operator declared.", "name", op.Name, "node", spec.Output().Name)
		local[op.Name] = spec.Output()
		plan.Specs = append(plan.Specs, spec)
	}

	for _, name := range def.Outputs {
		n, ok := local[name]
		if !ok {
			return pipeline.Plan{}, &arg.Error{Op: "pipeline", Arg: "outputs", Reason: arg.ReasonReference, Node: name, Expected: "a declared source or operator"}
		}
		plan.Outputs = append(plan.Outputs, n)
	}
	return plan, nil
}

// Instance is a built pipeline together with the definition it came from.
type Instance struct {
	Def      *Pipeline
	Pipeline *pipeline.Pipeline
	// Sources maps input node names to their source blocks.
	Sources map[string]*Source
}

// Instantiate materializes def and builds it with its settings overlaid on
// base.
func Instantiate(ctx context.Context, def *Pipeline, base pipeline.Config, eng engine.Engine) (*Instance, error) {
	p, inputs, err := pipeline.Define(ctx, def.Config(base), eng, func(set *ops.Set) (pipeline.Plan, error) {
		return Materialize(ctx, def, set)
	})
	if err != nil {
		return nil, fmt.Errorf("pipeline %q: %w", def.Name, err)
	}
	inst := &Instance{Def: def, Pipeline: p, Sources: make(map[string]*Source, len(inputs))}
	for i, in := range inputs {
		inst.Sources[in.Name] = def.Sources[i]
	}
	return inst, nil
}

// SyntheticInputs returns one full batch of constant samples per source.
func (in *Instance) SyntheticInputs() map[string]*tensor.Batch {
	n := in.Pipeline.Config().BatchSize
	out := make(map[string]*tensor.Batch, len(in.Sources))
	for name, src := range in.Sources {
		out[name] = src.Synthetic(n)
	}
	return out
}
