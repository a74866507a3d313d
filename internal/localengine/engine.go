package localengine

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/vk/accgraph/internal/ctxlog"
	"github.com/vk/accgraph/internal/engine"
	"github.com/vk/accgraph/internal/graph"
	"github.com/vk/accgraph/internal/ops"
	"github.com/vk/accgraph/internal/tensor"
)

// program is one built graph.
type program struct {
	mu     sync.Mutex
	g      *graph.Graph
	cfg    engine.Config
	broken error
}

// Engine runs graphs in process.
type Engine struct {
	mu       sync.Mutex
	next     int
	programs map[engine.Handle]*program
}

var _ engine.Engine = (*Engine)(nil)

// New creates an engine with no built graphs.
func New() *Engine {
	return &Engine{programs: make(map[engine.Handle]*program)}
}

// Build checks that every operator of g has a kernel and returns a handle.
func (e *Engine) Build(ctx context.Context, g *graph.Graph, cfg engine.Config) (engine.Handle, error) {
	logger := ctxlog.FromContext(ctx)
	if g == nil {
		return "", &engine.Error{Code: engine.CodeNullptr, Message: "graph is nil"}
	}
	if err := cfg.Check(); err != nil {
		return "", err
	}
	for i := 0; i < g.Len(); i++ {
		op := g.Spec(i).Op()
		if op == ops.KindExternalSource {
			continue
		}
		if _, ok := kernels[op]; !ok {
			return "", &engine.Error{Code: engine.CodePipelineBuildError, Op: op, Message: "no kernel for operator"}
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.next++
	h := engine.Handle(fmt.Sprintf("local-%d", e.next))
	e.programs[h] = &program{g: g, cfg: cfg}
	logger.Debug("Local engine: graph built.", "handle", h, "ops", g.Len(), "threads", cfg.NumThreads)
	return h, nil
}

// Run executes the graph behind h.
func (e *Engine) Run(ctx context.Context, h engine.Handle, inputs map[string]*tensor.Batch) ([]*tensor.Batch, error) {
	logger := ctxlog.FromContext(ctx)

	e.mu.Lock()
	p, ok := e.programs[h]
	e.mu.Unlock()
	if !ok {
		return nil, &engine.Error{Code: engine.CodePipelineStateError, Message: fmt.Sprintf("unknown handle %q", h)}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.broken != nil {
		return nil, &engine.Error{Code: engine.CodePipelineStateError, Message: fmt.Sprintf("handle is broken: %v", p.broken)}
	}

	values := make(map[string]*tensor.Batch, len(inputs)+p.g.Len())
	for _, in := range p.g.Inputs() {
		b, ok := inputs[in.Name]
		if !ok {
			return nil, &engine.Error{Code: engine.CodeInvalidParam, Message: fmt.Sprintf("missing input %q", in.Name)}
		}
		if err := b.Validate(); err != nil {
			return nil, &engine.Error{Code: engine.CodeTensorError, Message: fmt.Sprintf("input %q: %v", in.Name, err)}
		}
		if b.Len() > p.cfg.BatchSize {
			return nil, &engine.Error{
				Code:    engine.CodeInvalidParam,
				Message: fmt.Sprintf("input %q has %d samples, batch size is %d", in.Name, b.Len(), p.cfg.BatchSize),
			}
		}
		values[in.Name] = b
	}

	for i := 0; i < p.g.Len(); i++ {
		spec := p.g.Spec(i)
		if spec.Op() == ops.KindExternalSource {
			continue
		}
		k := kernels[spec.Op()]
		in := values[spec.Inputs()[0].Name]
		out, err := k.runBatch(ctx, spec, in, p.cfg.NumThreads)
		if err != nil && interrupted(ctx, err) {
			logger.Debug("Local engine: run interrupted.", "handle", h, "op", spec.Op(), "error", err)
			return nil, &engine.Error{Code: engine.CodePipelineError, Op: spec.Op(), Message: err.Error()}
		}
		if err != nil {
			code := engine.CodeSingleOpError
			if k.fused {
				code = engine.CodeFusionOpError
			}
			p.broken = err
			logger.Warn("Local engine: operator failed, handle is broken.", "handle", h, "op", spec.Op(), "error", err)
			return nil, &engine.Error{Code: code, Op: spec.Op(), Message: err.Error()}
		}
		values[spec.Output().Name] = out
	}

	outs := make([]*tensor.Batch, 0, len(p.g.Outputs()))
	for _, o := range p.g.Outputs() {
		outs = append(outs, values[o.Name])
	}
	logger.Debug("Local engine: run finished.", "handle", h, "outputs", len(outs))
	return outs, nil
}

// interrupted reports whether err comes from the caller giving up rather
// than from the data.
func interrupted(ctx context.Context, err error) bool {
	return ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
