package pipeline

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/vk/accgraph/internal/ctxlog"
	"github.com/vk/accgraph/internal/engine"
	"github.com/vk/accgraph/internal/fusion"
	"github.com/vk/accgraph/internal/graph"
	"github.com/vk/accgraph/internal/nodeid"
	"github.com/vk/accgraph/internal/ops"
	"github.com/vk/accgraph/internal/opspec"
	"github.com/vk/accgraph/internal/tensor"
)

// State is the lifecycle stage of a Pipeline.
type State int

const (
	StateConstructing State = iota
	StateBuilt
	StateBroken
)

func (s State) String() string {
	switch s {
	case StateConstructing:
		return "constructing"
	case StateBuilt:
		return "built"
	case StateBroken:
		return "broken"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Output is one requested output of a run.
type Output struct {
	Name  string
	Batch *tensor.Batch
}

// Pipeline builds one graph and runs it.
type Pipeline struct {
	mu       sync.Mutex
	cfg      Config
	eng      engine.Engine
	reg      *nodeid.Registry
	ops      *ops.Set
	patterns []fusion.Pattern

	state  State
	graph  *graph.Graph
	handle engine.Handle
}

// New creates a pipeline in StateConstructing. It never fails; cfg is
// validated by Build.
func New(cfg Config, eng engine.Engine) *Pipeline {
	reg := nodeid.NewRegistry()
	return &Pipeline{
		cfg:      cfg,
		eng:      eng,
		reg:      reg,
		ops:      ops.NewSet(reg),
		patterns: ops.FusionPatterns(),
		state:    StateConstructing,
	}
}

// Ops returns the operator builders bound to this pipeline.
func (p *Pipeline) Ops() *ops.Set { return p.ops }

// Session returns the id stamped on every node of this pipeline.
func (p *Pipeline) Session() uint64 { return p.reg.Session() }

// Config returns the configuration the pipeline was created with.
func (p *Pipeline) Config() Config { return p.cfg }

// State returns the current state.
func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Graph returns the graph handed to the engine, or nil before Build.
func (p *Pipeline) Graph() *graph.Graph {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.graph
}

// Build assembles specs into a graph producing outputs, fuses it when
// AutoFuse is set and hands it to the engine. On any failure the pipeline
// stays in StateConstructing. ctx must carry a logger from ctxlog.WithLogger.
func (p *Pipeline) Build(ctx context.Context, specs []*opspec.Spec, outputs []nodeid.Node) error {
	logger := ctxlog.FromContext(ctx)
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != StateConstructing {
		return &StateError{Op: "Build", State: p.state}
	}
	if err := p.cfg.Validate(); err != nil {
		return err
	}
	if p.eng == nil {
		return &ConfigError{Field: "engine"}
	}

	logger.Debug("Build: assembling graph.", "specs", len(specs), "outputs", len(outputs))
	g, err := graph.Assemble(ctx, specs, outputs, p.reg.IsExternal)
	if err != nil {
		return err
	}
	g = fusion.Rewrite(ctx, g, p.patterns, p.cfg.AutoFuse)

	logger.Debug("Build: handing graph to engine.", "ops", g.Len())
	h, err := p.eng.Build(ctx, g, p.cfg.engineConfig())
	if err != nil {
		return p.engineError(err)
	}

	p.graph = g
	p.handle = h
	p.state = StateBuilt
	logger.Info("Pipeline built.", "session", p.reg.Session(), "ops", g.Ops(), "outputs", len(outputs))
	return nil
}

// Run feeds inputs, keyed by external source node name, and returns the
// requested outputs in the order given to Build. ctx must carry a logger from
// ctxlog.WithLogger; cancelling it fails the run without breaking the pipeline.
func (p *Pipeline) Run(ctx context.Context, inputs map[string]*tensor.Batch) ([]Output, error) {
	logger := ctxlog.FromContext(ctx)
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != StateBuilt {
		return nil, &StateError{Op: "Run", State: p.state}
	}

	feed, err := p.checkInputs(inputs)
	if err != nil {
		return nil, err
	}

	logger.Debug("Run: dispatching to engine.", "inputs", len(feed))
	batches, err := p.eng.Run(ctx, p.handle, feed)
	if err != nil {
		return nil, p.engineError(err)
	}

	requested := p.graph.Outputs()
	if len(batches) != len(requested) {
		return nil, &RunError{
			Reason:  ReasonEngineFailure,
			Code:    engine.CodeCommonError,
			Message: fmt.Sprintf("engine returned %d batches for %d outputs", len(batches), len(requested)),
		}
	}
	out := make([]Output, len(requested))
	for i, n := range requested {
		out[i] = Output{Name: n.Name, Batch: batches[i]}
	}
	logger.Debug("Run: finished.", "outputs", len(out))
	return out, nil
}

// checkInputs rejects unknown keys, bad batches and missing sources, and
// returns the inputs the built graph consumes.
func (p *Pipeline) checkInputs(inputs map[string]*tensor.Batch) (map[string]*tensor.Batch, error) {
	names := make([]string, 0, len(inputs))
	for name := range inputs {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		if !p.reg.IsExternal(name) {
			return nil, &InputError{Name: name, Reason: ReasonUnknownInput, Detail: "not an external source of this pipeline"}
		}
		if err := inputs[name].Validate(); err != nil {
			return nil, &InputError{Name: name, Reason: ReasonInvalidBatch, Detail: err.Error()}
		}
	}

	feed := make(map[string]*tensor.Batch)
	for _, in := range p.graph.Inputs() {
		b, ok := inputs[in.Name]
		if !ok {
			return nil, &InputError{Name: in.Name, Reason: ReasonMissingInput}
		}
		feed[in.Name] = b
	}
	return feed, nil
}

// engineError maps an engine failure onto the pipeline taxonomy and applies
// the resulting state transition. Must be called with p.mu held.
func (p *Pipeline) engineError(err error) error {
	code := engine.CodeOf(err)
	var op, msg string
	var ee *engine.Error
	if errors.As(err, &ee) {
		op, msg = ee.Op, ee.Message
	} else {
		msg = err.Error()
	}

	switch {
	case p.state == StateBuilt && code.OperatorFailure():
		p.state = StateBroken
		return &RunError{Reason: ReasonSingleOperatorFailure, Code: code, Op: op, Message: msg, Err: err}
	case p.state == StateBuilt && code == engine.CodePipelineStateError:
		p.state = StateBroken
		return &StateError{Op: "Run", State: StateBroken, Code: code}
	default:
		return &RunError{Reason: ReasonEngineFailure, Code: code, Op: op, Message: msg, Err: err}
	}
}
