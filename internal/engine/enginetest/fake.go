// Package enginetest provides a scripted engine for tests.
package enginetest

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/vk/accgraph/internal/engine"
	"github.com/vk/accgraph/internal/graph"
	"github.com/vk/accgraph/internal/tensor"
)

// Engine records every call and replays scripted failures. Without a script
// each run echoes a copy of the first input (by name) for every output.
type Engine struct {
	mu sync.Mutex

	// BuildErr is returned by every Build call when set.
	BuildErr error
	// RunErrs are returned by successive Run calls; nil entries succeed.
	RunErrs []error
	// RunFunc, when set, replaces the echo behaviour.
	RunFunc func(g *graph.Graph, inputs map[string]*tensor.Batch) ([]*tensor.Batch, error)

	builds     int
	runs       int
	lastGraph  *graph.Graph
	lastConfig engine.Config
	lastInputs map[string]*tensor.Batch
}

var _ engine.Engine = (*Engine)(nil)

// New returns an engine with no script.
func New() *Engine {
	return &Engine{}
}

// FailRuns appends errors for the next runs.
func (e *Engine) FailRuns(errs ...error) *Engine {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.RunErrs = append(e.RunErrs, errs...)
	return e
}

func (e *Engine) Build(_ context.Context, g *graph.Graph, cfg engine.Config) (engine.Handle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.builds++
	if e.BuildErr != nil {
		return "", e.BuildErr
	}
	e.lastGraph = g
	e.lastConfig = cfg
	return engine.Handle(fmt.Sprintf("fake-%d", e.builds)), nil
}

func (e *Engine) Run(_ context.Context, h engine.Handle, inputs map[string]*tensor.Batch) ([]*tensor.Batch, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.runs++
	e.lastInputs = inputs
	if len(e.RunErrs) > 0 {
		err := e.RunErrs[0]
		e.RunErrs = e.RunErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	if e.lastGraph == nil {
		return nil, &engine.Error{Code: engine.CodePipelineStateError, Message: fmt.Sprintf("unknown handle %q", h)}
	}
	if e.RunFunc != nil {
		return e.RunFunc(e.lastGraph, inputs)
	}

	names := make([]string, 0, len(inputs))
	for name := range inputs {
		names = append(names, name)
	}
	slices.Sort(names)
	out := make([]*tensor.Batch, len(e.lastGraph.Outputs()))
	for i := range out {
		if len(names) > 0 {
			out[i] = inputs[names[0]].Clone()
		} else {
			out[i] = tensor.NewBatch()
		}
	}
	return out, nil
}

// Builds returns the number of Build calls.
func (e *Engine) Builds() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.builds
}

// Runs returns the number of Run calls.
func (e *Engine) Runs() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.runs
}

// Graph returns the graph passed to the last successful Build.
func (e *Engine) Graph() *graph.Graph {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastGraph
}

// Config returns the config passed to the last successful Build.
func (e *Engine) Config() engine.Config {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastConfig
}

// Inputs returns the inputs of the last Run call.
func (e *Engine) Inputs() map[string]*tensor.Batch {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastInputs
}
