package engine

import (
	"context"
	"fmt"

	"github.com/vk/accgraph/internal/graph"
	"github.com/vk/accgraph/internal/tensor"
)

// Handle identifies a graph built by an engine.
type Handle string

// Config carries the pipeline parameters an engine needs to size its
// execution resources.
type Config struct {
	BatchSize  int `json:"batch_size"`
	NumThreads int `json:"num_threads"`
	QueueDepth int `json:"queue_depth"`
}

// Limits for Config fields, inclusive.
const (
	MaxBatchSize  = 1024
	MaxNumThreads = 256
	MaxQueueDepth = 128
)

// Check reports the first field of c outside its bounds as an InvalidParam error.
func (c Config) Check() error {
	for _, f := range []struct {
		name     string
		val, max int
	}{
		{"batch_size", c.BatchSize, MaxBatchSize},
		{"num_threads", c.NumThreads, MaxNumThreads},
		{"queue_depth", c.QueueDepth, MaxQueueDepth},
	} {
		if f.val < 1 || f.val > f.max {
			return &Error{Code: CodeInvalidParam, Message: fmt.Sprintf("%s=%d outside [1, %d]", f.name, f.val, f.max)}
		}
	}
	return nil
}

// Engine executes graphs.
type Engine interface {
	// Build prepares g for execution. It is called once per pipeline.
	Build(ctx context.Context, g *graph.Graph, cfg Config) (Handle, error)
	// Run feeds inputs, keyed by external node name, and returns one batch
	// per requested output of the built graph, in order.
	Run(ctx context.Context, h Handle, inputs map[string]*tensor.Batch) ([]*tensor.Batch, error)
}
