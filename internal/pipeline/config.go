package pipeline

import "github.com/vk/accgraph/internal/engine"

// Config holds the per-pipeline execution parameters.
type Config struct {
	BatchSize  int
	NumThreads int
	QueueDepth int
	AutoFuse   bool
}

// DefaultConfig returns batch size 1, one thread, queue depth 2 and fusion on.
func DefaultConfig() Config {
	return Config{BatchSize: 1, NumThreads: 1, QueueDepth: 2, AutoFuse: true}
}

// Validate returns a *ConfigError for the first field out of range.
func (c Config) Validate() error {
	for _, f := range []struct {
		name     string
		val, max int
	}{
		{"batch_size", c.BatchSize, engine.MaxBatchSize},
		{"num_threads", c.NumThreads, engine.MaxNumThreads},
		{"queue_depth", c.QueueDepth, engine.MaxQueueDepth},
	} {
		if f.val < 1 || f.val > f.max {
			return &ConfigError{Field: f.name, Value: f.val, Min: 1, Max: f.max}
		}
	}
	return nil
}

func (c Config) engineConfig() engine.Config {
	return engine.Config{BatchSize: c.BatchSize, NumThreads: c.NumThreads, QueueDepth: c.QueueDepth}
}
