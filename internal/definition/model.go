package definition

import (
	"fmt"

	"github.com/vk/accgraph/internal/pipeline"
	"github.com/vk/accgraph/internal/tensor"
	"github.com/zclconf/go-cty/cty"
)

// Model is every pipeline declared across the loaded files.
type Model struct {
	Pipelines []*Pipeline
}

// Pipeline is one `pipeline` block.
type Pipeline struct {
	Name string
	// Zero values fall back to the base configuration.
	BatchSize  int
	NumThreads int
	QueueDepth int
	AutoFuse   *bool

	Sources   []*Source
	Operators []*Operator
	// Outputs are local names of sources or operators.
	Outputs []string
	// File is where the block was declared, for messages.
	File string
}

// Source declares one external input.
type Source struct {
	Name   string
	Device string
	Shape  []int
	DType  tensor.DType
	Layout tensor.Layout
}

// Operator declares one operator applied to a local name.
type Operator struct {
	Kind  string
	Name  string
	Input string
	Args  map[string]cty.Value
}

// Config overlays the pipeline's settings on base.
func (p *Pipeline) Config(base pipeline.Config) pipeline.Config {
	cfg := base
	if p.BatchSize != 0 {
		cfg.BatchSize = p.BatchSize
	}
	if p.NumThreads != 0 {
		cfg.NumThreads = p.NumThreads
	}
	if p.QueueDepth != 0 {
		cfg.QueueDepth = p.QueueDepth
	}
	if p.AutoFuse != nil {
		cfg.AutoFuse = *p.AutoFuse
	}
	return cfg
}

// Validate checks what can be checked without a pipeline: names, source
// shapes and dtypes. References are checked by Materialize.
func (m *Model) Validate() error {
	seen := make(map[string]string)
	for _, p := range m.Pipelines {
		if p.Name == "" {
			return fmt.Errorf("%s: pipeline without a name", p.File)
		}
		if prev, dup := seen[p.Name]; dup {
			return fmt.Errorf("pipeline %q declared twice (%s and %s)", p.Name, prev, p.File)
		}
		seen[p.Name] = p.File
		for _, s := range p.Sources {
			if err := s.validate(); err != nil {
				return fmt.Errorf("pipeline %q: %w", p.Name, err)
			}
		}
	}
	return nil
}

func (s *Source) validate() error {
	if s.Name == "" {
		return fmt.Errorf("source without a name")
	}
	if len(s.Shape) != 3 {
		return fmt.Errorf("source %q: shape must have 3 dimensions, got %v", s.Name, s.Shape)
	}
	for _, d := range s.Shape {
		if d <= 0 {
			return fmt.Errorf("source %q: shape %v has a non-positive dimension", s.Name, s.Shape)
		}
	}
	if s.DType == tensor.DTypeInvalid {
		return fmt.Errorf("source %q: dtype is not set", s.Name)
	}
	if s.Layout == tensor.LayoutInvalid {
		return fmt.Errorf("source %q: layout is not set", s.Name)
	}
	return nil
}

// Synthetic returns a batch of n constant samples shaped like s: mid grey
// for uint8 sources and 0.5 for float sources.
func (s *Source) Synthetic(n int) *tensor.Batch {
	fill := float32(0.5)
	if s.DType == tensor.DTypeUint8 {
		fill = 128
	}
	return tensor.Repeat(tensor.Filled(s.Shape, s.DType, s.Layout, fill), n)
}

// Pipeline returns the pipeline named name.
func (m *Model) Pipeline(name string) (*Pipeline, bool) {
	for _, p := range m.Pipelines {
		if p.Name == name {
			return p, true
		}
	}
	return nil, false
}
