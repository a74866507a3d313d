// Package yaml_adapter reads pipeline definitions written in YAML.
//
//	pipelines:
//	  - name: preprocess
//	    batch_size: 2
//	    outputs: [norm]
//	    sources:
//	      - {name: frames, shape: [8, 8, 3], dtype: uint8, layout: NHWC}
//	    operators:
//	      - {kind: Normalize, name: norm, input: frames, args: {mean: [0.5], stddev: [0.5]}}
package yaml_adapter

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/vk/accgraph/internal/ctxlog"
	"github.com/vk/accgraph/internal/definition"
	"github.com/vk/accgraph/internal/tensor"
	"gopkg.in/yaml.v3"
)

type fileRoot struct {
	Pipelines []pipelineDoc `yaml:"pipelines"`
}

type pipelineDoc struct {
	Name       string        `yaml:"name"`
	BatchSize  int           `yaml:"batch_size"`
	NumThreads int           `yaml:"num_threads"`
	QueueDepth int           `yaml:"queue_depth"`
	AutoFuse   *bool         `yaml:"auto_fuse"`
	Outputs    []string      `yaml:"outputs"`
	Sources    []sourceDoc   `yaml:"sources"`
	Operators  []operatorDoc `yaml:"operators"`
}

type sourceDoc struct {
	Name   string `yaml:"name"`
	Shape  []int  `yaml:"shape"`
	DType  string `yaml:"dtype"`
	Layout string `yaml:"layout"`
	Device string `yaml:"device"`
}

type operatorDoc struct {
	Kind  string         `yaml:"kind"`
	Name  string         `yaml:"name"`
	Input string         `yaml:"input"`
	Args  map[string]any `yaml:"args"`
}

// Loader is the YAML implementation of definition.Loader.
type Loader struct{}

var _ definition.Loader = (*Loader)(nil)

// NewLoader creates a new YAML definition loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Extensions returns the suffixes of YAML definition files.
func (l *Loader) Extensions() []string {
	return []string{".yaml", ".yml"}
}

// LoadFile parses one YAML file. Unknown keys are rejected.
func (l *Loader) LoadFile(ctx context.Context, file string) (*definition.Model, error) {
	logger := ctxlog.FromContext(ctx).With("file", file)
	logger.Debug("YAML loader started.")

	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	var root fileRoot
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&root); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse yaml %s: %w", file, err)
	}

	model := &definition.Model{}
	for _, doc := range root.Pipelines {
		p, err := translatePipeline(doc)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", file, err)
		}
		p.File = file
		model.Pipelines = append(model.Pipelines, p)
	}

	logger.Debug("YAML loading complete.", "pipelines", len(model.Pipelines))
	return model, nil
}

func translatePipeline(doc pipelineDoc) (*definition.Pipeline, error) {
	p := &definition.Pipeline{
		Name:       doc.Name,
		BatchSize:  doc.BatchSize,
		NumThreads: doc.NumThreads,
		QueueDepth: doc.QueueDepth,
		AutoFuse:   doc.AutoFuse,
		Outputs:    doc.Outputs,
	}
	for _, sd := range doc.Sources {
		s := &definition.Source{
			Name:   sd.Name,
			Device: sd.Device,
			Shape:  sd.Shape,
			DType:  tensor.DTypeUint8,
			Layout: tensor.LayoutNHWC,
		}
		if sd.DType != "" {
			dt, err := tensor.ParseDType(sd.DType)
			if err != nil {
				return nil, fmt.Errorf("pipeline %q, source %q: %w", doc.Name, sd.Name, err)
			}
			s.DType = dt
		}
		if sd.Layout != "" {
			lt, err := tensor.ParseLayout(sd.Layout)
			if err != nil {
				return nil, fmt.Errorf("pipeline %q, source %q: %w", doc.Name, sd.Name, err)
			}
			s.Layout = lt
		}
		p.Sources = append(p.Sources, s)
	}
	for _, od := range doc.Operators {
		args, err := toCtyMap(od.Args)
		if err != nil {
			return nil, fmt.Errorf("pipeline %q, operator %q: %w", doc.Name, od.Name, err)
		}
		p.Operators = append(p.Operators, &definition.Operator{
			Kind:  od.Kind,
			Name:  od.Name,
			Input: od.Input,
			Args:  args,
		})
	}
	return p, nil
}
