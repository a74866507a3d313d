package hcl_adapter

import (
	"context"
	"fmt"
	"slices"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/vk/accgraph/internal/ctxlog"
	"github.com/vk/accgraph/internal/definition"
)

// Loader is the HCL implementation of definition.Loader.
type Loader struct{}

var _ definition.Loader = (*Loader)(nil)

// NewLoader creates a new HCL definition loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Extensions returns the suffix of HCL definition files.
func (l *Loader) Extensions() []string {
	return []string{".hcl"}
}

// LoadFile parses one HCL file and translates its pipeline blocks.
func (l *Loader) LoadFile(ctx context.Context, file string) (*definition.Model, error) {
	logger := ctxlog.FromContext(ctx).With("file", file)
	logger.Debug("HCL loader started.")

	parser := hclparse.NewParser()
	hclFile, diags := parser.ParseHCLFile(file)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file %s: %w", file, diags)
	}

	var root fileRoot
	diags = gohcl.DecodeBody(hclFile.Body, nil, &root)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL file %s: %w", file, diags)
	}
	attrs, diags := root.Remain.JustAttributes()
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL file %s: %w", file, diags)
	}
	if len(attrs) > 0 {
		names := make([]string, 0, len(attrs))
		for name := range attrs {
			names = append(names, name)
		}
		slices.Sort(names)
		return nil, fmt.Errorf("%s: unexpected top-level attributes %v", file, names)
	}

	model := &definition.Model{}
	for _, pb := range root.Pipelines {
		p, err := l.translatePipeline(ctx, pb)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", file, err)
		}
		p.File = file
		model.Pipelines = append(model.Pipelines, p)
	}

	logger.Debug("HCL loading complete.", "pipelines", len(model.Pipelines))
	return model, nil
}
