// This file translates the HCL schema structs into the format-agnostic
// definition model.

package hcl_adapter

import (
	"context"
	"fmt"
	"sort"

	"github.com/hashicorp/hcl/v2"
	"github.com/vk/accgraph/internal/ctxlog"
	"github.com/vk/accgraph/internal/definition"
	"github.com/vk/accgraph/internal/tensor"
	"github.com/zclconf/go-cty/cty"
)

func (l *Loader) translatePipeline(ctx context.Context, b *pipelineBlock) (*definition.Pipeline, error) {
	logger := ctxlog.FromContext(ctx).With("pipeline", b.Name)
	logger.Debug("Translating HCL pipeline to definition model.", "sources", len(b.Sources), "operators", len(b.Operators))

	p := &definition.Pipeline{
		Name:       b.Name,
		BatchSize:  deref(b.BatchSize),
		NumThreads: deref(b.NumThreads),
		QueueDepth: deref(b.QueueDepth),
		AutoFuse:   b.AutoFuse,
		Outputs:    b.Outputs,
	}
	for _, sb := range b.Sources {
		s, err := translateSource(sb)
		if err != nil {
			return nil, fmt.Errorf("pipeline %q: %w", b.Name, err)
		}
		p.Sources = append(p.Sources, s)
	}
	for _, ob := range b.Operators {
		args, err := attributeValues(ob.Args)
		if err != nil {
			return nil, fmt.Errorf("pipeline %q, operator %q: %w", b.Name, ob.Name, err)
		}
		p.Operators = append(p.Operators, &definition.Operator{
			Kind:  ob.Kind,
			Name:  ob.Name,
			Input: ob.Input,
			Args:  args,
		})
	}
	return p, nil
}

func translateSource(b *sourceBlock) (*definition.Source, error) {
	s := &definition.Source{
		Name:   b.Name,
		Device: deref(b.Device),
		Shape:  b.Shape,
		DType:  tensor.DTypeUint8,
		Layout: tensor.LayoutNHWC,
	}
	if b.DType != nil {
		dt, err := tensor.ParseDType(*b.DType)
		if err != nil {
			return nil, fmt.Errorf("source %q: %w", b.Name, err)
		}
		s.DType = dt
	}
	if b.Layout != nil {
		lt, err := tensor.ParseLayout(*b.Layout)
		if err != nil {
			return nil, fmt.Errorf("source %q: %w", b.Name, err)
		}
		s.Layout = lt
	}
	return s, nil
}

// attributeValues evaluates every attribute of body as a constant.
func attributeValues(body hcl.Body) (map[string]cty.Value, error) {
	if body == nil {
		return nil, nil
	}
	attrs, diags := body.JustAttributes()
	if diags.HasErrors() {
		return nil, diags
	}
	names := make([]string, 0, len(attrs))
	for name := range attrs {
		names = append(names, name)
	}
	sort.Strings(names)

	values := make(map[string]cty.Value, len(attrs))
	for _, name := range names {
		val, diags := attrs[name].Expr.Value(nil)
		if diags.HasErrors() {
			return nil, fmt.Errorf("argument %q: %w", name, diags)
		}
		values[name] = val
	}
	return values, nil
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}
