package fusion

import (
	"cmp"
	"context"
	"slices"

	"github.com/vk/accgraph/internal/arg"
	"github.com/vk/accgraph/internal/ctxlog"
	"github.com/vk/accgraph/internal/graph"
	"github.com/vk/accgraph/internal/opspec"
)

// Pattern maps a chain of operator kinds onto one fused kind.
type Pattern struct {
	Chain []string
	Fused string
	// Admit, when set, vets the merged arguments. Returning false leaves the
	// chain unfused.
	Admit func(args map[string]arg.Value) bool
}

// Rewrite returns g with every clean match of patterns replaced by a fused
// spec. Longer patterns are tried first and matches never overlap. When
// enabled is false, g is returned unchanged.
func Rewrite(ctx context.Context, g *graph.Graph, patterns []Pattern, enabled bool) *graph.Graph {
	logger := ctxlog.FromContext(ctx)
	if !enabled || len(patterns) == 0 || g.Len() == 0 {
		logger.Debug("Fusion: skipped.", "enabled", enabled, "patterns", len(patterns))
		return g
	}

	ordered := slices.Clone(patterns)
	slices.SortStableFunc(ordered, func(a, b Pattern) int {
		return cmp.Compare(len(b.Chain), len(a.Chain))
	})

	absorbed := make(map[int]bool)
	replacement := make(map[int]*opspec.Spec)
	for i := 0; i < g.Len(); i++ {
		if absorbed[i] {
			continue
		}
		for _, p := range ordered {
			stages, ok := match(g, i, p, absorbed)
			if !ok {
				continue
			}
			fused, ok := merge(g, stages, p)
			if !ok {
				logger.Debug("Fusion: merged arguments rejected.", "pattern", p.Fused, "at", i)
				continue
			}
			for _, s := range stages {
				absorbed[s] = true
			}
			last := stages[len(stages)-1]
			replacement[last] = fused
			logger.Debug("Fusion: chain fused.", "pattern", p.Fused, "stages", stages, "output", fused.Outputs()[0].Name)
			break
		}
	}

	if len(replacement) == 0 {
		logger.Debug("Fusion: no chain matched.")
		return g
	}

	specs := make([]*opspec.Spec, 0, g.Len())
	for i := 0; i < g.Len(); i++ {
		if fused, ok := replacement[i]; ok {
			specs = append(specs, fused)
			continue
		}
		if absorbed[i] {
			continue
		}
		specs = append(specs, g.Spec(i))
	}

	rewritten, err := graph.New(specs, g.Outputs(), g.Inputs())
	if err != nil {
		logger.Warn("Fusion: rewritten graph is invalid, keeping the original.", "error", err)
		return g
	}
	logger.Debug("Fusion: finished.", "before", g.Len(), "after", rewritten.Len())
	return rewritten
}

// match follows p.Chain from spec start and returns the stage positions.
func match(g *graph.Graph, start int, p Pattern, absorbed map[int]bool) ([]int, bool) {
	if len(p.Chain) < 2 {
		return nil, false
	}
	first := g.Spec(start)
	if first.Op() != p.Chain[0] || len(first.Inputs()) != 1 {
		return nil, false
	}

	stages := []int{start}
	cur := start
	for _, kind := range p.Chain[1:] {
		outs := g.Spec(cur).Outputs()
		if len(outs) != 1 {
			return nil, false
		}
		link := outs[0].Name
		if g.IsOutput(link) {
			return nil, false
		}
		consumers := g.Consumers(link)
		if len(consumers) != 1 {
			return nil, false
		}
		next := consumers[0]
		if absorbed[next] {
			return nil, false
		}
		spec := g.Spec(next)
		if spec.Op() != kind || len(spec.Inputs()) != 1 {
			return nil, false
		}
		stages = append(stages, next)
		cur = next
	}
	return stages, true
}

// merge builds the fused spec for a matched chain.
func merge(g *graph.Graph, stages []int, p Pattern) (*opspec.Spec, bool) {
	args := make(map[string]arg.Value)
	for _, i := range stages {
		for k, v := range g.Spec(i).Args() {
			if _, clash := args[k]; clash {
				return nil, false
			}
			args[k] = v
		}
	}
	if p.Admit != nil && !p.Admit(args) {
		return nil, false
	}

	first := g.Spec(stages[0])
	last := g.Spec(stages[len(stages)-1])
	return opspec.New(p.Fused, first.Inputs(), last.Outputs(), args), true
}
