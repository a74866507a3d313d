package graph

import (
	"context"
	"slices"

	"github.com/vk/accgraph/internal/ctxlog"
	"github.com/vk/accgraph/internal/dag"
	"github.com/vk/accgraph/internal/nodeid"
	"github.com/vk/accgraph/internal/opspec"
)

// ExternalFunc reports whether a node name is an external source fed at run time.
type ExternalFunc func(name string) bool

// Assemble validates specs against the requested outputs and returns the
// pruned graph that produces them.
func Assemble(ctx context.Context, specs []*opspec.Spec, outputs []nodeid.Node, isExternal ExternalFunc) (*Graph, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Assemble: started.", "specs", len(specs), "outputs", len(outputs))

	if isExternal == nil {
		isExternal = func(string) bool { return false }
	}
	if len(outputs) == 0 {
		return nil, &StructureError{Reason: ReasonNoOutputsRequested, Index: -1}
	}
	if len(specs) == 0 {
		return nil, &StructureError{Reason: ReasonNoDataNodeForOutput, Node: outputs[0].Name, Index: -1}
	}

	// Pass 1: producers.
	producer := make(map[string]int)
	deps := dag.New()
	for i, s := range specs {
		if s == nil {
			return nil, &StructureError{Reason: ReasonInvalidSpec, Index: i}
		}
		deps.AddNode(specKey(i))
		for _, out := range s.Outputs() {
			if _, dup := producer[out.Name]; dup {
				return nil, &StructureError{Reason: ReasonDuplicateProducer, Node: out.Name, Op: s.Op(), Index: i}
			}
			producer[out.Name] = i
		}
	}
	logger.Debug("Assemble: producer map built.", "nodes", len(producer))

	// Pass 2: dependency edges. Problems are recorded here and only reported
	// for specs that turn out to be live.
	unresolved := make(map[int]nodeid.Node)
	forward := make(map[int]nodeid.Node)
	for i, s := range specs {
		for _, in := range s.Inputs() {
			p, ok := producer[in.Name]
			switch {
			case !ok:
				if !isExternal(in.Name) {
					if _, seen := unresolved[i]; !seen {
						unresolved[i] = in
					}
				}
			case p >= i:
				if _, seen := forward[i]; !seen {
					forward[i] = in
				}
			default:
				if err := deps.AddEdge(specKey(p), specKey(i)); err != nil {
					return nil, err
				}
			}
		}
	}

	// Pass 3: requested outputs and liveness.
	roots := make([]string, 0, len(outputs))
	for _, out := range outputs {
		p, ok := producer[out.Name]
		if !ok {
			return nil, &StructureError{Reason: ReasonNoPathToOutput, Node: out.Name, Index: -1}
		}
		roots = append(roots, specKey(p))
	}
	live, err := deps.Ancestors(roots...)
	if err != nil {
		return nil, err
	}

	// Pass 4: validate and compact live specs in their original order.
	kept := make([]*opspec.Spec, 0, len(live))
	var inputs []nodeid.Node
	addInput := func(n nodeid.Node) {
		if !slices.Contains(inputs, n) {
			inputs = append(inputs, n)
		}
	}
	for i, s := range specs {
		if _, ok := live[specKey(i)]; !ok {
			logger.Debug("Assemble: pruning unused spec.", "op", s.Op(), "index", i)
			continue
		}
		if n, bad := unresolved[i]; bad {
			return nil, &StructureError{Reason: ReasonNoPathToOutput, Node: n.Name, Op: s.Op(), Index: i}
		}
		if n, bad := forward[i]; bad {
			return nil, &StructureError{Reason: ReasonForwardReference, Node: n.Name, Op: s.Op(), Index: i}
		}
		for _, in := range s.Inputs() {
			if isExternal(in.Name) {
				addInput(in)
			}
		}
		for _, out := range s.Outputs() {
			if isExternal(out.Name) {
				addInput(out)
			}
		}
		kept = append(kept, s)
	}

	g, err := New(kept, outputs, inputs)
	if err != nil {
		return nil, err
	}
	logger.Debug("Assemble: finished.", "live_specs", g.Len(), "pruned", len(specs)-g.Len(), "inputs", len(inputs))
	return g, nil
}
