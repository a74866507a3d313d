package graph

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/vk/accgraph/internal/dag"
	"github.com/vk/accgraph/internal/nodeid"
	"github.com/vk/accgraph/internal/opspec"
)

// Graph is an immutable, topologically ordered list of operator specs plus
// the requested outputs and the external inputs the specs consume.
type Graph struct {
	specs     []*opspec.Spec
	outputs   []nodeid.Node
	inputs    []nodeid.Node
	producer  map[string]int
	consumers map[string][]int
	deps      *dag.Graph
}

// New indexes an already valid spec list. It checks that every node has at
// most one producer and that the dependency relation is acyclic; it does not
// check reachability, which is Assemble's job.
func New(specs []*opspec.Spec, outputs, inputs []nodeid.Node) (*Graph, error) {
	g := &Graph{
		specs:     slices.Clone(specs),
		outputs:   slices.Clone(outputs),
		inputs:    slices.Clone(inputs),
		producer:  make(map[string]int),
		consumers: make(map[string][]int),
		deps:      dag.New(),
	}

	for i, s := range g.specs {
		if s == nil {
			return nil, &StructureError{Reason: ReasonInvalidSpec, Index: i}
		}
		g.deps.AddNode(specKey(i))
		for _, out := range s.Outputs() {
			if _, dup := g.producer[out.Name]; dup {
				return nil, &StructureError{Reason: ReasonDuplicateProducer, Node: out.Name, Op: s.Op(), Index: i}
			}
			g.producer[out.Name] = i
		}
	}

	for i, s := range g.specs {
		for _, in := range s.Inputs() {
			g.consumers[in.Name] = append(g.consumers[in.Name], i)
			if p, ok := g.producer[in.Name]; ok {
				if err := g.deps.AddEdge(specKey(p), specKey(i)); err != nil {
					return nil, fmt.Errorf("failed to link %s #%d: %w", s.Op(), i, err)
				}
			}
		}
	}

	if err := g.deps.DetectCycles(); err != nil {
		return nil, fmt.Errorf("invalid graph: %w", err)
	}
	return g, nil
}

func specKey(i int) string {
	return strconv.Itoa(i)
}

func specIndex(key string) int {
	i, _ := strconv.Atoi(key)
	return i
}

// Len returns the number of specs.
func (g *Graph) Len() int { return len(g.specs) }

// Spec returns the spec at position i.
func (g *Graph) Spec(i int) *opspec.Spec { return g.specs[i] }

// Specs returns the specs in execution order.
func (g *Graph) Specs() []*opspec.Spec { return slices.Clone(g.specs) }

// Outputs returns the requested outputs in request order.
func (g *Graph) Outputs() []nodeid.Node { return slices.Clone(g.outputs) }

// Inputs returns the external source nodes the graph consumes.
func (g *Graph) Inputs() []nodeid.Node { return slices.Clone(g.inputs) }

// Producer returns the position of the spec producing the named node.
func (g *Graph) Producer(name string) (int, bool) {
	i, ok := g.producer[name]
	return i, ok
}

// Consumers returns the positions of the specs consuming the named node.
func (g *Graph) Consumers(name string) []int {
	return slices.Clone(g.consumers[name])
}

// Dependents returns the positions of the specs that consume any output of spec i.
func (g *Graph) Dependents(i int) []int {
	keys, err := g.deps.Dependents(specKey(i))
	if err != nil {
		return nil
	}
	out := make([]int, len(keys))
	for j, k := range keys {
		out[j] = specIndex(k)
	}
	slices.Sort(out)
	return out
}

// IsOutput reports whether the named node was requested as an output.
func (g *Graph) IsOutput(name string) bool {
	return slices.ContainsFunc(g.outputs, func(n nodeid.Node) bool { return n.Name == name })
}

// IsInput reports whether the named node is an external input of the graph.
func (g *Graph) IsInput(name string) bool {
	return slices.ContainsFunc(g.inputs, func(n nodeid.Node) bool { return n.Name == name })
}

// Ops returns the operator kind of every spec in order.
func (g *Graph) Ops() []string {
	ops := make([]string, len(g.specs))
	for i, s := range g.specs {
		ops[i] = s.Op()
	}
	return ops
}

// String renders the plan, one spec per line.
func (g *Graph) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "graph: %d ops, inputs [%s], outputs [%s]\n", len(g.specs), joinNames(g.inputs), joinNames(g.outputs))
	for i, s := range g.specs {
		fmt.Fprintf(&sb, "  %d: %s\n", i, s)
	}
	return sb.String()
}

func joinNames(nodes []nodeid.Node) string {
	names := make([]string, len(nodes))
	for i, n := range nodes {
		names[i] = n.Name
	}
	return strings.Join(names, ", ")
}
