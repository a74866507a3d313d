package remoteengine

import (
	"encoding/json"
	"fmt"

	"github.com/vk/accgraph/internal/arg"
	"github.com/vk/accgraph/internal/engine"
	"github.com/vk/accgraph/internal/graph"
	"github.com/vk/accgraph/internal/nodeid"
	"github.com/vk/accgraph/internal/opspec"
	"github.com/vk/accgraph/internal/tensor"
)

// Event names.
const (
	EventBuild = "accgraph:build"
	EventRun   = "accgraph:run"
)

// ReplyEvent returns the event a reply to request id of event arrives on.
func ReplyEvent(event, id string) string {
	return event + ":" + id
}

// Spec is the wire form of one operator spec.
type Spec struct {
	Op      string              `json:"op"`
	Inputs  []nodeid.Ref        `json:"inputs"`
	Outputs []nodeid.Ref        `json:"outputs"`
	Args    map[string]arg.Wire `json:"args,omitempty"`
}

// Graph is the wire form of a graph.
type Graph struct {
	Specs   []Spec       `json:"specs"`
	Inputs  []nodeid.Ref `json:"inputs"`
	Outputs []nodeid.Ref `json:"outputs"`
}

// BuildRequest is the payload of EventBuild.
type BuildRequest struct {
	RequestID string        `json:"request_id"`
	Graph     Graph         `json:"graph"`
	Config    engine.Config `json:"config"`
}

// RunRequest is the payload of EventRun.
type RunRequest struct {
	RequestID string                   `json:"request_id"`
	Handle    engine.Handle            `json:"handle"`
	Inputs    map[string]*tensor.Batch `json:"inputs"`
}

// Reply answers either request.
type Reply struct {
	Handle  engine.Handle   `json:"handle,omitempty"`
	Code    engine.Code     `json:"code"`
	Op      string          `json:"op,omitempty"`
	Message string          `json:"message,omitempty"`
	Outputs []*tensor.Batch `json:"outputs,omitempty"`
}

// Err returns the reply's failure as an *engine.Error, or nil.
func (r *Reply) Err() error {
	if r.Code == engine.CodeOK {
		return nil
	}
	return &engine.Error{Code: r.Code, Op: r.Op, Message: r.Message}
}

func refs(nodes []nodeid.Node) []nodeid.Ref {
	out := make([]nodeid.Ref, len(nodes))
	for i, n := range nodes {
		out[i] = n.Ref()
	}
	return out
}

func nodes(refs []nodeid.Ref) []nodeid.Node {
	out := make([]nodeid.Node, len(refs))
	for i, r := range refs {
		out[i] = nodeid.Node{Name: r.Name, Device: r.Device}
	}
	return out
}

// EncodeGraph converts g into its wire form.
func EncodeGraph(g *graph.Graph) (Graph, error) {
	w := Graph{
		Specs:   make([]Spec, 0, g.Len()),
		Inputs:  refs(g.Inputs()),
		Outputs: refs(g.Outputs()),
	}
	for _, s := range g.Specs() {
		ws := Spec{Op: s.Op(), Inputs: refs(s.Inputs()), Outputs: refs(s.Outputs())}
		for _, name := range s.ArgNames() {
			v, _ := s.Arg(name)
			enc, err := v.ToWire()
			if err != nil {
				return Graph{}, fmt.Errorf("%s.%s: %w", s.Op(), name, err)
			}
			if ws.Args == nil {
				ws.Args = make(map[string]arg.Wire)
			}
			ws.Args[name] = enc
		}
		w.Specs = append(w.Specs, ws)
	}
	return w, nil
}

// Decode rebuilds the graph. Nodes come back without a session id.
func (w Graph) Decode() (*graph.Graph, error) {
	specs := make([]*opspec.Spec, 0, len(w.Specs))
	for _, ws := range w.Specs {
		args := make(map[string]arg.Value, len(ws.Args))
		for name, enc := range ws.Args {
			v, err := enc.Decode()
			if err != nil {
				return nil, fmt.Errorf("%s.%s: %w", ws.Op, name, err)
			}
			args[name] = v
		}
		specs = append(specs, opspec.New(ws.Op, nodes(ws.Inputs), nodes(ws.Outputs), args))
	}
	return graph.New(specs, nodes(w.Outputs), nodes(w.Inputs))
}

// toPayload turns v into the generic JSON shape socket.io emits.
func toPayload(v any) (map[string]any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// fromPayload decodes a generic JSON value received from socket.io into v.
func fromPayload(data any, v any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}
