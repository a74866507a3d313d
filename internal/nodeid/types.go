// internal/nodeid/types.go
package nodeid

// DefaultDevice is the device tag used when a caller does not name one.
const DefaultDevice = "cpu"

// Node identifies one data slot (an operator input or output) in a pipeline graph.
type Node struct {
	Name    string
	Device  string
	Session uint64
}

// Ref is the part of a Node that operator specs carry across the engine boundary.
type Ref struct {
	Name   string `json:"name"`
	Device string `json:"device"`
}

// Ref returns the name and device of the node.
func (n Node) Ref() Ref {
	return Ref{Name: n.Name, Device: n.Device}
}

// IsZero reports whether n is the zero Node.
func (n Node) IsZero() bool {
	return n.Name == "" && n.Device == "" && n.Session == 0
}

// String returns the node name.
func (n Node) String() string {
	return n.Name
}
