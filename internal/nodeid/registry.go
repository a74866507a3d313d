// internal/nodeid/registry.go
package nodeid

import (
	"fmt"
	"sync"
	"sync/atomic"
)

var sessionCounter atomic.Uint64

// Registry issues unique nodes for one pipeline and remembers which of them
// are external sources.
type Registry struct {
	mu       sync.Mutex
	session  uint64
	next     uint64
	issued   map[string]Node
	external map[string]struct{}
}

// NewRegistry creates a registry with a process-unique session id.
func NewRegistry() *Registry {
	return &Registry{
		session:  sessionCounter.Add(1),
		issued:   make(map[string]Node),
		external: make(map[string]struct{}),
	}
}

// Session returns the id stamped on every node this registry issues.
func (r *Registry) Session() uint64 {
	return r.session
}

// Register returns a fresh node named `base_N`. An empty device becomes DefaultDevice.
func (r *Registry) Register(base, device string) Node {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.registerLocked(base, device)
}

// RegisterExternal registers a node that is fed by the caller at run time.
func (r *Registry) RegisterExternal(base, device string) Node {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := r.registerLocked(base, device)
	r.external[n.Name] = struct{}{}
	return n
}

func (r *Registry) registerLocked(base, device string) Node {
	if device == "" {
		device = DefaultDevice
	}
	r.next++
	n := Node{
		Name:    fmt.Sprintf("%s_%d", base, r.next),
		Device:  device,
		Session: r.session,
	}
	r.issued[n.Name] = n
	return n
}

// Owns reports whether n was issued by this registry.
func (r *Registry) Owns(n Node) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	issued, ok := r.issued[n.Name]
	return ok && issued == n
}

// Lookup returns the issued node with the given name.
func (r *Registry) Lookup(name string) (Node, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n, ok := r.issued[name]
	return n, ok
}

// IsExternal reports whether the named node was registered as an external source.
func (r *Registry) IsExternal(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.external[name]
	return ok
}

// Len returns the number of nodes issued so far.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.issued)
}
