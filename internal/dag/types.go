package dag

import "sync"

// Graph is a collection of nodes and their dependencies, representing a DAG.
// All operations on the graph are concurrency-safe.
type Graph struct {
	mutex sync.RWMutex
	nodes map[string]*node
}

// node is a single vertex. deps are predecessors, dependents successors.
type node struct {
	id         string
	deps       map[string]*node
	dependents map[string]*node
}
