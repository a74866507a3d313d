// Package dag is a small, concurrency-safe directed graph keyed by string IDs.
//
// The graph assembler uses it to hold the dependency relation between
// operator specs: an edge `a -> b` means b consumes something a produces.
// Besides construction it answers the three questions the build step asks:
// which nodes a node depends on, which nodes consume it, and which nodes are
// needed (transitively) to produce a given set of nodes. Query results are
// sorted so callers get deterministic output.
package dag
