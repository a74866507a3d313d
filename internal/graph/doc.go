// Package graph assembles operator specs and a requested output set into a
// validated, executable graph.
//
// # Build rules
//
// Assemble scans the spec list once to map every produced node to the spec
// that produces it, then walks backwards from the requested outputs:
//
//   - no outputs requested is rejected first (NoOutputsRequested);
//   - an empty spec list with outputs requested is NoDataNodeForOutput;
//   - a requested output nobody produces is NoPathToOutput;
//   - a live spec input that is neither produced nor an external source is
//     NoPathToOutput for that input;
//   - a live spec consuming a node produced by a later spec is ForwardReference;
//   - two specs producing the same node is DuplicateProducer.
//
// # Dead specs
//
// Specs that contribute to no requested output are pruned from the result.
// They are never validated beyond duplicate detection, so a dangling, unused
// spec cannot fail a build.
//
// # Result
//
// A Graph is an arena: specs are addressed by position, in a topological
// order, and the graph never changes after construction. Rewrites (such as
// fusion) produce a new Graph through New.
package graph
