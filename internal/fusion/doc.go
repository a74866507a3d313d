// Package fusion rewrites chains of adjacent operators into single fused
// operators.
//
// A chain matches a Pattern when each stage has exactly one input, that input
// is the previous stage's only output, and that output is consumed by nothing
// else and was not requested by the caller. The fused spec takes the chain's
// first input, the chain's last output and the union of the stage arguments,
// so every node visible outside the chain keeps its identity.
//
// Rewrite never fails. A chain that does not match cleanly stays as it is.
package fusion
