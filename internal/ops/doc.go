// Package ops is the operator catalog: the kinds a pipeline can contain,
// their argument descriptors and defaults, and the fusion table that maps
// known chains onto fused kernels.
//
// A Set binds the catalog to one pipeline's node registry. Every builder
// method validates its arguments before any output node is registered, so a
// failed call leaves the registry untouched.
package ops
