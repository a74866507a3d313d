// Package arg defines the tagged-union argument values attached to operator
// specs and the descriptor-driven validation that every value passes before a
// spec can hold it.
//
// A Value is either a scalar (int, float, string or bool) or a list of values.
// Lists are allowed to be heterogeneous as raw input; Validate rejects them.
// Values convert to and from cty so definition files and the remote engine
// protocol can carry them without losing the int/float distinction.
package arg
