// Package opspec holds the immutable description of one graph operation and
// the builder that produces it.
//
// A Builder collects inputs, arguments and output declarations, validating
// each piece as it arrives. The first failure is kept and returned by Build,
// and output nodes are only registered once everything passed, so a rejected
// builder call leaves the node registry untouched.
package opspec
