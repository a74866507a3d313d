// internal/nodeid/doc.go

/*
Package nodeid issues and describes the identities of data nodes inside a
single pipeline construction session.

Every node name has the canonical form `base_N`, where `base` is the name the
caller asked for and `N` is taken from a counter owned by the session's
Registry. The counter only ever grows, so two calls with the same base name
never produce the same node, even across repeated build and run cycles.

Nodes are plain values. Operator specs refer to nodes by value (name and
device), which makes late wiring a matter of name equality.
*/
package nodeid
