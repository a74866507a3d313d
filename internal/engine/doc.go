// Package engine defines the contract between a pipeline and the backend that
// executes its graph.
//
// An Engine receives an assembled (and possibly fused) graph exactly once per
// pipeline and returns an opaque Handle. Runs then feed named input batches
// against that handle. Failures are reported as *Error values carrying one of
// the result codes below; the pipeline decides from the code whether the
// failure is terminal.
package engine
