// Package localengine is an in-process reference implementation of
// engine.Engine. It runs the image kernels of the operator catalog on the CPU
// and is what the CLI falls back to when no remote engine is configured.
//
// Samples of a batch are processed concurrently, bounded by the pipeline's
// num_threads. A kernel failure breaks the handle: every later run on it
// reports CodePipelineStateError.
package localengine
