// Package pipeline is the execution controller. A Pipeline owns a node
// registry and an operator set, assembles and optionally fuses the caller's
// specs exactly once, hands the result to an engine, and then runs batches
// against it until the engine reports an operator failure.
//
// # States
//
//	Constructing --Build--> Built --Run (operator failure)--> Broken
//
// Build is accepted only while Constructing. Run is accepted only while
// Built. Broken is terminal; Run fails with a *StateError without calling the
// engine, and the caller must create a new pipeline.
//
// # Errors
//
// Every error returned by Build and Run is one of *arg.Error,
// *graph.StructureError, *StateError, *RunError, *InputError or
// *ConfigError, and each matches its package sentinel with errors.Is.
//
// # Contexts
//
// Build and Run log through the *slog.Logger carried by ctx (see
// ctxlog.WithLogger) and panic when it is missing. A cancelled or expired
// ctx fails Run with a *RunError and leaves the pipeline Built.
//
// A Pipeline is safe for concurrent use; one mutex serialises Build and Run.
package pipeline
