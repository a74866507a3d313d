// Package definition holds the format-agnostic model of pipeline definition
// files and turns a definition into a built pipeline.
//
// Format-specific loaders (HCL, YAML) live in their own packages and produce
// a *Model. Load dispatches files to loaders by extension and merges the
// results.
package definition
