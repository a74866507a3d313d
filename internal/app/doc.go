// Package app contains the core application logic. It loads pipeline
// definitions, connects an engine, builds every pipeline and drives their
// runs, decoupled from any specific entrypoint like a CLI.
package app
