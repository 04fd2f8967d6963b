// Package app contains the core application logic: it wires the workflow
// loader, the registry, the graph and the scheduler into one runnable
// pipeline, decoupled from any specific entrypoint like a CLI.
package app
