// Package scheduler drives the execution of a selected plan: a bounded
// pool of workers consumes nodes as their requirements succeed, failures
// skip dependents transitively, and fail-fast or an interrupt cancels
// everything not yet started. Each node ends in exactly one terminal
// result, written exactly once.
package scheduler
