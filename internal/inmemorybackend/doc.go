// Package inmemorybackend provides an ephemeral, thread-safe, in-memory
// implementation of persist.Backend.
//
// # Purpose
//
// It keeps saved snapshots for the lifetime of the process. Tests use it to
// exercise save and restore cycles, and the CLI uses it when no durable
// backend is configured.
//
// # Concurrency Model
//
// Snapshots are stored in a sync.Map keyed by store name. Backends returned
// by Named share the same map, so several stores in one process can keep
// separate slots side by side without a global lock.
package inmemorybackend
