// Package kv defines the durable key-value storage the plan store is built on,
// with in-memory, SQLite and Redis backends.
package kv

import "context"

// Storage is a string key-value store. Implementations must be safe for concurrent use.
type Storage interface {
	// Get returns the value for key and whether it exists.
	Get(ctx context.Context, key string) (string, bool, error)
	// Set stores value under key, replacing any existing value.
	Set(ctx context.Context, key, value string) error
	// Delete removes key. Removing a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// Has reports whether key exists.
	Has(ctx context.Context, key string) (bool, error)
	// Keys lists keys with the given prefix.
	Keys(ctx context.Context, prefix string) ([]string, error)
}

// Prober is implemented by backends that can report whether they are usable.
type Prober interface {
	Ping(ctx context.Context) error
}
