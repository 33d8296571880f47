// Package store persists the last observed version per watched package.
//
// The watcher treats the store as shared mutable state owned by the host:
// entries are written on first observation and on every detected change,
// and must survive across runs for change detection to work. Three
// backends are provided:
//   - Memory: for tests and single-process runs
//   - File: a JSON document for cron-style invocations
//   - Redis: for multi-instance deployments
package store

import "context"

// Store maps watch keys to the last version string observed for them.
type Store interface {
	// Get returns the stored version for a key and whether one exists.
	Get(ctx context.Context, key string) (string, bool, error)

	// Set records the version for a key, overwriting any prior entry.
	Set(ctx context.Context, key, version string) error

	// Close releases any resources held by the backend.
	Close() error
}
