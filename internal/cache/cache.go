// Package cache provides the shared query cache: last-fetched values keyed
// by stable query keys, with a staleness window per entry. Backends must be
// safe for concurrent use; values are opaque bytes so the in-memory and
// Redis implementations stay interchangeable.
package cache

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrMiss is returned when a key is absent or its entry has gone stale.
	ErrMiss = errors.New("cache miss")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("cache closed")
)

// Cache is the byte-level query cache contract.
type Cache interface {
	// Get returns the cached value, or ErrMiss when absent or stale.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key for ttl. ttl <= 0 uses the backend default.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete invalidates a single key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Clear drops every entry. Used by logout.
	Clear(ctx context.Context) error

	// Close releases backend resources.
	Close() error
}

// Stats counts cache traffic since startup.
type Stats struct {
	Hits   int64
	Misses int64
	Sets   int64
}

// StatsProvider is implemented by backends that track traffic counts.
type StatsProvider interface {
	Stats() Stats
}
