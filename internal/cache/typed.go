package cache

import (
	"context"
	"encoding/json"
	"time"
)

// Typed wraps a Cache with JSON serialization for a concrete value type,
// so the query layer never handles raw bytes.
type Typed[T any] struct {
	cache Cache
	ttl   time.Duration
}

// NewTyped creates a Typed view over c with the given staleness window.
func NewTyped[T any](c Cache, ttl time.Duration) *Typed[T] {
	return &Typed[T]{cache: c, ttl: ttl}
}

// Get returns the cached value and true, or the zero value and false on a
// miss. Undecodable entries are dropped and count as a miss.
func (t *Typed[T]) Get(ctx context.Context, key string) (T, bool) {
	var zero T
	data, err := t.cache.Get(ctx, key)
	if err != nil {
		return zero, false
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		_ = t.cache.Delete(ctx, key)
		return zero, false
	}
	return v, true
}

// Set stores v under key with the configured staleness window.
func (t *Typed[T]) Set(ctx context.Context, key string, v T) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return t.cache.Set(ctx, key, data, t.ttl)
}

// Delete invalidates key.
func (t *Typed[T]) Delete(ctx context.Context, key string) error {
	return t.cache.Delete(ctx, key)
}
