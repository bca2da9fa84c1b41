package core

import (
	"context"
	"time"
)

// Cache stores JSON-serializable values for read-heavy projections.
type Cache interface {
	// Get decodes the cached value into dest; ok is false on a miss.
	Get(ctx context.Context, key string, dest interface{}) (ok bool, err error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	// DeletePrefix evicts every key starting with prefix.
	DeletePrefix(ctx context.Context, prefix string) error
}
