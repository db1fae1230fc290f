package cache

import (
	"context"
	"fmt"
)

// FetchFn loads a value from the source of truth on a cache miss. It is
// an alias so backend implementations in other packages satisfy
// CacheService without importing this one.
type FetchFn = func(ctx context.Context) (any, error)

// CacheService exposes the read-through caching operations the repository
// decorator needs. It is exported so other packages can plug in alternate
// cache backends.
type CacheService interface {
	// GetOrFetch returns the cached value for key, calling fetch and
	// storing the result when the key is missing or expired.
	GetOrFetch(ctx context.Context, key string, fetch FetchFn) (any, error)

	// Delete removes a single entry.
	Delete(ctx context.Context, key string) error

	// DeleteByPrefix removes every entry whose key starts with prefix.
	DeleteByPrefix(ctx context.Context, prefix string) error

	// InvalidateKeys removes a batch of entries.
	InvalidateKeys(ctx context.Context, keys []string) error

	// Size reports the number of live entries.
	Size() int
}

// GetOrFetch is the type-safe entry point over CacheService.
func GetOrFetch[T any](ctx context.Context, service CacheService, key string, fetch func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	result, err := service.GetOrFetch(ctx, key, func(ctx context.Context) (any, error) {
		return fetch(ctx)
	})
	if err != nil {
		return zero, err
	}
	value, ok := result.(T)
	if !ok {
		return zero, fmt.Errorf("cache entry %q holds %T, want %T", key, result, zero)
	}
	return value, nil
}
