package repository

import (
	"context"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/fundwise/fundsheet/cache"
	"github.com/fundwise/fundsheet/entity"
)

// Cached decorates a base repository with read-through caching. Reads
// are cached under table-scoped keys; any successful write drops every
// cached entry for the table, so the next read refetches. Tracked keys
// are kept in a registry so invalidation touches only keys this
// decorator created, even when the cache backend is shared.
type Cached[T entity.Entity] struct {
	base       Repository[T]
	cache      cache.CacheService
	serializer cache.KeySerializer
	keys       *xsync.MapOf[string, struct{}]
}

var _ Repository[entity.Funder] = (*Cached[entity.Funder])(nil)

// NewCached wraps base with caching.
func NewCached[T entity.Entity](base Repository[T], service cache.CacheService, serializer cache.KeySerializer) *Cached[T] {
	return &Cached[T]{
		base:       base,
		cache:      service,
		serializer: serializer,
		keys:       xsync.NewMapOf[string, struct{}](),
	}
}

// Table implements Repository.
func (c *Cached[T]) Table() string { return c.base.Table() }

func (c *Cached[T]) key(op string, args ...any) string {
	k := c.serializer.SerializeKey(c.base.Table(), op, args...)
	c.keys.Store(k, struct{}{})
	return k
}

// invalidate drops every cached entry belonging to this table.
func (c *Cached[T]) invalidate(ctx context.Context) {
	var tracked []string
	c.keys.Range(func(k string, _ struct{}) bool {
		tracked = append(tracked, k)
		return true
	})
	for _, k := range tracked {
		c.keys.Delete(k)
	}
	_ = c.cache.InvalidateKeys(ctx, tracked)
	_ = c.cache.DeleteByPrefix(ctx, cache.TablePrefix(c.base.Table()))
}

// GetAll implements Repository, caching the full table scan.
func (c *Cached[T]) GetAll(ctx context.Context) ([]T, error) {
	key := c.key("get_all")
	return cache.GetOrFetch(ctx, c.cache, key, func(ctx context.Context) ([]T, error) {
		return c.base.GetAll(ctx)
	})
}

// GetByID implements Repository. Lookups scan the cached table snapshot
// so an id miss never costs more than one remote fetch.
func (c *Cached[T]) GetByID(ctx context.Context, id string) (T, error) {
	var zero T
	records, err := c.GetAll(ctx)
	if err != nil {
		return zero, err
	}
	for _, r := range records {
		if r.EntityID() == id {
			return r, nil
		}
	}
	return zero, &NotFoundError{Table: c.base.Table(), ID: id}
}

// Count implements Repository.
func (c *Cached[T]) Count(ctx context.Context) (int, error) {
	key := c.key("count")
	return cache.GetOrFetch(ctx, c.cache, key, func(ctx context.Context) (int, error) {
		return c.base.Count(ctx)
	})
}

// FindByField implements Repository, caching per (field, value) pair.
func (c *Cached[T]) FindByField(ctx context.Context, field, value string) ([]T, error) {
	key := c.key("find_by_field", field, value)
	return cache.GetOrFetch(ctx, c.cache, key, func(ctx context.Context) ([]T, error) {
		return c.base.FindByField(ctx, field, value)
	})
}

// Exists implements Repository, answering from the cached snapshot.
func (c *Cached[T]) Exists(ctx context.Context, id string) (bool, error) {
	_, err := c.GetByID(ctx, id)
	if err == nil {
		return true, nil
	}
	if IsNotFound(err) {
		return false, nil
	}
	return false, err
}

// Create implements Repository. The id is probed against the cached
// snapshot first, so duplicate appends are rejected without an extra
// remote read; the write itself passes through and invalidates.
func (c *Cached[T]) Create(ctx context.Context, record T) (T, error) {
	var zero T
	exists, err := c.Exists(ctx, record.EntityID())
	if err != nil {
		return zero, err
	}
	if exists {
		return zero, &DuplicateError{Table: c.base.Table(), ID: record.EntityID()}
	}
	result, err := c.base.Create(ctx, record)
	if err == nil {
		c.invalidate(ctx)
	}
	return result, err
}

// BatchCreate implements Repository. Ids colliding with the cached
// snapshot are rejected before anything is written.
func (c *Cached[T]) BatchCreate(ctx context.Context, records []T) ([]T, error) {
	if len(records) > 0 {
		existing, err := c.GetAll(ctx)
		if err != nil {
			return nil, err
		}
		ids := map[string]bool{}
		for _, r := range existing {
			ids[r.EntityID()] = true
		}
		for _, r := range records {
			if ids[r.EntityID()] {
				return nil, &DuplicateError{Table: c.base.Table(), ID: r.EntityID()}
			}
		}
	}
	result, err := c.base.BatchCreate(ctx, records)
	if err == nil {
		c.invalidate(ctx)
	}
	return result, err
}

// Update implements Repository.
func (c *Cached[T]) Update(ctx context.Context, id string, mutate func(T) (T, error)) (T, error) {
	result, err := c.base.Update(ctx, id, mutate)
	if err == nil {
		c.invalidate(ctx)
	}
	return result, err
}

// Delete implements Repository.
func (c *Cached[T]) Delete(ctx context.Context, id string) error {
	err := c.base.Delete(ctx, id)
	if err == nil {
		c.invalidate(ctx)
	}
	return err
}

// HealthCheck implements Repository. Health is never cached.
func (c *Cached[T]) HealthCheck(ctx context.Context) bool {
	return c.base.HealthCheck(ctx)
}
