// Package cache provides the caching interfaces and key serialization
// used by the cached repositories.
//
// Two pieces are exported:
//
//   - CacheService: a read-through cache with per-key and per-prefix
//     invalidation. The default implementation is backed by sturdyc.
//   - KeySerializer: builds stable table::op::args keys so every entry
//     belonging to a table shares a prefix and can be dropped together
//     after a write.
//
// Typical use pairs the typed helper with a fetch closure:
//
//	key := serializer.SerializeKey("funders", "get_by_id", id)
//	funder, err := cache.GetOrFetch(ctx, service, key, func(ctx context.Context) (entity.Funder, error) {
//		return repo.GetByID(ctx, id)
//	})
//
// Key arguments must render deterministically; the default serializer
// handles strings, numbers, fmt.Stringer values, and falls back to JSON
// for composite arguments.
package cache
