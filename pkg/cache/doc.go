// Package cache keeps upstream documents in Redis so that repeated ingestion
// runs do not hammer slow-changing upstream resources such as the endpoint
// discovery document.
//
// Entries carry the raw body and an absolute expiry. The expiry comes from the
// upstream Expires header when present and in the future, otherwise from the
// caller's fallback TTL. Redis evicts entries on their own TTL; Get also
// treats an entry past its expiry as a miss.
//
//	manager := cache.NewManager(redisClient)
//	key := cache.KeyFor("https://example.org/urls.json")
//
//	entry, err := manager.Get(ctx, key)
//	if errors.Is(err, cache.ErrCacheMiss) {
//		resp, _ := http.Get(...)
//		entry, _ = cache.ResponseToEntry(resp, 10*time.Minute)
//		_ = manager.Set(ctx, key, entry)
//	}
//
// Metrics:
//
//   - results_ingest_cache_hits_total
//   - results_ingest_cache_misses_total
//   - results_ingest_cache_errors_total{operation}
package cache
