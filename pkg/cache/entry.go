package cache

import (
	"net/http"
	"time"
)

// CacheEntry is a cached upstream response body.
type CacheEntry struct {
	// Data is the response body.
	Data []byte `json:"data"`

	// ETag as sent by upstream, kept for diagnostics.
	ETag string `json:"etag,omitempty"`

	// Expires is when the entry becomes stale.
	Expires time.Time `json:"expires"`

	// StatusCode of the cached response; only 200 responses are cached.
	StatusCode int `json:"status_code"`

	// ContentType of the cached response.
	ContentType string `json:"content_type,omitempty"`

	// CachedAt is when the entry was created.
	CachedAt time.Time `json:"cached_at"`
}

// IsExpired returns true if the cache entry has expired.
func (e *CacheEntry) IsExpired() bool {
	return time.Now().After(e.Expires)
}

// TTL returns the time until expiration, or 0 if already expired.
func (e *CacheEntry) TTL() time.Duration {
	ttl := time.Until(e.Expires)
	if ttl < 0 {
		return 0
	}
	return ttl
}

// Age returns how long ago the entry was cached.
func (e *CacheEntry) Age() time.Duration {
	return time.Since(e.CachedAt)
}

// Cacheable reports whether a response with this status may be stored.
func Cacheable(statusCode int) bool {
	return statusCode == http.StatusOK
}
