package cache

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// keyPrefix namespaces every key this package writes.
const keyPrefix = "ingest:cache"

// CacheKey identifies a cached upstream document.
type CacheKey struct {
	// Host is the upstream host (e.g. "www.example.org").
	Host string

	// Path is the upstream path (e.g. "/urls.json").
	Path string

	// QueryParams are the request query parameters.
	QueryParams url.Values
}

// KeyFor builds a CacheKey from an absolute URL. Unparseable input is kept
// verbatim in Path so distinct inputs still map to distinct keys.
func KeyFor(rawURL string) CacheKey {
	u, err := url.Parse(rawURL)
	if err != nil {
		return CacheKey{Path: rawURL}
	}
	return CacheKey{Host: u.Host, Path: u.Path, QueryParams: u.Query()}
}

// String generates a deterministic key.
// Format: ingest:cache:host:path:q1=v1:q2=v2
func (k CacheKey) String() string {
	parts := []string{keyPrefix}

	if k.Host != "" {
		parts = append(parts, strings.ToLower(k.Host))
	}

	if path := strings.Trim(k.Path, "/"); path != "" {
		parts = append(parts, path)
	}

	if len(k.QueryParams) > 0 {
		names := make([]string, 0, len(k.QueryParams))
		for name := range k.QueryParams {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			parts = append(parts, fmt.Sprintf("%s=%s", name, k.QueryParams.Get(name)))
		}
	}

	return strings.Join(parts, ":")
}
