package cache

import (
	"net/url"
	"testing"
)

func TestCacheKey_String(t *testing.T) {
	tests := []struct {
		name string
		key  CacheKey
		want string
	}{
		{
			name: "path only",
			key:  CacheKey{Path: "/urls.json"},
			want: "ingest:cache:urls.json",
		},
		{
			name: "host is lower-cased",
			key:  CacheKey{Host: "WWW.Example.ORG", Path: "/urls.json"},
			want: "ingest:cache:www.example.org:urls.json",
		},
		{
			name: "query params sorted",
			key: CacheKey{
				Host:        "line.example.org",
				Path:        "/results/results.json.php",
				QueryParams: url.Values{"lineDate": {"2024-05-01"}, "lang": {"en"}},
			},
			want: "ingest:cache:line.example.org:results/results.json.php:lang=en:lineDate=2024-05-01",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.key.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestKeyFor(t *testing.T) {
	got := KeyFor("https://www.example.org/urls.json?v=2").String()
	want := "ingest:cache:www.example.org:urls.json:v=2"
	if got != want {
		t.Errorf("KeyFor() = %q, want %q", got, want)
	}

	if a, b := KeyFor("://bad"), KeyFor("://other"); a.String() == b.String() {
		t.Errorf("unparseable URLs must not collide: %q", a.String())
	}
}
