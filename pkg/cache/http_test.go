package cache

import (
	"bytes"
	"io"
	"net/http"
	"testing"
	"time"
)

func newResponse(status int, headers http.Header, body string) *http.Response {
	if headers == nil {
		headers = http.Header{}
	}
	return &http.Response{
		StatusCode: status,
		Header:     headers,
		Body:       io.NopCloser(bytes.NewReader([]byte(body))),
	}
}

func TestResponseToEntry(t *testing.T) {
	expires := time.Now().Add(time.Hour).UTC().Truncate(time.Second)
	resp := newResponse(200, http.Header{
		"Expires":      {expires.Format(http.TimeFormat)},
		"Etag":         {`"v1"`},
		"Content-Type": {"application/json"},
	}, `{"common": []}`)

	entry, err := ResponseToEntry(resp, time.Minute)
	if err != nil {
		t.Fatalf("ResponseToEntry() error = %v", err)
	}

	body, _ := io.ReadAll(resp.Body)
	if string(body) != `{"common": []}` {
		t.Errorf("body not restored, got %q", body)
	}
	if string(entry.Data) != `{"common": []}` {
		t.Errorf("Data = %q", entry.Data)
	}
	if !entry.Expires.Equal(expires) {
		t.Errorf("Expires = %v, want %v", entry.Expires, expires)
	}
	if entry.ETag != `"v1"` || entry.ContentType != "application/json" || entry.StatusCode != 200 {
		t.Errorf("unexpected entry metadata: %+v", entry)
	}
}

func TestResponseToEntry_Nil(t *testing.T) {
	if _, err := ResponseToEntry(nil, 0); err == nil {
		t.Error("expected error for nil response")
	}
}

func TestParseExpires(t *testing.T) {
	now := time.Now()
	future := now.Add(2 * time.Hour).UTC().Truncate(time.Second)

	tests := []struct {
		name     string
		header   string
		fallback time.Duration
		want     time.Time
	}{
		{"future header wins", future.Format(http.TimeFormat), time.Minute, future},
		{"missing header uses fallback", "", 10 * time.Minute, now.Add(10 * time.Minute)},
		{"past header uses fallback", now.Add(-time.Hour).Format(http.TimeFormat), time.Minute, now.Add(time.Minute)},
		{"garbage header uses fallback", "tomorrow", time.Minute, now.Add(time.Minute)},
		{"zero fallback uses default", "", 0, now.Add(DefaultTTL)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := http.Header{}
			if tt.header != "" {
				h.Set("Expires", tt.header)
			}
			if got := parseExpires(h, now, tt.fallback); !got.Equal(tt.want) {
				t.Errorf("parseExpires() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCacheEntry_TTLAndExpiry(t *testing.T) {
	fresh := &CacheEntry{Expires: time.Now().Add(time.Hour), CachedAt: time.Now().Add(-time.Minute)}
	if fresh.IsExpired() || fresh.TTL() <= 0 {
		t.Errorf("fresh entry reported expired: %+v", fresh)
	}
	if fresh.Age() < time.Minute {
		t.Errorf("Age() = %v, want >= 1m", fresh.Age())
	}

	stale := &CacheEntry{Expires: time.Now().Add(-time.Second)}
	if !stale.IsExpired() || stale.TTL() != 0 {
		t.Errorf("stale entry not reported expired: %+v", stale)
	}
}
