package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// setupTestRedis starts an in-memory Redis for the test.
func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return client, mr
}

func TestNewManager_Panic(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("NewManager should panic with nil redis client")
		}
	}()
	NewManager(nil)
}

func TestManager_SetAndGet(t *testing.T) {
	client, mr := setupTestRedis(t)
	manager := NewManager(client)
	ctx := context.Background()

	key := KeyFor("https://www.example.org/urls.json")
	entry := &CacheEntry{
		Data:       []byte(`{"common": ["//a.example.org"]}`),
		ETag:       `"abc123"`,
		Expires:    time.Now().Add(5 * time.Minute),
		StatusCode: 200,
		CachedAt:   time.Now(),
	}

	if err := manager.Set(ctx, key, entry); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	if ttl := mr.TTL(key.String()); ttl <= 0 || ttl > 5*time.Minute {
		t.Errorf("Redis TTL = %v, want (0, 5m]", ttl)
	}

	retrieved, err := manager.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(retrieved.Data) != string(entry.Data) {
		t.Errorf("Data mismatch: got %s, want %s", retrieved.Data, entry.Data)
	}
	if retrieved.ETag != entry.ETag {
		t.Errorf("ETag mismatch: got %s, want %s", retrieved.ETag, entry.ETag)
	}
}

func TestManager_Get_CacheMiss(t *testing.T) {
	client, _ := setupTestRedis(t)
	manager := NewManager(client)

	_, err := manager.Get(context.Background(), KeyFor("https://www.example.org/missing.json"))
	if !errors.Is(err, ErrCacheMiss) {
		t.Errorf("Expected ErrCacheMiss, got %v", err)
	}
}

func TestManager_Set_SkipsExpiredAndNonOK(t *testing.T) {
	client, mr := setupTestRedis(t)
	manager := NewManager(client)
	ctx := context.Background()

	tests := []struct {
		name  string
		entry *CacheEntry
	}{
		{"expired", &CacheEntry{Data: []byte(`{}`), StatusCode: 200, Expires: time.Now().Add(-time.Hour)}},
		{"server error", &CacheEntry{Data: []byte(`{}`), StatusCode: 503, Expires: time.Now().Add(time.Hour)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := CacheKey{Host: "example.org", Path: "/" + tt.name}
			if err := manager.Set(ctx, key, tt.entry); err != nil {
				t.Fatalf("Set failed: %v", err)
			}
			if mr.Exists(key.String()) {
				t.Errorf("entry %q should not have been stored", tt.name)
			}
		})
	}
}

func TestManager_Get_CorruptEntryIsDropped(t *testing.T) {
	client, mr := setupTestRedis(t)
	manager := NewManager(client)
	key := KeyFor("https://www.example.org/urls.json")

	if err := mr.Set(key.String(), "not json"); err != nil {
		t.Fatal(err)
	}

	_, err := manager.Get(context.Background(), key)
	if !errors.Is(err, ErrInvalidEntry) {
		t.Fatalf("Expected ErrInvalidEntry, got %v", err)
	}
	if mr.Exists(key.String()) {
		t.Error("corrupt entry should be deleted")
	}
}

func TestManager_Delete(t *testing.T) {
	client, _ := setupTestRedis(t)
	manager := NewManager(client)
	ctx := context.Background()
	key := KeyFor("https://www.example.org/urls.json")

	entry := &CacheEntry{Data: []byte(`{}`), StatusCode: 200, Expires: time.Now().Add(time.Minute)}
	if err := manager.Set(ctx, key, entry); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	if err := manager.Delete(ctx, key); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := manager.Get(ctx, key); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("Expected ErrCacheMiss after Delete, got %v", err)
	}
	if err := manager.Delete(ctx, key); err != nil {
		t.Errorf("Deleting a missing key should succeed, got %v", err)
	}
}

func TestManager_Set_NilEntry(t *testing.T) {
	client, _ := setupTestRedis(t)
	manager := NewManager(client)

	if err := manager.Set(context.Background(), CacheKey{Path: "/x"}, nil); err == nil {
		t.Error("Set with nil entry should return error")
	}
}
