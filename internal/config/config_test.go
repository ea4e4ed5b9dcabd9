package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sternrassler/results-ingest/pkg/logging"
)

func TestLoadFrom_Defaults(t *testing.T) {
	c, err := LoadFrom(map[string]string{"DATABASE_URL": "postgres://localhost/results"})
	require.NoError(t, err)

	assert.Equal(t, DriverPostgres, c.StoreDriver)
	assert.Equal(t, ":8080", c.HTTPAddr)
	assert.Equal(t, "https://www.fonbet.ru/urls.json", c.DiscoveryURL)
	assert.Equal(t, "common", c.DiscoveryKey)
	assert.Equal(t, "http:", c.EndpointScheme)
	assert.Equal(t, 10, c.MaxPerHost)
	assert.Equal(t, 10, c.MaxAttempts)
	assert.Equal(t, time.Second, c.BackoffUnit)
	assert.Equal(t, 30*time.Second, c.RequestTimeout)
	assert.Equal(t, 365, c.DefaultRangeDays)
	assert.Equal(t, time.UTC, c.Location())
	assert.Equal(t, time.Hour, c.EndpointPoolMaxAge)
	assert.Empty(t, c.RedisURL)
}

func TestLoadFrom_Overrides(t *testing.T) {
	c, err := LoadFrom(map[string]string{
		"STORE_DRIVER":    "memory",
		"LOG_LEVEL":       "DEBUG",
		"LOG_PRETTY":      "true",
		"MAX_PER_HOST":    "4",
		"BACKOFF_UNIT":    "250ms",
		"TIMEZONE":        "Europe/Moscow",
		"INGEST_SCHEDULE": "0 3 * * *",
	})
	require.NoError(t, err)

	assert.Equal(t, 4, c.MaxPerHost)
	assert.Equal(t, 250*time.Millisecond, c.BackoffUnit)
	assert.Equal(t, "Europe/Moscow", c.Location().String())

	lc := c.Logging()
	assert.Equal(t, logging.LevelDebug, lc.Level)
	assert.True(t, lc.Pretty)
}

func TestLoadFrom_Invalid(t *testing.T) {
	tests := []struct {
		name string
		vars map[string]string
	}{
		{"postgres without url", map[string]string{}},
		{"unknown driver", map[string]string{"STORE_DRIVER": "mongo"}},
		{"bad template", map[string]string{"STORE_DRIVER": "memory", "QUERY_TEMPLATE": "/results"}},
		{"zero per host", map[string]string{"STORE_DRIVER": "memory", "MAX_PER_HOST": "0"}},
		{"zero attempts", map[string]string{"STORE_DRIVER": "memory", "MAX_ATTEMPTS": "0"}},
		{"bad duration", map[string]string{"STORE_DRIVER": "memory", "BACKOFF_UNIT": "soon"}},
		{"negative backoff", map[string]string{"STORE_DRIVER": "memory", "BACKOFF_UNIT": "-1s"}},
		{"bad timezone", map[string]string{"STORE_DRIVER": "memory", "TIMEZONE": "Mars/Olympus"}},
		{"bad schedule", map[string]string{"STORE_DRIVER": "memory", "INGEST_SCHEDULE": "every day"}},
		{"zero range", map[string]string{"STORE_DRIVER": "memory", "DEFAULT_RANGE_DAYS": "0"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFrom(tt.vars)
			assert.Error(t, err)
		})
	}
}

func TestLoadFrom_ZeroBackoffDisablesWait(t *testing.T) {
	c, err := LoadFrom(map[string]string{"STORE_DRIVER": "memory", "BACKOFF_UNIT": "0s"})
	require.NoError(t, err)
	assert.Equal(t, time.Duration(0), c.BackoffUnit)
}

func TestDefaultRange(t *testing.T) {
	c, err := LoadFrom(map[string]string{"STORE_DRIVER": "memory", "DEFAULT_RANGE_DAYS": "3"})
	require.NoError(t, err)

	from, to := c.DefaultRange(time.Date(2024, 3, 1, 17, 30, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2024, 2, 28, 0, 0, 0, 0, time.UTC), from)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), to)
}
