package endpoint

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProvider_RenewsAfterFailure(t *testing.T) {
	var healthy atomic.Bool
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if !healthy.Load() {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"common": ["//a"]}`))
	}))
	defer srv.Close()

	cfg := DefaultConfig()
	cfg.DiscoveryURL = srv.URL
	p, err := NewProvider(cfg, 0)
	require.NoError(t, err)

	ctx := context.Background()
	p.Renew()
	var discErr *DiscoveryError
	require.ErrorAs(t, p.Initialize(ctx), &discErr)
	_, err = p.Next(ctx)
	assert.ErrorAs(t, err, &discErr)

	healthy.Store(true)
	failed := p.Pool()
	p.Renew()
	assert.NotSame(t, failed, p.Pool())
	require.NoError(t, p.Initialize(ctx))

	e, err := p.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, Endpoint("http://a"), e)

	// A healthy pool is kept.
	current := p.Pool()
	p.Renew()
	assert.Same(t, current, p.Pool())
	require.NoError(t, p.Initialize(ctx))
	assert.Equal(t, int32(2), calls.Load())
}

func TestProvider_RenewsExpiredPool(t *testing.T) {
	srv, calls := discoveryServer(t, http.StatusOK, `{"common": ["//a"]}`)
	cfg := DefaultConfig()
	cfg.DiscoveryURL = srv.URL

	p, err := NewProvider(cfg, time.Hour)
	require.NoError(t, err)
	now := time.Now()
	p.now = func() time.Time { return now }

	require.NoError(t, p.Initialize(context.Background()))
	first := p.Pool()

	p.Renew()
	assert.Same(t, first, p.Pool(), "fresh pool must be kept")

	now = now.Add(2 * time.Hour)
	p.Renew()
	assert.NotSame(t, first, p.Pool())
	require.NoError(t, p.Initialize(context.Background()))
	assert.Equal(t, int32(2), calls.Load())
}

func TestProvider_DoesNotRenewPendingPool(t *testing.T) {
	p, err := NewProvider(Config{DiscoveryURL: "http://127.0.0.1:1/urls.json", Key: "common"}, time.Nanosecond)
	require.NoError(t, err)

	pending := p.Pool()
	p.Renew()
	assert.Same(t, pending, p.Pool())
}

func TestNewProvider_Validation(t *testing.T) {
	_, err := NewProvider(Config{Key: "common"}, 0)
	assert.Error(t, err)
}
