package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sternrassler/results-ingest/pkg/model"
	"github.com/Sternrassler/results-ingest/pkg/store"
)

var day = time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

func at(d time.Duration) int64 {
	return day.Add(d).Unix()
}

func seed(t *testing.T, s *Store) {
	t.Helper()
	require.NoError(t, s.InsertMany(context.Background(), []model.Event{
		{Name: "Zenit - Rostov", StartTime: at(18 * time.Hour)},
		{Name: "Spartak - CSKA", StartTime: at(12 * time.Hour)},
		{Name: "Spartak - CSKA", StartTime: at(36 * time.Hour)},
		{Name: "Arsenal - Chelsea", StartTime: at(12 * time.Hour)},
		{Name: "Early", StartTime: at(-time.Second)},
	}))
}

func TestStore_InsertManyAllOrNothing(t *testing.T) {
	s := New()
	seed(t, s)

	err := s.InsertMany(context.Background(), []model.Event{
		{Name: "New", StartTime: 1},
		{Name: "Zenit - Rostov", StartTime: at(18 * time.Hour)},
	})
	assert.True(t, errors.Is(err, store.ErrDuplicate))
	assert.Equal(t, 5, s.Len())

	_, ok := s.events[model.Key{Name: "New", StartTime: 1}]
	assert.False(t, ok, "partial batch must not be written")
}

func TestStore_FindByStartTime(t *testing.T) {
	s := New()
	seed(t, s)

	got, err := s.FindByStartTime(context.Background(), day, day.AddDate(0, 0, 1), 0)
	require.NoError(t, err)

	var names []string
	for _, ev := range got {
		names = append(names, ev.Name)
	}
	assert.Equal(t, []string{"Arsenal - Chelsea", "Spartak - CSKA", "Zenit - Rostov"}, names)

	limited, err := s.FindByStartTime(context.Background(), day, day.AddDate(0, 0, 1), 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestStore_FindByNamePrefix(t *testing.T) {
	s := New()
	seed(t, s)

	got, err := s.FindByNamePrefix(context.Background(), "Spartak", 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Greater(t, got[0].StartTime, got[1].StartTime, "newest first within a name")

	got, err = s.FindByNamePrefix(context.Background(), "spartak", 10)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestStore_DeleteRange(t *testing.T) {
	s := New()
	seed(t, s)

	n, err := s.DeleteRange(context.Background(), day, day.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.Equal(t, 2, s.Len())

	// Re-inserting the deleted day is allowed afterwards.
	require.NoError(t, s.InsertMany(context.Background(), []model.Event{{Name: "Zenit - Rostov", StartTime: at(18 * time.Hour)}}))
}

func TestStore_ConcurrentInserts(t *testing.T) {
	s := New()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, s.InsertMany(context.Background(), []model.Event{{Name: "E", StartTime: int64(i)}}))
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 20, s.Len())
}

func TestStore_CancelledContext(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Error(t, s.InsertMany(ctx, []model.Event{{Name: "A"}}))
	assert.Error(t, s.Ping(ctx))
	assert.NoError(t, s.EnsureUniqueIndex(context.Background()))
}
