//go:build integration

package postgres

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/Sternrassler/results-ingest/pkg/model"
	"github.com/Sternrassler/results-ingest/pkg/store"
)

// setupPostgres creates a Postgres container for integration testing.
func setupPostgres(t *testing.T) (*Store, func()) {
	t.Helper()

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "ingest",
			"POSTGRES_PASSWORD": "ingest",
			"POSTGRES_DB":       "results",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Skipf("Postgres container not available: %v", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	url := fmt.Sprintf("postgres://ingest:ingest@%s:%s/results?sslmode=disable", host, port.Port())
	s, err := Open(ctx, url)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	cleanup := func() {
		s.Close()
		container.Terminate(ctx)
	}
	return s, cleanup
}

func TestStore_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	s, cleanup := setupPostgres(t)
	defer cleanup()

	ctx := context.Background()
	day := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	events := []model.Event{
		{Name: "Spartak - CSKA", StartTime: day.Add(12 * time.Hour).Unix(), SectionName: "Football"},
		{Name: "Spartak - Zenit", StartTime: day.Add(15 * time.Hour).Unix()},
		{Name: "100% Match", StartTime: day.Add(30 * time.Hour).Unix()},
	}
	if err := s.InsertMany(ctx, events); err != nil {
		t.Fatalf("InsertMany() error = %v", err)
	}

	// Duplicate batch is rejected atomically.
	err := s.InsertMany(ctx, []model.Event{
		{Name: "Fresh", StartTime: 1},
		{Name: "Spartak - CSKA", StartTime: day.Add(12 * time.Hour).Unix()},
	})
	if !errors.Is(err, store.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
	if got, _ := s.FindByNamePrefix(ctx, "Fresh", 10); len(got) != 0 {
		t.Errorf("partial batch was written: %+v", got)
	}

	got, err := s.FindByStartTime(ctx, day, day.AddDate(0, 0, 1), 10000)
	if err != nil {
		t.Fatalf("FindByStartTime() error = %v", err)
	}
	if len(got) != 2 || got[0].SectionName != "Football" {
		t.Errorf("FindByStartTime() = %+v", got)
	}

	got, err = s.FindByNamePrefix(ctx, "100%", 100)
	if err != nil {
		t.Fatalf("FindByNamePrefix() error = %v", err)
	}
	if len(got) != 1 {
		t.Errorf("FindByNamePrefix(100%%) = %+v", got)
	}

	n, err := s.DeleteRange(ctx, day, day.AddDate(0, 0, 1))
	if err != nil {
		t.Fatalf("DeleteRange() error = %v", err)
	}
	if n != 2 {
		t.Errorf("DeleteRange() = %d, want 2", n)
	}

	if err := s.EnsureUniqueIndex(ctx); err != nil {
		t.Errorf("EnsureUniqueIndex() error = %v", err)
	}
	if err := s.Ping(ctx); err != nil {
		t.Errorf("Ping() error = %v", err)
	}
}
