package cronrunner

import (
	"context"
	"testing"
	"time"
)

func TestAdd_RejectsInvalidSchedule(t *testing.T) {
	r := New(context.Background(), time.UTC)

	if _, err := r.Add("every day", func(context.Context) {}); err == nil {
		t.Error("expected error for invalid schedule")
	}
	if _, err := r.Add("0 3 * * *", func(context.Context) {}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if got := r.Entries(); got != 1 {
		t.Errorf("Entries() = %d, want 1", got)
	}
}

func TestRunner_RunsJobWithBaseContext(t *testing.T) {
	type key struct{}
	base := context.WithValue(context.Background(), key{}, "base")

	r := New(base, nil)
	got := make(chan any, 1)
	if _, err := r.Add("@every 1s", func(ctx context.Context) {
		select {
		case got <- ctx.Value(key{}):
		default:
		}
	}); err != nil {
		t.Fatalf("Add: %v", err)
	}

	r.Start()
	defer r.Stop()

	select {
	case v := <-got:
		if v != "base" {
			t.Errorf("job context value = %v, want base", v)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("job did not run")
	}
}

func TestRunner_SkipsJobsAfterBaseCancelled(t *testing.T) {
	base, cancel := context.WithCancel(context.Background())
	cancel()

	r := New(base, time.UTC)
	ran := make(chan struct{}, 1)
	if _, err := r.Add("@every 1s", func(context.Context) {
		select {
		case ran <- struct{}{}:
		default:
		}
	}); err != nil {
		t.Fatalf("Add: %v", err)
	}

	r.Start()
	time.Sleep(2500 * time.Millisecond)
	r.Stop()

	select {
	case <-ran:
		t.Error("job ran after base context was cancelled")
	default:
	}
}
