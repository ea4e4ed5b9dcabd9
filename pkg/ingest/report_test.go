package ingest

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Sternrassler/results-ingest/pkg/query"
)

func day(d int) time.Time {
	return time.Date(2024, 5, d, 0, 0, 0, 0, time.UTC)
}

func failedOn(d time.Time) PipelineResult {
	return PipelineResult{Query: query.Query{Path: "/q", Day: d}, Stage: StageFetch, Err: errors.New("boom")}
}

func TestReport_Covers(t *testing.T) {
	r := &Report{From: day(1), To: day(3), Failures: []PipelineResult{failedOn(day(2))}}

	tests := []struct {
		day  time.Time
		want bool
	}{
		{day(1), true},
		{day(1).Add(15 * time.Hour), true},
		{day(2), false},
		{day(3), true},
		{day(4), false},
		{time.Date(2024, 4, 30, 23, 0, 0, 0, time.UTC), false},
	}
	for _, tt := range tests {
		if got := r.Covers(tt.day); got != tt.want {
			t.Errorf("Covers(%s) = %v, want %v", tt.day, got, tt.want)
		}
	}
	assert.True(t, r.Includes(day(2)))
	assert.False(t, r.Includes(day(4)))
}

func TestReport_LedgerRunCarriesFailedDays(t *testing.T) {
	r := &Report{
		RunID:    "run-1",
		From:     day(1),
		To:       day(5),
		Failed:   2,
		Failures: []PipelineResult{failedOn(day(4)), failedOn(day(2))},
	}

	run := r.ledgerRun()
	assert.Equal(t, []string{"2024-05-02", "2024-05-04"}, run.FailedDays)
	assert.Equal(t, "2024-05-01", run.From)

	assert.Nil(t, (&Report{}).FailedDays())
}
