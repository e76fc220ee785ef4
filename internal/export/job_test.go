package export

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProgress(t *testing.T) {
	tests := []struct {
		name      string
		processed int64
		total     int64
		want      int
	}{
		{name: "zero total reports zero", processed: 0, total: 0, want: 0},
		{name: "zero processed", processed: 0, total: 100, want: 0},
		{name: "halfway", processed: 50, total: 100, want: 50},
		{name: "rounds to nearest", processed: 1, total: 3, want: 33},
		{name: "rounds up", processed: 2, total: 3, want: 67},
		{name: "complete", processed: 100, total: 100, want: 100},
		{name: "overrun clamps to 100", processed: 150, total: 100, want: 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Progress(tt.processed, tt.total))
		})
	}
}

func TestJobLifecycle(t *testing.T) {
	submitted := time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC)
	req := &Request{
		Format:  FormatCSV,
		Columns: []Column{ColumnTrailer, ColumnMovement},
	}

	job := NewJob("job-1", req, submitted)
	assert.Equal(t, StatePending, job.State)
	assert.Zero(t, job.Processed)
	assert.Zero(t, job.Total)
	assert.Nil(t, job.DownloadKey)
	assert.Nil(t, job.DownloadURL)
	assert.Equal(t, submitted, job.StartedAt)

	started := submitted.Add(2 * time.Second)
	job.MarkRunning(req, started)
	assert.Equal(t, StateRunning, job.State)
	assert.Equal(t, 1, job.Attempts)
	assert.Equal(t, submitted, job.StartedAt, "StartedAt survives the transition")
	assert.Equal(t, started, job.UpdatedAt)

	job.SetTotal(200, started)
	job.Checkpoint(50, started.Add(time.Second))
	assert.Equal(t, int64(50), job.Processed)
	assert.Equal(t, int64(50), job.RowCount)
	assert.Equal(t, 25, job.ProgressPercent)
	assert.Nil(t, job.DownloadKey)

	job.Checkpoint(200, started.Add(2*time.Second))
	assert.Equal(t, 100, job.ProgressPercent)

	job.MarkDone("exports/files/job-1.csv", "http://store/exports/files/job-1.csv", started.Add(3*time.Second))
	assert.Equal(t, StateDone, job.State)
	assert.Equal(t, 100, job.ProgressPercent)
	require.NotNil(t, job.DownloadKey)
	assert.Equal(t, "exports/files/job-1.csv", *job.DownloadKey)
	require.NotNil(t, job.DownloadURL)
	assert.Equal(t, "http://store/exports/files/job-1.csv", *job.DownloadURL)
}

func TestJobRetryAccumulatesAttempts(t *testing.T) {
	req := &Request{Format: FormatCSV, Columns: DefaultColumns}
	now := time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC)

	job := NewJob("job-2", req, now)

	job.MarkRunning(req, now.Add(time.Second))
	job.SetTotal(10, now.Add(time.Second))
	job.Checkpoint(4, now.Add(2*time.Second))
	job.MarkError("cursor failed", now.Add(3*time.Second))

	assert.Equal(t, StateError, job.State)
	assert.Equal(t, "cursor failed", job.Error)
	assert.Nil(t, job.DownloadKey)
	assert.Equal(t, 1, job.Attempts)

	// redelivery: the next attempt starts over with zeroed counters
	job.MarkRunning(req, now.Add(4*time.Second))
	assert.Equal(t, StateRunning, job.State)
	assert.Equal(t, 2, job.Attempts)
	assert.Zero(t, job.Processed)
	assert.Zero(t, job.Total)
	assert.Empty(t, job.Error)
}

func TestJobEmptyResultCompletesAtHundred(t *testing.T) {
	req := &Request{Format: FormatCSV, Columns: DefaultColumns}
	now := time.Now()

	job := NewJob("job-3", req, now)
	job.MarkRunning(req, now)
	job.SetTotal(0, now)
	job.Checkpoint(0, now)
	assert.Equal(t, 0, job.ProgressPercent)

	job.MarkDone("exports/files/job-3.csv", "http://store/exports/files/job-3.csv", now)
	assert.Equal(t, 100, job.ProgressPercent)
	assert.Equal(t, int64(0), job.RowCount)
}
