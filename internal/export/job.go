package export

import (
	"math"
	"time"
)

// Job states. Progression is strictly forward within one attempt; DONE
// is the only state a redelivered message treats as terminal.
const (
	StatePending = "PENDING"
	StateRunning = "RUNNING"
	StateDone    = "DONE"
	StateError   = "ERROR"
)

// Job is the status document persisted per export job. Every write
// replaces the whole document, so concurrent redelivery races degrade to
// harmless duplicate writes of monotonic counters.
type Job struct {
	JobID           string    `json:"jobId"`
	State           string    `json:"state"`
	Format          Format    `json:"format"`
	Columns         []Column  `json:"columns"`
	FileName        string    `json:"fileName,omitempty"`
	ProgressPercent int       `json:"progressPercent"`
	Processed       int64     `json:"processed"`
	RowCount        int64     `json:"rowCount"`
	Total           int64     `json:"total"`
	Attempts        int       `json:"attempts"`
	Error           string    `json:"error,omitempty"`
	StartedAt       time.Time `json:"startedAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
	DownloadKey     *string   `json:"downloadKey"`
	DownloadURL     *string   `json:"downloadUrl"`
}

// NewJob seeds the PENDING document written at submission time: all
// counters zero, no download reference.
func NewJob(jobID string, req *Request, now time.Time) *Job {
	return &Job{
		JobID:     jobID,
		State:     StatePending,
		Format:    req.Format,
		Columns:   req.Columns,
		FileName:  req.FileName,
		StartedAt: now,
		UpdatedAt: now,
	}
}

// Progress derives the percentage as min(100, round(processed/total*100)).
// A zero total reports 0 until completion flips the document to DONE.
func Progress(processed, total int64) int {
	if total <= 0 {
		return 0
	}

	pct := int(math.Round(float64(processed) / float64(total) * 100))
	if pct > 100 {
		return 100
	}
	return pct
}

// MarkRunning resets the document for a fresh worker attempt. A
// redelivered job keeps its original StartedAt and accumulates Attempts.
func (j *Job) MarkRunning(req *Request, now time.Time) {
	j.State = StateRunning
	j.Format = req.Format
	j.Columns = req.Columns
	j.FileName = req.FileName
	j.ProgressPercent = 0
	j.Processed = 0
	j.RowCount = 0
	j.Total = 0
	j.Attempts++
	j.Error = ""
	j.DownloadKey = nil
	j.DownloadURL = nil
	if j.StartedAt.IsZero() {
		j.StartedAt = now
	}
	j.UpdatedAt = now
}

// SetTotal records the capped progress denominator, computed once at job
// start and never revisited mid-run.
func (j *Job) SetTotal(total int64, now time.Time) {
	j.Total = total
	j.UpdatedAt = now
}

// Checkpoint advances the row counters. Processed and RowCount move
// together: every row handled appears in the output.
func (j *Job) Checkpoint(processed int64, now time.Time) {
	j.Processed = processed
	j.RowCount = processed
	j.ProgressPercent = Progress(processed, j.Total)
	j.UpdatedAt = now
}

// MarkDone writes the terminal success state with the download reference
func (j *Job) MarkDone(key, url string, now time.Time) {
	j.State = StateDone
	j.ProgressPercent = 100
	j.Error = ""
	j.DownloadKey = &key
	j.DownloadURL = &url
	j.UpdatedAt = now
}

// MarkError records a failure diagnostic. Download fields stay empty; a
// requeued attempt moves the job back to RUNNING.
func (j *Job) MarkError(msg string, now time.Time) {
	j.State = StateError
	j.Error = msg
	j.DownloadKey = nil
	j.DownloadURL = nil
	j.UpdatedAt = now
}
