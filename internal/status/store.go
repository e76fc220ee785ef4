// Package status persists export job records as JSON objects in the
// object store, one per job. The record doubles as the queue consumer's
// checkpoint and the API's poll target, so reads and writes go through
// the same key scheme on both sides.
package status

import (
	"context"
	"errors"
	"fmt"
	"path"

	"github.com/SSP-Group-Of-Companies/TraxYard-sub001/internal/export"
	"github.com/SSP-Group-Of-Companies/TraxYard-sub001/shared/objectstore"
)

// ErrNotFound is returned by Get when no record exists for the job id.
var ErrNotFound = errors.New("job status not found")

// Blob is the slice of the object store client the status store needs.
type Blob interface {
	PutJSON(ctx context.Context, key string, v interface{}) error
	GetJSON(ctx context.Context, key string, v interface{}) error
}

// Store reads and writes job status records under a fixed key prefix.
type Store struct {
	blob   Blob
	prefix string
}

func NewStore(blob Blob, prefix string) *Store {
	return &Store{
		blob:   blob,
		prefix: prefix,
	}
}

// Key returns the object key holding the status record for a job.
func (s *Store) Key(jobID string) string {
	return path.Join(s.prefix, jobID+".json")
}

// Get loads the status record for a job. A missing record reports
// ErrNotFound; every other failure is a storage error.
func (s *Store) Get(ctx context.Context, jobID string) (*export.Job, error) {
	var job export.Job
	if err := s.blob.GetJSON(ctx, s.Key(jobID), &job); err != nil {
		if errors.Is(err, objectstore.ErrNotFound) {
			return nil, fmt.Errorf("job %s: %w", jobID, ErrNotFound)
		}
		return nil, fmt.Errorf("get status for job %s: %w", jobID, err)
	}
	return &job, nil
}

// Put writes the full status record, replacing any previous version.
func (s *Store) Put(ctx context.Context, job *export.Job) error {
	if err := s.blob.PutJSON(ctx, s.Key(job.JobID), job); err != nil {
		return fmt.Errorf("put status for job %s: %w", job.JobID, err)
	}
	return nil
}
