package status

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SSP-Group-Of-Companies/TraxYard-sub001/internal/export"
	"github.com/SSP-Group-Of-Companies/TraxYard-sub001/shared/objectstore"
)

// memBlob stores JSON payloads in a map, mimicking the object store's
// not-found sentinel.
type memBlob struct {
	objects map[string][]byte
	failPut error
	failGet error
}

func newMemBlob() *memBlob {
	return &memBlob{objects: make(map[string][]byte)}
}

func (m *memBlob) PutJSON(_ context.Context, key string, v interface{}) error {
	if m.failPut != nil {
		return m.failPut
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	m.objects[key] = data
	return nil
}

func (m *memBlob) GetJSON(_ context.Context, key string, v interface{}) error {
	if m.failGet != nil {
		return m.failGet
	}
	data, ok := m.objects[key]
	if !ok {
		return fmt.Errorf("object %q: %w", key, objectstore.ErrNotFound)
	}
	return json.Unmarshal(data, v)
}

func TestStoreKey(t *testing.T) {
	store := NewStore(newMemBlob(), "exports/status")
	assert.Equal(t, "exports/status/job-1.json", store.Key("job-1"))

	store = NewStore(newMemBlob(), "exports/status/")
	assert.Equal(t, "exports/status/job-1.json", store.Key("job-1"))
}

func TestStoreRoundTrip(t *testing.T) {
	blob := newMemBlob()
	store := NewStore(blob, "exports/status")
	ctx := context.Background()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	job := export.NewJob("4f1c0d2e-aaaa-bbbb-cccc-000000000001", &export.Request{Format: "csv"}, now)

	require.NoError(t, store.Put(ctx, job))

	got, err := store.Get(ctx, job.JobID)
	require.NoError(t, err)
	assert.Equal(t, export.StatePending, got.State)
	assert.Equal(t, job.JobID, got.JobID)
	assert.True(t, got.UpdatedAt.Equal(now))
}

func TestStoreGetMissing(t *testing.T) {
	store := NewStore(newMemBlob(), "exports/status")

	got, err := store.Get(context.Background(), "no-such-job")
	require.Error(t, err)
	assert.Nil(t, got)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), "no-such-job")
}

func TestStoreSurfacesStorageErrors(t *testing.T) {
	blob := newMemBlob()
	blob.failGet = errors.New("connection refused")
	store := NewStore(blob, "exports/status")

	_, err := store.Get(context.Background(), "job-1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)

	blob.failPut = errors.New("connection refused")
	job := export.NewJob("job-1", &export.Request{}, time.Now())
	require.Error(t, store.Put(context.Background(), job))
}
