package worker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SSP-Group-Of-Companies/TraxYard-sub001/internal/export"
	"github.com/SSP-Group-Of-Companies/TraxYard-sub001/internal/movement"
	"github.com/SSP-Group-Of-Companies/TraxYard-sub001/internal/status"
	"github.com/SSP-Group-Of-Companies/TraxYard-sub001/internal/worker/domain"
)

const testJobID = "7b0c2f1e-5a3d-4e8b-9c6f-0123456789ab"

// fakeStatus keeps the latest record per job plus every write in order,
// so tests can assert the checkpoint sequence a poller would observe.
type fakeStatus struct {
	mu      sync.Mutex
	records map[string]*export.Job
	history []export.Job
	failPut error
}

func newFakeStatus() *fakeStatus {
	return &fakeStatus{records: make(map[string]*export.Job)}
}

func (f *fakeStatus) Get(_ context.Context, jobID string) (*export.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	job, ok := f.records[jobID]
	if !ok {
		return nil, fmt.Errorf("job %s: %w", jobID, status.ErrNotFound)
	}
	cp := *job
	return &cp, nil
}

func (f *fakeStatus) Put(_ context.Context, job *export.Job) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failPut != nil {
		return f.failPut
	}
	cp := *job
	f.records[job.JobID] = &cp
	f.history = append(f.history, cp)
	return nil
}

func (f *fakeStatus) latest(t *testing.T, jobID string) *export.Job {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()

	job, ok := f.records[jobID]
	require.True(t, ok, "no status record for %s", jobID)
	cp := *job
	return &cp
}

// fakeSource serves a fixed record slice, honoring the stream window the
// way the SQL store would.
type fakeSource struct {
	records   []movement.Record
	countErr  error
	failAfter int // cursor rows yielded before an injected error; 0 disables
	gotOpts   movement.StreamOptions
}

func (f *fakeSource) CountMovements(_ context.Context, _ *movement.Filter, max int64) (int64, error) {
	if f.countErr != nil {
		return 0, f.countErr
	}
	n := int64(len(f.records))
	if n > max {
		n = max
	}
	return n, nil
}

func (f *fakeSource) StreamMovements(_ context.Context, _ *movement.Filter, opts movement.StreamOptions) (movement.Cursor, error) {
	f.gotOpts = opts

	recs := f.records
	if opts.Offset >= int64(len(recs)) {
		recs = nil
	} else if opts.Offset > 0 {
		recs = recs[opts.Offset:]
	}
	if opts.Limit > 0 && int64(len(recs)) > opts.Limit {
		recs = recs[:opts.Limit]
	}

	return &sliceCursor{records: recs, failAfter: f.failAfter}, nil
}

type sliceCursor struct {
	records   []movement.Record
	idx       int
	failAfter int
	err       error
}

func (c *sliceCursor) Next() bool {
	if c.err != nil {
		return false
	}
	if c.failAfter > 0 && c.idx >= c.failAfter {
		c.err = errors.New("connection reset mid-stream")
		return false
	}
	if c.idx >= len(c.records) {
		return false
	}
	c.idx++
	return true
}

func (c *sliceCursor) Record() *movement.Record { return &c.records[c.idx-1] }
func (c *sliceCursor) Err() error               { return c.err }
func (c *sliceCursor) Close() error             { return nil }

// fakeBlob buffers uploaded artifacts in memory
type fakeBlob struct {
	mu           sync.Mutex
	objects      map[string][]byte
	contentTypes map[string]string
	uploadErr    error
}

func newFakeBlob() *fakeBlob {
	return &fakeBlob{
		objects:      make(map[string][]byte),
		contentTypes: make(map[string]string),
	}
}

func (f *fakeBlob) Upload(_ context.Context, key, contentType string, r io.Reader) (int64, error) {
	if f.uploadErr != nil {
		return 0, f.uploadErr
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return 0, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = data
	f.contentTypes[key] = contentType
	return int64(len(data)), nil
}

func (f *fakeBlob) ObjectURL(key string) string {
	return "http://blobs.local/" + key
}

func (f *fakeBlob) object(t *testing.T, key string) []byte {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()

	data, ok := f.objects[key]
	require.True(t, ok, "no object at %s", key)
	return data
}

func newTestExporter(source MovementSource, st StatusStore, blob BlobUploader, maxRows int64, maxAttempts int) (*Exporter, *Metrics) {
	metrics := NewMetrics(prometheus.NewRegistry())
	exporter := NewExporter(&ExporterConfig{
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		Status:      st,
		Source:      source,
		Blob:        blob,
		Metrics:     metrics,
		MaxRows:     maxRows,
		MaxAttempts: maxAttempts,
		FilePrefix:  "exports/files",
	})
	return exporter, metrics
}

func testRecords(n int) []movement.Record {
	recs := make([]movement.Record, n)
	base := time.Date(2025, 6, 10, 8, 0, 0, 0, time.UTC)
	for i := range recs {
		recs[i] = movement.Record{
			MovementID:    fmt.Sprintf("m-%04d", i+1),
			EventAt:       base.Add(time.Duration(i) * time.Minute),
			MovementType:  movement.TypeIn,
			TrailerNumber: fmt.Sprintf("T%d", i+1),
			YardCode:      "MIL",
		}
	}
	return recs
}

func trailerColumns() []export.Column {
	return []export.Column{export.ColumnTrailer, export.ColumnMovement}
}

func TestProcessExportsCSVArtifact(t *testing.T) {
	source := &fakeSource{records: []movement.Record{
		{MovementID: "m-1", TrailerNumber: "T1", MovementType: movement.TypeIn},
		{MovementID: "m-2", TrailerNumber: "T2", MovementType: movement.TypeOut},
	}}
	st := newFakeStatus()
	blob := newFakeBlob()
	exporter, metrics := newTestExporter(source, st, blob, 250000, 3)

	req := &export.Request{Format: export.FormatCSV, Columns: trailerColumns()}
	ctx := context.Background()

	// Submission seeds the PENDING record before the message lands
	require.NoError(t, st.Put(ctx, export.NewJob(testJobID, req, time.Now())))
	st.history = nil

	err := exporter.Process(ctx, &domain.JobMessage{JobID: testJobID, Request: req, DeliveryTag: 1})
	require.NoError(t, err)

	wantKey := "exports/files/" + testJobID + ".csv"
	assert.Equal(t, "Trailer,Movement\nT1,IN\nT2,OUT\n", string(blob.object(t, wantKey)))
	assert.Equal(t, "text/csv", blob.contentTypes[wantKey])

	job := st.latest(t, testJobID)
	assert.Equal(t, export.StateDone, job.State)
	assert.Equal(t, 100, job.ProgressPercent)
	assert.Equal(t, int64(2), job.Processed)
	assert.Equal(t, int64(2), job.RowCount)
	assert.Equal(t, int64(2), job.Total)
	assert.Equal(t, 1, job.Attempts)
	require.NotNil(t, job.DownloadKey)
	assert.Equal(t, wantKey, *job.DownloadKey)
	require.NotNil(t, job.DownloadURL)
	assert.Equal(t, "http://blobs.local/"+wantKey, *job.DownloadURL)

	// A poller sees RUNNING before the total lands, then DONE
	require.Len(t, st.history, 3)
	assert.Equal(t, export.StateRunning, st.history[0].State)
	assert.Nil(t, st.history[0].DownloadKey)
	assert.Equal(t, int64(2), st.history[1].Total)
	assert.Equal(t, export.StateDone, st.history[2].State)

	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.JobsProcessed.WithLabelValues("done")))
	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.RowsExported))
}

func TestProcessSkipsCompletedRedelivery(t *testing.T) {
	st := newFakeStatus()
	blob := newFakeBlob()
	source := &fakeSource{records: testRecords(2)}
	exporter, metrics := newTestExporter(source, st, blob, 250000, 3)

	req := &export.Request{Format: export.FormatCSV, Columns: trailerColumns()}
	ctx := context.Background()

	done := export.NewJob(testJobID, req, time.Now())
	done.MarkDone("exports/files/old.csv", "http://blobs.local/exports/files/old.csv", time.Now())
	require.NoError(t, st.Put(ctx, done))
	st.history = nil

	err := exporter.Process(ctx, &domain.JobMessage{JobID: testJobID, Request: req, DeliveryTag: 2})
	require.NoError(t, err)

	assert.Empty(t, st.history, "a finished job must not be rewritten")
	assert.Empty(t, blob.objects, "a finished job must not re-upload")
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.JobsProcessed.WithLabelValues("skipped")))
}

func TestProcessRebuildsMissingStatusRecord(t *testing.T) {
	st := newFakeStatus()
	blob := newFakeBlob()
	source := &fakeSource{records: testRecords(1)}
	exporter, _ := newTestExporter(source, st, blob, 250000, 3)

	req := &export.Request{Format: export.FormatCSV, Columns: trailerColumns()}

	err := exporter.Process(context.Background(), &domain.JobMessage{JobID: testJobID, Request: req, DeliveryTag: 3})
	require.NoError(t, err)

	job := st.latest(t, testJobID)
	assert.Equal(t, export.StateDone, job.State)
	assert.Equal(t, 1, job.Attempts)
	assert.Equal(t, int64(1), job.RowCount)
}

func TestProcessTruncatesAtRowCeiling(t *testing.T) {
	st := newFakeStatus()
	blob := newFakeBlob()
	source := &fakeSource{records: testRecords(5)}
	exporter, _ := newTestExporter(source, st, blob, 3, 3)

	req := &export.Request{Format: export.FormatCSV, Columns: trailerColumns()}

	err := exporter.Process(context.Background(), &domain.JobMessage{JobID: testJobID, Request: req, DeliveryTag: 4})
	require.NoError(t, err)

	job := st.latest(t, testJobID)
	assert.Equal(t, export.StateDone, job.State, "truncation is success, not failure")
	assert.Equal(t, int64(3), job.Total)
	assert.Equal(t, int64(3), job.RowCount)
	assert.Equal(t, 100, job.ProgressPercent)

	data := blob.object(t, "exports/files/"+testJobID+".csv")
	assert.Equal(t, 4, strings.Count(string(data), "\n"), "header plus exactly three rows")
}

func TestProcessHonorsPageWindow(t *testing.T) {
	st := newFakeStatus()
	blob := newFakeBlob()
	source := &fakeSource{records: testRecords(5)}
	exporter, _ := newTestExporter(source, st, blob, 250000, 3)

	req := &export.Request{
		Format:  export.FormatCSV,
		Columns: []export.Column{export.ColumnTrailer},
		Page:    2,
		Limit:   2,
	}

	err := exporter.Process(context.Background(), &domain.JobMessage{JobID: testJobID, Request: req, DeliveryTag: 5})
	require.NoError(t, err)

	assert.Equal(t, int64(2), source.gotOpts.Offset)
	assert.Equal(t, int64(2), source.gotOpts.Limit)

	data := blob.object(t, "exports/files/"+testJobID+".csv")
	assert.Equal(t, "Trailer\nT3\nT4\n", string(data))

	job := st.latest(t, testJobID)
	assert.Equal(t, int64(2), job.Total)
}

func TestProcessMarksErrorAndRetries(t *testing.T) {
	st := newFakeStatus()
	blob := newFakeBlob()
	source := &fakeSource{records: testRecords(2), failAfter: 1}
	exporter, _ := newTestExporter(source, st, blob, 250000, 3)

	req := &export.Request{Format: export.FormatCSV, Columns: trailerColumns()}
	msg := &domain.JobMessage{JobID: testJobID, Request: req, DeliveryTag: 6}
	ctx := context.Background()

	err := exporter.Process(ctx, msg)
	require.Error(t, err)

	var retryable *domain.RetryableError
	assert.True(t, errors.As(err, &retryable), "mid-stream failures must requeue")

	job := st.latest(t, testJobID)
	assert.Equal(t, export.StateError, job.State)
	assert.Contains(t, job.Error, "connection reset")
	assert.Nil(t, job.DownloadKey)
	assert.Empty(t, blob.objects, "failed attempts leave no artifact behind")

	// Redelivery restarts the export from scratch and succeeds
	source.failAfter = 0
	require.NoError(t, exporter.Process(ctx, msg))

	job = st.latest(t, testJobID)
	assert.Equal(t, export.StateDone, job.State)
	assert.Equal(t, 2, job.Attempts)
	assert.Equal(t, int64(2), job.RowCount)
}

func TestProcessStopsRetryingAfterMaxAttempts(t *testing.T) {
	st := newFakeStatus()
	blob := newFakeBlob()
	source := &fakeSource{records: testRecords(2), failAfter: 1}
	exporter, metrics := newTestExporter(source, st, blob, 250000, 1)

	req := &export.Request{Format: export.FormatCSV, Columns: trailerColumns()}

	err := exporter.Process(context.Background(), &domain.JobMessage{JobID: testJobID, Request: req, DeliveryTag: 7})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrMaxAttemptsExceeded)

	var retryable *domain.RetryableError
	assert.False(t, errors.As(err, &retryable))

	job := st.latest(t, testJobID)
	assert.Equal(t, export.StateError, job.State)
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.JobsProcessed.WithLabelValues("error")))
}

func TestProcessUploadFailure(t *testing.T) {
	st := newFakeStatus()
	blob := newFakeBlob()
	blob.uploadErr = errors.New("bucket unreachable")
	source := &fakeSource{records: testRecords(2)}
	exporter, _ := newTestExporter(source, st, blob, 250000, 3)

	req := &export.Request{Format: export.FormatCSV, Columns: trailerColumns()}

	err := exporter.Process(context.Background(), &domain.JobMessage{JobID: testJobID, Request: req, DeliveryTag: 8})
	require.Error(t, err)

	var retryable *domain.RetryableError
	assert.True(t, errors.As(err, &retryable))

	job := st.latest(t, testJobID)
	assert.Equal(t, export.StateError, job.State)
	assert.Contains(t, job.Error, "bucket unreachable")
}

func TestProcessRejectsMessageWithoutRequest(t *testing.T) {
	st := newFakeStatus()
	exporter, _ := newTestExporter(&fakeSource{}, st, newFakeBlob(), 250000, 3)

	err := exporter.Process(context.Background(), &domain.JobMessage{JobID: testJobID, DeliveryTag: 9})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidMessage)
	assert.Empty(t, st.history)
}

func TestProcessEmptyResultCompletes(t *testing.T) {
	st := newFakeStatus()
	blob := newFakeBlob()
	exporter, _ := newTestExporter(&fakeSource{}, st, blob, 250000, 3)

	req := &export.Request{Format: export.FormatCSV, Columns: trailerColumns()}

	err := exporter.Process(context.Background(), &domain.JobMessage{JobID: testJobID, Request: req, DeliveryTag: 10})
	require.NoError(t, err)

	job := st.latest(t, testJobID)
	assert.Equal(t, export.StateDone, job.State)
	assert.Equal(t, int64(0), job.Total)
	assert.Equal(t, int64(0), job.RowCount)
	assert.Equal(t, 100, job.ProgressPercent)
	require.NotNil(t, job.DownloadKey)

	data := blob.object(t, "exports/files/"+testJobID+".csv")
	assert.Equal(t, "Trailer,Movement\n", string(data), "empty result still yields a header-only artifact")
}

func TestProcessCheckpointCadence(t *testing.T) {
	st := newFakeStatus()
	blob := newFakeBlob()
	source := &fakeSource{records: testRecords(4500)}
	exporter, metrics := newTestExporter(source, st, blob, 250000, 3)

	req := &export.Request{Format: export.FormatCSV, Columns: []export.Column{export.ColumnTrailer}}

	err := exporter.Process(context.Background(), &domain.JobMessage{JobID: testJobID, Request: req, DeliveryTag: 11})
	require.NoError(t, err)

	// MarkRunning, total, two cadence checkpoints at 2000 and 4000, DONE
	require.Len(t, st.history, 5)
	assert.Equal(t, int64(2000), st.history[2].Processed)
	assert.Equal(t, int64(4000), st.history[3].Processed)
	assert.Equal(t, export.StateDone, st.history[4].State)

	// Counters and progress never move backwards across writes
	var lastProcessed int64
	lastPercent := 0
	for _, snap := range st.history {
		assert.GreaterOrEqual(t, snap.Processed, lastProcessed)
		assert.GreaterOrEqual(t, snap.ProgressPercent, lastPercent)
		lastProcessed = snap.Processed
		lastPercent = snap.ProgressPercent
	}

	// Total put plus two cadence puts
	assert.Equal(t, float64(3), testutil.ToFloat64(metrics.Checkpoints))

	data := blob.object(t, "exports/files/"+testJobID+".csv")
	assert.Equal(t, 4501, strings.Count(string(data), "\n"))
}

func TestProcessExportsXLSXArtifact(t *testing.T) {
	st := newFakeStatus()
	blob := newFakeBlob()
	source := &fakeSource{records: testRecords(3)}
	exporter, _ := newTestExporter(source, st, blob, 250000, 3)

	req := &export.Request{Format: export.FormatXLSX, Columns: trailerColumns()}

	err := exporter.Process(context.Background(), &domain.JobMessage{JobID: testJobID, Request: req, DeliveryTag: 12})
	require.NoError(t, err)

	wantKey := "exports/files/" + testJobID + ".xlsx"
	data := blob.object(t, wantKey)
	assert.NotEmpty(t, data)
	assert.Equal(t,
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		blob.contentTypes[wantKey],
	)

	job := st.latest(t, testJobID)
	assert.Equal(t, export.StateDone, job.State)
	assert.Equal(t, int64(3), job.RowCount)
}

func TestRequestWindow(t *testing.T) {
	tests := []struct {
		name       string
		req        export.Request
		maxRows    int64
		wantOffset int64
		wantLimit  int64
	}{
		{
			name:      "no bounds takes the full ceiling",
			req:       export.Request{},
			maxRows:   250000,
			wantLimit: 250000,
		},
		{
			name:      "limit below ceiling wins",
			req:       export.Request{Limit: 100},
			maxRows:   250000,
			wantLimit: 100,
		},
		{
			name:      "limit above ceiling is clipped",
			req:       export.Request{Limit: 400000},
			maxRows:   250000,
			wantLimit: 250000,
		},
		{
			name:       "page offsets by limit",
			req:        export.Request{Page: 3, Limit: 50},
			maxRows:    250000,
			wantOffset: 100,
			wantLimit:  50,
		},
		{
			name:      "page without limit is ignored",
			req:       export.Request{Page: 5},
			maxRows:   250000,
			wantLimit: 250000,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			offset, limit := requestWindow(&tt.req, tt.maxRows)
			assert.Equal(t, tt.wantOffset, offset)
			assert.Equal(t, tt.wantLimit, limit)
		})
	}
}

func TestBuildFilter(t *testing.T) {
	req := &export.Request{
		Query:     "ACME",
		Type:      movement.TypeOut,
		Yard:      "MIL",
		DateFrom:  "2025-06-01",
		DateTo:    "2025-06-30",
		HasDamage: true,
		HasSeal:   true,
	}

	filter, err := buildFilter(req)
	require.NoError(t, err)
	assert.Equal(t, "ACME", filter.Query)
	assert.Equal(t, movement.TypeOut, filter.Type)
	assert.Equal(t, "MIL", filter.Yard)
	require.NotNil(t, filter.DateStart)
	require.NotNil(t, filter.DateEnd)
	assert.True(t, filter.DateEnd.After(*filter.DateStart))
	assert.True(t, filter.HasDamage)
	assert.True(t, filter.HasSeal)

	_, err = buildFilter(&export.Request{DateFrom: "June 1"})
	require.Error(t, err)
}

func TestRenderValue(t *testing.T) {
	eventAt := time.Date(2025, 6, 10, 18, 30, 0, 0, time.UTC) // 14:30 in Toronto (EDT)
	rec := &movement.Record{
		EventAt:       eventAt,
		MovementType:  movement.TypeIn,
		TrailerNumber: "T-1441",
		YardCode:      "MIL",
		Carrier:       "ACME Freight",
		DriverName:    "J. Patel",
		TruckNumber:   "TRK-88",
		Loaded:        true,
		SealNumber:    "S-2201",
		DockDoor:      "D14",
		Notes:         "left rear light out",
		Damaged:       true,
	}

	tests := []struct {
		col  export.Column
		want string
	}{
		{export.ColumnDate, "2025-06-10 14:30:00"},
		{export.ColumnTrailer, "T-1441"},
		{export.ColumnMovement, "IN"},
		{export.ColumnYard, "MIL"},
		{export.ColumnCarrier, "ACME Freight"},
		{export.ColumnDriver, "J. Patel"},
		{export.ColumnTruck, "TRK-88"},
		{export.ColumnLoaded, "LOADED"},
		{export.ColumnSeal, "S-2201"},
		{export.ColumnDoor, "D14"},
		{export.ColumnDamaged, "YES"},
		{export.ColumnNotes, "left rear light out"},
	}

	for _, tt := range tests {
		t.Run(string(tt.col), func(t *testing.T) {
			assert.Equal(t, tt.want, renderValue(rec, tt.col))
		})
	}

	empty := &movement.Record{EventAt: eventAt}
	assert.Equal(t, "EMPTY", renderValue(empty, export.ColumnLoaded))
	assert.Equal(t, "NO", renderValue(empty, export.ColumnDamaged))
	assert.Equal(t, "", renderValue(empty, export.Column("vin")))
}
