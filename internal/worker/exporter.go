package worker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/SSP-Group-Of-Companies/TraxYard-sub001/internal/export"
	"github.com/SSP-Group-Of-Companies/TraxYard-sub001/internal/movement"
	"github.com/SSP-Group-Of-Companies/TraxYard-sub001/internal/status"
	"github.com/SSP-Group-Of-Companies/TraxYard-sub001/internal/worker/domain"
)

// Checkpoint cadence in rows. XLSX rows cost more to encode than CSV
// rows, so progress is published more often to keep polls fresh.
const (
	csvCheckpointRows  = 2000
	xlsxCheckpointRows = 500
)

// exportedTimeLayout renders event timestamps in the canonical zone
const exportedTimeLayout = "2006-01-02 15:04:05"

// StatusStore persists job status records
type StatusStore interface {
	Get(ctx context.Context, jobID string) (*export.Job, error)
	Put(ctx context.Context, job *export.Job) error
}

// MovementSource counts and streams filtered movement history
type MovementSource interface {
	CountMovements(ctx context.Context, filter *movement.Filter, max int64) (int64, error)
	StreamMovements(ctx context.Context, filter *movement.Filter, opts movement.StreamOptions) (movement.Cursor, error)
}

// BlobUploader streams artifacts into the object store
type BlobUploader interface {
	Upload(ctx context.Context, key, contentType string, r io.Reader) (int64, error)
	ObjectURL(key string) string
}

// Exporter runs one export job end to end: count, stream, encode,
// upload, checkpoint. It owns no queue concerns; the pool decides
// ACK/NACK from the returned error.
type Exporter struct {
	logger      *slog.Logger
	status      StatusStore
	source      MovementSource
	blob        BlobUploader
	metrics     *Metrics
	maxRows     int64
	maxAttempts int
	filePrefix  string
	now         func() time.Time
}

// ExporterConfig wires an Exporter's collaborators
type ExporterConfig struct {
	Logger      *slog.Logger
	Status      StatusStore
	Source      MovementSource
	Blob        BlobUploader
	Metrics     *Metrics
	MaxRows     int64
	MaxAttempts int
	FilePrefix  string
}

func NewExporter(cfg *ExporterConfig) *Exporter {
	return &Exporter{
		logger:      cfg.Logger,
		status:      cfg.Status,
		source:      cfg.Source,
		blob:        cfg.Blob,
		metrics:     cfg.Metrics,
		maxRows:     cfg.MaxRows,
		maxAttempts: cfg.MaxAttempts,
		filePrefix:  cfg.FilePrefix,
		now:         time.Now,
	}
}

// Process handles one delivery. The error it returns encodes the requeue
// decision: nil ACKs, RetryableError NACKs with requeue, anything else
// NACKs without.
func (e *Exporter) Process(ctx context.Context, msg *domain.JobMessage) error {
	if msg.Request == nil {
		return fmt.Errorf("%w: missing request", domain.ErrInvalidMessage)
	}

	log := e.logger.With(slog.String("job_id", msg.JobID))

	job, err := e.status.Get(ctx, msg.JobID)
	if err != nil && !errors.Is(err, status.ErrNotFound) {
		return domain.NewRetryableError(fmt.Errorf("load status: %w", err))
	}

	// At-least-once delivery: a DONE record means a previous attempt
	// finished and this delivery is a duplicate.
	if job != nil && job.State == export.StateDone {
		log.Info("Job already done, skipping redelivery")
		e.metrics.JobsProcessed.WithLabelValues("skipped").Inc()
		return nil
	}

	// Submission writes the PENDING record before publishing, but a
	// lost record is no reason to drop the job: rebuild it from the
	// message.
	if job == nil {
		log.Warn("Status record missing, rebuilding from message")
		job = export.NewJob(msg.JobID, msg.Request, e.now())
	}

	job.MarkRunning(msg.Request, e.now())
	if err := e.status.Put(ctx, job); err != nil {
		return domain.NewRetryableError(fmt.Errorf("mark running: %w", err))
	}

	log.Info("Export started",
		slog.String("format", string(job.Format)),
		slog.Int("attempt", job.Attempts),
	)

	e.metrics.JobsRunning.Inc()
	defer e.metrics.JobsRunning.Dec()
	startedAt := e.now()

	if err := e.run(ctx, job, msg.Request); err != nil {
		log.Error("Export failed",
			slog.Int("attempt", job.Attempts),
			slog.String("error", err.Error()),
		)

		job.MarkError(err.Error(), e.now())
		if putErr := e.status.Put(ctx, job); putErr != nil {
			log.Error("Failed to record job error", slog.String("error", putErr.Error()))
		}
		e.metrics.JobsProcessed.WithLabelValues("error").Inc()

		if job.Attempts >= e.maxAttempts {
			log.Warn("Job exceeded max attempts",
				slog.Int("attempts", job.Attempts),
				slog.Int("max_attempts", e.maxAttempts),
			)
			return fmt.Errorf("%w: %v", domain.ErrMaxAttemptsExceeded, err)
		}
		return domain.NewRetryableError(err)
	}

	e.metrics.JobsProcessed.WithLabelValues("done").Inc()
	e.metrics.RowsExported.Add(float64(job.RowCount))
	e.metrics.ExportDuration.WithLabelValues(string(job.Format)).Observe(e.now().Sub(startedAt).Seconds())

	log.Info("Export completed",
		slog.Int64("rows", job.RowCount),
		slog.Int64("total", job.Total),
	)
	return nil
}

// run executes the export pipeline for a RUNNING job: resolve the result
// window, then encode rows into one end of a pipe while the object store
// consumes the other, so the artifact is uploaded as it is produced.
func (e *Exporter) run(ctx context.Context, job *export.Job, req *export.Request) error {
	filter, err := buildFilter(req)
	if err != nil {
		return err
	}

	count, err := e.source.CountMovements(ctx, filter, e.maxRows)
	if err != nil {
		return fmt.Errorf("count movements: %w", err)
	}

	offset, limit := requestWindow(req, e.maxRows)
	total := count - offset
	if total < 0 {
		total = 0
	}
	if total > limit {
		total = limit
	}

	job.SetTotal(total, e.now())
	if err := e.checkpoint(ctx, job); err != nil {
		return fmt.Errorf("record total: %w", err)
	}

	key := path.Join(e.filePrefix, job.JobID+"."+req.Format.Extension())

	pr, pw := io.Pipe()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if _, err := e.blob.Upload(gctx, key, req.Format.ContentType(), pr); err != nil {
			// Unblock the encoder's next pipe write
			pr.CloseWithError(err)
			return fmt.Errorf("upload artifact: %w", err)
		}
		return nil
	})

	if err := e.encodeRows(gctx, job, req, filter, offset, limit, pw); err != nil {
		pw.CloseWithError(err)
		_ = g.Wait()
		return err
	}
	pw.Close()

	if err := g.Wait(); err != nil {
		return err
	}

	job.MarkDone(key, e.blob.ObjectURL(key), e.now())
	if err := e.status.Put(ctx, job); err != nil {
		return fmt.Errorf("mark done: %w", err)
	}
	return nil
}

// encodeRows streams matching records through the encoder into w,
// advancing the job's checkpoint every interval rows. Hitting the window
// limit truncates the result and is still success.
func (e *Exporter) encodeRows(ctx context.Context, job *export.Job, req *export.Request, filter *movement.Filter, offset, limit int64, w io.Writer) error {
	enc, err := export.NewEncoder(req.Format, req.Columns, w)
	if err != nil {
		return fmt.Errorf("open encoder: %w", err)
	}

	cur, err := e.source.StreamMovements(ctx, filter, movement.StreamOptions{
		Sort:   req.Sort,
		Dir:    req.Dir,
		Offset: offset,
		Limit:  limit,
	})
	if err != nil {
		return fmt.Errorf("stream movements: %w", err)
	}
	defer cur.Close()

	interval := checkpointInterval(req.Format)

	var processed int64
	for cur.Next() {
		if err := enc.WriteRow(renderRow(cur.Record(), req.Columns)); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
		processed++

		if processed%interval == 0 {
			job.Checkpoint(processed, e.now())
			if err := e.checkpoint(ctx, job); err != nil {
				return fmt.Errorf("checkpoint: %w", err)
			}
		}

		if processed >= limit {
			break
		}
	}
	if err := cur.Err(); err != nil {
		return fmt.Errorf("scan movements: %w", err)
	}

	// Final counters travel with the DONE write; no separate put here
	job.Checkpoint(processed, e.now())

	if err := enc.Close(); err != nil {
		return fmt.Errorf("finalize artifact: %w", err)
	}
	return nil
}

// checkpoint publishes the job's current counters to the status record
func (e *Exporter) checkpoint(ctx context.Context, job *export.Job) error {
	if err := e.status.Put(ctx, job); err != nil {
		return err
	}
	e.metrics.Checkpoints.Inc()
	return nil
}

func checkpointInterval(format export.Format) int64 {
	if format == export.FormatXLSX {
		return xlsxCheckpointRows
	}
	return csvCheckpointRows
}

// buildFilter converts the request's filter fields into a movement
// filter, resolving civil dates to instants. Submission already
// validated the dates, so a failure here means a tampered message.
func buildFilter(req *export.Request) (*movement.Filter, error) {
	start, end, err := movement.DateBounds(req.DateFrom, req.DateTo)
	if err != nil {
		return nil, err
	}

	return &movement.Filter{
		Query:     req.Query,
		Type:      req.Type,
		Yard:      req.Yard,
		DateStart: start,
		DateEnd:   end,
		HasDamage: req.HasDamage,
		HasSeal:   req.HasSeal,
	}, nil
}

// requestWindow clips the request's optional page/limit bounds to the
// hard row ceiling. Pages are 1-based; a page without a limit has no
// defined window and is ignored.
func requestWindow(req *export.Request, maxRows int64) (offset, limit int64) {
	limit = maxRows
	if req.Limit > 0 && int64(req.Limit) < maxRows {
		limit = int64(req.Limit)
	}
	if req.Page > 1 && req.Limit > 0 {
		offset = int64(req.Page-1) * int64(req.Limit)
	}
	return offset, limit
}

// renderRow projects a record onto the requested columns, in order
func renderRow(rec *movement.Record, columns []export.Column) []string {
	row := make([]string, len(columns))
	for i, col := range columns {
		row[i] = renderValue(rec, col)
	}
	return row
}

// renderValue formats one record attribute for export. Timestamps render
// in the canonical zone; booleans render as the portal displays them.
func renderValue(rec *movement.Record, col export.Column) string {
	switch col {
	case export.ColumnDate:
		return rec.EventAt.In(movement.Location()).Format(exportedTimeLayout)
	case export.ColumnTrailer:
		return rec.TrailerNumber
	case export.ColumnMovement:
		return rec.MovementType
	case export.ColumnYard:
		return rec.YardCode
	case export.ColumnCarrier:
		return rec.Carrier
	case export.ColumnDriver:
		return rec.DriverName
	case export.ColumnTruck:
		return rec.TruckNumber
	case export.ColumnLoaded:
		if rec.Loaded {
			return "LOADED"
		}
		return "EMPTY"
	case export.ColumnSeal:
		return rec.SealNumber
	case export.ColumnDoor:
		return rec.DockDoor
	case export.ColumnDamaged:
		if rec.Damaged {
			return "YES"
		}
		return "NO"
	case export.ColumnNotes:
		return rec.Notes
	default:
		return ""
	}
}
