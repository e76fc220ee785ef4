package movement

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/SSP-Group-Of-Companies/TraxYard-sub001/shared/postgresql"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// projection lists exactly the fields browsing and exports consume. The
// damaged flag is derived so the rest of the system never joins photos.
const projection = `
	m.movement_id, m.event_at, m.movement_type, m.trailer_number, m.yard_code,
	COALESCE(m.carrier, '') AS carrier,
	COALESCE(m.driver_name, '') AS driver_name,
	COALESCE(m.truck_number, '') AS truck_number,
	m.loaded,
	COALESCE(m.seal_number, '') AS seal_number,
	COALESCE(m.dock_door, '') AS dock_door,
	COALESCE(m.notes, '') AS notes,
	EXISTS (
		SELECT 1 FROM movement_photos p
		WHERE p.movement_id = m.movement_id AND p.kind = 'DAMAGE'
	) AS damaged`

// Cursor is a lazy, finite, forward-only sequence of matching records.
// Next advances and reports whether a record is available; Err surfaces
// what stopped the iteration; Close releases the underlying rows.
type Cursor interface {
	Next() bool
	Record() *Record
	Err() error
	Close() error
}

// StreamOptions bound and order a movement stream
type StreamOptions struct {
	Sort   string
	Dir    string
	Offset int64
	Limit  int64
}

// ListOptions page a browse query by keyset
type ListOptions struct {
	PageSize int
	Cursor   *ListCursor
}

// ListCursor is the keyset position after the last record of a page
type ListCursor struct {
	EventAt    time.Time
	MovementID string
}

// Store runs filtered queries against the movements tables. It owns no
// connection state of its own; the client handle is created and closed
// by the process lifecycle.
type Store struct {
	db     *postgresql.Client
	logger *slog.Logger
}

// NewStore creates a movement store on an established database client
func NewStore(db *postgresql.Client, logger *slog.Logger) *Store {
	return &Store{
		db:     db,
		logger: logger,
	}
}

// CountMovements counts records matching the filter, capped at max so an
// unbounded match can never force a full scan of history.
func (s *Store) CountMovements(ctx context.Context, filter *Filter, max int64) (int64, error) {
	where, args := filter.whereClause()

	args = append(args, max)
	query := fmt.Sprintf(
		"SELECT COUNT(*) FROM (SELECT 1 FROM movements m%s LIMIT $%d) capped",
		where, len(args),
	)

	var count int64
	if err := s.db.GetContext(ctx, &count, query, args...); err != nil {
		return 0, fmt.Errorf("failed to count movements: %w", err)
	}

	return count, nil
}

// StreamMovements opens a forward cursor over the filtered, sorted,
// projected result set. Rows are fetched incrementally as the caller
// consumes them, so a slow consumer holds back the query, not memory.
func (s *Store) StreamMovements(ctx context.Context, filter *Filter, opts StreamOptions) (Cursor, error) {
	where, args := filter.whereClause()

	query := "SELECT" + projection + " FROM movements m" + where + OrderBy(opts.Sort, opts.Dir)

	if opts.Offset > 0 {
		args = append(args, opts.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to open movement cursor: %w", err)
	}

	return &rowsCursor{rows: rows}, nil
}

// rowsCursor adapts sqlx.Rows to the pull-based Cursor contract
type rowsCursor struct {
	rows *sqlx.Rows
	rec  Record
	err  error
}

func (c *rowsCursor) Next() bool {
	if c.err != nil {
		return false
	}

	if !c.rows.Next() {
		c.err = c.rows.Err()
		return false
	}

	if err := c.rows.StructScan(&c.rec); err != nil {
		c.err = fmt.Errorf("failed to scan movement: %w", err)
		return false
	}

	return true
}

func (c *rowsCursor) Record() *Record {
	return &c.rec
}

func (c *rowsCursor) Err() error {
	return c.err
}

func (c *rowsCursor) Close() error {
	return c.rows.Close()
}

// ListMovements returns one keyset page of matching records, newest
// first. It fetches PageSize+1 rows so the caller can detect whether a
// next page exists.
func (s *Store) ListMovements(ctx context.Context, filter *Filter, opts ListOptions) ([]Record, error) {
	where, args := filter.whereClause()

	query := "SELECT" + projection + " FROM movements m" + where

	if opts.Cursor != nil {
		args = append(args, opts.Cursor.EventAt, opts.Cursor.MovementID)
		query += fmt.Sprintf(" AND (m.event_at, m.movement_id) < ($%d, $%d)", len(args)-1, len(args))
	}

	query += " ORDER BY m.event_at DESC, m.movement_id DESC"

	args = append(args, opts.PageSize+1)
	query += fmt.Sprintf(" LIMIT $%d", len(args))

	var records []Record
	if err := s.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list movements: %w", err)
	}

	return records, nil
}

// InsertMovement stores a guard-logged movement event with its photos in
// one transaction.
func (s *Store) InsertMovement(ctx context.Context, rec *Record, photos []Photo) error {
	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	const insertMovement = `
		INSERT INTO movements (
			movement_id, event_at, movement_type, trailer_number, yard_code,
			carrier, driver_name, truck_number, loaded, seal_number,
			dock_door, notes
		) VALUES (
			:movement_id, :event_at, :movement_type, :trailer_number, :yard_code,
			:carrier, :driver_name, :truck_number, :loaded, :seal_number,
			:dock_door, :notes
		)`

	if _, err := tx.NamedExecContext(ctx, insertMovement, rec); err != nil {
		return fmt.Errorf("failed to insert movement: %w", err)
	}

	const insertPhoto = `
		INSERT INTO movement_photos (photo_id, movement_id, kind, url)
		VALUES (:photo_id, :movement_id, :kind, :url)`

	for i := range photos {
		if photos[i].PhotoID == "" {
			photos[i].PhotoID = uuid.New().String()
		}
		photos[i].MovementID = rec.MovementID

		if _, err := tx.NamedExecContext(ctx, insertPhoto, &photos[i]); err != nil {
			return fmt.Errorf("failed to insert movement photo: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit movement: %w", err)
	}

	s.logger.Debug("Movement stored",
		slog.String("movement_id", rec.MovementID),
		slog.String("trailer", rec.TrailerNumber),
		slog.String("type", rec.MovementType),
	)

	return nil
}
