package handler

import (
	"context"
	"log/slog"

	"github.com/SSP-Group-Of-Companies/TraxYard-sub001/internal/export"
	"github.com/SSP-Group-Of-Companies/TraxYard-sub001/internal/movement"
)

// HealthChecker reports whether the backing database is reachable
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// StatusStore reads and writes export job status records
type StatusStore interface {
	Get(ctx context.Context, jobID string) (*export.Job, error)
	Put(ctx context.Context, job *export.Job) error
}

// Publisher enqueues export job messages
type Publisher interface {
	PublishWithRetry(ctx context.Context, body []byte, contentType string) error
}

// MovementStore serves the browse and guard-logging endpoints
type MovementStore interface {
	ListMovements(ctx context.Context, filter *movement.Filter, opts movement.ListOptions) ([]movement.Record, error)
	InsertMovement(ctx context.Context, rec *movement.Record, photos []movement.Photo) error
}

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Logger    *slog.Logger
	Health    HealthChecker
	Status    StatusStore
	Publisher Publisher
	Movements MovementStore
}

// ExportHandler handles export submission and status polling
type ExportHandler struct {
	logger    *slog.Logger
	status    StatusStore
	publisher Publisher
}

// NewExportHandler creates a new ExportHandler instance
func NewExportHandler(deps *Dependencies) *ExportHandler {
	return &ExportHandler{
		logger:    deps.Logger,
		status:    deps.Status,
		publisher: deps.Publisher,
	}
}

// MovementHandler handles movement browsing and guard event logging
type MovementHandler struct {
	logger *slog.Logger
	store  MovementStore
}

// NewMovementHandler creates a new MovementHandler instance
func NewMovementHandler(deps *Dependencies) *MovementHandler {
	return &MovementHandler{
		logger: deps.Logger,
		store:  deps.Movements,
	}
}
