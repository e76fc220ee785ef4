package worker

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/SSP-Group-Of-Companies/TraxYard-sub001/internal/worker/domain"
	"github.com/SSP-Group-Of-Companies/TraxYard-sub001/shared/rabbitmq"
)

// Config holds worker configuration
type Config struct {
	Logger        *slog.Logger
	RabbitClient  *rabbitmq.Client
	Exporter      *Exporter
	Concurrency   int
	PrefetchCount int
}

// Worker consumes export jobs from RabbitMQ and fans them out to a
// bounded pool of goroutines.
type Worker struct {
	logger        *slog.Logger
	rabbitClient  *rabbitmq.Client
	exporter      *Exporter
	workerID      string
	concurrency   int
	prefetchCount int
	jobsChan      chan *domain.JobMessage
	wg            sync.WaitGroup
	stopChan      chan struct{}
}

// NewWorker creates a new worker instance
func NewWorker(cfg *Config) *Worker {
	return &Worker{
		logger:        cfg.Logger,
		rabbitClient:  cfg.RabbitClient,
		exporter:      cfg.Exporter,
		workerID:      "worker-" + uuid.NewString()[:8],
		concurrency:   cfg.Concurrency,
		prefetchCount: cfg.PrefetchCount,
		jobsChan:      make(chan *domain.JobMessage, cfg.Concurrency),
		stopChan:      make(chan struct{}),
	}
}

// Start wires the consumer, spawns the pool, and dispatches deliveries
// until the context is canceled.
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info("Starting worker",
		slog.String("worker_id", w.workerID),
		slog.Int("concurrency", w.concurrency),
		slog.Int("prefetch_count", w.prefetchCount),
	)

	deliveries, err := w.setupConsumer(ctx)
	if err != nil {
		return err
	}

	w.spawnWorkerPool(ctx)
	w.startMessageDispatcher(ctx, deliveries)

	return nil
}

// Stop gracefully stops the worker, waiting for in-flight jobs
func (w *Worker) Stop() {
	w.logger.Info("Stopping worker...")
	close(w.stopChan)
	w.wg.Wait()
	w.logger.Info("Worker stopped")
}
