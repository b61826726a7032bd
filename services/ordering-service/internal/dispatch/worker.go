package dispatch

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/khanakart/khanakart/libs/db"
	otelx "github.com/khanakart/khanakart/libs/otel"
	"github.com/khanakart/khanakart/libs/outbox"
	"github.com/khanakart/khanakart/services/ordering-service/internal/model"
	"github.com/khanakart/khanakart/services/ordering-service/internal/storage"
)

// Worker polls dispatch jobs and enforces the cook accept deadline.
// An order still pending when its deadline passes is cancelled and an
// expiry event is emitted in the same transaction.
type Worker struct {
	pool      *db.Pool
	repo      *Repository
	orders    *storage.OrderRepository
	outbox    *outbox.Repository
	logger    *slog.Logger
	interval  time.Duration
	batchSize int
	backoff   time.Duration
}

type WorkerConfig struct {
	Interval  time.Duration
	BatchSize int
	Backoff   time.Duration
}

func NewWorker(pool *db.Pool, repo *Repository, orders *storage.OrderRepository, outboxRepo *outbox.Repository, logger *slog.Logger, cfg WorkerConfig) *Worker {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = 30 * time.Second
	}
	return &Worker{
		pool:      pool,
		repo:      repo,
		orders:    orders,
		outbox:    outboxRepo,
		logger:    logger,
		interval:  cfg.Interval,
		batchSize: cfg.BatchSize,
		backoff:   cfg.Backoff,
	}
}

func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.processBatch(ctx); err != nil {
				w.logger.Error("dispatch batch failed", "err", err)
			}
		}
	}
}

func (w *Worker) processBatch(ctx context.Context) error {
	tx, err := w.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	jobs, err := w.repo.FetchDue(ctx, tx, w.batchSize)
	if err != nil {
		return err
	}
	if len(jobs) == 0 {
		return tx.Commit(ctx)
	}

	var done []int64
	now := time.Now().UTC()
	for _, job := range jobs {
		jobCtx := otelx.ContextWithTraceContext(ctx, job.Traceparent, job.Tracestate)

		order, err := w.orders.GetForUpdate(jobCtx, tx, job.OrderID)
		if err != nil {
			if w.handleJobError(jobCtx, tx, job, "order load failed") != nil {
				return err
			}
			continue
		}

		// Any movement off pending means the cook responded in time.
		if order.Status != model.StatusPending {
			done = append(done, job.ID)
			continue
		}

		if now.Before(job.DeadlineAt) {
			if err := w.repo.Reschedule(jobCtx, tx, job.ID, job.DeadlineAt); err != nil {
				return err
			}
			continue
		}

		if err := w.expireOrder(jobCtx, tx, order); err != nil {
			if w.handleJobError(jobCtx, tx, job, "expire failed") != nil {
				return err
			}
			continue
		}
		done = append(done, job.ID)
	}

	if err := w.repo.MarkProcessed(ctx, tx, done); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (w *Worker) expireOrder(ctx context.Context, tx pgx.Tx, order model.Order) error {
	cancelledAt, err := w.orders.Cancel(ctx, tx, order.ID, "not accepted within cutoff")
	if err != nil {
		return err
	}
	payload, err := json.Marshal(map[string]any{
		"order_id":     order.ID,
		"customer_id":  order.CustomerID,
		"kitchen_id":   order.KitchenID,
		"cancelled_at": cancelledAt.UTC().Format(time.RFC3339),
		"reason":       "accept deadline passed",
	})
	if err != nil {
		return err
	}
	return w.outbox.Insert(ctx, tx, outbox.Event{
		AggregateType: "order",
		AggregateID:   order.ID,
		EventType:     "ordering.order.expired.v1",
		Payload:       payload,
	})
}

func (w *Worker) handleJobError(ctx context.Context, tx pgx.Tx, job Job, reason string) error {
	attempts := job.Attempts + 1
	nextRunAt := time.Now().UTC().Add(w.backoff)
	if err := w.repo.MarkFailed(ctx, tx, job.ID, attempts, job.MaxAttempts, nextRunAt, reason); err != nil {
		return err
	}
	if attempts >= job.MaxAttempts {
		return w.enqueueDLQ(ctx, tx, job, reason)
	}
	return nil
}

func (w *Worker) enqueueDLQ(ctx context.Context, tx pgx.Tx, job Job, reason string) error {
	payload, err := json.Marshal(map[string]any{
		"order_id":   job.OrderID,
		"kitchen_id": job.KitchenID,
		"attempts":   job.Attempts + 1,
		"reason":     reason,
	})
	if err != nil {
		return err
	}
	return w.outbox.Insert(ctx, tx, outbox.Event{
		AggregateType: "dispatch_job",
		AggregateID:   job.OrderID,
		EventType:     "ordering.dispatch.dlq.v1",
		Payload:       payload,
	})
}
