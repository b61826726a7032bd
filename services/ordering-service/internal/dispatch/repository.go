package dispatch

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	otelx "github.com/khanakart/khanakart/libs/otel"
)

// Job tracks a placed order awaiting cook acceptance. The worker keeps
// checking the order until it is confirmed or the accept deadline
// passes, at which point the order is auto-cancelled.
type Job struct {
	ID          int64
	OrderID     string
	KitchenID   string
	DeadlineAt  time.Time
	Traceparent string
	Tracestate  string
	Attempts    int
	MaxAttempts int
	NextRunAt   time.Time
}

type Repository struct{}

func NewRepository() *Repository {
	return &Repository{}
}

func (r *Repository) Insert(ctx context.Context, tx pgx.Tx, orderID, kitchenID string, deadlineAt time.Time) error {
	traceparent, tracestate := otelx.TraceContextStrings(ctx)
	_, err := tx.Exec(ctx, `
		INSERT INTO dispatch_jobs (order_id, kitchen_id, deadline_at, next_run_at, traceparent, tracestate)
		VALUES ($1, $2, $3, now(), $4, $5)
		ON CONFLICT (order_id) DO NOTHING
	`, orderID, kitchenID, deadlineAt, traceparent, tracestate)
	return err
}

func (r *Repository) FetchDue(ctx context.Context, tx pgx.Tx, limit int) ([]Job, error) {
	rows, err := tx.Query(ctx, `
		SELECT id, order_id, kitchen_id, deadline_at, traceparent, tracestate, attempts, max_attempts, next_run_at
		FROM dispatch_jobs
		WHERE status = 'pending' AND next_run_at <= now()
		ORDER BY next_run_at
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		var j Job
		if err := rows.Scan(&j.ID, &j.OrderID, &j.KitchenID, &j.DeadlineAt, &j.Traceparent, &j.Tracestate, &j.Attempts, &j.MaxAttempts, &j.NextRunAt); err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

func (r *Repository) MarkProcessed(ctx context.Context, tx pgx.Tx, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := tx.Exec(ctx, `
		UPDATE dispatch_jobs
		SET status = 'processed', updated_at = now()
		WHERE id = ANY($1)
	`, ids)
	return err
}

// Reschedule pushes a still-pending job past the next poll without
// counting it as a failure.
func (r *Repository) Reschedule(ctx context.Context, tx pgx.Tx, id int64, nextRunAt time.Time) error {
	_, err := tx.Exec(ctx, `
		UPDATE dispatch_jobs
		SET next_run_at = $2, updated_at = now()
		WHERE id = $1
	`, id, nextRunAt)
	return err
}

func (r *Repository) MarkFailed(ctx context.Context, tx pgx.Tx, id int64, attempts, maxAttempts int, nextRunAt time.Time, lastError string) error {
	status := "pending"
	if attempts >= maxAttempts {
		status = "failed"
	}
	_, err := tx.Exec(ctx, `
		UPDATE dispatch_jobs
		SET attempts = $2,
		    status = $3,
		    next_run_at = $4,
		    last_error = $5,
		    updated_at = now()
		WHERE id = $1
	`, id, attempts, status, nextRunAt, lastError)
	return err
}
