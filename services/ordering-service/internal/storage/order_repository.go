package storage

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/khanakart/khanakart/libs/db"
	"github.com/khanakart/khanakart/services/ordering-service/internal/model"
)

type OrderRepository struct {
	pool *db.Pool
}

type IdempotencyRecord struct {
	CustomerID      string
	IdempotencyKey  string
	OrderID         string
	StatusCode      int
	ResponsePayload []byte
}

func NewOrderRepository(pool *db.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

func (r *OrderRepository) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

func (r *OrderRepository) LockIdempotencyKey(ctx context.Context, tx pgx.Tx, customerID, key string) (IdempotencyRecord, bool, error) {
	rec, err := r.selectIdempotencyForUpdate(ctx, tx, customerID, key)
	if err == nil {
		return rec, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return IdempotencyRecord{}, false, err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO order_idempotency_keys (customer_id, idempotency_key)
		VALUES ($1, $2)
		ON CONFLICT (customer_id, idempotency_key) DO NOTHING
	`, customerID, key)
	if err != nil {
		return IdempotencyRecord{}, false, err
	}

	rec, err = r.selectIdempotencyForUpdate(ctx, tx, customerID, key)
	if err != nil {
		return IdempotencyRecord{}, false, err
	}
	return rec, false, nil
}

func (r *OrderRepository) FinalizeIdempotency(ctx context.Context, tx pgx.Tx, customerID, key, orderID string, statusCode int, response []byte) error {
	_, err := tx.Exec(ctx, `
		UPDATE order_idempotency_keys
		SET order_id = $3,
			status_code = $4,
			response_payload = $5,
			updated_at = now()
		WHERE customer_id = $1 AND idempotency_key = $2
	`, customerID, key, orderID, statusCode, response)
	return err
}

func (r *OrderRepository) Create(ctx context.Context, tx pgx.Tx, o *model.Order, items []model.OrderItem) (string, error) {
	var id string
	err := tx.QueryRow(ctx, `
		INSERT INTO orders
			(customer_id, kitchen_id, slot_id, status, total_amount, delivery_address, note)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`, o.CustomerID, o.KitchenID, o.SlotID, o.Status, o.TotalAmount, o.DeliveryAddress, o.Note).Scan(&id)
	if err != nil {
		return "", err
	}
	for _, it := range items {
		_, err := tx.Exec(ctx, `
			INSERT INTO order_items (order_id, item_id, name, unit_price, quantity)
			VALUES ($1, $2, $3, $4, $5)
		`, id, it.ItemID, it.Name, it.UnitPrice, it.Quantity)
		if err != nil {
			return "", err
		}
	}
	return id, nil
}

func (r *OrderRepository) GetForUpdate(ctx context.Context, tx pgx.Tx, orderID string) (model.Order, error) {
	var o model.Order
	var cancelledAt *time.Time
	err := tx.QueryRow(ctx, `
		SELECT id, customer_id, kitchen_id, slot_id, status, total_amount,
			delivery_address, COALESCE(note, ''), cancelled_at,
			COALESCE(cancellation_reason, ''), created_at, updated_at
		FROM orders
		WHERE id = $1
		FOR UPDATE
	`, orderID).Scan(
		&o.ID,
		&o.CustomerID,
		&o.KitchenID,
		&o.SlotID,
		&o.Status,
		&o.TotalAmount,
		&o.DeliveryAddress,
		&o.Note,
		&cancelledAt,
		&o.CancelReason,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	if err != nil {
		return model.Order{}, err
	}
	o.CancelledAt = cancelledAt
	return o, nil
}

func (r *OrderRepository) UpdateStatus(ctx context.Context, tx pgx.Tx, orderID, status string) error {
	_, err := tx.Exec(ctx, `
		UPDATE orders SET status = $2, updated_at = now() WHERE id = $1
	`, orderID, status)
	return err
}

func (r *OrderRepository) Cancel(ctx context.Context, tx pgx.Tx, orderID, reason string) (time.Time, error) {
	var cancelledAt time.Time
	err := tx.QueryRow(ctx, `
		UPDATE orders
		SET status = 'cancelled',
			cancelled_at = now(),
			cancellation_reason = $2,
			updated_at = now()
		WHERE id = $1
		RETURNING cancelled_at
	`, orderID, reason).Scan(&cancelledAt)
	return cancelledAt, err
}

func (r *OrderRepository) ListByCustomer(ctx context.Context, customerID string, limit int) ([]model.Order, error) {
	if limit <= 0 {
		limit = 50
	}
	return r.list(ctx, `
		SELECT id, customer_id, kitchen_id, slot_id, status, total_amount,
			delivery_address, COALESCE(note, ''), cancelled_at,
			COALESCE(cancellation_reason, ''), created_at, updated_at
		FROM orders
		WHERE customer_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, customerID, limit)
}

func (r *OrderRepository) ListByKitchen(ctx context.Context, kitchenID string, statuses []string, limit int) ([]model.Order, error) {
	if limit <= 0 {
		limit = 50
	}
	if len(statuses) == 0 {
		return r.list(ctx, `
			SELECT id, customer_id, kitchen_id, slot_id, status, total_amount,
				delivery_address, COALESCE(note, ''), cancelled_at,
				COALESCE(cancellation_reason, ''), created_at, updated_at
			FROM orders
			WHERE kitchen_id = $1
			ORDER BY created_at DESC
			LIMIT $2
		`, kitchenID, limit)
	}
	return r.list(ctx, `
		SELECT id, customer_id, kitchen_id, slot_id, status, total_amount,
			delivery_address, COALESCE(note, ''), cancelled_at,
			COALESCE(cancellation_reason, ''), created_at, updated_at
		FROM orders
		WHERE kitchen_id = $1 AND status = ANY($3)
		ORDER BY created_at DESC
		LIMIT $2
	`, kitchenID, limit, statuses)
}

func (r *OrderRepository) ListItems(ctx context.Context, orderID string) ([]model.OrderItem, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT order_id, item_id, name, unit_price, quantity
		FROM order_items
		WHERE order_id = $1
		ORDER BY name ASC
	`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []model.OrderItem
	for rows.Next() {
		var it model.OrderItem
		if err := rows.Scan(&it.OrderID, &it.ItemID, &it.Name, &it.UnitPrice, &it.Quantity); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (r *OrderRepository) list(ctx context.Context, query string, args ...any) ([]model.Order, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []model.Order
	for rows.Next() {
		var o model.Order
		var cancelledAt *time.Time
		if err := rows.Scan(
			&o.ID,
			&o.CustomerID,
			&o.KitchenID,
			&o.SlotID,
			&o.Status,
			&o.TotalAmount,
			&o.DeliveryAddress,
			&o.Note,
			&cancelledAt,
			&o.CancelReason,
			&o.CreatedAt,
			&o.UpdatedAt,
		); err != nil {
			return nil, err
		}
		o.CancelledAt = cancelledAt
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

func (r *OrderRepository) selectIdempotencyForUpdate(ctx context.Context, tx pgx.Tx, customerID, key string) (IdempotencyRecord, error) {
	var rec IdempotencyRecord
	var responseText string
	err := tx.QueryRow(ctx, `
		SELECT customer_id::text,
			idempotency_key,
			COALESCE(order_id::text, ''),
			COALESCE(status_code, 0),
			COALESCE(response_payload::text, '')
		FROM order_idempotency_keys
		WHERE customer_id = $1 AND idempotency_key = $2
		FOR UPDATE
	`, customerID, key).Scan(
		&rec.CustomerID,
		&rec.IdempotencyKey,
		&rec.OrderID,
		&rec.StatusCode,
		&responseText,
	)
	if err != nil {
		return IdempotencyRecord{}, err
	}
	if responseText != "" {
		rec.ResponsePayload = []byte(responseText)
	}
	return rec, nil
}

func IsConflict(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23P01"
}

func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
