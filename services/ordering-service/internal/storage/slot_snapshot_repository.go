package storage

import (
	"context"

	"github.com/khanakart/khanakart/libs/db"
	"github.com/khanakart/khanakart/services/ordering-service/internal/model"
)

// SlotSnapshotRepository holds the catalog's delivery slots as a local
// read model. Rows are upserted from catalog events so slot lookups
// during order placement never leave this service.
type SlotSnapshotRepository struct {
	pool *db.Pool
}

func NewSlotSnapshotRepository(pool *db.Pool) *SlotSnapshotRepository {
	return &SlotSnapshotRepository{pool: pool}
}

func (r *SlotSnapshotRepository) Upsert(ctx context.Context, s model.SlotSnapshot) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO slot_snapshots
			(slot_id, kitchen_id, name, start_clock, end_clock, cutoff_hours, active, display_order, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())
		ON CONFLICT (slot_id) DO UPDATE SET
			kitchen_id = EXCLUDED.kitchen_id,
			name = EXCLUDED.name,
			start_clock = EXCLUDED.start_clock,
			end_clock = EXCLUDED.end_clock,
			cutoff_hours = EXCLUDED.cutoff_hours,
			active = EXCLUDED.active,
			display_order = EXCLUDED.display_order,
			updated_at = now()
	`, s.SlotID, s.KitchenID, s.Name, s.StartClock, s.EndClock, s.CutoffHours, s.Active, s.DisplayOrder)
	return err
}

func (r *SlotSnapshotRepository) Get(ctx context.Context, slotID string) (model.SlotSnapshot, error) {
	var s model.SlotSnapshot
	err := r.pool.QueryRow(ctx, `
		SELECT slot_id, kitchen_id, name, start_clock, end_clock, cutoff_hours, active, display_order, updated_at
		FROM slot_snapshots
		WHERE slot_id = $1
	`, slotID).Scan(
		&s.SlotID,
		&s.KitchenID,
		&s.Name,
		&s.StartClock,
		&s.EndClock,
		&s.CutoffHours,
		&s.Active,
		&s.DisplayOrder,
		&s.UpdatedAt,
	)
	if err != nil {
		return model.SlotSnapshot{}, err
	}
	return s, nil
}

func (r *SlotSnapshotRepository) ListByKitchen(ctx context.Context, kitchenID string) ([]model.SlotSnapshot, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT slot_id, kitchen_id, name, start_clock, end_clock, cutoff_hours, active, display_order, updated_at
		FROM slot_snapshots
		WHERE kitchen_id = $1 AND active
		ORDER BY display_order ASC, start_clock ASC
	`, kitchenID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var slots []model.SlotSnapshot
	for rows.Next() {
		var s model.SlotSnapshot
		if err := rows.Scan(
			&s.SlotID,
			&s.KitchenID,
			&s.Name,
			&s.StartClock,
			&s.EndClock,
			&s.CutoffHours,
			&s.Active,
			&s.DisplayOrder,
			&s.UpdatedAt,
		); err != nil {
			return nil, err
		}
		slots = append(slots, s)
	}
	return slots, rows.Err()
}
