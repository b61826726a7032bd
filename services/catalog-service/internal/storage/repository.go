package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/khanakart/khanakart/libs/db"
)

type Repository struct {
	pool *db.Pool
}

func NewRepository(pool *db.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

type Kitchen struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id"`
	Name      string    `json:"name"`
	Area      string    `json:"area"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

type Slot struct {
	ID           string    `json:"id"`
	KitchenID    string    `json:"kitchen_id"`
	Name         string    `json:"name"`
	SlotType     string    `json:"slot_type"`
	StartClock   string    `json:"start_time"`
	EndClock     string    `json:"end_time"`
	CutoffHours  float64   `json:"cutoff_hours"`
	Active       bool      `json:"active"`
	DisplayOrder int       `json:"display_order"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type Item struct {
	ID           string    `json:"id"`
	KitchenID    string    `json:"kitchen_id"`
	SlotID       string    `json:"slot_id,omitempty"`
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	Price        int64     `json:"price"`
	Vegetarian   bool      `json:"vegetarian"`
	SetSize      int       `json:"set_size"`
	MinOrderSets int       `json:"min_order_sets"`
	Available    bool      `json:"available"`
	CreatedAt    time.Time `json:"created_at"`
}

type CommissionRule struct {
	ID                  string    `json:"id"`
	ServiceType         string    `json:"service_type"`
	CommissionPercent   float64   `json:"commission_percent"`
	MinOrderAmount      int64     `json:"min_order_amount"`
	MaxCommissionAmount int64     `json:"max_commission_amount"`
	Active              bool      `json:"active"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

func (r *Repository) CreateKitchen(ctx context.Context, ownerID, name, area string) (string, error) {
	id := uuid.NewString()
	_, err := r.pool.Exec(ctx, `
		INSERT INTO kitchens (id, owner_id, name, area, active)
		VALUES ($1, $2, $3, $4, true)
	`, id, ownerID, name, area)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (r *Repository) GetKitchen(ctx context.Context, id string) (Kitchen, error) {
	var k Kitchen
	err := r.pool.QueryRow(ctx, `
		SELECT id::text, owner_id::text, name, COALESCE(area, ''), active, created_at
		FROM kitchens
		WHERE id = $1
	`, id).Scan(&k.ID, &k.OwnerID, &k.Name, &k.Area, &k.Active, &k.CreatedAt)
	return k, err
}

func (r *Repository) ListKitchens(ctx context.Context, limit int) ([]Kitchen, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, owner_id::text, name, COALESCE(area, ''), active, created_at
		FROM kitchens
		WHERE active
		ORDER BY name ASC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Kitchen
	for rows.Next() {
		var k Kitchen
		if err := rows.Scan(&k.ID, &k.OwnerID, &k.Name, &k.Area, &k.Active, &k.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	return out, rows.Err()
}

func (r *Repository) CreateSlot(ctx context.Context, tx pgx.Tx, s Slot) (Slot, error) {
	s.ID = uuid.NewString()
	err := tx.QueryRow(ctx, `
		INSERT INTO delivery_slots (id, kitchen_id, name, slot_type, start_clock, end_clock, cutoff_hours, active, display_order)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at
	`, s.ID, s.KitchenID, s.Name, s.SlotType, s.StartClock, s.EndClock, s.CutoffHours, s.Active, s.DisplayOrder).Scan(&s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return Slot{}, err
	}
	return s, nil
}

func (r *Repository) UpdateSlot(ctx context.Context, tx pgx.Tx, s Slot) (Slot, error) {
	err := tx.QueryRow(ctx, `
		UPDATE delivery_slots
		SET name = $3,
			slot_type = $4,
			start_clock = $5,
			end_clock = $6,
			cutoff_hours = $7,
			active = $8,
			display_order = $9,
			updated_at = now()
		WHERE id = $1 AND kitchen_id = $2
		RETURNING created_at, updated_at
	`, s.ID, s.KitchenID, s.Name, s.SlotType, s.StartClock, s.EndClock, s.CutoffHours, s.Active, s.DisplayOrder).Scan(&s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return Slot{}, err
	}
	return s, nil
}

func (r *Repository) GetSlot(ctx context.Context, slotID string) (Slot, error) {
	var s Slot
	err := r.pool.QueryRow(ctx, `
		SELECT id::text, kitchen_id::text, name, slot_type, start_clock, end_clock, cutoff_hours, active, display_order, created_at, updated_at
		FROM delivery_slots
		WHERE id = $1
	`, slotID).Scan(&s.ID, &s.KitchenID, &s.Name, &s.SlotType, &s.StartClock, &s.EndClock, &s.CutoffHours, &s.Active, &s.DisplayOrder, &s.CreatedAt, &s.UpdatedAt)
	return s, err
}

func (r *Repository) ListSlots(ctx context.Context, kitchenID string) ([]Slot, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, kitchen_id::text, name, slot_type, start_clock, end_clock, cutoff_hours, active, display_order, created_at, updated_at
		FROM delivery_slots
		WHERE kitchen_id = $1
		ORDER BY display_order ASC, start_clock ASC
	`, kitchenID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Slot
	for rows.Next() {
		var s Slot
		if err := rows.Scan(&s.ID, &s.KitchenID, &s.Name, &s.SlotType, &s.StartClock, &s.EndClock, &s.CutoffHours, &s.Active, &s.DisplayOrder, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *Repository) CreateItem(ctx context.Context, it Item) (string, error) {
	id := uuid.NewString()
	_, err := r.pool.Exec(ctx, `
		INSERT INTO menu_items (id, kitchen_id, slot_id, name, description, price, vegetarian, set_size, min_order_sets, available)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $7, $8, $9, $10)
	`, id, it.KitchenID, it.SlotID, it.Name, it.Description, it.Price, it.Vegetarian, it.SetSize, it.MinOrderSets, it.Available)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (r *Repository) UpdateItem(ctx context.Context, it Item) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE menu_items
		SET slot_id = NULLIF($3, ''),
			name = $4,
			description = $5,
			price = $6,
			vegetarian = $7,
			set_size = $8,
			min_order_sets = $9,
			available = $10,
			updated_at = now()
		WHERE id = $1 AND kitchen_id = $2
	`, it.ID, it.KitchenID, it.SlotID, it.Name, it.Description, it.Price, it.Vegetarian, it.SetSize, it.MinOrderSets, it.Available)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *Repository) ListItems(ctx context.Context, kitchenID string, availableOnly bool) ([]Item, error) {
	query := `
		SELECT id::text, kitchen_id::text, COALESCE(slot_id::text, ''), name, COALESCE(description, ''), price, vegetarian, set_size, min_order_sets, available, created_at
		FROM menu_items
		WHERE kitchen_id = $1
		ORDER BY name ASC
	`
	if availableOnly {
		query = `
			SELECT id::text, kitchen_id::text, COALESCE(slot_id::text, ''), name, COALESCE(description, ''), price, vegetarian, set_size, min_order_sets, available, created_at
			FROM menu_items
			WHERE kitchen_id = $1 AND available
			ORDER BY name ASC
		`
	}
	rows, err := r.pool.Query(ctx, query, kitchenID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Item
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.KitchenID, &it.SlotID, &it.Name, &it.Description, &it.Price, &it.Vegetarian, &it.SetSize, &it.MinOrderSets, &it.Available, &it.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func (r *Repository) UpsertCommissionRule(ctx context.Context, tx pgx.Tx, rule CommissionRule) (CommissionRule, error) {
	if rule.ID == "" {
		rule.ID = uuid.NewString()
	}
	err := tx.QueryRow(ctx, `
		INSERT INTO commission_rules (id, service_type, commission_percent, min_order_amount, max_commission_amount, active)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE
		SET service_type = EXCLUDED.service_type,
			commission_percent = EXCLUDED.commission_percent,
			min_order_amount = EXCLUDED.min_order_amount,
			max_commission_amount = EXCLUDED.max_commission_amount,
			active = EXCLUDED.active,
			updated_at = now()
		RETURNING created_at, updated_at
	`, rule.ID, rule.ServiceType, rule.CommissionPercent, rule.MinOrderAmount, rule.MaxCommissionAmount, rule.Active).Scan(&rule.CreatedAt, &rule.UpdatedAt)
	if err != nil {
		return CommissionRule{}, err
	}
	return rule, nil
}

func (r *Repository) ListCommissionRules(ctx context.Context) ([]CommissionRule, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, service_type, commission_percent, min_order_amount, max_commission_amount, active, created_at, updated_at
		FROM commission_rules
		ORDER BY service_type ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CommissionRule
	for rows.Next() {
		var rule CommissionRule
		if err := rows.Scan(&rule.ID, &rule.ServiceType, &rule.CommissionPercent, &rule.MinOrderAmount, &rule.MaxCommissionAmount, &rule.Active, &rule.CreatedAt, &rule.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, rule)
	}
	return out, rows.Err()
}

func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
