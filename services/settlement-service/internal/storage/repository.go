package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/khanakart/khanakart/libs/db"
	"github.com/khanakart/khanakart/services/settlement-service/internal/commission"
)

var ErrDuplicateProviderEvent = errors.New("duplicate provider event")

type Repository struct {
	pool *db.Pool
}

func NewRepository(pool *db.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

type LedgerEntry struct {
	ID          string    `json:"id"`
	OrderID     string    `json:"order_id"`
	KitchenID   string    `json:"kitchen_id"`
	RuleID      string    `json:"rule_id"`
	OrderAmount int64     `json:"order_amount"`
	Commission  int64     `json:"commission"`
	NetAmount   int64     `json:"net_amount"`
	CreatedAt   time.Time `json:"created_at"`
}

type Wallet struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Balance   int64     `json:"balance"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Referral struct {
	ID           string
	ReferrerID   string
	RefereeID    string
	RewardAmount int64
	Status       string
	PaidAt       *time.Time
}

type ProviderEvent struct {
	Provider        string
	ProviderEventID string
	EventType       string
	Payload         []byte
}

type CheckoutSession struct {
	StripeSessionID string
	OrderID         string
	CustomerID      string
	Amount          int64
	Currency        string
	Status          string
	URL             string
}

// InsertProviderEvent records a webhook delivery. A unique violation
// on (provider, provider_event_id) maps to ErrDuplicateProviderEvent.
func (r *Repository) InsertProviderEvent(ctx context.Context, tx pgx.Tx, evt ProviderEvent) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO provider_events (provider, provider_event_id, event_type, payload)
		VALUES ($1, $2, $3, $4)
	`, evt.Provider, evt.ProviderEventID, evt.EventType, evt.Payload)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateProviderEvent
		}
		return err
	}
	return nil
}

// InsertLedgerEntry is idempotent per order: a replayed delivered
// event leaves the existing row untouched.
func (r *Repository) InsertLedgerEntry(ctx context.Context, tx pgx.Tx, orderID, kitchenID, ruleID string, orderAmount int64, res commission.Result) (bool, error) {
	tag, err := tx.Exec(ctx, `
		INSERT INTO commission_ledger (id, order_id, kitchen_id, rule_id, order_amount, commission, net_amount)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7)
		ON CONFLICT (order_id) DO NOTHING
	`, uuid.NewString(), orderID, kitchenID, ruleID, orderAmount, res.Commission, res.NetAmount)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *Repository) ListLedger(ctx context.Context, kitchenID string, limit int) ([]LedgerEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, order_id::text, kitchen_id::text, COALESCE(rule_id::text, ''),
			order_amount, commission, net_amount, created_at
		FROM commission_ledger
		WHERE kitchen_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, kitchenID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []LedgerEntry
	for rows.Next() {
		var e LedgerEntry
		if err := rows.Scan(&e.ID, &e.OrderID, &e.KitchenID, &e.RuleID, &e.OrderAmount, &e.Commission, &e.NetAmount, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *Repository) UpsertRuleCache(ctx context.Context, rule commission.Rule) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO commission_rule_cache (rule_id, service_type, commission_percent, min_order_amount, max_commission_amount, active, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())
		ON CONFLICT (rule_id) DO UPDATE SET
			service_type = EXCLUDED.service_type,
			commission_percent = EXCLUDED.commission_percent,
			min_order_amount = EXCLUDED.min_order_amount,
			max_commission_amount = EXCLUDED.max_commission_amount,
			active = EXCLUDED.active,
			updated_at = now()
	`, rule.ID, rule.ServiceType, rule.CommissionPercent, rule.MinOrderAmount, rule.MaxCommissionAmount, rule.Active)
	return err
}

// ActiveRule returns the newest active rule for a service type.
func (r *Repository) ActiveRule(ctx context.Context, serviceType string) (commission.Rule, error) {
	var rule commission.Rule
	err := r.pool.QueryRow(ctx, `
		SELECT rule_id::text, service_type, commission_percent, min_order_amount, max_commission_amount, active
		FROM commission_rule_cache
		WHERE service_type = $1 AND active
		ORDER BY updated_at DESC
		LIMIT 1
	`, serviceType).Scan(&rule.ID, &rule.ServiceType, &rule.CommissionPercent, &rule.MinOrderAmount, &rule.MaxCommissionAmount, &rule.Active)
	return rule, err
}

// GetOrCreateWallet locks the user's wallet row, creating it first if
// absent, so balance updates in the same transaction are serialized.
func (r *Repository) GetOrCreateWallet(ctx context.Context, tx pgx.Tx, userID string) (Wallet, error) {
	_, err := tx.Exec(ctx, `
		INSERT INTO wallets (id, user_id, balance)
		VALUES ($1, $2, 0)
		ON CONFLICT (user_id) DO NOTHING
	`, uuid.NewString(), userID)
	if err != nil {
		return Wallet{}, err
	}

	var w Wallet
	err = tx.QueryRow(ctx, `
		SELECT id::text, user_id::text, balance, updated_at
		FROM wallets
		WHERE user_id = $1
		FOR UPDATE
	`, userID).Scan(&w.ID, &w.UserID, &w.Balance, &w.UpdatedAt)
	return w, err
}

func (r *Repository) GetWallet(ctx context.Context, userID string) (Wallet, error) {
	var w Wallet
	err := r.pool.QueryRow(ctx, `
		SELECT id::text, user_id::text, balance, updated_at
		FROM wallets
		WHERE user_id = $1
	`, userID).Scan(&w.ID, &w.UserID, &w.Balance, &w.UpdatedAt)
	return w, err
}

func (r *Repository) CreditWallet(ctx context.Context, tx pgx.Tx, walletID string, amount int64, kind, reference string) error {
	_, err := tx.Exec(ctx, `
		UPDATE wallets SET balance = balance + $2, updated_at = now() WHERE id = $1
	`, walletID, amount)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO wallet_transactions (id, wallet_id, amount, kind, reference)
		VALUES ($1, $2, $3, $4, $5)
	`, uuid.NewString(), walletID, amount, kind, reference)
	return err
}

func (r *Repository) GetReferralForUpdate(ctx context.Context, tx pgx.Tx, referralID string) (Referral, error) {
	var ref Referral
	var paidAt *time.Time
	err := tx.QueryRow(ctx, `
		SELECT id::text, referrer_id::text, referee_id::text, reward_amount, status, paid_at
		FROM referrals
		WHERE id = $1
		FOR UPDATE
	`, referralID).Scan(&ref.ID, &ref.ReferrerID, &ref.RefereeID, &ref.RewardAmount, &ref.Status, &paidAt)
	if err != nil {
		return Referral{}, err
	}
	ref.PaidAt = paidAt
	return ref, nil
}

func (r *Repository) MarkReferralPaid(ctx context.Context, tx pgx.Tx, referralID string) (time.Time, error) {
	var paidAt time.Time
	err := tx.QueryRow(ctx, `
		UPDATE referrals
		SET status = 'paid', paid_at = now()
		WHERE id = $1
		RETURNING paid_at
	`, referralID).Scan(&paidAt)
	return paidAt, err
}

func (r *Repository) CreateReferral(ctx context.Context, referrerID, refereeID string, rewardAmount int64) (string, error) {
	id := uuid.NewString()
	_, err := r.pool.Exec(ctx, `
		INSERT INTO referrals (id, referrer_id, referee_id, reward_amount, status)
		VALUES ($1, $2, $3, $4, 'pending')
	`, id, referrerID, refereeID, rewardAmount)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (r *Repository) UpsertCheckoutSession(ctx context.Context, tx pgx.Tx, s CheckoutSession) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO checkout_sessions (stripe_session_id, order_id, customer_id, amount, currency, status, url)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (stripe_session_id) DO UPDATE SET
			status = EXCLUDED.status,
			url = EXCLUDED.url,
			updated_at = now()
	`, s.StripeSessionID, s.OrderID, s.CustomerID, s.Amount, s.Currency, s.Status, s.URL)
	return err
}

func (r *Repository) MarkCheckoutSessionCompleted(ctx context.Context, tx pgx.Tx, sessionID string, completedAt time.Time) error {
	_, err := tx.Exec(ctx, `
		UPDATE checkout_sessions
		SET status = 'completed', completed_at = $2, updated_at = now()
		WHERE stripe_session_id = $1
	`, sessionID, completedAt)
	return err
}

func (r *Repository) MarkCheckoutSessionExpired(ctx context.Context, tx pgx.Tx, sessionID string, expiredAt time.Time) error {
	_, err := tx.Exec(ctx, `
		UPDATE checkout_sessions
		SET status = 'expired', updated_at = $2
		WHERE stripe_session_id = $1
	`, sessionID, expiredAt)
	return err
}

func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
