// Package events applies upstream events to the settlement state.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/khanakart/khanakart/libs/db"
	"github.com/khanakart/khanakart/libs/outbox"
	"github.com/khanakart/khanakart/services/settlement-service/internal/commission"
	"github.com/khanakart/khanakart/services/settlement-service/internal/storage"
)

const (
	OrderDeliveredTopic        = "ordering.order.delivered.v1"
	CommissionRuleUpdatedTopic = "catalog.commission_rule.updated.v1"

	// serviceType partitions commission rules; settlement currently
	// charges the delivery vertical only.
	serviceType = "delivery"
)

type orderDeliveredPayload struct {
	OrderID     string `json:"order_id"`
	KitchenID   string `json:"kitchen_id"`
	TotalAmount int64  `json:"total_amount"`
}

type ruleUpdatedPayload struct {
	RuleID              string  `json:"rule_id"`
	ServiceType         string  `json:"service_type"`
	CommissionPercent   float64 `json:"commission_percent"`
	MinOrderAmount      int64   `json:"min_order_amount"`
	MaxCommissionAmount int64   `json:"max_commission_amount"`
	Active              bool    `json:"active"`
}

// DecodeRuleUpdated converts a rule event into the cache row shape.
func DecodeRuleUpdated(payload []byte) (commission.Rule, error) {
	var p ruleUpdatedPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return commission.Rule{}, fmt.Errorf("decode rule update: %w", err)
	}
	p.RuleID = strings.TrimSpace(p.RuleID)
	p.ServiceType = strings.TrimSpace(p.ServiceType)
	if p.RuleID == "" || p.ServiceType == "" {
		return commission.Rule{}, fmt.Errorf("rule update missing identifiers")
	}
	if p.CommissionPercent < 0 || p.CommissionPercent > 100 || p.MinOrderAmount < 0 || p.MaxCommissionAmount < 0 {
		return commission.Rule{}, fmt.Errorf("rule update out of range")
	}
	return commission.Rule{
		ID:                  p.RuleID,
		ServiceType:         p.ServiceType,
		CommissionPercent:   p.CommissionPercent,
		MinOrderAmount:      p.MinOrderAmount,
		MaxCommissionAmount: p.MaxCommissionAmount,
		Active:              p.Active,
	}, nil
}

// Applier records commission for delivered orders.
type Applier struct {
	pool       *db.Pool
	repo       *storage.Repository
	outboxRepo *outbox.Repository
	logger     *slog.Logger
}

func NewApplier(pool *db.Pool, repo *storage.Repository, outboxRepo *outbox.Repository, logger *slog.Logger) *Applier {
	return &Applier{pool: pool, repo: repo, outboxRepo: outboxRepo, logger: logger}
}

// ApplyOrderDelivered computes commission for a delivered order and
// writes the ledger row plus outbox event in one transaction. Replays
// are absorbed by the per-order ledger constraint. An order with no
// matching active rule settles at zero commission.
func (a *Applier) ApplyOrderDelivered(ctx context.Context, payload []byte) error {
	var p orderDeliveredPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		a.logger.Error("invalid delivered event", "err", err)
		return nil
	}
	p.OrderID = strings.TrimSpace(p.OrderID)
	p.KitchenID = strings.TrimSpace(p.KitchenID)
	if p.OrderID == "" || p.KitchenID == "" || p.TotalAmount <= 0 {
		a.logger.Error("delivered event missing fields", "order_id", p.OrderID)
		return nil
	}

	rule, err := a.repo.ActiveRule(ctx, serviceType)
	if err != nil {
		if !storage.IsNotFound(err) {
			return err
		}
		rule = commission.Rule{}
	}
	res := commission.Compute(rule, p.TotalAmount)

	tx, err := a.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	inserted, err := a.repo.InsertLedgerEntry(ctx, tx, p.OrderID, p.KitchenID, rule.ID, p.TotalAmount, res)
	if err != nil {
		return err
	}
	if !inserted {
		return tx.Commit(ctx)
	}

	evtPayload, err := json.Marshal(map[string]any{
		"order_id":     p.OrderID,
		"kitchen_id":   p.KitchenID,
		"rule_id":      rule.ID,
		"order_amount": p.TotalAmount,
		"commission":   res.Commission,
		"net_amount":   res.NetAmount,
		"recorded_at":  time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return err
	}
	if err := a.outboxRepo.Insert(ctx, tx, outbox.Event{
		AggregateType: "commission",
		AggregateID:   p.OrderID,
		EventType:     "settlement.commission.recorded.v1",
		Payload:       evtPayload,
	}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
