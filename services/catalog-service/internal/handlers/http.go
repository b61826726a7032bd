package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/khanakart/khanakart/libs/outbox"
	"github.com/khanakart/khanakart/services/catalog-service/internal/storage"
)

type Handler struct {
	repo       *storage.Repository
	outboxRepo *outbox.Repository
	logger     *slog.Logger
}

func New(repo *storage.Repository, outboxRepo *outbox.Repository, logger *slog.Logger) *Handler {
	return &Handler{repo: repo, outboxRepo: outboxRepo, logger: logger}
}

func userIDFromHeader(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get("X-User-Id"))
}

// validClock accepts zero-padded "HH:MM" only. Slot boundaries are
// stored as text, so the write path is the single validation point.
func validClock(s string) bool {
	if len(s) != 5 {
		return false
	}
	_, err := time.Parse("15:04", s)
	return err == nil
}

func (h *Handler) CreateKitchen(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	ownerID := userIDFromHeader(r)
	if ownerID == "" {
		http.Error(w, "missing X-User-Id", http.StatusBadRequest)
		return
	}

	var req struct {
		Name string `json:"name"`
		Area string `json:"area"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		http.Error(w, "name is required", http.StatusBadRequest)
		return
	}

	id, err := h.repo.CreateKitchen(r.Context(), ownerID, req.Name, strings.TrimSpace(req.Area))
	if err != nil {
		http.Error(w, "failed to create kitchen", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(map[string]any{"id": id})
}

func (h *Handler) ListKitchens(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	kitchens, err := h.repo.ListKitchens(r.Context(), 100)
	if err != nil {
		http.Error(w, "failed to list kitchens", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(kitchens)
}

type slotRequest struct {
	ID           string  `json:"id"`
	KitchenID    string  `json:"kitchen_id"`
	Name         string  `json:"name"`
	SlotType     string  `json:"slot_type"`
	StartTime    string  `json:"start_time"`
	EndTime      string  `json:"end_time"`
	CutoffHours  float64 `json:"cutoff_hours"`
	Active       *bool   `json:"active"`
	DisplayOrder int     `json:"display_order"`
}

func (req *slotRequest) validate() string {
	req.ID = strings.TrimSpace(req.ID)
	req.KitchenID = strings.TrimSpace(req.KitchenID)
	req.Name = strings.TrimSpace(req.Name)
	req.SlotType = strings.TrimSpace(req.SlotType)
	req.StartTime = strings.TrimSpace(req.StartTime)
	req.EndTime = strings.TrimSpace(req.EndTime)
	if req.KitchenID == "" || req.Name == "" {
		return "kitchen_id and name are required"
	}
	if req.SlotType == "" {
		req.SlotType = "delivery"
	}
	if !validClock(req.StartTime) || !validClock(req.EndTime) {
		return "start_time and end_time must be HH:MM"
	}
	if req.CutoffHours < 0 {
		return "cutoff_hours must not be negative"
	}
	if req.DisplayOrder < 0 {
		return "display_order must not be negative"
	}
	return ""
}

// SaveSlot creates or updates a delivery slot and publishes the new
// definition through the outbox in the same transaction.
func (h *Handler) SaveSlot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost && r.Method != http.MethodPut {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req slotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	if msg := req.validate(); msg != "" {
		http.Error(w, msg, http.StatusBadRequest)
		return
	}
	active := true
	if req.Active != nil {
		active = *req.Active
	}

	ctx := r.Context()
	tx, err := h.repo.Begin(ctx)
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	slot := storage.Slot{
		ID:           req.ID,
		KitchenID:    req.KitchenID,
		Name:         req.Name,
		SlotType:     req.SlotType,
		StartClock:   req.StartTime,
		EndClock:     req.EndTime,
		CutoffHours:  req.CutoffHours,
		Active:       active,
		DisplayOrder: req.DisplayOrder,
	}
	created := slot.ID == ""
	if created {
		slot, err = h.repo.CreateSlot(ctx, tx, slot)
	} else {
		slot, err = h.repo.UpdateSlot(ctx, tx, slot)
	}
	if err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "slot not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to save slot", http.StatusInternalServerError)
		return
	}

	if err := h.insertSlotEvent(ctx, tx, slot); err != nil {
		http.Error(w, "failed to write outbox event", http.StatusInternalServerError)
		return
	}
	if err := tx.Commit(ctx); err != nil {
		http.Error(w, "failed to commit", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if created {
		w.WriteHeader(http.StatusCreated)
	}
	_ = json.NewEncoder(w).Encode(slot)
}

func (h *Handler) insertSlotEvent(ctx context.Context, tx pgx.Tx, slot storage.Slot) error {
	payload, err := json.Marshal(map[string]any{
		"slot_id":       slot.ID,
		"kitchen_id":    slot.KitchenID,
		"name":          slot.Name,
		"slot_type":     slot.SlotType,
		"start_time":    slot.StartClock,
		"end_time":      slot.EndClock,
		"cutoff_hours":  slot.CutoffHours,
		"active":        slot.Active,
		"display_order": slot.DisplayOrder,
	})
	if err != nil {
		return err
	}
	return h.outboxRepo.Insert(ctx, tx, outbox.Event{
		AggregateType: "delivery_slot",
		AggregateID:   slot.ID,
		EventType:     "catalog.slot.updated.v1",
		Payload:       payload,
	})
}

func (h *Handler) ListSlots(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	kitchenID := strings.TrimSpace(r.URL.Query().Get("kitchen_id"))
	if kitchenID == "" {
		http.Error(w, "kitchen_id required", http.StatusBadRequest)
		return
	}
	slots, err := h.repo.ListSlots(r.Context(), kitchenID)
	if err != nil {
		http.Error(w, "failed to list slots", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(slots)
}

func (h *Handler) CreateItem(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		KitchenID    string `json:"kitchen_id"`
		SlotID       string `json:"slot_id"`
		Name         string `json:"name"`
		Description  string `json:"description"`
		Price        int64  `json:"price"`
		Vegetarian   bool   `json:"vegetarian"`
		SetSize      int    `json:"set_size"`
		MinOrderSets int    `json:"min_order_sets"`
		Available    *bool  `json:"available"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.KitchenID = strings.TrimSpace(req.KitchenID)
	req.Name = strings.TrimSpace(req.Name)
	if req.KitchenID == "" || req.Name == "" || req.Price < 0 {
		http.Error(w, "kitchen_id, name, and a non-negative price are required", http.StatusBadRequest)
		return
	}
	if req.SetSize < 0 || req.MinOrderSets < 0 {
		http.Error(w, "set_size and min_order_sets must not be negative", http.StatusBadRequest)
		return
	}
	if req.SetSize == 0 {
		req.SetSize = 1
	}
	if req.MinOrderSets == 0 {
		req.MinOrderSets = 1
	}
	available := true
	if req.Available != nil {
		available = *req.Available
	}

	id, err := h.repo.CreateItem(r.Context(), storage.Item{
		KitchenID:    req.KitchenID,
		SlotID:       strings.TrimSpace(req.SlotID),
		Name:         req.Name,
		Description:  strings.TrimSpace(req.Description),
		Price:        req.Price,
		Vegetarian:   req.Vegetarian,
		SetSize:      req.SetSize,
		MinOrderSets: req.MinOrderSets,
		Available:    available,
	})
	if err != nil {
		http.Error(w, "failed to create item", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(map[string]any{"id": id})
}

func (h *Handler) ListItems(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	kitchenID := strings.TrimSpace(r.URL.Query().Get("kitchen_id"))
	if kitchenID == "" {
		http.Error(w, "kitchen_id required", http.StatusBadRequest)
		return
	}
	availableOnly := strings.TrimSpace(r.URL.Query().Get("available")) == "true"
	items, err := h.repo.ListItems(r.Context(), kitchenID, availableOnly)
	if err != nil {
		http.Error(w, "failed to list items", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(items)
}

// SaveCommissionRule upserts a commission rule and broadcasts it so
// settlement can keep its local rule cache current.
func (h *Handler) SaveCommissionRule(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost && r.Method != http.MethodPut {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		ID                  string  `json:"id"`
		ServiceType         string  `json:"service_type"`
		CommissionPercent   float64 `json:"commission_percent"`
		MinOrderAmount      int64   `json:"min_order_amount"`
		MaxCommissionAmount int64   `json:"max_commission_amount"`
		Active              *bool   `json:"active"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.ServiceType = strings.TrimSpace(req.ServiceType)
	if req.ServiceType == "" {
		http.Error(w, "service_type is required", http.StatusBadRequest)
		return
	}
	if req.CommissionPercent < 0 || req.CommissionPercent > 100 {
		http.Error(w, "commission_percent must be between 0 and 100", http.StatusBadRequest)
		return
	}
	if req.MinOrderAmount < 0 || req.MaxCommissionAmount < 0 {
		http.Error(w, "amounts must not be negative", http.StatusBadRequest)
		return
	}
	active := true
	if req.Active != nil {
		active = *req.Active
	}

	ctx := r.Context()
	tx, err := h.repo.Begin(ctx)
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rule, err := h.repo.UpsertCommissionRule(ctx, tx, storage.CommissionRule{
		ID:                  strings.TrimSpace(req.ID),
		ServiceType:         req.ServiceType,
		CommissionPercent:   req.CommissionPercent,
		MinOrderAmount:      req.MinOrderAmount,
		MaxCommissionAmount: req.MaxCommissionAmount,
		Active:              active,
	})
	if err != nil {
		http.Error(w, "failed to save commission rule", http.StatusInternalServerError)
		return
	}

	payload, err := json.Marshal(map[string]any{
		"rule_id":               rule.ID,
		"service_type":          rule.ServiceType,
		"commission_percent":    rule.CommissionPercent,
		"min_order_amount":      rule.MinOrderAmount,
		"max_commission_amount": rule.MaxCommissionAmount,
		"active":                rule.Active,
	})
	if err != nil {
		http.Error(w, "failed to build event payload", http.StatusInternalServerError)
		return
	}
	if err := h.outboxRepo.Insert(ctx, tx, outbox.Event{
		AggregateType: "commission_rule",
		AggregateID:   rule.ID,
		EventType:     "catalog.commission_rule.updated.v1",
		Payload:       payload,
	}); err != nil {
		http.Error(w, "failed to write outbox event", http.StatusInternalServerError)
		return
	}
	if err := tx.Commit(ctx); err != nil {
		http.Error(w, "failed to commit", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(rule)
}

func (h *Handler) ListCommissionRules(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	rules, err := h.repo.ListCommissionRules(r.Context())
	if err != nil {
		http.Error(w, "failed to list commission rules", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(rules)
}
