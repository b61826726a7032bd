package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/khanakart/khanakart/libs/outbox"
	"github.com/khanakart/khanakart/services/ordering-service/internal/dispatch"
	"github.com/khanakart/khanakart/services/ordering-service/internal/model"
	"github.com/khanakart/khanakart/services/ordering-service/internal/slotclock"
	"github.com/khanakart/khanakart/services/ordering-service/internal/slotsource"
	"github.com/khanakart/khanakart/services/ordering-service/internal/storage"
)

type OrderHandler struct {
	repo         *storage.OrderRepository
	slots        *storage.SlotSnapshotRepository
	slotSource   slotsource.Provider
	outboxRepo   *outbox.Repository
	dispatchRepo *dispatch.Repository
	logger       *slog.Logger
	acceptCutoff time.Duration
	now          func() time.Time
}

func NewOrderHandler(repo *storage.OrderRepository, slots *storage.SlotSnapshotRepository, slotSource slotsource.Provider, outboxRepo *outbox.Repository, dispatchRepo *dispatch.Repository, logger *slog.Logger, acceptCutoff time.Duration) *OrderHandler {
	if acceptCutoff <= 0 {
		acceptCutoff = 120 * time.Second
	}
	return &OrderHandler{
		repo:         repo,
		slots:        slots,
		slotSource:   slotSource,
		outboxRepo:   outboxRepo,
		dispatchRepo: dispatchRepo,
		logger:       logger,
		acceptCutoff: acceptCutoff,
		now:          func() time.Time { return time.Now() },
	}
}

type createOrderItem struct {
	ItemID    string `json:"item_id"`
	Name      string `json:"name"`
	UnitPrice int64  `json:"unit_price"`
	Quantity  int    `json:"quantity"`
}

type createOrderRequest struct {
	KitchenID       string            `json:"kitchen_id"`
	SlotID          string            `json:"slot_id"`
	DeliveryAddress string            `json:"delivery_address"`
	Note            string            `json:"note"`
	CustomerEmail   string            `json:"customer_email"`
	CustomerPhone   string            `json:"customer_phone"`
	Items           []createOrderItem `json:"items"`
}

type createOrderResponse struct {
	OrderID     string `json:"order_id"`
	Status      string `json:"status"`
	TotalAmount int64  `json:"total_amount"`
}

type statusChangeRequest struct {
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
	Reason  string `json:"reason"`
}

type orderListItem struct {
	OrderID         string `json:"order_id"`
	KitchenID       string `json:"kitchen_id"`
	SlotID          string `json:"slot_id"`
	Status          string `json:"status"`
	TotalAmount     int64  `json:"total_amount"`
	DeliveryAddress string `json:"delivery_address"`
	CancelledAt     string `json:"cancelled_at,omitempty"`
	CreatedAt       string `json:"created_at"`
}

func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	customerID := strings.TrimSpace(r.Header.Get("X-User-Id"))
	if customerID == "" {
		http.Error(w, "missing user identity", http.StatusUnauthorized)
		return
	}

	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.KitchenID = strings.TrimSpace(req.KitchenID)
	req.SlotID = strings.TrimSpace(req.SlotID)
	req.DeliveryAddress = strings.TrimSpace(req.DeliveryAddress)
	if req.KitchenID == "" || req.SlotID == "" || req.DeliveryAddress == "" || len(req.Items) == 0 {
		http.Error(w, "kitchen_id, slot_id, delivery_address, and items are required", http.StatusBadRequest)
		return
	}

	var total int64
	for _, it := range req.Items {
		if strings.TrimSpace(it.ItemID) == "" || it.Quantity <= 0 || it.UnitPrice < 0 {
			http.Error(w, "invalid order item", http.StatusBadRequest)
			return
		}
		total += it.UnitPrice * int64(it.Quantity)
	}

	ctx := r.Context()

	snap, err := h.slots.Get(ctx, req.SlotID)
	if err != nil {
		if !storage.IsNotFound(err) {
			http.Error(w, "failed to load slot", http.StatusInternalServerError)
			return
		}
		// Snapshot may lag behind a freshly created slot; ask the
		// catalog directly before rejecting.
		if h.slotSource == nil {
			http.Error(w, "unknown delivery slot", http.StatusUnprocessableEntity)
			return
		}
		snap, err = h.slotSource.Definition(ctx, req.SlotID)
		if err != nil {
			http.Error(w, "unknown delivery slot", http.StatusUnprocessableEntity)
			return
		}
		if upsertErr := h.slots.Upsert(ctx, snap); upsertErr != nil {
			h.logger.Warn("failed to cache slot definition", "slot_id", snap.SlotID, "err", upsertErr)
		}
	}
	if !snap.Active || snap.KitchenID != req.KitchenID {
		http.Error(w, "slot is not accepting orders", http.StatusUnprocessableEntity)
		return
	}
	slot, err := slotclock.SlotFromStrings(snap.StartClock, snap.EndClock, snap.CutoffHours)
	if err != nil {
		h.logger.Error("bad slot snapshot", "slot_id", snap.SlotID, "err", err)
		http.Error(w, "slot is not accepting orders", http.StatusUnprocessableEntity)
		return
	}
	if verdict := slotclock.EvaluateAt(slot, h.now()); !verdict.Open {
		http.Error(w, "slot is closed for ordering", http.StatusUnprocessableEntity)
		return
	}

	tx, err := h.repo.Begin(ctx)
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	idempotencyKey := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	if idempotencyKey != "" {
		rec, exists, err := h.repo.LockIdempotencyKey(ctx, tx, customerID, idempotencyKey)
		if err != nil {
			http.Error(w, "failed to lock idempotency key", http.StatusInternalServerError)
			return
		}
		if exists && rec.StatusCode > 0 {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(rec.StatusCode)
			_, _ = w.Write(rec.ResponsePayload)
			return
		}
	}

	order := &model.Order{
		CustomerID:      customerID,
		KitchenID:       req.KitchenID,
		SlotID:          req.SlotID,
		Status:          model.StatusPending,
		TotalAmount:     total,
		DeliveryAddress: req.DeliveryAddress,
		Note:            strings.TrimSpace(req.Note),
	}
	items := make([]model.OrderItem, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, model.OrderItem{
			ItemID:    strings.TrimSpace(it.ItemID),
			Name:      strings.TrimSpace(it.Name),
			UnitPrice: it.UnitPrice,
			Quantity:  it.Quantity,
		})
	}

	id, err := h.repo.Create(ctx, tx, order, items)
	if err != nil {
		http.Error(w, "failed to create order", http.StatusInternalServerError)
		return
	}

	evtPayload, err := json.Marshal(map[string]any{
		"order_id":       id,
		"customer_id":    customerID,
		"kitchen_id":     order.KitchenID,
		"slot_id":        order.SlotID,
		"total_amount":   total,
		"customer_email": strings.TrimSpace(req.CustomerEmail),
		"customer_phone": strings.TrimSpace(req.CustomerPhone),
		"placed_at":      h.now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		http.Error(w, "failed to build event payload", http.StatusInternalServerError)
		return
	}
	if err := h.outboxRepo.Insert(ctx, tx, outbox.Event{
		AggregateType: "order",
		AggregateID:   id,
		EventType:     "ordering.order.placed.v1",
		Payload:       evtPayload,
	}); err != nil {
		http.Error(w, "failed to write outbox event", http.StatusInternalServerError)
		return
	}

	deadline := h.now().UTC().Add(h.acceptCutoff)
	if err := h.dispatchRepo.Insert(ctx, tx, id, order.KitchenID, deadline); err != nil {
		http.Error(w, "failed to schedule dispatch", http.StatusInternalServerError)
		return
	}

	respBody, err := json.Marshal(createOrderResponse{OrderID: id, Status: model.StatusPending, TotalAmount: total})
	if err != nil {
		http.Error(w, "failed to build response", http.StatusInternalServerError)
		return
	}
	if idempotencyKey != "" {
		if err := h.repo.FinalizeIdempotency(ctx, tx, customerID, idempotencyKey, id, http.StatusCreated, respBody); err != nil {
			http.Error(w, "failed to finalize idempotency key", http.StatusInternalServerError)
			return
		}
	}

	if err := tx.Commit(ctx); err != nil {
		http.Error(w, "failed to commit", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_, _ = w.Write(respBody)
}

// statusChangeEvent builds the outbox event for a status transition.
// Every transition publishes under ordering.order.<status>.v1; the
// delivered event carries a delivered_at stamp the settlement side
// keys commission off.
func statusChangeEvent(order *model.Order, status, reason string, at time.Time) (outbox.Event, error) {
	fields := map[string]any{
		"order_id":     order.ID,
		"customer_id":  order.CustomerID,
		"kitchen_id":   order.KitchenID,
		"slot_id":      order.SlotID,
		"total_amount": order.TotalAmount,
		"status":       status,
		"changed_at":   at.UTC().Format(time.RFC3339),
	}
	if reason != "" {
		fields["reason"] = reason
	}
	if status == model.StatusDelivered {
		fields["delivered_at"] = at.UTC().Format(time.RFC3339)
	}
	payload, err := json.Marshal(fields)
	if err != nil {
		return outbox.Event{}, err
	}
	return outbox.Event{
		AggregateType: "order",
		AggregateID:   order.ID,
		EventType:     "ordering.order." + status + ".v1",
		Payload:       payload,
	}, nil
}

// ChangeStatus moves an order along the status chain. Each successful
// transition emits an outbox event; the delivered one feeds settlement.
func (h *OrderHandler) ChangeStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req statusChangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.OrderID = strings.TrimSpace(req.OrderID)
	req.Status = strings.TrimSpace(req.Status)
	if req.OrderID == "" || req.Status == "" {
		http.Error(w, "order_id and status required", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	tx, err := h.repo.Begin(ctx)
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	order, err := h.repo.GetForUpdate(ctx, tx, req.OrderID)
	if err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "order not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to load order", http.StatusInternalServerError)
		return
	}

	if order.Status == req.Status {
		h.writeStatusResponse(w, order.ID, order.Status)
		return
	}
	if !model.CanTransition(order.Status, req.Status) {
		http.Error(w, "status transition not allowed", http.StatusConflict)
		return
	}

	if req.Status == model.StatusCancelled {
		if _, err := h.repo.Cancel(ctx, tx, order.ID, strings.TrimSpace(req.Reason)); err != nil {
			http.Error(w, "failed to cancel order", http.StatusInternalServerError)
			return
		}
	} else {
		if err := h.repo.UpdateStatus(ctx, tx, order.ID, req.Status); err != nil {
			http.Error(w, "failed to update order", http.StatusInternalServerError)
			return
		}
	}

	evt, err := statusChangeEvent(&order, req.Status, strings.TrimSpace(req.Reason), h.now())
	if err != nil {
		http.Error(w, "failed to build event payload", http.StatusInternalServerError)
		return
	}
	if err := h.outboxRepo.Insert(ctx, tx, evt); err != nil {
		http.Error(w, "failed to write outbox event", http.StatusInternalServerError)
		return
	}

	if err := tx.Commit(ctx); err != nil {
		http.Error(w, "failed to commit", http.StatusInternalServerError)
		return
	}
	h.writeStatusResponse(w, order.ID, req.Status)
}

func (h *OrderHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	customerID := strings.TrimSpace(r.Header.Get("X-User-Id"))
	if customerID == "" {
		http.Error(w, "missing user identity", http.StatusUnauthorized)
		return
	}
	orders, err := h.repo.ListByCustomer(r.Context(), customerID, parseLimit(r))
	if err != nil {
		http.Error(w, "failed to list orders", http.StatusInternalServerError)
		return
	}
	h.writeOrderList(w, orders)
}

func (h *OrderHandler) ListKitchen(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	kitchenID := strings.TrimSpace(r.URL.Query().Get("kitchen_id"))
	if kitchenID == "" {
		http.Error(w, "kitchen_id required", http.StatusBadRequest)
		return
	}
	statuses := parseStatuses(r.URL.Query().Get("status"))
	orders, err := h.repo.ListByKitchen(r.Context(), kitchenID, statuses, parseLimit(r))
	if err != nil {
		http.Error(w, "failed to list orders", http.StatusInternalServerError)
		return
	}
	h.writeOrderList(w, orders)
}

func (h *OrderHandler) writeOrderList(w http.ResponseWriter, orders []model.Order) {
	items := make([]orderListItem, 0, len(orders))
	for _, o := range orders {
		item := orderListItem{
			OrderID:         o.ID,
			KitchenID:       o.KitchenID,
			SlotID:          o.SlotID,
			Status:          o.Status,
			TotalAmount:     o.TotalAmount,
			DeliveryAddress: o.DeliveryAddress,
			CreatedAt:       o.CreatedAt.UTC().Format(time.RFC3339),
		}
		if o.CancelledAt != nil {
			item.CancelledAt = o.CancelledAt.UTC().Format(time.RFC3339)
		}
		items = append(items, item)
	}
	body, err := json.Marshal(items)
	if err != nil {
		http.Error(w, "failed to build response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func (h *OrderHandler) writeStatusResponse(w http.ResponseWriter, orderID, status string) {
	body, err := json.Marshal(map[string]string{"order_id": orderID, "status": status})
	if err != nil {
		http.Error(w, "failed to build response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func parseLimit(r *http.Request) int {
	limit := 50
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}
	return limit
}

func parseStatuses(raw string) []string {
	var out []string
	for _, s := range strings.Split(raw, ",") {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
