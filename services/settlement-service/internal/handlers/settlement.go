package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/khanakart/khanakart/libs/outbox"
	"github.com/khanakart/khanakart/services/settlement-service/internal/storage"
	"github.com/stripe/stripe-go/v79"
	checkoutsession "github.com/stripe/stripe-go/v79/checkout/session"
)

type Handler struct {
	repo                   *storage.Repository
	outboxRepo             *outbox.Repository
	logger                 *slog.Logger
	stripeSecretKey        string
	stripeWebhookSecret    string
	stripeWebhookTolerance time.Duration
	checkoutSuccessURL     string
	checkoutCancelURL      string
	currency               string
}

type Config struct {
	StripeSecretKey               string
	StripeWebhookSecret           string
	StripeWebhookToleranceSeconds int
	CheckoutSuccessURL            string
	CheckoutCancelURL             string
	Currency                      string
}

func New(repo *storage.Repository, outboxRepo *outbox.Repository, logger *slog.Logger, cfg Config) *Handler {
	tolSeconds := cfg.StripeWebhookToleranceSeconds
	if tolSeconds <= 0 {
		tolSeconds = 300
	}
	currency := strings.TrimSpace(strings.ToLower(cfg.Currency))
	if currency == "" {
		currency = "inr"
	}
	return &Handler{
		repo:                   repo,
		outboxRepo:             outboxRepo,
		logger:                 logger,
		stripeSecretKey:        strings.TrimSpace(cfg.StripeSecretKey),
		stripeWebhookSecret:    strings.TrimSpace(cfg.StripeWebhookSecret),
		stripeWebhookTolerance: time.Duration(tolSeconds) * time.Second,
		checkoutSuccessURL:     strings.TrimSpace(cfg.CheckoutSuccessURL),
		checkoutCancelURL:      strings.TrimSpace(cfg.CheckoutCancelURL),
		currency:               currency,
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

type referralPayoutRequest struct {
	ReferralID string `json:"referral_id"`
}

// ReferralPayout credits the referrer's wallet and marks the referral
// paid in a single transaction, so a crash can never leave the reward
// credited without the referral closed or vice versa.
func (h *Handler) ReferralPayout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req referralPayoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.ReferralID = strings.TrimSpace(req.ReferralID)
	if req.ReferralID == "" {
		http.Error(w, "referral_id required", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	tx, err := h.repo.Begin(ctx)
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	ref, err := h.repo.GetReferralForUpdate(ctx, tx, req.ReferralID)
	if err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "referral not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to load referral", http.StatusInternalServerError)
		return
	}

	if ref.Status == "paid" && ref.PaidAt != nil {
		writeJSON(w, http.StatusOK, map[string]any{
			"referral_id": ref.ID,
			"status":      "paid",
			"paid_at":     ref.PaidAt.UTC().Format(time.RFC3339),
		})
		return
	}
	if ref.Status != "pending" {
		http.Error(w, "referral cannot be paid", http.StatusConflict)
		return
	}

	wallet, err := h.repo.GetOrCreateWallet(ctx, tx, ref.ReferrerID)
	if err != nil {
		http.Error(w, "failed to load wallet", http.StatusInternalServerError)
		return
	}
	if err := h.repo.CreditWallet(ctx, tx, wallet.ID, ref.RewardAmount, "referral_reward", ref.ID); err != nil {
		http.Error(w, "failed to credit wallet", http.StatusInternalServerError)
		return
	}
	paidAt, err := h.repo.MarkReferralPaid(ctx, tx, ref.ID)
	if err != nil {
		http.Error(w, "failed to mark referral paid", http.StatusInternalServerError)
		return
	}

	payload, err := json.Marshal(map[string]any{
		"referral_id":   ref.ID,
		"referrer_id":   ref.ReferrerID,
		"reward_amount": ref.RewardAmount,
		"paid_at":       paidAt.UTC().Format(time.RFC3339),
	})
	if err != nil {
		http.Error(w, "failed to build event payload", http.StatusInternalServerError)
		return
	}
	if err := h.outboxRepo.Insert(ctx, tx, outbox.Event{
		AggregateType: "referral",
		AggregateID:   ref.ID,
		EventType:     "settlement.referral.paid.v1",
		Payload:       payload,
	}); err != nil {
		http.Error(w, "failed to write outbox event", http.StatusInternalServerError)
		return
	}

	if err := tx.Commit(ctx); err != nil {
		http.Error(w, "failed to commit", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"referral_id": ref.ID,
		"status":      "paid",
		"paid_at":     paidAt.UTC().Format(time.RFC3339),
	})
}

type createReferralRequest struct {
	ReferrerID   string `json:"referrer_id"`
	RefereeID    string `json:"referee_id"`
	RewardAmount int64  `json:"reward_amount"`
}

func (h *Handler) CreateReferral(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req createReferralRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.ReferrerID = strings.TrimSpace(req.ReferrerID)
	req.RefereeID = strings.TrimSpace(req.RefereeID)
	if req.ReferrerID == "" || req.RefereeID == "" || req.RewardAmount <= 0 {
		http.Error(w, "referrer_id, referee_id, and a positive reward_amount are required", http.StatusBadRequest)
		return
	}
	if req.ReferrerID == req.RefereeID {
		http.Error(w, "self referral is not allowed", http.StatusBadRequest)
		return
	}

	id, err := h.repo.CreateReferral(r.Context(), req.ReferrerID, req.RefereeID, req.RewardAmount)
	if err != nil {
		http.Error(w, "failed to create referral", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"id": id})
}

func (h *Handler) GetWallet(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	userID := strings.TrimSpace(r.Header.Get("X-User-Id"))
	if userID == "" {
		userID = strings.TrimSpace(r.URL.Query().Get("user_id"))
	}
	if userID == "" {
		http.Error(w, "user_id required", http.StatusBadRequest)
		return
	}

	wallet, err := h.repo.GetWallet(r.Context(), userID)
	if err != nil {
		if storage.IsNotFound(err) {
			writeJSON(w, http.StatusOK, map[string]any{"user_id": userID, "balance": 0})
			return
		}
		http.Error(w, "failed to load wallet", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, wallet)
}

func (h *Handler) ListLedger(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	kitchenID := strings.TrimSpace(r.URL.Query().Get("kitchen_id"))
	if kitchenID == "" {
		http.Error(w, "kitchen_id required", http.StatusBadRequest)
		return
	}
	limit := 50
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}
	entries, err := h.repo.ListLedger(r.Context(), kitchenID, limit)
	if err != nil {
		http.Error(w, "failed to list ledger", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

type checkoutRequest struct {
	OrderID     string `json:"order_id"`
	Amount      int64  `json:"amount"`
	Description string `json:"description"`
	SuccessURL  string `json:"success_url,omitempty"`
	CancelURL   string `json:"cancel_url,omitempty"`
}

// Checkout creates a Stripe payment session for an order. Amounts are
// dynamic, so line items use price data instead of preconfigured
// price ids.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.stripeSecretKey == "" {
		http.Error(w, "stripe checkout not configured (STRIPE_SECRET_KEY missing)", http.StatusNotImplemented)
		return
	}

	customerID := strings.TrimSpace(r.Header.Get("X-User-Id"))
	if customerID == "" {
		http.Error(w, "missing user identity", http.StatusUnauthorized)
		return
	}

	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.OrderID = strings.TrimSpace(req.OrderID)
	req.Description = strings.TrimSpace(req.Description)
	if req.OrderID == "" || req.Amount <= 0 {
		http.Error(w, "order_id and a positive amount are required", http.StatusBadRequest)
		return
	}
	if req.Description == "" {
		req.Description = "Order " + req.OrderID
	}

	successURL := strings.TrimSpace(req.SuccessURL)
	if successURL == "" {
		successURL = h.checkoutSuccessURL
	}
	cancelURL := strings.TrimSpace(req.CancelURL)
	if cancelURL == "" {
		cancelURL = h.checkoutCancelURL
	}
	if successURL == "" || cancelURL == "" {
		http.Error(w, "success_url and cancel_url are required (or configure default URLs)", http.StatusBadRequest)
		return
	}

	// Stripe uses a global API key. Keep usage limited to this handler call.
	stripe.Key = h.stripeSecretKey

	idemKey := strings.TrimSpace(r.Header.Get("Idempotency-Key"))

	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(successURL),
		CancelURL:         stripe.String(cancelURL),
		ClientReferenceID: stripe.String(req.OrderID),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(h.currency),
					UnitAmount: stripe.Int64(req.Amount),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(req.Description),
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
		Metadata: map[string]string{
			"order_id":    req.OrderID,
			"customer_id": customerID,
		},
	}
	params.AddExpand("url")
	if idemKey != "" {
		params.IdempotencyKey = stripe.String(idemKey)
	}

	sess, err := checkoutsession.New(params)
	if err != nil {
		h.logger.Error("stripe checkout session create failed", "err", err)
		http.Error(w, "failed to create checkout session", http.StatusBadGateway)
		return
	}

	ctx := r.Context()
	tx, err := h.repo.Begin(ctx)
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()
	if err := h.repo.UpsertCheckoutSession(ctx, tx, storage.CheckoutSession{
		StripeSessionID: sess.ID,
		OrderID:         req.OrderID,
		CustomerID:      customerID,
		Amount:          req.Amount,
		Currency:        h.currency,
		Status:          "created",
		URL:             sess.URL,
	}); err != nil {
		http.Error(w, "failed to persist checkout session", http.StatusInternalServerError)
		return
	}
	if err := tx.Commit(ctx); err != nil {
		http.Error(w, "failed to commit", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"session_id":   sess.ID,
		"checkout_url": sess.URL,
	})
}
