package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/khanakart/khanakart/services/ordering-service/internal/model"
	"github.com/khanakart/khanakart/services/ordering-service/internal/slotclock"
	"github.com/khanakart/khanakart/services/ordering-service/internal/storage"
)

// SlotHandler serves the public slot board: every active slot for a
// kitchen with its live ordering verdict.
type SlotHandler struct {
	slots  *storage.SlotSnapshotRepository
	logger *slog.Logger
	now    func() time.Time
}

func NewSlotHandler(slots *storage.SlotSnapshotRepository, logger *slog.Logger) *SlotHandler {
	return &SlotHandler{slots: slots, logger: logger, now: func() time.Time { return time.Now() }}
}

type slotBoardItem struct {
	SlotID    string `json:"slot_id"`
	Name      string `json:"name"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	slotclock.Verdict
}

func (h *SlotHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	kitchenID := strings.TrimSpace(r.URL.Query().Get("kitchen_id"))
	if kitchenID == "" {
		http.Error(w, "kitchen_id required", http.StatusBadRequest)
		return
	}

	snaps, err := h.slots.ListByKitchen(r.Context(), kitchenID)
	if err != nil {
		http.Error(w, "failed to list slots", http.StatusInternalServerError)
		return
	}

	items := buildSlotBoard(snaps, h.now(), h.logger)
	body, err := json.Marshal(items)
	if err != nil {
		http.Error(w, "failed to build response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

// buildSlotBoard evaluates each snapshot against now. Snapshots with
// unparseable boundaries are skipped rather than failing the board.
func buildSlotBoard(snaps []model.SlotSnapshot, now time.Time, logger *slog.Logger) []slotBoardItem {
	items := make([]slotBoardItem, 0, len(snaps))
	for _, snap := range snaps {
		slot, err := slotclock.SlotFromStrings(snap.StartClock, snap.EndClock, snap.CutoffHours)
		if err != nil {
			if logger != nil {
				logger.Warn("skipping malformed slot snapshot", "slot_id", snap.SlotID, "err", err)
			}
			continue
		}
		items = append(items, slotBoardItem{
			SlotID:    snap.SlotID,
			Name:      snap.Name,
			StartTime: snap.StartClock,
			EndTime:   snap.EndClock,
			Verdict:   slotclock.EvaluateAt(slot, now),
		})
	}
	return items
}
