// Package events decodes catalog events into the local read models.
package events

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/khanakart/khanakart/services/ordering-service/internal/model"
	"github.com/khanakart/khanakart/services/ordering-service/internal/slotclock"
)

const SlotUpdatedTopic = "catalog.slot.updated.v1"

type slotUpdatedPayload struct {
	SlotID       string  `json:"slot_id"`
	KitchenID    string  `json:"kitchen_id"`
	Name         string  `json:"name"`
	StartTime    string  `json:"start_time"`
	EndTime      string  `json:"end_time"`
	CutoffHours  float64 `json:"cutoff_hours"`
	Active       bool    `json:"active"`
	DisplayOrder int     `json:"display_order"`
}

// DecodeSlotUpdated validates a catalog.slot.updated.v1 payload and
// returns the snapshot to upsert. Clock boundaries are re-validated
// here so a bad upstream payload cannot poison the read model.
func DecodeSlotUpdated(payload []byte) (model.SlotSnapshot, error) {
	var p slotUpdatedPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return model.SlotSnapshot{}, fmt.Errorf("decode slot update: %w", err)
	}
	p.SlotID = strings.TrimSpace(p.SlotID)
	p.KitchenID = strings.TrimSpace(p.KitchenID)
	if p.SlotID == "" || p.KitchenID == "" {
		return model.SlotSnapshot{}, fmt.Errorf("slot update missing identifiers")
	}
	if _, err := slotclock.SlotFromStrings(p.StartTime, p.EndTime, p.CutoffHours); err != nil {
		return model.SlotSnapshot{}, err
	}
	return model.SlotSnapshot{
		SlotID:       p.SlotID,
		KitchenID:    p.KitchenID,
		Name:         strings.TrimSpace(p.Name),
		StartClock:   p.StartTime,
		EndClock:     p.EndTime,
		CutoffHours:  p.CutoffHours,
		Active:       p.Active,
		DisplayOrder: p.DisplayOrder,
	}, nil
}
