package handlers

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/khanakart/khanakart/services/ordering-service/internal/model"
)

func TestStatusChangeEvent(t *testing.T) {
	order := &model.Order{
		ID:          "ord-1",
		CustomerID:  "cust-1",
		KitchenID:   "kit-1",
		SlotID:      "lunch",
		TotalAmount: 2500,
	}
	at := time.Date(2026, 5, 1, 12, 30, 0, 0, time.UTC)

	for _, status := range []string{
		model.StatusConfirmed,
		model.StatusPreparing,
		model.StatusReady,
		model.StatusOutForDelivery,
		model.StatusDelivered,
	} {
		evt, err := statusChangeEvent(order, status, "", at)
		if err != nil {
			t.Fatalf("%s: %v", status, err)
		}
		if evt.EventType != "ordering.order."+status+".v1" {
			t.Fatalf("%s: event type %q", status, evt.EventType)
		}
		if evt.AggregateType != "order" || evt.AggregateID != "ord-1" {
			t.Fatalf("%s: aggregate %s/%s", status, evt.AggregateType, evt.AggregateID)
		}

		var p map[string]any
		if err := json.Unmarshal(evt.Payload, &p); err != nil {
			t.Fatalf("%s: payload: %v", status, err)
		}
		if p["order_id"] != "ord-1" || p["kitchen_id"] != "kit-1" || p["total_amount"] != float64(2500) {
			t.Fatalf("%s: payload %v", status, p)
		}
		if p["status"] != status || p["changed_at"] != "2026-05-01T12:30:00Z" {
			t.Fatalf("%s: payload %v", status, p)
		}

		_, delivered := p["delivered_at"]
		if delivered != (status == model.StatusDelivered) {
			t.Fatalf("%s: delivered_at presence wrong: %v", status, p)
		}
	}
}

func TestStatusChangeEventCancelReason(t *testing.T) {
	order := &model.Order{ID: "ord-2", CustomerID: "cust-1", KitchenID: "kit-1", SlotID: "dinner"}
	at := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

	evt, err := statusChangeEvent(order, model.StatusCancelled, "customer request", at)
	if err != nil {
		t.Fatal(err)
	}
	if evt.EventType != "ordering.order.cancelled.v1" {
		t.Fatalf("event type %q", evt.EventType)
	}
	var p map[string]any
	if err := json.Unmarshal(evt.Payload, &p); err != nil {
		t.Fatal(err)
	}
	if p["reason"] != "customer request" {
		t.Fatalf("payload %v", p)
	}

	evt, err = statusChangeEvent(order, model.StatusCancelled, "", at)
	if err != nil {
		t.Fatal(err)
	}
	p = map[string]any{}
	if err := json.Unmarshal(evt.Payload, &p); err != nil {
		t.Fatal(err)
	}
	if _, ok := p["reason"]; ok {
		t.Fatalf("empty reason should be omitted: %v", p)
	}
}
