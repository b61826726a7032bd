package model

import "time"

// Order statuses form a forward-only chain; cancellation is reachable
// only from pending or confirmed.
const (
	StatusPending        = "pending"
	StatusConfirmed      = "confirmed"
	StatusPreparing      = "preparing"
	StatusReady          = "ready"
	StatusOutForDelivery = "out_for_delivery"
	StatusDelivered      = "delivered"
	StatusCancelled      = "cancelled"
)

type Order struct {
	ID              string
	CustomerID      string
	KitchenID       string
	SlotID          string
	Status          string
	TotalAmount     int64
	DeliveryAddress string
	Note            string
	CancelledAt     *time.Time
	CancelReason    string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type OrderItem struct {
	OrderID   string
	ItemID    string
	Name      string
	UnitPrice int64
	Quantity  int
}

// SlotSnapshot is the local read model of a delivery slot, kept in
// sync from catalog events.
type SlotSnapshot struct {
	SlotID       string
	KitchenID    string
	Name         string
	StartClock   string
	EndClock     string
	CutoffHours  float64
	Active       bool
	DisplayOrder int
	UpdatedAt    time.Time
}

// nextStatuses maps each order status to the transitions allowed from it.
var nextStatuses = map[string][]string{
	StatusPending:        {StatusConfirmed, StatusCancelled},
	StatusConfirmed:      {StatusPreparing, StatusCancelled},
	StatusPreparing:      {StatusReady},
	StatusReady:          {StatusOutForDelivery},
	StatusOutForDelivery: {StatusDelivered},
}

// CanTransition reports whether an order may move from one status to
// another.
func CanTransition(from, to string) bool {
	for _, s := range nextStatuses[from] {
		if s == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions exist from status.
func IsTerminal(status string) bool {
	return len(nextStatuses[status]) == 0
}
