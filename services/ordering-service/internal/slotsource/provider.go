// Package slotsource resolves slot definitions that have not yet
// arrived through catalog events. Order placement prefers the local
// snapshot table and only falls back to the catalog's gRPC surface.
package slotsource

import (
	"context"

	"github.com/khanakart/khanakart/services/ordering-service/internal/model"
)

// Provider fetches the authoritative slot definition from the catalog.
// A nil Provider means snapshots are the only source.
type Provider interface {
	Definition(ctx context.Context, slotID string) (model.SlotSnapshot, error)
}
