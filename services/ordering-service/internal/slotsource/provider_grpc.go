//go:build protogen

package slotsource

import (
	"context"
	"log/slog"
	"time"

	"github.com/khanakart/khanakart/libs/grpcx"
	catalogv1 "github.com/khanakart/khanakart/protos/gen/catalog/v1"
	"github.com/khanakart/khanakart/services/ordering-service/internal/model"
)

type grpcProvider struct {
	client catalogv1.CatalogServiceClient
}

func NewCatalogProvider(logger *slog.Logger, addr string) Provider {
	if addr == "" {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, err := grpcx.Dial(ctx, addr, grpcx.DialOptions{Timeout: 5 * time.Second})
	if err != nil {
		logger.Warn("catalog grpc unavailable, slot lookups use snapshots only", "err", err)
		return nil
	}

	logger.Info("catalog grpc slot lookup enabled", "addr", addr)
	return &grpcProvider{client: catalogv1.NewCatalogServiceClient(conn)}
}

func (p *grpcProvider) Definition(ctx context.Context, slotID string) (model.SlotSnapshot, error) {
	resp, err := p.client.GetSlot(ctx, &catalogv1.SlotRequest{SlotId: slotID})
	if err != nil {
		return model.SlotSnapshot{}, err
	}
	return model.SlotSnapshot{
		SlotID:       resp.GetSlotId(),
		KitchenID:    resp.GetKitchenId(),
		Name:         resp.GetName(),
		StartClock:   resp.GetStartTime(),
		EndClock:     resp.GetEndTime(),
		CutoffHours:  resp.GetCutoffHours(),
		Active:       resp.GetActive(),
		DisplayOrder: int(resp.GetDisplayOrder()),
	}, nil
}
