//go:build protogen

package grpcserver

import (
	"context"

	"github.com/khanakart/khanakart/libs/db"
	catalogv1 "github.com/khanakart/khanakart/protos/gen/catalog/v1"
	"github.com/khanakart/khanakart/services/catalog-service/internal/storage"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/timestamppb"
)

type server struct {
	catalogv1.UnimplementedCatalogServiceServer
	pool *db.Pool
	repo *storage.Repository
}

func Register(grpcServer *grpc.Server, pool *db.Pool, repo *storage.Repository) {
	catalogv1.RegisterCatalogServiceServer(grpcServer, &server{pool: pool, repo: repo})
}

func (s *server) GetSlot(ctx context.Context, req *catalogv1.SlotRequest) (*catalogv1.SlotResponse, error) {
	slot, err := s.repo.GetSlot(ctx, req.GetSlotId())
	if err != nil {
		return nil, err
	}
	return &catalogv1.SlotResponse{
		SlotId:       slot.ID,
		KitchenId:    slot.KitchenID,
		Name:         slot.Name,
		SlotType:     slot.SlotType,
		StartTime:    slot.StartClock,
		EndTime:      slot.EndClock,
		CutoffHours:  slot.CutoffHours,
		Active:       slot.Active,
		DisplayOrder: int32(slot.DisplayOrder),
		UpdatedAt:    timestamppb.New(slot.UpdatedAt),
	}, nil
}

func (s *server) ListCommissionRules(ctx context.Context, req *catalogv1.CommissionRulesRequest) (*catalogv1.CommissionRulesResponse, error) {
	rules, err := s.repo.ListCommissionRules(ctx)
	if err != nil {
		return nil, err
	}
	resp := &catalogv1.CommissionRulesResponse{}
	for _, rule := range rules {
		if req.GetActiveOnly() && !rule.Active {
			continue
		}
		resp.Rules = append(resp.Rules, &catalogv1.CommissionRule{
			RuleId:              rule.ID,
			ServiceType:         rule.ServiceType,
			CommissionPercent:   rule.CommissionPercent,
			MinOrderAmount:      rule.MinOrderAmount,
			MaxCommissionAmount: rule.MaxCommissionAmount,
			Active:              rule.Active,
		})
	}
	return resp, nil
}
