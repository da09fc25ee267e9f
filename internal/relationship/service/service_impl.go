package service

import (
	"context"

	"github.com/vouchnet/vouchnet/internal/observability/metrics"
	"github.com/vouchnet/vouchnet/internal/relationship/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	Repo       domain.Repository
	ObsMetrics *metrics.Metrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	repo       domain.Repository
	obsMetrics *metrics.Metrics
}

func NewService(p Params) domain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("relationship.service"),
		repo:       p.Repo,
		obsMetrics: p.ObsMetrics,
	}
}

func (s *Service) Confirmed(ctx context.Context) ([]domain.Edge, error) {
	return s.repo.ListConfirmed(ctx, s.db)
}

// Reconcile is a data-integrity repair: the pair unique index makes duplicate
// edges impossible in normal operation, so every removal here means corrupted
// data reached the table and is logged loudly.
func (s *Service) Reconcile(ctx context.Context) (int, error) {
	removed := 0
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		duplicates, err := s.repo.ListDuplicatePairs(ctx, tx)
		if err != nil {
			return err
		}
		if len(duplicates) == 0 {
			return nil
		}

		// Rows arrive grouped per pair, oldest first. The last row of each
		// group is the most recent and survives.
		for i := 0; i < len(duplicates); i++ {
			edge := duplicates[i]
			last := i+1 >= len(duplicates) ||
				duplicates[i+1].UserLow != edge.UserLow ||
				duplicates[i+1].UserHigh != edge.UserHigh
			if last {
				continue
			}
			if err := s.repo.Delete(ctx, tx, edge.ID); err != nil {
				return err
			}
			removed++
			s.log.Warn("removed duplicate relationship edge",
				zap.String("edge_id", edge.ID.String()),
				zap.String("user_low", edge.UserLow.String()),
				zap.String("user_high", edge.UserHigh.String()),
			)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	for i := 0; i < removed; i++ {
		s.obsMetrics.RecordEdgeRepair()
	}
	return removed, nil
}
