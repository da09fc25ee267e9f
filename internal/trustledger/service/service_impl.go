package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	obsmetrics "github.com/vouchnet/vouchnet/internal/observability/metrics"
	"github.com/vouchnet/vouchnet/internal/trustledger/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	Repo       domain.Repository
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	repo       domain.Repository
	obsMetrics *obsmetrics.Metrics
}

func NewService(p Params) domain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("trustledger.service"),
		repo:       p.Repo,
		obsMetrics: p.ObsMetrics,
	}
}

func (s *Service) Grant(ctx context.Context, accountID snowflake.ID, amount int64) error {
	return s.run(ctx, "grant", accountID, amount, s.repo.Grant)
}

func (s *Service) Reserve(ctx context.Context, accountID snowflake.ID, amount int64) error {
	return s.run(ctx, "reserve", accountID, amount, s.repo.Reserve)
}

func (s *Service) Release(ctx context.Context, accountID snowflake.ID, amount int64) error {
	return s.run(ctx, "release", accountID, amount, s.repo.Release)
}

func (s *Service) Get(ctx context.Context, accountID snowflake.ID) (*domain.TrustAccount, error) {
	if accountID == 0 {
		return nil, domain.ErrAccountNotFound
	}
	account, err := s.repo.Find(ctx, s.db, accountID)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, domain.ErrAccountNotFound
	}
	return account, nil
}

type ledgerOp func(ctx context.Context, db *gorm.DB, accountID snowflake.ID, amount int64) error

func (s *Service) run(ctx context.Context, op string, accountID snowflake.ID, amount int64, fn ledgerOp) error {
	if accountID == 0 {
		return domain.ErrAccountNotFound
	}
	if amount <= 0 {
		s.obsMetrics.RecordLedgerOp(op, "invalid_amount")
		return domain.ErrInvalidAmount
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ctx, tx, accountID, amount)
	})
	if err != nil {
		s.obsMetrics.RecordLedgerOp(op, "error")
		if err == domain.ErrInvariantViolation {
			s.log.Error("trust ledger invariant violation",
				zap.String("op", op),
				zap.String("account_id", accountID.String()),
				zap.Int64("amount", amount),
			)
		}
		return err
	}

	s.obsMetrics.RecordLedgerOp(op, "ok")
	return nil
}
