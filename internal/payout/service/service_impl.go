package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/vouchnet/vouchnet/internal/config"
	"github.com/vouchnet/vouchnet/internal/payout/domain"
	"github.com/vouchnet/vouchnet/internal/payout/split"
	referraldomain "github.com/vouchnet/vouchnet/internal/referral/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log         *zap.Logger
	TrustCfg    *config.TrustConfigHolder
	ReferralSvc referraldomain.Service
}

type Service struct {
	log         *zap.Logger
	trustCfg    *config.TrustConfigHolder
	referralSvc referraldomain.Service
}

func NewService(p Params) domain.Service {
	return &Service{
		log:         p.Log.Named("payout.service"),
		trustCfg:    p.TrustCfg,
		referralSvc: p.ReferralSvc,
	}
}

func (s *Service) ComputeSplits(ctx context.Context, referralID snowflake.ID, totalAmount int64) (domain.SplitResult, error) {
	if totalAmount <= 0 {
		return domain.SplitResult{}, domain.ErrInvalidAmount
	}

	ref, err := s.referralSvc.GetByID(ctx, referralID)
	if err != nil {
		return domain.SplitResult{}, err
	}
	if ref.Status != referraldomain.StatusHired {
		return domain.SplitResult{}, domain.ErrReferralNotHired
	}

	chainPath, err := s.referralSvc.Chain(ctx, referralID)
	if err != nil {
		return domain.SplitResult{}, err
	}

	calc := split.Calculator{Decay: s.trustCfg.Current().DecayFactor}
	shares, err := calc.Compute(totalAmount, chainPath)
	if err != nil {
		return domain.SplitResult{}, err
	}

	s.log.Info("computed payout split",
		zap.Int64("referral_id", referralID.Int64()),
		zap.Int64("total_amount", totalAmount),
		zap.Int("participants", len(shares)),
	)

	return domain.SplitResult{
		ReferralID:  referralID,
		TotalAmount: totalAmount,
		Shares:      shares,
	}, nil
}
