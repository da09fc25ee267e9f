package service

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/bwmarrin/snowflake"
	accountdomain "github.com/vouchnet/vouchnet/internal/account/domain"
	"github.com/vouchnet/vouchnet/internal/clock"
	"github.com/vouchnet/vouchnet/internal/config"
	"github.com/vouchnet/vouchnet/internal/referral/chain"
	"github.com/vouchnet/vouchnet/internal/referral/domain"
	"github.com/vouchnet/vouchnet/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Clock       clock.Clock
	TrustCfg    *config.TrustConfigHolder
	AccountRepo accountdomain.Repository
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	clock       clock.Clock
	trustCfg    *config.TrustConfigHolder
	accountRepo accountdomain.Repository
}

func NewService(p Params) domain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("referral.service"),
		genID:       p.GenID,
		clock:       p.Clock,
		trustCfg:    p.TrustCfg,
		accountRepo: p.AccountRepo,
	}
}

// parentLookup adapts the account repository to the chain builder.
type parentLookup struct {
	db   *gorm.DB
	repo accountdomain.Repository
}

func (l parentLookup) Parent(ctx context.Context, id snowflake.ID) (*snowflake.ID, error) {
	return l.repo.Parent(ctx, l.db, id)
}

func (s *Service) Submit(ctx context.Context, req domain.SubmitRequest) (domain.Referral, error) {
	jobID := strings.TrimSpace(req.JobID)
	candidate := strings.ToLower(strings.TrimSpace(req.CandidateEmail))
	if jobID == "" || candidate == "" || !strings.Contains(candidate, "@") || req.ReferrerID == 0 {
		return domain.Referral{}, domain.ErrInvalidRequest
	}

	builder := chain.NewBuilder(parentLookup{db: s.db, repo: s.accountRepo}, s.trustCfg.Current().MaxChainDepth)
	path, err := builder.Build(ctx, req.ReferrerID)
	if err != nil {
		if err == domain.ErrCyclicChain {
			s.log.Error("cyclic referral parentage detected",
				zap.String("referrer_id", req.ReferrerID.String()),
				zap.String("job_id", jobID),
			)
		}
		return domain.Referral{}, err
	}

	encoded, err := json.Marshal(encodeChain(path))
	if err != nil {
		return domain.Referral{}, err
	}

	now := s.clock.Now()
	referral := domain.Referral{
		ID:             s.genID.Generate(),
		JobID:          jobID,
		CandidateEmail: candidate,
		Status:         domain.StatusPending,
		ReferrerNode:   req.ReferrerID,
		ChainPath:      datatypes.JSON(encoded),
		ChainDepth:     len(path),
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	err = s.db.WithContext(ctx).Exec(
		`INSERT INTO referrals (id, job_id, candidate_email, status, referrer_node, chain_path, chain_depth, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		referral.ID,
		referral.JobID,
		referral.CandidateEmail,
		referral.Status,
		referral.ReferrerNode,
		string(referral.ChainPath),
		referral.ChainDepth,
		referral.CreatedAt,
		referral.UpdatedAt,
	).Error
	if err != nil {
		if db.IsDuplicateKeyErr(err) {
			return domain.Referral{}, domain.ErrDuplicateReferral
		}
		return domain.Referral{}, err
	}

	s.log.Info("referral submitted",
		zap.String("referral_id", referral.ID.String()),
		zap.String("job_id", jobID),
		zap.Int("chain_depth", referral.ChainDepth),
	)
	return referral, nil
}

func (s *Service) UpdateStatus(ctx context.Context, id snowflake.ID, to domain.ReferralStatus) (domain.Referral, error) {
	var updated domain.Referral
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		referral, err := s.find(ctx, tx, id)
		if err != nil {
			return err
		}
		if referral == nil {
			return domain.ErrNotFound
		}
		if !domain.CanTransition(referral.Status, to) {
			return domain.ErrInvalidStatusTransition
		}

		now := s.clock.Now()
		// Guard on the old status so concurrent transitions serialize.
		result := tx.WithContext(ctx).Exec(
			`UPDATE referrals SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
			to,
			now,
			id,
			referral.Status,
		)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return domain.ErrInvalidStatusTransition
		}
		referral.Status = to
		referral.UpdatedAt = now
		updated = *referral
		return nil
	})
	if err != nil {
		return domain.Referral{}, err
	}
	return updated, nil
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID) (domain.Referral, error) {
	referral, err := s.find(ctx, s.db, id)
	if err != nil {
		return domain.Referral{}, err
	}
	if referral == nil {
		return domain.Referral{}, domain.ErrNotFound
	}
	return *referral, nil
}

func (s *Service) Chain(ctx context.Context, id snowflake.ID) ([]snowflake.ID, error) {
	referral, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return DecodeChain(referral.ChainPath)
}

// DecodeChain parses a stored chain path back into account IDs.
func DecodeChain(raw datatypes.JSON) ([]snowflake.ID, error) {
	var encoded []int64
	if err := json.Unmarshal(raw, &encoded); err != nil {
		return nil, err
	}
	path := make([]snowflake.ID, len(encoded))
	for i, v := range encoded {
		path[i] = snowflake.ID(v)
	}
	return path, nil
}

func encodeChain(path []snowflake.ID) []int64 {
	encoded := make([]int64, len(path))
	for i, id := range path {
		encoded[i] = id.Int64()
	}
	return encoded
}

func (s *Service) find(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*domain.Referral, error) {
	var referral domain.Referral
	err := tx.WithContext(ctx).Raw(
		`SELECT id, job_id, candidate_email, status, referrer_node, chain_path, chain_depth, created_at, updated_at
		 FROM referrals WHERE id = ?`,
		id,
	).Scan(&referral).Error
	if err != nil {
		return nil, err
	}
	if referral.ID == 0 {
		return nil, nil
	}
	return &referral, nil
}
