package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/vouchnet/vouchnet/internal/account/domain"
	"github.com/vouchnet/vouchnet/internal/config"
	trustledgerdomain "github.com/vouchnet/vouchnet/internal/trustledger/domain"
	"github.com/vouchnet/vouchnet/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Repo       domain.Repository
	LedgerRepo trustledgerdomain.Repository
	TrustCfg   *config.TrustConfigHolder
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	repo       domain.Repository
	ledgerRepo trustledgerdomain.Repository
	trustCfg   *config.TrustConfigHolder
}

func NewService(p Params) domain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("account.service"),
		genID:      p.GenID,
		repo:       p.Repo,
		ledgerRepo: p.LedgerRepo,
		trustCfg:   p.TrustCfg,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateAccountRequest) (domain.Account, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || !strings.Contains(email, "@") {
		return domain.Account{}, domain.ErrInvalidEmail
	}
	tier := strings.ToLower(strings.TrimSpace(req.Tier))
	if tier == "" {
		tier = domain.TierStandard
	}
	switch tier {
	case domain.TierFounding, domain.TierStandard, domain.TierProbation:
	default:
		return domain.Account{}, domain.ErrInvalidTier
	}

	now := time.Now().UTC()
	account := domain.Account{
		ID:         s.genID.Generate(),
		Email:      email,
		Name:       strings.TrimSpace(req.Name),
		Tier:       tier,
		ReferredBy: req.ReferredBy,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	grant := s.trustCfg.Current().GrantForTier(tier)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.Insert(ctx, tx, &account); err != nil {
			if db.IsDuplicateKeyErr(err) {
				return domain.ErrEmailExists
			}
			return err
		}
		return s.ledgerRepo.Create(ctx, tx, account.ID, grant)
	})
	if err != nil {
		return domain.Account{}, err
	}

	s.log.Info("account created",
		zap.String("account_id", account.ID.String()),
		zap.String("tier", tier),
		zap.Int64("initial_grant", grant),
	)
	return account, nil
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID) (domain.Account, error) {
	account, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.Account{}, err
	}
	if account == nil {
		return domain.Account{}, domain.ErrNotFound
	}
	return *account, nil
}

func (s *Service) GetByEmail(ctx context.Context, email string) (domain.Account, error) {
	account, err := s.repo.FindByEmail(ctx, s.db, email)
	if err != nil {
		return domain.Account{}, err
	}
	if account == nil {
		return domain.Account{}, domain.ErrNotFound
	}
	return *account, nil
}
