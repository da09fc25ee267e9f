package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	accountdomain "github.com/vouchnet/vouchnet/internal/account/domain"
	"github.com/vouchnet/vouchnet/internal/clock"
	"github.com/vouchnet/vouchnet/internal/config"
	"github.com/vouchnet/vouchnet/internal/invitation/domain"
	obsmetrics "github.com/vouchnet/vouchnet/internal/observability/metrics"
	"github.com/vouchnet/vouchnet/internal/ratelimit"
	relationshipdomain "github.com/vouchnet/vouchnet/internal/relationship/domain"
	trustledgerdomain "github.com/vouchnet/vouchnet/internal/trustledger/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
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
	LedgerRepo  trustledgerdomain.Repository
	EdgeRepo    relationshipdomain.Repository
	SendLimiter *ratelimit.InviteSendLimiter `optional:"true"`
	ObsMetrics  *obsmetrics.Metrics          `optional:"true"`
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	clock       clock.Clock
	trustCfg    *config.TrustConfigHolder
	accountRepo accountdomain.Repository
	ledgerRepo  trustledgerdomain.Repository
	edgeRepo    relationshipdomain.Repository
	sendLimiter *ratelimit.InviteSendLimiter
	obsMetrics  *obsmetrics.Metrics
}

func NewService(p Params) domain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("invitation.service"),
		genID:       p.GenID,
		clock:       p.Clock,
		trustCfg:    p.TrustCfg,
		accountRepo: p.AccountRepo,
		ledgerRepo:  p.LedgerRepo,
		edgeRepo:    p.EdgeRepo,
		sendLimiter: p.SendLimiter,
		obsMetrics:  p.ObsMetrics,
	}
}

func (s *Service) Send(ctx context.Context, req domain.SendRequest) (domain.Invitation, error) {
	if req.TrustScore < 1 || req.TrustScore > 10 {
		return domain.Invitation{}, domain.ErrInvalidTrustScore
	}
	email := strings.ToLower(strings.TrimSpace(req.RecipientEmail))
	if email == "" || !strings.Contains(email, "@") {
		return domain.Invitation{}, domain.ErrInvalidRecipient
	}
	if req.SenderID == 0 {
		return domain.Invitation{}, accountdomain.ErrNotFound
	}

	if allowed, err := s.sendLimiter.AllowSend(ctx, req.SenderID); err != nil {
		s.log.Warn("invite send limiter unavailable, allowing send", zap.Error(err))
	} else if !allowed {
		return domain.Invitation{}, domain.ErrRateLimited
	}

	now := s.clock.Now()
	invitation := domain.Invitation{
		ID:             s.genID.Generate(),
		SenderID:       req.SenderID,
		RecipientEmail: email,
		TrustScore:     req.TrustScore,
		Code:           uuid.NewString(),
		Status:         domain.StatusPending,
		CreatedAt:      now,
		ExpiresAt:      now.Add(time.Duration(s.trustCfg.Current().InvitationTTLHours) * time.Hour),
	}
	amount := invitation.LedgerAmount()

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		sender, err := s.accountRepo.FindByID(ctx, tx, req.SenderID)
		if err != nil {
			return err
		}
		if sender == nil {
			return accountdomain.ErrNotFound
		}
		if strings.EqualFold(sender.Email, email) {
			return domain.ErrSelfInvitation
		}

		// Reservation happens at send time; accept finalizes it without a
		// second ledger mutation, expiry reverses it.
		if err := s.ledgerRepo.Reserve(ctx, tx, req.SenderID, amount); err != nil {
			return err
		}

		recipient, err := s.accountRepo.FindByEmail(ctx, tx, email)
		if err != nil {
			return err
		}
		if recipient != nil {
			invitation.RecipientID = &recipient.ID
			// Edge creation for unbound emails is deferred to accept time.
			if err := s.edgeRepo.UpsertPending(ctx, tx, s.genID.Generate(), req.SenderID, recipient.ID); err != nil {
				return err
			}
		}

		return s.insert(ctx, tx, &invitation)
	})
	if err != nil {
		s.obsMetrics.RecordInvitation("send_failed")
		return domain.Invitation{}, err
	}

	s.obsMetrics.RecordInvitation("sent")
	s.log.Info("invitation sent",
		zap.String("invitation_id", invitation.ID.String()),
		zap.String("sender_id", invitation.SenderID.String()),
		zap.Int64("ledger_amount", amount),
	)
	return invitation, nil
}

func (s *Service) Accept(ctx context.Context, req domain.AcceptRequest) (domain.AcceptResult, error) {
	code := strings.TrimSpace(req.Code)
	if code == "" {
		return domain.AcceptResult{}, domain.ErrNotFound
	}

	var result domain.AcceptResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		invitation, err := s.findByCode(ctx, tx, code)
		if err != nil {
			return err
		}
		if invitation == nil {
			return domain.ErrNotFound
		}
		if invitation.Status != domain.StatusPending {
			return domain.ErrNotPending
		}

		now := s.clock.Now()
		if now.After(invitation.ExpiresAt) {
			// Lapsed but not yet swept; expire it here rather than accept.
			if err := s.expireOne(ctx, tx, invitation, now); err != nil {
				return err
			}
			return domain.ErrNotPending
		}

		// Claim the invitation first; a concurrent accept of the same code
		// loses the guarded update and unwinds.
		claimed, err := s.markAccepted(ctx, tx, invitation.ID, now)
		if err != nil {
			return err
		}
		if !claimed {
			return domain.ErrNotPending
		}
		invitation.Status = domain.StatusAccepted
		invitation.RespondedAt = &now

		recipient, created, err := s.resolveRecipient(ctx, tx, invitation, req.Name, now)
		if err != nil {
			return err
		}
		if invitation.RecipientID == nil {
			invitation.RecipientID = &recipient.ID
			if err := s.bindRecipient(ctx, tx, invitation.ID, recipient.ID); err != nil {
				return err
			}
		}

		if err := s.edgeRepo.UpsertPending(ctx, tx, s.genID.Generate(), invitation.SenderID, recipient.ID); err != nil {
			return err
		}
		confirmed, err := s.edgeRepo.Confirm(ctx, tx, invitation.SenderID, recipient.ID, invitation.LedgerAmount())
		if err != nil {
			return err
		}
		if confirmed {
			edge, err := s.edgeRepo.FindPair(ctx, tx, invitation.SenderID, recipient.ID)
			if err != nil {
				return err
			}
			if err := s.edgeRepo.AppendJournal(ctx, tx, s.genID.Generate(), "edge_confirmed", edge.ID); err != nil {
				return err
			}
		}

		// The reservation made at send time is the permanent allocation; no
		// further ledger mutation here.

		result = domain.AcceptResult{
			Invitation:     *invitation,
			Recipient:      *recipient,
			AccountCreated: created,
		}
		return nil
	})
	if err != nil {
		return domain.AcceptResult{}, err
	}

	s.obsMetrics.RecordInvitation("accepted")
	s.log.Info("invitation accepted",
		zap.String("invitation_id", result.Invitation.ID.String()),
		zap.String("recipient_id", result.Recipient.ID.String()),
		zap.Bool("account_created", result.AccountCreated),
	)
	return result, nil
}

func (s *Service) ExpireDue(ctx context.Context) (int, error) {
	now := s.clock.Now()
	var due []domain.Invitation
	err := s.db.WithContext(ctx).Raw(
		`SELECT id, sender_id, recipient_id, recipient_email, trust_score, code, status, created_at, responded_at, expires_at
		 FROM invitations
		 WHERE status = ? AND expires_at <= ?
		 ORDER BY expires_at ASC
		 LIMIT 100`,
		domain.StatusPending,
		now,
	).Scan(&due).Error
	if err != nil {
		return 0, err
	}

	expired := 0
	for i := range due {
		invitation := due[i]
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return s.expireOne(ctx, tx, &invitation, now)
		})
		if err != nil {
			if err == domain.ErrNotPending {
				continue
			}
			return expired, err
		}
		expired++
		s.obsMetrics.RecordInvitation("expired")
	}
	return expired, nil
}

func (s *Service) GetByCode(ctx context.Context, code string) (domain.Invitation, error) {
	invitation, err := s.findByCode(ctx, s.db, strings.TrimSpace(code))
	if err != nil {
		return domain.Invitation{}, err
	}
	if invitation == nil {
		return domain.Invitation{}, domain.ErrNotFound
	}
	return *invitation, nil
}

// expireOne claims the invitation as EXPIRED and returns the reserved trust.
// The PENDING edge, if any, is left in place for audit; only CONFIRMED edges
// feed propagation so it carries no trust weight.
func (s *Service) expireOne(ctx context.Context, tx *gorm.DB, invitation *domain.Invitation, now time.Time) error {
	result := tx.WithContext(ctx).Exec(
		`UPDATE invitations SET status = ?, responded_at = ? WHERE id = ? AND status = ?`,
		domain.StatusExpired,
		now,
		invitation.ID,
		domain.StatusPending,
	)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotPending
	}
	return s.ledgerRepo.Release(ctx, tx, invitation.SenderID, invitation.LedgerAmount())
}

func (s *Service) resolveRecipient(ctx context.Context, tx *gorm.DB, invitation *domain.Invitation, name string, now time.Time) (*accountdomain.Account, bool, error) {
	if invitation.RecipientID != nil {
		recipient, err := s.accountRepo.FindByID(ctx, tx, *invitation.RecipientID)
		if err != nil {
			return nil, false, err
		}
		if recipient == nil {
			return nil, false, accountdomain.ErrNotFound
		}
		return recipient, false, nil
	}

	recipient, err := s.accountRepo.FindByEmail(ctx, tx, invitation.RecipientEmail)
	if err != nil {
		return nil, false, err
	}
	if recipient != nil {
		return recipient, false, nil
	}

	created := &accountdomain.Account{
		ID:         s.genID.Generate(),
		Email:      invitation.RecipientEmail,
		Name:       strings.TrimSpace(name),
		Tier:       accountdomain.TierStandard,
		ReferredBy: &invitation.SenderID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.accountRepo.Insert(ctx, tx, created); err != nil {
		return nil, false, err
	}
	grant := s.trustCfg.Current().GrantForTier(created.Tier)
	if err := s.ledgerRepo.Create(ctx, tx, created.ID, grant); err != nil {
		return nil, false, err
	}
	return created, true, nil
}

func (s *Service) insert(ctx context.Context, tx *gorm.DB, invitation *domain.Invitation) error {
	return tx.WithContext(ctx).Exec(
		`INSERT INTO invitations (id, sender_id, recipient_id, recipient_email, trust_score, code, status, created_at, responded_at, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		invitation.ID,
		invitation.SenderID,
		invitation.RecipientID,
		invitation.RecipientEmail,
		invitation.TrustScore,
		invitation.Code,
		invitation.Status,
		invitation.CreatedAt,
		invitation.RespondedAt,
		invitation.ExpiresAt,
	).Error
}

func (s *Service) findByCode(ctx context.Context, tx *gorm.DB, code string) (*domain.Invitation, error) {
	var invitation domain.Invitation
	err := tx.WithContext(ctx).Raw(
		`SELECT id, sender_id, recipient_id, recipient_email, trust_score, code, status, created_at, responded_at, expires_at
		 FROM invitations WHERE code = ?`,
		code,
	).Scan(&invitation).Error
	if err != nil {
		return nil, err
	}
	if invitation.ID == 0 {
		return nil, nil
	}
	return &invitation, nil
}

func (s *Service) markAccepted(ctx context.Context, tx *gorm.DB, id snowflake.ID, now time.Time) (bool, error) {
	result := tx.WithContext(ctx).Exec(
		`UPDATE invitations SET status = ?, responded_at = ? WHERE id = ? AND status = ?`,
		domain.StatusAccepted,
		now,
		id,
		domain.StatusPending,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (s *Service) bindRecipient(ctx context.Context, tx *gorm.DB, id, recipientID snowflake.ID) error {
	return tx.WithContext(ctx).Exec(
		`UPDATE invitations SET recipient_id = ? WHERE id = ?`,
		recipientID,
		id,
	).Error
}
