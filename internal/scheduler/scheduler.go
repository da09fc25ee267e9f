package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vouchnet/vouchnet/internal/clock"
	invitationdomain "github.com/vouchnet/vouchnet/internal/invitation/domain"
	"github.com/vouchnet/vouchnet/internal/ratelimit"
	relationshipdomain "github.com/vouchnet/vouchnet/internal/relationship/domain"
	trustrankdomain "github.com/vouchnet/vouchnet/internal/trustrank/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var ErrInvalidConfig = errors.New("scheduler dependencies not configured")

type Params struct {
	fx.In

	DB              *gorm.DB
	Log             *zap.Logger
	Clock           clock.Clock
	InvitationSvc   invitationdomain.Service
	RelationshipSvc relationshipdomain.Service
	TrustrankSvc    trustrankdomain.Service
	EdgeRepo        relationshipdomain.Repository
	Locker          *ratelimit.Locker `optional:"true"`
	Config          Config            `optional:"true"`
}

// Scheduler drives the periodic maintenance work: expiring stale
// invitations, repairing the relationship graph, and recomputing trust
// rankings when the graph has drifted past the last published snapshot.
type Scheduler struct {
	db              *gorm.DB
	log             *zap.Logger
	cfg             Config
	clock           clock.Clock
	invitationSvc   invitationdomain.Service
	relationshipSvc relationshipdomain.Service
	trustrankSvc    trustrankdomain.Service
	edgeRepo        relationshipdomain.Repository
	locker          *ratelimit.Locker
}

func New(p Params) (*Scheduler, error) {
	if p.DB == nil || p.Log == nil || p.Clock == nil || p.InvitationSvc == nil || p.RelationshipSvc == nil || p.TrustrankSvc == nil || p.EdgeRepo == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		db:              p.DB,
		log:             p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:             p.Config.withDefaults(),
		clock:           p.Clock,
		invitationSvc:   p.InvitationSvc,
		relationshipSvc: p.RelationshipSvc,
		trustrankSvc:    p.TrustrankSvc,
		edgeRepo:        p.EdgeRepo,
		locker:          p.Locker,
	}, nil
}

func (s *Scheduler) runJob(parent context.Context, name string, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(parent, s.cfg.JobTimeout)
	defer cancel()

	start := s.clock.Now()
	err := fn(ctx)
	elapsed := s.clock.Now().Sub(start)

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			s.log.Warn("job timed out",
				zap.String("job", name),
				zap.Duration("elapsed", elapsed),
				zap.Error(err),
			)
			return nil
		}
		return fmt.Errorf("%s: %w", name, err)
	}

	s.log.Debug("job finished",
		zap.String("job", name),
		zap.Duration("elapsed", elapsed),
	)
	return nil
}

func (s *Scheduler) RunOnce(parent context.Context) error {
	var err error
	err = errors.Join(err, s.runJob(parent, "expire_invitations", s.expireInvitationsJob))
	err = errors.Join(err, s.runJob(parent, "reconcile_edges", s.reconcileEdgesJob))
	err = errors.Join(err, s.runJob(parent, "recompute_trust", s.recomputeTrustJob))
	return err
}

func (s *Scheduler) expireInvitationsJob(ctx context.Context) error {
	expired, err := s.invitationSvc.ExpireDue(ctx)
	if err != nil {
		return err
	}
	if expired > 0 {
		s.log.Info("expired stale invitations", zap.Int("count", expired))
	}
	return nil
}

func (s *Scheduler) reconcileEdgesJob(ctx context.Context) error {
	removed, err := s.relationshipSvc.Reconcile(ctx)
	if err != nil {
		return err
	}
	if removed > 0 {
		s.log.Info("repaired duplicate relationship edges", zap.Int("removed", removed))
	}
	return nil
}

// recomputeTrustJob runs propagation only when the relationship journal has
// advanced past the watermark of the newest published snapshot, so quiet
// periods cost nothing.
func (s *Scheduler) recomputeTrustJob(ctx context.Context) error {
	journal, err := s.edgeRepo.JournalWatermark(ctx, s.db)
	if err != nil {
		return err
	}
	published, err := s.trustrankSvc.LastWatermark(ctx)
	if err != nil {
		return err
	}
	if journal <= published {
		return nil
	}

	result, err := s.trustrankSvc.Recompute(ctx, trustrankdomain.TriggerRelationshipChange)
	if err != nil {
		return err
	}
	s.log.Info("published trust snapshot",
		zap.Int64("journal_watermark", journal),
		zap.Int("iterations", result.Iterations),
		zap.Bool("converged", result.Converged),
		zap.Int("nodes", result.NodeCount),
	)
	return nil
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()

	for {
		s.tick(ctx)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// tick acquires the cross-instance lock when redis is configured; a held
// lock means another instance is already doing this round of work.
func (s *Scheduler) tick(ctx context.Context) {
	if s.locker != nil {
		token, ok, err := s.locker.TryLock(ctx, s.cfg.LockKey, s.cfg.LockTTL)
		if err != nil {
			s.log.Warn("scheduler lock unavailable, running unguarded", zap.Error(err))
		} else if !ok {
			return
		} else {
			defer func() {
				if err := s.locker.Release(ctx, s.cfg.LockKey, token); err != nil {
					s.log.Warn("failed to release scheduler lock", zap.Error(err))
				}
			}()
		}
	}

	if err := s.RunOnce(ctx); err != nil {
		s.log.Warn("scheduler run failed", zap.Error(err))
	}
}
