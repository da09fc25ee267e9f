package service

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	accountdomain "github.com/vouchnet/vouchnet/internal/account/domain"
	"github.com/vouchnet/vouchnet/internal/clock"
	"github.com/vouchnet/vouchnet/internal/config"
	obsmetrics "github.com/vouchnet/vouchnet/internal/observability/metrics"
	relationshipdomain "github.com/vouchnet/vouchnet/internal/relationship/domain"
	"github.com/vouchnet/vouchnet/internal/trustrank/domain"
	"github.com/vouchnet/vouchnet/internal/trustrank/engine"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Snapshots older than the published one are retained for a short audit
// window, then pruned by the next run.
const keepSnapshots = 5

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Clock       clock.Clock
	TrustCfg    *config.TrustConfigHolder
	AccountRepo accountdomain.Repository
	EdgeRepo    relationshipdomain.Repository
	ObsMetrics  *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	clock       clock.Clock
	trustCfg    *config.TrustConfigHolder
	accountRepo accountdomain.Repository
	edgeRepo    relationshipdomain.Repository
	obsMetrics  *obsmetrics.Metrics
}

func NewService(p Params) domain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("trustrank.service"),
		genID:       p.GenID,
		clock:       p.Clock,
		trustCfg:    p.TrustCfg,
		accountRepo: p.AccountRepo,
		edgeRepo:    p.EdgeRepo,
		obsMetrics:  p.ObsMetrics,
	}
}

func (s *Service) Recompute(ctx context.Context, triggeredBy string) (domain.RunResult, error) {
	triggeredBy = strings.TrimSpace(triggeredBy)
	if triggeredBy == "" {
		triggeredBy = domain.TriggerManual
	}
	started := s.clock.Now()
	cfg := s.trustCfg.Current()

	// The input snapshot is read inside a single transaction so accounts,
	// edges, and the journal watermark all describe the same graph state. The
	// transaction closes before the iteration loop starts; the batch never
	// holds it across the run.
	var (
		accounts  []accountdomain.Account
		confirmed []relationshipdomain.Edge
		watermark int64
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if accounts, err = s.accountRepo.ListForRanking(ctx, tx); err != nil {
			return err
		}
		if confirmed, err = s.edgeRepo.ListConfirmed(ctx, tx); err != nil {
			return err
		}
		watermark, err = s.edgeRepo.JournalWatermark(ctx, tx)
		return err
	})
	if err != nil {
		return domain.RunResult{}, err
	}

	nodes := make([]engine.Node, len(accounts))
	for i, account := range accounts {
		nodes[i] = engine.Node{ID: account.ID, CreatedAt: account.CreatedAt}
	}
	edges := make([]engine.Edge, len(confirmed))
	for i, edge := range confirmed {
		edges[i] = engine.Edge{A: edge.UserLow, B: edge.UserHigh, Weight: float64(edge.Weight)}
	}

	result, err := engine.Run(ctx, nodes, edges, engine.Config{
		Damping:   cfg.DampingFactor,
		Tolerance: cfg.Tolerance,
		MaxIters:  cfg.MaxIterations,
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return domain.RunResult{}, err
		}
		// Integrity fault: record the aborted run, leave the previous
		// snapshot untouched.
		s.log.Error("trust propagation aborted",
			zap.Error(err),
			zap.String("triggered_by", triggeredBy),
		)
		s.obsMetrics.RecordPropagationRun("aborted", 0, s.clock.Now().Sub(started))
		if logErr := s.appendLog(ctx, s.db, domain.TrustComputationLog{
			ID:               s.genID.Generate(),
			Iterations:       0,
			Converged:        false,
			TriggeredBy:      triggeredBy,
			NodeCount:        len(nodes),
			EdgeCount:        len(edges),
			JournalWatermark: watermark,
			CreatedAt:        s.clock.Now(),
		}); logErr != nil {
			s.log.Error("failed to record aborted run", zap.Error(logErr))
		}
		return domain.RunResult{}, domain.ErrComputationAborted
	}

	snapshotID := s.genID.Generate()
	maxScore := 0.0
	for _, row := range result.Ranked {
		if row.Score > maxScore {
			maxScore = row.Score
		}
	}

	now := s.clock.Now()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, row := range result.Ranked {
			display := 0.0
			if maxScore > 0 {
				display = row.Score / maxScore * 100
			}
			if err := tx.WithContext(ctx).Exec(
				`INSERT INTO computed_trust_scores (id, snapshot_id, account_id, rank, trust_score, display_score, created_at)
				 VALUES (?, ?, ?, ?, ?, ?, ?)`,
				s.genID.Generate(),
				snapshotID,
				row.ID,
				row.Rank,
				row.Score,
				display,
				now,
			).Error; err != nil {
				return err
			}
		}

		// Publishing is a single pointer swap; readers either see the old
		// snapshot or the new one, never a mix.
		if err := tx.WithContext(ctx).Exec(
			`INSERT INTO trust_ranking_pointer (id, snapshot_id, updated_at) VALUES (1, ?, ?)
			 ON CONFLICT (id) DO UPDATE SET snapshot_id = excluded.snapshot_id, updated_at = excluded.updated_at`,
			snapshotID,
			now,
		).Error; err != nil {
			return err
		}

		if err := s.appendLog(ctx, tx, domain.TrustComputationLog{
			ID:               s.genID.Generate(),
			SnapshotID:       &snapshotID,
			Iterations:       result.Iterations,
			Converged:        result.Converged,
			TriggeredBy:      triggeredBy,
			NodeCount:        len(nodes),
			EdgeCount:        len(edges),
			JournalWatermark: watermark,
			CreatedAt:        now,
		}); err != nil {
			return err
		}

		return s.pruneSnapshots(ctx, tx)
	})
	if err != nil {
		return domain.RunResult{}, err
	}

	outcome := "converged"
	if !result.Converged {
		outcome = "iteration_cap"
	}
	s.obsMetrics.RecordPropagationRun(outcome, result.Iterations, s.clock.Now().Sub(started))
	s.log.Info("trust propagation published",
		zap.String("snapshot_id", snapshotID.String()),
		zap.Int("iterations", result.Iterations),
		zap.Bool("converged", result.Converged),
		zap.Int("nodes", len(nodes)),
		zap.Int("edges", len(edges)),
		zap.String("triggered_by", triggeredBy),
	)

	return domain.RunResult{
		SnapshotID: snapshotID,
		Iterations: result.Iterations,
		Converged:  result.Converged,
		NodeCount:  len(nodes),
		EdgeCount:  len(edges),
	}, nil
}

func (s *Service) LatestRanking(ctx context.Context) ([]domain.ComputedTrustScore, error) {
	var scores []domain.ComputedTrustScore
	err := s.db.WithContext(ctx).Raw(
		`SELECT c.id, c.snapshot_id, c.account_id, c.rank, c.trust_score, c.display_score, c.created_at
		 FROM computed_trust_scores c
		 JOIN trust_ranking_pointer p ON p.id = 1 AND p.snapshot_id = c.snapshot_id
		 ORDER BY c.rank ASC`,
	).Scan(&scores).Error
	if err != nil {
		return nil, err
	}
	if len(scores) == 0 {
		return nil, domain.ErrNoSnapshot
	}
	return scores, nil
}

func (s *Service) History(ctx context.Context, limit int) ([]domain.TrustComputationLog, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	var logs []domain.TrustComputationLog
	err := s.db.WithContext(ctx).Raw(
		`SELECT id, snapshot_id, iterations, converged, triggered_by, node_count, edge_count, journal_watermark, created_at
		 FROM trust_computation_logs
		 ORDER BY created_at DESC, id DESC
		 LIMIT ?`,
		limit,
	).Scan(&logs).Error
	if err != nil {
		return nil, err
	}
	return logs, nil
}

// LastWatermark returns the journal watermark of the newest published run, so
// the scheduler can tell whether the graph changed since.
func (s *Service) LastWatermark(ctx context.Context) (int64, error) {
	var watermark int64
	err := s.db.WithContext(ctx).Raw(
		`SELECT COALESCE(MAX(journal_watermark), 0) FROM trust_computation_logs WHERE snapshot_id IS NOT NULL`,
	).Scan(&watermark).Error
	if err != nil {
		return 0, err
	}
	return watermark, nil
}

func (s *Service) appendLog(ctx context.Context, tx *gorm.DB, row domain.TrustComputationLog) error {
	return tx.WithContext(ctx).Exec(
		`INSERT INTO trust_computation_logs (id, snapshot_id, iterations, converged, triggered_by, node_count, edge_count, journal_watermark, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		row.ID,
		row.SnapshotID,
		row.Iterations,
		row.Converged,
		row.TriggeredBy,
		row.NodeCount,
		row.EdgeCount,
		row.JournalWatermark,
		row.CreatedAt,
	).Error
}

func (s *Service) pruneSnapshots(ctx context.Context, tx *gorm.DB) error {
	var cutoff snowflake.ID
	err := tx.WithContext(ctx).Raw(
		`SELECT COALESCE(MIN(snapshot_id), 0) FROM (
		   SELECT DISTINCT snapshot_id FROM computed_trust_scores
		   ORDER BY snapshot_id DESC LIMIT ?
		 ) recent`,
		keepSnapshots,
	).Scan(&cutoff).Error
	if err != nil {
		return err
	}
	if cutoff == 0 {
		return nil
	}
	return tx.WithContext(ctx).Exec(
		`DELETE FROM computed_trust_scores WHERE snapshot_id < ?`,
		cutoff,
	).Error
}
