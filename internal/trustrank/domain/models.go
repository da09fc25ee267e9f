package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

// ComputedTrustScore is one account's entry in a ranking snapshot. Rows are
// written only by the propagation run and are immutable afterwards; readers
// always see a whole snapshot via the ranking pointer.
type ComputedTrustScore struct {
	ID         snowflake.ID `gorm:"primaryKey" json:"id"`
	SnapshotID snowflake.ID `gorm:"not null;index" json:"snapshot_id"`
	AccountID  snowflake.ID `gorm:"not null" json:"account_id"`
	Rank       int          `gorm:"not null" json:"rank"`
	// TrustScore is the raw normalized score; the full snapshot sums to 1.
	TrustScore float64 `gorm:"not null" json:"trust_score"`
	// DisplayScore rescales the snapshot so the top account reads 100.
	DisplayScore float64   `gorm:"not null" json:"display_score"`
	CreatedAt    time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (ComputedTrustScore) TableName() string { return "computed_trust_scores" }

// TrustComputationLog is the append-only audit row for one propagation run.
type TrustComputationLog struct {
	ID               snowflake.ID  `gorm:"primaryKey" json:"id"`
	SnapshotID       *snowflake.ID `json:"snapshot_id,omitempty"`
	Iterations       int           `gorm:"not null" json:"iterations"`
	Converged        bool          `gorm:"not null" json:"converged"`
	TriggeredBy      string        `gorm:"not null" json:"triggered_by"`
	NodeCount        int           `gorm:"not null" json:"node_count"`
	EdgeCount        int           `gorm:"not null" json:"edge_count"`
	JournalWatermark int64         `gorm:"not null" json:"journal_watermark"`
	CreatedAt        time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (TrustComputationLog) TableName() string { return "trust_computation_logs" }

// Recognized triggeredBy values.
const (
	TriggerManual             = "manual"
	TriggerScheduled          = "scheduled"
	TriggerRelationshipChange = "relationship-change"
)

type RunResult struct {
	SnapshotID snowflake.ID
	Iterations int
	Converged  bool
	NodeCount  int
	EdgeCount  int
}

type Service interface {
	// Recompute runs the propagation over the current confirmed graph and
	// atomically publishes a fresh snapshot. Non-convergence at the iteration
	// cap is not an error; only a data-integrity fault aborts the run.
	Recompute(ctx context.Context, triggeredBy string) (RunResult, error)
	LatestRanking(ctx context.Context) ([]ComputedTrustScore, error)
	History(ctx context.Context, limit int) ([]TrustComputationLog, error)
	// LastWatermark is the graph journal position of the newest published
	// run; the scheduler compares it against the live journal to decide
	// whether a recompute is due.
	LastWatermark(ctx context.Context) (int64, error)
}

var (
	ErrComputationAborted = errors.New("trust_computation_aborted")
	ErrNoSnapshot         = errors.New("no_ranking_snapshot")
)
