package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	// UpsertPending creates the PENDING edge for the pair if no edge exists;
	// an existing edge in any status is left untouched.
	UpsertPending(ctx context.Context, db *gorm.DB, edgeID, a, b snowflake.ID) error
	// Confirm transitions the pair's edge to CONFIRMED with the given weight.
	// Already-confirmed edges are a no-op so concurrent accepts stay idempotent.
	Confirm(ctx context.Context, db *gorm.DB, a, b snowflake.ID, weight int64) (bool, error)
	FindPair(ctx context.Context, db *gorm.DB, a, b snowflake.ID) (*Edge, error)
	ListConfirmed(ctx context.Context, db *gorm.DB) ([]Edge, error)
	// ListDuplicatePairs returns every edge belonging to a pair that has more
	// than one row, ordered oldest first within the pair.
	ListDuplicatePairs(ctx context.Context, db *gorm.DB) ([]Edge, error)
	Delete(ctx context.Context, db *gorm.DB, edgeID snowflake.ID) error

	// AppendJournal records a graph mutation for the recompute trigger.
	AppendJournal(ctx context.Context, db *gorm.DB, entryID snowflake.ID, changeType string, edgeID snowflake.ID) error
	JournalWatermark(ctx context.Context, db *gorm.DB) (int64, error)
}

type Service interface {
	Confirmed(ctx context.Context) ([]Edge, error)
	// Reconcile repairs duplicate rows for the same unordered pair, keeping
	// the most recent by creation time. Returns how many rows were removed.
	Reconcile(ctx context.Context) (int, error)
}
