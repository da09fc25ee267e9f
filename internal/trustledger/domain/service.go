package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Repository operates on trust accounts inside a caller-supplied gorm handle
// so multi-table flows (invitation send, accept, expiry) can compose the
// ledger mutation into their own transaction.
type Repository interface {
	Create(ctx context.Context, db *gorm.DB, accountID snowflake.ID, initialGrant int64) error
	Grant(ctx context.Context, db *gorm.DB, accountID snowflake.ID, amount int64) error
	Reserve(ctx context.Context, db *gorm.DB, accountID snowflake.ID, amount int64) error
	Release(ctx context.Context, db *gorm.DB, accountID snowflake.ID, amount int64) error
	Find(ctx context.Context, db *gorm.DB, accountID snowflake.ID) (*TrustAccount, error)
}

// Service is the standalone ledger surface for callers that do not bring
// their own transaction.
type Service interface {
	Grant(ctx context.Context, accountID snowflake.ID, amount int64) error
	Reserve(ctx context.Context, accountID snowflake.ID, amount int64) error
	Release(ctx context.Context, accountID snowflake.ID, amount int64) error
	Get(ctx context.Context, accountID snowflake.ID) (*TrustAccount, error)
}
