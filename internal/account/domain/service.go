package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, account *Account) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Account, error)
	FindByEmail(ctx context.Context, db *gorm.DB, email string) (*Account, error)
	// Parent returns the referring account's ID, or nil at a forest root.
	Parent(ctx context.Context, db *gorm.DB, id snowflake.ID) (*snowflake.ID, error)
	ListForRanking(ctx context.Context, db *gorm.DB) ([]Account, error)
}

type CreateAccountRequest struct {
	Email      string
	Name       string
	Tier       string
	ReferredBy *snowflake.ID
}

type Service interface {
	// Create inserts the account and endows its trust budget by tier in one
	// transaction.
	Create(ctx context.Context, req CreateAccountRequest) (Account, error)
	GetByID(ctx context.Context, id snowflake.ID) (Account, error)
	GetByEmail(ctx context.Context, email string) (Account, error)
}
