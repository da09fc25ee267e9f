package repository

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/vouchnet/vouchnet/internal/account/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, account *domain.Account) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO accounts (id, email, name, tier, referred_by, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		account.ID,
		account.Email,
		account.Name,
		account.Tier,
		account.ReferredBy,
		account.CreatedAt,
		account.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Account, error) {
	var account domain.Account
	err := db.WithContext(ctx).Raw(
		`SELECT id, email, name, tier, referred_by, created_at, updated_at
		 FROM accounts WHERE id = ?`,
		id,
	).Scan(&account).Error
	if err != nil {
		return nil, err
	}
	if account.ID == 0 {
		return nil, nil
	}
	return &account, nil
}

func (r *repo) FindByEmail(ctx context.Context, db *gorm.DB, email string) (*domain.Account, error) {
	var account domain.Account
	err := db.WithContext(ctx).Raw(
		`SELECT id, email, name, tier, referred_by, created_at, updated_at
		 FROM accounts WHERE email = ?`,
		strings.ToLower(strings.TrimSpace(email)),
	).Scan(&account).Error
	if err != nil {
		return nil, err
	}
	if account.ID == 0 {
		return nil, nil
	}
	return &account, nil
}

func (r *repo) Parent(ctx context.Context, db *gorm.DB, id snowflake.ID) (*snowflake.ID, error) {
	account, err := r.FindByID(ctx, db, id)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, domain.ErrNotFound
	}
	return account.ReferredBy, nil
}

func (r *repo) ListForRanking(ctx context.Context, db *gorm.DB) ([]domain.Account, error) {
	var accounts []domain.Account
	err := db.WithContext(ctx).Raw(
		`SELECT id, email, name, tier, referred_by, created_at, updated_at
		 FROM accounts ORDER BY created_at ASC, id ASC`,
	).Scan(&accounts).Error
	if err != nil {
		return nil, err
	}
	return accounts, nil
}
