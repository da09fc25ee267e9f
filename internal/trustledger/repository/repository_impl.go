package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/vouchnet/vouchnet/internal/trustledger/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Create(ctx context.Context, db *gorm.DB, accountID snowflake.ID, initialGrant int64) error {
	if initialGrant < 0 {
		return domain.ErrInvalidAmount
	}
	now := time.Now().UTC()
	return db.WithContext(ctx).Exec(
		`INSERT INTO trust_accounts (account_id, available_trust, allocated_trust, total_granted, created_at, updated_at)
		 VALUES (?, ?, 0, ?, ?, ?)`,
		accountID,
		initialGrant,
		initialGrant,
		now,
		now,
	).Error
}

func (r *repo) Grant(ctx context.Context, db *gorm.DB, accountID snowflake.ID, amount int64) error {
	result := db.WithContext(ctx).Exec(
		`UPDATE trust_accounts
		 SET available_trust = available_trust + ?,
		     total_granted = total_granted + ?,
		     updated_at = ?
		 WHERE account_id = ?`,
		amount,
		amount,
		time.Now().UTC(),
		accountID,
	)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrAccountNotFound
	}
	return nil
}

// Reserve moves amount from available to allocated. The balance check and the
// move happen in one guarded statement so concurrent reservations cannot both
// pass a stale available-trust read.
func (r *repo) Reserve(ctx context.Context, db *gorm.DB, accountID snowflake.ID, amount int64) error {
	result := db.WithContext(ctx).Exec(
		`UPDATE trust_accounts
		 SET available_trust = available_trust - ?,
		     allocated_trust = allocated_trust + ?,
		     updated_at = ?
		 WHERE account_id = ? AND available_trust >= ?`,
		amount,
		amount,
		time.Now().UTC(),
		accountID,
		amount,
	)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		account, err := r.Find(ctx, db, accountID)
		if err != nil {
			return err
		}
		if account == nil {
			return domain.ErrAccountNotFound
		}
		return domain.ErrInsufficientTrust
	}
	return nil
}

// Release reverses a reservation. Driving allocated_trust negative means the
// reservation being released was never made; that is corruption, not a user
// error.
func (r *repo) Release(ctx context.Context, db *gorm.DB, accountID snowflake.ID, amount int64) error {
	result := db.WithContext(ctx).Exec(
		`UPDATE trust_accounts
		 SET available_trust = available_trust + ?,
		     allocated_trust = allocated_trust - ?,
		     updated_at = ?
		 WHERE account_id = ? AND allocated_trust >= ?`,
		amount,
		amount,
		time.Now().UTC(),
		accountID,
		amount,
	)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		account, err := r.Find(ctx, db, accountID)
		if err != nil {
			return err
		}
		if account == nil {
			return domain.ErrAccountNotFound
		}
		return domain.ErrInvariantViolation
	}
	return nil
}

func (r *repo) Find(ctx context.Context, db *gorm.DB, accountID snowflake.ID) (*domain.TrustAccount, error) {
	var account domain.TrustAccount
	err := db.WithContext(ctx).Raw(
		`SELECT account_id, available_trust, allocated_trust, total_granted, created_at, updated_at
		 FROM trust_accounts WHERE account_id = ?`,
		accountID,
	).Scan(&account).Error
	if err != nil {
		return nil, err
	}
	if account.AccountID == 0 {
		return nil, nil
	}
	return &account, nil
}
