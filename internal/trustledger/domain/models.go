package domain

import (
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

// TrustAccount is the per-user trust budget. AvailableTrust is spendable,
// AllocatedTrust is committed to outstanding or confirmed vouches. The sum of
// the two always equals TotalGranted; every operation moves value between the
// columns in a single guarded statement.
type TrustAccount struct {
	AccountID      snowflake.ID `gorm:"primaryKey;column:account_id" json:"account_id"`
	AvailableTrust int64        `gorm:"not null" json:"available_trust"`
	AllocatedTrust int64        `gorm:"not null" json:"allocated_trust"`
	TotalGranted   int64        `gorm:"not null" json:"total_granted"`
	CreatedAt      time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt      time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (TrustAccount) TableName() string { return "trust_accounts" }

// Balanced reports whether the conservation law holds for the row.
func (a TrustAccount) Balanced() bool {
	return a.AvailableTrust >= 0 &&
		a.AllocatedTrust >= 0 &&
		a.AvailableTrust+a.AllocatedTrust == a.TotalGranted
}

var (
	ErrInvalidAmount      = errors.New("invalid_amount")
	ErrInsufficientTrust  = errors.New("insufficient_trust")
	ErrInvariantViolation = errors.New("trust_invariant_violation")
	ErrAccountNotFound    = errors.New("trust_account_not_found")
)
