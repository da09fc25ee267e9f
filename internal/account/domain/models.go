package domain

import (
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

// Account is a network member. ReferredBy points at the member who vouched
// the account in; the referral forest is the transitive closure of this field.
type Account struct {
	ID         snowflake.ID  `gorm:"primaryKey" json:"id"`
	Email      string        `gorm:"not null;uniqueIndex:ux_accounts_email" json:"email"`
	Name       string        `gorm:"not null" json:"name"`
	Tier       string        `gorm:"not null" json:"tier"`
	ReferredBy *snowflake.ID `gorm:"index" json:"referred_by,omitempty"`
	CreatedAt  time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt  time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Account) TableName() string { return "accounts" }

const (
	TierFounding  = "founding"
	TierStandard  = "standard"
	TierProbation = "probation"
)

var (
	ErrInvalidEmail = errors.New("invalid_email")
	ErrInvalidTier  = errors.New("invalid_tier")
	ErrNotFound     = errors.New("account_not_found")
	ErrEmailExists  = errors.New("account_email_exists")
)
