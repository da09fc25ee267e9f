package domain

import (
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

type InvitationStatus string

const (
	StatusPending  InvitationStatus = "PENDING"
	StatusAccepted InvitationStatus = "ACCEPTED"
	StatusExpired  InvitationStatus = "EXPIRED"
)

// TrustScoreLedgerScale converts the invitation's 0-10 trust score into
// ledger units (0-100).
const TrustScoreLedgerScale = 10

// Invitation is a directed vouch offer from a member to a recipient who may
// not have an account yet. The sender's trust is reserved at send time; the
// reservation becomes a permanent allocation on accept and is returned on
// expiry.
type Invitation struct {
	ID             snowflake.ID     `gorm:"primaryKey" json:"id"`
	SenderID       snowflake.ID     `gorm:"not null;index" json:"sender_id"`
	RecipientID    *snowflake.ID    `json:"recipient_id,omitempty"`
	RecipientEmail string           `gorm:"not null" json:"recipient_email"`
	TrustScore     int64            `gorm:"not null" json:"trust_score"`
	Code           string           `gorm:"not null;uniqueIndex:ux_invitations_code" json:"code"`
	Status         InvitationStatus `gorm:"type:text;not null" json:"status"`
	CreatedAt      time.Time        `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	RespondedAt    *time.Time       `json:"responded_at,omitempty"`
	ExpiresAt      time.Time        `gorm:"not null" json:"expires_at"`
}

// TableName sets the database table name.
func (Invitation) TableName() string { return "invitations" }

// LedgerAmount is the reservation this invitation holds in ledger units.
func (i Invitation) LedgerAmount() int64 {
	return i.TrustScore * TrustScoreLedgerScale
}

var (
	ErrInvalidTrustScore = errors.New("invalid_trust_score")
	ErrInvalidRecipient  = errors.New("invalid_recipient")
	ErrNotFound          = errors.New("invitation_not_found")
	ErrNotPending        = errors.New("invitation_not_pending")
	ErrSelfInvitation    = errors.New("self_invitation")
	ErrRateLimited       = errors.New("invitation_rate_limited")
)
