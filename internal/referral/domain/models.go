package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type ReferralStatus string

const (
	StatusPending      ReferralStatus = "PENDING"
	StatusScreening    ReferralStatus = "SCREENING"
	StatusInterviewing ReferralStatus = "INTERVIEWING"
	StatusHired        ReferralStatus = "HIRED"
	StatusRejected     ReferralStatus = "REJECTED"
)

var statusOrder = map[ReferralStatus]int{
	StatusPending:      0,
	StatusScreening:    1,
	StatusInterviewing: 2,
	StatusHired:        3,
}

// CanTransition reports whether a referral may move from one status to
// another: strictly forward through the pipeline, with REJECTED terminal from
// any state except HIRED.
func CanTransition(from, to ReferralStatus) bool {
	if from == to {
		return false
	}
	if to == StatusRejected {
		return from != StatusHired && from != StatusRejected
	}
	fromOrder, ok := statusOrder[from]
	if !ok {
		return false
	}
	toOrder, ok := statusOrder[to]
	if !ok {
		return false
	}
	return toOrder > fromOrder
}

// Referral records one candidate introduced into one job opening. ChainPath
// is the root-first list of referrer account IDs, fixed at creation and never
// mutated afterwards.
type Referral struct {
	ID             snowflake.ID   `gorm:"primaryKey" json:"id"`
	JobID          string         `gorm:"not null;uniqueIndex:ux_referrals_job_candidate,priority:1" json:"job_id"`
	CandidateEmail string         `gorm:"not null;uniqueIndex:ux_referrals_job_candidate,priority:2" json:"candidate_email"`
	Status         ReferralStatus `gorm:"type:text;not null" json:"status"`
	ReferrerNode   snowflake.ID   `gorm:"not null" json:"referrer_node"`
	ChainPath      datatypes.JSON `gorm:"not null" json:"chain_path"`
	ChainDepth     int            `gorm:"not null" json:"chain_depth"`
	CreatedAt      time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt      time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Referral) TableName() string { return "referrals" }

type SubmitRequest struct {
	JobID          string
	CandidateEmail string
	ReferrerID     snowflake.ID
}

type Service interface {
	// Submit materializes the referral chain from the referrer's parentage
	// and persists the referral. The chain is immutable after this call.
	Submit(ctx context.Context, req SubmitRequest) (Referral, error)
	UpdateStatus(ctx context.Context, id snowflake.ID, to ReferralStatus) (Referral, error)
	GetByID(ctx context.Context, id snowflake.ID) (Referral, error)
	// Chain decodes the stored root-first chain path.
	Chain(ctx context.Context, id snowflake.ID) ([]snowflake.ID, error)
}

var (
	ErrCyclicChain             = errors.New("cyclic_referral_chain")
	ErrChainTooDeep            = errors.New("referral_chain_too_deep")
	ErrInvalidRequest          = errors.New("invalid_referral_request")
	ErrNotFound                = errors.New("referral_not_found")
	ErrInvalidStatusTransition = errors.New("invalid_referral_status_transition")
	ErrDuplicateReferral       = errors.New("duplicate_referral")
)
