package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

// Share is one participant's cut of a hiring payout. Depth counts hops from
// the hire: the direct referrer has depth 0 and the largest amount.
type Share struct {
	AccountID snowflake.ID `json:"account_id"`
	Depth     int          `json:"depth"`
	Amount    int64        `json:"amount"`
}

type SplitResult struct {
	ReferralID  snowflake.ID `json:"referral_id"`
	TotalAmount int64        `json:"total_amount"`
	// Shares are ordered root-first, mirroring the chain path.
	Shares []Share `json:"shares"`
}

type Service interface {
	// ComputeSplits divides a hiring payout across the referral's chain.
	// Disbursing the money is the caller's concern.
	ComputeSplits(ctx context.Context, referralID snowflake.ID, totalAmount int64) (SplitResult, error)
}

var (
	ErrEmptyChain       = errors.New("empty_chain")
	ErrInvalidAmount    = errors.New("invalid_amount")
	ErrReferralNotHired = errors.New("referral_not_hired")
)
