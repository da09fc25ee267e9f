package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	accountdomain "github.com/vouchnet/vouchnet/internal/account/domain"
)

type SendRequest struct {
	SenderID       snowflake.ID
	RecipientEmail string
	// TrustScore is the committed vouch strength in 0-10 units.
	TrustScore int64
}

type AcceptRequest struct {
	Code string
	// Name is used when the recipient account has to be created.
	Name string
}

type AcceptResult struct {
	Invitation Invitation
	Recipient  accountdomain.Account
	// AccountCreated is true when accepting bound a brand-new account.
	AccountCreated bool
}

type Service interface {
	Send(ctx context.Context, req SendRequest) (Invitation, error)
	Accept(ctx context.Context, req AcceptRequest) (AcceptResult, error)
	// ExpireDue flips every PENDING invitation past its deadline to EXPIRED
	// and returns the reserved trust. Returns how many were expired.
	ExpireDue(ctx context.Context) (int, error)
	GetByCode(ctx context.Context, code string) (Invitation, error)
}
