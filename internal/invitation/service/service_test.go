package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	accountdomain "github.com/vouchnet/vouchnet/internal/account/domain"
	accountrepository "github.com/vouchnet/vouchnet/internal/account/repository"
	"github.com/vouchnet/vouchnet/internal/clock"
	"github.com/vouchnet/vouchnet/internal/config"
	"github.com/vouchnet/vouchnet/internal/invitation/domain"
	relationshipdomain "github.com/vouchnet/vouchnet/internal/relationship/domain"
	relationshiprepository "github.com/vouchnet/vouchnet/internal/relationship/repository"
	trustledgerdomain "github.com/vouchnet/vouchnet/internal/trustledger/domain"
	trustledgerrepository "github.com/vouchnet/vouchnet/internal/trustledger/repository"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
)

var testDBSeq int

type fixture struct {
	db       *gorm.DB
	svc      domain.Service
	node     *snowflake.Node
	clock    *clock.FakeClock
	accounts accountdomain.Repository
	ledger   trustledgerdomain.Repository
	edges    relationshipdomain.Repository
}

func setup(t *testing.T) *fixture {
	t.Helper()

	testDBSeq++
	dsn := fmt.Sprintf("file:invitation_test_%d?mode=memory&cache=shared", testDBSeq)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	for _, stmt := range []string{
		`CREATE TABLE accounts (
			id INTEGER PRIMARY KEY,
			email TEXT NOT NULL UNIQUE,
			name TEXT NOT NULL,
			tier TEXT NOT NULL,
			referred_by INTEGER,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,
		`CREATE TABLE trust_accounts (
			account_id INTEGER PRIMARY KEY,
			available_trust INTEGER NOT NULL,
			allocated_trust INTEGER NOT NULL,
			total_granted INTEGER NOT NULL,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,
		`CREATE TABLE invitations (
			id INTEGER PRIMARY KEY,
			sender_id INTEGER NOT NULL,
			recipient_id INTEGER,
			recipient_email TEXT NOT NULL,
			trust_score INTEGER NOT NULL,
			code TEXT NOT NULL UNIQUE,
			status TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			responded_at DATETIME,
			expires_at DATETIME NOT NULL
		)`,
		`CREATE TABLE relationship_edges (
			id INTEGER PRIMARY KEY,
			user_low INTEGER NOT NULL,
			user_high INTEGER NOT NULL,
			status TEXT NOT NULL,
			weight INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL,
			confirmed_at DATETIME
		)`,
		`CREATE UNIQUE INDEX ux_relationship_edges_pair ON relationship_edges(user_low, user_high)`,
		`CREATE TABLE graph_change_journal (
			id INTEGER PRIMARY KEY,
			change_type TEXT NOT NULL,
			edge_id INTEGER NOT NULL,
			created_at DATETIME NOT NULL
		)`,
	} {
		require.NoError(t, db.Exec(stmt).Error)
	}

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	fake := clock.NewFakeClock(time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC))

	trustCfg := &config.TrustConfigHolder{}
	trustCfg.Store(config.DefaultTrustConfig())

	f := &fixture{
		db:       db,
		node:     node,
		clock:    fake,
		accounts: accountrepository.Provide(),
		ledger:   trustledgerrepository.Provide(),
		edges:    relationshiprepository.Provide(),
	}
	f.svc = NewService(Params{
		DB:          db,
		Log:         zaptest.NewLogger(t),
		GenID:       node,
		Clock:       fake,
		TrustCfg:    trustCfg,
		AccountRepo: f.accounts,
		LedgerRepo:  f.ledger,
		EdgeRepo:    f.edges,
	})
	return f
}

func (f *fixture) newAccount(t *testing.T, email string, grant int64) snowflake.ID {
	t.Helper()
	ctx := context.Background()
	id := f.node.Generate()
	now := f.clock.Now()
	require.NoError(t, f.accounts.Insert(ctx, f.db, &accountdomain.Account{
		ID:        id,
		Email:     email,
		Name:      "Member",
		Tier:      accountdomain.TierStandard,
		CreatedAt: now,
		UpdatedAt: now,
	}))
	require.NoError(t, f.ledger.Create(ctx, f.db, id, grant))
	return id
}

func (f *fixture) balance(t *testing.T, id snowflake.ID) trustledgerdomain.TrustAccount {
	t.Helper()
	account, err := f.ledger.Find(context.Background(), f.db, id)
	require.NoError(t, err)
	require.NotNil(t, account)
	return *account
}

func TestSendReservesSenderTrust(t *testing.T) {
	f := setup(t)
	sender := f.newAccount(t, "sender@example.com", 50)

	invitation, err := f.svc.Send(context.Background(), domain.SendRequest{
		SenderID:       sender,
		RecipientEmail: "newcomer@example.com",
		TrustScore:     3,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, invitation.Status)
	assert.NotEmpty(t, invitation.Code)
	assert.Nil(t, invitation.RecipientID)

	account := f.balance(t, sender)
	assert.Equal(t, int64(20), account.AvailableTrust)
	assert.Equal(t, int64(30), account.AllocatedTrust)
	assert.True(t, account.Balanced())
}

func TestSendWithInsufficientTrustFails(t *testing.T) {
	f := setup(t)
	sender := f.newAccount(t, "sender@example.com", 50)

	_, err := f.svc.Send(context.Background(), domain.SendRequest{
		SenderID:       sender,
		RecipientEmail: "newcomer@example.com",
		TrustScore:     6,
	})
	assert.ErrorIs(t, err, trustledgerdomain.ErrInsufficientTrust)

	// Failed send leaves the ledger untouched and writes no invitation.
	account := f.balance(t, sender)
	assert.Equal(t, int64(50), account.AvailableTrust)
	assert.Equal(t, int64(0), account.AllocatedTrust)

	var count int64
	require.NoError(t, f.db.Raw(`SELECT COUNT(*) FROM invitations`).Scan(&count).Error)
	assert.Equal(t, int64(0), count)
}

func TestSendValidation(t *testing.T) {
	f := setup(t)
	sender := f.newAccount(t, "sender@example.com", 100)
	ctx := context.Background()

	_, err := f.svc.Send(ctx, domain.SendRequest{SenderID: sender, RecipientEmail: "x@y.com", TrustScore: 0})
	assert.ErrorIs(t, err, domain.ErrInvalidTrustScore)

	_, err = f.svc.Send(ctx, domain.SendRequest{SenderID: sender, RecipientEmail: "x@y.com", TrustScore: 11})
	assert.ErrorIs(t, err, domain.ErrInvalidTrustScore)

	_, err = f.svc.Send(ctx, domain.SendRequest{SenderID: sender, RecipientEmail: "not-an-email", TrustScore: 5})
	assert.ErrorIs(t, err, domain.ErrInvalidRecipient)

	_, err = f.svc.Send(ctx, domain.SendRequest{SenderID: sender, RecipientEmail: "sender@example.com", TrustScore: 5})
	assert.ErrorIs(t, err, domain.ErrSelfInvitation)
}

func TestAcceptCreatesAccountAndConfirmsEdge(t *testing.T) {
	f := setup(t)
	sender := f.newAccount(t, "sender@example.com", 100)
	ctx := context.Background()

	invitation, err := f.svc.Send(ctx, domain.SendRequest{
		SenderID:       sender,
		RecipientEmail: "newcomer@example.com",
		TrustScore:     7,
	})
	require.NoError(t, err)

	result, err := f.svc.Accept(ctx, domain.AcceptRequest{Code: invitation.Code, Name: "Newcomer"})
	require.NoError(t, err)
	assert.True(t, result.AccountCreated)
	assert.Equal(t, domain.StatusAccepted, result.Invitation.Status)
	assert.Equal(t, "newcomer@example.com", result.Recipient.Email)
	assert.Equal(t, accountdomain.TierStandard, result.Recipient.Tier)
	require.NotNil(t, result.Recipient.ReferredBy)
	assert.Equal(t, sender, *result.Recipient.ReferredBy)

	// Sender's reservation stays allocated; no trust returns on accept.
	account := f.balance(t, sender)
	assert.Equal(t, int64(30), account.AvailableTrust)
	assert.Equal(t, int64(70), account.AllocatedTrust)

	// Recipient gets the standard-tier endowment.
	recipientLedger := f.balance(t, result.Recipient.ID)
	assert.Equal(t, int64(50), recipientLedger.TotalGranted)

	// Edge is confirmed with the send-time allocation as weight.
	edge, err := f.edges.FindPair(ctx, f.db, sender, result.Recipient.ID)
	require.NoError(t, err)
	require.NotNil(t, edge)
	assert.Equal(t, relationshipdomain.EdgeStatusConfirmed, edge.Status)
	assert.Equal(t, int64(70), edge.Weight)

	// The confirmation is journaled for the recompute trigger.
	watermark, err := f.edges.JournalWatermark(ctx, f.db)
	require.NoError(t, err)
	assert.Greater(t, watermark, int64(0))
}

func TestAcceptTwiceFails(t *testing.T) {
	f := setup(t)
	sender := f.newAccount(t, "sender@example.com", 100)
	ctx := context.Background()

	invitation, err := f.svc.Send(ctx, domain.SendRequest{
		SenderID:       sender,
		RecipientEmail: "newcomer@example.com",
		TrustScore:     4,
	})
	require.NoError(t, err)

	_, err = f.svc.Accept(ctx, domain.AcceptRequest{Code: invitation.Code, Name: "Newcomer"})
	require.NoError(t, err)

	_, err = f.svc.Accept(ctx, domain.AcceptRequest{Code: invitation.Code, Name: "Newcomer"})
	assert.ErrorIs(t, err, domain.ErrNotPending)
}

func TestAcceptExistingAccountBindsEdgeOnly(t *testing.T) {
	f := setup(t)
	sender := f.newAccount(t, "sender@example.com", 100)
	existing := f.newAccount(t, "existing@example.com", 50)
	ctx := context.Background()

	invitation, err := f.svc.Send(ctx, domain.SendRequest{
		SenderID:       sender,
		RecipientEmail: "existing@example.com",
		TrustScore:     5,
	})
	require.NoError(t, err)
	require.NotNil(t, invitation.RecipientID)
	assert.Equal(t, existing, *invitation.RecipientID)

	// Pending edge exists already at send time for known recipients.
	edge, err := f.edges.FindPair(ctx, f.db, sender, existing)
	require.NoError(t, err)
	require.NotNil(t, edge)
	assert.Equal(t, relationshipdomain.EdgeStatusPending, edge.Status)

	result, err := f.svc.Accept(ctx, domain.AcceptRequest{Code: invitation.Code})
	require.NoError(t, err)
	assert.False(t, result.AccountCreated)
	assert.Equal(t, existing, result.Recipient.ID)

	// Existing account's own ledger is untouched.
	assert.Equal(t, int64(50), f.balance(t, existing).AvailableTrust)
}

func TestExpireDueReturnsReservedTrust(t *testing.T) {
	f := setup(t)
	sender := f.newAccount(t, "sender@example.com", 100)
	ctx := context.Background()

	invitation, err := f.svc.Send(ctx, domain.SendRequest{
		SenderID:       sender,
		RecipientEmail: "slow@example.com",
		TrustScore:     8,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(20), f.balance(t, sender).AvailableTrust)

	f.clock.Advance(15 * 24 * time.Hour)

	expired, err := f.svc.ExpireDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, expired)

	refreshed, err := f.svc.GetByCode(ctx, invitation.Code)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusExpired, refreshed.Status)

	account := f.balance(t, sender)
	assert.Equal(t, int64(100), account.AvailableTrust)
	assert.Equal(t, int64(0), account.AllocatedTrust)
	assert.True(t, account.Balanced())

	// A second sweep finds nothing.
	expired, err = f.svc.ExpireDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, expired)
}

func TestAcceptAfterDeadlineExpiresInline(t *testing.T) {
	f := setup(t)
	sender := f.newAccount(t, "sender@example.com", 100)
	ctx := context.Background()

	invitation, err := f.svc.Send(ctx, domain.SendRequest{
		SenderID:       sender,
		RecipientEmail: "late@example.com",
		TrustScore:     2,
	})
	require.NoError(t, err)

	f.clock.Advance(15 * 24 * time.Hour)

	_, err = f.svc.Accept(ctx, domain.AcceptRequest{Code: invitation.Code, Name: "Late"})
	assert.ErrorIs(t, err, domain.ErrNotPending)

	refreshed, err := f.svc.GetByCode(ctx, invitation.Code)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusExpired, refreshed.Status)

	// The reservation came back.
	assert.Equal(t, int64(100), f.balance(t, sender).AvailableTrust)
}
