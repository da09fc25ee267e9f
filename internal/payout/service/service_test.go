package service

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vouchnet/vouchnet/internal/config"
	"github.com/vouchnet/vouchnet/internal/payout/domain"
	referraldomain "github.com/vouchnet/vouchnet/internal/referral/domain"
	"go.uber.org/zap/zaptest"
	"gorm.io/datatypes"
)

// stubReferralSvc serves a single canned referral.
type stubReferralSvc struct {
	referral referraldomain.Referral
	chain    []snowflake.ID
}

func (s *stubReferralSvc) Submit(context.Context, referraldomain.SubmitRequest) (referraldomain.Referral, error) {
	panic("not used")
}

func (s *stubReferralSvc) UpdateStatus(context.Context, snowflake.ID, referraldomain.ReferralStatus) (referraldomain.Referral, error) {
	panic("not used")
}

func (s *stubReferralSvc) GetByID(_ context.Context, id snowflake.ID) (referraldomain.Referral, error) {
	if id != s.referral.ID {
		return referraldomain.Referral{}, referraldomain.ErrNotFound
	}
	return s.referral, nil
}

func (s *stubReferralSvc) Chain(_ context.Context, id snowflake.ID) ([]snowflake.ID, error) {
	if id != s.referral.ID {
		return nil, referraldomain.ErrNotFound
	}
	return s.chain, nil
}

func newFixture(t *testing.T, status referraldomain.ReferralStatus, chainLen int) (domain.Service, snowflake.ID, []snowflake.ID) {
	t.Helper()

	gen, err := snowflake.NewNode(1)
	require.NoError(t, err)

	chain := make([]snowflake.ID, chainLen)
	encoded := make([]int64, chainLen)
	for i := range chain {
		chain[i] = gen.Generate()
		encoded[i] = chain[i].Int64()
	}
	raw, err := json.Marshal(encoded)
	require.NoError(t, err)

	referralID := gen.Generate()
	stub := &stubReferralSvc{
		referral: referraldomain.Referral{
			ID:         referralID,
			Status:     status,
			ChainPath:  datatypes.JSON(raw),
			ChainDepth: chainLen,
		},
		chain: chain,
	}

	trustCfg := &config.TrustConfigHolder{}
	trustCfg.Store(config.DefaultTrustConfig())

	svc := NewService(Params{
		Log:         zaptest.NewLogger(t),
		TrustCfg:    trustCfg,
		ReferralSvc: stub,
	})
	return svc, referralID, chain
}

func TestComputeSplitsForHiredReferral(t *testing.T) {
	svc, referralID, chain := newFixture(t, referraldomain.StatusHired, 3)

	result, err := svc.ComputeSplits(context.Background(), referralID, 10000)
	require.NoError(t, err)
	assert.Equal(t, referralID, result.ReferralID)
	assert.Equal(t, int64(10000), result.TotalAmount)
	require.Len(t, result.Shares, 3)

	assert.Equal(t, chain[0], result.Shares[0].AccountID)
	assert.Equal(t, int64(1428), result.Shares[0].Amount)
	assert.Equal(t, int64(2857), result.Shares[1].Amount)
	assert.Equal(t, int64(5715), result.Shares[2].Amount)
}

func TestComputeSplitsRequiresHiredStatus(t *testing.T) {
	svc, referralID, _ := newFixture(t, referraldomain.StatusInterviewing, 3)

	_, err := svc.ComputeSplits(context.Background(), referralID, 10000)
	assert.ErrorIs(t, err, domain.ErrReferralNotHired)
}

func TestComputeSplitsUnknownReferral(t *testing.T) {
	svc, _, _ := newFixture(t, referraldomain.StatusHired, 3)
	gen, err := snowflake.NewNode(2)
	require.NoError(t, err)

	_, err = svc.ComputeSplits(context.Background(), gen.Generate(), 10000)
	assert.ErrorIs(t, err, referraldomain.ErrNotFound)
}

func TestComputeSplitsInvalidAmount(t *testing.T) {
	svc, referralID, _ := newFixture(t, referraldomain.StatusHired, 3)

	_, err := svc.ComputeSplits(context.Background(), referralID, 0)
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)
}
