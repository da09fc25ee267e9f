package split

import (
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vouchnet/vouchnet/internal/payout/domain"
)

func chainOf(t *testing.T, length int) []snowflake.ID {
	t.Helper()
	gen, err := snowflake.NewNode(1)
	require.NoError(t, err)
	chain := make([]snowflake.ID, length)
	for i := range chain {
		chain[i] = gen.Generate()
	}
	return chain
}

func shareTotal(shares []domain.Share) int64 {
	total := int64(0)
	for _, s := range shares {
		total += s.Amount
	}
	return total
}

func TestThreeHopChainSplit(t *testing.T) {
	calc := Calculator{Decay: 0.5}
	chain := chainOf(t, 3)

	shares, err := calc.Compute(10000, chain)
	require.NoError(t, err)
	require.Len(t, shares, 3)

	// Root-first ordering: root, middle, direct referrer. The fractional
	// remainder lands on the direct referrer.
	assert.Equal(t, int64(1428), shares[0].Amount)
	assert.Equal(t, int64(2857), shares[1].Amount)
	assert.Equal(t, int64(5715), shares[2].Amount)

	assert.Equal(t, 2, shares[0].Depth)
	assert.Equal(t, 1, shares[1].Depth)
	assert.Equal(t, 0, shares[2].Depth)

	assert.Equal(t, int64(10000), shareTotal(shares))
}

func TestSingleReferrerTakesEverything(t *testing.T) {
	calc := Calculator{Decay: 0.5}
	chain := chainOf(t, 1)

	shares, err := calc.Compute(7500, chain)
	require.NoError(t, err)
	require.Len(t, shares, 1)
	assert.Equal(t, int64(7500), shares[0].Amount)
	assert.Equal(t, 0, shares[0].Depth)
}

func TestSplitConservesTotalExactly(t *testing.T) {
	calc := Calculator{Decay: 0.5}
	for _, tc := range []struct {
		length int
		total  int64
	}{
		{2, 10000},
		{3, 9999},
		{4, 1},
		{5, 333333},
		{10, 123457},
	} {
		shares, err := calc.Compute(tc.total, chainOf(t, tc.length))
		require.NoError(t, err)
		assert.Equal(t, tc.total, shareTotal(shares), "length=%d total=%d", tc.length, tc.total)
	}
}

func TestDeeperParticipantsNeverOutearnCloserOnes(t *testing.T) {
	calc := Calculator{Decay: 0.5}
	shares, err := calc.Compute(100000, chainOf(t, 6))
	require.NoError(t, err)

	for i := 1; i < len(shares); i++ {
		assert.GreaterOrEqual(t, shares[i].Amount, shares[i-1].Amount)
	}
}

func TestSlowDecayTinyTotalKeepsDirectReferrerLargest(t *testing.T) {
	// With a slow decay the per-hop fractions are nearly equal; a tiny total
	// must still leave the direct referrer with the largest share instead of
	// rounding it down to nothing.
	calc := Calculator{Decay: 0.9}
	shares, err := calc.Compute(4, chainOf(t, 5))
	require.NoError(t, err)

	for i := 1; i < len(shares); i++ {
		assert.GreaterOrEqual(t, shares[i].Amount, shares[i-1].Amount)
	}
	assert.Equal(t, int64(4), shares[len(shares)-1].Amount)
	assert.Equal(t, int64(4), shareTotal(shares))
}

func TestMonotonicityHoldsAcrossDecayFactors(t *testing.T) {
	for _, decay := range []float64{0.1, 0.5, 0.9, 0.99} {
		calc := Calculator{Decay: decay}
		for _, total := range []int64{1, 7, 101, 99999} {
			shares, err := calc.Compute(total, chainOf(t, 7))
			require.NoError(t, err)
			assert.Equal(t, total, shareTotal(shares), "decay=%v total=%d", decay, total)
			for i := 1; i < len(shares); i++ {
				assert.GreaterOrEqual(t, shares[i].Amount, shares[i-1].Amount,
					"decay=%v total=%d index=%d", decay, total, i)
			}
		}
	}
}

func TestEmptyChainRejected(t *testing.T) {
	calc := Calculator{Decay: 0.5}
	_, err := calc.Compute(10000, nil)
	assert.ErrorIs(t, err, domain.ErrEmptyChain)
}

func TestNonPositiveTotalRejected(t *testing.T) {
	calc := Calculator{Decay: 0.5}
	chain := chainOf(t, 2)

	_, err := calc.Compute(0, chain)
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)

	_, err = calc.Compute(-100, chain)
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)
}
