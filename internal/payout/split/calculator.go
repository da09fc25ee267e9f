// Package split computes payment splits over referral chains. The calculator
// is pure and deterministic: identical inputs always produce identical shares.
package split

import (
	"math"

	"github.com/bwmarrin/snowflake"
	"github.com/vouchnet/vouchnet/internal/payout/domain"
)

type Calculator struct {
	// Decay in (0,1): each hop up the chain receives decay times the share
	// of the hop below it.
	Decay float64
}

// Compute splits totalAmount over the root-first chain. Every participant but
// the direct referrer gets the floor of its exact fractional share; the direct
// referrer absorbs the residual. Flooring keeps the residual at or above the
// direct referrer's exact share, so the shares sum to totalAmount exactly and
// never increase with distance from the hire, whatever the decay factor.
func (c Calculator) Compute(totalAmount int64, chainPath []snowflake.ID) ([]domain.Share, error) {
	if totalAmount <= 0 {
		return nil, domain.ErrInvalidAmount
	}
	n := len(chainPath)
	if n == 0 {
		return nil, domain.ErrEmptyChain
	}

	// Geometric weights, deepest hop heaviest: the participant at chain
	// index i carries weight decay^(n-1-i).
	weights := make([]float64, n)
	totalWeight := 0.0
	for i := 0; i < n; i++ {
		weights[i] = math.Pow(c.Decay, float64(n-1-i))
		totalWeight += weights[i]
	}

	shares := make([]domain.Share, n)
	var allocated int64
	for i := 0; i < n-1; i++ {
		amount := int64(math.Floor(float64(totalAmount) * weights[i] / totalWeight))
		shares[i] = domain.Share{
			AccountID: chainPath[i],
			Depth:     n - 1 - i,
			Amount:    amount,
		}
		allocated += amount
	}
	shares[n-1] = domain.Share{
		AccountID: chainPath[n-1],
		Depth:     0,
		Amount:    totalAmount - allocated,
	}

	return shares, nil
}
