// Package chain reconstructs referral introduction chains by walking account
// parentage upward from the direct referrer to the network root.
package chain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/vouchnet/vouchnet/internal/referral/domain"
)

// ParentLookup resolves an account's referrer. A nil ID means the account is
// a root of the referral forest.
type ParentLookup interface {
	Parent(ctx context.Context, id snowflake.ID) (*snowflake.ID, error)
}

type Builder struct {
	parents  ParentLookup
	maxDepth int
}

func NewBuilder(parents ParentLookup, maxDepth int) *Builder {
	return &Builder{parents: parents, maxDepth: maxDepth}
}

// Build returns the chain root-first, ending at the direct referrer. The
// parentage is expected to be a forest; a revisited account means corrupted
// data and fails with ErrCyclicChain rather than looping.
func (b *Builder) Build(ctx context.Context, directReferrer snowflake.ID) ([]snowflake.ID, error) {
	if directReferrer == 0 {
		return nil, domain.ErrInvalidRequest
	}

	visited := map[snowflake.ID]struct{}{}
	reversed := make([]snowflake.ID, 0, 4)

	current := directReferrer
	for {
		if _, seen := visited[current]; seen {
			return nil, domain.ErrCyclicChain
		}
		visited[current] = struct{}{}
		reversed = append(reversed, current)
		if len(reversed) > b.maxDepth {
			return nil, domain.ErrChainTooDeep
		}

		parent, err := b.parents.Parent(ctx, current)
		if err != nil {
			return nil, err
		}
		if parent == nil {
			break
		}
		current = *parent
	}

	path := make([]snowflake.ID, len(reversed))
	for i, id := range reversed {
		path[len(reversed)-1-i] = id
	}
	return path, nil
}
