package chain

import (
	"context"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vouchnet/vouchnet/internal/referral/domain"
)

// mapLookup serves parentage from a fixed map; absent keys are roots.
type mapLookup map[snowflake.ID]snowflake.ID

func (m mapLookup) Parent(_ context.Context, id snowflake.ID) (*snowflake.ID, error) {
	parent, ok := m[id]
	if !ok {
		return nil, nil
	}
	return &parent, nil
}

func genIDs(t *testing.T, count int) []snowflake.ID {
	t.Helper()
	gen, err := snowflake.NewNode(1)
	require.NoError(t, err)
	ids := make([]snowflake.ID, count)
	for i := range ids {
		ids[i] = gen.Generate()
	}
	return ids
}

func TestBuildReturnsRootFirstChain(t *testing.T) {
	ids := genIDs(t, 3)
	root, mid, direct := ids[0], ids[1], ids[2]
	lookup := mapLookup{
		direct: mid,
		mid:    root,
	}

	path, err := NewBuilder(lookup, 10).Build(context.Background(), direct)
	require.NoError(t, err)
	assert.Equal(t, []snowflake.ID{root, mid, direct}, path)
}

func TestBuildRootReferrerYieldsSingletonChain(t *testing.T) {
	ids := genIDs(t, 1)

	path, err := NewBuilder(mapLookup{}, 10).Build(context.Background(), ids[0])
	require.NoError(t, err)
	assert.Equal(t, []snowflake.ID{ids[0]}, path)
}

func TestBuildDetectsCycle(t *testing.T) {
	ids := genIDs(t, 3)
	a, b, c := ids[0], ids[1], ids[2]
	lookup := mapLookup{
		a: b,
		b: c,
		c: a,
	}

	_, err := NewBuilder(lookup, 10).Build(context.Background(), a)
	assert.ErrorIs(t, err, domain.ErrCyclicChain)
}

func TestBuildDetectsSelfParent(t *testing.T) {
	ids := genIDs(t, 1)
	lookup := mapLookup{ids[0]: ids[0]}

	_, err := NewBuilder(lookup, 10).Build(context.Background(), ids[0])
	assert.ErrorIs(t, err, domain.ErrCyclicChain)
}

func TestBuildEnforcesMaxDepth(t *testing.T) {
	ids := genIDs(t, 5)
	lookup := mapLookup{}
	for i := len(ids) - 1; i > 0; i-- {
		lookup[ids[i]] = ids[i-1]
	}

	// Chain of 5 fits a depth limit of 5 exactly.
	path, err := NewBuilder(lookup, 5).Build(context.Background(), ids[4])
	require.NoError(t, err)
	assert.Len(t, path, 5)

	_, err = NewBuilder(lookup, 4).Build(context.Background(), ids[4])
	assert.ErrorIs(t, err, domain.ErrChainTooDeep)
}

func TestBuildRejectsZeroReferrer(t *testing.T) {
	_, err := NewBuilder(mapLookup{}, 10).Build(context.Background(), 0)
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)
}
