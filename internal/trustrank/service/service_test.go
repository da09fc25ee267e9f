package service

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
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
	relationshipdomain "github.com/vouchnet/vouchnet/internal/relationship/domain"
	relationshiprepository "github.com/vouchnet/vouchnet/internal/relationship/repository"
	"github.com/vouchnet/vouchnet/internal/trustrank/domain"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
)

var testDBSeq int

type fixture struct {
	db    *gorm.DB
	svc   domain.Service
	node  *snowflake.Node
	clock *clock.FakeClock
	edges relationshipdomain.Repository
}

func setup(t *testing.T) *fixture {
	t.Helper()

	testDBSeq++
	dsn := fmt.Sprintf("file:trustrank_test_%d?mode=memory&cache=shared", testDBSeq)
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
		`CREATE TABLE computed_trust_scores (
			id INTEGER PRIMARY KEY,
			snapshot_id INTEGER NOT NULL,
			account_id INTEGER NOT NULL,
			rank INTEGER NOT NULL,
			trust_score REAL NOT NULL,
			display_score REAL NOT NULL,
			created_at DATETIME NOT NULL
		)`,
		`CREATE TABLE trust_ranking_pointer (
			id INTEGER PRIMARY KEY,
			snapshot_id INTEGER NOT NULL,
			updated_at DATETIME NOT NULL
		)`,
		`CREATE TABLE trust_computation_logs (
			id INTEGER PRIMARY KEY,
			snapshot_id INTEGER,
			iterations INTEGER NOT NULL,
			converged BOOLEAN NOT NULL,
			triggered_by TEXT NOT NULL,
			node_count INTEGER NOT NULL,
			edge_count INTEGER NOT NULL,
			journal_watermark INTEGER NOT NULL,
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
		db:    db,
		node:  node,
		clock: fake,
		edges: relationshiprepository.Provide(),
	}
	f.svc = NewService(Params{
		DB:          db,
		Log:         zaptest.NewLogger(t),
		GenID:       node,
		Clock:       fake,
		TrustCfg:    trustCfg,
		AccountRepo: accountrepository.Provide(),
		EdgeRepo:    f.edges,
	})
	return f
}

func (f *fixture) newAccount(t *testing.T, email string) snowflake.ID {
	t.Helper()
	id := f.node.Generate()
	now := f.clock.Now()
	require.NoError(t, accountrepository.Provide().Insert(context.Background(), f.db, &accountdomain.Account{
		ID:        id,
		Email:     email,
		Name:      "Member",
		Tier:      accountdomain.TierStandard,
		CreatedAt: now,
		UpdatedAt: now,
	}))
	f.clock.Advance(time.Minute)
	return id
}

func (f *fixture) confirmEdge(t *testing.T, a, b snowflake.ID, weight int64) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, f.edges.UpsertPending(ctx, f.db, f.node.Generate(), a, b))
	confirmed, err := f.edges.Confirm(ctx, f.db, a, b, weight)
	require.NoError(t, err)
	require.True(t, confirmed)
	edge, err := f.edges.FindPair(ctx, f.db, a, b)
	require.NoError(t, err)
	require.NoError(t, f.edges.AppendJournal(ctx, f.db, f.node.Generate(), "edge_confirmed", edge.ID))
}

func TestRecomputePublishesSnapshot(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	a := f.newAccount(t, "a@example.com")
	b := f.newAccount(t, "b@example.com")
	c := f.newAccount(t, "c@example.com")
	f.confirmEdge(t, a, b, 50)
	f.confirmEdge(t, b, c, 50)

	result, err := f.svc.Recompute(ctx, domain.TriggerManual)
	require.NoError(t, err)
	assert.True(t, result.Converged)
	assert.Equal(t, 3, result.NodeCount)
	assert.Equal(t, 2, result.EdgeCount)
	assert.NotZero(t, result.SnapshotID)

	ranking, err := f.svc.LatestRanking(ctx)
	require.NoError(t, err)
	require.Len(t, ranking, 3)

	// b sits between a and c and collects the most score.
	assert.Equal(t, b, ranking[0].AccountID)
	assert.Equal(t, 1, ranking[0].Rank)
	assert.InDelta(t, 100.0, ranking[0].DisplayScore, 1e-9)

	sum := 0.0
	for i, row := range ranking {
		assert.Equal(t, i+1, row.Rank)
		sum += row.TrustScore
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
}

func TestLatestRankingWithoutSnapshot(t *testing.T) {
	f := setup(t)

	_, err := f.svc.LatestRanking(context.Background())
	assert.ErrorIs(t, err, domain.ErrNoSnapshot)
}

func TestRecomputeSwapsPointerAtomically(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	a := f.newAccount(t, "a@example.com")
	b := f.newAccount(t, "b@example.com")
	f.confirmEdge(t, a, b, 30)

	first, err := f.svc.Recompute(ctx, domain.TriggerManual)
	require.NoError(t, err)

	second, err := f.svc.Recompute(ctx, domain.TriggerScheduled)
	require.NoError(t, err)
	assert.NotEqual(t, first.SnapshotID, second.SnapshotID)

	ranking, err := f.svc.LatestRanking(ctx)
	require.NoError(t, err)
	for _, row := range ranking {
		assert.Equal(t, second.SnapshotID, row.SnapshotID)
	}
}

func TestHistoryRecordsRuns(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.newAccount(t, "a@example.com")

	_, err := f.svc.Recompute(ctx, domain.TriggerManual)
	require.NoError(t, err)
	_, err = f.svc.Recompute(ctx, domain.TriggerScheduled)
	require.NoError(t, err)

	history, err := f.svc.History(ctx, 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, domain.TriggerScheduled, history[0].TriggeredBy)
	assert.Equal(t, domain.TriggerManual, history[1].TriggeredBy)
}

func TestLastWatermarkTracksPublishedRuns(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	a := f.newAccount(t, "a@example.com")
	b := f.newAccount(t, "b@example.com")

	watermark, err := f.svc.LastWatermark(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), watermark)

	f.confirmEdge(t, a, b, 40)
	journal, err := f.edges.JournalWatermark(ctx, f.db)
	require.NoError(t, err)
	assert.Greater(t, journal, int64(0))

	_, err = f.svc.Recompute(ctx, domain.TriggerRelationshipChange)
	require.NoError(t, err)

	watermark, err = f.svc.LastWatermark(ctx)
	require.NoError(t, err)
	assert.Equal(t, journal, watermark)
}

func TestSnapshotPruningKeepsRecentRuns(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.newAccount(t, "a@example.com")

	for i := 0; i < 7; i++ {
		_, err := f.svc.Recompute(ctx, domain.TriggerScheduled)
		require.NoError(t, err)
	}

	var distinct int64
	require.NoError(t, f.db.Raw(
		`SELECT COUNT(DISTINCT snapshot_id) FROM computed_trust_scores`,
	).Scan(&distinct).Error)
	assert.Equal(t, int64(5), distinct)
}

func TestRecomputeReadsInputOnOneTransaction(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	a := f.newAccount(t, "a@example.com")
	b := f.newAccount(t, "b@example.com")
	f.confirmEdge(t, a, b, 40)

	// Capture which connection every input read runs on: accounts, edges,
	// and the journal watermark must all come from the same transaction so
	// the engine sees one graph state.
	type inputRead struct {
		sql  string
		pool gorm.ConnPool
	}
	var reads []inputRead
	require.NoError(t, f.db.Callback().Query().After("gorm:query").Register("capture_input_reads", func(d *gorm.DB) {
		stmt := d.Statement.SQL.String()
		if strings.Contains(stmt, "FROM accounts") ||
			strings.Contains(stmt, "FROM relationship_edges") ||
			strings.Contains(stmt, "FROM graph_change_journal") {
			reads = append(reads, inputRead{sql: stmt, pool: d.Statement.ConnPool})
		}
	}))
	t.Cleanup(func() {
		_ = f.db.Callback().Query().Remove("capture_input_reads")
	})

	_, err := f.svc.Recompute(ctx, domain.TriggerManual)
	require.NoError(t, err)

	require.Len(t, reads, 3)
	for _, read := range reads {
		_, inTx := read.pool.(*sql.Tx)
		assert.True(t, inTx, "input read ran outside a transaction: %s", read.sql)
		assert.Same(t, reads[0].pool, read.pool, "input reads split across connections: %s", read.sql)
	}
}
