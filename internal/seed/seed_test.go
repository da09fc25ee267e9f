package seed

import (
	"fmt"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	accountdomain "github.com/vouchnet/vouchnet/internal/account/domain"
	"github.com/vouchnet/vouchnet/internal/config"
	trustledgerdomain "github.com/vouchnet/vouchnet/internal/trustledger/domain"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
)

var testDBSeq int

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	testDBSeq++
	dsn := fmt.Sprintf("file:seed_test_%d?mode=memory&cache=shared", testDBSeq)
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
	} {
		require.NoError(t, db.Exec(stmt).Error)
	}
	return db
}

func testConfig(seedEnabled bool) (config.Config, *config.TrustConfigHolder) {
	cfg := config.Config{
		SeedFoundingAccount: seedEnabled,
		FoundingEmail:       "Founder@Vouchnet.Local",
		FoundingName:        "Founding Member",
	}
	trustCfg := &config.TrustConfigHolder{}
	trustCfg.Store(config.DefaultTrustConfig())
	return cfg, trustCfg
}

func TestRunSeedsFoundingAccountOnce(t *testing.T) {
	db := openTestDB(t)
	cfg, trustCfg := testConfig(true)

	params := Params{DB: db, Log: zaptest.NewLogger(t), Cfg: cfg, TrustCfg: trustCfg}
	require.NoError(t, run(params))
	require.NoError(t, run(params))

	var accounts []accountdomain.Account
	require.NoError(t, db.Find(&accounts).Error)
	require.Len(t, accounts, 1)
	assert.Equal(t, accountdomain.TierFounding, accounts[0].Tier)
	assert.Equal(t, "founder@vouchnet.local", accounts[0].Email)

	var ledger trustledgerdomain.TrustAccount
	require.NoError(t, db.First(&ledger, "account_id = ?", accounts[0].ID).Error)
	grant := trustCfg.Current().GrantForTier(accountdomain.TierFounding)
	assert.Equal(t, grant, ledger.AvailableTrust)
	assert.Equal(t, grant, ledger.TotalGranted)
	assert.Zero(t, ledger.AllocatedTrust)
}

func TestRunHonorsSeedingFlag(t *testing.T) {
	db := openTestDB(t)
	cfg, trustCfg := testConfig(false)

	require.NoError(t, run(Params{DB: db, Log: zaptest.NewLogger(t), Cfg: cfg, TrustCfg: trustCfg}))

	var count int64
	require.NoError(t, db.Model(&accountdomain.Account{}).Count(&count).Error)
	assert.Zero(t, count)
}
