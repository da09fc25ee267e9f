// Package seed bootstraps the network with its founding account. Trust in
// the system originates from founding members; without at least one the
// propagation has no seed mass to distribute.
package seed

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	accountdomain "github.com/vouchnet/vouchnet/internal/account/domain"
	"github.com/vouchnet/vouchnet/internal/config"
	trustledgerdomain "github.com/vouchnet/vouchnet/internal/trustledger/domain"
	"gorm.io/gorm"
)

// EnsureFoundingAccount creates the configured founding member and its trust
// endowment when no founding account exists yet. Safe to call on every boot.
func EnsureFoundingAccount(db *gorm.DB, cfg config.Config, trustCfg config.TrustConfig) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return err
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing accountdomain.Account
		err := tx.WithContext(ctx).
			Where("tier = ?", accountdomain.TierFounding).
			First(&existing).Error
		if err == nil {
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		now := time.Now().UTC()
		account := accountdomain.Account{
			ID:        node.Generate(),
			Email:     strings.ToLower(strings.TrimSpace(cfg.FoundingEmail)),
			Name:      cfg.FoundingName,
			Tier:      accountdomain.TierFounding,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := tx.WithContext(ctx).Create(&account).Error; err != nil {
			return err
		}

		grant := trustCfg.GrantForTier(accountdomain.TierFounding)
		ledger := trustledgerdomain.TrustAccount{
			AccountID:      account.ID,
			AvailableTrust: grant,
			AllocatedTrust: 0,
			TotalGranted:   grant,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		return tx.WithContext(ctx).Create(&ledger).Error
	})
}
