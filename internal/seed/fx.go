package seed

import (
	"github.com/vouchnet/vouchnet/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	Cfg      config.Config
	TrustCfg *config.TrustConfigHolder
}

func run(p Params) error {
	log := p.Log.Named("seed")
	if !p.Cfg.SeedFoundingAccount {
		log.Info("founding account seeding disabled")
		return nil
	}
	if err := EnsureFoundingAccount(p.DB, p.Cfg, p.TrustCfg.Current()); err != nil {
		return err
	}
	log.Info("founding account present")
	return nil
}

// Module bootstraps the founding account at startup, after migrations. This
// is the only place seeding happens.
var Module = fx.Module("seed",
	fx.Invoke(run),
)
