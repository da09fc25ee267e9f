package migration

import (
	"github.com/vouchnet/vouchnet/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Run applies the embedded migrations when the configured database is
// postgres. Other dialects (sqlite in tests, mysql) manage their schema
// outside golang-migrate, whose driver here is postgres-specific.
func Run(conn *gorm.DB, cfg config.Config, log *zap.Logger) error {
	if cfg.DBType != "postgres" {
		log.Named("migrations").Info("skipping migrations for non-postgres database",
			zap.String("type", cfg.DBType),
		)
		return nil
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return err
	}
	return RunMigrations(sqlDB)
}

var Module = fx.Module("migrations",
	fx.Invoke(Run),
)
