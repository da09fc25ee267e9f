package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/vouchnet/vouchnet/internal/account"
	"github.com/vouchnet/vouchnet/internal/clock"
	"github.com/vouchnet/vouchnet/internal/config"
	"github.com/vouchnet/vouchnet/internal/invitation"
	"github.com/vouchnet/vouchnet/internal/logger"
	"github.com/vouchnet/vouchnet/internal/migration"
	"github.com/vouchnet/vouchnet/internal/observability"
	"github.com/vouchnet/vouchnet/internal/payout"
	"github.com/vouchnet/vouchnet/internal/ratelimit"
	"github.com/vouchnet/vouchnet/internal/referral"
	"github.com/vouchnet/vouchnet/internal/relationship"
	"github.com/vouchnet/vouchnet/internal/scheduler"
	"github.com/vouchnet/vouchnet/internal/seed"
	"github.com/vouchnet/vouchnet/internal/server"
	"github.com/vouchnet/vouchnet/internal/trustledger"
	"github.com/vouchnet/vouchnet/internal/trustrank"
	"github.com/vouchnet/vouchnet/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core infrastructure
		config.Module,
		observability.Module,
		logger.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,
		seed.Module,
		ratelimit.Module,

		// Functional domains
		trustledger.Module,
		relationship.Module,
		account.Module,
		invitation.Module,
		trustrank.Module,
		referral.Module,
		payout.Module,

		scheduler.Module,
		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
