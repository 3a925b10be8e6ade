package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/lettercast/lettercast/internal/billing"
	"github.com/lettercast/lettercast/internal/cache"
	"github.com/lettercast/lettercast/internal/config"
	"github.com/lettercast/lettercast/internal/logger"
	"github.com/lettercast/lettercast/internal/migration"
	"github.com/lettercast/lettercast/internal/observability"
	"github.com/lettercast/lettercast/internal/post"
	"github.com/lettercast/lettercast/internal/publication"
	"github.com/lettercast/lettercast/internal/ratelimit"
	"github.com/lettercast/lettercast/internal/server"
	"github.com/lettercast/lettercast/internal/subscription"
	"github.com/lettercast/lettercast/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		logger.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		cache.Module,
		observability.Module,
		migration.Module,
		ratelimit.Module,

		publication.Module,
		subscription.Module,
		post.Module,
		billing.Module,
		server.Module,
	)

	app.Run()
}

func RegisterSnowflake() (*snowflake.Node, error) {
	return snowflake.NewNode(1)
}
