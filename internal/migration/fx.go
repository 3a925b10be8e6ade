package migration

import (
	billingdomain "github.com/lettercast/lettercast/internal/billing/domain"
	"github.com/lettercast/lettercast/internal/config"
	postdomain "github.com/lettercast/lettercast/internal/post/domain"
	publicationdomain "github.com/lettercast/lettercast/internal/publication/domain"
	subscriptiondomain "github.com/lettercast/lettercast/internal/subscription/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

// Versioned SQL migrations run on postgres; the sqlite path used in local
// smoke setups falls back to AutoMigrate since the migrate driver is
// postgres-only.
var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		if cfg.DBType != "postgres" {
			return conn.AutoMigrate(
				&publicationdomain.Publication{},
				&subscriptiondomain.Record{},
				&billingdomain.EventRecord{},
				&postdomain.Post{},
			)
		}

		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		return RunMigrations(sqlDB)
	}),
)
