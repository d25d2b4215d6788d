package storage

import (
	"context"

	"github.com/1rokoko/stripe-deposit-sub000/internal/config"
	"github.com/1rokoko/stripe-deposit-sub000/internal/migration"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("storage",
	fx.Provide(newDB),
	fx.Provide(func() (*snowflake.Node, error) {
		return snowflake.NewNode(1)
	}),
)

// MigrateOnStart applies pending migrations. Declare it ahead of worker and
// server modules so its start hook runs first.
var MigrateOnStart = fx.Module("storage.migrate",
	fx.Invoke(func(lc fx.Lifecycle, db *gorm.DB, log *zap.Logger) {
		lc.Append(fx.Hook{
			OnStart: func(ctx context.Context) error {
				return migration.RunMigrations(ctx, db, log)
			},
		})
	}),
)

func newDB(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) (*gorm.DB, error) {
	db, err := OpenDB(cfg.Database, log)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.Close()
		},
	})
	return db, nil
}
