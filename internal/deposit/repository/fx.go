package repository

import (
	"context"
	"strings"

	"github.com/1rokoko/stripe-deposit-sub000/internal/config"
	depositdomain "github.com/1rokoko/stripe-deposit-sub000/internal/deposit/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	Lifecycle fx.Lifecycle
	Cfg       config.Config
	DB        *gorm.DB
	Log       *zap.Logger
}

// Provide selects the deposit store adapter from config.
func Provide(p Params) (depositdomain.Repository, error) {
	if strings.EqualFold(strings.TrimSpace(p.Cfg.Storage.Deposits), "bolt") {
		repo, err := OpenBolt(p.Cfg.Storage.BoltPath)
		if err != nil {
			return nil, err
		}
		p.Lifecycle.Append(fx.Hook{
			OnStop: func(context.Context) error {
				return repo.Close()
			},
		})
		p.Log.Info("using bolt deposit store", zap.String("path", p.Cfg.Storage.BoltPath))
		return repo, nil
	}
	return NewGormRepository(p.DB), nil
}
