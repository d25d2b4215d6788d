package deposit

import (
	"github.com/1rokoko/stripe-deposit-sub000/internal/deposit/repository"
	"github.com/1rokoko/stripe-deposit-sub000/internal/deposit/service"
	"go.uber.org/fx"
)

var Module = fx.Module("deposit.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
