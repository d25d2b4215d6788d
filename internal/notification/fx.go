package notification

import (
	"github.com/1rokoko/stripe-deposit-sub000/internal/notification/domain"
	"github.com/1rokoko/stripe-deposit-sub000/internal/notification/repository"
	"github.com/1rokoko/stripe-deposit-sub000/internal/notification/service"
	"go.uber.org/fx"
)

var Module = fx.Module("notification.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
	fx.Provide(func(svc domain.Service) domain.Notifier { return svc }),
)
