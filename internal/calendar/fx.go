package calendar

import (
	"github.com/smallbiznis/sellerflow/internal/calendar/repository"
	"github.com/smallbiznis/sellerflow/internal/calendar/service"
	"go.uber.org/fx"
)

var Module = fx.Module("calendar.service",
	fx.Provide(repository.NewRepository),
	fx.Provide(service.NewService),
)
