package pricing

import (
	pricingdomain "github.com/smallbiznis/sellerflow/internal/pricing/domain"
	"github.com/smallbiznis/sellerflow/internal/pricing/repository"
	"github.com/smallbiznis/sellerflow/internal/pricing/service"
	"go.uber.org/fx"
)

var Module = fx.Module("pricing.service",
	fx.Provide(repository.NewRepository),
	fx.Provide(service.NewService),
	fx.Provide(func(s pricingdomain.Service) pricingdomain.ConfigSource { return s }),
)
