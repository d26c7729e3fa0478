package approval

import (
	"github.com/smallbiznis/sellerflow/internal/approval/projector"
	"github.com/smallbiznis/sellerflow/internal/approval/repository"
	"github.com/smallbiznis/sellerflow/internal/approval/service"
	"go.uber.org/fx"
)

var Module = fx.Module("approval.service",
	fx.Provide(repository.Provide),
	fx.Provide(projector.New),
	fx.Provide(service.NewService),
)
