package approvalrule

import (
	"github.com/smallbiznis/sellerflow/internal/approvalrule/repository"
	"github.com/smallbiznis/sellerflow/internal/approvalrule/service"
	"go.uber.org/fx"
)

var Module = fx.Module("approvalrule.service",
	fx.Provide(repository.NewRepository),
	fx.Provide(service.NewService),
)
