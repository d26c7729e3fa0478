package outbound

import (
	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/sellerflow/internal/config"
	"github.com/smallbiznis/sellerflow/internal/outbound/domain"
	"github.com/smallbiznis/sellerflow/internal/outbound/repository"
	"github.com/smallbiznis/sellerflow/internal/outbound/sender"
	"github.com/smallbiznis/sellerflow/internal/outbound/service"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("outbound.service",
	fx.Provide(repository.Provide),
	fx.Provide(NewSender),
	fx.Provide(service.NewService),
)

// NewSender picks the sender named by OUTBOUND_SENDER.
func NewSender(cfg config.Config, client *redis.Client, log *zap.Logger) (domain.Sender, error) {
	if cfg.Outbound.Sender == config.SenderRedis {
		return sender.NewRedisSender(client, cfg.Outbound.Stream)
	}
	return sender.NewLogSender(log), nil
}
