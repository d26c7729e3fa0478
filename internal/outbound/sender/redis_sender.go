package sender

import (
	"context"
	"errors"

	redis "github.com/redis/go-redis/v9"
	outbounddomain "github.com/smallbiznis/sellerflow/internal/outbound/domain"
)

// RedisSender publishes messages to a redis stream consumed by the order
// channel integration.
type RedisSender struct {
	client *redis.Client
	stream string
}

func NewRedisSender(client *redis.Client, stream string) (*RedisSender, error) {
	if client == nil {
		return nil, errors.New("redis sender requires REDIS_ADDR")
	}
	if stream == "" {
		return nil, errors.New("redis sender stream is empty")
	}
	return &RedisSender{client: client, stream: stream}, nil
}

func (s *RedisSender) Send(ctx context.Context, msg outbounddomain.Message) error {
	return s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: s.stream,
		Values: map[string]any{
			"id":         msg.ID,
			"quote_id":   msg.QuoteID,
			"event_type": string(msg.EventType),
			"payload":    string(msg.Payload),
		},
	}).Err()
}
