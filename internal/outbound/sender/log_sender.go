package sender

import (
	"context"

	outbounddomain "github.com/smallbiznis/sellerflow/internal/outbound/domain"
	"go.uber.org/zap"
)

// LogSender writes messages to the log. It stands in for the commerce
// channel in development.
type LogSender struct {
	log *zap.Logger
}

func NewLogSender(log *zap.Logger) *LogSender {
	return &LogSender{log: log.Named("outbound.sender")}
}

func (s *LogSender) Send(ctx context.Context, msg outbounddomain.Message) error {
	s.log.Info("outbound message",
		zap.String("message_id", msg.ID),
		zap.String("quote_id", msg.QuoteID),
		zap.String("event_type", string(msg.EventType)),
		zap.ByteString("payload", msg.Payload),
	)
	return nil
}
