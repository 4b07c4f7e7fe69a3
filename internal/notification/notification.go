package notification

import (
	"context"
	"log/slog"
)

// Message kinds pushed to cardholders and operational channels.
const (
	KindProcessingUpdate = "processing_update"
	KindRateUpdate       = "rate_update"
)

// Message is a push notification. CardID is empty for broadcast messages
// such as rate updates.
type Message struct {
	Kind   string
	CardID string
	Body   string
}

// Notifier delivers messages to subscribers. Delivery is best effort;
// callers must not fail their own operation on a notification error.
type Notifier interface {
	Send(ctx context.Context, msg Message) error
}

// LoggerNotifier writes notifications to the structured log. It stands in
// for a real push channel in development and tests.
type LoggerNotifier struct {
	logger *slog.Logger
}

// NewLoggerNotifier builds a notifier backed by the given logger.
func NewLoggerNotifier(logger *slog.Logger) *LoggerNotifier {
	return &LoggerNotifier{logger: logger}
}

// Send logs the message.
func (n *LoggerNotifier) Send(_ context.Context, msg Message) error {
	n.logger.Info("notification",
		slog.String("kind", msg.Kind),
		slog.String("card_id", msg.CardID),
		slog.String("body", msg.Body))
	return nil
}
