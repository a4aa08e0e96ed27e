package notify

import (
	"context"

	"conference/internal/logger"
	"conference/internal/metrics"
	"conference/internal/queue"
)

// Deliver consumes notifications from q and hands each to d until ctx is done or the
// queue closes. Failed deliveries are logged and counted; they are not retried.
func Deliver(ctx context.Context, q queue.Queue, d Dispatcher, log logger.Logger, m *metrics.Metrics) error {
	messages, err := q.Consume(ctx)
	if err != nil {
		return err
	}
	for msg := range messages {
		if msg.Type != MessageType {
			log.Debug("skipping message", "type", msg.Type)
			continue
		}
		n, err := Decode(msg)
		if err != nil {
			log.Warn("bad notification payload", "err", err)
			m.NotificationFailed()
			continue
		}
		if err := d.Dispatch(ctx, n); err != nil {
			log.Error("notification delivery failed", "template", n.Template, "to", n.Recipient.Email, "err", err)
			m.NotificationFailed()
			continue
		}
		log.Info("notification delivered", "template", n.Template, "to", n.Recipient.Email)
	}
	return nil
}
