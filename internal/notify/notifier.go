// Package notify carries the best-effort outbound surfaces: per-user
// notifications and settlement events, both published to NATS JetStream.
// Failure to publish never rolls back a settlement.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"

	"SettleCore/internal/observability"
)

// Notifier delivers a message to a user, fire-and-forget.
type Notifier interface {
	Notify(userID uuid.UUID, message string)
}

// Notification is the wire shape published to settle.notify.{user_id}.
type Notification struct {
	UserID    uuid.UUID `json:"user_id"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// NATSNotifier buffers notifications on a channel and publishes them from a
// dedicated goroutine. Enqueue never blocks the settlement path: on a full
// channel the notification is dropped and counted.
type NATSNotifier struct {
	js      jetstream.JetStream
	ch      chan Notification
	log     zerolog.Logger
	metrics *observability.Metrics
}

func NewNATSNotifier(js jetstream.JetStream, bufSize int, metrics *observability.Metrics) *NATSNotifier {
	return &NATSNotifier{
		js:      js,
		ch:      make(chan Notification, bufSize),
		log:     observability.NewLogger("notifier"),
		metrics: metrics,
	}
}

// Notify enqueues a notification for delivery.
func (n *NATSNotifier) Notify(userID uuid.UUID, message string) {
	select {
	case n.ch <- Notification{UserID: userID, Message: message, Timestamp: time.Now()}:
	default:
		if n.metrics != nil {
			n.metrics.NotifyDrops.Inc()
		}
		n.log.Warn().Str("user_id", userID.String()).Msg("notification dropped: channel full")
	}
}

// Run drains the channel until ctx is cancelled.
func (n *NATSNotifier) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-n.ch:
			if !ok {
				return nil
			}
			if err := n.publish(ctx, msg); err != nil {
				// Best-effort: log and move on.
				n.log.Warn().Err(err).Str("user_id", msg.UserID.String()).Msg("notification publish failed")
				continue
			}
			if n.metrics != nil {
				n.metrics.NotifyPublished.Inc()
			}
		}
	}
}

func (n *NATSNotifier) publish(ctx context.Context, msg Notification) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	subject := fmt.Sprintf("settle.notify.%s", msg.UserID)
	_, err = n.js.Publish(ctx, subject, data)
	return err
}

// NopNotifier discards all notifications; used in tests and when NATS is
// disabled.
type NopNotifier struct{}

func (NopNotifier) Notify(uuid.UUID, string) {}
