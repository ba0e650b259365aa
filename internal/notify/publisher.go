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

// EventKind names an outbound settlement event.
type EventKind string

const (
	EventTransactionOpened    EventKind = "transaction.opened"
	EventTransactionConfirmed EventKind = "transaction.confirmed"
	EventTransactionExpired   EventKind = "transaction.expired"
	EventDisputeOpened        EventKind = "dispute.opened"
	EventDisputeResolved      EventKind = "dispute.resolved"
	EventTransferFinalized    EventKind = "transfer.finalized"
)

// SettlementEvent is the wire shape published to settle.events.{kind}.
type SettlementEvent struct {
	Kind      EventKind   `json:"kind"`
	RefID     uuid.UUID   `json:"ref_id"`
	Payload   interface{} `json:"payload,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// EventPublisher publishes settlement events for downstream consumers.
// Publishing is best-effort: consumers that need a complete record read the
// transaction tables directly.
type EventPublisher struct {
	js      jetstream.JetStream
	ch      chan SettlementEvent
	log     zerolog.Logger
	metrics *observability.Metrics
}

func NewEventPublisher(js jetstream.JetStream, bufSize int, metrics *observability.Metrics) *EventPublisher {
	return &EventPublisher{
		js:      js,
		ch:      make(chan SettlementEvent, bufSize),
		log:     observability.NewLogger("events"),
		metrics: metrics,
	}
}

// Publish enqueues an event; drops on a full channel rather than blocking a
// settlement commit.
func (p *EventPublisher) Publish(kind EventKind, refID uuid.UUID, payload interface{}) {
	select {
	case p.ch <- SettlementEvent{Kind: kind, RefID: refID, Payload: payload, Timestamp: time.Now()}:
	default:
		if p.metrics != nil {
			p.metrics.EventDrops.Inc()
		}
	}
}

// Run drains the channel until ctx is cancelled.
func (p *EventPublisher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case evt, ok := <-p.ch:
			if !ok {
				return nil
			}
			if err := p.publish(ctx, evt); err != nil {
				p.log.Warn().Err(err).Str("kind", string(evt.Kind)).Msg("event publish failed")
				continue
			}
			if p.metrics != nil {
				p.metrics.EventsPublished.WithLabelValues(string(evt.Kind)).Inc()
			}
		}
	}
}

func (p *EventPublisher) publish(ctx context.Context, evt SettlementEvent) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	subject := fmt.Sprintf("settle.events.%s", evt.Kind)
	_, err = p.js.Publish(ctx, subject, data)
	return err
}

// NopPublisher discards all events.
type NopPublisher struct{}

func (NopPublisher) Publish(EventKind, uuid.UUID, interface{}) {}

// Publisher is the engine-facing event sink.
type Publisher interface {
	Publish(kind EventKind, refID uuid.UUID, payload interface{})
}
