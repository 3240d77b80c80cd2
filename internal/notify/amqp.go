// README: RabbitMQ-backed sink; JSON messages on a topic exchange.
package notify

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/shreyasss-12/Thank-You-Beyonc/internal/types"
)

const (
	// Exchange carries user notifications (routing key = kind) and the trip
	// event stream.
	Exchange = "rideshare.notifications"
	// TripEventsKey routes the events consumed by the points and payments
	// services.
	TripEventsKey = "rideshare.trip_events"
)

// Publisher is the broker surface the sink needs; infra.RabbitMQ satisfies
// it.
type Publisher interface {
	Publish(ctx context.Context, exchange, routingKey string, body []byte) error
}

// AMQPSink publishes to RabbitMQ. Failures are logged and swallowed:
// delivery is fire-and-forget by contract, domain flows never stall on the
// broker.
type AMQPSink struct {
	pub Publisher
	log *zap.Logger
}

func NewAMQPSink(pub Publisher, log *zap.Logger) *AMQPSink {
	if log == nil {
		log = zap.NewNop()
	}
	return &AMQPSink{pub: pub, log: log}
}

type userNotification struct {
	RecipientID types.ID  `json:"recipient_id"`
	Kind        string    `json:"kind"`
	Payload     Payload   `json:"payload"`
	SentAt      time.Time `json:"sent_at"`
}

func (s *AMQPSink) Notify(ctx context.Context, recipientID types.ID, kind string, payload Payload) {
	body, err := json.Marshal(userNotification{
		RecipientID: recipientID,
		Kind:        kind,
		Payload:     payload,
		SentAt:      time.Now(),
	})
	if err != nil {
		s.log.Error("notification marshal failed", zap.Error(err))
		return
	}
	if err := s.pub.Publish(ctx, Exchange, kind, body); err != nil {
		s.log.Warn("notification publish failed",
			zap.String("kind", kind),
			zap.String("recipient_id", string(recipientID)),
			zap.Error(err))
	}
}

func (s *AMQPSink) TripEvent(ctx context.Context, ev TripEvent) {
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now()
	}
	body, err := json.Marshal(ev)
	if err != nil {
		s.log.Error("trip event marshal failed", zap.Error(err))
		return
	}
	if err := s.pub.Publish(ctx, Exchange, TripEventsKey, body); err != nil {
		s.log.Warn("trip event publish failed",
			zap.String("trip_id", string(ev.TripID)),
			zap.Error(err))
	}
}
