package natsadapter

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/geowire/internal/core/domain"
	"github.com/samirrijal/geowire/internal/pkg/metrics"
)

// Subscriber implements ports.EventSubscriber using NATS JetStream.
type Subscriber struct {
	conn    *nats.Conn
	js      nats.JetStreamContext
	durable string
	subs    []*nats.Subscription
}

// NewSubscriber creates a subscriber. durable names the consumer so that
// restarts resume where the previous process stopped.
func NewSubscriber(url, durable string) (*Subscriber, error) {
	conn, err := RawConn(url)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	js, err := conn.JetStream()
	if err != nil {
		return nil, fmt.Errorf("jetstream: %w", err)
	}
	return &Subscriber{conn: conn, js: js, durable: durable}, nil
}

// SubscribeFeatureEvents delivers events for layer, or all layers when
// layer is empty. Failed handlers are redelivered up to three times.
func (s *Subscriber) SubscribeFeatureEvents(ctx context.Context, layer string, handler func(ctx context.Context, ev *domain.FeatureEvent) error) error {
	subject := LayerSubject(layer)
	durable := s.durable
	if layer != "" {
		durable += "-" + layer
	}

	sub, err := s.js.Subscribe(subject, func(msg *nats.Msg) {
		ev, err := DecodeEvent(msg.Data)
		if err != nil {
			slog.Error("undecodable feature event", "subject", msg.Subject, "error", err)
			metrics.FeatureEventsConsumed.WithLabelValues("unknown", "invalid").Inc()
			// redelivery cannot fix a malformed payload
			_ = msg.Term()
			return
		}
		if err := handler(ctx, ev); err != nil {
			slog.Warn("feature event handler failed", "id", ev.FeatureID, "kind", ev.Kind, "error", err)
			metrics.FeatureEventsConsumed.WithLabelValues(string(ev.Kind), "error").Inc()
			_ = msg.Nak()
			return
		}
		metrics.FeatureEventsConsumed.WithLabelValues(string(ev.Kind), "ok").Inc()
		_ = msg.Ack()
	},
		nats.Durable(durable),
		nats.ManualAck(),
		nats.MaxDeliver(3),
		nats.BindStream(streamName),
	)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", subject, err)
	}
	s.subs = append(s.subs, sub)
	return nil
}

// Close unsubscribes and drains.
func (s *Subscriber) Close() {
	for _, sub := range s.subs {
		_ = sub.Unsubscribe()
	}
	_ = s.conn.Drain()
}
