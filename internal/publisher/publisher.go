package publisher

import (
	"context"

	"go.uber.org/zap"

	"github.com/marminbh/parking-svc/internal/events"
	"github.com/marminbh/parking-svc/internal/metrics"
)

// Bus publishes raw bodies. *rabbitmq.Connection satisfies it.
type Bus interface {
	Publish(ctx context.Context, routingKey string, body []byte) error
}

// EventPublisher encodes events and hands them to the bus. It neither retries
// nor buffers: a failed publish is reported to the caller and the event is gone.
type EventPublisher struct {
	bus     Bus
	logger  *zap.Logger
	metrics *metrics.Metrics
}

func New(bus Bus, logger *zap.Logger, m *metrics.Metrics) *EventPublisher {
	return &EventPublisher{bus: bus, logger: logger, metrics: m}
}

// Publish sends e under its own routing key.
func (p *EventPublisher) Publish(ctx context.Context, e events.Event) error {
	routingKey, body, err := events.Encode(e)
	if err != nil {
		return err
	}

	err = p.bus.Publish(ctx, routingKey, body)
	p.metrics.Published(routingKey, err)
	if err != nil {
		p.logger.Warn("Failed to publish event",
			zap.String("routing_key", routingKey),
			zap.Error(err),
		)
		return err
	}

	p.logger.Info("Published event", zap.String("routing_key", routingKey))
	return nil
}
