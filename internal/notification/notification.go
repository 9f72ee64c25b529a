package notification

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/marminbh/parking-svc/internal/events"
)

// Service handles every event bound with "#".
type Service struct {
	notifiers []Notifier
	logger    *zap.Logger
}

func NewService(logger *zap.Logger, notifiers ...Notifier) *Service {
	return &Service{notifiers: notifiers, logger: logger}
}

// HandleEvent logs the event and runs every notifier. A failing notifier is
// logged and does not fail the delivery: alerts are best effort.
func (s *Service) HandleEvent(ctx context.Context, env events.Envelope) error {
	s.logger.Info("Received event",
		zap.String("routing_key", env.RoutingKey),
		zap.Uint64("delivery_tag", env.DeliveryTag),
	)

	alert := Alert{RoutingKey: env.RoutingKey, Event: env.Event, ReceivedAt: time.Now().UTC()}
	for _, n := range s.notifiers {
		if err := n.Notify(ctx, alert); err != nil {
			s.logger.Warn("Notifier failed",
				zap.String("routing_key", env.RoutingKey),
				zap.Error(err),
			)
		}
	}
	return nil
}
