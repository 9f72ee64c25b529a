// Package sensor turns simulated sensor readings into bus events.
package sensor

import (
	"context"
	"time"

	"github.com/marminbh/parking-svc/internal/events"
)

type Publisher interface {
	Publish(ctx context.Context, e events.Event) error
}

type Service struct {
	publisher Publisher
	now       func() time.Time
}

func NewService(publisher Publisher) *Service {
	return &Service{publisher: publisher, now: time.Now}
}

// ReportOccupied publishes sensor.occupied. Nothing is queued when the bus is down.
func (s *Service) ReportOccupied(ctx context.Context, spotID, vehicleID string) (events.SensorOccupied, error) {
	e := events.SensorOccupied{SpotID: spotID, VehicleID: vehicleID, Timestamp: s.now().UTC()}
	return e, s.publisher.Publish(ctx, e)
}

// ReportFreed publishes sensor.freed.
func (s *Service) ReportFreed(ctx context.Context, spotID string) (events.SensorFreed, error) {
	e := events.SensorFreed{SpotID: spotID, Timestamp: s.now().UTC()}
	return e, s.publisher.Publish(ctx, e)
}
