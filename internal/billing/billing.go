// Package billing opens a bill for every reservation.created it receives.
package billing

import (
	"context"

	"go.uber.org/zap"

	"github.com/marminbh/parking-svc/internal/events"
	"github.com/marminbh/parking-svc/internal/models"
	"github.com/marminbh/parking-svc/internal/repository"
)

// DefaultFlatAmount is charged per reservation.
const DefaultFlatAmount = 50.0

type Service struct {
	store      repository.BillStore
	flatAmount float64
	logger     *zap.Logger
}

func NewService(store repository.BillStore, flatAmount float64, logger *zap.Logger) *Service {
	if flatAmount <= 0 {
		flatAmount = DefaultFlatAmount
	}
	return &Service{store: store, flatAmount: flatAmount, logger: logger}
}

func (s *Service) List(ctx context.Context) ([]models.Bill, error) {
	return s.store.List(ctx)
}

// HandleEvent creates a pending bill. Deliveries are not deduplicated: the
// same reservation.created delivered twice produces two bills.
func (s *Service) HandleEvent(ctx context.Context, env events.Envelope) error {
	created, ok := env.Event.(events.ReservationCreated)
	if !ok {
		s.logger.Warn("Ignoring event", zap.String("routing_key", env.RoutingKey))
		return nil
	}

	bill := &models.Bill{
		ReservationID: created.ReservationID,
		Amount:        s.flatAmount,
		Status:        models.BillStatusPending,
	}
	if err := s.store.Create(ctx, bill); err != nil {
		return err
	}

	s.logger.Info("Bill created for reservation",
		zap.String("reservation_id", created.ReservationID),
		zap.String("bill_id", bill.ID.String()),
		zap.Float64("amount", bill.Amount),
		zap.Bool("redelivered", env.Redelivered),
	)
	return nil
}
