// Package reservations creates reservations after a synchronous availability
// check against the spot inventory service and announces them on the bus.
//
// In the default race mode the check and the write are not atomic: two
// concurrent requests for a free spot can both succeed. Lease mode holds a
// per-spot lease across the check, an overlap check against this service's
// active reservations, the write and the publish.
package reservations

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/marminbh/parking-svc/internal/events"
	"github.com/marminbh/parking-svc/internal/lock"
	"github.com/marminbh/parking-svc/internal/models"
	"github.com/marminbh/parking-svc/internal/repository"
)

var (
	ErrInvalidReservation = errors.New("invalid reservation")
	ErrSpotNotFound       = errors.New("spot not found")
	ErrSpotNotAvailable   = errors.New("spot is not available")
	ErrSpotAlreadyBooked  = errors.New("spot already reserved for an overlapping window")
	ErrSpotBusy           = errors.New("spot is being reserved by another request")
	// ErrEventNotPublished means the reservation was stored but reservation.created
	// never reached the bus. The reservation is not rolled back.
	ErrEventNotPublished = errors.New("reservation stored but event not published")
)

// SpotStatus is the part of a spot the availability check reads.
type SpotStatus struct {
	ID         string `json:"_id"`
	IsOccupied bool   `json:"isOccupied"`
}

// SpotChecker reads a spot's current state from its owning service. It returns
// ErrSpotNotFound when the spot does not exist.
type SpotChecker interface {
	GetSpot(ctx context.Context, spotID string) (*SpotStatus, error)
}

// Locker grants per-spot leases.
type Locker interface {
	Acquire(ctx context.Context, spotID string) (lock.Lease, error)
}

type Publisher interface {
	Publish(ctx context.Context, e events.Event) error
}

// CreateRequest is the body of POST /reservations.
type CreateRequest struct {
	SpotID    string    `json:"spotId"`
	UserID    string    `json:"userId"`
	StartTime time.Time `json:"startTime"`
	EndTime   time.Time `json:"endTime"`
}

// UnmarshalJSON accepts zone-less ISO date-times and plain dates as well as
// RFC 3339, matching what clients of the reservation API have always sent.
func (r *CreateRequest) UnmarshalJSON(b []byte) error {
	type wire CreateRequest
	aux := struct {
		*wire
		StartTime events.Timestamp `json:"startTime"`
		EndTime   events.Timestamp `json:"endTime"`
	}{wire: (*wire)(r)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	r.StartTime, r.EndTime = aux.StartTime.Time, aux.EndTime.Time
	return nil
}

func (r CreateRequest) validate() error {
	switch {
	case strings.TrimSpace(r.SpotID) == "":
		return fmt.Errorf("%w: spotId is required", ErrInvalidReservation)
	case strings.TrimSpace(r.UserID) == "":
		return fmt.Errorf("%w: userId is required", ErrInvalidReservation)
	case r.StartTime.IsZero() || r.EndTime.IsZero():
		return fmt.Errorf("%w: startTime and endTime are required", ErrInvalidReservation)
	case !r.EndTime.After(r.StartTime):
		return fmt.Errorf("%w: endTime must be after startTime", ErrInvalidReservation)
	}
	return nil
}

type Service struct {
	spots     SpotChecker
	store     repository.ReservationStore
	publisher Publisher
	locker    Locker
	logger    *zap.Logger
}

// NewService builds a race-mode service. Use WithLocker to switch to lease mode.
func NewService(spots SpotChecker, store repository.ReservationStore, publisher Publisher, logger *zap.Logger) *Service {
	return &Service{
		spots:     spots,
		store:     store,
		publisher: publisher,
		logger:    logger,
	}
}

// WithLocker enables lease mode.
func (s *Service) WithLocker(l Locker) *Service {
	s.locker = l
	return s
}

// Mode reports the consistency mode in effect.
func (s *Service) Mode() string {
	if s.locker != nil {
		return "lease"
	}
	return "race"
}

func (s *Service) List(ctx context.Context) ([]models.Reservation, error) {
	return s.store.List(ctx)
}

// Create checks the spot, stores the reservation and publishes
// reservation.created exactly once. When the publish fails the stored
// reservation is returned together with an error wrapping ErrEventNotPublished.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*models.Reservation, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	if s.locker != nil {
		lease, err := s.locker.Acquire(ctx, req.SpotID)
		if errors.Is(err, lock.ErrNotObtained) {
			return nil, ErrSpotBusy
		}
		if err != nil {
			return nil, err
		}
		defer func() {
			if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
				s.logger.Error("Failed to release spot lease", zap.String("spot_id", req.SpotID), zap.Error(err))
			}
		}()
	}

	spot, err := s.spots.GetSpot(ctx, req.SpotID)
	if err != nil {
		if errors.Is(err, ErrSpotNotFound) {
			return nil, ErrSpotNotFound
		}
		return nil, fmt.Errorf("failed to check spot %s: %w", req.SpotID, err)
	}
	if spot.IsOccupied {
		return nil, ErrSpotNotAvailable
	}

	if s.locker != nil {
		active, err := s.store.ListActiveBySpot(ctx, req.SpotID)
		if err != nil {
			return nil, err
		}
		for _, r := range active {
			if r.Overlaps(req.StartTime, req.EndTime) {
				return nil, fmt.Errorf("%w: reservation %s", ErrSpotAlreadyBooked, r.ID)
			}
		}
	}

	reservation := &models.Reservation{
		SpotID:    req.SpotID,
		UserID:    req.UserID,
		StartTime: req.StartTime.UTC(),
		EndTime:   req.EndTime.UTC(),
		Status:    models.ReservationActive,
	}
	if err := s.store.Create(ctx, reservation); err != nil {
		return nil, err
	}

	s.logger.Info("Reservation created",
		zap.String("reservation_id", reservation.ID.String()),
		zap.String("spot_id", reservation.SpotID),
		zap.String("mode", s.Mode()),
	)

	err = s.publisher.Publish(ctx, events.ReservationCreated{
		ReservationID: reservation.ID.String(),
		SpotID:        reservation.SpotID,
		UserID:        reservation.UserID,
		StartTime:     reservation.StartTime,
		EndTime:       reservation.EndTime,
	})
	if err != nil {
		s.logger.Error("Reservation stored but reservation.created was not published",
			zap.String("reservation_id", reservation.ID.String()),
			zap.Error(err),
		)
		return reservation, fmt.Errorf("%w: reservation %s: %v", ErrEventNotPublished, reservation.ID, err)
	}
	return reservation, nil
}
