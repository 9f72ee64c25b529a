// Package spots owns the parking spot inventory and keeps occupancy in step
// with sensor events.
package spots

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/marminbh/parking-svc/internal/events"
	"github.com/marminbh/parking-svc/internal/models"
	"github.com/marminbh/parking-svc/internal/repository"
	"github.com/marminbh/parking-svc/internal/utils"
)

var (
	ErrSpotNotFound = errors.New("spot not found")
	ErrInvalidSpot  = errors.New("invalid spot")
)

// CreateSpotRequest is the body of POST /spots.
type CreateSpotRequest struct {
	Location     string  `json:"location"`
	Type         string  `json:"type"`
	PricePerHour float64 `json:"pricePerHour"`
}

type Service struct {
	store  repository.SpotStore
	logger *zap.Logger
}

func NewService(store repository.SpotStore, logger *zap.Logger) *Service {
	return &Service{store: store, logger: logger}
}

func (s *Service) List(ctx context.Context) ([]models.Spot, error) {
	return s.store.List(ctx)
}

// Get looks a spot up by UUID or legacy object id.
func (s *Service) Get(ctx context.Context, rawID string) (*models.Spot, error) {
	id, err := utils.ParseID(rawID)
	if err != nil {
		return nil, ErrSpotNotFound
	}
	spot, err := s.store.Get(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrSpotNotFound
	}
	return spot, err
}

func (s *Service) Create(ctx context.Context, req CreateSpotRequest) (*models.Spot, error) {
	location := strings.TrimSpace(req.Location)
	if location == "" {
		return nil, fmt.Errorf("%w: location is required", ErrInvalidSpot)
	}
	spotType, err := models.ParseSpotType(req.Type)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSpot, err)
	}
	if req.PricePerHour < 0 {
		return nil, fmt.Errorf("%w: pricePerHour must not be negative", ErrInvalidSpot)
	}

	spot := &models.Spot{
		Location:     location,
		Type:         spotType,
		PricePerHour: req.PricePerHour,
	}
	if err := s.store.Create(ctx, spot); err != nil {
		return nil, err
	}
	s.logger.Info("Spot created", zap.String("spot_id", spot.ID.String()), zap.String("location", spot.Location))
	return spot, nil
}

// HandleEvent applies sensor.occupied and sensor.freed. Both are plain
// overwrites, so a repeated delivery leaves the spot in the same state. Events
// for spots this service does not know are logged and acknowledged.
func (s *Service) HandleEvent(ctx context.Context, env events.Envelope) error {
	var (
		spotID   string
		occupied bool
	)
	switch e := env.Event.(type) {
	case events.SensorOccupied:
		spotID, occupied = e.SpotID, true
	case events.SensorFreed:
		spotID, occupied = e.SpotID, false
	default:
		s.logger.Warn("Ignoring event", zap.String("routing_key", env.RoutingKey))
		return nil
	}

	id, err := utils.ParseID(spotID)
	if err != nil {
		s.logger.Warn("Sensor event for malformed spot id", zap.String("spot_id", spotID))
		return nil
	}

	err = s.store.SetOccupied(ctx, id, occupied)
	if errors.Is(err, repository.ErrNotFound) {
		s.logger.Warn("Sensor event for unknown spot", zap.String("spot_id", spotID))
		return nil
	}
	if err != nil {
		return err
	}

	s.logger.Info("Spot occupancy updated",
		zap.String("spot_id", spotID),
		zap.Bool("occupied", occupied),
	)
	return nil
}
