package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/marminbh/parking-svc/internal/models"
)

type GormSpotStore struct {
	db *gorm.DB
}

func NewGormSpotStore(db *gorm.DB) *GormSpotStore {
	return &GormSpotStore{db: db}
}

func (s *GormSpotStore) List(ctx context.Context) ([]models.Spot, error) {
	var spots []models.Spot
	if err := s.db.WithContext(ctx).Order("created_at").Find(&spots).Error; err != nil {
		return nil, fmt.Errorf("failed to list spots: %w", err)
	}
	return spots, nil
}

func (s *GormSpotStore) Get(ctx context.Context, id uuid.UUID) (*models.Spot, error) {
	var spot models.Spot
	err := s.db.WithContext(ctx).First(&spot, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get spot %s: %w", id, err)
	}
	return &spot, nil
}

func (s *GormSpotStore) Create(ctx context.Context, spot *models.Spot) error {
	if err := s.db.WithContext(ctx).Create(spot).Error; err != nil {
		return fmt.Errorf("failed to create spot: %w", err)
	}
	return nil
}

func (s *GormSpotStore) SetOccupied(ctx context.Context, id uuid.UUID, occupied bool) error {
	result := s.db.WithContext(ctx).
		Model(&models.Spot{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"is_occupied": occupied,
			"updated_at":  time.Now().UTC(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update spot %s: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

type GormReservationStore struct {
	db *gorm.DB
}

func NewGormReservationStore(db *gorm.DB) *GormReservationStore {
	return &GormReservationStore{db: db}
}

func (s *GormReservationStore) List(ctx context.Context) ([]models.Reservation, error) {
	var reservations []models.Reservation
	if err := s.db.WithContext(ctx).Order("created_at").Find(&reservations).Error; err != nil {
		return nil, fmt.Errorf("failed to list reservations: %w", err)
	}
	return reservations, nil
}

func (s *GormReservationStore) Create(ctx context.Context, r *models.Reservation) error {
	if err := s.db.WithContext(ctx).Create(r).Error; err != nil {
		return fmt.Errorf("failed to create reservation: %w", err)
	}
	return nil
}

func (s *GormReservationStore) ListActiveBySpot(ctx context.Context, spotID string) ([]models.Reservation, error) {
	var reservations []models.Reservation
	err := s.db.WithContext(ctx).
		Where("spot_id = ? AND status = ?", spotID, models.ReservationActive).
		Order("start_time").
		Find(&reservations).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list reservations for spot %s: %w", spotID, err)
	}
	return reservations, nil
}

type GormBillStore struct {
	db *gorm.DB
}

func NewGormBillStore(db *gorm.DB) *GormBillStore {
	return &GormBillStore{db: db}
}

func (s *GormBillStore) List(ctx context.Context) ([]models.Bill, error) {
	var bills []models.Bill
	if err := s.db.WithContext(ctx).Order("created_at").Find(&bills).Error; err != nil {
		return nil, fmt.Errorf("failed to list bills: %w", err)
	}
	return bills, nil
}

func (s *GormBillStore) Create(ctx context.Context, b *models.Bill) error {
	if err := s.db.WithContext(ctx).Create(b).Error; err != nil {
		return fmt.Errorf("failed to create bill: %w", err)
	}
	return nil
}

func (s *GormBillStore) ListByReservation(ctx context.Context, reservationID string) ([]models.Bill, error) {
	var bills []models.Bill
	err := s.db.WithContext(ctx).Where("reservation_id = ?", reservationID).Order("created_at").Find(&bills).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list bills for reservation %s: %w", reservationID, err)
	}
	return bills, nil
}
