// Package repository persists spots, reservations and bills. Each service owns
// exactly one of these stores; nothing is shared across service databases.
package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/marminbh/parking-svc/internal/models"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("record not found")

type SpotStore interface {
	List(ctx context.Context) ([]models.Spot, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Spot, error)
	Create(ctx context.Context, spot *models.Spot) error
	// SetOccupied overwrites the occupancy flag. Repeating the call with the
	// same value leaves the record unchanged.
	SetOccupied(ctx context.Context, id uuid.UUID, occupied bool) error
}

type ReservationStore interface {
	List(ctx context.Context) ([]models.Reservation, error)
	Create(ctx context.Context, r *models.Reservation) error
	ListActiveBySpot(ctx context.Context, spotID string) ([]models.Reservation, error)
}

type BillStore interface {
	List(ctx context.Context) ([]models.Bill, error)
	Create(ctx context.Context, b *models.Bill) error
	ListByReservation(ctx context.Context, reservationID string) ([]models.Bill, error)
}
