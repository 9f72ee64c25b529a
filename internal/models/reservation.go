package models

import (
	"time"

	"github.com/google/uuid"
)

// ReservationStatus is the lifecycle status of a reservation
type ReservationStatus string

const (
	ReservationActive    ReservationStatus = "active"
	ReservationCompleted ReservationStatus = "completed"
	ReservationCancelled ReservationStatus = "cancelled"
)

// Reservation is owned by the reservation service. SpotID references a spot in
// another service's store, so it is kept as an opaque string.
type Reservation struct {
	ID        uuid.UUID         `gorm:"type:uuid;primary_key" json:"_id"`
	SpotID    string            `gorm:"not null;index" json:"spotId"`
	UserID    string            `gorm:"not null" json:"userId"`
	StartTime time.Time         `gorm:"not null" json:"startTime"`
	EndTime   time.Time         `gorm:"not null" json:"endTime"`
	Status    ReservationStatus `gorm:"type:varchar(16);not null;default:'active'" json:"status"`
	CreatedAt time.Time         `gorm:"not null" json:"createdAt"`
}

func (Reservation) TableName() string {
	return "reservation"
}

// Overlaps reports whether the reservation's window intersects [start, end).
func (r Reservation) Overlaps(start, end time.Time) bool {
	return r.StartTime.Before(end) && start.Before(r.EndTime)
}
