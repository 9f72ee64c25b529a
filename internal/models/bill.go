package models

import (
	"time"

	"github.com/google/uuid"
)

const BillStatusPending = "pending"

type Bill struct {
	ID            uuid.UUID `gorm:"type:uuid;primary_key" json:"_id"`
	ReservationID string    `gorm:"not null;index" json:"reservationId"`
	Amount        float64   `gorm:"type:numeric(10,2);not null" json:"amount"`
	Status        string    `gorm:"type:varchar(16);not null;default:'pending'" json:"status"`
	CreatedAt     time.Time `gorm:"not null" json:"createdAt"`
}

func (Bill) TableName() string {
	return "bill"
}
