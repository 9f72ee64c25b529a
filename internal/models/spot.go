package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// SpotType is the category of a parking spot
type SpotType string

const (
	SpotTypeStandard SpotType = "standard"
	SpotTypeDisabled SpotType = "disabled"
	SpotTypeEV       SpotType = "ev"
)

// ParseSpotType parses a string into a SpotType. An empty string yields the default.
func ParseSpotType(name string) (SpotType, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return SpotTypeStandard, nil
	}

	for _, t := range []SpotType{SpotTypeStandard, SpotTypeDisabled, SpotTypeEV} {
		if string(t) == name {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown spot type: %s", name)
}

// Spot is owned by the spot inventory service. IsOccupied is driven by sensor events.
type Spot struct {
	ID           uuid.UUID `gorm:"type:uuid;primary_key" json:"_id"`
	Location     string    `gorm:"not null" json:"location"`
	IsOccupied   bool      `gorm:"not null;default:false" json:"isOccupied"`
	Type         SpotType  `gorm:"type:varchar(16);not null;default:'standard'" json:"type"`
	PricePerHour float64   `gorm:"type:numeric(10,2);not null;default:0" json:"pricePerHour"`
	CreatedAt    time.Time `gorm:"not null" json:"createdAt"`
	UpdatedAt    time.Time `gorm:"not null" json:"updatedAt"`
}

func (Spot) TableName() string {
	return "parking_spot"
}
