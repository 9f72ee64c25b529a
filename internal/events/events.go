// Package events defines the message contract shared by every service on the
// parking event bus. Payloads carry no type tag; the routing key decides the schema.
package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Routing keys. These strings are part of the wire contract with peer services.
const (
	RoutingKeyReservationCreated = "reservation.created"
	RoutingKeySensorOccupied     = "sensor.occupied"
	RoutingKeySensorFreed        = "sensor.freed"
)

// Binding patterns used by the consumers.
const (
	PatternSensor      = "sensor.*"
	PatternAll         = "#"
	PatternReservation = RoutingKeyReservationCreated
)

var (
	ErrUnknownRoutingKey = errors.New("unknown routing key")
	ErrInvalidPayload    = errors.New("invalid event payload")
)

// Event is implemented by every payload variant.
type Event interface {
	RoutingKey() string
	validate() error
}

// ReservationCreated is published once a reservation has been stored.
type ReservationCreated struct {
	ReservationID string    `json:"reservationId"`
	SpotID        string    `json:"spotId"`
	UserID        string    `json:"userId"`
	StartTime     time.Time `json:"startTime"`
	EndTime       time.Time `json:"endTime"`
}

func (ReservationCreated) RoutingKey() string { return RoutingKeyReservationCreated }

// UnmarshalJSON accepts the date forms other services publish, not only RFC 3339.
func (e *ReservationCreated) UnmarshalJSON(b []byte) error {
	type wire ReservationCreated
	aux := struct {
		*wire
		StartTime Timestamp `json:"startTime"`
		EndTime   Timestamp `json:"endTime"`
	}{wire: (*wire)(e)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	e.StartTime, e.EndTime = aux.StartTime.Time, aux.EndTime.Time
	return nil
}

func (e ReservationCreated) validate() error {
	if e.ReservationID == "" {
		return fmt.Errorf("%w: reservationId is required", ErrInvalidPayload)
	}
	if e.SpotID == "" {
		return fmt.Errorf("%w: spotId is required", ErrInvalidPayload)
	}
	return nil
}

// SensorOccupied reports a vehicle detected on a spot.
type SensorOccupied struct {
	SpotID    string    `json:"spotId"`
	VehicleID string    `json:"vehicleId,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func (SensorOccupied) RoutingKey() string { return RoutingKeySensorOccupied }

func (e *SensorOccupied) UnmarshalJSON(b []byte) error {
	type wire SensorOccupied
	aux := struct {
		*wire
		Timestamp Timestamp `json:"timestamp"`
	}{wire: (*wire)(e)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	e.Timestamp = aux.Timestamp.Time
	return nil
}

func (e SensorOccupied) validate() error {
	if e.SpotID == "" {
		return fmt.Errorf("%w: spotId is required", ErrInvalidPayload)
	}
	return nil
}

// SensorFreed reports a spot becoming free.
type SensorFreed struct {
	SpotID    string    `json:"spotId"`
	Timestamp time.Time `json:"timestamp"`
}

func (SensorFreed) RoutingKey() string { return RoutingKeySensorFreed }

func (e *SensorFreed) UnmarshalJSON(b []byte) error {
	type wire SensorFreed
	aux := struct {
		*wire
		Timestamp Timestamp `json:"timestamp"`
	}{wire: (*wire)(e)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	e.Timestamp = aux.Timestamp.Time
	return nil
}

func (e SensorFreed) validate() error {
	if e.SpotID == "" {
		return fmt.Errorf("%w: spotId is required", ErrInvalidPayload)
	}
	return nil
}

// Envelope is what a consumer handler receives: the decoded payload, the routing
// key it was published with, and the broker's delivery metadata.
type Envelope struct {
	RoutingKey  string
	Event       Event
	DeliveryTag uint64
	Redelivered bool
}

// Encode serializes an event into its routing key and JSON body.
func Encode(e Event) (string, []byte, error) {
	if e == nil {
		return "", nil, fmt.Errorf("%w: nil event", ErrInvalidPayload)
	}
	if err := e.validate(); err != nil {
		return "", nil, err
	}
	body, err := json.Marshal(e)
	if err != nil {
		return "", nil, fmt.Errorf("failed to marshal %s: %w", e.RoutingKey(), err)
	}
	return e.RoutingKey(), body, nil
}

// Decode parses body using the schema associated with routingKey.
func Decode(routingKey string, body []byte) (Event, error) {
	var (
		event Event
		err   error
	)
	switch routingKey {
	case RoutingKeyReservationCreated:
		var e ReservationCreated
		err = json.Unmarshal(body, &e)
		event = e
	case RoutingKeySensorOccupied:
		var e SensorOccupied
		err = json.Unmarshal(body, &e)
		event = e
	case RoutingKeySensorFreed:
		var e SensorFreed
		err = json.Unmarshal(body, &e)
		event = e
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownRoutingKey, routingKey)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidPayload, routingKey, err)
	}
	if err := event.validate(); err != nil {
		return nil, err
	}
	return event, nil
}
