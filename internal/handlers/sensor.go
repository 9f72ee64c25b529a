package handlers

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/marminbh/parking-svc/internal/rabbitmq"
	"github.com/marminbh/parking-svc/internal/sensor"
)

// SensorRequest is the body of the simulated sensor endpoints
type SensorRequest struct {
	SpotID    string `json:"spotId"`
	VehicleID string `json:"vehicleId,omitempty"`
}

type SensorHandler struct {
	Sensor *sensor.Service
	Logger *zap.Logger
}

func NewSensorHandler(svc *sensor.Service, logger *zap.Logger) *SensorHandler {
	return &SensorHandler{Sensor: svc, Logger: logger}
}

// Occupied handles POST /events/occupied
func (h *SensorHandler) Occupied(c *fiber.Ctx) error {
	req, msg := parseSensorRequest(c)
	if msg != "" {
		return errorResponse(c, fiber.StatusBadRequest, msg)
	}
	event, err := h.Sensor.ReportOccupied(c.UserContext(), req.SpotID, req.VehicleID)
	return h.respond(c, event, err)
}

// Freed handles POST /events/freed
func (h *SensorHandler) Freed(c *fiber.Ctx) error {
	req, msg := parseSensorRequest(c)
	if msg != "" {
		return errorResponse(c, fiber.StatusBadRequest, msg)
	}
	event, err := h.Sensor.ReportFreed(c.UserContext(), req.SpotID)
	return h.respond(c, event, err)
}

// parseSensorRequest returns the request body, or a client error message.
func parseSensorRequest(c *fiber.Ctx) (SensorRequest, string) {
	var req SensorRequest
	if err := c.BodyParser(&req); err != nil {
		return req, "invalid request body"
	}
	req.SpotID = strings.TrimSpace(req.SpotID)
	if req.SpotID == "" {
		return req, "spotId is required"
	}
	return req, ""
}

func (h *SensorHandler) respond(c *fiber.Ctx, event any, err error) error {
	switch {
	case errors.Is(err, rabbitmq.ErrNotConnected), errors.Is(err, rabbitmq.ErrClosed):
		return errorResponse(c, fiber.StatusInternalServerError, "RabbitMQ not connected")
	case err != nil:
		h.Logger.Error("Failed to publish sensor event", zap.Error(err))
		return errorResponse(c, fiber.StatusInternalServerError, "Error publishing event")
	}
	return c.JSON(fiber.Map{
		"status": "published",
		"event":  event,
	})
}
