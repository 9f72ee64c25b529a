package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/marminbh/parking-svc/internal/models"
	"github.com/marminbh/parking-svc/internal/reservations"
)

// ReservationsHandler serves reservation creation and listing
type ReservationsHandler struct {
	Reservations *reservations.Service
	Logger       *zap.Logger
}

func NewReservationsHandler(svc *reservations.Service, logger *zap.Logger) *ReservationsHandler {
	return &ReservationsHandler{Reservations: svc, Logger: logger}
}

// Create handles POST /reservations
func (h *ReservationsHandler) Create(c *fiber.Ctx) error {
	var req reservations.CreateRequest
	if err := c.BodyParser(&req); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "invalid request body")
	}

	reservation, err := h.Reservations.Create(c.UserContext(), req)
	if err != nil {
		return h.createError(c, reservation, err)
	}
	return c.JSON(reservation)
}

func (h *ReservationsHandler) createError(c *fiber.Ctx, reservation *models.Reservation, err error) error {
	switch {
	case errors.Is(err, reservations.ErrInvalidReservation):
		return errorResponse(c, fiber.StatusBadRequest, err.Error())
	case errors.Is(err, reservations.ErrSpotNotAvailable):
		return errorResponse(c, fiber.StatusBadRequest, "Spot is not available")
	case errors.Is(err, reservations.ErrSpotNotFound):
		return errorResponse(c, fiber.StatusNotFound, "Spot not found")
	case errors.Is(err, reservations.ErrSpotAlreadyBooked), errors.Is(err, reservations.ErrSpotBusy):
		return errorResponse(c, fiber.StatusConflict, err.Error())
	case errors.Is(err, reservations.ErrEventNotPublished) && reservation != nil:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":         "Reservation stored but reservation.created was not published",
			"reservationId": reservation.ID.String(),
		})
	}

	h.Logger.Error("Failed to create reservation", zap.Error(err))
	return errorResponse(c, fiber.StatusInternalServerError, "Error creating reservation")
}

// List handles GET /reservations
func (h *ReservationsHandler) List(c *fiber.Ctx) error {
	all, err := h.Reservations.List(c.UserContext())
	if err != nil {
		h.Logger.Error("Failed to list reservations", zap.Error(err))
		return errorResponse(c, fiber.StatusInternalServerError, "Error listing reservations")
	}
	return c.JSON(all)
}
