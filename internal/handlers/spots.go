package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/marminbh/parking-svc/internal/spots"
)

// SpotsHandler serves the spot inventory
type SpotsHandler struct {
	Spots  *spots.Service
	Logger *zap.Logger
}

func NewSpotsHandler(svc *spots.Service, logger *zap.Logger) *SpotsHandler {
	return &SpotsHandler{Spots: svc, Logger: logger}
}

// List handles GET /spots
func (h *SpotsHandler) List(c *fiber.Ctx) error {
	all, err := h.Spots.List(c.UserContext())
	if err != nil {
		h.Logger.Error("Failed to list spots", zap.Error(err))
		return errorResponse(c, fiber.StatusInternalServerError, "Error listing spots")
	}
	return c.JSON(all)
}

// Get handles GET /spots/:id
func (h *SpotsHandler) Get(c *fiber.Ctx) error {
	spot, err := h.Spots.Get(c.UserContext(), c.Params("id"))
	if errors.Is(err, spots.ErrSpotNotFound) {
		return errorResponse(c, fiber.StatusNotFound, "Spot not found")
	}
	if err != nil {
		h.Logger.Error("Failed to get spot", zap.String("spot_id", c.Params("id")), zap.Error(err))
		return errorResponse(c, fiber.StatusInternalServerError, "Error fetching spot")
	}
	return c.JSON(spot)
}

// Create handles POST /spots
func (h *SpotsHandler) Create(c *fiber.Ctx) error {
	var req spots.CreateSpotRequest
	if err := c.BodyParser(&req); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "invalid request body")
	}

	spot, err := h.Spots.Create(c.UserContext(), req)
	if errors.Is(err, spots.ErrInvalidSpot) {
		return errorResponse(c, fiber.StatusBadRequest, err.Error())
	}
	if err != nil {
		h.Logger.Error("Failed to create spot", zap.Error(err))
		return errorResponse(c, fiber.StatusInternalServerError, "Error creating spot")
	}
	return c.Status(fiber.StatusCreated).JSON(spot)
}
