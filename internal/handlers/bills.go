package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/marminbh/parking-svc/internal/billing"
)

type BillsHandler struct {
	Billing *billing.Service
	Logger  *zap.Logger
}

func NewBillsHandler(svc *billing.Service, logger *zap.Logger) *BillsHandler {
	return &BillsHandler{Billing: svc, Logger: logger}
}

// List handles GET /bills
func (h *BillsHandler) List(c *fiber.Ctx) error {
	bills, err := h.Billing.List(c.UserContext())
	if err != nil {
		h.Logger.Error("Failed to list bills", zap.Error(err))
		return errorResponse(c, fiber.StatusInternalServerError, "Error listing bills")
	}
	return c.JSON(bills)
}
