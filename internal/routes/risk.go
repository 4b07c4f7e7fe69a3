package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/cardfund/cardfund/internal/fraud"
)

// RegisterRiskRoutes wires administrative risk management endpoints.
func RegisterRiskRoutes(r fiber.Router, h *fraud.Handler) {
	r.Post("/risk/addresses", h.UpsertAddressRisk)
}
