package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/cardfund/cardfund/internal/rates"
)

// RegisterRateRoutes wires rate lookup endpoints.
func RegisterRateRoutes(r fiber.Router, h *rates.Handler) {
	r.Get("/rates", h.GetRates)
}
