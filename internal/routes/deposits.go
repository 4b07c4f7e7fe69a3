package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/cardfund/cardfund/internal/processing"
)

// RegisterDepositRoutes wires deposit processing endpoints, including the
// confirmation-monitor callback.
func RegisterDepositRoutes(r fiber.Router, h *processing.Handler) {
	r.Post("/deposits", h.Deposit)
	r.Get("/deposits/:processingId", h.Get)
	r.Post("/deposits/:processingId/confirmations", h.Confirm)
	r.Post("/deposits/:processingId/accelerate", h.Accelerate)
}
