package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/cardfund/cardfund/internal/card"
)

// RegisterCardRoutes wires card registration and freeze endpoints.
func RegisterCardRoutes(r fiber.Router, h *card.Handler) {
	r.Post("/cards", h.Create)
	r.Post("/cards/:cardId/freeze", h.Freeze)
}
