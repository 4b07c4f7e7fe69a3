package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/cardfund/cardfund/internal/quote"
)

// RegisterQuoteRoutes wires conversion quote endpoints. The compare route
// registers before the parameterized lookup so "compare" never binds as an ID.
func RegisterQuoteRoutes(r fiber.Router, h *quote.Handler) {
	r.Get("/quotes/compare", h.Compare)
	r.Post("/quotes", h.Calculate)
	r.Get("/quotes/:quoteId", h.Get)
	r.Post("/quotes/:quoteId/cancel", h.Cancel)
}
