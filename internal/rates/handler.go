package rates

import (
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
)

// Handler exposes rate lookups over HTTP.
type Handler struct {
	aggregator *Aggregator
}

// NewHandler constructs a rates handler.
func NewHandler(aggregator *Aggregator) *Handler {
	return &Handler{aggregator: aggregator}
}

type rateResponse struct {
	USD         string `json:"usd"`
	LastUpdated string `json:"last_updated"`
	Stale       bool   `json:"stale,omitempty"`
}

// GetRates answers GET /rates?symbols=BTC,ETH with optional refresh=true.
func (h *Handler) GetRates(c *fiber.Ctx) error {
	raw := c.Query("symbols")
	if raw == "" {
		return fiber.NewError(http.StatusBadRequest, "symbols query parameter is required")
	}
	symbols := strings.Split(raw, ",")
	force := c.QueryBool("refresh")

	resolved := h.aggregator.GetRates(c.UserContext(), symbols, force)

	out := make(map[string]rateResponse, len(resolved))
	for symbol, rate := range resolved {
		out[symbol] = rateResponse{
			USD:         rate.USD.String(),
			LastUpdated: rate.LastUpdated.Format(time.RFC3339Nano),
			Stale:       rate.Stale,
		}
	}

	return c.JSON(fiber.Map{
		"rates":    out,
		"degraded": h.aggregator.Degraded(),
	})
}
