package fraud

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
)

// Handler exposes administrative risk endpoints.
type Handler struct {
	engine *Engine
}

// NewHandler constructs a fraud handler.
func NewHandler(engine *Engine) *Handler {
	return &Handler{engine: engine}
}

type riskUpdateRequest struct {
	Address string `json:"address"`
	Level   string `json:"level"`
}

// UpsertAddressRisk applies an administrative risk update to an address.
func (h *Handler) UpsertAddressRisk(c *fiber.Ctx) error {
	var req riskUpdateRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if req.Address == "" {
		return fiber.NewError(http.StatusBadRequest, "address is required")
	}
	if err := h.engine.UpsertAddressRisk(c.UserContext(), req.Address, req.Level); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	return c.SendStatus(http.StatusNoContent)
}
