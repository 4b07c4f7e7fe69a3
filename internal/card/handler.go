package card

import (
	"errors"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
)

// Handler exposes card registration and freeze endpoints.
type Handler struct {
	service *Service
}

// NewHandler constructs a card handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type createRequest struct {
	HolderID string         `json:"holder_id"`
	Limits   *limitsRequest `json:"limits,omitempty"`
}

type limitsRequest struct {
	SingleCents  int64 `json:"single_limit_cents"`
	DailyCents   int64 `json:"daily_limit_cents"`
	MonthlyCents int64 `json:"monthly_limit_cents"`
	MaxPerHour   int   `json:"max_tx_per_hour"`
}

type freezeRequest struct {
	Reason string `json:"reason"`
}

type cardResponse struct {
	CardID    string    `json:"card_id"`
	HolderID  string    `json:"holder_id"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// Create registers a new card.
func (h *Handler) Create(c *fiber.Ctx) error {
	var req createRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	input := CreateInput{HolderID: req.HolderID}
	if req.Limits != nil {
		input.Limits = &Limits{
			SingleCents:  req.Limits.SingleCents,
			DailyCents:   req.Limits.DailyCents,
			MonthlyCents: req.Limits.MonthlyCents,
			MaxPerHour:   req.Limits.MaxPerHour,
		}
	}

	created, err := h.service.Create(c.UserContext(), input)
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	return c.Status(http.StatusCreated).JSON(cardResponse{
		CardID:    created.ID,
		HolderID:  created.HolderID,
		Status:    created.Status,
		CreatedAt: created.CreatedAt,
	})
}

// Freeze blocks a card.
func (h *Handler) Freeze(c *fiber.Ctx) error {
	var req freezeRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err := h.service.Freeze(c.UserContext(), c.Params("cardId"), req.Reason); err != nil {
		if errors.Is(err, ErrNotFound) {
			return fiber.NewError(http.StatusNotFound, err.Error())
		}
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.SendStatus(http.StatusNoContent)
}
