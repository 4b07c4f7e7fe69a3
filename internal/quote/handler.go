package quote

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

// Handler exposes HTTP endpoints for conversion quotes.
type Handler struct {
	service *Service
}

// NewHandler constructs a quote handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Calculate prices a conversion and issues a quote.
func (h *Handler) Calculate(c *fiber.Ctx) error {
	var req CalculateRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	slippage := decimal.Zero
	if req.SlippageLimit != "" {
		parsed, err := decimal.NewFromString(req.SlippageLimit)
		if err != nil {
			return fiber.NewError(http.StatusBadRequest, "invalid slippage_limit")
		}
		slippage = parsed
	}

	q, err := h.service.CalculateConversion(c.UserContext(), req.FromAsset, req.TargetCents, slippage)
	if err != nil {
		return mapError(err)
	}
	return c.Status(http.StatusCreated).JSON(toQuoteResponse(q))
}

// Get returns an active, unexpired quote by ID.
func (h *Handler) Get(c *fiber.Ctx) error {
	q, err := h.service.GetQuote(c.UserContext(), c.Params("quoteId"))
	if err != nil {
		return mapError(err)
	}
	return c.JSON(toQuoteResponse(q))
}

// Cancel expires an active quote.
func (h *Handler) Cancel(c *fiber.Ctx) error {
	if err := h.service.CancelQuote(c.UserContext(), c.Params("quoteId")); err != nil {
		return mapError(err)
	}
	return c.SendStatus(http.StatusNoContent)
}

// Compare ranks assets by cost efficiency for a USD target.
func (h *Handler) Compare(c *fiber.Ctx) error {
	targetCents := int64(c.QueryInt("target_usd_cents"))
	var symbols []string
	if raw := c.Query("symbols"); raw != "" {
		symbols = strings.Split(raw, ",")
	}

	result, err := h.service.CompareRates(c.UserContext(), targetCents, symbols)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(toComparisonResponse(result))
}

func mapError(err error) error {
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return fiber.NewError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrRateUnavailable):
		return fiber.NewError(http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, ErrQuoteNotRedeemable):
		return fiber.NewError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrNotFound):
		return fiber.NewError(http.StatusNotFound, err.Error())
	default:
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
}
