package processing

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/cardfund/cardfund/internal/fraud"
	"github.com/cardfund/cardfund/internal/network"
	"github.com/cardfund/cardfund/internal/quote"
)

// Handler exposes HTTP endpoints for deposit processing.
type Handler struct {
	service *Service
}

// NewHandler constructs a processing handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Deposit submits a detected on-chain deposit for processing.
func (h *Handler) Deposit(c *fiber.Ctx) error {
	var req DepositRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	n, err := network.Parse(req.Network)
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid amount")
	}
	observedFee := decimal.Zero
	if req.ObservedFee != "" {
		observedFee, err = decimal.NewFromString(req.ObservedFee)
		if err != nil {
			return fiber.NewError(http.StatusBadRequest, "invalid observed_network_fee")
		}
	}

	p, err := h.service.ProcessDeposit(c.UserContext(), DepositInput{
		TransactionID:    req.TransactionID,
		CardID:           req.CardID,
		Network:          n,
		Asset:            req.Asset,
		Amount:           amount,
		FromAddress:      req.FromAddress,
		ToAddress:        req.ToAddress,
		BlockchainTxHash: req.BlockchainTxHash,
		ObservedFee:      observedFee,
	})
	if err != nil {
		return mapError(err)
	}
	return c.Status(http.StatusCreated).JSON(toProcessingResponse(p))
}

// Get returns a processing record scoped to the requesting card.
func (h *Handler) Get(c *fiber.Ctx) error {
	p, err := h.service.Get(c.UserContext(), c.Params("processingId"), c.Query("card_id"))
	if err != nil {
		return mapError(err)
	}
	return c.JSON(toProcessingResponse(p))
}

// Confirm applies a confirmation count notification.
func (h *Handler) Confirm(c *fiber.Ctx) error {
	var req ConfirmationRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	p, err := h.service.UpdateConfirmationCount(c.UserContext(), c.Params("processingId"), req.ConfirmationCount)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(toProcessingResponse(p))
}

// Accelerate lists fee-bump options for an in-flight deposit.
func (h *Handler) Accelerate(c *fiber.Ctx) error {
	id := c.Params("processingId")
	options, err := h.service.AccelerateTransaction(c.UserContext(), id, c.Query("card_id"))
	if err != nil {
		return mapError(err)
	}
	return c.JSON(toAccelerationResponse(id, options))
}

func mapError(err error) error {
	var rejected *fraud.RejectedError
	switch {
	case errors.As(err, &rejected):
		return fiber.NewError(http.StatusUnprocessableEntity, rejected.Error())
	case errors.Is(err, ErrNotFound):
		return fiber.NewError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrInvalidState):
		return fiber.NewError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrRateUnavailable), errors.Is(err, quote.ErrRateUnavailable):
		return fiber.NewError(http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, ErrFundingFailed):
		return fiber.NewError(http.StatusBadGateway, err.Error())
	default:
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
}
