package payments

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/kesho-pay/transferengine/internal/distlock"
	"github.com/kesho-pay/transferengine/internal/transfer"
)

// Handler exposes the debug P2P transfer endpoint, giving the engine a
// way to be driven manually without a production bus consumer attached.
type Handler struct {
	service *Service
}

// NewHandler constructs a payment handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type transferRequest struct {
	FromUserID string `json:"from_user_id"`
	ToUserID   string `json:"to_user_id"`
	Amount     string `json:"amount"`
	OpID       string `json:"op_id"`
}

// P2P processes a wallet-to-wallet transfer.
func (h *Handler) P2P(c *fiber.Ctx) error {
	var req transferRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	res, err := h.service.Transfer(c.UserContext(), TransferInput{
		FromUserID: req.FromUserID,
		ToUserID:   req.ToUserID,
		Amount:     req.Amount,
		OpID:       req.OpID,
	})
	if err != nil {
		switch {
		case errors.Is(err, transfer.ErrInsufficientFunds):
			return fiber.NewError(http.StatusBadRequest, "insufficient funds")
		case errors.Is(err, transfer.ErrInvalidRequest),
			errors.Is(err, transfer.ErrInvalidAmount),
			errors.Is(err, transfer.ErrSameUserTransfer):
			return fiber.NewError(http.StatusBadRequest, err.Error())
		case errors.Is(err, transfer.ErrWalletNotFound):
			return fiber.NewError(http.StatusNotFound, err.Error())
		case errors.Is(err, transfer.ErrWalletInactive):
			return fiber.NewError(http.StatusConflict, err.Error())
		case errors.Is(err, transfer.ErrLockUnavailable), errors.Is(err, distlock.ErrLockUnavailable):
			return fiber.NewError(http.StatusServiceUnavailable, "lock unavailable")
		case errors.Is(err, transfer.ErrConcurrencyConflict):
			return fiber.NewError(http.StatusConflict, "concurrency conflict, retry")
		default:
			return fiber.NewError(http.StatusInternalServerError, err.Error())
		}
	}

	return c.Status(http.StatusOK).JSON(fiber.Map{
		"new_from_balance": res.NewFromBalance,
		"new_to_balance":   res.NewToBalance,
		"duplicate":        res.Duplicate,
	})
}
