package routes

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/kesho-pay/transferengine/internal/distlock"
	"github.com/kesho-pay/transferengine/internal/wallet"
)

// RegisterWalletAdminRoutes exposes wallet provisioning and lookup for
// local runs and manual testing. The engine never calls into these; they
// exist only to seed and inspect the wallet:<user_id> hashes it reads.
func RegisterWalletAdminRoutes(group fiber.Router, svc *wallet.Service) {
	group.Post("/wallets", func(c *fiber.Ctx) error {
		var req struct {
			UserID   string `json:"user_id"`
			Balance  string `json:"balance"`
			Currency string `json:"currency"`
		}
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}
		w, err := svc.Create(c.UserContext(), wallet.CreateInput{
			UserID:   req.UserID,
			Balance:  req.Balance,
			Currency: req.Currency,
		})
		if err != nil {
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}
		return c.Status(http.StatusCreated).JSON(fiber.Map{
			"user_id":  w.UserID,
			"balance":  w.Balance.String(),
			"currency": w.Currency,
			"status":   w.Status,
		})
	})

	group.Get("/wallets/:userID", func(c *fiber.Ctx) error {
		w, err := svc.Get(c.UserContext(), c.Params("userID"))
		if err != nil {
			if errors.Is(err, wallet.ErrNotFound) {
				return fiber.NewError(http.StatusNotFound, "wallet not found")
			}
			return fiber.NewError(http.StatusInternalServerError, err.Error())
		}
		return c.JSON(fiber.Map{
			"user_id":  w.UserID,
			"balance":  w.Balance.String(),
			"currency": w.Currency,
			"status":   w.Status,
		})
	})
}

// RegisterLockInfoRoute exposes distlock.MultiLock.Info for operators
// diagnosing a stuck transfer.
func RegisterLockInfoRoute(group fiber.Router, lock *distlock.MultiLock) {
	group.Get("/locks/:name", func(c *fiber.Ctx) error {
		token, held, err := lock.Info(c.UserContext(), c.Params("name"))
		if err != nil {
			return fiber.NewError(http.StatusInternalServerError, err.Error())
		}
		return c.JSON(fiber.Map{
			"held":  held,
			"token": token,
		})
	})
}
