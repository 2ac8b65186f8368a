package routes

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"

	"github.com/kesho-pay/transferengine/internal/config"
	"github.com/kesho-pay/transferengine/internal/distlock"
	"github.com/kesho-pay/transferengine/internal/idempotency"
	"github.com/kesho-pay/transferengine/internal/kvstore"
	"github.com/kesho-pay/transferengine/internal/middleware"
	"github.com/kesho-pay/transferengine/internal/notification"
	"github.com/kesho-pay/transferengine/internal/payments"
	"github.com/kesho-pay/transferengine/internal/transfer"
	"github.com/kesho-pay/transferengine/internal/wallet"
)

// Deps aggregates shared dependencies required to wire routes. There is
// no database: the wallet-transfer engine's only store of record is
// Redis.
type Deps struct {
	Cfg    config.Config
	Cache  *redis.Client
	Logger *slog.Logger
}

// Setup configures middlewares and the debug/operator surface. The
// production bus consumer lives in cmd/worker and never touches these
// routes; this is a manual-trigger and introspection surface so the
// engine has something runnable end to end.
func Setup(app *fiber.App, d Deps) error {
	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(logger.New(logger.Config{
		Format:     "[${time}] ${status} -  ${latency} ${method} ${path}\n",
		TimeFormat: "15:04:05",
		TimeZone:   "Local",
	}))
	if d.Cache != nil {
		app.Use(middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger))
	}

	RegisterHealthRoutes(app, d)

	if d.Cache == nil {
		return nil
	}

	store := kvstore.NewRedisStore(d.Cache)
	lock := distlock.New(store, distlock.Config{
		TTL:            d.Cfg.LockTTL,
		BaseRetryDelay: d.Cfg.BaseRetryDelay,
		MaxRetryDelay:  d.Cfg.MaxRetryDelay,
		MaxRetries:     d.Cfg.MaxRetries,
	}, d.Logger)
	guard := idempotency.New(store, d.Cfg.IdempotencyTTL)
	engine := transfer.New(store, lock, guard, transfer.Config{
		BalanceScale:   d.Cfg.BalanceScale,
		TxMaxAttempts:  d.Cfg.TxMaxAttempts,
		IdempotencyTTL: d.Cfg.IdempotencyTTL,
	}, d.Logger)

	notifier := notification.NewLoggerNotifier(d.Logger)
	paymentSvc := payments.NewService(engine, notifier)
	paymentHandler := payments.NewHandler(paymentSvc)
	walletSvc := wallet.NewService(d.Cache, d.Cfg.BalanceScale)

	debug := app.Group("/debug")
	debug.Post("/transfer", paymentHandler.P2P)
	RegisterWalletAdminRoutes(debug, walletSvc)
	RegisterLockInfoRoute(debug, lock)

	api := app.Group("/api/v1")
	api.Get("/ping", func(c *fiber.Ctx) error {
		reqID, _ := c.Locals("X-Request-ID").(string)
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": reqID,
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	return nil
}
