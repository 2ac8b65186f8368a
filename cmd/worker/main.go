package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/kesho-pay/transferengine/internal/bus"
	"github.com/kesho-pay/transferengine/internal/config"
	"github.com/kesho-pay/transferengine/internal/distlock"
	"github.com/kesho-pay/transferengine/internal/idempotency"
	"github.com/kesho-pay/transferengine/internal/infra"
	"github.com/kesho-pay/transferengine/internal/kvstore"
	"github.com/kesho-pay/transferengine/internal/logging"
	"github.com/kesho-pay/transferengine/internal/server"
	"github.com/kesho-pay/transferengine/internal/transfer"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel)

	ctx := context.Background()

	cache, err := infra.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		logger.Error("connect redis", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := cache.Close(); err != nil {
			logger.Warn("close redis", "error", err)
		}
	}()

	store := kvstore.NewRedisStore(cache)
	lock := distlock.New(store, distlock.Config{
		TTL:            cfg.LockTTL,
		BaseRetryDelay: cfg.BaseRetryDelay,
		MaxRetryDelay:  cfg.MaxRetryDelay,
		MaxRetries:     cfg.MaxRetries,
	}, logger)
	guard := idempotency.New(store, cfg.IdempotencyTTL)
	engine := transfer.New(store, lock, guard, transfer.Config{
		BalanceScale:   cfg.BalanceScale,
		TxMaxAttempts:  cfg.TxMaxAttempts,
		IdempotencyTTL: cfg.IdempotencyTTL,
	}, logger)

	consumer := bus.NewRedisListConsumer(cache, cfg.BusListKey, logger)

	consumerCtx, stopConsumer := context.WithCancel(context.Background())
	consumerErrCh := make(chan error, 1)
	go func() {
		consumerErrCh <- consumer.Run(consumerCtx, func(ctx context.Context, msg bus.Message) error {
			_, err := engine.Transfer(ctx, transfer.Command{
				OpID:   msg.OpID,
				From:   msg.From,
				To:     msg.To,
				Amount: msg.Amount,
			})
			if err != nil {
				logger.Error("transfer failed", slog.String("op_id", msg.OpID), slog.Any("error", err))
			}
			return err
		})
	}()

	srv, err := server.New(cfg, cache, logger)
	if err != nil {
		logger.Error("build server", "error", err)
		os.Exit(1)
	}

	srvErrCh := make(chan error, 1)
	go func() {
		srvErrCh <- srv.Listen()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-srvErrCh:
		if err != nil {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
		return
	case err := <-consumerErrCh:
		if err != nil && ctx.Err() == nil {
			logger.Error("bus consumer error", "error", err)
			os.Exit(1)
		}
		return
	}

	stopConsumer()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownPeriod)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}

	logger.Info("worker exited cleanly")
}
