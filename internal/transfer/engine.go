// Package transfer implements the transfer primitive and the
// orchestrator that drives it: the public entry point of the engine.
package transfer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kesho-pay/transferengine/internal/distlock"
	"github.com/kesho-pay/transferengine/internal/idempotency"
	"github.com/kesho-pay/transferengine/internal/kvstore"
	"github.com/kesho-pay/transferengine/internal/money"
)

const statusActive = "active"

// Config is the configuration surface the engine (as opposed to the
// lock) owns directly.
type Config struct {
	BalanceScale   int32
	TxMaxAttempts  int
	IdempotencyTTL time.Duration
}

// DefaultConfig returns reasonable defaults.
func DefaultConfig() Config {
	return Config{
		BalanceScale:   2,
		TxMaxAttempts:  3,
		IdempotencyTTL: 24 * time.Hour,
	}
}

// Engine is the public entry point: Transfer canonicalises the request,
// invokes the idempotency guard, then the lock, then the primitive, and
// maps outcomes to the result kinds below.
type Engine struct {
	store kvstore.Store
	lock  *distlock.MultiLock
	guard *idempotency.Guard
	cfg   Config
	log   *slog.Logger
}

// New wires an Engine from its three components.
func New(store kvstore.Store, lock *distlock.MultiLock, guard *idempotency.Guard, cfg Config, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{store: store, lock: lock, guard: guard, cfg: cfg, log: logger}
}

func walletKey(userID string) string {
	return "wallet:" + userID
}

// Transfer moves amount from one wallet to another: transfer(op_id,
// from, to, amount) → Result.
func (e *Engine) Transfer(ctx context.Context, cmd Command) (Result, error) {
	if cmd.OpID == "" || cmd.From == "" || cmd.To == "" {
		return Result{}, ErrInvalidRequest
	}

	amount, err := money.Parse(cmd.Amount, e.cfg.BalanceScale)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrInvalidAmount, err)
	}
	if !amount.IsPositive() {
		return Result{}, ErrInvalidRequest
	}
	if cmd.From == cmd.To {
		return Result{}, ErrSameUserTransfer
	}

	// Step 2: consult the idempotency guard before touching the lock or
	// the store.
	encoded, applied, err := e.guard.Check(ctx, cmd.OpID)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	if applied {
		r, decErr := decodeOutcome(encoded, e.cfg.BalanceScale)
		if decErr != nil {
			return Result{}, fmt.Errorf("%w: decode idempotency record: %v", ErrUnavailable, decErr)
		}
		r.Duplicate = true
		return r, nil
	}

	// Step 3: acquire the multi-key lock on the canonical sorted set
	// {from, to}.
	lease, err := e.lock.Acquire(ctx, []string{cmd.From, cmd.To}, cmd.OpID)
	if err != nil {
		if errors.Is(err, distlock.ErrLockUnavailable) {
			return Result{}, ErrLockUnavailable
		}
		if ctx.Err() != nil {
			return Result{}, ErrCancelled
		}
		return Result{}, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	// Step 5: release the lock unconditionally on exit, independent of
	// the caller's context (a cancelled caller must not leak the lease).
	defer lease.Release(context.WithoutCancel(ctx))

	// Step 4: invoke the primitive within the lock scope.
	result, err := e.commit(ctx, cmd, amount)
	if err != nil {
		return Result{}, classifyCommitErr(err)
	}
	return result, nil
}

func classifyCommitErr(err error) error {
	switch {
	case errors.Is(err, ErrWalletNotFound),
		errors.Is(err, ErrWalletInactive),
		errors.Is(err, ErrInsufficientFunds),
		errors.Is(err, ErrInvalidAmount),
		errors.Is(err, ErrConcurrencyConflict):
		return err
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		// Cancellation observed before the watched transaction's commit,
		// the engine's linearization point: no balance change.
		return ErrCancelled
	default:
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
}
