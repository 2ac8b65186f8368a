// Package distlock implements a multi-key distributed lock: an
// all-or-nothing acquisition of an ordered set of named leases against a
// shared key-value store, with TTL-bounded crash safety and bounded
// exponential backoff with jitter on contention.
package distlock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/kesho-pay/transferengine/internal/kvstore"
)

// ErrLockUnavailable is returned when acquisition fails after
// Config.MaxRetries attempts.
var ErrLockUnavailable = errors.New("distlock: lock unavailable")

// Config is the lock's tunable acquisition and retry behavior.
type Config struct {
	TTL            time.Duration
	BaseRetryDelay time.Duration
	MaxRetryDelay  time.Duration
	MaxRetries     int
}

// DefaultConfig returns reasonable defaults for acquisition and retry.
func DefaultConfig() Config {
	return Config{
		TTL:            10 * time.Second,
		BaseRetryDelay: 100 * time.Millisecond,
		MaxRetryDelay:  2 * time.Second,
		MaxRetries:     10,
	}
}

// MultiLock acquires and releases ordered sets of named leases.
type MultiLock struct {
	store  kvstore.Store
	cfg    Config
	logger *slog.Logger
}

// New constructs a MultiLock against the given store.
func New(store kvstore.Store, cfg Config, logger *slog.Logger) *MultiLock {
	if logger == nil {
		logger = slog.Default()
	}
	return &MultiLock{store: store, cfg: cfg, logger: logger}
}

// Lease is a held set of leases, returned by Acquire. Release is
// idempotent and safe to call more than once or on a nil Lease.
type Lease struct {
	Token string
	Names []string

	store  kvstore.Store
	logger *slog.Logger
}

func lockKey(name string) string {
	return "lock:" + name
}

// canonicalize deduplicates and sorts names into the global total order
// that is the engine's sole deadlock-prevention mechanism: every
// acquirer requests conflicting names in the same order, so no cycle in
// the wait graph can form.
func canonicalize(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Acquire acquires a lease on every name in names, or none. token, if
// empty, is minted as a random UUID; callers may pass
// a deterministic token (e.g. derived from an operation id) to make a
// retried acquisition attempt idempotent against a lease it already
// holds from a prior, not-yet-timed-out attempt.
func (m *MultiLock) Acquire(ctx context.Context, names []string, token string) (*Lease, error) {
	sorted := canonicalize(names)
	if len(sorted) == 0 {
		return nil, fmt.Errorf("distlock: at least one name required")
	}
	if token == "" {
		token = uuid.NewString()
	}

	for attempt := 0; attempt < m.cfg.MaxRetries; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		if held, err := m.heldByToken(ctx, sorted, token); err != nil {
			return nil, err
		} else if held {
			m.logger.Debug("distlock: idempotent re-acquire", slog.String("token", token))
			return &Lease{Token: token, Names: sorted, store: m.store, logger: m.logger}, nil
		}

		ok, err := m.tryAcquireAll(ctx, sorted, token)
		if err != nil {
			return nil, err
		}
		if ok {
			m.logger.Debug("distlock: acquired", slog.String("token", token), slog.Any("names", sorted))
			return &Lease{Token: token, Names: sorted, store: m.store, logger: m.logger}, nil
		}

		delay := backoff(m.cfg.BaseRetryDelay, m.cfg.MaxRetryDelay, attempt)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}

	m.logger.Warn("distlock: unavailable after retries", slog.Int("max_retries", m.cfg.MaxRetries), slog.Any("names", sorted))
	return nil, ErrLockUnavailable
}

// heldByToken reports whether every name is currently held by token.
func (m *MultiLock) heldByToken(ctx context.Context, names []string, token string) (bool, error) {
	for _, n := range names {
		v, ok, err := m.store.Get(ctx, lockKey(n))
		if err != nil {
			return false, err
		}
		if !ok || v != token {
			return false, nil
		}
	}
	return true, nil
}

// tryAcquireAll attempts to acquire every name in order, releasing
// whatever it acquired on the first failure.
func (m *MultiLock) tryAcquireAll(ctx context.Context, names []string, token string) (bool, error) {
	acquired := make([]string, 0, len(names))
	for _, n := range names {
		ok, err := m.store.SetIfAbsent(ctx, lockKey(n), token, m.cfg.TTL)
		if err != nil {
			m.releaseAll(ctx, acquired, token)
			return false, err
		}
		if ok {
			acquired = append(acquired, n)
			continue
		}

		// Someone else might hold it, or we might already own it from a
		// stale partial acquisition; either way we can't proceed without
		// re-confirming ownership, so treat any non-owned lock as a miss.
		current, ok, err := m.store.Get(ctx, lockKey(n))
		if err != nil {
			m.releaseAll(ctx, acquired, token)
			return false, err
		}
		if ok && current == token {
			acquired = append(acquired, n)
			continue
		}

		m.releaseAll(ctx, acquired, token)
		return false, nil
	}
	return true, nil
}

func (m *MultiLock) releaseAll(ctx context.Context, names []string, token string) {
	for _, n := range names {
		released, err := m.store.DeleteIfEqual(ctx, lockKey(n), token)
		if err != nil {
			m.logger.Warn("distlock: release error", slog.String("name", n), slog.Any("error", err))
			continue
		}
		if !released {
			// Not ours (or already expired); releasing what you don't own
			// is a no-op, never an error.
			m.logger.Debug("distlock: release no-op", slog.String("name", n))
		}
	}
}

// Info reports whether name is currently held, and by which token, for
// introspection and tests that assert no lock entry is left behind.
func (m *MultiLock) Info(ctx context.Context, name string) (token string, held bool, err error) {
	v, ok, err := m.store.Get(ctx, lockKey(name))
	if err != nil {
		return "", false, err
	}
	return v, ok, nil
}

// Release releases exactly the names this lease holds. Safe to call
// multiple times; a release that finds someone else's token (or an
// already-expired entry) is a no-op, never an error.
func (l *Lease) Release(ctx context.Context) {
	if l == nil || l.store == nil {
		return
	}
	for _, n := range l.Names {
		released, err := l.store.DeleteIfEqual(ctx, lockKey(n), l.Token)
		if err != nil {
			l.logger.Warn("distlock: release error", slog.String("name", n), slog.Any("error", err))
			continue
		}
		if !released {
			l.logger.Debug("distlock: release no-op", slog.String("name", n))
		}
	}
	l.store = nil
}

// backoff computes delay_k = base * 2^min(k, capExponent) *
// uniform(0.5, 1.5), capped at maxDelay.
func backoff(base, maxDelay time.Duration, attempt int) time.Duration {
	const capExponent = 16
	exp := attempt
	if exp > capExponent {
		exp = capExponent
	}
	d := float64(base) * math.Pow(2, float64(exp))
	jitter := 0.5 + rand.Float64()
	d *= jitter
	if d > float64(maxDelay) {
		d = float64(maxDelay)
	}
	return time.Duration(d)
}
