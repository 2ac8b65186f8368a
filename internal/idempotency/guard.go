// Package idempotency implements the idempotency guard: recording and
// recognising already-processed operation identifiers. The guard itself
// is a thin wrapper over kvstore key naming; the guarantee depends on
// recording the "applied" marker inside the same atomic batch that
// commits the balance changes (see internal/transfer), never as a
// standalone write.
package idempotency

import (
	"context"
	"time"

	"github.com/kesho-pay/transferengine/internal/kvstore"
)

const keyPrefix = "applied:"

// Key returns the KV key an operation id's idempotency record lives at.
func Key(opID string) string {
	return keyPrefix + opID
}

// Guard answers "has this op_id already been applied" against a Store.
type Guard struct {
	store kvstore.Store
	ttl   time.Duration
}

// New constructs a Guard with the given retention TTL.
func New(store kvstore.Store, ttl time.Duration) *Guard {
	return &Guard{store: store, ttl: ttl}
}

// TTL reports the configured retention.
func (g *Guard) TTL() time.Duration { return g.ttl }

// Check is the fast-path lookup the orchestrator makes before acquiring
// any lock. A hit means the op_id was already applied and outcome
// carries the previously recorded, opaque encoded result; a miss only
// means "not yet observed" — a concurrent duplicate may still race in,
// so the authoritative check happens again inside the watched
// transaction, which is what ultimately catches it.
func (g *Guard) Check(ctx context.Context, opID string) (outcome string, applied bool, err error) {
	v, ok, err := g.store.Get(ctx, Key(opID))
	if err != nil {
		return "", false, err
	}
	return v, ok, nil
}

// CheckInTx performs the same lookup from inside a kvstore.WatchedTx
// body, where applied:<op_id> is one of the watched keys.
func CheckInTx(tx *kvstore.Tx, opID string) (outcome string, applied bool, err error) {
	return tx.Get(Key(opID))
}

// RecordInTx enqueues the idempotency record write so it lands in the
// same commit batch as the balance updates.
func RecordInTx(tx *kvstore.Tx, opID, outcome string, ttl time.Duration) {
	tx.EnqueueSet(Key(opID), outcome, ttl)
}
