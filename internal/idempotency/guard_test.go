package idempotency

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/kesho-pay/transferengine/internal/kvstore"
)

func newTestGuard(t *testing.T) (*Guard, *kvstore.RedisStore, func()) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := kvstore.NewRedisStore(client)
	cleanup := func() {
		client.Close()
		mr.Close()
	}
	return New(store, 24*time.Hour), store, cleanup
}

func TestCheckReportsNotApplied(t *testing.T) {
	guard, _, cleanup := newTestGuard(t)
	defer cleanup()

	_, applied, err := guard.Check(context.Background(), "op-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if applied {
		t.Fatal("expected not applied for unseen op_id")
	}
}

func TestCheckInTxAndRecordInTxRoundTrip(t *testing.T) {
	guard, store, cleanup := newTestGuard(t)
	defer cleanup()
	ctx := context.Background()

	committed, err := store.WatchedTx(ctx, []string{Key("op-1")}, func(tx *kvstore.Tx) error {
		_, applied, err := CheckInTx(tx, "op-1")
		if err != nil {
			return err
		}
		if applied {
			t.Fatal("expected not applied before recording")
		}
		RecordInTx(tx, "op-1", `{"new_from":"90.00","new_to":"10.00"}`, guard.TTL())
		return nil
	})
	if err != nil || !committed {
		t.Fatalf("expected commit, committed=%v err=%v", committed, err)
	}

	outcome, applied, err := guard.Check(ctx, "op-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !applied {
		t.Fatal("expected applied after record")
	}
	if outcome != `{"new_from":"90.00","new_to":"10.00"}` {
		t.Fatalf("unexpected outcome: %s", outcome)
	}
}
