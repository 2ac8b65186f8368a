package kvstore

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestStore(t *testing.T) (*RedisStore, redis.UniversalClient, func()) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cleanup := func() {
		client.Close()
		mr.Close()
	}
	return NewRedisStore(client), client, cleanup
}

func TestSetIfAbsent(t *testing.T) {
	store, _, cleanup := newTestStore(t)
	defer cleanup()
	ctx := context.Background()

	ok, err := store.SetIfAbsent(ctx, "lock:a", "token1", time.Second)
	if err != nil || !ok {
		t.Fatalf("expected first set to succeed, ok=%v err=%v", ok, err)
	}

	ok, err = store.SetIfAbsent(ctx, "lock:a", "token2", time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatal("expected second set to fail, key already present")
	}
}

func TestGetMissing(t *testing.T) {
	store, _, cleanup := newTestStore(t)
	defer cleanup()
	ctx := context.Background()

	_, ok, err := store.Get(ctx, "missing")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatal("expected missing key to report ok=false")
	}
}

func TestDeleteIfEqual(t *testing.T) {
	store, _, cleanup := newTestStore(t)
	defer cleanup()
	ctx := context.Background()

	if _, err := store.SetIfAbsent(ctx, "lock:a", "token1", time.Second); err != nil {
		t.Fatalf("setup: %v", err)
	}

	deleted, err := store.DeleteIfEqual(ctx, "lock:a", "wrong-token")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if deleted {
		t.Fatal("expected delete with wrong token to be a no-op")
	}

	deleted, err = store.DeleteIfEqual(ctx, "lock:a", "token1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !deleted {
		t.Fatal("expected delete with correct token to succeed")
	}

	_, ok, _ := store.Get(ctx, "lock:a")
	if ok {
		t.Fatal("expected key to be gone after delete")
	}
}

func TestDeleteIfEqualOnMissingKey(t *testing.T) {
	store, _, cleanup := newTestStore(t)
	defer cleanup()
	ctx := context.Background()

	deleted, err := store.DeleteIfEqual(ctx, "lock:never-existed", "token")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if deleted {
		t.Fatal("expected no-op on absent key")
	}
}

func TestHGetMulti(t *testing.T) {
	store, client, cleanup := newTestStore(t)
	defer cleanup()
	ctx := context.Background()

	client.HSet(ctx, "wallet:u1", map[string]any{"balance": "10.00", "status": "active"})

	fields, err := store.HGetMulti(ctx, "wallet:u1", []string{"balance", "status", "currency"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fields["balance"] != "10.00" || fields["status"] != "active" {
		t.Fatalf("unexpected fields: %+v", fields)
	}
	if _, ok := fields["currency"]; ok {
		t.Fatal("expected missing field to be absent from map")
	}
}

func TestWatchedTxCommits(t *testing.T) {
	store, client, cleanup := newTestStore(t)
	defer cleanup()
	ctx := context.Background()

	client.HSet(ctx, "wallet:a", "balance", "100.00")

	committed, err := store.WatchedTx(ctx, []string{"wallet:a"}, func(tx *Tx) error {
		fields, err := tx.HGetMulti("wallet:a", []string{"balance"})
		if err != nil {
			return err
		}
		if fields["balance"] != "100.00" {
			t.Fatalf("unexpected balance: %s", fields["balance"])
		}
		tx.EnqueueHSet("wallet:a", "balance", "90.00")
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !committed {
		t.Fatal("expected commit to succeed")
	}

	fields, _ := store.HGetMulti(ctx, "wallet:a", []string{"balance"})
	if fields["balance"] != "90.00" {
		t.Fatalf("expected balance 90.00 after commit, got %s", fields["balance"])
	}
}

func TestWatchedTxAbortsOnConcurrentModification(t *testing.T) {
	store, client, cleanup := newTestStore(t)
	defer cleanup()
	ctx := context.Background()

	client.HSet(ctx, "wallet:a", "balance", "100.00")

	committed, err := store.WatchedTx(ctx, []string{"wallet:a"}, func(tx *Tx) error {
		// A concurrent writer modifies the watched key mid-transaction.
		if err := client.HSet(ctx, "wallet:a", "balance", "999.00").Err(); err != nil {
			t.Fatalf("concurrent write: %v", err)
		}
		tx.EnqueueHSet("wallet:a", "balance", "90.00")
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if committed {
		t.Fatal("expected optimistic-concurrency abort, got committed=true")
	}

	fields, _ := store.HGetMulti(ctx, "wallet:a", []string{"balance"})
	if fields["balance"] != "999.00" {
		t.Fatalf("expected the concurrent writer's value to survive, got %s", fields["balance"])
	}
}

func TestWatchedTxBodyErrorAbortsWithoutWriting(t *testing.T) {
	store, client, cleanup := newTestStore(t)
	defer cleanup()
	ctx := context.Background()

	client.HSet(ctx, "wallet:a", "balance", "100.00")

	sentinel := errInsufficient
	committed, err := store.WatchedTx(ctx, []string{"wallet:a"}, func(tx *Tx) error {
		tx.EnqueueHSet("wallet:a", "balance", "0.00")
		return sentinel
	})
	if err != sentinel {
		t.Fatalf("expected sentinel error, got %v", err)
	}
	if committed {
		t.Fatal("expected no commit when body errors")
	}

	fields, _ := store.HGetMulti(ctx, "wallet:a", []string{"balance"})
	if fields["balance"] != "100.00" {
		t.Fatalf("expected balance untouched, got %s", fields["balance"])
	}
}

var errInsufficient = &testError{"insufficient"}

type testError struct{ msg string }

func (e *testError) Error() string { return e.msg }
