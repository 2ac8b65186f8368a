package payments

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/kesho-pay/transferengine/internal/distlock"
	"github.com/kesho-pay/transferengine/internal/idempotency"
	"github.com/kesho-pay/transferengine/internal/kvstore"
	"github.com/kesho-pay/transferengine/internal/logging"
	"github.com/kesho-pay/transferengine/internal/notification"
	"github.com/kesho-pay/transferengine/internal/transfer"
)

type testNotifier struct {
	last notification.Message
}

func (n *testNotifier) Send(_ context.Context, msg notification.Message) error {
	n.last = msg
	return nil
}

func newTestService(t *testing.T, notifier notification.Notifier) (*Service, *redis.Client, func()) {
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

	store := kvstore.NewRedisStore(client)
	lock := distlock.New(store, distlock.Config{
		TTL:            5 * time.Second,
		BaseRetryDelay: time.Millisecond,
		MaxRetryDelay:  10 * time.Millisecond,
		MaxRetries:     20,
	}, logging.Discard())
	guard := idempotency.New(store, 24*time.Hour)
	engine := transfer.New(store, lock, guard, transfer.DefaultConfig(), logging.Discard())

	return NewService(engine, notifier), client, cleanup
}

func seedWallet(t *testing.T, client *redis.Client, userID, balance string) {
	t.Helper()
	if err := client.HSet(context.Background(), "wallet:"+userID, "balance", balance, "status", "active").Err(); err != nil {
		t.Fatalf("seed wallet %s: %v", userID, err)
	}
}

func TestTransferSuccess(t *testing.T) {
	notifier := &testNotifier{}
	svc, client, cleanup := newTestService(t, notifier)
	defer cleanup()

	ctx := context.Background()
	seedWallet(t, client, "alice", "100.00")
	seedWallet(t, client, "bob", "0.00")

	res, err := svc.Transfer(ctx, TransferInput{FromUserID: "alice", ToUserID: "bob", Amount: "20.00", OpID: "op-1"})
	if err != nil {
		t.Fatalf("transfer failed: %v", err)
	}

	if res.NewFromBalance != "80.00" || res.NewToBalance != "20.00" {
		t.Fatalf("unexpected balances: %+v", res)
	}

	if notifier.last.Kind != notification.KindP2PTransfer {
		t.Fatal("expected notification to be sent")
	}
}

func TestTransferInsufficientFunds(t *testing.T) {
	svc, client, cleanup := newTestService(t, nil)
	defer cleanup()

	ctx := context.Background()
	seedWallet(t, client, "alice", "5.00")
	seedWallet(t, client, "bob", "0.00")

	if _, err := svc.Transfer(ctx, TransferInput{FromUserID: "alice", ToUserID: "bob", Amount: "10.00", OpID: "op-1"}); err != transfer.ErrInsufficientFunds {
		t.Fatalf("expected insufficient funds, got %v", err)
	}
}

func TestTransferDuplicateDoesNotRenotify(t *testing.T) {
	notifier := &testNotifier{}
	svc, client, cleanup := newTestService(t, notifier)
	defer cleanup()

	ctx := context.Background()
	seedWallet(t, client, "alice", "100.00")
	seedWallet(t, client, "bob", "0.00")

	if _, err := svc.Transfer(ctx, TransferInput{FromUserID: "alice", ToUserID: "bob", Amount: "20.00", OpID: "op-1"}); err != nil {
		t.Fatalf("first transfer failed: %v", err)
	}
	notifier.last = notification.Message{}

	res, err := svc.Transfer(ctx, TransferInput{FromUserID: "alice", ToUserID: "bob", Amount: "20.00", OpID: "op-1"})
	if err != nil {
		t.Fatalf("duplicate transfer failed: %v", err)
	}
	if !res.Duplicate {
		t.Fatal("expected duplicate result")
	}
	if notifier.last.Kind != "" {
		t.Fatal("expected no notification on duplicate delivery")
	}
}
