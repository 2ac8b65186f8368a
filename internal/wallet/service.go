package wallet

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/kesho-pay/transferengine/internal/money"
)

// ErrNotFound is returned when no wallet exists at the requested key.
var ErrNotFound = errors.New("wallet: not found")

// Service provisions and inspects wallet:<user_id> hashes directly, in
// the bit-exact layout the transfer engine reads and writes. It exists
// for seeding and operator tooling; the engine itself never
// imports this package, only the key layout it agrees on.
type Service struct {
	client redis.UniversalClient
	scale  int32
}

// NewService builds a wallet admin service against scale decimal places
// of balance precision, matching the engine's balance_scale.
func NewService(client redis.UniversalClient, scale int32) *Service {
	return &Service{client: client, scale: scale}
}

func key(userID string) string {
	return fmt.Sprintf("wallet:%s", userID)
}

// CreateInput captures the fields required to provision a wallet.
type CreateInput struct {
	UserID   string
	Balance  string
	Currency string
}

// Create writes a new wallet:<user_id> hash with status active. It does
// not check for prior existence; callers that need idempotent
// provisioning should use SetIfAbsent-style guards of their own, since
// this is operator tooling rather than a path the engine takes.
func (s *Service) Create(ctx context.Context, input CreateInput) (Wallet, error) {
	amount, err := money.Parse(input.Balance, s.scale)
	if err != nil {
		return Wallet{}, fmt.Errorf("parse balance: %w", err)
	}

	currency := input.Currency
	if currency == "" {
		currency = "XAF"
	}

	w := Wallet{
		UserID:   input.UserID,
		Balance:  amount,
		Currency: currency,
		Status:   StatusActive,
	}

	err = s.client.HSet(ctx, key(w.UserID),
		"balance", w.Balance.String(),
		"currency", w.Currency,
		"status", w.Status,
	).Err()
	if err != nil {
		return Wallet{}, err
	}

	return w, nil
}

// Get reads the wallet:<user_id> hash.
func (s *Service) Get(ctx context.Context, userID string) (Wallet, error) {
	vals, err := s.client.HMGet(ctx, key(userID), "balance", "currency", "status").Result()
	if err != nil {
		return Wallet{}, err
	}
	if vals[0] == nil || vals[2] == nil {
		return Wallet{}, ErrNotFound
	}

	balance, err := money.Parse(vals[0].(string), s.scale)
	if err != nil {
		return Wallet{}, fmt.Errorf("decode balance: %w", err)
	}

	w := Wallet{UserID: userID, Balance: balance, Status: vals[2].(string)}
	if vals[1] != nil {
		w.Currency = vals[1].(string)
	}
	return w, nil
}

// Balance is a convenience accessor over Get.
func (s *Service) Balance(ctx context.Context, userID string) (money.Amount, error) {
	w, err := s.Get(ctx, userID)
	if err != nil {
		return money.Amount{}, err
	}
	return w.Balance, nil
}

// SetStatus flips a wallet between active and inactive. Only active
// wallets are eligible to participate in a transfer.
func (s *Service) SetStatus(ctx context.Context, userID, status string) error {
	return s.client.HSet(ctx, key(userID), "status", status).Err()
}
