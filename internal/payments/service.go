package payments

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/kesho-pay/transferengine/internal/notification"
	"github.com/kesho-pay/transferengine/internal/transfer"
)

// Service adapts the transfer engine to a payments-shaped API and fans
// out a notification on a successful, non-duplicate transfer. It holds
// no business logic of its own; transfer.Engine owns every invariant.
type Service struct {
	engine   *transfer.Engine
	notifier notification.Notifier
}

// NewService constructs a payment service over an already-wired engine.
func NewService(engine *transfer.Engine, notifier notification.Notifier) *Service {
	return &Service{engine: engine, notifier: notifier}
}

// TransferInput captures the data needed to move funds between wallets.
type TransferInput struct {
	FromUserID string
	ToUserID   string
	Amount     string
	OpID       string
}

// TransferResult describes the outcome of a P2P transfer.
type TransferResult struct {
	NewFromBalance string
	NewToBalance   string
	Duplicate      bool
}

// Transfer delegates to the transfer engine and notifies the recipient
// on a fresh (non-duplicate) success.
func (s *Service) Transfer(ctx context.Context, input TransferInput) (TransferResult, error) {
	opID := input.OpID
	if opID == "" {
		opID = uuid.New().String()
	}

	res, err := s.engine.Transfer(ctx, transfer.Command{
		OpID:   opID,
		From:   input.FromUserID,
		To:     input.ToUserID,
		Amount: input.Amount,
	})
	if err != nil {
		return TransferResult{}, err
	}

	out := TransferResult{
		NewFromBalance: res.NewFromBalance.String(),
		NewToBalance:   res.NewToBalance.String(),
		Duplicate:      res.Duplicate,
	}

	if !out.Duplicate && s.notifier != nil {
		_ = s.notifier.Send(ctx, notification.Message{
			Kind:        notification.KindP2PTransfer,
			Destination: input.ToUserID,
			Body:        fmt.Sprintf("You received %s from %s", input.Amount, input.FromUserID),
		})
	}

	return out, nil
}
