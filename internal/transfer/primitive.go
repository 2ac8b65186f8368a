package transfer

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/kesho-pay/transferengine/internal/idempotency"
	"github.com/kesho-pay/transferengine/internal/kvstore"
	"github.com/kesho-pay/transferengine/internal/money"
)

// commit runs the transfer primitive under the caller's already-acquired
// multi-key lock: read both balances in a watched transaction, validate
// the debit, write both new balances and the idempotency record in one
// committed batch. On an optimistic-concurrency abort it restarts, making
// at most cfg.TxMaxAttempts attempts in all before surfacing
// ErrConcurrencyConflict.
func (e *Engine) commit(ctx context.Context, cmd Command, amount money.Amount) (Result, error) {
	watchedKeys := []string{walletKey(cmd.From), walletKey(cmd.To), idempotency.Key(cmd.OpID)}

	attempts := e.cfg.TxMaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	for attempt := 0; attempt < attempts; attempt++ {
		var result Result
		committed, err := e.store.WatchedTx(ctx, watchedKeys, func(tx *kvstore.Tx) error {
			return e.body(tx, cmd, amount, &result)
		})
		if err != nil {
			var sig *alreadyAppliedSignal
			if errors.As(err, &sig) {
				return sig.result, nil
			}
			return Result{}, err
		}
		if committed {
			return result, nil
		}
		// Watched key changed between observation and commit: retry.
		// Because the distributed lock already serialises conflicting
		// transfers, this path is expected only from a TTL-expired lock.
	}

	return Result{}, ErrConcurrencyConflict
}

// body is the watched-transaction body: check idempotency, validate and
// debit/credit both wallets, and enqueue the resulting writes.
func (e *Engine) body(tx *kvstore.Tx, cmd Command, amount money.Amount, result *Result) error {
	encoded, applied, err := idempotency.CheckInTx(tx, cmd.OpID)
	if err != nil {
		return err
	}
	if applied {
		r, err := decodeOutcome(encoded, e.cfg.BalanceScale)
		if err != nil {
			return err
		}
		r.Duplicate = true
		return &alreadyAppliedSignal{result: r}
	}

	fromFields, err := tx.HGetMulti(walletKey(cmd.From), []string{"balance", "status"})
	if err != nil {
		return err
	}
	toFields, err := tx.HGetMulti(walletKey(cmd.To), []string{"balance", "status"})
	if err != nil {
		return err
	}

	fromBalanceStr, ok := fromFields["balance"]
	if !ok {
		return ErrWalletNotFound
	}
	toBalanceStr, ok := toFields["balance"]
	if !ok {
		return ErrWalletNotFound
	}

	if fromFields["status"] != statusActive || toFields["status"] != statusActive {
		return ErrWalletInactive
	}

	fromBalance, err := money.Parse(fromBalanceStr, e.cfg.BalanceScale)
	if err != nil {
		return err
	}
	toBalance, err := money.Parse(toBalanceStr, e.cfg.BalanceScale)
	if err != nil {
		return err
	}

	if fromBalance.LessThan(amount) {
		return ErrInsufficientFunds
	}

	newFrom := fromBalance.Sub(amount)
	newTo := toBalance.Add(amount)

	*result = Result{NewFromBalance: newFrom, NewToBalance: newTo}

	encodedOutcome, err := encodeOutcome(*result)
	if err != nil {
		return err
	}

	tx.EnqueueHSet(walletKey(cmd.From), "balance", newFrom.String())
	tx.EnqueueHSet(walletKey(cmd.To), "balance", newTo.String())
	idempotency.RecordInTx(tx, cmd.OpID, encodedOutcome, e.cfg.IdempotencyTTL)

	return nil
}

// outcomeRecord is the JSON shape persisted at applied:<op_id>.
type outcomeRecord struct {
	NewFrom string `json:"new_from"`
	NewTo   string `json:"new_to"`
}

func encodeOutcome(r Result) (string, error) {
	b, err := json.Marshal(outcomeRecord{NewFrom: r.NewFromBalance.String(), NewTo: r.NewToBalance.String()})
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeOutcome(s string, scale int32) (Result, error) {
	var rec outcomeRecord
	if err := json.Unmarshal([]byte(s), &rec); err != nil {
		return Result{}, err
	}
	from, err := money.Parse(rec.NewFrom, scale)
	if err != nil {
		return Result{}, err
	}
	to, err := money.Parse(rec.NewTo, scale)
	if err != nil {
		return Result{}, err
	}
	return Result{NewFromBalance: from, NewToBalance: to}, nil
}
