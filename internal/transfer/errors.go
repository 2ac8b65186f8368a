package transfer

import "errors"

// Result kinds. Applied is the only non-error outcome; every other kind
// surfaces as one of these sentinel errors, checkable with errors.Is.
var (
	// ErrInvalidRequest covers malformed argument shape: empty ids or a
	// non-positive amount. Validation, not retriable.
	ErrInvalidRequest = errors.New("transfer: invalid request")

	// ErrSameUserTransfer rejects from == to before the primitive ever
	// sees it.
	ErrSameUserTransfer = errors.New("transfer: same user transfer")

	// ErrInvalidAmount covers unparsable amounts or a scale mismatch
	// against the configured balance scale. Rounding is never performed.
	ErrInvalidAmount = errors.New("transfer: invalid amount")

	// ErrInsufficientFunds, ErrWalletNotFound, ErrWalletInactive are
	// domain rejections: no state touched, not retriable at the engine
	// layer.
	ErrInsufficientFunds = errors.New("transfer: insufficient funds")
	ErrWalletNotFound    = errors.New("transfer: wallet not found")
	ErrWalletInactive    = errors.New("transfer: wallet inactive")

	// ErrLockUnavailable and ErrConcurrencyConflict are transient;
	// callers may retry with the same op_id.
	ErrLockUnavailable    = errors.New("transfer: lock unavailable")
	ErrConcurrencyConflict = errors.New("transfer: concurrency conflict")

	// ErrCancelled surfaces a caller cancellation observed before the
	// watched transaction's commit, the engine's linearization point.
	ErrCancelled = errors.New("transfer: cancelled")

	// ErrUnavailable wraps an infrastructure fault (KV I/O failure) with
	// the original cause attached via %w.
	ErrUnavailable = errors.New("transfer: unavailable")
)

// alreadyAppliedSignal carries the prior outcome out of a WatchedTx body
// when the watched transaction itself observes that op_id is already
// applied — a concurrent duplicate that raced past the fast-path check.
// It is not a failure: the caller gets back the same Result a fresh
// Applied would have produced, with Duplicate set.
type alreadyAppliedSignal struct {
	result Result
}

func (s *alreadyAppliedSignal) Error() string { return "transfer: already applied" }
