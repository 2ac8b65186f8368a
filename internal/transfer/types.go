package transfer

import "github.com/kesho-pay/transferengine/internal/money"

// Command is the inbound transfer command: an immutable value-type
// record carried by the bus, opaque to its transport.
type Command struct {
	OpID   string
	From   string
	To     string
	Amount string // decimal string at the configured fixed scale
}

// Result is the outcome of a successful (possibly duplicate) transfer.
// Every other outcome is one of the sentinel errors in errors.go.
type Result struct {
	NewFromBalance money.Amount
	NewToBalance   money.Amount
	Duplicate      bool
}
