package wallet

import "github.com/kesho-pay/transferengine/internal/money"

// StatusActive mirrors the sentinel transfer.Engine treats as eligible
// to participate in a transfer.
const StatusActive = "active"

// StatusInactive marks a wallet the engine must refuse to move funds
// into or out of.
const StatusInactive = "inactive"

// Wallet is the authoritative account record, field for field the
// wallet:<user_id> hash the transfer engine reads and writes.
type Wallet struct {
	UserID   string
	Balance  money.Amount
	Currency string
	Status   string
}
