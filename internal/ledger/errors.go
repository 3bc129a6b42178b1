package ledger

import (
	"errors"
	"fmt"
)

// Typed errors returned by ledger mutations. Callers match on these to decide
// whether a failure is a policy-style rejection (state unchanged) or a
// durability failure (mutation rolled back).
var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrInvalidPrice      = errors.New("invalid price")
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrNoPosition        = errors.New("no position")
	ErrOversizedSell     = errors.New("oversized sell")
)

// PersistError signals that a mutation could not be made durable. The
// in-memory change has already been rolled back when this is returned.
type PersistError struct {
	Op         string
	Underlying error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("ledger persist failed during %s: %v", e.Op, e.Underlying)
}

func (e *PersistError) Unwrap() error {
	return e.Underlying
}

// RejectionReason maps a ledger rejection to the machine-readable reason
// string recorded in the trade and signal logs. Returns "" for errors that
// are not policy-style rejections.
func RejectionReason(err error) string {
	switch {
	case errors.Is(err, ErrInsufficientFunds):
		return "InsufficientFunds"
	case errors.Is(err, ErrInvalidPrice):
		return "InvalidPrice"
	case errors.Is(err, ErrInvalidAmount):
		return "InvalidAmount"
	case errors.Is(err, ErrNoPosition):
		return "NoPosition"
	case errors.Is(err, ErrOversizedSell):
		return "OversizedSell"
	default:
		return ""
	}
}
