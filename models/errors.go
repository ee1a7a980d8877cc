package models

import (
	"errors"
	"fmt"
)

// Sentinel errors surfaced across the engine boundary. Callers match them
// with errors.Is; everything is wrapped with %w on the way up.
var (
	ErrNotFound              = errors.New("not found")
	ErrInsufficientFunds     = errors.New("insufficient funds")
	ErrAccountNotActive      = errors.New("account not active")
	ErrConflictingTransition = errors.New("conflicting transition")
	ErrInvalidState          = errors.New("invalid state")
	ErrInvalidStake          = errors.New("invalid stake")
	ErrUnknownOutcome        = errors.New("unknown outcome")
	ErrMarketClosed          = errors.New("market closed")
	ErrRoundNotOpen          = errors.New("round not open")
	ErrAmountBelowMinimum    = errors.New("amount below minimum")
)

// AccountNotActiveError carries the account status so the caller can render
// an appropriate message. It matches ErrAccountNotActive under errors.Is.
type AccountNotActiveError struct {
	AccountID int64
	Status    AccountStatus
}

func (e *AccountNotActiveError) Error() string {
	return fmt.Sprintf("account %d not active: %s", e.AccountID, e.Status)
}

func (e *AccountNotActiveError) Is(target error) bool {
	return target == ErrAccountNotActive
}
