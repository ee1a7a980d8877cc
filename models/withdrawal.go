package models

import "time"

// WithdrawalStatus is the state of a withdrawal request. Pending moves to
// processing once an approval claims it for payout; everything past
// processing is terminal.
type WithdrawalStatus string

const (
	WithdrawalStatusPending    WithdrawalStatus = "pending"
	WithdrawalStatusProcessing WithdrawalStatus = "processing"
	WithdrawalStatusCompleted  WithdrawalStatus = "completed"
	WithdrawalStatusFailed     WithdrawalStatus = "failed"
	WithdrawalStatusCancelled  WithdrawalStatus = "cancelled"
)

// Withdrawal is a user-requested payout. The amount is held against the
// account (debited from balance, added to pending_withdrawal) while pending
// or processing, and either leaves the system on approval or is refunded on
// reject/cancel.
type Withdrawal struct {
	ID             int64            `db:"id"`
	AccountID      int64            `db:"account_id"`
	Amount         int64            `db:"amount"`
	Status         WithdrawalStatus `db:"status"`
	RequestedAt    time.Time        `db:"requested_at"`
	DecidedAt      *time.Time       `db:"decided_at"`
	FailureReason  *string          `db:"failure_reason"`
	TransactionRef *string          `db:"transaction_ref"`
}

// IsPending reports whether the withdrawal can still be decided by any
// actor. A processing withdrawal belongs to the approval that claimed it.
func (w *Withdrawal) IsPending() bool {
	return w.Status == WithdrawalStatusPending
}
