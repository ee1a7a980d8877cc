package models

import "time"

// LedgerKind classifies a transaction record.
type LedgerKind string

const (
	LedgerKindDeposit    LedgerKind = "deposit"
	LedgerKindWithdrawal LedgerKind = "withdrawal"
	LedgerKindStake      LedgerKind = "stake"
	LedgerKindPayout     LedgerKind = "payout"
	LedgerKindRefund     LedgerKind = "refund"
	LedgerKindProfit     LedgerKind = "profit"
	LedgerKindBonus      LedgerKind = "bonus"
)

// LedgerStatus is the state of a ledger entry. Entries are append-only; the
// only permitted mutation is flipping pending to a terminal status.
type LedgerStatus string

const (
	LedgerStatusPending   LedgerStatus = "pending"
	LedgerStatusCompleted LedgerStatus = "completed"
	LedgerStatusFailed    LedgerStatus = "failed"
)

// LedgerEntry is an append-only transaction record. Amount is signed from the
// account's point of view: credits positive, debits negative.
type LedgerEntry struct {
	ID                  int64          `db:"id"`
	Reference           string         `db:"reference"`
	AccountID           int64          `db:"account_id"`
	Kind                LedgerKind     `db:"kind"`
	Amount              int64          `db:"amount"`
	Status              LedgerStatus   `db:"status"`
	RelatedBetID        *int64         `db:"related_bet_id"`
	RelatedWithdrawalID *int64         `db:"related_withdrawal_id"`
	Metadata            map[string]any `db:"metadata"`
	CreatedAt           time.Time      `db:"created_at"`
}
