package models

import "time"

// AccountStatus represents the standing of an account as reported by the
// identity layer. Only active accounts may wager; restricted accounts may
// still withdraw what they hold.
type AccountStatus string

const (
	AccountStatusActive     AccountStatus = "active"
	AccountStatusSuspended  AccountStatus = "suspended"
	AccountStatusRestricted AccountStatus = "restricted"
	AccountStatusBanned     AccountStatus = "banned"
	AccountStatusDeleted    AccountStatus = "deleted"
)

// Account holds a user's spendable balance and withdrawal hold.
// Balance and PendingWithdrawal are minor units (cents) and are mutated only
// through the account repository's atomic adjustment statements.
type Account struct {
	ID                int64         `db:"id"`
	Balance           int64         `db:"balance"`
	BonusBalance      int64         `db:"bonus_balance"`
	WithdrawableBonus int64         `db:"withdrawable_bonus"`
	PendingWithdrawal int64         `db:"pending_withdrawal"`
	Status            AccountStatus `db:"status"`
	CreatedAt         time.Time     `db:"created_at"`
	UpdatedAt         time.Time     `db:"updated_at"`
}

// CanWager reports whether the account may place new bets.
func (a *Account) CanWager() bool {
	return a.Status == AccountStatusActive
}

// CanWithdraw reports whether the account may move funds out.
func (a *Account) CanWithdraw() bool {
	return a.Status == AccountStatusActive || a.Status == AccountStatusRestricted
}
