package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// MarketKind identifies which market a bet was placed against.
type MarketKind string

const (
	MarketKindPool         MarketKind = "pool"
	MarketKindFixedOdds    MarketKind = "fixed_odds"
	MarketKindVirtualDigit MarketKind = "virtual_digit"
	MarketKindVirtualColor MarketKind = "virtual_color"
	MarketKindVirtualCrash MarketKind = "virtual_crash"
)

// BetStatus is the lifecycle state of a bet. Settled is terminal.
type BetStatus string

const (
	BetStatusPending BetStatus = "pending"
	BetStatusLive    BetStatus = "live"
	BetStatusSettled BetStatus = "settled"
)

// BetResult is the resolution of a settled bet. Unresolved is the explicit
// zero value carried while the bet is still open.
type BetResult string

const (
	BetResultUnresolved BetResult = "unresolved"
	BetResultWon        BetResult = "won"
	BetResultLost       BetResult = "lost"
	BetResultVoid       BetResult = "void"
)

// Bet is a wager record. Odds are locked at placement and PotentialPayout is
// computed once from them; later pool movements never change either.
// Crash bets are the exception: their payout is fixed at cash-out, so they
// carry odds 1 and payout 0 until settled.
type Bet struct {
	ID              int64           `db:"id"`
	AccountID       int64           `db:"account_id"`
	MarketKind      MarketKind      `db:"market_kind"`
	MatchID         string          `db:"match_id"`
	OutcomeID       string          `db:"outcome_id"`
	Stake           int64           `db:"stake"`
	Odds            decimal.Decimal `db:"odds"`
	PotentialPayout int64           `db:"potential_payout"`
	Status          BetStatus       `db:"status"`
	Result          BetResult       `db:"result"`
	RoundID         *string         `db:"round_id"`
	ExpiresAt       *time.Time      `db:"expires_at"`
	PlacedAt        time.Time       `db:"placed_at"`
	SettledAt       *time.Time      `db:"settled_at"`
}

// IsVirtual reports whether the bet is resolved by the virtual game scheduler
// rather than an external match result.
func (b *Bet) IsVirtual() bool {
	switch b.MarketKind {
	case MarketKindVirtualDigit, MarketKindVirtualColor, MarketKindVirtualCrash:
		return true
	}
	return false
}

// IsSettled reports whether the bet reached its terminal state.
func (b *Bet) IsSettled() bool {
	return b.Status == BetStatusSettled
}

// PlacementResult is returned to the caller after a successful placement.
type PlacementResult struct {
	Bet        *Bet
	NewBalance int64
}

// SettlementOutcome is returned by the settlement engine. Applied is false
// when the bet was already settled and the call was an idempotent no-op.
type SettlementOutcome struct {
	Bet     *Bet
	Applied bool
}
