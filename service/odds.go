package service

import (
	"fmt"

	"github.com/shopspring/decimal"

	"stakehouse/config"
	"stakehouse/models"
)

var decimalOne = decimal.NewFromInt(1)

// PoolOdds derives pari-mutuel odds for an outcome from a market snapshot:
// total pool divided by the outcome's pool, rounded to four places. An empty
// pool on either side yields even odds rather than a division blow-up, so
// the first bet into a fresh market is priced at 1.0.
func PoolOdds(market *models.MarketSnapshot, outcomeID string) decimal.Decimal {
	outcomePool := market.OutcomePools[outcomeID]
	if market.TotalPool <= 0 || outcomePool <= 0 {
		return decimalOne
	}
	return decimal.NewFromInt(market.TotalPool).
		Div(decimal.NewFromInt(outcomePool)).
		Round(4)
}

// FixedOdds returns the configured multiplier for a selection count. The
// table is operator configuration, not a computation: whatever sits below
// fair odds is the house margin.
func FixedOdds(selectionCount int) (decimal.Decimal, error) {
	odds, ok := config.Get().FixedOddsPayouts[selectionCount]
	if !ok {
		return decimal.Decimal{}, fmt.Errorf("no odds configured for %d selections: %w", selectionCount, models.ErrUnknownOutcome)
	}
	return odds, nil
}

// PayoutFor computes the payout a stake at the given odds would return,
// truncated to whole minor units. The result is locked into the bet at
// placement and never recomputed.
func PayoutFor(stake int64, odds decimal.Decimal) int64 {
	return decimal.NewFromInt(stake).Mul(odds).IntPart()
}
