package service

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stakehouse/models"
)

func TestPoolOdds(t *testing.T) {
	market := &models.MarketSnapshot{
		MatchID: "match-1",
		OutcomePools: map[string]int64{
			"home": 5000,
			"away": 15000,
		},
		TotalPool: 20000,
	}

	odds := PoolOdds(market, "home")
	assert.True(t, odds.Equal(decimal.RequireFromString("4.0")), "got %s", odds)

	odds = PoolOdds(market, "away")
	assert.True(t, odds.Equal(decimal.RequireFromString("1.3333")), "got %s", odds)
}

func TestPoolOdds_EmptyPoolPaysEven(t *testing.T) {
	// A fresh market has no money on either side; the first bet in gets
	// even odds instead of a division by zero.
	market := &models.MarketSnapshot{
		MatchID:      "match-1",
		OutcomePools: map[string]int64{"home": 0, "away": 0},
		TotalPool:    0,
	}

	assert.True(t, PoolOdds(market, "home").Equal(decimal.NewFromInt(1)))

	// Money on other outcomes but none on this one.
	market = &models.MarketSnapshot{
		MatchID:      "match-1",
		OutcomePools: map[string]int64{"home": 0, "away": 5000},
		TotalPool:    5000,
	}

	assert.True(t, PoolOdds(market, "home").Equal(decimal.NewFromInt(1)))
}

func TestFixedOdds(t *testing.T) {
	odds, err := FixedOdds(2)
	require.NoError(t, err)
	assert.True(t, odds.Equal(decimal.RequireFromString("1.95")))

	odds, err = FixedOdds(10)
	require.NoError(t, err)
	assert.True(t, odds.Equal(decimal.RequireFromString("9.50")))
}

func TestFixedOdds_UnknownCardinality(t *testing.T) {
	_, err := FixedOdds(7)
	assert.ErrorIs(t, err, models.ErrUnknownOutcome)
}

func TestPayoutFor(t *testing.T) {
	assert.Equal(t, int64(400), PayoutFor(100, decimal.RequireFromString("4.0")))
	assert.Equal(t, int64(195), PayoutFor(100, decimal.RequireFromString("1.95")))

	// Fractional minor units truncate in the house's favor.
	assert.Equal(t, int64(133), PayoutFor(100, decimal.RequireFromString("1.3333")))
}
