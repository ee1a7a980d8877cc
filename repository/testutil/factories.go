package testutil

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"stakehouse/models"
)

// CreateTestBet builds an unsaved pool bet with sensible defaults.
func CreateTestBet(accountID int64, stake int64) *models.Bet {
	odds := decimal.NewFromFloat(2.0)
	return &models.Bet{
		AccountID:       accountID,
		MarketKind:      models.MarketKindPool,
		MatchID:         "match-1",
		OutcomeID:       "home",
		Stake:           stake,
		Odds:            odds,
		PotentialPayout: decimal.NewFromInt(stake).Mul(odds).IntPart(),
		Status:          models.BetStatusPending,
		Result:          models.BetResultUnresolved,
	}
}

// CreateTestCrashBet builds an unsaved crash bet bound to the given round.
func CreateTestCrashBet(accountID int64, stake int64, roundID string) *models.Bet {
	expires := time.Now().Add(10 * time.Minute)
	return &models.Bet{
		AccountID:  accountID,
		MarketKind: models.MarketKindVirtualCrash,
		MatchID:    "virtual:crash",
		OutcomeID:  "cashout",
		Stake:      stake,
		Odds:       decimal.NewFromInt(1),
		Status:     models.BetStatusPending,
		Result:     models.BetResultUnresolved,
		RoundID:    &roundID,
		ExpiresAt:  &expires,
	}
}

// CreateTestWithdrawal builds an unsaved pending withdrawal.
func CreateTestWithdrawal(accountID int64, amount int64) *models.Withdrawal {
	return &models.Withdrawal{
		AccountID: accountID,
		Amount:    amount,
		Status:    models.WithdrawalStatusPending,
	}
}

// CreateTestLedgerEntry builds an unsaved completed ledger entry with a
// unique reference.
func CreateTestLedgerEntry(accountID int64, kind models.LedgerKind, amount int64) *models.LedgerEntry {
	return &models.LedgerEntry{
		Reference: fmt.Sprintf("test-%s", uuid.New().String()),
		AccountID: accountID,
		Kind:      kind,
		Amount:    amount,
		Status:    models.LedgerStatusCompleted,
	}
}

// CreateTestCrashRound builds an unsaved open crash round.
func CreateTestCrashRound(seriesIndex int, crashPoint float64) *models.CrashRound {
	return &models.CrashRound{
		ID:          uuid.New().String(),
		GameType:    models.GameTypeCrash,
		SeriesIndex: seriesIndex,
		CrashPoint:  crashPoint,
		StartedAt:   time.Now(),
	}
}
