package service

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"stakehouse/events"
	"stakehouse/models"
)

type settlementService struct {
	uowFactory UnitOfWorkFactory
}

// NewSettlementService creates a new settlement service
func NewSettlementService(uowFactory UnitOfWorkFactory) SettlementService {
	return &settlementService{
		uowFactory: uowFactory,
	}
}

func (s *settlementService) Settle(ctx context.Context, betID int64, result models.BetResult) (*models.SettlementOutcome, error) {
	switch result {
	case models.BetResultWon, models.BetResultLost, models.BetResultVoid:
	default:
		return nil, fmt.Errorf("result %q cannot settle a bet", result)
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback() // No-op if already committed

	bet, err := uow.Bets().GetByID(ctx, betID)
	if err != nil {
		return nil, fmt.Errorf("failed to get bet: %w", err)
	}
	if bet == nil {
		return nil, fmt.Errorf("bet %d: %w", betID, models.ErrNotFound)
	}

	outcome, err := applySettlement(ctx, uow, bet, result, nil)
	if err != nil {
		return nil, err
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return outcome, nil
}

func (s *settlementService) SettleMatch(ctx context.Context, matchID string, winningOutcomeID string) (int, error) {
	if matchID == "" {
		return 0, fmt.Errorf("match ID is required")
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	bets, err := uow.Bets().ListUnsettledByMatch(ctx, matchID)
	if err != nil {
		return 0, fmt.Errorf("failed to list unsettled bets for match %s: %w", matchID, err)
	}

	settled := 0
	for _, bet := range bets {
		result := resultForOutcome(bet, winningOutcomeID)

		outcome, err := applySettlement(ctx, uow, bet, result, nil)
		if err != nil {
			return 0, fmt.Errorf("failed to settle bet %d: %w", bet.ID, err)
		}
		if outcome.Applied {
			settled++
		}
	}

	if err := uow.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.WithFields(log.Fields{
		"matchId":        matchID,
		"winningOutcome": winningOutcomeID,
		"betsSettled":    settled,
	}).Info("Match settled")

	return settled, nil
}

// resultForOutcome maps a final match outcome onto one bet. A drawn match
// voids match-winner bets rather than losing them, because the draw was
// never offered as a selection.
func resultForOutcome(bet *models.Bet, winningOutcomeID string) models.BetResult {
	if winningOutcomeID == models.DrawOutcomeID {
		return models.BetResultVoid
	}
	if bet.OutcomeID == winningOutcomeID {
		return models.BetResultWon
	}
	return models.BetResultLost
}

// applySettlement is the one place a bet reaches its terminal state. The
// conditional settle write decides a single winner among concurrent callers;
// only the caller that actually flipped the row moves money. Everyone else
// gets the already-settled bet back with Applied false.
//
// payoutOverride replaces the locked potential payout; crash cash-outs use it
// because their payout is only known at the moment of cashing out.
func applySettlement(ctx context.Context, uow UnitOfWork, bet *models.Bet, result models.BetResult, payoutOverride *int64) (*models.SettlementOutcome, error) {
	applied, err := uow.Bets().MarkSettled(ctx, bet.ID, result, payoutOverride)
	if err != nil {
		return nil, fmt.Errorf("failed to mark bet %d settled: %w", bet.ID, err)
	}

	if !applied {
		current, err := uow.Bets().GetByID(ctx, bet.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to get bet %d: %w", bet.ID, err)
		}
		return &models.SettlementOutcome{Bet: current, Applied: false}, nil
	}

	payout := bet.PotentialPayout
	if payoutOverride != nil {
		payout = *payoutOverride
	}

	var credited int64
	switch result {
	case models.BetResultWon:
		newBalance, err := uow.Accounts().Adjust(ctx, bet.AccountID, payout)
		if err != nil {
			return nil, fmt.Errorf("failed to credit payout for bet %d: %w", bet.ID, err)
		}
		credited = payout

		entry := &models.LedgerEntry{
			AccountID:    bet.AccountID,
			Kind:         models.LedgerKindPayout,
			Amount:       payout,
			RelatedBetID: &bet.ID,
			Metadata:     map[string]any{"odds": bet.Odds.String()},
		}
		if err := recordMovement(ctx, uow, entry, newBalance); err != nil {
			return nil, err
		}

	case models.BetResultVoid:
		newBalance, err := uow.Accounts().Adjust(ctx, bet.AccountID, bet.Stake)
		if err != nil {
			return nil, fmt.Errorf("failed to refund stake for bet %d: %w", bet.ID, err)
		}
		credited = bet.Stake

		entry := &models.LedgerEntry{
			AccountID:    bet.AccountID,
			Kind:         models.LedgerKindRefund,
			Amount:       bet.Stake,
			RelatedBetID: &bet.ID,
		}
		if err := recordMovement(ctx, uow, entry, newBalance); err != nil {
			return nil, err
		}

	case models.BetResultLost:
		// The stake already left the balance at placement. This entry moves
		// no money; it realizes the stake as house revenue.
		entry := &models.LedgerEntry{
			AccountID:    bet.AccountID,
			Kind:         models.LedgerKindProfit,
			Amount:       0,
			RelatedBetID: &bet.ID,
			Metadata:     map[string]any{"stake": bet.Stake},
		}
		if err := uow.Ledger().Record(ctx, entry); err != nil {
			return nil, fmt.Errorf("failed to record ledger entry: %w", err)
		}

	default:
		return nil, fmt.Errorf("result %q is not terminal", result)
	}

	uow.EventBus().Publish(events.BetSettledEvent{
		BetID:     bet.ID,
		AccountID: bet.AccountID,
		Result:    result,
		Payout:    credited,
	})

	updated, err := uow.Bets().GetByID(ctx, bet.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get bet %d: %w", bet.ID, err)
	}

	return &models.SettlementOutcome{Bet: updated, Applied: true}, nil
}
