package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"stakehouse/config"
	"stakehouse/events"
	"stakehouse/models"
)

// crashBetOrphanWindow bounds how long a crash bet may sit pending before
// the sweep is allowed to force-resolve it. No legitimate round lives this
// long.
const crashBetOrphanWindow = 10 * time.Minute

type betService struct {
	uowFactory UnitOfWorkFactory
}

// NewBetService creates a new bet service
func NewBetService(uowFactory UnitOfWorkFactory) BetService {
	return &betService{
		uowFactory: uowFactory,
	}
}

func (s *betService) PlacePoolBet(ctx context.Context, accountID int64, market *models.MarketSnapshot, outcomeID string, stake int64) (*models.PlacementResult, error) {
	if market == nil || market.MatchID == "" {
		return nil, fmt.Errorf("market snapshot is required")
	}
	if outcomeID == models.DrawOutcomeID {
		return nil, fmt.Errorf("the draw cannot be backed directly: %w", models.ErrUnknownOutcome)
	}
	if !market.HasOutcome(outcomeID) {
		return nil, fmt.Errorf("outcome %q not offered on match %s: %w", outcomeID, market.MatchID, models.ErrUnknownOutcome)
	}

	odds := PoolOdds(market, outcomeID)

	bet := &models.Bet{
		AccountID:  accountID,
		MarketKind: models.MarketKindPool,
		MatchID:    market.MatchID,
		OutcomeID:  outcomeID,
		Stake:      stake,
		Odds:       odds,
	}

	return s.place(ctx, bet)
}

func (s *betService) PlaceFixedOddsBet(ctx context.Context, accountID int64, matchID string, selections []string, stake int64) (*models.PlacementResult, error) {
	if matchID == "" {
		return nil, fmt.Errorf("match ID is required")
	}
	if len(selections) == 0 {
		return nil, fmt.Errorf("at least one selection is required")
	}

	odds, err := FixedOdds(len(selections))
	if err != nil {
		return nil, err
	}

	bet := &models.Bet{
		AccountID:  accountID,
		MarketKind: models.MarketKindFixedOdds,
		MatchID:    matchID,
		OutcomeID:  strings.Join(selections, ","),
		Stake:      stake,
		Odds:       odds,
	}

	return s.place(ctx, bet)
}

func (s *betService) PlaceInstantBet(ctx context.Context, accountID int64, gameType models.GameType, outcomeID string, stake int64) (*models.PlacementResult, error) {
	var kind models.MarketKind
	var outcomes []string

	switch gameType {
	case models.GameTypeDigit:
		kind = models.MarketKindVirtualDigit
		outcomes = models.DigitOutcomes
	case models.GameTypeColor:
		kind = models.MarketKindVirtualColor
		outcomes = models.ColorOutcomes
	default:
		return nil, fmt.Errorf("game type %q does not take instant bets", gameType)
	}

	if !containsOutcome(outcomes, outcomeID) {
		return nil, fmt.Errorf("outcome %q not offered by the %s game: %w", outcomeID, gameType, models.ErrUnknownOutcome)
	}

	// Instant games pay from the same cardinality-keyed table as fixed-odds
	// bets: ten digits, three colors.
	odds, err := FixedOdds(len(outcomes))
	if err != nil {
		return nil, err
	}

	expiresAt := time.Now().Add(time.Duration(config.Get().InstantCountdownSeconds) * time.Second)

	bet := &models.Bet{
		AccountID:  accountID,
		MarketKind: kind,
		MatchID:    fmt.Sprintf("virtual:%s", gameType),
		OutcomeID:  outcomeID,
		Stake:      stake,
		Odds:       odds,
		ExpiresAt:  &expiresAt,
	}

	return s.place(ctx, bet)
}

func (s *betService) PlaceCrashBet(ctx context.Context, accountID int64, stake int64) (*models.PlacementResult, error) {
	if err := validateStake(stake); err != nil {
		return nil, err
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback() // No-op if already committed

	round, err := uow.CrashRounds().GetOpen(ctx, models.GameTypeCrash)
	if err != nil {
		return nil, fmt.Errorf("failed to get open crash round: %w", err)
	}
	if round == nil {
		return nil, fmt.Errorf("no crash round accepting bets: %w", models.ErrRoundNotOpen)
	}

	expiresAt := time.Now().Add(crashBetOrphanWindow)

	// Crash bets carry no locked payout; it is fixed at cash-out time.
	bet := &models.Bet{
		AccountID:  accountID,
		MarketKind: models.MarketKindVirtualCrash,
		MatchID:    fmt.Sprintf("virtual:%s", models.GameTypeCrash),
		OutcomeID:  "cashout",
		Stake:      stake,
		Odds:       decimalOne,
		RoundID:    &round.ID,
		ExpiresAt:  &expiresAt,
	}

	result, err := s.placeInUnitOfWork(ctx, uow, bet)
	if err != nil {
		return nil, err
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return result, nil
}

func (s *betService) TransitionToLive(ctx context.Context, betID int64) error {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	if err := uow.Bets().Transition(ctx, betID, models.BetStatusPending, models.BetStatusLive); err != nil {
		return fmt.Errorf("failed to transition bet %d to live: %w", betID, err)
	}

	if err := uow.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

func (s *betService) GetBet(ctx context.Context, betID int64) (*models.Bet, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	bet, err := uow.Bets().GetByID(ctx, betID)
	if err != nil {
		return nil, fmt.Errorf("failed to get bet: %w", err)
	}
	if bet == nil {
		return nil, fmt.Errorf("bet %d: %w", betID, models.ErrNotFound)
	}

	return bet, nil
}

func (s *betService) ListBets(ctx context.Context, accountID int64, limit int) ([]*models.Bet, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	bets, err := uow.Bets().ListByAccount(ctx, accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list bets: %w", err)
	}

	return bets, nil
}

// place runs the shared placement flow in its own transaction.
func (s *betService) place(ctx context.Context, bet *models.Bet) (*models.PlacementResult, error) {
	if err := validateStake(bet.Stake); err != nil {
		return nil, err
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	result, err := s.placeInUnitOfWork(ctx, uow, bet)
	if err != nil {
		return nil, err
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return result, nil
}

// placeInUnitOfWork debits the stake, locks the payout, and writes the bet
// and its stake ledger entry inside the caller's transaction. The balance
// debit is the gate: it fails atomically on insufficient funds or an
// account that may not wager.
func (s *betService) placeInUnitOfWork(ctx context.Context, uow UnitOfWork, bet *models.Bet) (*models.PlacementResult, error) {
	account, err := uow.Accounts().GetByID(ctx, bet.AccountID)
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	if account == nil {
		return nil, fmt.Errorf("account %d: %w", bet.AccountID, models.ErrNotFound)
	}
	if !account.CanWager() {
		return nil, &models.AccountNotActiveError{AccountID: account.ID, Status: account.Status}
	}

	newBalance, err := uow.Accounts().Adjust(ctx, bet.AccountID, -bet.Stake)
	if err != nil {
		return nil, fmt.Errorf("failed to debit stake: %w", err)
	}

	bet.PotentialPayout = PayoutFor(bet.Stake, bet.Odds)
	bet.Status = models.BetStatusPending
	bet.Result = models.BetResultUnresolved

	if err := uow.Bets().Create(ctx, bet); err != nil {
		return nil, fmt.Errorf("failed to create bet: %w", err)
	}

	entry := &models.LedgerEntry{
		AccountID:    bet.AccountID,
		Kind:         models.LedgerKindStake,
		Amount:       -bet.Stake,
		RelatedBetID: &bet.ID,
		Metadata: map[string]any{
			"market_kind": string(bet.MarketKind),
			"match_id":    bet.MatchID,
		},
	}
	if err := recordMovement(ctx, uow, entry, newBalance); err != nil {
		return nil, err
	}

	uow.EventBus().Publish(events.BetPlacedEvent{
		BetID:      bet.ID,
		AccountID:  bet.AccountID,
		MarketKind: bet.MarketKind,
		Stake:      bet.Stake,
	})

	log.WithFields(log.Fields{
		"betId":           bet.ID,
		"accountId":       bet.AccountID,
		"marketKind":      bet.MarketKind,
		"stake":           bet.Stake,
		"odds":            bet.Odds,
		"potentialPayout": bet.PotentialPayout,
	}).Info("Bet placed")

	return &models.PlacementResult{Bet: bet, NewBalance: newBalance}, nil
}

func validateStake(stake int64) error {
	cfg := config.Get()
	if stake <= 0 {
		return fmt.Errorf("stake must be positive: %w", models.ErrInvalidStake)
	}
	if stake < cfg.MinStake || stake > cfg.MaxStake {
		return fmt.Errorf("stake %d outside allowed range [%d, %d]: %w", stake, cfg.MinStake, cfg.MaxStake, models.ErrInvalidStake)
	}
	return nil
}

func containsOutcome(outcomes []string, outcomeID string) bool {
	for _, o := range outcomes {
		if o == outcomeID {
			return true
		}
	}
	return false
}
