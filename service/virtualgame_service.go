package service

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"stakehouse/config"
	"stakehouse/events"
	"stakehouse/models"
)

type virtualGameService struct {
	uowFactory UnitOfWorkFactory

	// now is swappable so the cash-out multiplier can be pinned in tests.
	now func() time.Time
}

// NewVirtualGameService creates a new virtual game service
func NewVirtualGameService(uowFactory UnitOfWorkFactory) VirtualGameService {
	return &virtualGameService{
		uowFactory: uowFactory,
		now:        time.Now,
	}
}

func (s *virtualGameService) ResolveDueInstantBets(ctx context.Context, gameType models.GameType) (int, error) {
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
		return 0, fmt.Errorf("game type %q has no instant bets", gameType)
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback() // No-op if already committed

	due, err := uow.Bets().ListStalePending(ctx, kind, s.now())
	if err != nil {
		return 0, fmt.Errorf("failed to list due %s bets: %w", gameType, err)
	}

	resolved := 0
	for _, bet := range due {
		// Each bet is its own round: one uniform draw over the selection set.
		draw := outcomes[rand.Intn(len(outcomes))]

		result := models.BetResultLost
		if bet.OutcomeID == draw {
			result = models.BetResultWon
		}

		outcome, err := applySettlement(ctx, uow, bet, result, nil)
		if err != nil {
			return 0, fmt.Errorf("failed to resolve bet %d: %w", bet.ID, err)
		}
		if outcome.Applied {
			resolved++
		}
	}

	if err := uow.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	if resolved > 0 {
		log.WithFields(log.Fields{
			"gameType": gameType,
			"resolved": resolved,
		}).Info("Instant bets resolved")
	}

	return resolved, nil
}

func (s *virtualGameService) StartCrashRound(ctx context.Context) (*models.CrashRound, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	open, err := uow.CrashRounds().GetOpen(ctx, models.GameTypeCrash)
	if err != nil {
		return nil, fmt.Errorf("failed to check for open round: %w", err)
	}
	if open != nil {
		return nil, fmt.Errorf("round %s is still open: %w", open.ID, models.ErrInvalidState)
	}

	cfg, err := uow.GameConfigs().Get(ctx, models.GameTypeCrash)
	if err != nil {
		return nil, fmt.Errorf("failed to get crash config: %w", err)
	}
	if cfg == nil {
		return nil, fmt.Errorf("crash game config: %w", models.ErrNotFound)
	}

	// The crash point comes from the configured series, read at the cursor.
	// It is decided before the round starts, never during it.
	round := &models.CrashRound{
		GameType:    models.GameTypeCrash,
		SeriesIndex: cfg.CurrentIndex,
		CrashPoint:  cfg.NextCrashPoint(),
	}
	if err := uow.CrashRounds().Create(ctx, round); err != nil {
		return nil, fmt.Errorf("failed to create crash round: %w", err)
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.WithFields(log.Fields{
		"roundId":     round.ID,
		"seriesIndex": round.SeriesIndex,
	}).Info("Crash round started")

	return round, nil
}

func (s *virtualGameService) OpenRound(ctx context.Context) (*models.CrashRound, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	round, err := uow.CrashRounds().GetOpen(ctx, models.GameTypeCrash)
	if err != nil {
		return nil, fmt.Errorf("failed to get open round: %w", err)
	}

	return round, nil
}

func (s *virtualGameService) CompleteOpenRound(ctx context.Context) (*models.CrashRound, int, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	round, err := uow.CrashRounds().GetOpen(ctx, models.GameTypeCrash)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to get open round: %w", err)
	}
	if round == nil {
		return nil, 0, fmt.Errorf("no open crash round: %w", models.ErrRoundNotOpen)
	}

	closed, err := uow.CrashRounds().Complete(ctx, round.ID)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to complete round %s: %w", round.ID, err)
	}
	if !closed {
		// Another worker closed it first; its transaction owns the cleanup.
		return round, 0, nil
	}

	// Bets still pending at the crash lose. Cash-outs that raced ahead of us
	// already settled and fall out of the pending list.
	pending, err := uow.Bets().ListPendingByRound(ctx, round.ID)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list pending bets for round %s: %w", round.ID, err)
	}

	settled := 0
	for _, bet := range pending {
		outcome, err := applySettlement(ctx, uow, bet, models.BetResultLost, nil)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to settle bet %d: %w", bet.ID, err)
		}
		if outcome.Applied {
			settled++
		}
	}

	// The consumed series value is spent; move the cursor for the next round.
	if _, err := uow.GameConfigs().AdvanceIndex(ctx, models.GameTypeCrash); err != nil {
		return nil, 0, fmt.Errorf("failed to advance series index: %w", err)
	}

	uow.EventBus().Publish(events.CrashRoundCompletedEvent{
		RoundID:     round.ID,
		SeriesIndex: round.SeriesIndex,
		CrashPoint:  round.CrashPoint,
		BetsSettled: settled,
	})

	if err := uow.Commit(); err != nil {
		return nil, 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.WithFields(log.Fields{
		"roundId":     round.ID,
		"crashPoint":  round.CrashPoint,
		"betsSettled": settled,
	}).Info("Crash round completed")

	return round, settled, nil
}

func (s *virtualGameService) CashOut(ctx context.Context, betID int64) (*models.SettlementOutcome, error) {
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
	if bet.MarketKind != models.MarketKindVirtualCrash || bet.RoundID == nil {
		return nil, fmt.Errorf("bet %d is not a crash bet: %w", betID, models.ErrInvalidState)
	}
	if bet.IsSettled() {
		return &models.SettlementOutcome{Bet: bet, Applied: false}, nil
	}

	round, err := uow.CrashRounds().GetByID(ctx, *bet.RoundID)
	if err != nil {
		return nil, fmt.Errorf("failed to get round %s: %w", *bet.RoundID, err)
	}
	if round == nil || !round.IsOpen() {
		return nil, fmt.Errorf("round for bet %d is closed: %w", betID, models.ErrRoundNotOpen)
	}

	multiplier := CurrentMultiplier(round.StartedAt, s.now())

	// At or past the crash point the money is gone; the round completion
	// settles the loss.
	if multiplier.GreaterThanOrEqual(decimal.NewFromFloat(round.CrashPoint)) {
		return nil, fmt.Errorf("round %s crashed at %.2fx: %w", round.ID, round.CrashPoint, models.ErrRoundNotOpen)
	}

	// The payout is fixed here, at the multiplier the player cashed out at.
	payout := decimal.NewFromInt(bet.Stake).Mul(multiplier).IntPart()

	outcome, err := applySettlement(ctx, uow, bet, models.BetResultWon, &payout)
	if err != nil {
		return nil, err
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	if outcome.Applied {
		log.WithFields(log.Fields{
			"betId":      betID,
			"roundId":    round.ID,
			"multiplier": multiplier,
			"payout":     payout,
		}).Info("Crash bet cashed out")
	}

	return outcome, nil
}

func (s *virtualGameService) SweepStaleBets(ctx context.Context, gameType models.GameType) (int, error) {
	// Digit and color bets past their countdown just get their draw; a
	// missed timer should not strand anyone's stake.
	if gameType == models.GameTypeDigit || gameType == models.GameTypeColor {
		return s.ResolveDueInstantBets(ctx, gameType)
	}
	if gameType != models.GameTypeCrash {
		return 0, fmt.Errorf("unknown game type %q", gameType)
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	stale, err := uow.Bets().ListStalePending(ctx, models.MarketKindVirtualCrash, s.now())
	if err != nil {
		return 0, fmt.Errorf("failed to list stale crash bets: %w", err)
	}

	// A crash bet this old belongs to a round that was never completed. The
	// honest outcome is unknowable, so the stake goes back. Any concurrent
	// settlement wins the conditional write and this becomes a no-op.
	swept := 0
	for _, bet := range stale {
		outcome, err := applySettlement(ctx, uow, bet, models.BetResultVoid, nil)
		if err != nil {
			return 0, fmt.Errorf("failed to void stale bet %d: %w", bet.ID, err)
		}
		if outcome.Applied {
			swept++
		}
	}

	if err := uow.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	if swept > 0 {
		log.WithFields(log.Fields{
			"gameType": gameType,
			"swept":    swept,
		}).Warn("Stale crash bets voided")
	}

	return swept, nil
}

func (s *virtualGameService) GetConfig(ctx context.Context, gameType models.GameType) (*models.VirtualGameConfig, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	cfg, err := uow.GameConfigs().Get(ctx, gameType)
	if err != nil {
		return nil, fmt.Errorf("failed to get game config: %w", err)
	}
	if cfg == nil {
		return nil, fmt.Errorf("game config %s: %w", gameType, models.ErrNotFound)
	}

	return cfg, nil
}

func (s *virtualGameService) SetNextCrash(ctx context.Context, actor string, value float64) error {
	if value < 1.0 {
		return fmt.Errorf("crash point must be at least 1.0, got %v", value)
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	cfg, err := uow.GameConfigs().Get(ctx, models.GameTypeCrash)
	if err != nil {
		return fmt.Errorf("failed to get crash config: %w", err)
	}
	if cfg == nil {
		return fmt.Errorf("crash game config: %w", models.ErrNotFound)
	}

	if err := uow.GameConfigs().SetSeriesValue(ctx, models.GameTypeCrash, cfg.CurrentIndex, value); err != nil {
		return fmt.Errorf("failed to set series value: %w", err)
	}

	if err := s.audit(ctx, uow, actor, "set_next_crash", map[string]any{
		"index": cfg.CurrentIndex,
		"value": value,
	}); err != nil {
		return err
	}

	return s.commit(uow)
}

func (s *virtualGameService) GenerateSeries(ctx context.Context, actor string, length int, min, max float64) ([]float64, error) {
	if length <= 0 {
		return nil, fmt.Errorf("series length must be positive, got %d", length)
	}
	if min < 1.0 || max <= min {
		return nil, fmt.Errorf("invalid crash range [%v, %v]", min, max)
	}

	series := make([]float64, length)
	for i := range series {
		series[i] = math.Round((min+rand.Float64()*(max-min))*100) / 100
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	if err := uow.GameConfigs().ReplaceSeries(ctx, models.GameTypeCrash, series); err != nil {
		return nil, fmt.Errorf("failed to replace series: %w", err)
	}

	if err := s.audit(ctx, uow, actor, "generate_series", map[string]any{
		"length": length,
		"min":    min,
		"max":    max,
	}); err != nil {
		return nil, err
	}

	if err := s.commit(uow); err != nil {
		return nil, err
	}

	return series, nil
}

func (s *virtualGameService) ResetIndex(ctx context.Context, actor string) error {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	if err := uow.GameConfigs().ResetIndex(ctx, models.GameTypeCrash); err != nil {
		return fmt.Errorf("failed to reset series index: %w", err)
	}

	if err := s.audit(ctx, uow, actor, "reset_index", map[string]any{}); err != nil {
		return err
	}

	return s.commit(uow)
}

func (s *virtualGameService) SetAutoComplete(ctx context.Context, actor string, gameType models.GameType, enabled bool, intervalSeconds int) error {
	if enabled && intervalSeconds <= 0 {
		return fmt.Errorf("auto-complete interval must be positive, got %d", intervalSeconds)
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	if err := uow.GameConfigs().SetAutoComplete(ctx, gameType, enabled, intervalSeconds); err != nil {
		return fmt.Errorf("failed to update auto-complete: %w", err)
	}

	if err := s.audit(ctx, uow, actor, "set_auto_complete", map[string]any{
		"game_type":        string(gameType),
		"enabled":          enabled,
		"interval_seconds": intervalSeconds,
	}); err != nil {
		return err
	}

	return s.commit(uow)
}

// audit records an admin action in the same transaction as its effect, so a
// config change without its audit row cannot be committed.
func (s *virtualGameService) audit(ctx context.Context, uow UnitOfWork, actor, action string, details map[string]any) error {
	entry := &models.AuditLog{
		Action:  action,
		Details: details,
		Actor:   actor,
	}
	if err := uow.Audit().Record(ctx, entry); err != nil {
		return fmt.Errorf("failed to record audit entry: %w", err)
	}
	return nil
}

func (s *virtualGameService) commit(uow UnitOfWork) error {
	if err := uow.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// CurrentMultiplier is the displayed crash multiplier at a given moment:
// it starts at 1.00 and climbs one increment per elapsed tick. The scheduler
// uses it to decide when an open round has reached its crash point.
func CurrentMultiplier(startedAt, now time.Time) decimal.Decimal {
	cfg := config.Get()

	elapsed := now.Sub(startedAt)
	if elapsed < 0 {
		return decimalOne
	}

	ticks := int64(elapsed / cfg.CrashTickInterval)
	return decimalOne.Add(cfg.CrashTickIncrement.Mul(decimal.NewFromInt(ticks)))
}
