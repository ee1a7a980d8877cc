// Package scheduler drives the virtual games: it keeps a crash round open,
// completes rounds when they reach their crash point, resolves instant bets
// whose countdown elapsed, and runs the configured auto-complete sweeps.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"stakehouse/models"
	"stakehouse/service"
)

const (
	// instantResolveSpec drains due digit/color bets well inside their
	// countdown window.
	instantResolveSpec = "@every 5s"

	// crashTickSpec must match the multiplier tick so round completion does
	// not lag the displayed multiplier.
	crashTickSpec = "@every 1s"

	// sweepPollSpec is how often the sweep jobs wake up; each run re-reads
	// the per-game cadence and skips until it elapsed.
	sweepPollSpec = "@every 10s"

	defaultSweepInterval = 60 * time.Second
)

// Scheduler owns the cron jobs behind the virtual games. All work goes
// through the virtual game service; every job is safe to run concurrently
// with user traffic because settlement is conditional at the database.
type Scheduler struct {
	cron  *cron.Cron
	games service.VirtualGameService

	mu        sync.Mutex
	lastSweep map[models.GameType]time.Time
}

// New creates a scheduler around the virtual game service
func New(games service.VirtualGameService) *Scheduler {
	return &Scheduler{
		cron:      cron.New(cron.WithSeconds()),
		games:     games,
		lastSweep: make(map[models.GameType]time.Time),
	}
}

// Start registers the jobs and starts the cron loop. The sweep enabled flag
// and cadence are re-read from each game's persisted configuration on every
// poll, so admin changes apply without a restart.
func (s *Scheduler) Start(ctx context.Context) error {
	for _, gameType := range []models.GameType{models.GameTypeDigit, models.GameTypeColor} {
		gt := gameType
		if _, err := s.cron.AddFunc(instantResolveSpec, func() {
			s.resolveInstant(ctx, gt)
		}); err != nil {
			return fmt.Errorf("failed to register %s resolver: %w", gt, err)
		}
	}

	if _, err := s.cron.AddFunc(crashTickSpec, func() {
		s.driveCrash(ctx)
	}); err != nil {
		return fmt.Errorf("failed to register crash driver: %w", err)
	}

	for _, gameType := range []models.GameType{models.GameTypeDigit, models.GameTypeColor, models.GameTypeCrash} {
		gt := gameType
		if _, err := s.cron.AddFunc(sweepPollSpec, func() {
			s.sweep(ctx, gt)
		}); err != nil {
			return fmt.Errorf("failed to register %s sweep: %w", gt, err)
		}
	}

	s.cron.Start()
	log.Info("Virtual game scheduler started")

	return nil
}

// Stop halts the cron loop and waits for running jobs to finish
func (s *Scheduler) Stop() {
	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
	log.Info("Virtual game scheduler stopped")
}

func (s *Scheduler) resolveInstant(ctx context.Context, gameType models.GameType) {
	if _, err := s.games.ResolveDueInstantBets(ctx, gameType); err != nil {
		log.WithField("gameType", gameType).WithError(err).Error("Failed to resolve instant bets")
	}
}

// driveCrash advances the crash game one tick: open a round if none is open,
// complete the open one once the multiplier reaches its crash point.
func (s *Scheduler) driveCrash(ctx context.Context) {
	round, err := s.games.OpenRound(ctx)
	if err != nil {
		log.WithError(err).Error("Failed to check open crash round")
		return
	}

	if round == nil {
		if _, err := s.games.StartCrashRound(ctx); err != nil {
			log.WithError(err).Error("Failed to start crash round")
		}
		return
	}

	multiplier := service.CurrentMultiplier(round.StartedAt, time.Now())
	if multiplier.LessThan(decimal.NewFromFloat(round.CrashPoint)) {
		return
	}

	if _, _, err := s.games.CompleteOpenRound(ctx); err != nil {
		log.WithField("roundId", round.ID).WithError(err).Error("Failed to complete crash round")
	}
}

func (s *Scheduler) sweep(ctx context.Context, gameType models.GameType) {
	cfg, err := s.games.GetConfig(ctx, gameType)
	if err != nil {
		log.WithField("gameType", gameType).WithError(err).Error("Failed to load game config for sweep")
		return
	}
	if !cfg.AutoCompleteEnabled {
		return
	}
	if !s.sweepDue(gameType, sweepInterval(cfg)) {
		return
	}

	if _, err := s.games.SweepStaleBets(ctx, gameType); err != nil {
		log.WithField("gameType", gameType).WithError(err).Error("Failed to sweep stale bets")
	}
}

// sweepDue reports whether the configured interval elapsed since the last
// sweep of the game type, claiming the slot when it did.
func (s *Scheduler) sweepDue(gameType models.GameType, interval time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if last, ok := s.lastSweep[gameType]; ok && time.Since(last) < interval {
		return false
	}
	s.lastSweep[gameType] = time.Now()
	return true
}

func sweepInterval(cfg *models.VirtualGameConfig) time.Duration {
	if cfg.AutoCompleteIntervalSeconds <= 0 {
		return defaultSweepInterval
	}
	return time.Duration(cfg.AutoCompleteIntervalSeconds) * time.Second
}
