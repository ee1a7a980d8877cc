package cmd

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"stakehouse/config"
	"stakehouse/database"
	"stakehouse/events"
	"stakehouse/repository"
	"stakehouse/scheduler"
	"stakehouse/service"
)

// Run initializes and starts the settlement engine
func Run(ctx context.Context) error {
	log.Info("Starting stakehouse...")

	// Load configuration
	cfg := config.Get()

	// Initialize database connection
	log.Info("Connecting to database...")
	db, err := database.NewConnection(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	log.Info("Database connection established successfully")

	// Initialize event bus
	eventBus := events.NewBus()
	registerEventLogging(eventBus)

	// Initialize unit of work factory
	uowFactory := repository.NewUnitOfWorkFactory(db, eventBus)

	// Initialize the virtual game engine and its scheduler
	virtualGames := service.NewVirtualGameService(uowFactory)
	sched := scheduler.New(virtualGames)
	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	log.Info("Virtual game scheduler started")

	// Wait for context cancellation
	log.Infof("Engine is running in %s mode...", cfg.Environment)
	<-ctx.Done()

	// Cleanup resources
	log.Info("Shutting down...")

	sched.Stop()

	// Give cleanup operations time to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Close database connection
	log.Info("Closing database connection...")
	db.Close()

	select {
	case <-shutdownCtx.Done():
		log.Warn("Shutdown timeout exceeded")
	case <-time.After(1 * time.Second):
		log.Info("Shutdown completed")
	}

	return nil
}

// registerEventLogging subscribes an operational audit trail to the bus so
// every money movement and settlement shows up in the logs.
func registerEventLogging(bus *events.Bus) {
	bus.Subscribe(events.EventTypeBalanceChange, func(ctx context.Context, event events.Event) {
		if e, ok := event.(events.BalanceChangeEvent); ok {
			log.WithFields(log.Fields{
				"accountID":  e.AccountID,
				"change":     e.ChangeAmount,
				"newBalance": e.NewBalance,
				"kind":       e.Kind,
			}).Info("Balance changed")
		}
	})

	bus.Subscribe(events.EventTypeBetSettled, func(ctx context.Context, event events.Event) {
		if e, ok := event.(events.BetSettledEvent); ok {
			log.WithFields(log.Fields{
				"betID":     e.BetID,
				"accountID": e.AccountID,
				"result":    e.Result,
				"payout":    e.Payout,
			}).Info("Bet settled")
		}
	})

	bus.Subscribe(events.EventTypeWithdrawalDecided, func(ctx context.Context, event events.Event) {
		if e, ok := event.(events.WithdrawalDecidedEvent); ok {
			log.WithFields(log.Fields{
				"withdrawalID": e.WithdrawalID,
				"accountID":    e.AccountID,
				"amount":       e.Amount,
				"status":       e.Status,
			}).Info("Withdrawal decided")
		}
	})

	bus.Subscribe(events.EventTypeCrashRoundCompleted, func(ctx context.Context, event events.Event) {
		if e, ok := event.(events.CrashRoundCompletedEvent); ok {
			log.WithFields(log.Fields{
				"roundID":     e.RoundID,
				"crashPoint":  e.CrashPoint,
				"betsSettled": e.BetsSettled,
			}).Info("Crash round completed")
		}
	})
}
