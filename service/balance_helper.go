package service

import (
	"context"
	"fmt"

	"stakehouse/events"
	"stakehouse/models"
)

// recordMovement appends a ledger entry and emits a balance change event.
// This is the single entry point for all balance-affecting writes in the
// system: every credit and debit made through a unit of work passes through
// here so the ledger and the event stream never drift apart.
func recordMovement(ctx context.Context, uow UnitOfWork, entry *models.LedgerEntry, newBalance int64) error {
	if err := uow.Ledger().Record(ctx, entry); err != nil {
		return fmt.Errorf("failed to record ledger entry: %w", err)
	}

	// Pending entries (withdrawal holds) have not moved settled money yet;
	// the event fires when they resolve.
	if entry.Status != models.LedgerStatusCompleted {
		return nil
	}

	uow.EventBus().Publish(events.BalanceChangeEvent{
		AccountID:    entry.AccountID,
		NewBalance:   newBalance,
		ChangeAmount: entry.Amount,
		Kind:         entry.Kind,
	})

	return nil
}
