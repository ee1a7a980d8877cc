package service

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"stakehouse/config"
	"stakehouse/events"
	"stakehouse/models"
	"stakehouse/payment"
)

type withdrawalService struct {
	uowFactory UnitOfWorkFactory
	gateway    payment.Gateway
}

// NewWithdrawalService creates a new withdrawal service
func NewWithdrawalService(uowFactory UnitOfWorkFactory, gateway payment.Gateway) WithdrawalService {
	return &withdrawalService{
		uowFactory: uowFactory,
		gateway:    gateway,
	}
}

func (s *withdrawalService) Request(ctx context.Context, accountID int64, amount int64) (*models.Withdrawal, error) {
	cfg := config.Get()
	if amount < cfg.MinWithdrawalAmount {
		return nil, fmt.Errorf("withdrawal of %d is below the minimum of %d: %w", amount, cfg.MinWithdrawalAmount, models.ErrAmountBelowMinimum)
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback() // No-op if already committed

	account, err := uow.Accounts().GetByID(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	if account == nil {
		return nil, fmt.Errorf("account %d: %w", accountID, models.ErrNotFound)
	}
	if !account.CanWithdraw() {
		return nil, &models.AccountNotActiveError{AccountID: account.ID, Status: account.Status}
	}

	// The hold is the gate: one atomic statement moves the amount out of the
	// spendable balance, failing if the balance cannot cover it.
	if err := uow.Accounts().HoldForWithdrawal(ctx, accountID, amount); err != nil {
		return nil, fmt.Errorf("failed to hold withdrawal amount: %w", err)
	}

	withdrawal := &models.Withdrawal{
		AccountID: accountID,
		Amount:    amount,
		Status:    models.WithdrawalStatusPending,
	}
	if err := uow.Withdrawals().Create(ctx, withdrawal); err != nil {
		return nil, fmt.Errorf("failed to create withdrawal: %w", err)
	}

	// The ledger entry stays pending until the withdrawal is decided; only
	// an approval makes the debit permanent.
	entry := &models.LedgerEntry{
		AccountID:           accountID,
		Kind:                models.LedgerKindWithdrawal,
		Amount:              -amount,
		Status:              models.LedgerStatusPending,
		RelatedWithdrawalID: &withdrawal.ID,
	}
	if err := recordMovement(ctx, uow, entry, account.Balance-amount); err != nil {
		return nil, err
	}

	uow.EventBus().Publish(events.WithdrawalRequestedEvent{
		WithdrawalID: withdrawal.ID,
		AccountID:    accountID,
		Amount:       amount,
	})

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.WithFields(log.Fields{
		"withdrawalId": withdrawal.ID,
		"accountId":    accountID,
		"amount":       amount,
	}).Info("Withdrawal requested")

	return withdrawal, nil
}

func (s *withdrawalService) Approve(ctx context.Context, withdrawalID int64) (*models.Withdrawal, error) {
	// Claim the withdrawal before the irreversible payout: the committed
	// swap to processing locks out a concurrent Cancel or Reject, so the
	// held amount can no longer be refunded while the money is in flight.
	claimed, err := s.claim(ctx, withdrawalID)
	if err != nil {
		return nil, err
	}

	ref, err := s.gateway.InitiatePayout(ctx, claimed.AccountID, claimed.Amount)
	if err != nil {
		// No money left the system: fail the claimed withdrawal and give
		// the hold back.
		reason := fmt.Sprintf("payout rejected by payment gateway: %v", err)
		if _, closeErr := s.close(ctx, withdrawalID, models.WithdrawalStatusProcessing, models.WithdrawalStatusFailed, &reason); closeErr != nil {
			log.WithFields(log.Fields{
				"withdrawalId": withdrawalID,
			}).WithError(closeErr).Error("Rejected payout left withdrawal in processing")
			return nil, closeErr
		}
		return nil, fmt.Errorf("payout rejected by payment gateway: %w", err)
	}

	withdrawal, err := s.complete(ctx, withdrawalID, ref)
	if err != nil {
		// The payout already left; this needs an operator's eyes.
		log.WithFields(log.Fields{
			"withdrawalId":   withdrawalID,
			"transactionRef": ref,
		}).WithError(err).Error("Payout sent but withdrawal could not be completed")
		return nil, fmt.Errorf("failed to complete withdrawal %d after payout %s: %w", withdrawalID, ref, err)
	}

	log.WithFields(log.Fields{
		"withdrawalId":   withdrawal.ID,
		"accountId":      withdrawal.AccountID,
		"amount":         withdrawal.Amount,
		"transactionRef": ref,
	}).Info("Withdrawal approved")

	return withdrawal, nil
}

// claim swaps a pending withdrawal to processing in its own committed
// transaction. Only the claimant may decide a processing withdrawal.
func (s *withdrawalService) claim(ctx context.Context, withdrawalID int64) (*models.Withdrawal, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	withdrawal, err := uow.Withdrawals().MarkProcessing(ctx, withdrawalID)
	if err != nil {
		return nil, fmt.Errorf("failed to claim withdrawal %d: %w", withdrawalID, err)
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return withdrawal, nil
}

// complete records a successful payout: the held amount leaves the system,
// the hold is released without refund, and the pending ledger debit becomes
// permanent.
func (s *withdrawalService) complete(ctx context.Context, withdrawalID int64, transactionRef string) (*models.Withdrawal, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	withdrawal, err := uow.Withdrawals().Decide(ctx, withdrawalID, models.WithdrawalStatusProcessing, models.WithdrawalStatusCompleted, nil, &transactionRef)
	if err != nil {
		return nil, err
	}

	if err := uow.Accounts().ReleaseHold(ctx, withdrawal.AccountID, withdrawal.Amount, false); err != nil {
		return nil, fmt.Errorf("failed to release withdrawal hold: %w", err)
	}
	if err := uow.Ledger().SettleWithdrawalEntry(ctx, withdrawalID, models.LedgerStatusCompleted); err != nil {
		return nil, fmt.Errorf("failed to settle withdrawal ledger entry: %w", err)
	}

	s.publishDecision(uow, withdrawal)

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return withdrawal, nil
}

func (s *withdrawalService) Reject(ctx context.Context, withdrawalID int64, reason string) (*models.Withdrawal, error) {
	if reason == "" {
		return nil, fmt.Errorf("a rejection reason is required")
	}
	withdrawal, err := s.close(ctx, withdrawalID, models.WithdrawalStatusPending, models.WithdrawalStatusFailed, &reason)
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"withdrawalId": withdrawal.ID,
		"accountId":    withdrawal.AccountID,
		"amount":       withdrawal.Amount,
		"reason":       reason,
	}).Info("Withdrawal rejected")

	return withdrawal, nil
}

func (s *withdrawalService) Cancel(ctx context.Context, withdrawalID, accountID int64) (*models.Withdrawal, error) {
	if err := s.verifyOwner(ctx, withdrawalID, accountID); err != nil {
		return nil, err
	}

	withdrawal, err := s.close(ctx, withdrawalID, models.WithdrawalStatusPending, models.WithdrawalStatusCancelled, nil)
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"withdrawalId": withdrawal.ID,
		"accountId":    withdrawal.AccountID,
		"amount":       withdrawal.Amount,
	}).Info("Withdrawal cancelled")

	return withdrawal, nil
}

func (s *withdrawalService) List(ctx context.Context, accountID int64, limit int) ([]*models.Withdrawal, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	withdrawals, err := uow.Withdrawals().ListByAccount(ctx, accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list withdrawals: %w", err)
	}

	return withdrawals, nil
}

// close fails or cancels a withdrawal without paying out: the hold flows
// back into the balance and the pending ledger debit is voided. The swap is
// guarded on the expected current status.
func (s *withdrawalService) close(ctx context.Context, withdrawalID int64, from, to models.WithdrawalStatus, reason *string) (*models.Withdrawal, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	withdrawal, err := uow.Withdrawals().Decide(ctx, withdrawalID, from, to, reason, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decide withdrawal %d: %w", withdrawalID, err)
	}

	if err := uow.Accounts().ReleaseHold(ctx, withdrawal.AccountID, withdrawal.Amount, true); err != nil {
		return nil, fmt.Errorf("failed to refund withdrawal hold: %w", err)
	}
	if err := uow.Ledger().SettleWithdrawalEntry(ctx, withdrawalID, models.LedgerStatusFailed); err != nil {
		return nil, fmt.Errorf("failed to settle withdrawal ledger entry: %w", err)
	}

	s.publishDecision(uow, withdrawal)

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return withdrawal, nil
}

// verifyOwner confirms the withdrawal belongs to the account. A withdrawal
// owned by someone else is indistinguishable from a missing one.
func (s *withdrawalService) verifyOwner(ctx context.Context, withdrawalID, accountID int64) error {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	withdrawal, err := uow.Withdrawals().GetByID(ctx, withdrawalID)
	if err != nil {
		return fmt.Errorf("failed to get withdrawal: %w", err)
	}
	if withdrawal == nil || withdrawal.AccountID != accountID {
		return fmt.Errorf("withdrawal %d: %w", withdrawalID, models.ErrNotFound)
	}

	return nil
}

func (s *withdrawalService) publishDecision(uow UnitOfWork, withdrawal *models.Withdrawal) {
	uow.EventBus().Publish(events.WithdrawalDecidedEvent{
		WithdrawalID: withdrawal.ID,
		AccountID:    withdrawal.AccountID,
		Amount:       withdrawal.Amount,
		Status:       withdrawal.Status,
	})
}
