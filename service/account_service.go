package service

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"stakehouse/config"
	"stakehouse/models"
	"stakehouse/payment"
)

type accountService struct {
	uowFactory UnitOfWorkFactory
	gateway    payment.Gateway
}

// NewAccountService creates a new account service
func NewAccountService(uowFactory UnitOfWorkFactory, gateway payment.Gateway) AccountService {
	return &accountService{
		uowFactory: uowFactory,
		gateway:    gateway,
	}
}

func (s *accountService) GetAccount(ctx context.Context, accountID int64) (*models.Account, error) {
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

	return account, nil
}

func (s *accountService) CreateAccount(ctx context.Context) (*models.Account, error) {
	cfg := config.Get()

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	account, err := uow.Accounts().Create(ctx, cfg.StartingBalance)
	if err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	if cfg.StartingBalance > 0 {
		entry := &models.LedgerEntry{
			AccountID: account.ID,
			Kind:      models.LedgerKindDeposit,
			Amount:    cfg.StartingBalance,
			Metadata:  map[string]any{"reason": "starting_balance"},
		}
		if err := recordMovement(ctx, uow, entry, account.Balance); err != nil {
			return nil, err
		}
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.WithFields(log.Fields{
		"accountId": account.ID,
		"balance":   account.Balance,
	}).Info("Account created")

	return account, nil
}

func (s *accountService) Deposit(ctx context.Context, accountID int64, amount int64) (*models.Account, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("deposit amount must be positive")
	}

	// Collect the money before crediting it. A gateway failure here leaves
	// the account untouched.
	ref, err := s.gateway.InitiateDeposit(ctx, accountID, amount)
	if err != nil {
		return nil, fmt.Errorf("deposit rejected by payment gateway: %w", err)
	}

	cfg := config.Get()

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	newBalance, err := uow.Accounts().Adjust(ctx, accountID, amount)
	if err != nil {
		return nil, fmt.Errorf("failed to credit deposit: %w", err)
	}

	entry := &models.LedgerEntry{
		Reference: ref,
		AccountID: accountID,
		Kind:      models.LedgerKindDeposit,
		Amount:    amount,
	}
	if err := recordMovement(ctx, uow, entry, newBalance); err != nil {
		return nil, err
	}

	if bonus := amount * cfg.DepositBonusPercent / 100; bonus > 0 {
		if err := uow.Accounts().AddBonus(ctx, accountID, bonus, bonus); err != nil {
			return nil, fmt.Errorf("failed to credit deposit bonus: %w", err)
		}

		bonusEntry := &models.LedgerEntry{
			AccountID: accountID,
			Kind:      models.LedgerKindBonus,
			Amount:    bonus,
			Metadata:  map[string]any{"deposit_ref": ref},
		}
		// Bonus balance is tracked separately from the spendable balance.
		if err := uow.Ledger().Record(ctx, bonusEntry); err != nil {
			return nil, fmt.Errorf("failed to record bonus entry: %w", err)
		}
	}

	account, err := uow.Accounts().GetByID(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return account, nil
}

func (s *accountService) ConvertBonus(ctx context.Context, accountID int64) (*models.Account, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	account, err := uow.Accounts().GetByID(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	if account == nil {
		return nil, fmt.Errorf("account %d: %w", accountID, models.ErrNotFound)
	}
	if account.WithdrawableBonus <= 0 {
		return account, nil
	}

	converted := account.WithdrawableBonus
	newBalance, err := uow.Accounts().ConvertWithdrawableBonus(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to convert bonus: %w", err)
	}

	entry := &models.LedgerEntry{
		AccountID: accountID,
		Kind:      models.LedgerKindBonus,
		Amount:    converted,
		Metadata:  map[string]any{"reason": "bonus_conversion"},
	}
	if err := recordMovement(ctx, uow, entry, newBalance); err != nil {
		return nil, err
	}

	account, err = uow.Accounts().GetByID(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.WithFields(log.Fields{
		"accountId": accountID,
		"converted": converted,
	}).Info("Withdrawable bonus converted")

	return account, nil
}

func (s *accountService) Statement(ctx context.Context, accountID int64, limit int) ([]*models.LedgerEntry, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	entries, err := uow.Ledger().ListByAccount(ctx, accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list ledger entries: %w", err)
	}

	return entries, nil
}

func (s *accountService) SetStatus(ctx context.Context, accountID int64, status models.AccountStatus) error {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	if err := uow.Accounts().UpdateStatus(ctx, accountID, status); err != nil {
		return fmt.Errorf("failed to update account status: %w", err)
	}

	if err := uow.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.WithFields(log.Fields{
		"accountId": accountID,
		"status":    status,
	}).Info("Account status updated")

	return nil
}
