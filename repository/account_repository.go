package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"stakehouse/database"
	"stakehouse/models"
)

// AccountRepository implements the service.AccountRepository interface.
// Every balance mutation is a single conditional UPDATE so that concurrent
// adjustments to the same account serialize at the row and never lose an
// update; no caller ever reads a balance and writes back an absolute value.
type AccountRepository struct {
	q queryable
}

// NewAccountRepository creates a new account repository
func NewAccountRepository(db *database.DB) *AccountRepository {
	return &AccountRepository{q: db.Pool}
}

// newAccountRepositoryWithTx creates a new account repository with a transaction
func newAccountRepositoryWithTx(tx queryable) *AccountRepository {
	return &AccountRepository{q: tx}
}

const accountColumns = `id, balance, bonus_balance, withdrawable_bonus, pending_withdrawal, status, created_at, updated_at`

func scanAccount(row pgx.Row) (*models.Account, error) {
	var a models.Account
	err := row.Scan(
		&a.ID,
		&a.Balance,
		&a.BonusBalance,
		&a.WithdrawableBonus,
		&a.PendingWithdrawal,
		&a.Status,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// GetByID retrieves an account by its ID
func (r *AccountRepository) GetByID(ctx context.Context, accountID int64) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`

	account, err := scanAccount(r.q.QueryRow(ctx, query, accountID))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account %d: %w", accountID, err)
	}

	return account, nil
}

// Create creates a new account with the given starting balance
func (r *AccountRepository) Create(ctx context.Context, startingBalance int64) (*models.Account, error) {
	query := `
		INSERT INTO accounts (balance)
		VALUES ($1)
		RETURNING ` + accountColumns

	account, err := scanAccount(r.q.QueryRow(ctx, query, startingBalance))
	if err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	return account, nil
}

// Adjust applies delta to the account balance as a single atomic operation
// and returns the new balance. A debit that would take the balance negative
// fails with models.ErrInsufficientFunds; debits against accounts that may
// not transact fail with models.ErrAccountNotActive. Credits always land:
// settlement payouts belong to the account holder whatever their standing.
func (r *AccountRepository) Adjust(ctx context.Context, accountID int64, delta int64) (int64, error) {
	query := `
		UPDATE accounts
		SET balance = balance + $1, updated_at = NOW()
		WHERE id = $2
		  AND balance + $1 >= 0
		  AND ($1 >= 0 OR status IN ('active', 'restricted'))
		RETURNING balance
	`

	var newBalance int64
	err := r.q.QueryRow(ctx, query, delta, accountID).Scan(&newBalance)
	if err == pgx.ErrNoRows {
		return 0, r.classifyAdjustFailure(ctx, accountID, -delta)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to adjust balance for account %d: %w", accountID, err)
	}

	return newBalance, nil
}

// HoldForWithdrawal debits balance and increments pending_withdrawal in one
// statement, so there is no window where the held amount could be spent.
func (r *AccountRepository) HoldForWithdrawal(ctx context.Context, accountID int64, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("%w: hold amount must be positive", models.ErrInvalidState)
	}

	query := `
		UPDATE accounts
		SET balance = balance - $1,
		    pending_withdrawal = pending_withdrawal + $1,
		    updated_at = NOW()
		WHERE id = $2
		  AND balance >= $1
		  AND status IN ('active', 'restricted')
	`

	result, err := r.q.Exec(ctx, query, amount, accountID)
	if err != nil {
		return fmt.Errorf("failed to hold %d for withdrawal on account %d: %w", amount, accountID, err)
	}

	if result.RowsAffected() == 0 {
		return r.classifyAdjustFailure(ctx, accountID, amount)
	}

	return nil
}

// ReleaseHold removes a withdrawal hold. When refund is true the held amount
// is credited back to the balance (reject/cancel); otherwise the funds have
// left the system (approve) and only the hold is removed.
func (r *AccountRepository) ReleaseHold(ctx context.Context, accountID int64, amount int64, refund bool) error {
	if amount <= 0 {
		return fmt.Errorf("%w: release amount must be positive", models.ErrInvalidState)
	}

	credit := int64(0)
	if refund {
		credit = amount
	}

	query := `
		UPDATE accounts
		SET balance = balance + $1,
		    pending_withdrawal = pending_withdrawal - $2,
		    updated_at = NOW()
		WHERE id = $3
		  AND pending_withdrawal >= $2
	`

	result, err := r.q.Exec(ctx, query, credit, amount, accountID)
	if err != nil {
		return fmt.Errorf("failed to release hold of %d on account %d: %w", amount, accountID, err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("%w: no hold of %d on account %d", models.ErrInvalidState, amount, accountID)
	}

	return nil
}

// AddBonus credits the bonus balance, optionally marking a share withdrawable.
func (r *AccountRepository) AddBonus(ctx context.Context, accountID int64, amount, withdrawable int64) error {
	query := `
		UPDATE accounts
		SET bonus_balance = bonus_balance + $1,
		    withdrawable_bonus = withdrawable_bonus + $2,
		    updated_at = NOW()
		WHERE id = $3
	`

	result, err := r.q.Exec(ctx, query, amount, withdrawable, accountID)
	if err != nil {
		return fmt.Errorf("failed to add bonus for account %d: %w", accountID, err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("account %d: %w", accountID, models.ErrNotFound)
	}

	return nil
}

// ConvertWithdrawableBonus moves the whole withdrawable bonus into the
// spendable balance and returns the new balance.
func (r *AccountRepository) ConvertWithdrawableBonus(ctx context.Context, accountID int64) (int64, error) {
	query := `
		UPDATE accounts
		SET balance = balance + withdrawable_bonus,
		    bonus_balance = bonus_balance - withdrawable_bonus,
		    withdrawable_bonus = 0,
		    updated_at = NOW()
		WHERE id = $1
		RETURNING balance
	`

	var newBalance int64
	err := r.q.QueryRow(ctx, query, accountID).Scan(&newBalance)
	if err == pgx.ErrNoRows {
		return 0, fmt.Errorf("account %d: %w", accountID, models.ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to convert bonus for account %d: %w", accountID, err)
	}

	return newBalance, nil
}

// UpdateStatus records the account standing reported by the identity layer.
func (r *AccountRepository) UpdateStatus(ctx context.Context, accountID int64, status models.AccountStatus) error {
	query := `UPDATE accounts SET status = $1, updated_at = NOW() WHERE id = $2`

	result, err := r.q.Exec(ctx, query, status, accountID)
	if err != nil {
		return fmt.Errorf("failed to update status for account %d: %w", accountID, err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("account %d: %w", accountID, models.ErrNotFound)
	}

	return nil
}

// classifyAdjustFailure turns a zero-row conditional update into the precise
// error the caller needs: missing account, inactive account, or funds.
func (r *AccountRepository) classifyAdjustFailure(ctx context.Context, accountID int64, needed int64) error {
	account, err := r.GetByID(ctx, accountID)
	if err != nil {
		return fmt.Errorf("failed to check account %d: %w", accountID, err)
	}
	if account == nil {
		return fmt.Errorf("account %d: %w", accountID, models.ErrNotFound)
	}
	if account.Status != models.AccountStatusActive && account.Status != models.AccountStatusRestricted {
		return &models.AccountNotActiveError{AccountID: accountID, Status: account.Status}
	}
	return fmt.Errorf("%w: have %d, need %d", models.ErrInsufficientFunds, account.Balance, needed)
}
