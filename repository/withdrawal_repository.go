package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"stakehouse/database"
	"stakehouse/models"
)

// WithdrawalRepository implements the service.WithdrawalRepository interface.
// Every transition is compare-and-swap on the expected current status: an
// approval claims pending->processing before any money moves, and a decided
// withdrawal can never transition again.
type WithdrawalRepository struct {
	q queryable
}

// NewWithdrawalRepository creates a new withdrawal repository
func NewWithdrawalRepository(db *database.DB) *WithdrawalRepository {
	return &WithdrawalRepository{q: db.Pool}
}

// newWithdrawalRepositoryWithTx creates a new withdrawal repository with a transaction
func newWithdrawalRepositoryWithTx(tx queryable) *WithdrawalRepository {
	return &WithdrawalRepository{q: tx}
}

const withdrawalColumns = `id, account_id, amount, status, requested_at, decided_at, failure_reason, transaction_ref`

func scanWithdrawal(row pgx.Row) (*models.Withdrawal, error) {
	var w models.Withdrawal
	err := row.Scan(
		&w.ID,
		&w.AccountID,
		&w.Amount,
		&w.Status,
		&w.RequestedAt,
		&w.DecidedAt,
		&w.FailureReason,
		&w.TransactionRef,
	)
	if err != nil {
		return nil, err
	}
	return &w, nil
}

// Create creates a new pending withdrawal and fills in its ID and request time.
func (r *WithdrawalRepository) Create(ctx context.Context, withdrawal *models.Withdrawal) error {
	query := `
		INSERT INTO withdrawals (account_id, amount, status)
		VALUES ($1, $2, $3)
		RETURNING id, requested_at
	`

	err := r.q.QueryRow(ctx, query,
		withdrawal.AccountID,
		withdrawal.Amount,
		withdrawal.Status,
	).Scan(&withdrawal.ID, &withdrawal.RequestedAt)

	if err != nil {
		return fmt.Errorf("failed to create withdrawal for account %d: %w", withdrawal.AccountID, err)
	}

	return nil
}

// GetByID retrieves a withdrawal by its ID
func (r *WithdrawalRepository) GetByID(ctx context.Context, withdrawalID int64) (*models.Withdrawal, error) {
	query := `SELECT ` + withdrawalColumns + ` FROM withdrawals WHERE id = $1`

	withdrawal, err := scanWithdrawal(r.q.QueryRow(ctx, query, withdrawalID))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get withdrawal %d: %w", withdrawalID, err)
	}

	return withdrawal, nil
}

// ListByAccount returns the most recent withdrawals for an account
func (r *WithdrawalRepository) ListByAccount(ctx context.Context, accountID int64, limit int) ([]*models.Withdrawal, error) {
	query := `
		SELECT ` + withdrawalColumns + `
		FROM withdrawals
		WHERE account_id = $1
		ORDER BY requested_at DESC
		LIMIT $2
	`

	rows, err := r.q.Query(ctx, query, accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list withdrawals for account %d: %w", accountID, err)
	}
	defer rows.Close()

	var withdrawals []*models.Withdrawal
	for rows.Next() {
		w, err := scanWithdrawal(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan withdrawal: %w", err)
		}
		withdrawals = append(withdrawals, w)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate withdrawals: %w", err)
	}

	return withdrawals, nil
}

// MarkProcessing claims a pending withdrawal for payout. The swap to
// processing locks out every other decision path until the claimant records
// the outcome; losing the swap fails with models.ErrInvalidState.
func (r *WithdrawalRepository) MarkProcessing(ctx context.Context, withdrawalID int64) (*models.Withdrawal, error) {
	query := `
		UPDATE withdrawals
		SET status = 'processing'
		WHERE id = $1 AND status = 'pending'
		RETURNING ` + withdrawalColumns

	withdrawal, err := scanWithdrawal(r.q.QueryRow(ctx, query, withdrawalID))
	if err == pgx.ErrNoRows {
		return nil, r.classifyMissedSwap(ctx, withdrawalID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to mark withdrawal %d processing: %w", withdrawalID, err)
	}

	return withdrawal, nil
}

// Decide moves a withdrawal from the expected status to a terminal one,
// recording the decision time plus the failure reason (reject) or transaction
// reference (approve). A withdrawal not in the expected status fails with
// models.ErrInvalidState.
func (r *WithdrawalRepository) Decide(ctx context.Context, withdrawalID int64, from, to models.WithdrawalStatus, failureReason, transactionRef *string) (*models.Withdrawal, error) {
	query := `
		UPDATE withdrawals
		SET status = $1,
		    decided_at = NOW(),
		    failure_reason = $2,
		    transaction_ref = $3
		WHERE id = $4 AND status = $5
		RETURNING ` + withdrawalColumns

	withdrawal, err := scanWithdrawal(r.q.QueryRow(ctx, query, to, failureReason, transactionRef, withdrawalID, from))
	if err == pgx.ErrNoRows {
		return nil, r.classifyMissedSwap(ctx, withdrawalID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decide withdrawal %d: %w", withdrawalID, err)
	}

	return withdrawal, nil
}

// classifyMissedSwap turns a zero-row conditional update into ErrNotFound or
// ErrInvalidState by looking at what the row actually holds.
func (r *WithdrawalRepository) classifyMissedSwap(ctx context.Context, withdrawalID int64) error {
	existing, err := r.GetByID(ctx, withdrawalID)
	if err != nil {
		return fmt.Errorf("failed to check withdrawal %d: %w", withdrawalID, err)
	}
	if existing == nil {
		return fmt.Errorf("withdrawal %d: %w", withdrawalID, models.ErrNotFound)
	}
	return fmt.Errorf("%w: withdrawal %d is %s", models.ErrInvalidState, withdrawalID, existing.Status)
}

// SumPendingByAccount returns the total amount currently held for undecided
// withdrawals of an account. Processing withdrawals still hold their amount
// until the payout outcome is recorded.
func (r *WithdrawalRepository) SumPendingByAccount(ctx context.Context, accountID int64) (int64, error) {
	query := `
		SELECT COALESCE(SUM(amount), 0)
		FROM withdrawals
		WHERE account_id = $1 AND status IN ('pending', 'processing')
	`

	var total int64
	if err := r.q.QueryRow(ctx, query, accountID).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to sum pending withdrawals for account %d: %w", accountID, err)
	}

	return total, nil
}
