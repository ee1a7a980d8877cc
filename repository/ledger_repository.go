package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"stakehouse/database"
	"stakehouse/models"
)

// LedgerRepository implements the service.LedgerRepository interface.
// Entries are append-only; the only mutation is flipping a pending entry to
// a terminal status when its withdrawal is decided.
type LedgerRepository struct {
	q queryable
}

// NewLedgerRepository creates a new ledger repository
func NewLedgerRepository(db *database.DB) *LedgerRepository {
	return &LedgerRepository{q: db.Pool}
}

// newLedgerRepositoryWithTx creates a new ledger repository with a transaction
func newLedgerRepositoryWithTx(tx queryable) *LedgerRepository {
	return &LedgerRepository{q: tx}
}

// Record creates a new ledger entry, assigning it a unique reference.
func (r *LedgerRepository) Record(ctx context.Context, entry *models.LedgerEntry) error {
	if entry.Reference == "" {
		entry.Reference = uuid.New().String()
	}
	if entry.Status == "" {
		entry.Status = models.LedgerStatusCompleted
	}

	metadataJSON, err := json.Marshal(entry.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal ledger metadata: %w", err)
	}

	query := `
		INSERT INTO ledger_entries
		(reference, account_id, kind, amount, status, related_bet_id, related_withdrawal_id, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at
	`

	err = r.q.QueryRow(ctx, query,
		entry.Reference,
		entry.AccountID,
		entry.Kind,
		entry.Amount,
		entry.Status,
		entry.RelatedBetID,
		entry.RelatedWithdrawalID,
		metadataJSON,
	).Scan(&entry.ID, &entry.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to record ledger entry for account %d: %w", entry.AccountID, err)
	}

	return nil
}

// SettleWithdrawalEntry flips the pending withdrawal entry for a withdrawal
// to its terminal status.
func (r *LedgerRepository) SettleWithdrawalEntry(ctx context.Context, withdrawalID int64, status models.LedgerStatus) error {
	query := `
		UPDATE ledger_entries
		SET status = $1
		WHERE related_withdrawal_id = $2 AND status = 'pending'
	`

	result, err := r.q.Exec(ctx, query, status, withdrawalID)
	if err != nil {
		return fmt.Errorf("failed to settle ledger entry for withdrawal %d: %w", withdrawalID, err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("%w: no pending ledger entry for withdrawal %d", models.ErrInvalidState, withdrawalID)
	}

	return nil
}

// ListByAccount returns the most recent ledger entries for an account
func (r *LedgerRepository) ListByAccount(ctx context.Context, accountID int64, limit int) ([]*models.LedgerEntry, error) {
	query := `
		SELECT id, reference, account_id, kind, amount, status, related_bet_id, related_withdrawal_id, metadata, created_at
		FROM ledger_entries
		WHERE account_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`

	rows, err := r.q.Query(ctx, query, accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list ledger entries for account %d: %w", accountID, err)
	}
	defer rows.Close()

	var entries []*models.LedgerEntry
	for rows.Next() {
		entry, err := scanLedgerEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate ledger entries: %w", err)
	}

	return entries, nil
}

func scanLedgerEntry(row pgx.Row) (*models.LedgerEntry, error) {
	var entry models.LedgerEntry
	var metadataJSON []byte

	err := row.Scan(
		&entry.ID,
		&entry.Reference,
		&entry.AccountID,
		&entry.Kind,
		&entry.Amount,
		&entry.Status,
		&entry.RelatedBetID,
		&entry.RelatedWithdrawalID,
		&metadataJSON,
		&entry.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
	}

	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &entry.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal ledger metadata: %w", err)
		}
	}

	return &entry, nil
}
