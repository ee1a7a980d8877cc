package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"stakehouse/database"
	"stakehouse/models"
)

// AuditRepository implements the service.AuditRepository interface.
type AuditRepository struct {
	q queryable
}

// NewAuditRepository creates a new audit repository
func NewAuditRepository(db *database.DB) *AuditRepository {
	return &AuditRepository{q: db.Pool}
}

// newAuditRepositoryWithTx creates a new audit repository with a transaction
func newAuditRepositoryWithTx(tx queryable) *AuditRepository {
	return &AuditRepository{q: tx}
}

// Record creates a new audit log entry
func (r *AuditRepository) Record(ctx context.Context, entry *models.AuditLog) error {
	detailsJSON, err := json.Marshal(entry.Details)
	if err != nil {
		return fmt.Errorf("failed to marshal audit details: %w", err)
	}

	query := `
		INSERT INTO audit_logs (action, details, actor)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`

	err = r.q.QueryRow(ctx, query, entry.Action, detailsJSON, entry.Actor).
		Scan(&entry.ID, &entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to record audit log %q: %w", entry.Action, err)
	}

	return nil
}

// ListRecent returns the most recent audit log entries
func (r *AuditRepository) ListRecent(ctx context.Context, limit int) ([]*models.AuditLog, error) {
	query := `
		SELECT id, action, details, actor, created_at
		FROM audit_logs
		ORDER BY created_at DESC, id DESC
		LIMIT $1
	`

	rows, err := r.q.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit logs: %w", err)
	}
	defer rows.Close()

	var entries []*models.AuditLog
	for rows.Next() {
		var entry models.AuditLog
		var detailsJSON []byte

		if err := rows.Scan(&entry.ID, &entry.Action, &detailsJSON, &entry.Actor, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit log: %w", err)
		}

		if len(detailsJSON) > 0 {
			if err := json.Unmarshal(detailsJSON, &entry.Details); err != nil {
				return nil, fmt.Errorf("failed to unmarshal audit details: %w", err)
			}
		}

		entries = append(entries, &entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate audit logs: %w", err)
	}

	return entries, nil
}
