package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"stakehouse/database"
	"stakehouse/models"
)

// CrashRoundRepository implements the service.CrashRoundRepository interface.
// A partial unique index on (game_type) WHERE completed_at IS NULL guarantees
// at most one open round per game type.
type CrashRoundRepository struct {
	q queryable
}

// NewCrashRoundRepository creates a new crash round repository
func NewCrashRoundRepository(db *database.DB) *CrashRoundRepository {
	return &CrashRoundRepository{q: db.Pool}
}

// newCrashRoundRepositoryWithTx creates a new crash round repository with a transaction
func newCrashRoundRepositoryWithTx(tx queryable) *CrashRoundRepository {
	return &CrashRoundRepository{q: tx}
}

const crashRoundColumns = `id, game_type, series_index, crash_point, started_at, completed_at`

func scanCrashRound(row pgx.Row) (*models.CrashRound, error) {
	var r models.CrashRound
	err := row.Scan(
		&r.ID,
		&r.GameType,
		&r.SeriesIndex,
		&r.CrashPoint,
		&r.StartedAt,
		&r.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// Create opens a new round, assigning its ID and start time.
func (r *CrashRoundRepository) Create(ctx context.Context, round *models.CrashRound) error {
	if round.ID == "" {
		round.ID = uuid.New().String()
	}

	query := `
		INSERT INTO crash_rounds (id, game_type, series_index, crash_point)
		VALUES ($1, $2, $3, $4)
		RETURNING started_at
	`

	err := r.q.QueryRow(ctx, query,
		round.ID,
		round.GameType,
		round.SeriesIndex,
		round.CrashPoint,
	).Scan(&round.StartedAt)

	if err != nil {
		return fmt.Errorf("failed to create crash round: %w", err)
	}

	return nil
}

// GetByID retrieves a round by its ID
func (r *CrashRoundRepository) GetByID(ctx context.Context, roundID string) (*models.CrashRound, error) {
	query := `SELECT ` + crashRoundColumns + ` FROM crash_rounds WHERE id = $1`

	round, err := scanCrashRound(r.q.QueryRow(ctx, query, roundID))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get crash round %s: %w", roundID, err)
	}

	return round, nil
}

// GetOpen returns the currently open round for a game type, or nil.
func (r *CrashRoundRepository) GetOpen(ctx context.Context, gameType models.GameType) (*models.CrashRound, error) {
	query := `
		SELECT ` + crashRoundColumns + `
		FROM crash_rounds
		WHERE game_type = $1 AND completed_at IS NULL
	`

	round, err := scanCrashRound(r.q.QueryRow(ctx, query, gameType))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get open crash round for %s: %w", gameType, err)
	}

	return round, nil
}

// Complete closes an open round. Returns false when the round was already
// completed by a concurrent caller.
func (r *CrashRoundRepository) Complete(ctx context.Context, roundID string) (bool, error) {
	query := `
		UPDATE crash_rounds
		SET completed_at = NOW()
		WHERE id = $1 AND completed_at IS NULL
	`

	tag, err := r.q.Exec(ctx, query, roundID)
	if err != nil {
		return false, fmt.Errorf("failed to complete crash round %s: %w", roundID, err)
	}

	return tag.RowsAffected() > 0, nil
}
