package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"stakehouse/database"
	"stakehouse/models"
)

// GameConfigRepository implements the service.GameConfigRepository interface.
// There is exactly one row per game type; the scheduler advances the crash
// index and administrators override the series.
type GameConfigRepository struct {
	q queryable
}

// NewGameConfigRepository creates a new game config repository
func NewGameConfigRepository(db *database.DB) *GameConfigRepository {
	return &GameConfigRepository{q: db.Pool}
}

// newGameConfigRepositoryWithTx creates a new game config repository with a transaction
func newGameConfigRepositoryWithTx(tx queryable) *GameConfigRepository {
	return &GameConfigRepository{q: tx}
}

const gameConfigColumns = `game_type, crash_series, current_index, auto_complete_enabled, auto_complete_interval_seconds, updated_at`

func scanGameConfig(row pgx.Row) (*models.VirtualGameConfig, error) {
	var c models.VirtualGameConfig
	err := row.Scan(
		&c.GameType,
		&c.CrashSeries,
		&c.CurrentIndex,
		&c.AutoCompleteEnabled,
		&c.AutoCompleteIntervalSeconds,
		&c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// Get retrieves the configuration row for a game type
func (r *GameConfigRepository) Get(ctx context.Context, gameType models.GameType) (*models.VirtualGameConfig, error) {
	query := `SELECT ` + gameConfigColumns + ` FROM virtual_game_configs WHERE game_type = $1`

	config, err := scanGameConfig(r.q.QueryRow(ctx, query, gameType))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get game config for %s: %w", gameType, err)
	}

	return config, nil
}

// List returns the configuration rows for every game type
func (r *GameConfigRepository) List(ctx context.Context) ([]*models.VirtualGameConfig, error) {
	query := `SELECT ` + gameConfigColumns + ` FROM virtual_game_configs ORDER BY game_type`

	rows, err := r.q.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list game configs: %w", err)
	}
	defer rows.Close()

	var configs []*models.VirtualGameConfig
	for rows.Next() {
		config, err := scanGameConfig(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan game config: %w", err)
		}
		configs = append(configs, config)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate game configs: %w", err)
	}

	return configs, nil
}

// ReplaceSeries overwrites the crash series for a game type and rewinds the
// index so the new series is consumed from the start.
func (r *GameConfigRepository) ReplaceSeries(ctx context.Context, gameType models.GameType, series []float64) error {
	query := `
		UPDATE virtual_game_configs
		SET crash_series = $1, current_index = 0, updated_at = NOW()
		WHERE game_type = $2
	`

	result, err := r.q.Exec(ctx, query, series, gameType)
	if err != nil {
		return fmt.Errorf("failed to replace crash series for %s: %w", gameType, err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("game config %s: %w", gameType, models.ErrNotFound)
	}

	return nil
}

// SetSeriesValue overwrites a single position in the crash series.
// Positions are 1-based in Postgres arrays; the caller passes the 0-based index.
func (r *GameConfigRepository) SetSeriesValue(ctx context.Context, gameType models.GameType, index int, value float64) error {
	query := `
		UPDATE virtual_game_configs
		SET crash_series[$1] = $2, updated_at = NOW()
		WHERE game_type = $3 AND $1 <= array_length(crash_series, 1)
	`

	result, err := r.q.Exec(ctx, query, index+1, value, gameType)
	if err != nil {
		return fmt.Errorf("failed to set crash series value for %s: %w", gameType, err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("%w: series index %d out of range for %s", models.ErrInvalidState, index, gameType)
	}

	return nil
}

// AdvanceIndex moves the crash index forward by one, wrapping at the series
// length, and returns the new index. Runs as one statement so concurrent
// round completions cannot skip or repeat a series position.
func (r *GameConfigRepository) AdvanceIndex(ctx context.Context, gameType models.GameType) (int, error) {
	query := `
		UPDATE virtual_game_configs
		SET current_index = (current_index + 1) % GREATEST(COALESCE(array_length(crash_series, 1), 1), 1),
		    updated_at = NOW()
		WHERE game_type = $1
		RETURNING current_index
	`

	var newIndex int
	err := r.q.QueryRow(ctx, query, gameType).Scan(&newIndex)
	if err == pgx.ErrNoRows {
		return 0, fmt.Errorf("game config %s: %w", gameType, models.ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to advance crash index for %s: %w", gameType, err)
	}

	return newIndex, nil
}

// ResetIndex sets the crash index back to zero
func (r *GameConfigRepository) ResetIndex(ctx context.Context, gameType models.GameType) error {
	query := `
		UPDATE virtual_game_configs
		SET current_index = 0, updated_at = NOW()
		WHERE game_type = $1
	`

	result, err := r.q.Exec(ctx, query, gameType)
	if err != nil {
		return fmt.Errorf("failed to reset crash index for %s: %w", gameType, err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("game config %s: %w", gameType, models.ErrNotFound)
	}

	return nil
}

// SetAutoComplete updates the sweep settings for a game type
func (r *GameConfigRepository) SetAutoComplete(ctx context.Context, gameType models.GameType, enabled bool, intervalSeconds int) error {
	query := `
		UPDATE virtual_game_configs
		SET auto_complete_enabled = $1,
		    auto_complete_interval_seconds = $2,
		    updated_at = NOW()
		WHERE game_type = $3
	`

	result, err := r.q.Exec(ctx, query, enabled, intervalSeconds, gameType)
	if err != nil {
		return fmt.Errorf("failed to update auto-complete settings for %s: %w", gameType, err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("game config %s: %w", gameType, models.ErrNotFound)
	}

	return nil
}
