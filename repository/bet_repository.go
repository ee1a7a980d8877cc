package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"stakehouse/database"
	"stakehouse/models"
)

// BetRepository implements the service.BetRepository interface. Status
// transitions are compare-and-swap updates on the current status, so a
// concurrent transition fails cleanly instead of silently overwriting.
type BetRepository struct {
	q queryable
}

// NewBetRepository creates a new bet repository
func NewBetRepository(db *database.DB) *BetRepository {
	return &BetRepository{q: db.Pool}
}

// newBetRepositoryWithTx creates a new bet repository with a transaction
func newBetRepositoryWithTx(tx queryable) *BetRepository {
	return &BetRepository{q: tx}
}

const betColumns = `id, account_id, market_kind, match_id, outcome_id, stake, odds,
	potential_payout, status, result, round_id, expires_at, placed_at, settled_at`

func scanBet(row pgx.Row) (*models.Bet, error) {
	var b models.Bet
	err := row.Scan(
		&b.ID,
		&b.AccountID,
		&b.MarketKind,
		&b.MatchID,
		&b.OutcomeID,
		&b.Stake,
		&b.Odds,
		&b.PotentialPayout,
		&b.Status,
		&b.Result,
		&b.RoundID,
		&b.ExpiresAt,
		&b.PlacedAt,
		&b.SettledAt,
	)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// Create creates a new bet record and fills in its ID and placement time.
func (r *BetRepository) Create(ctx context.Context, bet *models.Bet) error {
	query := `
		INSERT INTO bets
		(account_id, market_kind, match_id, outcome_id, stake, odds, potential_payout, status, result, round_id, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, placed_at
	`

	err := r.q.QueryRow(ctx, query,
		bet.AccountID,
		bet.MarketKind,
		bet.MatchID,
		bet.OutcomeID,
		bet.Stake,
		bet.Odds,
		bet.PotentialPayout,
		bet.Status,
		bet.Result,
		bet.RoundID,
		bet.ExpiresAt,
	).Scan(&bet.ID, &bet.PlacedAt)

	if err != nil {
		return fmt.Errorf("failed to create bet for account %d: %w", bet.AccountID, err)
	}

	return nil
}

// GetByID retrieves a bet by its ID
func (r *BetRepository) GetByID(ctx context.Context, betID int64) (*models.Bet, error) {
	query := `SELECT ` + betColumns + ` FROM bets WHERE id = $1`

	bet, err := scanBet(r.q.QueryRow(ctx, query, betID))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get bet %d: %w", betID, err)
	}

	return bet, nil
}

// ListByAccount returns the most recent bets for an account
func (r *BetRepository) ListByAccount(ctx context.Context, accountID int64, limit int) ([]*models.Bet, error) {
	query := `
		SELECT ` + betColumns + `
		FROM bets
		WHERE account_id = $1
		ORDER BY placed_at DESC
		LIMIT $2
	`

	rows, err := r.q.Query(ctx, query, accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list bets for account %d: %w", accountID, err)
	}
	defer rows.Close()

	return collectBets(rows)
}

// Transition applies a compare-and-swap status change. It fails with
// models.ErrConflictingTransition when the bet is not in the expected status.
func (r *BetRepository) Transition(ctx context.Context, betID int64, from, to models.BetStatus) error {
	query := `
		UPDATE bets
		SET status = $1
		WHERE id = $2 AND status = $3
	`

	result, err := r.q.Exec(ctx, query, to, betID, from)
	if err != nil {
		return fmt.Errorf("failed to transition bet %d: %w", betID, err)
	}

	if result.RowsAffected() == 0 {
		bet, err := r.GetByID(ctx, betID)
		if err != nil {
			return fmt.Errorf("failed to check bet %d: %w", betID, err)
		}
		if bet == nil {
			return fmt.Errorf("bet %d: %w", betID, models.ErrNotFound)
		}
		return fmt.Errorf("%w: bet %d is %s, expected %s", models.ErrConflictingTransition, betID, bet.Status, from)
	}

	return nil
}

// MarkSettled flips an unsettled bet to settled with the given result and an
// optional payout override (crash cash-outs fix their payout at this moment).
// It returns false without error when the bet was already settled, which is
// what makes Settle idempotent at the storage layer.
func (r *BetRepository) MarkSettled(ctx context.Context, betID int64, result models.BetResult, payout *int64) (bool, error) {
	query := `
		UPDATE bets
		SET status = 'settled',
		    result = $1,
		    potential_payout = COALESCE($2, potential_payout),
		    settled_at = NOW()
		WHERE id = $3 AND status <> 'settled'
	`

	tag, err := r.q.Exec(ctx, query, result, payout, betID)
	if err != nil {
		return false, fmt.Errorf("failed to settle bet %d: %w", betID, err)
	}

	if tag.RowsAffected() == 0 {
		bet, err := r.GetByID(ctx, betID)
		if err != nil {
			return false, fmt.Errorf("failed to check bet %d: %w", betID, err)
		}
		if bet == nil {
			return false, fmt.Errorf("bet %d: %w", betID, models.ErrNotFound)
		}
		// Already settled: the caller treats this as a no-op success.
		return false, nil
	}

	return true, nil
}

// ListUnsettledByMatch returns every unsettled pool and fixed-odds bet on a match
func (r *BetRepository) ListUnsettledByMatch(ctx context.Context, matchID string) ([]*models.Bet, error) {
	query := `
		SELECT ` + betColumns + `
		FROM bets
		WHERE match_id = $1
		  AND status <> 'settled'
		  AND market_kind IN ('pool', 'fixed_odds')
		ORDER BY id
	`

	rows, err := r.q.Query(ctx, query, matchID)
	if err != nil {
		return nil, fmt.Errorf("failed to list unsettled bets for match %s: %w", matchID, err)
	}
	defer rows.Close()

	return collectBets(rows)
}

// ListStalePending returns pending bets of a market kind whose resolution
// window expired before the cutoff. The auto-complete sweep feeds on this.
func (r *BetRepository) ListStalePending(ctx context.Context, kind models.MarketKind, before time.Time) ([]*models.Bet, error) {
	query := `
		SELECT ` + betColumns + `
		FROM bets
		WHERE market_kind = $1
		  AND status = 'pending'
		  AND expires_at IS NOT NULL
		  AND expires_at < $2
		ORDER BY expires_at
	`

	rows, err := r.q.Query(ctx, query, kind, before)
	if err != nil {
		return nil, fmt.Errorf("failed to list stale pending %s bets: %w", kind, err)
	}
	defer rows.Close()

	return collectBets(rows)
}

// ListPendingByRound returns the still-exposed bets of a crash round
func (r *BetRepository) ListPendingByRound(ctx context.Context, roundID string) ([]*models.Bet, error) {
	query := `
		SELECT ` + betColumns + `
		FROM bets
		WHERE round_id = $1 AND status = 'pending'
		ORDER BY id
	`

	rows, err := r.q.Query(ctx, query, roundID)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending bets for round %s: %w", roundID, err)
	}
	defer rows.Close()

	return collectBets(rows)
}

func collectBets(rows pgx.Rows) ([]*models.Bet, error) {
	var bets []*models.Bet
	for rows.Next() {
		bet, err := scanBet(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan bet: %w", err)
		}
		bets = append(bets, bet)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate bets: %w", err)
	}

	return bets, nil
}
