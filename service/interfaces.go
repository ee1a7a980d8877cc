package service

import (
	"context"
	"time"

	"stakehouse/events"
	"stakehouse/models"
)

// AccountRepository defines the interface for account data access
type AccountRepository interface {
	// GetByID retrieves an account by its ID, returning (nil, nil) when absent
	GetByID(ctx context.Context, accountID int64) (*models.Account, error)

	// Create creates a new account with the starting balance
	Create(ctx context.Context, startingBalance int64) (*models.Account, error)

	// Adjust applies a signed delta to the balance atomically and returns the
	// new balance. It fails if the result would be negative or the account
	// cannot transact.
	Adjust(ctx context.Context, accountID int64, delta int64) (int64, error)

	// HoldForWithdrawal moves amount from balance into pending_withdrawal atomically
	HoldForWithdrawal(ctx context.Context, accountID int64, amount int64) error

	// ReleaseHold clears amount from pending_withdrawal, crediting it back
	// to the balance when refund is true
	ReleaseHold(ctx context.Context, accountID int64, amount int64, refund bool) error

	// AddBonus credits bonus balance, marking withdrawable of it as convertible
	AddBonus(ctx context.Context, accountID int64, amount, withdrawable int64) error

	// ConvertWithdrawableBonus moves the withdrawable bonus into the main
	// balance and returns the new balance
	ConvertWithdrawableBonus(ctx context.Context, accountID int64) (int64, error)

	// UpdateStatus changes the account status
	UpdateStatus(ctx context.Context, accountID int64, status models.AccountStatus) error
}

// BetRepository defines the interface for bet data access
type BetRepository interface {
	// Create creates a new bet record
	Create(ctx context.Context, bet *models.Bet) error

	// GetByID retrieves a bet by its ID, returning (nil, nil) when absent
	GetByID(ctx context.Context, betID int64) (*models.Bet, error)

	// ListByAccount returns recent bets for an account
	ListByAccount(ctx context.Context, accountID int64, limit int) ([]*models.Bet, error)

	// Transition moves a bet from one status to another, failing with
	// ErrConflictingTransition if the bet is not in the expected status
	Transition(ctx context.Context, betID int64, from, to models.BetStatus) error

	// MarkSettled stamps the final result on a bet. The bool reports whether
	// this call performed the settlement; false means another caller got
	// there first.
	MarkSettled(ctx context.Context, betID int64, result models.BetResult, payout *int64) (bool, error)

	// ListUnsettledByMatch returns unsettled match-market bets for a match
	ListUnsettledByMatch(ctx context.Context, matchID string) ([]*models.Bet, error)

	// ListStalePending returns pending bets of a market kind whose expiry
	// passed before the cutoff
	ListStalePending(ctx context.Context, kind models.MarketKind, before time.Time) ([]*models.Bet, error)

	// ListPendingByRound returns pending bets attached to a crash round
	ListPendingByRound(ctx context.Context, roundID string) ([]*models.Bet, error)
}

// WithdrawalRepository defines the interface for withdrawal data access
type WithdrawalRepository interface {
	// Create creates a new withdrawal request
	Create(ctx context.Context, withdrawal *models.Withdrawal) error

	// GetByID retrieves a withdrawal by its ID, returning (nil, nil) when absent
	GetByID(ctx context.Context, withdrawalID int64) (*models.Withdrawal, error)

	// ListByAccount returns recent withdrawals for an account
	ListByAccount(ctx context.Context, accountID int64, limit int) ([]*models.Withdrawal, error)

	// MarkProcessing claims a pending withdrawal for payout, failing with
	// ErrInvalidState when another decision got there first
	MarkProcessing(ctx context.Context, withdrawalID int64) (*models.Withdrawal, error)

	// Decide moves a withdrawal from the expected status to a terminal one,
	// failing with ErrInvalidState on a mismatch
	Decide(ctx context.Context, withdrawalID int64, from, to models.WithdrawalStatus, failureReason, transactionRef *string) (*models.Withdrawal, error)

	// SumPendingByAccount returns the total held amount of undecided
	// (pending or processing) withdrawals
	SumPendingByAccount(ctx context.Context, accountID int64) (int64, error)
}

// LedgerRepository defines the interface for the append-only money ledger
type LedgerRepository interface {
	// Record appends a ledger entry, assigning a reference when absent
	Record(ctx context.Context, entry *models.LedgerEntry) error

	// SettleWithdrawalEntry flips the pending entry for a withdrawal to a
	// terminal status
	SettleWithdrawalEntry(ctx context.Context, withdrawalID int64, status models.LedgerStatus) error

	// ListByAccount returns recent ledger entries for an account
	ListByAccount(ctx context.Context, accountID int64, limit int) ([]*models.LedgerEntry, error)
}

// GameConfigRepository defines the interface for virtual game configuration
type GameConfigRepository interface {
	// Get retrieves the configuration for a game type
	Get(ctx context.Context, gameType models.GameType) (*models.VirtualGameConfig, error)

	// List returns all game configurations
	List(ctx context.Context) ([]*models.VirtualGameConfig, error)

	// ReplaceSeries swaps in a new crash series and resets the index
	ReplaceSeries(ctx context.Context, gameType models.GameType, series []float64) error

	// SetSeriesValue overwrites a single series position
	SetSeriesValue(ctx context.Context, gameType models.GameType, index int, value float64) error

	// AdvanceIndex moves the series cursor forward one position, wrapping at
	// the end, and returns the new index
	AdvanceIndex(ctx context.Context, gameType models.GameType) (int, error)

	// ResetIndex moves the series cursor back to zero
	ResetIndex(ctx context.Context, gameType models.GameType) error

	// SetAutoComplete configures the stale-bet sweep for a game type
	SetAutoComplete(ctx context.Context, gameType models.GameType, enabled bool, intervalSeconds int) error
}

// CrashRoundRepository defines the interface for crash round data access
type CrashRoundRepository interface {
	// Create opens a new round
	Create(ctx context.Context, round *models.CrashRound) error

	// GetByID retrieves a round by its ID, returning (nil, nil) when absent
	GetByID(ctx context.Context, roundID string) (*models.CrashRound, error)

	// GetOpen returns the currently open round for a game type, or (nil, nil)
	GetOpen(ctx context.Context, gameType models.GameType) (*models.CrashRound, error)

	// Complete closes an open round. The bool reports whether this call
	// closed it; false means it was already completed.
	Complete(ctx context.Context, roundID string) (bool, error)
}

// AuditRepository defines the interface for the admin audit trail
type AuditRepository interface {
	// Record appends an audit entry
	Record(ctx context.Context, entry *models.AuditLog) error

	// ListRecent returns the most recent audit entries
	ListRecent(ctx context.Context, limit int) ([]*models.AuditLog, error)
}

// AccountService defines the interface for account operations
type AccountService interface {
	// GetAccount retrieves an account by ID
	GetAccount(ctx context.Context, accountID int64) (*models.Account, error)

	// CreateAccount creates a new account with the configured starting balance
	CreateAccount(ctx context.Context) (*models.Account, error)

	// Deposit credits the account through the payment gateway and applies
	// any configured deposit bonus
	Deposit(ctx context.Context, accountID int64, amount int64) (*models.Account, error)

	// ConvertBonus moves the account's withdrawable bonus into the spendable
	// balance and returns the refreshed account
	ConvertBonus(ctx context.Context, accountID int64) (*models.Account, error)

	// Statement returns recent ledger entries for an account
	Statement(ctx context.Context, accountID int64, limit int) ([]*models.LedgerEntry, error)

	// SetStatus changes an account's status
	SetStatus(ctx context.Context, accountID int64, status models.AccountStatus) error
}

// BetService defines the interface for bet placement and lifecycle
type BetService interface {
	// PlacePoolBet places a bet against a pari-mutuel market, locking the
	// pool odds implied by the snapshot at placement time
	PlacePoolBet(ctx context.Context, accountID int64, market *models.MarketSnapshot, outcomeID string, stake int64) (*models.PlacementResult, error)

	// PlaceFixedOddsBet places a multi-selection bet paid from the
	// configured odds table for that selection count
	PlaceFixedOddsBet(ctx context.Context, accountID int64, matchID string, selections []string, stake int64) (*models.PlacementResult, error)

	// PlaceInstantBet places a digit or color bet that resolves after the
	// configured countdown
	PlaceInstantBet(ctx context.Context, accountID int64, gameType models.GameType, outcomeID string, stake int64) (*models.PlacementResult, error)

	// PlaceCrashBet joins the open crash round
	PlaceCrashBet(ctx context.Context, accountID int64, stake int64) (*models.PlacementResult, error)

	// TransitionToLive moves a pending bet to live when its match kicks off
	TransitionToLive(ctx context.Context, betID int64) error

	// GetBet retrieves a bet by ID
	GetBet(ctx context.Context, betID int64) (*models.Bet, error)

	// ListBets returns recent bets for an account
	ListBets(ctx context.Context, accountID int64, limit int) ([]*models.Bet, error)
}

// SettlementService defines the interface for settling bets
type SettlementService interface {
	// Settle applies a final result to a bet, crediting the payout for wins
	// and refunding the stake for voids. Settling an already-settled bet is
	// a no-op success.
	Settle(ctx context.Context, betID int64, result models.BetResult) (*models.SettlementOutcome, error)

	// SettleMatch settles every unsettled bet on a match against the winning
	// outcome. A draw voids match-winner bets. Returns the number of bets
	// settled by this call.
	SettleMatch(ctx context.Context, matchID string, winningOutcomeID string) (int, error)
}

// WithdrawalService defines the interface for the withdrawal workflow
type WithdrawalService interface {
	// Request places a hold on the amount and records a pending withdrawal
	Request(ctx context.Context, accountID int64, amount int64) (*models.Withdrawal, error)

	// Approve claims a pending withdrawal for processing, pays it out
	// through the payment gateway, and releases the hold without refund.
	// A rejected payout fails the withdrawal and refunds the hold.
	Approve(ctx context.Context, withdrawalID int64) (*models.Withdrawal, error)

	// Reject fails a pending withdrawal with a reason and refunds the hold
	Reject(ctx context.Context, withdrawalID int64, reason string) (*models.Withdrawal, error)

	// Cancel withdraws a pending request at the account holder's initiative
	// and refunds the hold. A withdrawal owned by another account is
	// reported as not found.
	Cancel(ctx context.Context, withdrawalID, accountID int64) (*models.Withdrawal, error)

	// List returns recent withdrawals for an account
	List(ctx context.Context, accountID int64, limit int) ([]*models.Withdrawal, error)
}

// VirtualGameService defines the interface for virtual game rounds and
// their administration
type VirtualGameService interface {
	// ResolveDueInstantBets draws results for instant bets whose countdown
	// has elapsed. Returns the number of bets resolved.
	ResolveDueInstantBets(ctx context.Context, gameType models.GameType) (int, error)

	// StartCrashRound opens a new crash round at the series cursor
	StartCrashRound(ctx context.Context) (*models.CrashRound, error)

	// OpenRound returns the crash round currently accepting bets, or nil
	OpenRound(ctx context.Context) (*models.CrashRound, error)

	// CompleteOpenRound closes the open crash round, settles remaining bets
	// as lost, and advances the series cursor. Returns the closed round and
	// the number of bets settled.
	CompleteOpenRound(ctx context.Context) (*models.CrashRound, int, error)

	// CashOut settles a live crash bet at the current multiplier, provided
	// the round has not crashed yet
	CashOut(ctx context.Context, betID int64) (*models.SettlementOutcome, error)

	// SweepStaleBets force-resolves pending virtual bets that outlived their
	// expiry. Returns the number of bets swept.
	SweepStaleBets(ctx context.Context, gameType models.GameType) (int, error)

	// GetConfig returns the configuration for a game type
	GetConfig(ctx context.Context, gameType models.GameType) (*models.VirtualGameConfig, error)

	// SetNextCrash overwrites the series value the cursor points at
	SetNextCrash(ctx context.Context, actor string, value float64) error

	// GenerateSeries replaces the crash series with random values in
	// [min, max] and resets the cursor
	GenerateSeries(ctx context.Context, actor string, length int, min, max float64) ([]float64, error)

	// ResetIndex moves the series cursor back to the start
	ResetIndex(ctx context.Context, actor string) error

	// SetAutoComplete configures the stale-bet sweep for a game type
	SetAutoComplete(ctx context.Context, actor string, gameType models.GameType, enabled bool, intervalSeconds int) error
}

// EventPublisher defines the interface for publishing events
type EventPublisher interface {
	Publish(event events.Event)
}

// UnitOfWork defines the interface for transactional repository operations
type UnitOfWork interface {
	// Begin starts a new transaction
	Begin(ctx context.Context) error

	// Commit commits the transaction
	Commit() error

	// Rollback rolls back the transaction
	Rollback() error

	// Repository getters
	Accounts() AccountRepository
	Bets() BetRepository
	Withdrawals() WithdrawalRepository
	Ledger() LedgerRepository
	GameConfigs() GameConfigRepository
	CrashRounds() CrashRoundRepository
	Audit() AuditRepository
	EventBus() EventPublisher
}

// UnitOfWorkFactory defines the interface for creating UnitOfWork instances
type UnitOfWorkFactory interface {
	// Create creates a new UnitOfWork instance
	Create() UnitOfWork
}
