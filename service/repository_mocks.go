package service

import (
	"context"
	"time"

	"stakehouse/events"
	"stakehouse/models"

	"github.com/stretchr/testify/mock"
)

// MockAccountRepository is a mock implementation of AccountRepository
type MockAccountRepository struct {
	mock.Mock
}

func (m *MockAccountRepository) GetByID(ctx context.Context, accountID int64) (*models.Account, error) {
	args := m.Called(ctx, accountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Account), args.Error(1)
}

func (m *MockAccountRepository) Create(ctx context.Context, startingBalance int64) (*models.Account, error) {
	args := m.Called(ctx, startingBalance)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Account), args.Error(1)
}

func (m *MockAccountRepository) Adjust(ctx context.Context, accountID int64, delta int64) (int64, error) {
	args := m.Called(ctx, accountID, delta)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockAccountRepository) HoldForWithdrawal(ctx context.Context, accountID int64, amount int64) error {
	args := m.Called(ctx, accountID, amount)
	return args.Error(0)
}

func (m *MockAccountRepository) ReleaseHold(ctx context.Context, accountID int64, amount int64, refund bool) error {
	args := m.Called(ctx, accountID, amount, refund)
	return args.Error(0)
}

func (m *MockAccountRepository) AddBonus(ctx context.Context, accountID int64, amount, withdrawable int64) error {
	args := m.Called(ctx, accountID, amount, withdrawable)
	return args.Error(0)
}

func (m *MockAccountRepository) ConvertWithdrawableBonus(ctx context.Context, accountID int64) (int64, error) {
	args := m.Called(ctx, accountID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockAccountRepository) UpdateStatus(ctx context.Context, accountID int64, status models.AccountStatus) error {
	args := m.Called(ctx, accountID, status)
	return args.Error(0)
}

// MockBetRepository is a mock implementation of BetRepository
type MockBetRepository struct {
	mock.Mock
}

func (m *MockBetRepository) Create(ctx context.Context, bet *models.Bet) error {
	args := m.Called(ctx, bet)
	return args.Error(0)
}

func (m *MockBetRepository) GetByID(ctx context.Context, betID int64) (*models.Bet, error) {
	args := m.Called(ctx, betID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Bet), args.Error(1)
}

func (m *MockBetRepository) ListByAccount(ctx context.Context, accountID int64, limit int) ([]*models.Bet, error) {
	args := m.Called(ctx, accountID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Bet), args.Error(1)
}

func (m *MockBetRepository) Transition(ctx context.Context, betID int64, from, to models.BetStatus) error {
	args := m.Called(ctx, betID, from, to)
	return args.Error(0)
}

func (m *MockBetRepository) MarkSettled(ctx context.Context, betID int64, result models.BetResult, payout *int64) (bool, error) {
	args := m.Called(ctx, betID, result, payout)
	return args.Bool(0), args.Error(1)
}

func (m *MockBetRepository) ListUnsettledByMatch(ctx context.Context, matchID string) ([]*models.Bet, error) {
	args := m.Called(ctx, matchID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Bet), args.Error(1)
}

func (m *MockBetRepository) ListStalePending(ctx context.Context, kind models.MarketKind, before time.Time) ([]*models.Bet, error) {
	args := m.Called(ctx, kind, before)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Bet), args.Error(1)
}

func (m *MockBetRepository) ListPendingByRound(ctx context.Context, roundID string) ([]*models.Bet, error) {
	args := m.Called(ctx, roundID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Bet), args.Error(1)
}

// MockWithdrawalRepository is a mock implementation of WithdrawalRepository
type MockWithdrawalRepository struct {
	mock.Mock
}

func (m *MockWithdrawalRepository) Create(ctx context.Context, withdrawal *models.Withdrawal) error {
	args := m.Called(ctx, withdrawal)
	return args.Error(0)
}

func (m *MockWithdrawalRepository) GetByID(ctx context.Context, withdrawalID int64) (*models.Withdrawal, error) {
	args := m.Called(ctx, withdrawalID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Withdrawal), args.Error(1)
}

func (m *MockWithdrawalRepository) ListByAccount(ctx context.Context, accountID int64, limit int) ([]*models.Withdrawal, error) {
	args := m.Called(ctx, accountID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Withdrawal), args.Error(1)
}

func (m *MockWithdrawalRepository) MarkProcessing(ctx context.Context, withdrawalID int64) (*models.Withdrawal, error) {
	args := m.Called(ctx, withdrawalID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Withdrawal), args.Error(1)
}

func (m *MockWithdrawalRepository) Decide(ctx context.Context, withdrawalID int64, from, to models.WithdrawalStatus, failureReason, transactionRef *string) (*models.Withdrawal, error) {
	args := m.Called(ctx, withdrawalID, from, to, failureReason, transactionRef)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Withdrawal), args.Error(1)
}

func (m *MockWithdrawalRepository) SumPendingByAccount(ctx context.Context, accountID int64) (int64, error) {
	args := m.Called(ctx, accountID)
	return args.Get(0).(int64), args.Error(1)
}

// MockLedgerRepository is a mock implementation of LedgerRepository
type MockLedgerRepository struct {
	mock.Mock
}

func (m *MockLedgerRepository) Record(ctx context.Context, entry *models.LedgerEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockLedgerRepository) SettleWithdrawalEntry(ctx context.Context, withdrawalID int64, status models.LedgerStatus) error {
	args := m.Called(ctx, withdrawalID, status)
	return args.Error(0)
}

func (m *MockLedgerRepository) ListByAccount(ctx context.Context, accountID int64, limit int) ([]*models.LedgerEntry, error) {
	args := m.Called(ctx, accountID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.LedgerEntry), args.Error(1)
}

// MockGameConfigRepository is a mock implementation of GameConfigRepository
type MockGameConfigRepository struct {
	mock.Mock
}

func (m *MockGameConfigRepository) Get(ctx context.Context, gameType models.GameType) (*models.VirtualGameConfig, error) {
	args := m.Called(ctx, gameType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.VirtualGameConfig), args.Error(1)
}

func (m *MockGameConfigRepository) List(ctx context.Context) ([]*models.VirtualGameConfig, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.VirtualGameConfig), args.Error(1)
}

func (m *MockGameConfigRepository) ReplaceSeries(ctx context.Context, gameType models.GameType, series []float64) error {
	args := m.Called(ctx, gameType, series)
	return args.Error(0)
}

func (m *MockGameConfigRepository) SetSeriesValue(ctx context.Context, gameType models.GameType, index int, value float64) error {
	args := m.Called(ctx, gameType, index, value)
	return args.Error(0)
}

func (m *MockGameConfigRepository) AdvanceIndex(ctx context.Context, gameType models.GameType) (int, error) {
	args := m.Called(ctx, gameType)
	return args.Int(0), args.Error(1)
}

func (m *MockGameConfigRepository) ResetIndex(ctx context.Context, gameType models.GameType) error {
	args := m.Called(ctx, gameType)
	return args.Error(0)
}

func (m *MockGameConfigRepository) SetAutoComplete(ctx context.Context, gameType models.GameType, enabled bool, intervalSeconds int) error {
	args := m.Called(ctx, gameType, enabled, intervalSeconds)
	return args.Error(0)
}

// MockCrashRoundRepository is a mock implementation of CrashRoundRepository
type MockCrashRoundRepository struct {
	mock.Mock
}

func (m *MockCrashRoundRepository) Create(ctx context.Context, round *models.CrashRound) error {
	args := m.Called(ctx, round)
	return args.Error(0)
}

func (m *MockCrashRoundRepository) GetByID(ctx context.Context, roundID string) (*models.CrashRound, error) {
	args := m.Called(ctx, roundID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.CrashRound), args.Error(1)
}

func (m *MockCrashRoundRepository) GetOpen(ctx context.Context, gameType models.GameType) (*models.CrashRound, error) {
	args := m.Called(ctx, gameType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.CrashRound), args.Error(1)
}

func (m *MockCrashRoundRepository) Complete(ctx context.Context, roundID string) (bool, error) {
	args := m.Called(ctx, roundID)
	return args.Bool(0), args.Error(1)
}

// MockAuditRepository is a mock implementation of AuditRepository
type MockAuditRepository struct {
	mock.Mock
}

func (m *MockAuditRepository) Record(ctx context.Context, entry *models.AuditLog) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockAuditRepository) ListRecent(ctx context.Context, limit int) ([]*models.AuditLog, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.AuditLog), args.Error(1)
}

// MockEventPublisher is a mock implementation of EventPublisher for testing
type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(event events.Event) {
	m.Called(event)
}

// noopEventPublisher swallows events; the default when a test does not care
// about the event stream.
type noopEventPublisher struct{}

func (noopEventPublisher) Publish(events.Event) {}

// MockUnitOfWork is a mock implementation of UnitOfWork. Begin, Commit and
// Rollback go through testify expectations; the repository getters hand back
// whatever SetRepositories installed.
type MockUnitOfWork struct {
	mock.Mock

	accounts    AccountRepository
	bets        BetRepository
	withdrawals WithdrawalRepository
	ledger      LedgerRepository
	gameConfigs GameConfigRepository
	crashRounds CrashRoundRepository
	audit       AuditRepository
	eventBus    EventPublisher
}

// SetRepositories installs the repositories the unit of work hands out.
// Pass nil for anything the test never touches.
func (m *MockUnitOfWork) SetRepositories(
	accounts AccountRepository,
	bets BetRepository,
	withdrawals WithdrawalRepository,
	ledger LedgerRepository,
	gameConfigs GameConfigRepository,
	crashRounds CrashRoundRepository,
	audit AuditRepository,
) {
	m.accounts = accounts
	m.bets = bets
	m.withdrawals = withdrawals
	m.ledger = ledger
	m.gameConfigs = gameConfigs
	m.crashRounds = crashRounds
	m.audit = audit
}

// SetEventBus installs an event publisher; unset, events are swallowed.
func (m *MockUnitOfWork) SetEventBus(bus EventPublisher) {
	m.eventBus = bus
}

func (m *MockUnitOfWork) Begin(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockUnitOfWork) Commit() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockUnitOfWork) Rollback() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockUnitOfWork) Accounts() AccountRepository { return m.accounts }

func (m *MockUnitOfWork) Bets() BetRepository { return m.bets }

func (m *MockUnitOfWork) Withdrawals() WithdrawalRepository { return m.withdrawals }

func (m *MockUnitOfWork) Ledger() LedgerRepository { return m.ledger }

func (m *MockUnitOfWork) GameConfigs() GameConfigRepository { return m.gameConfigs }

func (m *MockUnitOfWork) CrashRounds() CrashRoundRepository { return m.crashRounds }

func (m *MockUnitOfWork) Audit() AuditRepository { return m.audit }

func (m *MockUnitOfWork) EventBus() EventPublisher {
	if m.eventBus == nil {
		return noopEventPublisher{}
	}
	return m.eventBus
}

// MockUnitOfWorkFactory is a mock implementation of UnitOfWorkFactory
type MockUnitOfWorkFactory struct {
	mock.Mock
}

func (m *MockUnitOfWorkFactory) Create() UnitOfWork {
	args := m.Called()
	return args.Get(0).(UnitOfWork)
}
