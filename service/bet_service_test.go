package service

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"stakehouse/models"
)

func activeAccountFixture(accountID, balance int64) *models.Account {
	return &models.Account{
		ID:      accountID,
		Balance: balance,
		Status:  models.AccountStatusActive,
	}
}

func marketFixture() *models.MarketSnapshot {
	return &models.MarketSnapshot{
		MatchID: "match-1",
		OutcomePools: map[string]int64{
			"home": 5000,
			"away": 15000,
		},
		TotalPool: 20000,
	}
}

func newBetMocks() (*MockUnitOfWorkFactory, *MockUnitOfWork, *MockAccountRepository, *MockBetRepository, *MockLedgerRepository, *MockCrashRoundRepository) {
	mockUoW := new(MockUnitOfWork)
	mockFactory := new(MockUnitOfWorkFactory)
	mockAccountRepo := new(MockAccountRepository)
	mockBetRepo := new(MockBetRepository)
	mockLedgerRepo := new(MockLedgerRepository)
	mockCrashRepo := new(MockCrashRoundRepository)

	mockUoW.SetRepositories(mockAccountRepo, mockBetRepo, nil, mockLedgerRepo, nil, mockCrashRepo, nil)

	mockFactory.On("Create").Return(mockUoW)
	mockUoW.On("Begin", mock.Anything).Return(nil)
	mockUoW.On("Rollback").Return(nil)

	return mockFactory, mockUoW, mockAccountRepo, mockBetRepo, mockLedgerRepo, mockCrashRepo
}

func TestBetService_PlacePoolBet(t *testing.T) {
	ctx := context.Background()
	mockFactory, mockUoW, mockAccountRepo, mockBetRepo, mockLedgerRepo, _ := newBetMocks()
	mockUoW.On("Commit").Return(nil)

	service := NewBetService(mockFactory)

	mockAccountRepo.On("GetByID", ctx, int64(42)).Return(activeAccountFixture(42, 1000), nil)
	mockAccountRepo.On("Adjust", ctx, int64(42), int64(-100)).Return(int64(900), nil)

	mockBetRepo.On("Create", ctx, mock.MatchedBy(func(b *models.Bet) bool {
		return b.AccountID == 42 &&
			b.MarketKind == models.MarketKindPool &&
			b.MatchID == "match-1" &&
			b.OutcomeID == "home" &&
			b.Stake == 100 &&
			b.Odds.Equal(decimal.RequireFromString("4.0")) &&
			b.PotentialPayout == 400 &&
			b.Status == models.BetStatusPending &&
			b.Result == models.BetResultUnresolved
	})).Return(nil).Run(func(args mock.Arguments) {
		args.Get(1).(*models.Bet).ID = 7
	})

	mockLedgerRepo.On("Record", ctx, mock.MatchedBy(func(e *models.LedgerEntry) bool {
		return e.AccountID == 42 &&
			e.Kind == models.LedgerKindStake &&
			e.Amount == -100 &&
			e.RelatedBetID != nil && *e.RelatedBetID == 7
	})).Return(nil)

	result, err := service.PlacePoolBet(ctx, 42, marketFixture(), "home", 100)

	require.NoError(t, err)
	assert.Equal(t, int64(900), result.NewBalance)
	assert.Equal(t, int64(400), result.Bet.PotentialPayout)
	assert.Equal(t, int64(7), result.Bet.ID)

	mockAccountRepo.AssertExpectations(t)
	mockBetRepo.AssertExpectations(t)
	mockLedgerRepo.AssertExpectations(t)
	mockUoW.AssertExpectations(t)
}

func TestBetService_PlacePoolBet_DrawNotWagerable(t *testing.T) {
	ctx := context.Background()
	mockFactory, _, _, _, _, _ := newBetMocks()

	service := NewBetService(mockFactory)

	market := marketFixture()
	market.OutcomePools[models.DrawOutcomeID] = 3000

	_, err := service.PlacePoolBet(ctx, 42, market, models.DrawOutcomeID, 100)

	assert.ErrorIs(t, err, models.ErrUnknownOutcome)
}

func TestBetService_PlacePoolBet_UnknownOutcome(t *testing.T) {
	ctx := context.Background()
	mockFactory, _, _, _, _, _ := newBetMocks()

	service := NewBetService(mockFactory)

	_, err := service.PlacePoolBet(ctx, 42, marketFixture(), "nobody", 100)

	assert.ErrorIs(t, err, models.ErrUnknownOutcome)
}

func TestBetService_PlacePoolBet_InvalidStake(t *testing.T) {
	ctx := context.Background()
	mockFactory, _, _, _, _, _ := newBetMocks()

	service := NewBetService(mockFactory)

	_, err := service.PlacePoolBet(ctx, 42, marketFixture(), "home", 0)
	assert.ErrorIs(t, err, models.ErrInvalidStake)

	_, err = service.PlacePoolBet(ctx, 42, marketFixture(), "home", -50)
	assert.ErrorIs(t, err, models.ErrInvalidStake)

	// Above the configured maximum.
	_, err = service.PlacePoolBet(ctx, 42, marketFixture(), "home", 1000000)
	assert.ErrorIs(t, err, models.ErrInvalidStake)
}

func TestBetService_PlacePoolBet_InsufficientFunds(t *testing.T) {
	ctx := context.Background()
	mockFactory, _, mockAccountRepo, _, _, _ := newBetMocks()

	service := NewBetService(mockFactory)

	mockAccountRepo.On("GetByID", ctx, int64(42)).Return(activeAccountFixture(42, 50), nil)
	mockAccountRepo.On("Adjust", ctx, int64(42), int64(-100)).Return(int64(0), models.ErrInsufficientFunds)

	_, err := service.PlacePoolBet(ctx, 42, marketFixture(), "home", 100)

	assert.ErrorIs(t, err, models.ErrInsufficientFunds)
}

func TestBetService_PlacePoolBet_SuspendedAccount(t *testing.T) {
	ctx := context.Background()
	mockFactory, _, mockAccountRepo, mockBetRepo, _, _ := newBetMocks()

	service := NewBetService(mockFactory)

	account := activeAccountFixture(42, 1000)
	account.Status = models.AccountStatusSuspended

	mockAccountRepo.On("GetByID", ctx, int64(42)).Return(account, nil)

	_, err := service.PlacePoolBet(ctx, 42, marketFixture(), "home", 100)

	assert.ErrorIs(t, err, models.ErrAccountNotActive)

	var notActive *models.AccountNotActiveError
	require.ErrorAs(t, err, &notActive)
	assert.Equal(t, models.AccountStatusSuspended, notActive.Status)

	mockBetRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestBetService_PlaceFixedOddsBet(t *testing.T) {
	ctx := context.Background()
	mockFactory, mockUoW, mockAccountRepo, mockBetRepo, mockLedgerRepo, _ := newBetMocks()
	mockUoW.On("Commit").Return(nil)

	service := NewBetService(mockFactory)

	mockAccountRepo.On("GetByID", ctx, int64(42)).Return(activeAccountFixture(42, 1000), nil)
	mockAccountRepo.On("Adjust", ctx, int64(42), int64(-100)).Return(int64(900), nil)

	mockBetRepo.On("Create", ctx, mock.MatchedBy(func(b *models.Bet) bool {
		return b.MarketKind == models.MarketKindFixedOdds &&
			b.OutcomeID == "home,over2.5" &&
			b.Odds.Equal(decimal.RequireFromString("1.95")) &&
			b.PotentialPayout == 195
	})).Return(nil)
	mockLedgerRepo.On("Record", ctx, mock.Anything).Return(nil)

	result, err := service.PlaceFixedOddsBet(ctx, 42, "match-1", []string{"home", "over2.5"}, 100)

	require.NoError(t, err)
	assert.Equal(t, int64(195), result.Bet.PotentialPayout)
}

func TestBetService_PlaceFixedOddsBet_NoOddsForCardinality(t *testing.T) {
	ctx := context.Background()
	mockFactory, _, _, _, _, _ := newBetMocks()

	service := NewBetService(mockFactory)

	_, err := service.PlaceFixedOddsBet(ctx, 42, "match-1", []string{"a", "b", "c", "d"}, 100)

	assert.ErrorIs(t, err, models.ErrUnknownOutcome)
}

func TestBetService_PlaceInstantBet(t *testing.T) {
	ctx := context.Background()
	mockFactory, mockUoW, mockAccountRepo, mockBetRepo, mockLedgerRepo, _ := newBetMocks()
	mockUoW.On("Commit").Return(nil)

	service := NewBetService(mockFactory)

	mockAccountRepo.On("GetByID", ctx, int64(42)).Return(activeAccountFixture(42, 1000), nil)
	mockAccountRepo.On("Adjust", ctx, int64(42), int64(-100)).Return(int64(900), nil)

	mockBetRepo.On("Create", ctx, mock.MatchedBy(func(b *models.Bet) bool {
		return b.MarketKind == models.MarketKindVirtualDigit &&
			b.OutcomeID == "7" &&
			b.Odds.Equal(decimal.RequireFromString("9.50")) &&
			b.ExpiresAt != nil
	})).Return(nil)
	mockLedgerRepo.On("Record", ctx, mock.Anything).Return(nil)

	result, err := service.PlaceInstantBet(ctx, 42, models.GameTypeDigit, "7", 100)

	require.NoError(t, err)
	assert.Equal(t, int64(950), result.Bet.PotentialPayout)
	require.NotNil(t, result.Bet.ExpiresAt)
}

func TestBetService_PlaceInstantBet_UnknownOutcome(t *testing.T) {
	ctx := context.Background()
	mockFactory, _, _, _, _, _ := newBetMocks()

	service := NewBetService(mockFactory)

	_, err := service.PlaceInstantBet(ctx, 42, models.GameTypeColor, "blue", 100)

	assert.ErrorIs(t, err, models.ErrUnknownOutcome)
}

func TestBetService_PlaceCrashBet(t *testing.T) {
	ctx := context.Background()
	mockFactory, mockUoW, mockAccountRepo, mockBetRepo, mockLedgerRepo, mockCrashRepo := newBetMocks()
	mockUoW.On("Commit").Return(nil)

	service := NewBetService(mockFactory)

	round := &models.CrashRound{ID: "round-1", GameType: models.GameTypeCrash, CrashPoint: 2.04}

	mockCrashRepo.On("GetOpen", ctx, models.GameTypeCrash).Return(round, nil)
	mockAccountRepo.On("GetByID", ctx, int64(42)).Return(activeAccountFixture(42, 1000), nil)
	mockAccountRepo.On("Adjust", ctx, int64(42), int64(-100)).Return(int64(900), nil)

	mockBetRepo.On("Create", ctx, mock.MatchedBy(func(b *models.Bet) bool {
		return b.MarketKind == models.MarketKindVirtualCrash &&
			b.RoundID != nil && *b.RoundID == "round-1" &&
			b.PotentialPayout == 0 &&
			b.ExpiresAt != nil
	})).Return(nil)
	mockLedgerRepo.On("Record", ctx, mock.Anything).Return(nil)

	result, err := service.PlaceCrashBet(ctx, 42, 100)

	require.NoError(t, err)
	assert.Equal(t, int64(0), result.Bet.PotentialPayout, "crash payout is only fixed at cash-out")
}

func TestBetService_PlaceCrashBet_NoOpenRound(t *testing.T) {
	ctx := context.Background()
	mockFactory, _, _, _, _, mockCrashRepo := newBetMocks()

	service := NewBetService(mockFactory)

	mockCrashRepo.On("GetOpen", ctx, models.GameTypeCrash).Return(nil, nil)

	_, err := service.PlaceCrashBet(ctx, 42, 100)

	assert.ErrorIs(t, err, models.ErrRoundNotOpen)
}

func TestBetService_TransitionToLive(t *testing.T) {
	ctx := context.Background()
	mockFactory, mockUoW, _, mockBetRepo, _, _ := newBetMocks()
	mockUoW.On("Commit").Return(nil)

	service := NewBetService(mockFactory)

	mockBetRepo.On("Transition", ctx, int64(7), models.BetStatusPending, models.BetStatusLive).Return(nil)

	err := service.TransitionToLive(ctx, 7)

	require.NoError(t, err)
	mockBetRepo.AssertExpectations(t)
}

func TestBetService_TransitionToLive_Conflict(t *testing.T) {
	ctx := context.Background()
	mockFactory, _, _, mockBetRepo, _, _ := newBetMocks()

	service := NewBetService(mockFactory)

	mockBetRepo.On("Transition", ctx, int64(7), models.BetStatusPending, models.BetStatusLive).
		Return(models.ErrConflictingTransition)

	err := service.TransitionToLive(ctx, 7)

	assert.ErrorIs(t, err, models.ErrConflictingTransition)
}
