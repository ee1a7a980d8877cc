package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"stakehouse/models"
)

func newVirtualGameMocks() (*MockUnitOfWorkFactory, *MockUnitOfWork, *MockAccountRepository, *MockBetRepository, *MockLedgerRepository, *MockGameConfigRepository, *MockCrashRoundRepository, *MockAuditRepository) {
	mockUoW := new(MockUnitOfWork)
	mockFactory := new(MockUnitOfWorkFactory)
	mockAccountRepo := new(MockAccountRepository)
	mockBetRepo := new(MockBetRepository)
	mockLedgerRepo := new(MockLedgerRepository)
	mockConfigRepo := new(MockGameConfigRepository)
	mockCrashRepo := new(MockCrashRoundRepository)
	mockAuditRepo := new(MockAuditRepository)

	mockUoW.SetRepositories(mockAccountRepo, mockBetRepo, nil, mockLedgerRepo, mockConfigRepo, mockCrashRepo, mockAuditRepo)

	mockFactory.On("Create").Return(mockUoW)
	mockUoW.On("Begin", mock.Anything).Return(nil)
	mockUoW.On("Rollback").Return(nil)

	return mockFactory, mockUoW, mockAccountRepo, mockBetRepo, mockLedgerRepo, mockConfigRepo, mockCrashRepo, mockAuditRepo
}

func crashConfigFixture(series []float64, index int) *models.VirtualGameConfig {
	return &models.VirtualGameConfig{
		GameType:     models.GameTypeCrash,
		CrashSeries:  series,
		CurrentIndex: index,
	}
}

func crashBetFixture(betID, accountID int64, roundID string) *models.Bet {
	return &models.Bet{
		ID:         betID,
		AccountID:  accountID,
		MarketKind: models.MarketKindVirtualCrash,
		MatchID:    "virtual:crash",
		OutcomeID:  "cashout",
		Stake:      100,
		Status:     models.BetStatusPending,
		Result:     models.BetResultUnresolved,
		RoundID:    &roundID,
	}
}

func TestVirtualGameService_ResolveDueInstantBets(t *testing.T) {
	ctx := context.Background()
	mockFactory, mockUoW, mockAccountRepo, mockBetRepo, mockLedgerRepo, _, _, _ := newVirtualGameMocks()
	mockUoW.On("Commit").Return(nil)

	service := NewVirtualGameService(mockFactory)

	due := []*models.Bet{
		{ID: 1, AccountID: 42, MarketKind: models.MarketKindVirtualDigit, OutcomeID: "3", Stake: 100, PotentialPayout: 950},
		{ID: 2, AccountID: 43, MarketKind: models.MarketKindVirtualDigit, OutcomeID: "8", Stake: 200, PotentialPayout: 1900},
	}

	mockBetRepo.On("ListStalePending", ctx, models.MarketKindVirtualDigit, mock.AnythingOfType("time.Time")).Return(due, nil)

	// The draw is random; either result must settle cleanly.
	mockBetRepo.On("MarkSettled", ctx, int64(1), mock.Anything, (*int64)(nil)).Return(true, nil)
	mockBetRepo.On("MarkSettled", ctx, int64(2), mock.Anything, (*int64)(nil)).Return(true, nil)
	mockBetRepo.On("GetByID", ctx, mock.AnythingOfType("int64")).Return(&models.Bet{Status: models.BetStatusSettled}, nil)
	mockAccountRepo.On("Adjust", ctx, mock.AnythingOfType("int64"), mock.AnythingOfType("int64")).Return(int64(0), nil).Maybe()
	mockLedgerRepo.On("Record", ctx, mock.Anything).Return(nil)

	resolved, err := service.ResolveDueInstantBets(ctx, models.GameTypeDigit)

	require.NoError(t, err)
	assert.Equal(t, 2, resolved)

	mockBetRepo.AssertExpectations(t)
}

func TestVirtualGameService_ResolveDueInstantBets_RejectsCrash(t *testing.T) {
	ctx := context.Background()
	mockFactory, _, _, _, _, _, _, _ := newVirtualGameMocks()

	service := NewVirtualGameService(mockFactory)

	_, err := service.ResolveDueInstantBets(ctx, models.GameTypeCrash)

	assert.Error(t, err)
}

func TestVirtualGameService_StartCrashRound(t *testing.T) {
	ctx := context.Background()
	mockFactory, mockUoW, _, _, _, mockConfigRepo, mockCrashRepo, _ := newVirtualGameMocks()
	mockUoW.On("Commit").Return(nil)

	service := NewVirtualGameService(mockFactory)

	mockCrashRepo.On("GetOpen", ctx, models.GameTypeCrash).Return(nil, nil)
	mockConfigRepo.On("Get", ctx, models.GameTypeCrash).Return(crashConfigFixture([]float64{1.37, 2.04, 5.62}, 1), nil)

	mockCrashRepo.On("Create", ctx, mock.MatchedBy(func(r *models.CrashRound) bool {
		return r.GameType == models.GameTypeCrash &&
			r.SeriesIndex == 1 &&
			r.CrashPoint == 2.04
	})).Return(nil)

	round, err := service.StartCrashRound(ctx)

	require.NoError(t, err)
	assert.Equal(t, 2.04, round.CrashPoint)

	mockCrashRepo.AssertExpectations(t)
}

func TestVirtualGameService_StartCrashRound_OneOpenRoundAtATime(t *testing.T) {
	ctx := context.Background()
	mockFactory, _, _, _, _, _, mockCrashRepo, _ := newVirtualGameMocks()

	service := NewVirtualGameService(mockFactory)

	open := &models.CrashRound{ID: "round-1", GameType: models.GameTypeCrash}
	mockCrashRepo.On("GetOpen", ctx, models.GameTypeCrash).Return(open, nil)

	_, err := service.StartCrashRound(ctx)

	assert.ErrorIs(t, err, models.ErrInvalidState)
	mockCrashRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestVirtualGameService_CompleteOpenRound(t *testing.T) {
	ctx := context.Background()
	mockFactory, mockUoW, mockAccountRepo, mockBetRepo, mockLedgerRepo, mockConfigRepo, mockCrashRepo, _ := newVirtualGameMocks()
	mockUoW.On("Commit").Return(nil)

	service := NewVirtualGameService(mockFactory)

	round := &models.CrashRound{ID: "round-1", GameType: models.GameTypeCrash, SeriesIndex: 0, CrashPoint: 1.37, StartedAt: time.Now()}

	mockCrashRepo.On("GetOpen", ctx, models.GameTypeCrash).Return(round, nil)
	mockCrashRepo.On("Complete", ctx, "round-1").Return(true, nil)

	stillIn := crashBetFixture(1, 42, "round-1")
	mockBetRepo.On("ListPendingByRound", ctx, "round-1").Return([]*models.Bet{stillIn}, nil)

	// Riding past the crash point loses the stake.
	mockBetRepo.On("MarkSettled", ctx, int64(1), models.BetResultLost, (*int64)(nil)).Return(true, nil)
	mockLedgerRepo.On("Record", ctx, mock.MatchedBy(func(e *models.LedgerEntry) bool {
		return e.Kind == models.LedgerKindProfit
	})).Return(nil)
	mockBetRepo.On("GetByID", ctx, int64(1)).Return(settledCopy(stillIn, models.BetResultLost), nil)

	mockConfigRepo.On("AdvanceIndex", ctx, models.GameTypeCrash).Return(1, nil)

	completed, settled, err := service.CompleteOpenRound(ctx)

	require.NoError(t, err)
	assert.Equal(t, "round-1", completed.ID)
	assert.Equal(t, 1, settled)

	mockAccountRepo.AssertNotCalled(t, "Adjust", mock.Anything, mock.Anything, mock.Anything)
	mockConfigRepo.AssertExpectations(t)
	mockCrashRepo.AssertExpectations(t)
}

func TestVirtualGameService_CompleteOpenRound_RacedCompletion(t *testing.T) {
	ctx := context.Background()
	mockFactory, _, _, mockBetRepo, _, mockConfigRepo, mockCrashRepo, _ := newVirtualGameMocks()

	service := NewVirtualGameService(mockFactory)

	round := &models.CrashRound{ID: "round-1", GameType: models.GameTypeCrash}

	mockCrashRepo.On("GetOpen", ctx, models.GameTypeCrash).Return(round, nil)
	mockCrashRepo.On("Complete", ctx, "round-1").Return(false, nil)

	_, settled, err := service.CompleteOpenRound(ctx)

	require.NoError(t, err)
	assert.Equal(t, 0, settled)

	// The worker that actually closed the round owns the cleanup.
	mockBetRepo.AssertNotCalled(t, "ListPendingByRound", mock.Anything, mock.Anything)
	mockConfigRepo.AssertNotCalled(t, "AdvanceIndex", mock.Anything, mock.Anything)
}

func TestVirtualGameService_CashOut_BelowCrashPoint(t *testing.T) {
	ctx := context.Background()
	mockFactory, mockUoW, mockAccountRepo, mockBetRepo, mockLedgerRepo, _, mockCrashRepo, _ := newVirtualGameMocks()
	mockUoW.On("Commit").Return(nil)

	started := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	service := &virtualGameService{
		uowFactory: mockFactory,
		// 30 elapsed ticks at 0.05 per tick: multiplier 2.50.
		now: func() time.Time { return started.Add(30 * time.Second) },
	}

	bet := crashBetFixture(1, 42, "round-1")
	round := &models.CrashRound{ID: "round-1", GameType: models.GameTypeCrash, CrashPoint: 5.0, StartedAt: started}

	mockBetRepo.On("GetByID", ctx, int64(1)).Return(bet, nil).Once()
	mockCrashRepo.On("GetByID", ctx, "round-1").Return(round, nil)

	mockBetRepo.On("MarkSettled", ctx, int64(1), models.BetResultWon, mock.MatchedBy(func(p *int64) bool {
		return p != nil && *p == 250
	})).Return(true, nil)
	mockAccountRepo.On("Adjust", ctx, int64(42), int64(250)).Return(int64(1150), nil)
	mockLedgerRepo.On("Record", ctx, mock.MatchedBy(func(e *models.LedgerEntry) bool {
		return e.Kind == models.LedgerKindPayout && e.Amount == 250
	})).Return(nil)
	mockBetRepo.On("GetByID", ctx, int64(1)).Return(settledCopy(bet, models.BetResultWon), nil).Once()

	outcome, err := service.CashOut(ctx, 1)

	require.NoError(t, err)
	assert.True(t, outcome.Applied)

	mockAccountRepo.AssertExpectations(t)
	mockBetRepo.AssertExpectations(t)
}

func TestVirtualGameService_CashOut_AfterCrashPoint(t *testing.T) {
	ctx := context.Background()
	mockFactory, _, _, mockBetRepo, _, _, mockCrashRepo, _ := newVirtualGameMocks()

	started := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	service := &virtualGameService{
		uowFactory: mockFactory,
		// Multiplier 2.50, but the round crashed at 2.04.
		now: func() time.Time { return started.Add(30 * time.Second) },
	}

	bet := crashBetFixture(1, 42, "round-1")
	round := &models.CrashRound{ID: "round-1", GameType: models.GameTypeCrash, CrashPoint: 2.04, StartedAt: started}

	mockBetRepo.On("GetByID", ctx, int64(1)).Return(bet, nil)
	mockCrashRepo.On("GetByID", ctx, "round-1").Return(round, nil)

	_, err := service.CashOut(ctx, 1)

	assert.ErrorIs(t, err, models.ErrRoundNotOpen)
	mockBetRepo.AssertNotCalled(t, "MarkSettled", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestVirtualGameService_CashOut_AlreadySettled(t *testing.T) {
	ctx := context.Background()
	mockFactory, _, mockAccountRepo, mockBetRepo, _, _, _, _ := newVirtualGameMocks()

	service := NewVirtualGameService(mockFactory)

	bet := settledCopy(crashBetFixture(1, 42, "round-1"), models.BetResultWon)
	mockBetRepo.On("GetByID", ctx, int64(1)).Return(bet, nil)

	outcome, err := service.CashOut(ctx, 1)

	require.NoError(t, err)
	assert.False(t, outcome.Applied)
	mockAccountRepo.AssertNotCalled(t, "Adjust", mock.Anything, mock.Anything, mock.Anything)
}

func TestVirtualGameService_CashOut_ClosedRound(t *testing.T) {
	ctx := context.Background()
	mockFactory, _, _, mockBetRepo, _, _, mockCrashRepo, _ := newVirtualGameMocks()

	service := NewVirtualGameService(mockFactory)

	bet := crashBetFixture(1, 42, "round-1")
	completedAt := time.Now()
	round := &models.CrashRound{ID: "round-1", GameType: models.GameTypeCrash, CrashPoint: 2.04, CompletedAt: &completedAt}

	mockBetRepo.On("GetByID", ctx, int64(1)).Return(bet, nil)
	mockCrashRepo.On("GetByID", ctx, "round-1").Return(round, nil)

	_, err := service.CashOut(ctx, 1)

	assert.ErrorIs(t, err, models.ErrRoundNotOpen)
}

func TestVirtualGameService_SweepStaleBets_VoidsOrphanedCrashBets(t *testing.T) {
	ctx := context.Background()
	mockFactory, mockUoW, mockAccountRepo, mockBetRepo, mockLedgerRepo, _, _, _ := newVirtualGameMocks()
	mockUoW.On("Commit").Return(nil)

	service := NewVirtualGameService(mockFactory)

	orphan := crashBetFixture(1, 42, "round-lost")
	mockBetRepo.On("ListStalePending", ctx, models.MarketKindVirtualCrash, mock.AnythingOfType("time.Time")).Return([]*models.Bet{orphan}, nil)

	mockBetRepo.On("MarkSettled", ctx, int64(1), models.BetResultVoid, (*int64)(nil)).Return(true, nil)
	mockAccountRepo.On("Adjust", ctx, int64(42), int64(100)).Return(int64(1100), nil)
	mockLedgerRepo.On("Record", ctx, mock.MatchedBy(func(e *models.LedgerEntry) bool {
		return e.Kind == models.LedgerKindRefund && e.Amount == 100
	})).Return(nil)
	mockBetRepo.On("GetByID", ctx, int64(1)).Return(settledCopy(orphan, models.BetResultVoid), nil)

	swept, err := service.SweepStaleBets(ctx, models.GameTypeCrash)

	require.NoError(t, err)
	assert.Equal(t, 1, swept)

	mockAccountRepo.AssertExpectations(t)
}

func TestVirtualGameService_SetNextCrash(t *testing.T) {
	ctx := context.Background()
	mockFactory, mockUoW, _, _, _, mockConfigRepo, _, mockAuditRepo := newVirtualGameMocks()
	mockUoW.On("Commit").Return(nil)

	service := NewVirtualGameService(mockFactory)

	mockConfigRepo.On("Get", ctx, models.GameTypeCrash).Return(crashConfigFixture([]float64{1.37, 2.04}, 1), nil)
	mockConfigRepo.On("SetSeriesValue", ctx, models.GameTypeCrash, 1, 3.5).Return(nil)

	mockAuditRepo.On("Record", ctx, mock.MatchedBy(func(e *models.AuditLog) bool {
		return e.Action == "set_next_crash" &&
			e.Actor == "ops@example.com" &&
			e.Details["value"] == 3.5
	})).Return(nil)

	err := service.SetNextCrash(ctx, "ops@example.com", 3.5)

	require.NoError(t, err)
	mockConfigRepo.AssertExpectations(t)
	mockAuditRepo.AssertExpectations(t)
}

func TestVirtualGameService_SetNextCrash_RejectsSubUnity(t *testing.T) {
	ctx := context.Background()
	mockFactory, _, _, _, _, _, _, _ := newVirtualGameMocks()

	service := NewVirtualGameService(mockFactory)

	err := service.SetNextCrash(ctx, "ops@example.com", 0.5)

	assert.Error(t, err)
}

func TestVirtualGameService_GenerateSeries(t *testing.T) {
	ctx := context.Background()
	mockFactory, mockUoW, _, _, _, mockConfigRepo, _, mockAuditRepo := newVirtualGameMocks()
	mockUoW.On("Commit").Return(nil)

	service := NewVirtualGameService(mockFactory)

	mockConfigRepo.On("ReplaceSeries", ctx, models.GameTypeCrash, mock.MatchedBy(func(series []float64) bool {
		if len(series) != 5 {
			return false
		}
		for _, v := range series {
			if v < 1.2 || v > 10.0 {
				return false
			}
		}
		return true
	})).Return(nil)

	mockAuditRepo.On("Record", ctx, mock.MatchedBy(func(e *models.AuditLog) bool {
		return e.Action == "generate_series" && e.Actor == "ops@example.com"
	})).Return(nil)

	series, err := service.GenerateSeries(ctx, "ops@example.com", 5, 1.2, 10.0)

	require.NoError(t, err)
	assert.Len(t, series, 5)

	mockConfigRepo.AssertExpectations(t)
	mockAuditRepo.AssertExpectations(t)
}

func TestVirtualGameService_GenerateSeries_InvalidRange(t *testing.T) {
	ctx := context.Background()
	mockFactory, _, _, _, _, _, _, _ := newVirtualGameMocks()

	service := NewVirtualGameService(mockFactory)

	_, err := service.GenerateSeries(ctx, "ops@example.com", 0, 1.2, 10.0)
	assert.Error(t, err)

	_, err = service.GenerateSeries(ctx, "ops@example.com", 5, 10.0, 1.2)
	assert.Error(t, err)
}

func TestVirtualGameService_ResetIndex(t *testing.T) {
	ctx := context.Background()
	mockFactory, mockUoW, _, _, _, mockConfigRepo, _, mockAuditRepo := newVirtualGameMocks()
	mockUoW.On("Commit").Return(nil)

	service := NewVirtualGameService(mockFactory)

	mockConfigRepo.On("ResetIndex", ctx, models.GameTypeCrash).Return(nil)
	mockAuditRepo.On("Record", ctx, mock.MatchedBy(func(e *models.AuditLog) bool {
		return e.Action == "reset_index"
	})).Return(nil)

	err := service.ResetIndex(ctx, "ops@example.com")

	require.NoError(t, err)
	mockAuditRepo.AssertExpectations(t)
}

func TestVirtualGameService_SetAutoComplete(t *testing.T) {
	ctx := context.Background()
	mockFactory, mockUoW, _, _, _, mockConfigRepo, _, mockAuditRepo := newVirtualGameMocks()
	mockUoW.On("Commit").Return(nil)

	service := NewVirtualGameService(mockFactory)

	mockConfigRepo.On("SetAutoComplete", ctx, models.GameTypeDigit, true, 60).Return(nil)
	mockAuditRepo.On("Record", ctx, mock.MatchedBy(func(e *models.AuditLog) bool {
		return e.Action == "set_auto_complete" && e.Details["enabled"] == true
	})).Return(nil)

	err := service.SetAutoComplete(ctx, "ops@example.com", models.GameTypeDigit, true, 60)

	require.NoError(t, err)
	mockConfigRepo.AssertExpectations(t)
}
