package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"stakehouse/models"
)

func newAccountMocks() (*MockUnitOfWorkFactory, *MockUnitOfWork, *MockAccountRepository, *MockLedgerRepository, *MockPaymentGateway) {
	mockUoW := new(MockUnitOfWork)
	mockFactory := new(MockUnitOfWorkFactory)
	mockAccountRepo := new(MockAccountRepository)
	mockLedgerRepo := new(MockLedgerRepository)
	mockGateway := new(MockPaymentGateway)

	mockUoW.SetRepositories(mockAccountRepo, nil, nil, mockLedgerRepo, nil, nil, nil)

	mockFactory.On("Create").Return(mockUoW)
	mockUoW.On("Begin", mock.Anything).Return(nil)
	mockUoW.On("Rollback").Return(nil)

	return mockFactory, mockUoW, mockAccountRepo, mockLedgerRepo, mockGateway
}

func TestAccountService_GetAccount(t *testing.T) {
	ctx := context.Background()
	mockFactory, _, mockAccountRepo, _, mockGateway := newAccountMocks()

	service := NewAccountService(mockFactory, mockGateway)

	mockAccountRepo.On("GetByID", ctx, int64(42)).Return(activeAccountFixture(42, 1000), nil)

	account, err := service.GetAccount(ctx, 42)

	require.NoError(t, err)
	assert.Equal(t, int64(1000), account.Balance)
}

func TestAccountService_GetAccount_NotFound(t *testing.T) {
	ctx := context.Background()
	mockFactory, _, mockAccountRepo, _, mockGateway := newAccountMocks()

	service := NewAccountService(mockFactory, mockGateway)

	mockAccountRepo.On("GetByID", ctx, int64(99)).Return(nil, nil)

	_, err := service.GetAccount(ctx, 99)

	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestAccountService_CreateAccount(t *testing.T) {
	ctx := context.Background()
	mockFactory, mockUoW, mockAccountRepo, mockLedgerRepo, mockGateway := newAccountMocks()
	mockUoW.On("Commit").Return(nil)

	service := NewAccountService(mockFactory, mockGateway)

	created := activeAccountFixture(42, 0)
	mockAccountRepo.On("Create", ctx, int64(0)).Return(created, nil)

	account, err := service.CreateAccount(ctx)

	require.NoError(t, err)
	assert.Equal(t, int64(42), account.ID)

	// No starting balance, no ledger entry.
	mockLedgerRepo.AssertNotCalled(t, "Record", mock.Anything, mock.Anything)
	mockAccountRepo.AssertExpectations(t)
}

func TestAccountService_Deposit(t *testing.T) {
	ctx := context.Background()
	mockFactory, mockUoW, mockAccountRepo, mockLedgerRepo, mockGateway := newAccountMocks()
	mockUoW.On("Commit").Return(nil)

	service := NewAccountService(mockFactory, mockGateway)

	mockGateway.On("InitiateDeposit", ctx, int64(42), int64(2000)).Return("dep-ref-1", nil)
	mockAccountRepo.On("Adjust", ctx, int64(42), int64(2000)).Return(int64(3000), nil)

	mockLedgerRepo.On("Record", ctx, mock.MatchedBy(func(e *models.LedgerEntry) bool {
		return e.Reference == "dep-ref-1" &&
			e.Kind == models.LedgerKindDeposit &&
			e.Amount == 2000
	})).Return(nil)

	mockAccountRepo.On("GetByID", ctx, int64(42)).Return(activeAccountFixture(42, 3000), nil)

	account, err := service.Deposit(ctx, 42, 2000)

	require.NoError(t, err)
	assert.Equal(t, int64(3000), account.Balance)

	mockGateway.AssertExpectations(t)
	mockLedgerRepo.AssertExpectations(t)
}

func TestAccountService_Deposit_GatewayFailure(t *testing.T) {
	ctx := context.Background()
	mockFactory, _, _, _, mockGateway := newAccountMocks()

	service := NewAccountService(mockFactory, mockGateway)

	mockGateway.On("InitiateDeposit", ctx, int64(42), int64(2000)).Return("", errors.New("card declined"))

	_, err := service.Deposit(ctx, 42, 2000)

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "payment gateway")

	// The account was never touched.
	mockFactory.AssertNotCalled(t, "Create")
}

func TestAccountService_Deposit_RejectsNonPositiveAmount(t *testing.T) {
	ctx := context.Background()
	mockFactory, _, _, _, mockGateway := newAccountMocks()

	service := NewAccountService(mockFactory, mockGateway)

	_, err := service.Deposit(ctx, 42, 0)
	assert.Error(t, err)

	_, err = service.Deposit(ctx, 42, -100)
	assert.Error(t, err)

	mockGateway.AssertNotCalled(t, "InitiateDeposit", mock.Anything, mock.Anything, mock.Anything)
}

func TestAccountService_ConvertBonus(t *testing.T) {
	ctx := context.Background()
	mockFactory, mockUoW, mockAccountRepo, mockLedgerRepo, mockGateway := newAccountMocks()
	mockUoW.On("Commit").Return(nil)

	service := NewAccountService(mockFactory, mockGateway)

	account := activeAccountFixture(42, 1000)
	account.BonusBalance = 500
	account.WithdrawableBonus = 200

	converted := activeAccountFixture(42, 1200)
	converted.BonusBalance = 300

	mockAccountRepo.On("GetByID", ctx, int64(42)).Return(account, nil).Once()
	mockAccountRepo.On("ConvertWithdrawableBonus", ctx, int64(42)).Return(int64(1200), nil)
	mockLedgerRepo.On("Record", ctx, mock.MatchedBy(func(e *models.LedgerEntry) bool {
		return e.Kind == models.LedgerKindBonus && e.Amount == 200
	})).Return(nil)
	mockAccountRepo.On("GetByID", ctx, int64(42)).Return(converted, nil).Once()

	result, err := service.ConvertBonus(ctx, 42)

	require.NoError(t, err)
	assert.Equal(t, int64(1200), result.Balance)
	assert.Equal(t, int64(0), result.WithdrawableBonus)
	mockAccountRepo.AssertExpectations(t)
}

func TestAccountService_ConvertBonus_NothingToConvert(t *testing.T) {
	ctx := context.Background()
	mockFactory, _, mockAccountRepo, mockLedgerRepo, mockGateway := newAccountMocks()

	service := NewAccountService(mockFactory, mockGateway)

	mockAccountRepo.On("GetByID", ctx, int64(42)).Return(activeAccountFixture(42, 1000), nil)

	account, err := service.ConvertBonus(ctx, 42)

	require.NoError(t, err)
	assert.Equal(t, int64(1000), account.Balance)
	mockAccountRepo.AssertNotCalled(t, "ConvertWithdrawableBonus", mock.Anything, mock.Anything)
	mockLedgerRepo.AssertNotCalled(t, "Record", mock.Anything, mock.Anything)
}

func TestAccountService_SetStatus(t *testing.T) {
	ctx := context.Background()
	mockFactory, mockUoW, mockAccountRepo, _, mockGateway := newAccountMocks()
	mockUoW.On("Commit").Return(nil)

	service := NewAccountService(mockFactory, mockGateway)

	mockAccountRepo.On("UpdateStatus", ctx, int64(42), models.AccountStatusSuspended).Return(nil)

	err := service.SetStatus(ctx, 42, models.AccountStatusSuspended)

	require.NoError(t, err)
	mockAccountRepo.AssertExpectations(t)
}
