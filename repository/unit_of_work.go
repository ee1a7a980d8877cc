package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"stakehouse/database"
	"stakehouse/events"
	"stakehouse/service"
)

// unitOfWork implements the service.UnitOfWork interface. All repositories it
// hands out share one pgx transaction, so a settlement's status flip, ledger
// write, and balance adjustment commit or roll back together.
type unitOfWork struct {
	db               *database.DB
	tx               pgx.Tx
	ctx              context.Context
	transactionalBus *events.TransactionalBus
	accountRepo      service.AccountRepository
	betRepo          service.BetRepository
	withdrawalRepo   service.WithdrawalRepository
	ledgerRepo       service.LedgerRepository
	gameConfigRepo   service.GameConfigRepository
	crashRoundRepo   service.CrashRoundRepository
	auditRepo        service.AuditRepository
}

// NewUnitOfWorkFactory creates a new UnitOfWork factory
func NewUnitOfWorkFactory(db *database.DB, eventBus *events.Bus) service.UnitOfWorkFactory {
	return &unitOfWorkFactory{
		db:       db,
		eventBus: eventBus,
	}
}

type unitOfWorkFactory struct {
	db       *database.DB
	eventBus *events.Bus
}

func (f *unitOfWorkFactory) Create() service.UnitOfWork {
	return &unitOfWork{
		db:               f.db,
		transactionalBus: events.NewTransactionalBus(f.eventBus),
	}
}

// Begin starts a new transaction
func (u *unitOfWork) Begin(ctx context.Context) error {
	if u.tx != nil {
		return fmt.Errorf("transaction already started")
	}

	tx, err := u.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	u.tx = tx
	u.ctx = ctx

	u.accountRepo = newAccountRepositoryWithTx(tx)
	u.betRepo = newBetRepositoryWithTx(tx)
	u.withdrawalRepo = newWithdrawalRepositoryWithTx(tx)
	u.ledgerRepo = newLedgerRepositoryWithTx(tx)
	u.gameConfigRepo = newGameConfigRepositoryWithTx(tx)
	u.crashRoundRepo = newCrashRoundRepositoryWithTx(tx)
	u.auditRepo = newAuditRepositoryWithTx(tx)

	return nil
}

// Commit commits the transaction and flushes buffered events
func (u *unitOfWork) Commit() error {
	if u.tx == nil {
		return fmt.Errorf("no transaction to commit")
	}

	err := u.tx.Commit(u.ctx)
	if err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	u.tx = nil

	// Flush pending events after successful commit
	if u.transactionalBus != nil {
		u.transactionalBus.Flush(u.ctx)
	}

	return nil
}

// Rollback rolls back the transaction and discards buffered events
func (u *unitOfWork) Rollback() error {
	if u.tx == nil {
		return nil // Nothing to rollback
	}

	err := u.tx.Rollback(u.ctx)
	if err != nil && err != pgx.ErrTxClosed {
		return fmt.Errorf("failed to rollback transaction: %w", err)
	}

	u.tx = nil

	if u.transactionalBus != nil {
		u.transactionalBus.Discard()
	}

	return nil
}

// Accounts returns the account repository for this unit of work
func (u *unitOfWork) Accounts() service.AccountRepository {
	if u.accountRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.accountRepo
}

// Bets returns the bet repository for this unit of work
func (u *unitOfWork) Bets() service.BetRepository {
	if u.betRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.betRepo
}

// Withdrawals returns the withdrawal repository for this unit of work
func (u *unitOfWork) Withdrawals() service.WithdrawalRepository {
	if u.withdrawalRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.withdrawalRepo
}

// Ledger returns the ledger repository for this unit of work
func (u *unitOfWork) Ledger() service.LedgerRepository {
	if u.ledgerRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.ledgerRepo
}

// GameConfigs returns the game config repository for this unit of work
func (u *unitOfWork) GameConfigs() service.GameConfigRepository {
	if u.gameConfigRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.gameConfigRepo
}

// CrashRounds returns the crash round repository for this unit of work
func (u *unitOfWork) CrashRounds() service.CrashRoundRepository {
	if u.crashRoundRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.crashRoundRepo
}

// Audit returns the audit repository for this unit of work
func (u *unitOfWork) Audit() service.AuditRepository {
	if u.auditRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.auditRepo
}

// EventBus returns the transactional event bus for this unit of work
func (u *unitOfWork) EventBus() service.EventPublisher {
	if u.transactionalBus == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.transactionalBus
}
