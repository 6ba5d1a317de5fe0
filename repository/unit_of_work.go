package repository

import (
	"context"
	"fmt"

	"interestbatch/database"
	"interestbatch/events"
	"interestbatch/service"

	"github.com/jackc/pgx/v5"
)

// unitOfWork implements the UnitOfWork interface
type unitOfWork struct {
	db                *database.DB
	tx                pgx.Tx
	ctx               context.Context
	transactionalBus  *events.TransactionalBus
	jobConfigRepo     service.JobConfigRepository
	executionRepo     service.ExecutionRepository
	accountResultRepo service.AccountResultRepository
	accountStatusRepo service.AccountStatusRepository
	accountRepo       service.AccountRepository
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

	// Create repositories with the transaction
	u.jobConfigRepo = newJobConfigRepositoryWithTx(tx)
	u.executionRepo = newExecutionRepositoryWithTx(tx)
	u.accountResultRepo = newAccountResultRepositoryWithTx(tx)
	u.accountStatusRepo = newAccountStatusRepositoryWithTx(tx)
	u.accountRepo = newAccountRepositoryWithTx(tx)

	return nil
}

// Commit commits the transaction
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

// Rollback rolls back the transaction
func (u *unitOfWork) Rollback() error {
	if u.tx == nil {
		return nil // Nothing to rollback
	}

	err := u.tx.Rollback(u.ctx)
	if err != nil && err != pgx.ErrTxClosed {
		return fmt.Errorf("failed to rollback transaction: %w", err)
	}

	u.tx = nil

	// Discard pending events on rollback
	if u.transactionalBus != nil {
		u.transactionalBus.Discard()
	}

	return nil
}

// JobConfigRepository returns the job config repository for this unit of work
func (u *unitOfWork) JobConfigRepository() service.JobConfigRepository {
	if u.jobConfigRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.jobConfigRepo
}

// ExecutionRepository returns the execution repository for this unit of work
func (u *unitOfWork) ExecutionRepository() service.ExecutionRepository {
	if u.executionRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.executionRepo
}

// AccountResultRepository returns the account result repository for this unit of work
func (u *unitOfWork) AccountResultRepository() service.AccountResultRepository {
	if u.accountResultRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.accountResultRepo
}

// AccountStatusRepository returns the account status repository for this unit of work
func (u *unitOfWork) AccountStatusRepository() service.AccountStatusRepository {
	if u.accountStatusRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.accountStatusRepo
}

// AccountRepository returns the account repository for this unit of work
func (u *unitOfWork) AccountRepository() service.AccountRepository {
	if u.accountRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.accountRepo
}

// EventBus returns the transactional event bus for this unit of work
func (u *unitOfWork) EventBus() service.EventPublisher {
	if u.transactionalBus == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.transactionalBus
}
