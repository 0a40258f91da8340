package repository

import (
	"context"
	"errors"
	"fmt"

	"guildhall/database"
	"guildhall/events"
	"guildhall/service"

	"github.com/jackc/pgx/v5"
)

// unitOfWork implements the UnitOfWork interface
type unitOfWork struct {
	db               *database.DB
	tx               pgx.Tx
	ctx              context.Context
	managed          bool
	transactionalBus *events.TransactionalBus
	accountRepo      service.AccountRepository
	guildRepo        service.GuildRepository
	cashoutRepo      service.CashoutRepository
	purchaseRepo     service.PurchaseRepository
	lotteryRepo      service.LotteryRepository
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

// Execute runs fn inside a serializable transaction. The body re-runs from
// the top when a concurrent commit conflicts with it, so fn must be
// repeatable; events it publishes are discarded with each failed attempt
// and flushed once after the final commit.
func (f *unitOfWorkFactory) Execute(ctx context.Context, fn func(ctx context.Context, uow service.UnitOfWork) error) error {
	bus := events.NewTransactionalBus(f.eventBus)

	err := f.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		bus.Discard()
		u := newManagedUnitOfWork(ctx, tx, bus)
		return fn(ctx, u)
	})
	if err != nil {
		return err
	}

	bus.Flush(ctx)
	return nil
}

// newManagedUnitOfWork binds a unit of work to a transaction whose
// lifecycle is owned by Execute.
func newManagedUnitOfWork(ctx context.Context, tx pgx.Tx, bus *events.TransactionalBus) *unitOfWork {
	u := &unitOfWork{
		tx:               tx,
		ctx:              ctx,
		managed:          true,
		transactionalBus: bus,
	}
	u.bindRepositories(tx)
	return u
}

func (u *unitOfWork) bindRepositories(tx queryable) {
	u.accountRepo = newAccountRepositoryWithTx(tx)
	u.guildRepo = newGuildRepositoryWithTx(tx)
	u.cashoutRepo = newCashoutRepositoryWithTx(tx)
	u.purchaseRepo = newPurchaseRepositoryWithTx(tx)
	u.lotteryRepo = newLotteryRepositoryWithTx(tx)
}

// Begin starts a new serializable transaction
func (u *unitOfWork) Begin(ctx context.Context) error {
	if u.managed {
		return errors.New("transaction lifecycle is owned by Execute")
	}
	if u.tx != nil {
		return fmt.Errorf("transaction already started")
	}

	tx, err := u.db.BeginTx(ctx, database.SerializableOptions)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	u.tx = tx
	u.ctx = ctx
	u.bindRepositories(tx)

	return nil
}

// Commit commits the transaction and flushes pending events
func (u *unitOfWork) Commit() error {
	if u.managed {
		return errors.New("transaction lifecycle is owned by Execute")
	}
	if u.tx == nil {
		return fmt.Errorf("no transaction to commit")
	}

	if err := u.tx.Commit(u.ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	u.tx = nil

	if u.transactionalBus != nil {
		u.transactionalBus.Flush(u.ctx)
	}

	return nil
}

// Rollback rolls back the transaction and discards pending events
func (u *unitOfWork) Rollback() error {
	if u.managed {
		return errors.New("transaction lifecycle is owned by Execute")
	}
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

// AccountRepository returns the account repository for this unit of work
func (u *unitOfWork) AccountRepository() service.AccountRepository {
	if u.accountRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.accountRepo
}

// GuildRepository returns the guild repository for this unit of work
func (u *unitOfWork) GuildRepository() service.GuildRepository {
	if u.guildRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.guildRepo
}

// CashoutRepository returns the cashout repository for this unit of work
func (u *unitOfWork) CashoutRepository() service.CashoutRepository {
	if u.cashoutRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.cashoutRepo
}

// PurchaseRepository returns the purchase repository for this unit of work
func (u *unitOfWork) PurchaseRepository() service.PurchaseRepository {
	if u.purchaseRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.purchaseRepo
}

// LotteryRepository returns the lottery repository for this unit of work
func (u *unitOfWork) LotteryRepository() service.LotteryRepository {
	if u.lotteryRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.lotteryRepo
}

// EventBus returns the transactional event bus for this unit of work
func (u *unitOfWork) EventBus() service.EventPublisher {
	if u.transactionalBus == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.transactionalBus
}
