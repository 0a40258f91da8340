package service

import (
	"context"
	"fmt"
	"time"

	"guildhall/events"
	"guildhall/models"

	"github.com/shopspring/decimal"
)

// TxApplier is the single entry point for numeric account mutations.
// Every balance, counter and XP change flows through Apply so that the
// write and its audit log line land in the same statement.
type TxApplier struct {
	MaxLogEntries int
	Clock         func() time.Time
}

// NewTxApplier creates an applier with the given log cap.
func NewTxApplier(maxLogEntries int) *TxApplier {
	return &TxApplier{MaxLogEntries: maxLogEntries, Clock: time.Now}
}

// Apply adds delta to the named field of the member's account, prepends
// the audit log entry and persists both. Must run inside a unit of work;
// the returned account reflects the new state. A store-credit mutation
// that would go negative fails with ErrInsufficientFunds and writes
// nothing. Integer-valued fields truncate toward zero.
func (ap *TxApplier) Apply(ctx context.Context, uow UnitOfWork, memberID int64, field models.Field, delta decimal.Decimal, description string) (*models.Account, error) {
	account, err := uow.AccountRepository().GetOrCreate(ctx, memberID)
	if err != nil {
		return nil, fmt.Errorf("failed to load account %d: %w", memberID, err)
	}

	current, ok := account.FieldValue(field)
	if !ok {
		return nil, fmt.Errorf("field %q is not applier-mutable", field)
	}

	newValue := current.Add(delta)
	if field.IntegerValued() {
		newValue = newValue.Truncate(0)
	}
	if field == models.FieldStoreCredit && newValue.IsNegative() {
		return nil, ErrInsufficientFunds
	}

	entry := models.TransactionLogEntry{
		Timestamp:   ap.Clock().UTC(),
		Field:       field,
		Delta:       delta,
		Description: description,
	}
	log := append([]models.TransactionLogEntry{entry}, account.TransactionLog...)
	if len(log) > ap.MaxLogEntries {
		log = log[:ap.MaxLogEntries]
	}

	if err := uow.AccountRepository().UpdateFieldAndLog(ctx, memberID, field, newValue, log); err != nil {
		return nil, fmt.Errorf("failed to update %s for account %d: %w", field, memberID, err)
	}

	account.SetFieldValue(field, newValue)
	account.TransactionLog = log

	if field == models.FieldStoreCredit {
		uow.EventBus().Publish(events.CreditChangeEvent{
			MemberID:    memberID,
			Delta:       delta,
			NewBalance:  newValue,
			Description: description,
		})
	}

	return account, nil
}
