package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sethvargo/go-retry"
)

// Balance mutations use serializable transactions: the database detects
// conflicting concurrent commits at commit time and fails the loser with a
// serialization error, which we retry from the top. This is the optimistic
// concurrency primitive every mutating service call runs under.

const (
	// maxTxAttempts bounds conflict retries before the error surfaces.
	maxTxAttempts = 5
	// txRetryBaseDelay is the initial backoff between attempts.
	txRetryBaseDelay = 5 * time.Millisecond
)

// ErrTxRetryLimit is returned when a transaction keeps losing serialization
// conflicts past the attempt limit.
var ErrTxRetryLimit = errors.New("transaction retry limit exceeded")

// IsSerializationFailure reports whether err is a conflict the serializable
// retry loop should re-run.
func IsSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgerrcode.SerializationFailure || pgErr.Code == pgerrcode.DeadlockDetected
	}
	return false
}

// SerializableOptions are the transaction options for all balance mutations.
var SerializableOptions = pgx.TxOptions{IsoLevel: pgx.Serializable}

// WithTransaction executes fn inside a serializable transaction, retrying
// the whole body with exponential backoff when the database reports a
// serialization conflict. fn must be repeatable and free of side effects
// other than writes through the supplied transaction.
func (db *DB) WithTransaction(ctx context.Context, fn func(tx pgx.Tx) error) error {
	backoff := retry.WithMaxRetries(maxTxAttempts-1, retry.NewExponential(txRetryBaseDelay))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		tx, err := db.BeginTx(ctx, SerializableOptions)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}

		if err := fn(tx); err != nil {
			_ = tx.Rollback(ctx)
			if IsSerializationFailure(err) {
				return retry.RetryableError(err)
			}
			return err
		}

		if err := tx.Commit(ctx); err != nil {
			if IsSerializationFailure(err) {
				return retry.RetryableError(err)
			}
			return fmt.Errorf("failed to commit transaction: %w", err)
		}
		return nil
	})

	if err != nil && IsSerializationFailure(err) {
		return fmt.Errorf("%w: %v", ErrTxRetryLimit, err)
	}
	return err
}
