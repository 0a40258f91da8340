package repository

import (
	"context"
	"fmt"

	"guildhall/database"
	"guildhall/models"

	"github.com/jackc/pgx/v5"
)

// CashoutRepository implements the CashoutRepository interface
type CashoutRepository struct {
	q queryable
}

// NewCashoutRepository creates a new cashout repository
func NewCashoutRepository(db *database.DB) *CashoutRepository {
	return &CashoutRepository{q: db.Pool}
}

// newCashoutRepositoryWithTx creates a new cashout repository with a transaction
func newCashoutRepositoryWithTx(tx queryable) *CashoutRepository {
	return &CashoutRepository{q: tx}
}

// Create inserts a pending cashout keyed by its announcement message
func (r *CashoutRepository) Create(ctx context.Context, pending *models.PendingCashout) error {
	query := `
		INSERT INTO pending_cashouts (message_id, member_id, credits_deducted, currency_to_send, payout_address)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`
	err := r.q.QueryRow(ctx, query,
		pending.MessageID, pending.MemberID, pending.CreditsDeducted,
		pending.CurrencyToSend, pending.PayoutAddress,
	).Scan(&pending.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create pending cashout %d: %w", pending.MessageID, err)
	}
	return nil
}

// GetByMessageID retrieves a pending cashout, or nil if already resolved
func (r *CashoutRepository) GetByMessageID(ctx context.Context, messageID int64) (*models.PendingCashout, error) {
	query := `
		SELECT message_id, member_id, credits_deducted, currency_to_send, payout_address, created_at
		FROM pending_cashouts
		WHERE message_id = $1
	`
	var p models.PendingCashout
	err := r.q.QueryRow(ctx, query, messageID).Scan(
		&p.MessageID, &p.MemberID, &p.CreditsDeducted,
		&p.CurrencyToSend, &p.PayoutAddress, &p.CreatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get pending cashout %d: %w", messageID, err)
	}
	return &p, nil
}

// Delete removes a pending cashout. Deleting an already resolved request
// is a no-op.
func (r *CashoutRepository) Delete(ctx context.Context, messageID int64) error {
	query := `DELETE FROM pending_cashouts WHERE message_id = $1`
	if _, err := r.q.Exec(ctx, query, messageID); err != nil {
		return fmt.Errorf("failed to delete pending cashout %d: %w", messageID, err)
	}
	return nil
}
