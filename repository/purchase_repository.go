package repository

import (
	"context"
	"fmt"

	"guildhall/database"
	"guildhall/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// PurchaseRepository implements the PurchaseRepository interface
type PurchaseRepository struct {
	q queryable
}

// NewPurchaseRepository creates a new purchase repository
func NewPurchaseRepository(db *database.DB) *PurchaseRepository {
	return &PurchaseRepository{q: db.Pool}
}

// newPurchaseRepositoryWithTx creates a new purchase repository with a transaction
func newPurchaseRepositoryWithTx(tx queryable) *PurchaseRepository {
	return &PurchaseRepository{q: tx}
}

// CreatePending inserts an in-flight purchase awaiting payment confirmation
func (r *PurchaseRepository) CreatePending(ctx context.Context, pending *models.PendingPurchase) error {
	query := `
		INSERT INTO pending_purchases (id, member_id, product_id, option_name, credit_applied, transaction_code)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`
	err := r.q.QueryRow(ctx, query,
		pending.ID, pending.MemberID, pending.ProductID,
		pending.OptionName, pending.CreditApplied, pending.TransactionCode,
	).Scan(&pending.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create pending purchase %s: %w", pending.ID, err)
	}
	return nil
}

// GetPending retrieves an in-flight purchase, or nil if already settled
func (r *PurchaseRepository) GetPending(ctx context.Context, id uuid.UUID) (*models.PendingPurchase, error) {
	query := `
		SELECT id, member_id, product_id, option_name, credit_applied, transaction_code, created_at
		FROM pending_purchases
		WHERE id = $1
	`
	var p models.PendingPurchase
	err := r.q.QueryRow(ctx, query, id).Scan(
		&p.ID, &p.MemberID, &p.ProductID, &p.OptionName,
		&p.CreditApplied, &p.TransactionCode, &p.CreatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get pending purchase %s: %w", id, err)
	}
	return &p, nil
}

// DeletePending removes an in-flight purchase. Deleting an already settled
// purchase is a no-op.
func (r *PurchaseRepository) DeletePending(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM pending_purchases WHERE id = $1`
	if _, err := r.q.Exec(ctx, query, id); err != nil {
		return fmt.Errorf("failed to delete pending purchase %s: %w", id, err)
	}
	return nil
}

// CreatePromo stores a flash promo
func (r *PurchaseRepository) CreatePromo(ctx context.Context, promo *models.Promo) error {
	query := `
		INSERT INTO promos (id, name, description, price, purchase_cost)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`
	err := r.q.QueryRow(ctx, query,
		promo.ID, promo.Name, promo.Description, promo.Price, promo.PurchaseCost,
	).Scan(&promo.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create promo %q: %w", promo.Name, err)
	}
	return nil
}
