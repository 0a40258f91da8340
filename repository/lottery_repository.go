package repository

import (
	"context"
	"fmt"

	"guildhall/database"
	"guildhall/models"
)

// LotteryRepository implements the LotteryRepository interface over the
// singleton lottery row.
type LotteryRepository struct {
	q queryable
}

// NewLotteryRepository creates a new lottery repository
func NewLotteryRepository(db *database.DB) *LotteryRepository {
	return &LotteryRepository{q: db.Pool}
}

// newLotteryRepositoryWithTx creates a new lottery repository with a transaction
func newLotteryRepositoryWithTx(tx queryable) *LotteryRepository {
	return &LotteryRepository{q: tx}
}

// GetPot retrieves the current entrant list
func (r *LotteryRepository) GetPot(ctx context.Context) (*models.LotteryPot, error) {
	var pot models.LotteryPot
	err := r.q.QueryRow(ctx, `SELECT entrants FROM lottery WHERE id = 1`).Scan(&pot.Entrants)
	if err != nil {
		return nil, fmt.Errorf("failed to get lottery pot: %w", err)
	}
	if pot.Entrants == nil {
		pot.Entrants = []models.LotteryEntrant{}
	}
	return &pot, nil
}

// SetPot overwrites the entrant list; an empty slice clears the pot
func (r *LotteryRepository) SetPot(ctx context.Context, entrants []models.LotteryEntrant) error {
	if entrants == nil {
		entrants = []models.LotteryEntrant{}
	}
	if _, err := r.q.Exec(ctx, `UPDATE lottery SET entrants = $1 WHERE id = 1`, entrants); err != nil {
		return fmt.Errorf("failed to set lottery pot: %w", err)
	}
	return nil
}
