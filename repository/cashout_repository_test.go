package repository

import (
	"context"
	"testing"

	"guildhall/models"
	"guildhall/repository/testutil"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCashoutRepository_Lifecycle(t *testing.T) {
	t.Parallel()
	testDB := testutil.SetupTestDatabase(t)

	repo := NewCashoutRepository(testDB.DB)
	ctx := context.Background()

	pending := &models.PendingCashout{
		MessageID:       555001,
		MemberID:        100,
		CreditsDeducted: decimal.RequireFromString("60"),
		CurrencyToSend:  decimal.RequireFromString("54"),
		PayoutAddress:   "pay-to:alice",
	}

	t.Run("create keys on the announcement message", func(t *testing.T) {
		require.NoError(t, repo.Create(ctx, pending))
		assert.False(t, pending.CreatedAt.IsZero())

		got, err := repo.GetByMessageID(ctx, 555001)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, int64(100), got.MemberID)
		assert.True(t, got.CreditsDeducted.Equal(decimal.RequireFromString("60")))
		assert.True(t, got.CurrencyToSend.Equal(decimal.RequireFromString("54")))
		assert.Equal(t, "pay-to:alice", got.PayoutAddress)
	})

	t.Run("resolved requests read as nil", func(t *testing.T) {
		require.NoError(t, repo.Delete(ctx, 555001))

		got, err := repo.GetByMessageID(ctx, 555001)
		require.NoError(t, err)
		assert.Nil(t, got)

		// Deleting again is a no-op.
		require.NoError(t, repo.Delete(ctx, 555001))
	})
}
