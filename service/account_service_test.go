package service

import (
	"context"
	"testing"

	"guildhall/config"
	"guildhall/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAccounts(factory UnitOfWorkFactory, eco *config.Economy) AccountService {
	return NewAccountService(factory, eco, newTestProgression(factory, eco))
}

func TestGetAccountCreatesOnFirstReference(t *testing.T) {
	factory, store, _ := newFakeFactory()
	svc := newTestAccounts(factory, config.DefaultEconomy())

	account, err := svc.GetAccount(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), account.MemberID)
	assert.Equal(t, 1, account.Level)
	assert.NotNil(t, store.account(1))
}

func TestRecordReferralWriteOnce(t *testing.T) {
	factory, store, _ := newFakeFactory()
	eco := config.DefaultEconomy()
	eco.Achievements = nil
	svc := newTestAccounts(factory, eco)
	ctx := context.Background()

	require.NoError(t, svc.RecordReferral(ctx, 1, 10, "member 1"))
	require.NotNil(t, store.account(1).Referrer)
	assert.Equal(t, int64(10), *store.account(1).Referrer)
	assert.Equal(t, int64(1), store.account(10).ReferralCount)

	// A competing referrer changes nothing.
	require.NoError(t, svc.RecordReferral(ctx, 1, 20, "member 1"))
	assert.Equal(t, int64(10), *store.account(1).Referrer)
	assert.Nil(t, store.account(20))
}

func TestRecordReferralRejectsSelf(t *testing.T) {
	factory, store, _ := newFakeFactory()
	svc := newTestAccounts(factory, config.DefaultEconomy())

	err := svc.RecordReferral(context.Background(), 1, 1, "member 1")
	assert.ErrorIs(t, err, ErrSelfReferral)
	assert.Nil(t, store.account(1))
}

func TestRecordReferralUnlocksRecruiterAchievement(t *testing.T) {
	factory, store, _ := newFakeFactory()
	svc := newTestAccounts(factory, config.DefaultEconomy())
	ctx := context.Background()

	store.seedAccount(&models.Account{MemberID: 10, ReferralCount: 4})

	require.NoError(t, svc.RecordReferral(ctx, 1, 10, "member 1"))
	assert.Equal(t, int64(5), store.account(10).ReferralCount)
	assert.Contains(t, store.account(10).Achievements, "recruiter")
}

func TestConfirmVerificationRewardsReferrer(t *testing.T) {
	factory, store, _ := newFakeFactory()
	eco := config.DefaultEconomy()
	eco.Achievements = nil
	svc := newTestAccounts(factory, eco)
	ctx := context.Background()

	// Without a referrer nothing happens.
	require.NoError(t, svc.ConfirmVerification(ctx, 1))

	referrerID := int64(10)
	store.seedAccount(&models.Account{MemberID: referrerID})
	store.account(1).Referrer = &referrerID

	require.NoError(t, svc.ConfirmVerification(ctx, 1))
	assert.Equal(t, int64(100), store.account(referrerID).XP)
}

func TestGrantCredits(t *testing.T) {
	factory, store, _ := newFakeFactory()
	svc := newTestAccounts(factory, config.DefaultEconomy())
	ctx := context.Background()

	assert.ErrorIs(t, svc.GrantCredits(ctx, 1, decimal.Zero, "nothing"), ErrInvalidAmount)

	require.NoError(t, svc.GrantCredits(ctx, 1, decimal.NewFromInt(25), "event prize"))
	assert.True(t, store.account(1).StoreCredit.Equal(decimal.NewFromInt(25)))

	// Negative grants debit but never below zero.
	require.NoError(t, svc.GrantCredits(ctx, 1, decimal.NewFromInt(-10), "correction"))
	assert.True(t, store.account(1).StoreCredit.Equal(decimal.NewFromInt(15)))

	assert.ErrorIs(t, svc.GrantCredits(ctx, 1, decimal.NewFromInt(-100), "too much"), ErrInsufficientFunds)
}
