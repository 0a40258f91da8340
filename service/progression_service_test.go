package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"guildhall/config"
	"guildhall/events"
	"guildhall/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestProgression(factory UnitOfWorkFactory, eco *config.Economy) *progressionService {
	svc := NewProgressionService(factory, eco).(*progressionService)
	svc.clock = func() time.Time { return testNow }
	svc.applier.Clock = svc.clock
	svc.randInt = func(min, max int) int { return min }
	return svc
}

func TestGrantXPMessageCooldown(t *testing.T) {
	factory, store, _ := newFakeFactory()
	eco := config.DefaultEconomy()
	svc := newTestProgression(factory, eco)

	store.seedAccount(&models.Account{MemberID: 1, LastMessageAt: testNow.Add(-30 * time.Second)})

	result, err := svc.GrantXP(context.Background(), 1, MessageActivity(), "message activity")
	require.NoError(t, err)
	assert.False(t, result.Granted)
	assert.Equal(t, int64(0), store.account(1).XP)

	// Outside the cooldown the grant lands.
	store.account(1).LastMessageAt = testNow.Add(-2 * time.Minute)
	result, err = svc.GrantXP(context.Background(), 1, MessageActivity(), "message activity")
	require.NoError(t, err)
	assert.True(t, result.Granted)
	assert.Equal(t, int64(eco.XP.PerMessageMin), result.XP)
	assert.Equal(t, int64(1), store.account(1).MessageCount)
	assert.Equal(t, testNow, store.account(1).LastMessageAt)
}

func TestGrantXPBoostStacking(t *testing.T) {
	factory, store, _ := newFakeFactory()
	svc := newTestProgression(factory, config.DefaultEconomy())

	// Best VIP tier (+0.35) plus one active XP booster (+0.25) gives 1.6x.
	store.seedAccount(&models.Account{
		MemberID: 1,
		VIP:      &models.VIPStatus{ExpiresAt: testNow.Add(time.Hour), ConsecutiveMonths: 6},
		ActiveBoosters: map[string]models.Booster{
			"xp_booster_1": {ExpiresAt: testNow.Add(time.Hour), Multiplier: 1.25},
		},
	})

	result, err := svc.GrantXP(context.Background(), 1, DirectAmount(100), "bonus")
	require.NoError(t, err)
	assert.Equal(t, int64(160), result.XP)
	assert.Equal(t, int64(160), store.account(1).XP)
	assert.Equal(t, int64(160), store.account(1).WeeklyXP)
}

func TestGrantXPExpiredBoosterIgnored(t *testing.T) {
	factory, store, _ := newFakeFactory()
	svc := newTestProgression(factory, config.DefaultEconomy())

	store.seedAccount(&models.Account{
		MemberID: 1,
		ActiveBoosters: map[string]models.Booster{
			"xp_booster_1": {ExpiresAt: testNow.Add(-time.Hour), Multiplier: 1.25},
		},
	})

	result, err := svc.GrantXP(context.Background(), 1, DirectAmount(100), "bonus")
	require.NoError(t, err)
	assert.Equal(t, int64(100), result.XP)
}

func TestGrantXPEventMultiplier(t *testing.T) {
	factory, store, _ := newFakeFactory()
	svc := newTestProgression(factory, config.DefaultEconomy())

	svc.SetEventMultiplier("double-weekend", 2.0)
	result, err := svc.GrantXP(context.Background(), 1, DirectAmount(100), "bonus")
	require.NoError(t, err)
	assert.Equal(t, int64(200), result.XP)

	svc.ClearEventMultiplier("double-weekend")
	result, err = svc.GrantXP(context.Background(), 1, DirectAmount(100), "bonus")
	require.NoError(t, err)
	assert.Equal(t, int64(100), result.XP)
	assert.Equal(t, int64(300), store.account(1).XP)
}

func TestGrantXPGatedAccount(t *testing.T) {
	factory, store, _ := newFakeFactory()
	svc := newTestProgression(factory, config.DefaultEconomy())

	store.seedAccount(&models.Account{MemberID: 1, XPGated: true, LastMessageAt: testNow.Add(-time.Hour)})

	// The gate blocks chat farming only.
	result, err := svc.GrantXP(context.Background(), 1, MessageActivity(), "message activity")
	require.NoError(t, err)
	assert.False(t, result.Granted)
	assert.Equal(t, int64(0), store.account(1).XP)
	assert.Equal(t, int64(0), store.account(1).MessageCount)

	// Direct grants (purchases, achievements) still land.
	result, err = svc.GrantXP(context.Background(), 1, DirectAmount(100), "bonus")
	require.NoError(t, err)
	assert.True(t, result.Granted)
	assert.Equal(t, int64(100), store.account(1).XP)
}

func TestGrantXPIncrementsGuildWeeklyXP(t *testing.T) {
	factory, store, _ := newFakeFactory()
	svc := newTestProgression(factory, config.DefaultEconomy())

	guildID := seedGuild(store, "raiders", 10)
	account := &models.Account{MemberID: 1, GuildID: &guildID}
	store.seedAccount(account)

	_, err := svc.GrantXP(context.Background(), 1, DirectAmount(50), "bonus")
	require.NoError(t, err)
	assert.Equal(t, int64(50), store.guilds[guildID].WeeklyXP)

	// A vanished guild is skipped silently.
	delete(store.guilds, guildID)
	result, err := svc.GrantXP(context.Background(), 1, DirectAmount(25), "bonus")
	require.NoError(t, err)
	assert.True(t, result.Granted)
}

func TestLevelUpThresholds(t *testing.T) {
	factory, store, _ := newFakeFactory()
	svc := newTestProgression(factory, config.DefaultEconomy())

	// Base 150, multiplier 1.6: leaving level 1 takes 240 XP, leaving
	// level 2 takes 384.
	result, err := svc.GrantXP(context.Background(), 1, DirectAmount(300), "bonus")
	require.NoError(t, err)
	assert.True(t, result.LeveledUp)
	assert.Equal(t, 2, result.NewLevel)
	assert.Equal(t, 2, store.account(1).Level)
	assert.Equal(t, int64(300), store.account(1).XP)
}

func TestCheckLevelUpIdempotent(t *testing.T) {
	factory, store, _ := newFakeFactory()
	svc := newTestProgression(factory, config.DefaultEconomy())

	_, err := svc.GrantXP(context.Background(), 1, DirectAmount(300), "bonus")
	require.NoError(t, err)
	require.Equal(t, 2, store.account(1).Level)

	leveled, newLevel, err := svc.CheckLevelUp(context.Background(), 1)
	require.NoError(t, err)
	assert.False(t, leveled)
	assert.Equal(t, 2, newLevel)

	leveled, _, err = svc.CheckLevelUp(context.Background(), 1)
	require.NoError(t, err)
	assert.False(t, leveled)
	assert.Equal(t, 2, store.account(1).Level)
}

func TestReferralMilestoneRewardedOnce(t *testing.T) {
	factory, store, bus := newFakeFactory()
	eco := config.DefaultEconomy()
	svc := newTestProgression(factory, eco)

	referrerID := int64(10)
	store.seedAccount(&models.Account{MemberID: referrerID})
	store.seedAccount(&models.Account{
		MemberID: 1,
		Referrer: &referrerID,
		JoinedAt: testNow.Add(-24 * time.Hour),
	})

	// Enough XP to pass the milestone level in one grant.
	_, err := svc.GrantXP(context.Background(), 1, DirectAmount(1000), "bonus")
	require.NoError(t, err)
	require.GreaterOrEqual(t, store.account(1).Level, eco.XP.ReferralMilestoneLevel)

	assert.Equal(t, eco.XP.ReferralMilestoneXP, store.account(referrerID).XP)
	assert.True(t, store.account(1).ReferralMilestoneRewarded)
	assert.Len(t, bus.ofType(events.EventTypeReferralMilestone), 1)

	// Further level-ups pay nothing more.
	_, err = svc.GrantXP(context.Background(), 1, DirectAmount(5000), "bonus")
	require.NoError(t, err)
	assert.Equal(t, eco.XP.ReferralMilestoneXP, store.account(referrerID).XP)
}

func TestReferralMilestoneOutsideWindow(t *testing.T) {
	factory, store, _ := newFakeFactory()
	eco := config.DefaultEconomy()
	svc := newTestProgression(factory, eco)

	referrerID := int64(10)
	store.seedAccount(&models.Account{MemberID: referrerID})
	store.seedAccount(&models.Account{
		MemberID: 1,
		Referrer: &referrerID,
		JoinedAt: testNow.Add(-time.Duration(eco.XP.ReferralMilestoneDays+1) * 24 * time.Hour),
	})

	_, err := svc.GrantXP(context.Background(), 1, DirectAmount(1000), "bonus")
	require.NoError(t, err)
	assert.Equal(t, int64(0), store.account(referrerID).XP)
	assert.False(t, store.account(1).ReferralMilestoneRewarded)
}

func TestAchievementRewardDoesNotReenter(t *testing.T) {
	factory, store, bus := newFakeFactory()
	eco := config.DefaultEconomy()
	eco.Achievements = []models.Achievement{
		{ID: "first_words", Name: "First Words", Trigger: models.AchievementTrigger{Stat: models.FieldMessageCount, Value: 1}, RewardXP: 50},
		{ID: "warmed_up", Name: "Warmed Up", Trigger: models.AchievementTrigger{Stat: models.FieldXP, Value: 40}, RewardXP: 50},
	}
	svc := newTestProgression(factory, eco)

	store.seedAccount(&models.Account{MemberID: 1, LastMessageAt: testNow.Add(-time.Hour)})

	// First message: 10 XP, unlocks first_words (+50). The reward pushes
	// XP past warmed_up's trigger, but the reward grant must not re-run
	// the achievement scan.
	_, err := svc.GrantXP(context.Background(), 1, MessageActivity(), "message activity")
	require.NoError(t, err)

	account := store.account(1)
	assert.Equal(t, []string{"first_words"}, account.Achievements)
	assert.Equal(t, int64(60), account.XP)

	// The next scan picks warmed_up up exactly once.
	require.NoError(t, svc.CheckAchievements(context.Background(), 1))
	account = store.account(1)
	assert.ElementsMatch(t, []string{"first_words", "warmed_up"}, account.Achievements)
	assert.Equal(t, int64(110), account.XP)
	assert.Len(t, bus.ofType(events.EventTypeAchievementUnlocked), 2)

	// Unlocked achievements never grant again.
	require.NoError(t, svc.CheckAchievements(context.Background(), 1))
	assert.Equal(t, int64(110), store.account(1).XP)
}

func TestConcurrentGrantsSumExactly(t *testing.T) {
	factory, store, _ := newFakeFactory()
	eco := config.DefaultEconomy()
	eco.Achievements = nil
	svc := newTestProgression(factory, eco)

	const workers = 25
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.GrantXP(context.Background(), 1, DirectAmount(10), "bonus")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(workers*10), store.account(1).XP)
	assert.Equal(t, int64(workers*10), store.account(1).WeeklyXP)
}

func TestPurchaseXP(t *testing.T) {
	factory, store, _ := newFakeFactory()
	svc := newTestProgression(factory, config.DefaultEconomy())

	store.seedAccount(&models.Account{MemberID: 1, StoreCredit: decimal.NewFromInt(10)})

	xp, err := svc.PurchaseXP(context.Background(), 1, decimal.NewFromInt(5))
	require.NoError(t, err)
	assert.Equal(t, int64(500), xp)
	assert.Equal(t, int64(500), store.account(1).XP)
	assert.True(t, store.account(1).StoreCredit.Equal(decimal.NewFromInt(5)))

	_, err = svc.PurchaseXP(context.Background(), 1, decimal.NewFromInt(-1))
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = svc.PurchaseXP(context.Background(), 1, decimal.NewFromInt(50))
	assert.ErrorIs(t, err, ErrInsufficientFunds)
}
