package service

import (
	"context"
	"testing"
	"time"

	"guildhall/config"
	"guildhall/events"
	"guildhall/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMissions(factory UnitOfWorkFactory, eco *config.Economy, at time.Time) *missionService {
	progression := newTestProgression(factory, eco)
	svc := NewMissionService(factory, eco, progression).(*missionService)
	svc.clock = func() time.Time { return at }
	svc.randInt64 = func(min, max int64) int64 { return min }
	return svc
}

func TestUpdateProgressCompletesMission(t *testing.T) {
	factory, store, bus := newFakeFactory()
	eco := config.DefaultEconomy()
	eco.Achievements = nil
	svc := newTestMissions(factory, eco, testNow)

	store.seedAccount(&models.Account{
		MemberID:      1,
		MissionsOptIn: true,
		DailyMission:  &models.Mission{ID: "send_message", Description: "Send 15 messages", Target: 15, Progress: 13, RewardXP: 50},
	})

	require.NoError(t, svc.UpdateProgress(context.Background(), 1, "send_message", 1))
	account := store.account(1)
	assert.Equal(t, int64(14), account.DailyMission.Progress)
	assert.False(t, account.DailyMission.Completed)
	assert.Equal(t, int64(0), account.XP)

	require.NoError(t, svc.UpdateProgress(context.Background(), 1, "send_message", 1))
	account = store.account(1)
	assert.True(t, account.DailyMission.Completed)
	assert.Equal(t, int64(50), account.XP)

	completions := bus.ofType(events.EventTypeMissionCompleted)
	require.Len(t, completions, 1)
	assert.True(t, completions[0].(events.MissionCompletedEvent).NotifyDM)

	// Further progress on a completed mission grants nothing.
	require.NoError(t, svc.UpdateProgress(context.Background(), 1, "send_message", 5))
	assert.Equal(t, int64(50), store.account(1).XP)
	assert.Equal(t, int64(15), store.account(1).DailyMission.Progress)
}

func TestUpdateProgressOverflowClampsToTarget(t *testing.T) {
	factory, store, _ := newFakeFactory()
	eco := config.DefaultEconomy()
	eco.Achievements = nil
	svc := newTestMissions(factory, eco, testNow)

	store.seedAccount(&models.Account{
		MemberID:     1,
		DailyMission: &models.Mission{ID: "send_message", Target: 15, Progress: 10, RewardXP: 50},
	})

	require.NoError(t, svc.UpdateProgress(context.Background(), 1, "send_message", 100))
	assert.Equal(t, int64(15), store.account(1).DailyMission.Progress)
	assert.True(t, store.account(1).DailyMission.Completed)
}

func TestUpdateProgressAdvancesBothMissions(t *testing.T) {
	factory, store, _ := newFakeFactory()
	eco := config.DefaultEconomy()
	eco.Achievements = nil
	svc := newTestMissions(factory, eco, testNow)

	store.seedAccount(&models.Account{
		MemberID:      1,
		DailyMission:  &models.Mission{ID: "send_message", Target: 15, RewardXP: 50},
		WeeklyMission: &models.Mission{ID: "send_message", Target: 100, RewardXP: 300},
	})

	require.NoError(t, svc.UpdateProgress(context.Background(), 1, "send_message", 3))
	assert.Equal(t, int64(3), store.account(1).DailyMission.Progress)
	assert.Equal(t, int64(3), store.account(1).WeeklyMission.Progress)
}

func TestAssignMissions(t *testing.T) {
	factory, store, _ := newFakeFactory()
	monday := time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC)
	svc := newTestMissions(factory, config.DefaultEconomy(), monday)

	store.seedAccount(&models.Account{MemberID: 1})
	store.seedAccount(&models.Account{MemberID: 2})

	require.NoError(t, svc.AssignMissions(context.Background()))

	for _, id := range []int64{1, 2} {
		account := store.account(id)
		require.NotNil(t, account.DailyMission, "member %d", id)
		assert.Equal(t, "send_message", account.DailyMission.ID)
		assert.Equal(t, int64(15), account.DailyMission.Target)
		assert.Equal(t, "Send 15 messages", account.DailyMission.Description)

		// Monday also rolls the weekly mission.
		require.NotNil(t, account.WeeklyMission, "member %d", id)
		assert.Equal(t, int64(100), account.WeeklyMission.Target)
	}
}

func TestAssignMissionsMidweekSkipsWeekly(t *testing.T) {
	factory, store, _ := newFakeFactory()
	wednesday := time.Date(2025, 6, 4, 8, 0, 0, 0, time.UTC)
	svc := newTestMissions(factory, config.DefaultEconomy(), wednesday)

	store.seedAccount(&models.Account{MemberID: 1})

	require.NoError(t, svc.AssignMissions(context.Background()))
	assert.NotNil(t, store.account(1).DailyMission)
	assert.Nil(t, store.account(1).WeeklyMission)
}

func TestExpireVIPs(t *testing.T) {
	factory, store, bus := newFakeFactory()
	svc := newTestMissions(factory, config.DefaultEconomy(), testNow)

	store.seedAccount(&models.Account{MemberID: 1, VIP: &models.VIPStatus{ExpiresAt: testNow.Add(-time.Hour)}})
	store.seedAccount(&models.Account{MemberID: 2, VIP: &models.VIPStatus{ExpiresAt: testNow.Add(time.Hour)}})

	require.NoError(t, svc.ExpireVIPs(context.Background()))

	assert.Nil(t, store.account(1).VIP)
	assert.NotNil(t, store.account(2).VIP)
	assert.Len(t, bus.ofType(events.EventTypeVIPExpired), 1)
}

func TestToggleOptIn(t *testing.T) {
	factory, store, _ := newFakeFactory()
	svc := newTestMissions(factory, config.DefaultEconomy(), testNow)

	store.seedAccount(&models.Account{MemberID: 1, MissionsOptIn: true})

	optIn, err := svc.ToggleOptIn(context.Background(), 1)
	require.NoError(t, err)
	assert.False(t, optIn)
	assert.False(t, store.account(1).MissionsOptIn)

	optIn, err = svc.ToggleOptIn(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, optIn)
}
