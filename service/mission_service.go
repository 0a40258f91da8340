package service

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"guildhall/config"
	"guildhall/events"
	"guildhall/models"

	log "github.com/sirupsen/logrus"
)

type missionService struct {
	uowFactory  UnitOfWorkFactory
	eco         *config.Economy
	progression ProgressionService
	clock       func() time.Time
	randInt64   func(min, max int64) int64
}

// NewMissionService creates a new mission service
func NewMissionService(uowFactory UnitOfWorkFactory, eco *config.Economy, progression ProgressionService) MissionService {
	return &missionService{
		uowFactory:  uowFactory,
		eco:         eco,
		progression: progression,
		clock:       time.Now,
		randInt64: func(min, max int64) int64 {
			return min + rand.Int63n(max-min+1)
		},
	}
}

// UpdateProgress advances any current mission matching the id. A mission
// reaching its target is marked completed in the transaction; the XP
// reward is granted afterwards so it flows through the progression engine.
func (s *missionService) UpdateProgress(ctx context.Context, memberID int64, missionID string, amount int64) error {
	if !s.eco.Missions.Enabled || amount <= 0 {
		return nil
	}

	var completed []models.Mission
	err := s.uowFactory.Execute(ctx, func(ctx context.Context, uow UnitOfWork) error {
		completed = nil

		account, err := uow.AccountRepository().GetOrCreate(ctx, memberID)
		if err != nil {
			return err
		}

		daily, dailyDone := advanceMission(account.DailyMission, missionID, amount)
		if daily != nil {
			if err := uow.AccountRepository().SetDailyMission(ctx, memberID, daily); err != nil {
				return err
			}
			if dailyDone {
				completed = append(completed, *daily)
			}
		}

		weekly, weeklyDone := advanceMission(account.WeeklyMission, missionID, amount)
		if weekly != nil {
			if err := uow.AccountRepository().SetWeeklyMission(ctx, memberID, weekly); err != nil {
				return err
			}
			if weeklyDone {
				completed = append(completed, *weekly)
			}
		}

		for _, m := range completed {
			uow.EventBus().Publish(events.MissionCompletedEvent{
				MemberID: memberID,
				Mission:  m,
				NotifyDM: account.MissionsOptIn,
			})
		}
		return nil
	})
	if err != nil {
		return err
	}

	for _, m := range completed {
		if _, err := s.progression.GrantXP(ctx, memberID, DirectAmount(m.RewardXP), fmt.Sprintf("mission complete: %s", m.Description)); err != nil {
			return err
		}
	}
	return nil
}

// advanceMission returns the updated mission record and whether this call
// completed it. A nil, mismatched or already completed mission returns nil.
func advanceMission(m *models.Mission, missionID string, amount int64) (*models.Mission, bool) {
	if m == nil || m.Completed || m.ID != missionID {
		return nil, false
	}
	updated := *m
	updated.Progress += amount
	if updated.Progress >= updated.Target {
		updated.Progress = updated.Target
		updated.Completed = true
		return &updated, true
	}
	return &updated, false
}

// AssignMissions rolls a fresh daily mission for every account, plus a
// weekly one at the start of the week. Safe to re-run within a day: each
// run simply re-rolls.
func (s *missionService) AssignMissions(ctx context.Context) error {
	if !s.eco.Missions.Enabled {
		return nil
	}

	var memberIDs []int64
	err := s.uowFactory.Execute(ctx, func(ctx context.Context, uow UnitOfWork) error {
		var err error
		memberIDs, err = uow.AccountRepository().AllMemberIDs(ctx)
		return err
	})
	if err != nil {
		return err
	}

	assignWeekly := s.clock().Weekday() == time.Monday
	for _, memberID := range memberIDs {
		memberID := memberID
		err := s.uowFactory.Execute(ctx, func(ctx context.Context, uow UnitOfWork) error {
			daily := s.rollMission("daily")
			if daily != nil {
				if err := uow.AccountRepository().SetDailyMission(ctx, memberID, daily); err != nil {
					return err
				}
			}
			if assignWeekly {
				weekly := s.rollMission("weekly")
				if weekly != nil {
					if err := uow.AccountRepository().SetWeeklyMission(ctx, memberID, weekly); err != nil {
						return err
					}
				}
			}
			return nil
		})
		if err != nil {
			log.WithFields(log.Fields{
				"memberID": memberID,
				"error":    err,
			}).Error("Failed to assign missions")
		}
	}
	return nil
}

// rollMission draws a template of the given type and rolls its target and
// reward from the configured ranges.
func (s *missionService) rollMission(missionType string) *models.Mission {
	var candidates []config.MissionTemplate
	for _, t := range s.eco.Missions.Templates {
		if t.Type == missionType {
			candidates = append(candidates, t)
		}
	}
	if len(candidates) == 0 {
		return nil
	}

	template := candidates[rand.Intn(len(candidates))]
	target := s.randInt64(template.TargetMin, template.TargetMax)
	reward := s.randInt64(template.RewardXPMin, template.RewardXPMax)
	return &models.Mission{
		ID:          template.ID,
		Description: fmt.Sprintf(template.Description, target),
		Target:      target,
		RewardXP:    reward,
	}
}

// ExpireVIPs clears every lapsed subscription
func (s *missionService) ExpireVIPs(ctx context.Context) error {
	now := s.clock()

	var expired []int64
	err := s.uowFactory.Execute(ctx, func(ctx context.Context, uow UnitOfWork) error {
		var err error
		expired, err = uow.AccountRepository().MemberIDsWithExpiredVIP(ctx, now)
		return err
	})
	if err != nil {
		return err
	}

	for _, memberID := range expired {
		memberID := memberID
		err := s.uowFactory.Execute(ctx, func(ctx context.Context, uow UnitOfWork) error {
			if err := uow.AccountRepository().SetVIP(ctx, memberID, nil); err != nil {
				return err
			}
			uow.EventBus().Publish(events.VIPExpiredEvent{MemberID: memberID})
			return nil
		})
		if err != nil {
			return err
		}

		log.WithFields(log.Fields{"memberID": memberID}).Info("VIP subscription expired")
	}
	return nil
}

// ToggleOptIn flips mission DM notifications and returns the new state
func (s *missionService) ToggleOptIn(ctx context.Context, memberID int64) (bool, error) {
	var optIn bool
	err := s.uowFactory.Execute(ctx, func(ctx context.Context, uow UnitOfWork) error {
		account, err := uow.AccountRepository().GetOrCreate(ctx, memberID)
		if err != nil {
			return err
		}
		optIn = !account.MissionsOptIn
		return uow.AccountRepository().SetMissionsOptIn(ctx, memberID, optIn)
	})
	return optIn, err
}
