package service

import (
	"context"
	"fmt"

	"guildhall/config"
	"guildhall/events"
	"guildhall/models"

	log "github.com/sirupsen/logrus"
)

const leaderboardSize = 3

type weeklyService struct {
	uowFactory UnitOfWorkFactory
	eco        *config.Economy
}

// NewWeeklyService creates a new weekly cycle service
func NewWeeklyService(uowFactory UnitOfWorkFactory, eco *config.Economy) WeeklyService {
	return &weeklyService{
		uowFactory: uowFactory,
		eco:        eco,
	}
}

// RunWeeklyCycle runs the weekly batch: clear last week's guild bonuses,
// announce the top members and guilds, grant the new rank bonuses, then
// zero the weekly counters. Each phase is its own transaction; a partial
// run is repaired by running the job again because every phase is
// idempotent. Reads between the clear and the re-grant may observe a
// momentarily cleared bonus, which is accepted.
func (s *weeklyService) RunWeeklyCycle(ctx context.Context) error {
	log.Info("Starting weekly cycle")

	if err := s.clearGuildBonuses(ctx); err != nil {
		return fmt.Errorf("weekly cycle: clear guild bonuses: %w", err)
	}
	if err := s.announceTopMembers(ctx); err != nil {
		return fmt.Errorf("weekly cycle: member leaderboard: %w", err)
	}
	if err := s.grantGuildRankBonuses(ctx); err != nil {
		return fmt.Errorf("weekly cycle: guild rank bonuses: %w", err)
	}
	if err := s.resetAccountCounters(ctx); err != nil {
		return fmt.Errorf("weekly cycle: reset account counters: %w", err)
	}
	if err := s.resetGuildCounters(ctx); err != nil {
		return fmt.Errorf("weekly cycle: reset guild counters: %w", err)
	}

	log.Info("Weekly cycle complete")
	return nil
}

func (s *weeklyService) clearGuildBonuses(ctx context.Context) error {
	return s.uowFactory.Execute(ctx, func(ctx context.Context, uow UnitOfWork) error {
		return uow.AccountRepository().ClearAllGuildBonuses(ctx)
	})
}

func (s *weeklyService) announceTopMembers(ctx context.Context) error {
	return s.uowFactory.Execute(ctx, func(ctx context.Context, uow UnitOfWork) error {
		leaders, err := uow.AccountRepository().TopByWeeklyXP(ctx, leaderboardSize)
		if err != nil {
			return err
		}
		if len(leaders) == 0 {
			return nil
		}

		entries := make([]events.LeaderboardEntry, 0, len(leaders))
		for i, account := range leaders {
			entries = append(entries, events.LeaderboardEntry{
				Rank:     i + 1,
				MemberID: account.MemberID,
				Name:     fmt.Sprintf("member %d", account.MemberID),
				WeeklyXP: account.WeeklyXP,
			})
		}
		uow.EventBus().Publish(events.WeeklyLeaderboardEvent{Entries: entries})
		return nil
	})
}

var rankBonusTypes = []models.GuildBonusType{
	models.GuildBonusTop1,
	models.GuildBonusTop2,
	models.GuildBonusTop3,
}

func (s *weeklyService) grantGuildRankBonuses(ctx context.Context) error {
	return s.uowFactory.Execute(ctx, func(ctx context.Context, uow UnitOfWork) error {
		leaders, err := uow.GuildRepository().TopByWeeklyXP(ctx, leaderboardSize)
		if err != nil {
			return err
		}
		if len(leaders) == 0 {
			return nil
		}

		entries := make([]events.LeaderboardEntry, 0, len(leaders))
		for i, guild := range leaders {
			bonusType := rankBonusTypes[i]
			reward, ok := s.eco.Guilds.WeeklyRewards[bonusType]
			if ok {
				bonus := &models.GuildBonus{
					Type:                  bonusType,
					CommissionRate:        reward.CommissionRate,
					CommissionBoost:       reward.CommissionBoost,
					MaxCommissionRate:     reward.MaxCommissionRate,
					CashoutCommissionRate: reward.CashoutCommissionRate,
				}
				if err := uow.AccountRepository().SetGuildBonusForMembers(ctx, guild.ID, bonus); err != nil {
					return err
				}
			}

			entries = append(entries, events.LeaderboardEntry{
				Rank:     i + 1,
				MemberID: guild.OwnerID,
				Name:     guild.Name,
				WeeklyXP: guild.WeeklyXP,
			})

			log.WithFields(log.Fields{
				"guild": guild.Name,
				"rank":  i + 1,
			}).Info("Granted weekly guild rank bonus")
		}
		uow.EventBus().Publish(events.GuildLeaderboardEvent{Entries: entries})
		return nil
	})
}

func (s *weeklyService) resetAccountCounters(ctx context.Context) error {
	return s.uowFactory.Execute(ctx, func(ctx context.Context, uow UnitOfWork) error {
		return uow.AccountRepository().ResetWeeklyCounters(ctx)
	})
}

func (s *weeklyService) resetGuildCounters(ctx context.Context) error {
	return s.uowFactory.Execute(ctx, func(ctx context.Context, uow UnitOfWork) error {
		return uow.GuildRepository().ResetAllWeeklyXP(ctx)
	})
}
