package service

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"guildhall/config"
	"guildhall/events"
	"guildhall/models"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

type progressionService struct {
	uowFactory UnitOfWorkFactory
	eco        *config.Economy
	applier    *TxApplier
	clock      func() time.Time
	randInt    func(min, max int) int

	mu               sync.RWMutex
	eventMultipliers map[string]float64
}

// NewProgressionService creates a new progression service
func NewProgressionService(uowFactory UnitOfWorkFactory, eco *config.Economy) ProgressionService {
	return &progressionService{
		uowFactory: uowFactory,
		eco:        eco,
		applier:    NewTxApplier(eco.MaxLogEntries),
		clock:      time.Now,
		randInt: func(min, max int) int {
			return min + rand.Intn(max-min+1)
		},
		eventMultipliers: make(map[string]float64),
	}
}

// GrantXP resolves the XP source, stacks boosts and applies the grant. A
// message grant inside the anti-farm cooldown returns Granted false and
// changes nothing.
func (s *progressionService) GrantXP(ctx context.Context, memberID int64, source XPSource, reason string) (*XPGrantResult, error) {
	if !s.eco.XP.Enabled {
		return &XPGrantResult{}, nil
	}

	var result *XPGrantResult
	err := s.uowFactory.Execute(ctx, func(ctx context.Context, uow UnitOfWork) error {
		result = &XPGrantResult{}

		account, err := uow.AccountRepository().GetOrCreate(ctx, memberID)
		if err != nil {
			return err
		}

		now := s.clock()
		baseXP := source.amount
		if source.fromMessage {
			// The farm gate blocks chat XP only; purchase and
			// achievement grants still land.
			if account.XPGated {
				return nil
			}
			cooldown := time.Duration(s.eco.XP.AntiFarmCooldownSeconds) * time.Second
			if now.Sub(account.LastMessageAt) < cooldown {
				return nil
			}
			baseXP = int64(s.randInt(s.eco.XP.PerMessageMin, s.eco.XP.PerMessageMax))

			if err := uow.AccountRepository().SetLastMessageAt(ctx, memberID, now); err != nil {
				return err
			}
			if _, err := s.applier.Apply(ctx, uow, memberID, models.FieldMessageCount, decimal.NewFromInt(1), "message activity"); err != nil {
				return err
			}
		}
		if baseXP <= 0 {
			return nil
		}

		finalXP := int64(math.Floor(float64(baseXP) * s.stackedMultiplier(account, now)))
		if finalXP <= 0 {
			return nil
		}

		grant, err := s.applyXP(ctx, uow, memberID, finalXP, reason, false)
		if err != nil {
			return err
		}
		result = grant
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.Granted {
		log.WithFields(log.Fields{
			"memberID": memberID,
			"xp":       result.XP,
			"reason":   reason,
		}).Debug("Granted XP")
	}
	return result, nil
}

// stackedMultiplier resolves the XP boost stack: the best matching VIP tier
// plus each active booster's multiplier above 1.0, additive over a base of
// 1.0, then scaled by the global event multiplier.
func (s *progressionService) stackedMultiplier(account *models.Account, now time.Time) float64 {
	boosts := 0.0

	if account.VIP.Active(now) {
		best := 0.0
		for _, tier := range s.eco.VIP.XPBoostTiers {
			if account.VIP.ConsecutiveMonths >= tier.ConsecutiveMonths && tier.Boost > best {
				best = tier.Boost
			}
		}
		boosts += best
	}

	for id, booster := range account.ActiveBoosters {
		if models.IsXPBooster(id) && booster.Active(now) {
			boosts += booster.Multiplier - 1.0
		}
	}

	return (1.0 + boosts) * s.eventMultiplier()
}

func (s *progressionService) eventMultiplier() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	mult := 1.0
	for _, m := range s.eventMultipliers {
		mult *= m
	}
	return mult
}

// SetEventMultiplier activates a named global XP event
func (s *progressionService) SetEventMultiplier(name string, multiplier float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.eventMultipliers[name] = multiplier

	log.WithFields(log.Fields{
		"event":      name,
		"multiplier": multiplier,
	}).Info("XP event multiplier set")
}

// ClearEventMultiplier ends a named global XP event
func (s *progressionService) ClearEventMultiplier(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.eventMultipliers, name)
}

// applyXP writes an already-boosted XP amount to the account and its guild,
// then runs the level-up and achievement checks. fromAchievement guards the
// achievement->XP->achievement chain from re-entering itself.
func (s *progressionService) applyXP(ctx context.Context, uow UnitOfWork, memberID int64, amount int64, reason string, fromAchievement bool) (*XPGrantResult, error) {
	delta := decimal.NewFromInt(amount)
	account, err := s.applier.Apply(ctx, uow, memberID, models.FieldXP, delta, reason)
	if err != nil {
		return nil, err
	}
	if _, err := s.applier.Apply(ctx, uow, memberID, models.FieldWeeklyXP, delta, reason); err != nil {
		return nil, err
	}

	if account.GuildID != nil {
		// A deleted guild is not an error for an XP grant.
		if _, err := uow.GuildRepository().IncrementWeeklyXP(ctx, *account.GuildID, amount); err != nil {
			return nil, err
		}
	}

	uow.EventBus().Publish(events.XPGrantedEvent{
		MemberID: memberID,
		Amount:   amount,
		Reason:   reason,
	})

	leveled, newLevel, err := s.checkLevelUpInTx(ctx, uow, account)
	if err != nil {
		return nil, err
	}

	if !fromAchievement {
		if err := s.checkAchievementsInTx(ctx, uow, memberID); err != nil {
			return nil, err
		}
	}

	return &XPGrantResult{
		Granted:   true,
		XP:        amount,
		LeveledUp: leveled,
		NewLevel:  newLevel,
	}, nil
}

// levelForXP walks the level thresholds upward from the current level.
// The threshold for leaving level n is floor(baseXP * multiplier^n).
func (s *progressionService) levelForXP(xp int64, currentLevel int) int {
	level := currentLevel
	for xp >= s.levelThreshold(level) {
		level++
	}
	return level
}

func (s *progressionService) levelThreshold(level int) int64 {
	return int64(math.Floor(float64(s.eco.XP.LevelBaseXP) * math.Pow(s.eco.XP.LevelMultiplier, float64(level))))
}

// CheckLevelUp recomputes the level from XP. Idempotent: without an
// intervening XP grant a second call never changes the level.
func (s *progressionService) CheckLevelUp(ctx context.Context, memberID int64) (bool, int, error) {
	var leveled bool
	var newLevel int
	err := s.uowFactory.Execute(ctx, func(ctx context.Context, uow UnitOfWork) error {
		account, err := uow.AccountRepository().GetOrCreate(ctx, memberID)
		if err != nil {
			return err
		}
		leveled, newLevel, err = s.checkLevelUpInTx(ctx, uow, account)
		return err
	})
	return leveled, newLevel, err
}

func (s *progressionService) checkLevelUpInTx(ctx context.Context, uow UnitOfWork, account *models.Account) (bool, int, error) {
	newLevel := s.levelForXP(account.XP, account.Level)
	if newLevel == account.Level {
		return false, account.Level, nil
	}

	delta := decimal.NewFromInt(int64(newLevel - account.Level))
	if _, err := s.applier.Apply(ctx, uow, account.MemberID, models.FieldLevel, delta, fmt.Sprintf("level up to %d", newLevel)); err != nil {
		return false, 0, err
	}

	uow.EventBus().Publish(events.LevelUpEvent{
		MemberID: account.MemberID,
		OldLevel: account.Level,
		NewLevel: newLevel,
	})

	if err := s.checkReferralMilestone(ctx, uow, account, newLevel); err != nil {
		return false, 0, err
	}

	return true, newLevel, nil
}

// checkReferralMilestone pays the referrer's bonus when the referred member
// reaches the milestone level within the reward window. The one-shot flag
// makes the payout happen at most once per account.
func (s *progressionService) checkReferralMilestone(ctx context.Context, uow UnitOfWork, account *models.Account, newLevel int) error {
	if account.Referrer == nil || account.ReferralMilestoneRewarded {
		return nil
	}
	if newLevel < s.eco.XP.ReferralMilestoneLevel {
		return nil
	}
	window := time.Duration(s.eco.XP.ReferralMilestoneDays) * 24 * time.Hour
	if s.clock().Sub(account.JoinedAt) > window {
		return nil
	}

	referrerID := *account.Referrer
	bonus := decimal.NewFromInt(s.eco.XP.ReferralMilestoneXP)
	reason := fmt.Sprintf("referral milestone: member %d reached level %d", account.MemberID, newLevel)

	if _, err := s.applier.Apply(ctx, uow, referrerID, models.FieldXP, bonus, reason); err != nil {
		return err
	}
	if _, err := s.applier.Apply(ctx, uow, referrerID, models.FieldWeeklyXP, bonus, reason); err != nil {
		return err
	}
	if err := uow.AccountRepository().SetReferralMilestoneRewarded(ctx, account.MemberID); err != nil {
		return err
	}

	uow.EventBus().Publish(events.ReferralMilestoneEvent{
		ReferrerID:   referrerID,
		ReferralID:   account.MemberID,
		ReferralName: fmt.Sprintf("member %d", account.MemberID),
		BonusXP:      s.eco.XP.ReferralMilestoneXP,
	})
	return nil
}

// CheckAchievements unlocks every achievement whose trigger stat has
// reached its threshold
func (s *progressionService) CheckAchievements(ctx context.Context, memberID int64) error {
	return s.uowFactory.Execute(ctx, func(ctx context.Context, uow UnitOfWork) error {
		return s.checkAchievementsInTx(ctx, uow, memberID)
	})
}

func (s *progressionService) checkAchievementsInTx(ctx context.Context, uow UnitOfWork, memberID int64) error {
	account, err := uow.AccountRepository().GetOrCreate(ctx, memberID)
	if err != nil {
		return err
	}
	now := s.clock()

	for _, achievement := range s.eco.Achievements {
		if account.HasAchievement(achievement.ID) {
			continue
		}
		stat, ok := account.FieldValue(achievement.Trigger.Stat)
		if !ok || stat.LessThan(decimal.NewFromInt(achievement.Trigger.Value)) {
			continue
		}

		if err := uow.AccountRepository().AddAchievement(ctx, memberID, achievement.ID); err != nil {
			return err
		}

		uow.EventBus().Publish(events.AchievementUnlockedEvent{
			MemberID:    memberID,
			Achievement: achievement,
		})

		if achievement.RewardXP > 0 {
			reward := int64(math.Floor(float64(achievement.RewardXP) * s.stackedMultiplier(account, now)))
			if reward > 0 {
				reason := fmt.Sprintf("achievement unlocked: %s", achievement.Name)
				if _, err := s.applyXP(ctx, uow, memberID, reward, reason, true); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// PurchaseXP exchanges store credit for XP at the configured rate
func (s *progressionService) PurchaseXP(ctx context.Context, memberID int64, credits decimal.Decimal) (int64, error) {
	if !credits.IsPositive() {
		return 0, ErrInvalidAmount
	}

	xpGained := credits.Div(decimal.NewFromFloat(s.eco.XP.CostPerXPInCredits)).IntPart()
	if xpGained <= 0 {
		return 0, ErrInvalidAmount
	}

	err := s.uowFactory.Execute(ctx, func(ctx context.Context, uow UnitOfWork) error {
		if _, err := s.applier.Apply(ctx, uow, memberID, models.FieldStoreCredit, credits.Neg(), fmt.Sprintf("purchased %d XP", xpGained)); err != nil {
			return err
		}
		_, err := s.applyXP(ctx, uow, memberID, xpGained, "XP purchase", false)
		return err
	})
	if err != nil {
		return 0, err
	}
	return xpGained, nil
}
