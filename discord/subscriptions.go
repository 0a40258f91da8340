package discord

import (
	"context"
	"fmt"
	"strings"

	"guildhall/config"
	"guildhall/events"
)

// Subscribe wires economy events to Discord notifications. Handlers run
// after the originating transaction commits; none of them can affect the
// committed state.
func Subscribe(bus *events.Bus, notifier *Notifier, announcer *Announcer, cfg *config.Config) {
	bus.Subscribe(events.EventTypeLevelUp, func(ctx context.Context, e events.Event) {
		ev := e.(events.LevelUpEvent)
		announcer.Announce(cfg.LevelUpChannelID, fmt.Sprintf("<@%d> reached level %d!", ev.MemberID, ev.NewLevel))
	})

	bus.Subscribe(events.EventTypeAchievementUnlocked, func(ctx context.Context, e events.Event) {
		ev := e.(events.AchievementUnlockedEvent)
		notifier.DirectMessage(ctx, ev.MemberID, fmt.Sprintf("Achievement unlocked: **%s** (+%d XP)", ev.Achievement.Name, ev.Achievement.RewardXP))
	})

	bus.Subscribe(events.EventTypeCommissionEarned, func(ctx context.Context, e events.Event) {
		ev := e.(events.CommissionEarnedEvent)
		kind := "sale"
		if ev.FromCashout {
			kind = "cashout"
		}
		notifier.DirectMessage(ctx, ev.ReferrerID, fmt.Sprintf("You earned a %s commission of %s credits from %s.", kind, ev.Amount.StringFixed(2), ev.ReferralName))
	})

	bus.Subscribe(events.EventTypeCashoutResolved, func(ctx context.Context, e events.Event) {
		ev := e.(events.CashoutResolvedEvent)
		if ev.Approved {
			notifier.DirectMessage(ctx, ev.MemberID, fmt.Sprintf("Your cashout of %s credits was approved. %s is on its way to `%s`.", ev.Credits.StringFixed(2), ev.CurrencyToSend.StringFixed(2), ev.PayoutAddress))
		} else {
			notifier.DirectMessage(ctx, ev.MemberID, fmt.Sprintf("Your cashout of %s credits was denied. The credits have been refunded.", ev.Credits.StringFixed(2)))
		}
	})

	bus.Subscribe(events.EventTypeLotteryDraw, func(ctx context.Context, e events.Event) {
		ev := e.(events.LotteryDrawEvent)
		announcer.Announce(cfg.LotteryChannelID, fmt.Sprintf("The lottery pot goes to **%s**! Prize: %s credits.", ev.WinnerName, ev.Prize.StringFixed(2)))
	})

	bus.Subscribe(events.EventTypeWeeklyLeaderboard, func(ctx context.Context, e events.Event) {
		ev := e.(events.WeeklyLeaderboardEvent)
		var b strings.Builder
		b.WriteString("**Weekly XP leaderboard**\n")
		for _, entry := range ev.Entries {
			fmt.Fprintf(&b, "%d. <@%d> — %d XP\n", entry.Rank, entry.MemberID, entry.WeeklyXP)
		}
		announcer.Announce(cfg.LeaderboardChannelID, b.String())
	})

	bus.Subscribe(events.EventTypeGuildLeaderboard, func(ctx context.Context, e events.Event) {
		ev := e.(events.GuildLeaderboardEvent)
		var b strings.Builder
		b.WriteString("**Weekly guild leaderboard**\n")
		for _, entry := range ev.Entries {
			fmt.Fprintf(&b, "%d. %s — %d XP\n", entry.Rank, entry.Name, entry.WeeklyXP)
		}
		announcer.Announce(cfg.GuildLeaderboardChannelID, b.String())
	})

	bus.Subscribe(events.EventTypeMissionCompleted, func(ctx context.Context, e events.Event) {
		ev := e.(events.MissionCompletedEvent)
		if !ev.NotifyDM {
			return
		}
		notifier.DirectMessage(ctx, ev.MemberID, fmt.Sprintf("Mission complete: %s (+%d XP)", ev.Mission.Description, ev.Mission.RewardXP))
	})

	bus.Subscribe(events.EventTypeVIPExpired, func(ctx context.Context, e events.Event) {
		ev := e.(events.VIPExpiredEvent)
		notifier.DirectMessage(ctx, ev.MemberID, "Your VIP subscription has expired.")
	})

	bus.Subscribe(events.EventTypeWarningIssued, func(ctx context.Context, e events.Event) {
		ev := e.(events.WarningIssuedEvent)
		if ev.ThresholdReached {
			announcer.Announce(cfg.ModAlertsChannelID, fmt.Sprintf("<@%d> reached %d warnings (%s) and needs review.", ev.MemberID, ev.Count, ev.Reason))
		}
	})

	bus.Subscribe(events.EventTypeReferralMilestone, func(ctx context.Context, e events.Event) {
		ev := e.(events.ReferralMilestoneEvent)
		notifier.DirectMessage(ctx, ev.ReferrerID, fmt.Sprintf("%s hit the referral milestone — you earned %d bonus XP!", ev.ReferralName, ev.BonusXP))
	})

	bus.Subscribe(events.EventTypePromoCreated, func(ctx context.Context, e events.Event) {
		ev := e.(events.PromoCreatedEvent)
		announcer.Announce(cfg.PromoChannelID, fmt.Sprintf("**Flash promo: %s** — %s\nPrice: %s credits", ev.Promo.Name, ev.Promo.Description, ev.Promo.Price.StringFixed(2)))
	})
}
