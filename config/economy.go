package config

import (
	"encoding/json"
	"fmt"
	"os"

	"guildhall/models"

	"github.com/shopspring/decimal"
)

// XPConfig tunes the progression engine.
type XPConfig struct {
	Enabled                 bool    `json:"enabled"`
	PerMessageMin           int     `json:"per_message_min"`
	PerMessageMax           int     `json:"per_message_max"`
	AntiFarmCooldownSeconds int     `json:"anti_farm_cooldown_seconds"`
	AntiFarmMinWords        int     `json:"anti_farm_min_words"`
	LevelBaseXP             int64   `json:"level_base_xp"`
	LevelMultiplier         float64 `json:"level_multiplier"`
	PerCurrencySpent        int64   `json:"per_currency_spent"`
	CostPerXPInCredits      float64 `json:"cost_per_xp_in_credits"`
	VerifiedInviteXP        int64   `json:"verified_invite_xp"`
	ReferralMilestoneLevel  int     `json:"referral_milestone_level"`
	ReferralMilestoneDays   int     `json:"referral_milestone_days"`
	ReferralMilestoneXP     int64   `json:"referral_milestone_xp"`
}

// VIPBoostTier maps consecutive subscription months to a boost. Only the
// best tier the member qualifies for applies, never a sum of tiers.
type VIPBoostTier struct {
	ConsecutiveMonths int     `json:"consecutive_months"`
	Boost             float64 `json:"boost"`
}

// VIPConfig tunes the premium subscription.
type VIPConfig struct {
	DurationDays         int            `json:"duration_days"`
	XPBoostTiers         []VIPBoostTier `json:"xp_boost_tiers"`
	CommissionBonusTiers []VIPBoostTier `json:"commission_bonus_tiers"`
}

// CommissionTier is a level-gated base affiliate rate.
type CommissionTier struct {
	Level int     `json:"level"`
	Rate  float64 `json:"rate"`
}

// AffiliateConfig tunes the commission calculator.
type AffiliateConfig struct {
	CommissionTiers      []CommissionTier `json:"commission_tiers"`
	PermanentLoyaltyRate float64          `json:"permanent_loyalty_rate"`
	CashoutBaseRate      float64          `json:"cashout_base_rate"`
	CashoutVIPRate       float64          `json:"cashout_vip_rate"`
}

// WithdrawalThreshold is a level-gated minimum cashout amount.
type WithdrawalThreshold struct {
	Level     int     `json:"level"`
	Threshold float64 `json:"threshold"`
}

// CashoutConfig tunes withdrawal eligibility.
type CashoutConfig struct {
	MinimumLevel          int                   `json:"minimum_level"`
	MinimumAccountAgeDays int                   `json:"minimum_account_age_days"`
	Thresholds            []WithdrawalThreshold `json:"thresholds"`
	FallbackThreshold     float64               `json:"fallback_threshold"`
	CreditToCurrencyRate  float64               `json:"credit_to_currency_rate"`
}

// GuildRankReward is the bonus written to every member of a top-ranked
// guild for the following week.
type GuildRankReward struct {
	CommissionRate        float64 `json:"commission_rate,omitempty"`
	CommissionBoost       float64 `json:"commission_boost,omitempty"`
	MaxCommissionRate     float64 `json:"max_commission_rate,omitempty"`
	CashoutCommissionRate float64 `json:"cashout_commission_rate,omitempty"`
}

// GuildConfig tunes the guild system.
type GuildConfig struct {
	Enabled       bool                                       `json:"enabled"`
	MaxMembers    int                                        `json:"max_members"`
	CreationCost  float64                                    `json:"creation_cost"`
	WeeklyRewards map[models.GuildBonusType]GuildRankReward `json:"weekly_rewards"`
}

// LotteryConfig tunes the credit lottery.
type LotteryConfig struct {
	Enabled        bool    `json:"enabled"`
	TicketCost     float64 `json:"ticket_cost"`
	PlayersPerDraw int     `json:"players_per_draw"`
	WinnerPrize    float64 `json:"winner_prize"`
}

// MissionTemplate is one assignable mission. Target and reward are drawn
// uniformly from their ranges at assignment time.
type MissionTemplate struct {
	ID          string `json:"id"`
	Type        string `json:"type"` // "daily" or "weekly"
	Description string `json:"description"`
	TargetMin   int64  `json:"target_min"`
	TargetMax   int64  `json:"target_max"`
	RewardXPMin int64  `json:"reward_xp_min"`
	RewardXPMax int64  `json:"reward_xp_max"`
}

// MissionConfig tunes the mission system.
type MissionConfig struct {
	Enabled      bool              `json:"enabled"`
	OptInDefault bool              `json:"opt_in_default"`
	Templates    []MissionTemplate `json:"templates"`
}

// ShopItem is a credit-shop entry that activates a booster.
type ShopItem struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	Cost          float64 `json:"cost"`
	BoosterID     string  `json:"booster_id"`
	DurationHours int     `json:"duration_hours"`
	Multiplier    float64 `json:"multiplier,omitempty"`
	Bonus         float64 `json:"bonus,omitempty"`
}

// Economy bundles every gamification tunable. Constructed from defaults,
// optionally overridden by a JSON file, and injected into the services.
type Economy struct {
	XP               XPConfig             `json:"xp"`
	VIP              VIPConfig            `json:"vip"`
	Affiliate        AffiliateConfig      `json:"affiliate"`
	Cashout          CashoutConfig        `json:"cashout"`
	Guilds           GuildConfig          `json:"guilds"`
	Lottery          LotteryConfig        `json:"lottery"`
	Missions         MissionConfig        `json:"missions"`
	ShopItems        []ShopItem           `json:"shop_items"`
	Products         []models.Product     `json:"products"`
	Achievements     []models.Achievement `json:"achievements"`
	MaxLogEntries    int                  `json:"max_log_entries"`
	WarningThreshold int                  `json:"warning_threshold"`
}

// DefaultEconomy returns the stock tunables.
func DefaultEconomy() *Economy {
	return &Economy{
		XP: XPConfig{
			Enabled:                 true,
			PerMessageMin:           10,
			PerMessageMax:           20,
			AntiFarmCooldownSeconds: 60,
			AntiFarmMinWords:        3,
			LevelBaseXP:             150,
			LevelMultiplier:         1.6,
			PerCurrencySpent:        20,
			CostPerXPInCredits:      0.01,
			VerifiedInviteXP:        100,
			ReferralMilestoneLevel:  5,
			ReferralMilestoneDays:   7,
			ReferralMilestoneXP:     2000,
		},
		VIP: VIPConfig{
			DurationDays: 30,
			XPBoostTiers: []VIPBoostTier{
				{ConsecutiveMonths: 1, Boost: 0.10},
				{ConsecutiveMonths: 3, Boost: 0.20},
				{ConsecutiveMonths: 6, Boost: 0.35},
			},
			CommissionBonusTiers: []VIPBoostTier{
				{ConsecutiveMonths: 1, Boost: 0.02},
				{ConsecutiveMonths: 3, Boost: 0.05},
				{ConsecutiveMonths: 6, Boost: 0.10},
			},
		},
		Affiliate: AffiliateConfig{
			CommissionTiers: []CommissionTier{
				{Level: 1, Rate: 0.30},
				{Level: 5, Rate: 0.40},
				{Level: 10, Rate: 0.50},
				{Level: 20, Rate: 0.60},
			},
			PermanentLoyaltyRate: 0.05,
			CashoutBaseRate:      0.05,
			CashoutVIPRate:       0.08,
		},
		Cashout: CashoutConfig{
			MinimumLevel:          5,
			MinimumAccountAgeDays: 14,
			Thresholds: []WithdrawalThreshold{
				{Level: 5, Threshold: 20},
				{Level: 10, Threshold: 10},
				{Level: 20, Threshold: 5},
			},
			FallbackThreshold:    1000,
			CreditToCurrencyRate: 1.0,
		},
		Guilds: GuildConfig{
			Enabled:      true,
			MaxMembers:   10,
			CreationCost: 3,
			WeeklyRewards: map[models.GuildBonusType]GuildRankReward{
				models.GuildBonusTop1: {CommissionRate: 0.90, CashoutCommissionRate: 0.10},
				models.GuildBonusTop2: {CommissionBoost: 0.10, MaxCommissionRate: 0.85, CashoutCommissionRate: 0.08},
				models.GuildBonusTop3: {CommissionBoost: 0.05, MaxCommissionRate: 0.80, CashoutCommissionRate: 0.06},
			},
		},
		Lottery: LotteryConfig{
			Enabled:        true,
			TicketCost:     0.25,
			PlayersPerDraw: 3,
			WinnerPrize:    0.70,
		},
		Missions: MissionConfig{
			Enabled:      true,
			OptInDefault: true,
			Templates: []MissionTemplate{
				{ID: "send_message", Type: "daily", Description: "Send %d messages", TargetMin: 15, TargetMax: 30, RewardXPMin: 50, RewardXPMax: 100},
				{ID: "send_message", Type: "weekly", Description: "Send %d messages this week", TargetMin: 100, TargetMax: 200, RewardXPMin: 300, RewardXPMax: 500},
			},
		},
		ShopItems: []ShopItem{
			{ID: "xp_booster_25_24h", Name: "XP Booster +25% (24h)", Cost: 1.5, BoosterID: "xp_booster_1", DurationHours: 24, Multiplier: 1.25},
			{ID: "commission_booster_10_3d", Name: "Commission Booster +10% (3d)", Cost: 2.5, BoosterID: "commission_booster_1", DurationHours: 72, Bonus: 0.10},
		},
		Products: []models.Product{
			{
				ID:           "vip_monthly",
				Name:         "VIP Monthly",
				Type:         models.ProductTypeSubscription,
				Price:        decimal.NewFromInt(10),
				PurchaseCost: decimal.NewFromInt(2),
				MarginType:   models.MarginNet,
				Currency:     "EUR",
			},
			{
				ID:         "starter_pack",
				Name:       "Starter Pack",
				Type:       models.ProductTypeProduct,
				Price:      decimal.NewFromInt(25),
				MarginType: models.MarginTotal,
				Currency:   "EUR",
				Options: []models.ProductOption{
					{Name: "basic", Price: decimal.NewFromInt(25), PurchaseCost: decimal.NewFromInt(5)},
					{Name: "deluxe", Price: decimal.NewFromInt(40), PurchaseCost: decimal.NewFromInt(8)},
				},
			},
		},
		Achievements: []models.Achievement{
			{ID: "first_words", Name: "First Words", Trigger: models.AchievementTrigger{Stat: models.FieldMessageCount, Value: 1}, RewardXP: 25},
			{ID: "chatterbox", Name: "Chatterbox", Trigger: models.AchievementTrigger{Stat: models.FieldMessageCount, Value: 500}, RewardXP: 250},
			{ID: "first_sale", Name: "Closer", Trigger: models.AchievementTrigger{Stat: models.FieldAffiliateSaleCount, Value: 1}, RewardXP: 100},
			{ID: "first_cashout", Name: "Payday", Trigger: models.AchievementTrigger{Stat: models.FieldCashoutCount, Value: 1}, RewardXP: 150},
			{ID: "recruiter", Name: "Recruiter", Trigger: models.AchievementTrigger{Stat: models.FieldReferralCount, Value: 5}, RewardXP: 500},
		},
		MaxLogEntries:    50,
		WarningThreshold: 3,
	}
}

// LoadEconomy returns the defaults overridden by the JSON file at path.
// An empty path returns the defaults unchanged.
func LoadEconomy(path string) (*Economy, error) {
	eco := DefaultEconomy()
	if path == "" {
		return eco, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read economy config %s: %w", path, err)
	}
	if err := json.Unmarshal(data, eco); err != nil {
		return nil, fmt.Errorf("failed to parse economy config %s: %w", path, err)
	}
	return eco, nil
}
