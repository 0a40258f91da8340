package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Account is the per-member economy and progression record.
// Field names map 1:1 to the accounts table; the JSON tags on nested
// structures are the wire contract the UI layer reads, so renaming
// any of them is a breaking change.
type Account struct {
	MemberID                  int64                 `db:"member_id"`
	XP                        int64                 `db:"xp"`
	Level                     int                   `db:"level"`
	WeeklyXP                  int64                 `db:"weekly_xp"`
	StoreCredit               decimal.Decimal       `db:"store_credit"`
	Warnings                  int                   `db:"warnings"`
	MessageCount              int64                 `db:"message_count"`
	PurchaseCount             int64                 `db:"purchase_count"`
	PurchaseTotalValue        decimal.Decimal       `db:"purchase_total_value"`
	AffiliateSaleCount        int64                 `db:"affiliate_sale_count"`
	AffiliateEarnings         decimal.Decimal       `db:"affiliate_earnings"`
	WeeklyAffiliateEarnings   decimal.Decimal       `db:"weekly_affiliate_earnings"`
	AffiliateBooster          float64               `db:"affiliate_booster"`
	ReferralCount             int64                 `db:"referral_count"`
	CashoutCount              int64                 `db:"cashout_count"`
	Achievements              []string              `db:"achievements"`
	ActiveBoosters            map[string]Booster    `db:"active_boosters"`
	VIP                       *VIPStatus            `db:"vip"`
	PermanentAffiliateBonus   bool                  `db:"permanent_affiliate_bonus"`
	Referrer                  *int64                `db:"referrer"`
	GuildID                   *uuid.UUID            `db:"guild_id"`
	GuildBonus                *GuildBonus           `db:"guild_bonus"`
	TransactionLog            []TransactionLogEntry `db:"transaction_log"`
	LastMessageAt             time.Time             `db:"last_message_at"`
	JoinedAt                  time.Time             `db:"joined_at"`
	XPGated                   bool                  `db:"xp_gated"`
	MissionsOptIn             bool                  `db:"missions_opt_in"`
	DailyMission              *Mission              `db:"current_daily_mission"`
	WeeklyMission             *Mission              `db:"current_weekly_mission"`
	ReferralMilestoneRewarded bool                  `db:"referral_milestone_rewarded"`
	CreatedAt                 time.Time             `db:"created_at"`
	UpdatedAt                 time.Time             `db:"updated_at"`
}

// HasAchievement reports whether the achievement id is already unlocked.
func (a *Account) HasAchievement(id string) bool {
	for _, have := range a.Achievements {
		if have == id {
			return true
		}
	}
	return false
}

// InGuild reports whether the account currently belongs to a guild.
func (a *Account) InGuild() bool {
	return a.GuildID != nil
}

// Field identifies a numeric account column that the transaction applier
// may mutate. The string value doubles as the log entry field name.
type Field string

const (
	FieldXP                      Field = "xp"
	FieldLevel                   Field = "level"
	FieldWeeklyXP                Field = "weekly_xp"
	FieldStoreCredit             Field = "store_credit"
	FieldWarnings                Field = "warnings"
	FieldMessageCount            Field = "message_count"
	FieldPurchaseCount           Field = "purchase_count"
	FieldPurchaseTotalValue      Field = "purchase_total_value"
	FieldAffiliateSaleCount      Field = "affiliate_sale_count"
	FieldAffiliateEarnings       Field = "affiliate_earnings"
	FieldWeeklyAffiliateEarnings Field = "weekly_affiliate_earnings"
	FieldReferralCount           Field = "referral_count"
	FieldCashoutCount            Field = "cashout_count"
)

// IntegerValued reports whether the field is stored as an integer column.
func (f Field) IntegerValued() bool {
	switch f {
	case FieldStoreCredit, FieldPurchaseTotalValue, FieldAffiliateEarnings, FieldWeeklyAffiliateEarnings:
		return false
	}
	return true
}

// FieldValue returns the current value of an applier-mutable field.
// Unknown fields report false.
func (a *Account) FieldValue(f Field) (decimal.Decimal, bool) {
	switch f {
	case FieldXP:
		return decimal.NewFromInt(a.XP), true
	case FieldLevel:
		return decimal.NewFromInt(int64(a.Level)), true
	case FieldWeeklyXP:
		return decimal.NewFromInt(a.WeeklyXP), true
	case FieldStoreCredit:
		return a.StoreCredit, true
	case FieldWarnings:
		return decimal.NewFromInt(int64(a.Warnings)), true
	case FieldMessageCount:
		return decimal.NewFromInt(a.MessageCount), true
	case FieldPurchaseCount:
		return decimal.NewFromInt(a.PurchaseCount), true
	case FieldPurchaseTotalValue:
		return a.PurchaseTotalValue, true
	case FieldAffiliateSaleCount:
		return decimal.NewFromInt(a.AffiliateSaleCount), true
	case FieldAffiliateEarnings:
		return a.AffiliateEarnings, true
	case FieldWeeklyAffiliateEarnings:
		return a.WeeklyAffiliateEarnings, true
	case FieldReferralCount:
		return decimal.NewFromInt(a.ReferralCount), true
	case FieldCashoutCount:
		return decimal.NewFromInt(a.CashoutCount), true
	}
	return decimal.Zero, false
}

// SetFieldValue overwrites an applier-mutable field. Integer-valued fields
// truncate toward zero. Unknown fields report false.
func (a *Account) SetFieldValue(f Field, v decimal.Decimal) bool {
	switch f {
	case FieldXP:
		a.XP = v.IntPart()
	case FieldLevel:
		a.Level = int(v.IntPart())
	case FieldWeeklyXP:
		a.WeeklyXP = v.IntPart()
	case FieldStoreCredit:
		a.StoreCredit = v
	case FieldWarnings:
		a.Warnings = int(v.IntPart())
	case FieldMessageCount:
		a.MessageCount = v.IntPart()
	case FieldPurchaseCount:
		a.PurchaseCount = v.IntPart()
	case FieldPurchaseTotalValue:
		a.PurchaseTotalValue = v
	case FieldAffiliateSaleCount:
		a.AffiliateSaleCount = v.IntPart()
	case FieldAffiliateEarnings:
		a.AffiliateEarnings = v
	case FieldWeeklyAffiliateEarnings:
		a.WeeklyAffiliateEarnings = v
	case FieldReferralCount:
		a.ReferralCount = v.IntPart()
	case FieldCashoutCount:
		a.CashoutCount = v.IntPart()
	default:
		return false
	}
	return true
}

// TransactionLogEntry is one line of the bounded per-account audit log,
// kept newest first.
type TransactionLogEntry struct {
	Timestamp   time.Time       `json:"timestamp"`
	Field       Field           `json:"field"`
	Delta       decimal.Decimal `json:"delta"`
	Description string          `json:"description"`
}

// Booster is a time-limited account modifier. XP boosters carry a
// multiplier (1.25 means +25%), commission boosters carry an additive
// bonus rate. The booster id encodes its kind ("xp_booster_*",
// "commission_booster_*"), matching the shop item that sold it.
type Booster struct {
	ExpiresAt  time.Time `json:"expires_at"`
	Multiplier float64   `json:"multiplier,omitempty"`
	Bonus      float64   `json:"bonus,omitempty"`
}

// Active reports whether the booster has not yet expired.
func (b Booster) Active(now time.Time) bool {
	return b.ExpiresAt.After(now)
}

// IsXPBooster reports whether a booster id names an XP booster.
func IsXPBooster(id string) bool {
	return strings.Contains(id, "xp_booster")
}

// IsCommissionBooster reports whether a booster id names a commission booster.
func IsCommissionBooster(id string) bool {
	return strings.Contains(id, "commission_booster")
}

// VIPStatus tracks a premium subscription window.
type VIPStatus struct {
	StartsAt          time.Time `json:"starts_at"`
	ExpiresAt         time.Time `json:"expires_at"`
	ConsecutiveMonths int       `json:"consecutive_months"`
}

// Active reports whether the subscription window covers now.
func (v *VIPStatus) Active(now time.Time) bool {
	return v != nil && v.ExpiresAt.After(now)
}

// GuildBonusType identifies the weekly guild-ranking slot a bonus came from.
type GuildBonusType string

const (
	GuildBonusTop1 GuildBonusType = "top1"
	GuildBonusTop2 GuildBonusType = "top2"
	GuildBonusTop3 GuildBonusType = "top3"
)

// GuildBonus is the ephemeral rank-derived modifier written to every
// member of a top-ranked guild for the following week.
type GuildBonus struct {
	Type                  GuildBonusType `json:"type"`
	CommissionRate        float64        `json:"commission_rate,omitempty"`
	CommissionBoost       float64        `json:"commission_boost,omitempty"`
	MaxCommissionRate     float64        `json:"max_commission_rate,omitempty"`
	CashoutCommissionRate float64        `json:"cashout_commission_rate,omitempty"`
}

// Mission is an assigned daily or weekly mission with its progress.
type Mission struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	Target      int64  `json:"target"`
	Progress    int64  `json:"progress"`
	RewardXP    int64  `json:"reward_xp"`
	Completed   bool   `json:"completed"`
}
