package repository

import (
	"context"
	"fmt"
	"time"

	"guildhall/database"
	"guildhall/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// AccountRepository implements the AccountRepository interface
type AccountRepository struct {
	q queryable
}

// NewAccountRepository creates a new account repository
func NewAccountRepository(db *database.DB) *AccountRepository {
	return &AccountRepository{q: db.Pool}
}

// newAccountRepositoryWithTx creates a new account repository with a transaction
func newAccountRepositoryWithTx(tx queryable) *AccountRepository {
	return &AccountRepository{q: tx}
}

const accountColumns = `
	member_id, xp, level, weekly_xp, store_credit, warnings,
	message_count, purchase_count, purchase_total_value,
	affiliate_sale_count, affiliate_earnings, weekly_affiliate_earnings,
	affiliate_booster, referral_count, cashout_count,
	achievements, active_boosters, vip, permanent_affiliate_bonus,
	referrer, guild_id, guild_bonus, transaction_log,
	last_message_at, joined_at, xp_gated, missions_opt_in,
	current_daily_mission, current_weekly_mission,
	referral_milestone_rewarded, created_at, updated_at`

func scanAccount(row pgx.Row) (*models.Account, error) {
	var a models.Account
	err := row.Scan(
		&a.MemberID,
		&a.XP,
		&a.Level,
		&a.WeeklyXP,
		&a.StoreCredit,
		&a.Warnings,
		&a.MessageCount,
		&a.PurchaseCount,
		&a.PurchaseTotalValue,
		&a.AffiliateSaleCount,
		&a.AffiliateEarnings,
		&a.WeeklyAffiliateEarnings,
		&a.AffiliateBooster,
		&a.ReferralCount,
		&a.CashoutCount,
		&a.Achievements,
		&a.ActiveBoosters,
		&a.VIP,
		&a.PermanentAffiliateBonus,
		&a.Referrer,
		&a.GuildID,
		&a.GuildBonus,
		&a.TransactionLog,
		&a.LastMessageAt,
		&a.JoinedAt,
		&a.XPGated,
		&a.MissionsOptIn,
		&a.DailyMission,
		&a.WeeklyMission,
		&a.ReferralMilestoneRewarded,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// GetOrCreate retrieves the account, inserting the all-defaults record on
// first reference. The insert races are absorbed by ON CONFLICT, so the
// re-read always finds a row.
func (r *AccountRepository) GetOrCreate(ctx context.Context, memberID int64) (*models.Account, error) {
	insert := `
		INSERT INTO accounts (member_id)
		VALUES ($1)
		ON CONFLICT (member_id) DO NOTHING
	`
	if _, err := r.q.Exec(ctx, insert, memberID); err != nil {
		return nil, fmt.Errorf("failed to ensure account %d: %w", memberID, err)
	}

	query := `SELECT ` + accountColumns + ` FROM accounts WHERE member_id = $1`
	account, err := scanAccount(r.q.QueryRow(ctx, query, memberID))
	if err != nil {
		return nil, fmt.Errorf("failed to get account %d: %w", memberID, err)
	}
	return account, nil
}

// fieldColumns whitelists which account columns the transaction applier may
// write. Field values never reach SQL directly; anything outside this map
// is rejected before a query is built.
var fieldColumns = map[models.Field]string{
	models.FieldXP:                      "xp",
	models.FieldLevel:                   "level",
	models.FieldWeeklyXP:                "weekly_xp",
	models.FieldStoreCredit:             "store_credit",
	models.FieldWarnings:                "warnings",
	models.FieldMessageCount:            "message_count",
	models.FieldPurchaseCount:           "purchase_count",
	models.FieldPurchaseTotalValue:      "purchase_total_value",
	models.FieldAffiliateSaleCount:      "affiliate_sale_count",
	models.FieldAffiliateEarnings:       "affiliate_earnings",
	models.FieldWeeklyAffiliateEarnings: "weekly_affiliate_earnings",
	models.FieldReferralCount:           "referral_count",
	models.FieldCashoutCount:            "cashout_count",
}

// UpdateFieldAndLog writes a mutable numeric field and the transaction log
// in one statement, so the value and its audit line commit together.
func (r *AccountRepository) UpdateFieldAndLog(ctx context.Context, memberID int64, field models.Field, value decimal.Decimal, log []models.TransactionLogEntry) error {
	column, ok := fieldColumns[field]
	if !ok {
		return fmt.Errorf("field %q is not a mutable account column", field)
	}

	query := fmt.Sprintf(`
		UPDATE accounts
		SET %s = $1, transaction_log = $2, updated_at = NOW()
		WHERE member_id = $3
	`, column)

	var arg any = value
	if field.IntegerValued() {
		arg = value.IntPart()
	}

	result, err := r.q.Exec(ctx, query, arg, log, memberID)
	if err != nil {
		return fmt.Errorf("failed to update %s for account %d: %w", column, memberID, err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("account %d not found", memberID)
	}
	return nil
}

// SetLastMessageAt stamps the anti-farm cooldown marker
func (r *AccountRepository) SetLastMessageAt(ctx context.Context, memberID int64, t time.Time) error {
	query := `UPDATE accounts SET last_message_at = $1, updated_at = NOW() WHERE member_id = $2`
	if _, err := r.q.Exec(ctx, query, t, memberID); err != nil {
		return fmt.Errorf("failed to set last message time for account %d: %w", memberID, err)
	}
	return nil
}

// SetReferrer records the referrer only when none is set; the column is
// write-once. Reports whether the write took effect.
func (r *AccountRepository) SetReferrer(ctx context.Context, memberID, referrerID int64) (bool, error) {
	query := `
		UPDATE accounts
		SET referrer = $1, updated_at = NOW()
		WHERE member_id = $2 AND referrer IS NULL
	`
	result, err := r.q.Exec(ctx, query, referrerID, memberID)
	if err != nil {
		return false, fmt.Errorf("failed to set referrer for account %d: %w", memberID, err)
	}
	return result.RowsAffected() > 0, nil
}

// AddAchievement records an unlocked achievement. Adding one the account
// already has is a no-op.
func (r *AccountRepository) AddAchievement(ctx context.Context, memberID int64, achievementID string) error {
	query := `
		UPDATE accounts
		SET achievements = array_append(achievements, $1), updated_at = NOW()
		WHERE member_id = $2 AND NOT ($1 = ANY(achievements))
	`
	if _, err := r.q.Exec(ctx, query, achievementID, memberID); err != nil {
		return fmt.Errorf("failed to add achievement for account %d: %w", memberID, err)
	}
	return nil
}

// SetBoosters overwrites the active booster map
func (r *AccountRepository) SetBoosters(ctx context.Context, memberID int64, boosters map[string]models.Booster) error {
	if boosters == nil {
		boosters = map[string]models.Booster{}
	}
	query := `UPDATE accounts SET active_boosters = $1, updated_at = NOW() WHERE member_id = $2`
	if _, err := r.q.Exec(ctx, query, boosters, memberID); err != nil {
		return fmt.Errorf("failed to set boosters for account %d: %w", memberID, err)
	}
	return nil
}

// SetVIP overwrites the VIP subscription record; nil clears it
func (r *AccountRepository) SetVIP(ctx context.Context, memberID int64, vip *models.VIPStatus) error {
	query := `UPDATE accounts SET vip = $1, updated_at = NOW() WHERE member_id = $2`
	if _, err := r.q.Exec(ctx, query, vip, memberID); err != nil {
		return fmt.Errorf("failed to set VIP for account %d: %w", memberID, err)
	}
	return nil
}

// SetGuildMembership overwrites the guild affiliation; nil clears it
func (r *AccountRepository) SetGuildMembership(ctx context.Context, memberID int64, guildID *uuid.UUID) error {
	query := `UPDATE accounts SET guild_id = $1, updated_at = NOW() WHERE member_id = $2`
	if _, err := r.q.Exec(ctx, query, guildID, memberID); err != nil {
		return fmt.Errorf("failed to set guild membership for account %d: %w", memberID, err)
	}
	return nil
}

// SetMissionsOptIn toggles mission DM notifications
func (r *AccountRepository) SetMissionsOptIn(ctx context.Context, memberID int64, optIn bool) error {
	query := `UPDATE accounts SET missions_opt_in = $1, updated_at = NOW() WHERE member_id = $2`
	if _, err := r.q.Exec(ctx, query, optIn, memberID); err != nil {
		return fmt.Errorf("failed to set missions opt-in for account %d: %w", memberID, err)
	}
	return nil
}

// SetDailyMission overwrites the daily mission record
func (r *AccountRepository) SetDailyMission(ctx context.Context, memberID int64, m *models.Mission) error {
	query := `UPDATE accounts SET current_daily_mission = $1, updated_at = NOW() WHERE member_id = $2`
	if _, err := r.q.Exec(ctx, query, m, memberID); err != nil {
		return fmt.Errorf("failed to set daily mission for account %d: %w", memberID, err)
	}
	return nil
}

// SetWeeklyMission overwrites the weekly mission record
func (r *AccountRepository) SetWeeklyMission(ctx context.Context, memberID int64, m *models.Mission) error {
	query := `UPDATE accounts SET current_weekly_mission = $1, updated_at = NOW() WHERE member_id = $2`
	if _, err := r.q.Exec(ctx, query, m, memberID); err != nil {
		return fmt.Errorf("failed to set weekly mission for account %d: %w", memberID, err)
	}
	return nil
}

// SetReferralMilestoneRewarded sets the one-shot referral milestone flag
func (r *AccountRepository) SetReferralMilestoneRewarded(ctx context.Context, memberID int64) error {
	query := `UPDATE accounts SET referral_milestone_rewarded = TRUE, updated_at = NOW() WHERE member_id = $1`
	if _, err := r.q.Exec(ctx, query, memberID); err != nil {
		return fmt.Errorf("failed to set referral milestone flag for account %d: %w", memberID, err)
	}
	return nil
}

// SetWarnings overwrites the warning counter
func (r *AccountRepository) SetWarnings(ctx context.Context, memberID int64, count int) error {
	query := `UPDATE accounts SET warnings = $1, updated_at = NOW() WHERE member_id = $2`
	if _, err := r.q.Exec(ctx, query, count, memberID); err != nil {
		return fmt.Errorf("failed to set warnings for account %d: %w", memberID, err)
	}
	return nil
}

// TopByWeeklyXP returns up to limit accounts with weekly XP above zero,
// best first
func (r *AccountRepository) TopByWeeklyXP(ctx context.Context, limit int) ([]*models.Account, error) {
	query := `SELECT ` + accountColumns + `
		FROM accounts
		WHERE weekly_xp > 0
		ORDER BY weekly_xp DESC
		LIMIT $1`

	rows, err := r.q.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get weekly XP leaders: %w", err)
	}
	defer rows.Close()

	var accounts []*models.Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, account)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate accounts: %w", err)
	}
	return accounts, nil
}

// AllMemberIDs returns every account id
func (r *AccountRepository) AllMemberIDs(ctx context.Context) ([]int64, error) {
	rows, err := r.q.Query(ctx, `SELECT member_id FROM accounts`)
	if err != nil {
		return nil, fmt.Errorf("failed to list member ids: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan member id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate member ids: %w", err)
	}
	return ids, nil
}

// MemberIDsWithExpiredVIP returns accounts whose VIP window lapsed before now
func (r *AccountRepository) MemberIDsWithExpiredVIP(ctx context.Context, now time.Time) ([]int64, error) {
	query := `
		SELECT member_id FROM accounts
		WHERE vip IS NOT NULL AND (vip->>'expires_at')::timestamptz <= $1
	`
	rows, err := r.q.Query(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("failed to list expired VIPs: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan member id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate expired VIPs: %w", err)
	}
	return ids, nil
}

// ClearAllGuildBonuses removes the rank bonus from every account
func (r *AccountRepository) ClearAllGuildBonuses(ctx context.Context) error {
	query := `UPDATE accounts SET guild_bonus = NULL, updated_at = NOW() WHERE guild_bonus IS NOT NULL`
	if _, err := r.q.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to clear guild bonuses: %w", err)
	}
	return nil
}

// SetGuildBonusForMembers writes the rank bonus to every member of the guild
func (r *AccountRepository) SetGuildBonusForMembers(ctx context.Context, guildID uuid.UUID, bonus *models.GuildBonus) error {
	query := `UPDATE accounts SET guild_bonus = $1, updated_at = NOW() WHERE guild_id = $2`
	if _, err := r.q.Exec(ctx, query, bonus, guildID); err != nil {
		return fmt.Errorf("failed to set guild bonus for guild %s: %w", guildID, err)
	}
	return nil
}

// ResetWeeklyCounters zeroes weekly XP, weekly affiliate earnings and the
// standing affiliate booster on every account. Running it twice changes
// nothing.
func (r *AccountRepository) ResetWeeklyCounters(ctx context.Context) error {
	query := `
		UPDATE accounts
		SET weekly_xp = 0, weekly_affiliate_earnings = 0, affiliate_booster = 0, updated_at = NOW()
		WHERE weekly_xp <> 0 OR weekly_affiliate_earnings <> 0 OR affiliate_booster <> 0
	`
	if _, err := r.q.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to reset weekly counters: %w", err)
	}
	return nil
}
