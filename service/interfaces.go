package service

import (
	"context"
	"time"

	"guildhall/events"
	"guildhall/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AccountRepository defines the interface for account data access
type AccountRepository interface {
	// GetOrCreate reads the account, lazily creating the all-defaults
	// record on first reference. Safe to call repeatedly inside the same
	// transaction.
	GetOrCreate(ctx context.Context, memberID int64) (*models.Account, error)

	// UpdateFieldAndLog writes a mutable numeric field together with the
	// truncated transaction log in a single update. Only the transaction
	// applier calls this.
	UpdateFieldAndLog(ctx context.Context, memberID int64, field models.Field, value decimal.Decimal, log []models.TransactionLogEntry) error

	// SetLastMessageAt stamps the anti-farm cooldown marker
	SetLastMessageAt(ctx context.Context, memberID int64, t time.Time) error

	// SetReferrer records the referrer if none is set yet; the field is
	// immutable once written. Returns whether the write took effect.
	SetReferrer(ctx context.Context, memberID, referrerID int64) (bool, error)

	// AddAchievement records an unlocked achievement with set-union
	// semantics; adding twice is a no-op.
	AddAchievement(ctx context.Context, memberID int64, achievementID string) error

	// SetBoosters overwrites the active booster map
	SetBoosters(ctx context.Context, memberID int64, boosters map[string]models.Booster) error

	// SetVIP overwrites the VIP subscription record; nil clears it
	SetVIP(ctx context.Context, memberID int64, vip *models.VIPStatus) error

	// SetGuildMembership overwrites the guild affiliation; nil clears it
	SetGuildMembership(ctx context.Context, memberID int64, guildID *uuid.UUID) error

	// SetMissionsOptIn toggles mission DM notifications
	SetMissionsOptIn(ctx context.Context, memberID int64, optIn bool) error

	// SetDailyMission and SetWeeklyMission overwrite mission progress records
	SetDailyMission(ctx context.Context, memberID int64, m *models.Mission) error
	SetWeeklyMission(ctx context.Context, memberID int64, m *models.Mission) error

	// SetReferralMilestoneRewarded sets the one-shot milestone flag
	SetReferralMilestoneRewarded(ctx context.Context, memberID int64) error

	// SetWarnings overwrites the warning counter (threshold reset)
	SetWarnings(ctx context.Context, memberID int64, count int) error

	// TopByWeeklyXP returns up to limit accounts with weekly XP > 0,
	// best first
	TopByWeeklyXP(ctx context.Context, limit int) ([]*models.Account, error)

	// AllMemberIDs returns every account id
	AllMemberIDs(ctx context.Context) ([]int64, error)

	// MemberIDsWithExpiredVIP returns accounts whose VIP window lapsed
	MemberIDsWithExpiredVIP(ctx context.Context, now time.Time) ([]int64, error)

	// ClearAllGuildBonuses clears the ephemeral rank bonus on every account
	ClearAllGuildBonuses(ctx context.Context) error

	// SetGuildBonusForMembers writes the rank bonus to every member of
	// the guild
	SetGuildBonusForMembers(ctx context.Context, guildID uuid.UUID, bonus *models.GuildBonus) error

	// ResetWeeklyCounters zeroes weekly XP, weekly affiliate earnings and
	// the standing affiliate booster on every account. Idempotent.
	ResetWeeklyCounters(ctx context.Context) error
}

// GuildRepository defines the interface for guild data access
type GuildRepository interface {
	Create(ctx context.Context, guild *models.Guild) error

	// GetByID returns the guild, or nil if it no longer exists
	GetByID(ctx context.Context, id uuid.UUID) (*models.Guild, error)

	// GetByNameLower returns the guild with the given lowercased name, or nil
	GetByNameLower(ctx context.Context, nameLower string) (*models.Guild, error)

	AddMember(ctx context.Context, id uuid.UUID, memberID int64) error
	RemoveMember(ctx context.Context, id uuid.UUID, memberID int64) error

	// IncrementWeeklyXP adds to the guild's weekly XP. Reports false when
	// the guild no longer exists, which callers treat as a silent skip.
	IncrementWeeklyXP(ctx context.Context, id uuid.UUID, amount int64) (bool, error)

	TopByWeeklyXP(ctx context.Context, limit int) ([]*models.Guild, error)

	// ResetAllWeeklyXP zeroes weekly XP on every guild. Idempotent.
	ResetAllWeeklyXP(ctx context.Context) error
}

// CashoutRepository defines the interface for pending cashout data access
type CashoutRepository interface {
	Create(ctx context.Context, pending *models.PendingCashout) error

	// GetByMessageID returns the pending request, or nil if already resolved
	GetByMessageID(ctx context.Context, messageID int64) (*models.PendingCashout, error)

	Delete(ctx context.Context, messageID int64) error
}

// PurchaseRepository defines the interface for pending purchase and promo
// data access
type PurchaseRepository interface {
	CreatePending(ctx context.Context, pending *models.PendingPurchase) error

	// GetPending returns the in-flight purchase, or nil if already settled
	GetPending(ctx context.Context, id uuid.UUID) (*models.PendingPurchase, error)

	DeletePending(ctx context.Context, id uuid.UUID) error

	CreatePromo(ctx context.Context, promo *models.Promo) error
}

// LotteryRepository defines the interface for the singleton lottery pot
type LotteryRepository interface {
	GetPot(ctx context.Context) (*models.LotteryPot, error)
	SetPot(ctx context.Context, entrants []models.LotteryEntrant) error
}

// EventPublisher queues events for emission after the enclosing
// transaction commits
type EventPublisher interface {
	Publish(event events.Event)
}

// UnitOfWork scopes repositories and the transactional event bus to one
// ledger transaction
type UnitOfWork interface {
	Begin(ctx context.Context) error
	Commit() error
	Rollback() error

	AccountRepository() AccountRepository
	GuildRepository() GuildRepository
	CashoutRepository() CashoutRepository
	PurchaseRepository() PurchaseRepository
	LotteryRepository() LotteryRepository
	EventBus() EventPublisher
}

// UnitOfWorkFactory creates units of work and runs transaction bodies
// under optimistic concurrency
type UnitOfWorkFactory interface {
	// Create returns an unstarted unit of work for read paths
	Create() UnitOfWork

	// Execute runs fn inside a serializable transaction, re-executing it
	// from the top when a conflicting concurrent commit is detected,
	// bounded by a retry limit. fn must be repeatable and free of side
	// effects beyond repository writes and event publishes; queued events
	// are flushed only after the final commit.
	Execute(ctx context.Context, fn func(ctx context.Context, uow UnitOfWork) error) error
}

// Notifier delivers direct messages to members. Delivery failures
// (blocked or closed inboxes) are swallowed, never escalated.
type Notifier interface {
	DirectMessage(ctx context.Context, memberID int64, content string)
}

// CashoutAnnouncer posts a withdrawal request for staff review and returns
// the identity of the announcement message, which keys the pending record.
type CashoutAnnouncer interface {
	AnnounceCashoutRequest(ctx context.Context, memberID int64, credits, currency decimal.Decimal, payoutAddress string) (int64, error)
}

// GuildSpace holds the opaque chat-platform handles provisioned for a guild.
type GuildSpace struct {
	RoleHandle         string
	TextChannelHandle  string
	VoiceChannelHandle string
}

// GuildProvisioner creates and tears down the chat-platform space backing
// a guild. Teardown compensates a failed creation.
type GuildProvisioner interface {
	Provision(ctx context.Context, name, color string) (*GuildSpace, error)
	Teardown(ctx context.Context, space *GuildSpace)
}

// Describer generates a sales description for a product from a short hint.
// Callers fall back to the hint verbatim on any failure.
type Describer interface {
	Describe(ctx context.Context, productName, shortHint string) (string, error)
}

// Catalogue resolves product ids. Catalogue loading itself is an external
// collaborator; the engine only reads.
type Catalogue interface {
	Product(id string) (*models.Product, bool)
}

// StaticCatalogue is a fixed product list satisfying Catalogue.
type StaticCatalogue []models.Product

// Product returns the catalogue entry with the given id.
func (c StaticCatalogue) Product(id string) (*models.Product, bool) {
	for i := range c {
		if c[i].ID == id {
			return &c[i], true
		}
	}
	return nil, false
}

// XPSource is the tagged origin of an XP grant: either message activity
// (random XP, subject to the anti-farm cooldown) or a direct amount.
type XPSource struct {
	fromMessage bool
	amount      int64
}

// MessageActivity is an XP grant triggered by a chat message.
func MessageActivity() XPSource { return XPSource{fromMessage: true} }

// DirectAmount is an XP grant of a fixed size.
func DirectAmount(amount int64) XPSource { return XPSource{amount: amount} }

// XPGrantResult reports what a grant did.
type XPGrantResult struct {
	Granted   bool
	XP        int64
	LeveledUp bool
	NewLevel  int
}

// ProgressionService computes XP grants, level-ups and achievement unlocks
type ProgressionService interface {
	// GrantXP resolves the source, stacks boosts and applies the grant.
	// A cooldown rejection returns a result with Granted false, not an error.
	GrantXP(ctx context.Context, memberID int64, source XPSource, reason string) (*XPGrantResult, error)

	// CheckLevelUp recomputes the level from XP. Idempotent: a second
	// call without an intervening grant never changes the level.
	CheckLevelUp(ctx context.Context, memberID int64) (bool, int, error)

	// CheckAchievements unlocks every achievement whose trigger stat has
	// reached its threshold
	CheckAchievements(ctx context.Context, memberID int64) error

	// PurchaseXP exchanges store credit for XP at the configured rate and
	// returns the XP gained
	PurchaseXP(ctx context.Context, memberID int64, credits decimal.Decimal) (int64, error)

	// SetEventMultiplier activates a global XP event; ClearEventMultiplier
	// ends it
	SetEventMultiplier(name string, multiplier float64)
	ClearEventMultiplier(name string)
}

// AffiliateService computes and applies referral commissions
type AffiliateService interface {
	// CalculateCommission resolves the commission owed to the referrer
	// for a sale. Pure: no state change.
	CalculateCommission(referrer *models.Account, salePrice decimal.Decimal, product *models.Product, option *models.ProductOption) decimal.Decimal

	// GrantSaleCommission credits a sale commission to the referrer
	GrantSaleCommission(ctx context.Context, referrerID int64, buyerName string, amount decimal.Decimal) error

	// GrantCashoutCommission credits the referrer for a referral's cashout
	// using the cashout rate table; a zero rate is a no-op. Returns the
	// commission paid.
	GrantCashoutCommission(ctx context.Context, referrerID int64, referralName string, amountCashedOut decimal.Decimal) (decimal.Decimal, error)
}

// CashoutReceipt reports a successfully filed withdrawal request.
type CashoutReceipt struct {
	MessageID      int64
	Credits        decimal.Decimal
	CurrencyToSend decimal.Decimal
}

// CashoutResolution reports how a pending cashout was settled.
type CashoutResolution struct {
	MemberID        int64
	Approved        bool
	CreditsRefunded decimal.Decimal
	CommissionPaid  decimal.Decimal
}

// CashoutService runs the withdrawal state machine
type CashoutService interface {
	// RequestCashout validates eligibility, escrows the credits and files
	// the pending request. An announcement failure reverses the escrow
	// before returning ErrCollaboratorUnavailable.
	RequestCashout(ctx context.Context, memberID int64, amount decimal.Decimal, payoutAddress string) (*CashoutReceipt, error)

	// Resolve approves or denies a pending request. Resolving an already
	// settled request returns ErrNotFound and changes nothing.
	Resolve(ctx context.Context, messageID int64, approve bool) (*CashoutResolution, error)
}

// WeeklyService runs the scheduled weekly aggregation and reset batch
type WeeklyService interface {
	// RunWeeklyCycle snapshots top performers, grants rank bonuses for
	// the coming week and resets weekly counters. Safe to re-run.
	RunWeeklyCycle(ctx context.Context) error
}

// GuildService manages member-created guilds
type GuildService interface {
	CreateGuild(ctx context.Context, ownerID int64, name, color string) (*models.Guild, error)
	JoinGuild(ctx context.Context, memberID int64, guildID uuid.UUID) error
}

// LotteryDrawResult reports a completed draw.
type LotteryDrawResult struct {
	WinnerID   int64
	WinnerName string
	Prize      decimal.Decimal
}

// LotteryJoinResult reports a successful entry; Draw is set when the entry
// filled the pot and triggered a draw.
type LotteryJoinResult struct {
	PotSize int
	Draw    *LotteryDrawResult
}

// LotteryService sells lottery entries and runs draws
type LotteryService interface {
	Join(ctx context.Context, memberID int64, displayName string) (*LotteryJoinResult, error)
}

// PurchaseReceipt reports a confirmed purchase.
type PurchaseReceipt struct {
	MemberID       int64
	ProductName    string
	Price          decimal.Decimal
	VIPActivated   bool
	CommissionPaid decimal.Decimal
}

// PurchaseService tracks product purchases awaiting manual payment
// confirmation and flash promos
type PurchaseService interface {
	// BeginPurchase files an in-flight purchase with a human-readable
	// correlation code
	BeginPurchase(ctx context.Context, memberID int64, productID, optionName string, creditToApply decimal.Decimal) (*models.PendingPurchase, error)

	// ConfirmPurchase settles a pending purchase: counters, credit burn,
	// XP, VIP activation and referrer commission
	ConfirmPurchase(ctx context.Context, purchaseID uuid.UUID) (*PurchaseReceipt, error)

	// DenyPurchase discards a pending purchase. Idempotent.
	DenyPurchase(ctx context.Context, purchaseID uuid.UUID) error

	// CreateFlashPromo stores a promo with a generated description,
	// falling back to the short hint when generation fails
	CreateFlashPromo(ctx context.Context, name, shortHint string, price, purchaseCost decimal.Decimal) (*models.Promo, error)
}

// ShopService sells credit-shop boosters
type ShopService interface {
	PurchaseBooster(ctx context.Context, memberID int64, itemID string) error
}

// MissionService assigns and tracks missions and sweeps expired VIPs
type MissionService interface {
	// UpdateProgress advances any current mission matching the id and
	// grants the reward on completion
	UpdateProgress(ctx context.Context, memberID int64, missionID string, amount int64) error

	// AssignMissions rolls a fresh daily mission for every account, and a
	// weekly one at the start of a week
	AssignMissions(ctx context.Context) error

	// ExpireVIPs clears lapsed subscriptions
	ExpireVIPs(ctx context.Context) error

	// ToggleOptIn flips mission DM notifications and returns the new state
	ToggleOptIn(ctx context.Context, memberID int64) (bool, error)
}

// ModerationService tracks warnings
type ModerationService interface {
	// ApplyWarning increments the warning counter and returns the new
	// count; reaching the threshold resets the counter and flags the
	// event for escalation
	ApplyWarning(ctx context.Context, memberID int64, reason string) (int, error)
}

// AccountService is the read path plus referral bookkeeping
type AccountService interface {
	GetAccount(ctx context.Context, memberID int64) (*models.Account, error)

	// RecordReferral stores the referrer (first write wins) and credits
	// the referrer's referral count
	RecordReferral(ctx context.Context, memberID, referrerID int64, referralName string) error

	// ConfirmVerification rewards the referrer once the referred member
	// passes verification
	ConfirmVerification(ctx context.Context, memberID int64) error

	// GrantCredits credits an account by administrative fiat
	GrantCredits(ctx context.Context, memberID int64, amount decimal.Decimal, reason string) error
}
