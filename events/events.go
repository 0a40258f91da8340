package events

import (
	"context"
	"sync"

	"guildhall/models"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// EventType represents different types of events in the system
type EventType string

const (
	EventTypeXPGranted            EventType = "xp_granted"
	EventTypeLevelUp              EventType = "level_up"
	EventTypeAchievementUnlocked  EventType = "achievement_unlocked"
	EventTypeCreditChange         EventType = "credit_change"
	EventTypeCommissionEarned     EventType = "commission_earned"
	EventTypeCashoutRequested     EventType = "cashout_requested"
	EventTypeCashoutResolved      EventType = "cashout_resolved"
	EventTypeLotteryDraw          EventType = "lottery_draw"
	EventTypeWeeklyLeaderboard    EventType = "weekly_leaderboard"
	EventTypeGuildLeaderboard     EventType = "guild_leaderboard"
	EventTypeGuildCreated         EventType = "guild_created"
	EventTypeMissionCompleted     EventType = "mission_completed"
	EventTypeVIPExpired           EventType = "vip_expired"
	EventTypeWarningIssued        EventType = "warning_issued"
	EventTypeReferralMilestone    EventType = "referral_milestone"
	EventTypePromoCreated         EventType = "promo_created"
)

// Event is the base interface for all events
type Event interface {
	Type() EventType
}

// XPGrantedEvent fires after an XP grant commits.
type XPGrantedEvent struct {
	MemberID int64
	Amount   int64
	Reason   string
}

func (e XPGrantedEvent) Type() EventType { return EventTypeXPGranted }

// LevelUpEvent fires after a level change commits.
type LevelUpEvent struct {
	MemberID int64
	OldLevel int
	NewLevel int
}

func (e LevelUpEvent) Type() EventType { return EventTypeLevelUp }

// AchievementUnlockedEvent fires after an achievement is recorded.
type AchievementUnlockedEvent struct {
	MemberID    int64
	Achievement models.Achievement
}

func (e AchievementUnlockedEvent) Type() EventType { return EventTypeAchievementUnlocked }

// CreditChangeEvent fires for every store-credit mutation.
type CreditChangeEvent struct {
	MemberID    int64
	Delta       decimal.Decimal
	NewBalance  decimal.Decimal
	Description string
}

func (e CreditChangeEvent) Type() EventType { return EventTypeCreditChange }

// CommissionEarnedEvent fires after an affiliate commission commits.
type CommissionEarnedEvent struct {
	ReferrerID   int64
	ReferralName string
	Amount       decimal.Decimal
	FromCashout  bool
}

func (e CommissionEarnedEvent) Type() EventType { return EventTypeCommissionEarned }

// CashoutRequestedEvent fires once the escrow debit and the pending record
// have both committed.
type CashoutRequestedEvent struct {
	MemberID       int64
	MessageID      int64
	Credits        decimal.Decimal
	CurrencyToSend decimal.Decimal
}

func (e CashoutRequestedEvent) Type() EventType { return EventTypeCashoutRequested }

// CashoutResolvedEvent fires after a pending cashout is approved or denied.
type CashoutResolvedEvent struct {
	MemberID       int64
	Approved       bool
	Credits        decimal.Decimal
	CurrencyToSend decimal.Decimal
	PayoutAddress  string
}

func (e CashoutResolvedEvent) Type() EventType { return EventTypeCashoutResolved }

// LotteryDrawEvent fires after a completed draw pays the winner.
type LotteryDrawEvent struct {
	WinnerID   int64
	WinnerName string
	Prize      decimal.Decimal
	Entrants   []models.LotteryEntrant
}

func (e LotteryDrawEvent) Type() EventType { return EventTypeLotteryDraw }

// LeaderboardEntry is one ranked slot in a weekly leaderboard.
type LeaderboardEntry struct {
	Rank     int
	MemberID int64
	Name     string
	WeeklyXP int64
}

// WeeklyLeaderboardEvent announces the top members of the closing week.
type WeeklyLeaderboardEvent struct {
	Entries []LeaderboardEntry
}

func (e WeeklyLeaderboardEvent) Type() EventType { return EventTypeWeeklyLeaderboard }

// GuildLeaderboardEvent announces the top guilds of the closing week.
type GuildLeaderboardEvent struct {
	Entries []LeaderboardEntry
}

func (e GuildLeaderboardEvent) Type() EventType { return EventTypeGuildLeaderboard }

// GuildCreatedEvent fires after a guild creation transaction commits.
type GuildCreatedEvent struct {
	GuildName string
	OwnerID   int64
}

func (e GuildCreatedEvent) Type() EventType { return EventTypeGuildCreated }

// MissionCompletedEvent fires when a mission reaches its target.
type MissionCompletedEvent struct {
	MemberID int64
	Mission  models.Mission
	NotifyDM bool
}

func (e MissionCompletedEvent) Type() EventType { return EventTypeMissionCompleted }

// VIPExpiredEvent fires when the expiry sweep clears a lapsed subscription.
type VIPExpiredEvent struct {
	MemberID int64
}

func (e VIPExpiredEvent) Type() EventType { return EventTypeVIPExpired }

// WarningIssuedEvent fires after a warning commits. ThresholdReached means
// the counter was reset and the member should be escalated.
type WarningIssuedEvent struct {
	MemberID         int64
	Reason           string
	Count            int
	ThresholdReached bool
}

func (e WarningIssuedEvent) Type() EventType { return EventTypeWarningIssued }

// ReferralMilestoneEvent fires when a referred member hits the milestone
// level inside the reward window.
type ReferralMilestoneEvent struct {
	ReferrerID   int64
	ReferralID   int64
	ReferralName string
	BonusXP      int64
}

func (e ReferralMilestoneEvent) Type() EventType { return EventTypeReferralMilestone }

// PromoCreatedEvent fires after a flash promo is stored.
type PromoCreatedEvent struct {
	Promo models.Promo
}

func (e PromoCreatedEvent) Type() EventType { return EventTypePromoCreated }

// Handler is a function that handles events
type Handler func(ctx context.Context, event Event)

// Bus manages event subscriptions and dispatching
type Bus struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
}

// NewBus creates a new event bus
func NewBus() *Bus {
	return &Bus{
		handlers: make(map[EventType][]Handler),
	}
}

// Subscribe adds a handler for a specific event type
func (b *Bus) Subscribe(eventType EventType, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers[eventType] = append(b.handlers[eventType], handler)

	log.WithFields(log.Fields{
		"eventType":    eventType,
		"handlerCount": len(b.handlers[eventType]),
	}).Debug("Subscribed handler to event type")
}

// Emit publishes an event to all registered handlers. Handlers run
// asynchronously; a panicking handler is logged and does not take the
// emitter down.
func (b *Bus) Emit(ctx context.Context, event Event) {
	b.mu.RLock()
	handlers := make([]Handler, len(b.handlers[event.Type()]))
	copy(handlers, b.handlers[event.Type()])
	b.mu.RUnlock()

	for i, handler := range handlers {
		go func(h Handler, handlerIndex int) {
			defer func() {
				if r := recover(); r != nil {
					log.WithFields(log.Fields{
						"eventType":    event.Type(),
						"handlerIndex": handlerIndex,
						"panic":        r,
					}).Error("Event handler panicked")
				}
			}()
			h(ctx, event)
		}(handler, i)
	}
}

// TransactionalBus stashes events published during a unit of work and
// forwards them to the real bus only after the transaction commits.
// Transaction bodies must stay free of outward side effects; this is how
// notifications ride a commit instead of happening inside it.
type TransactionalBus struct {
	real    *Bus
	pending []Event
}

// NewTransactionalBus creates a transactional wrapper around the main bus.
func NewTransactionalBus(real *Bus) *TransactionalBus {
	return &TransactionalBus{real: real}
}

// Publish queues an event until Flush.
func (b *TransactionalBus) Publish(e Event) {
	b.pending = append(b.pending, e)
}

// Flush emits all pending events. Called after a successful commit.
// Events are emitted on a background context so they outlive the
// transaction's context.
func (b *TransactionalBus) Flush(ctx context.Context) {
	eventCtx := context.Background()
	for _, ev := range b.pending {
		b.real.Emit(eventCtx, ev)
	}
	b.pending = nil
}

// Discard drops all pending events. Called after a rollback.
func (b *TransactionalBus) Discard() {
	b.pending = nil
}
