package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"guildhall/events"
	"guildhall/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// memStore is the in-memory ledger behind the fake repositories. The fake
// unit-of-work factory serializes every Execute body on the store mutex,
// which models the serializable-transaction guarantee the production
// factory provides through conflict retry.
type memStore struct {
	mu        sync.Mutex
	now       time.Time
	accounts  map[int64]*models.Account
	guilds    map[uuid.UUID]*models.Guild
	cashouts  map[int64]*models.PendingCashout
	purchases map[uuid.UUID]*models.PendingPurchase
	promos    []*models.Promo
	entrants  []models.LotteryEntrant
}

func newMemStore() *memStore {
	return &memStore{
		now:       time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		accounts:  make(map[int64]*models.Account),
		guilds:    make(map[uuid.UUID]*models.Guild),
		cashouts:  make(map[int64]*models.PendingCashout),
		purchases: make(map[uuid.UUID]*models.PendingPurchase),
	}
}

func (s *memStore) seedAccount(a *models.Account) {
	if a.ActiveBoosters == nil {
		a.ActiveBoosters = map[string]models.Booster{}
	}
	if a.Level == 0 {
		a.Level = 1
	}
	if a.JoinedAt.IsZero() {
		a.JoinedAt = s.now.Add(-365 * 24 * time.Hour)
	}
	s.accounts[a.MemberID] = a
}

func (s *memStore) account(memberID int64) *models.Account {
	return s.accounts[memberID]
}

func seedGuild(s *memStore, name string, ownerID int64) uuid.UUID {
	id := uuid.New()
	s.guilds[id] = &models.Guild{
		ID:        id,
		Name:      name,
		NameLower: strings.ToLower(name),
		OwnerID:   ownerID,
		Members:   []int64{ownerID},
		CreatedAt: s.now,
	}
	return id
}

func copyAccount(a *models.Account) *models.Account {
	c := *a
	c.Achievements = append([]string(nil), a.Achievements...)
	c.TransactionLog = append([]models.TransactionLogEntry(nil), a.TransactionLog...)
	c.ActiveBoosters = make(map[string]models.Booster, len(a.ActiveBoosters))
	for id, b := range a.ActiveBoosters {
		c.ActiveBoosters[id] = b
	}
	return &c
}

// capturingPublisher records every published event for assertions.
type capturingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *capturingPublisher) Publish(e events.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
}

func (p *capturingPublisher) ofType(t events.EventType) []events.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []events.Event
	for _, e := range p.events {
		if e.Type() == t {
			out = append(out, e)
		}
	}
	return out
}

type fakeUowFactory struct {
	store *memStore
	bus   *capturingPublisher
}

func newFakeFactory() (*fakeUowFactory, *memStore, *capturingPublisher) {
	store := newMemStore()
	bus := &capturingPublisher{}
	return &fakeUowFactory{store: store, bus: bus}, store, bus
}

func (f *fakeUowFactory) Create() UnitOfWork {
	return &fakeUow{store: f.store, bus: f.bus}
}

func (f *fakeUowFactory) Execute(ctx context.Context, fn func(ctx context.Context, uow UnitOfWork) error) error {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	return fn(ctx, &fakeUow{store: f.store, bus: f.bus})
}

type fakeUow struct {
	store *memStore
	bus   *capturingPublisher
}

func (u *fakeUow) Begin(ctx context.Context) error { return nil }
func (u *fakeUow) Commit() error                   { return nil }
func (u *fakeUow) Rollback() error                 { return nil }

func (u *fakeUow) AccountRepository() AccountRepository   { return &memAccountRepo{u.store} }
func (u *fakeUow) GuildRepository() GuildRepository       { return &memGuildRepo{u.store} }
func (u *fakeUow) CashoutRepository() CashoutRepository   { return &memCashoutRepo{u.store} }
func (u *fakeUow) PurchaseRepository() PurchaseRepository { return &memPurchaseRepo{u.store} }
func (u *fakeUow) LotteryRepository() LotteryRepository   { return &memLotteryRepo{u.store} }
func (u *fakeUow) EventBus() EventPublisher               { return u.bus }

type memAccountRepo struct{ store *memStore }

func (r *memAccountRepo) GetOrCreate(ctx context.Context, memberID int64) (*models.Account, error) {
	if a, ok := r.store.accounts[memberID]; ok {
		return copyAccount(a), nil
	}
	a := &models.Account{
		MemberID:       memberID,
		Level:          1,
		ActiveBoosters: map[string]models.Booster{},
		MissionsOptIn:  true,
		JoinedAt:       r.store.now,
		CreatedAt:      r.store.now,
	}
	r.store.accounts[memberID] = a
	return copyAccount(a), nil
}

func (r *memAccountRepo) UpdateFieldAndLog(ctx context.Context, memberID int64, field models.Field, value decimal.Decimal, log []models.TransactionLogEntry) error {
	a := r.store.accounts[memberID]
	a.SetFieldValue(field, value)
	a.TransactionLog = append([]models.TransactionLogEntry(nil), log...)
	return nil
}

func (r *memAccountRepo) SetLastMessageAt(ctx context.Context, memberID int64, t time.Time) error {
	r.store.accounts[memberID].LastMessageAt = t
	return nil
}

func (r *memAccountRepo) SetReferrer(ctx context.Context, memberID, referrerID int64) (bool, error) {
	a := r.store.accounts[memberID]
	if a.Referrer != nil {
		return false, nil
	}
	a.Referrer = &referrerID
	return true, nil
}

func (r *memAccountRepo) AddAchievement(ctx context.Context, memberID int64, achievementID string) error {
	a := r.store.accounts[memberID]
	if !a.HasAchievement(achievementID) {
		a.Achievements = append(a.Achievements, achievementID)
	}
	return nil
}

func (r *memAccountRepo) SetBoosters(ctx context.Context, memberID int64, boosters map[string]models.Booster) error {
	r.store.accounts[memberID].ActiveBoosters = boosters
	return nil
}

func (r *memAccountRepo) SetVIP(ctx context.Context, memberID int64, vip *models.VIPStatus) error {
	r.store.accounts[memberID].VIP = vip
	return nil
}

func (r *memAccountRepo) SetGuildMembership(ctx context.Context, memberID int64, guildID *uuid.UUID) error {
	r.store.accounts[memberID].GuildID = guildID
	return nil
}

func (r *memAccountRepo) SetMissionsOptIn(ctx context.Context, memberID int64, optIn bool) error {
	r.store.accounts[memberID].MissionsOptIn = optIn
	return nil
}

func (r *memAccountRepo) SetDailyMission(ctx context.Context, memberID int64, m *models.Mission) error {
	r.store.accounts[memberID].DailyMission = m
	return nil
}

func (r *memAccountRepo) SetWeeklyMission(ctx context.Context, memberID int64, m *models.Mission) error {
	r.store.accounts[memberID].WeeklyMission = m
	return nil
}

func (r *memAccountRepo) SetReferralMilestoneRewarded(ctx context.Context, memberID int64) error {
	r.store.accounts[memberID].ReferralMilestoneRewarded = true
	return nil
}

func (r *memAccountRepo) SetWarnings(ctx context.Context, memberID int64, count int) error {
	r.store.accounts[memberID].Warnings = count
	return nil
}

func (r *memAccountRepo) TopByWeeklyXP(ctx context.Context, limit int) ([]*models.Account, error) {
	var out []*models.Account
	for _, a := range r.store.accounts {
		if a.WeeklyXP > 0 {
			out = append(out, copyAccount(a))
		}
	}
	for i := 0; i < len(out); i++ {
		for j := i + 1; j < len(out); j++ {
			if out[j].WeeklyXP > out[i].WeeklyXP {
				out[i], out[j] = out[j], out[i]
			}
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memAccountRepo) AllMemberIDs(ctx context.Context) ([]int64, error) {
	var ids []int64
	for id := range r.store.accounts {
		ids = append(ids, id)
	}
	return ids, nil
}

func (r *memAccountRepo) MemberIDsWithExpiredVIP(ctx context.Context, now time.Time) ([]int64, error) {
	var ids []int64
	for id, a := range r.store.accounts {
		if a.VIP != nil && !a.VIP.ExpiresAt.After(now) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (r *memAccountRepo) ClearAllGuildBonuses(ctx context.Context) error {
	for _, a := range r.store.accounts {
		a.GuildBonus = nil
	}
	return nil
}

func (r *memAccountRepo) SetGuildBonusForMembers(ctx context.Context, guildID uuid.UUID, bonus *models.GuildBonus) error {
	for _, a := range r.store.accounts {
		if a.GuildID != nil && *a.GuildID == guildID {
			b := *bonus
			a.GuildBonus = &b
		}
	}
	return nil
}

func (r *memAccountRepo) ResetWeeklyCounters(ctx context.Context) error {
	for _, a := range r.store.accounts {
		a.WeeklyXP = 0
		a.WeeklyAffiliateEarnings = decimal.Zero
		a.AffiliateBooster = 0
	}
	return nil
}

type memGuildRepo struct{ store *memStore }

func (r *memGuildRepo) Create(ctx context.Context, guild *models.Guild) error {
	g := *guild
	g.Members = append([]int64(nil), guild.Members...)
	r.store.guilds[guild.ID] = &g
	return nil
}

func (r *memGuildRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Guild, error) {
	g, ok := r.store.guilds[id]
	if !ok {
		return nil, nil
	}
	c := *g
	c.Members = append([]int64(nil), g.Members...)
	return &c, nil
}

func (r *memGuildRepo) GetByNameLower(ctx context.Context, nameLower string) (*models.Guild, error) {
	for _, g := range r.store.guilds {
		if g.NameLower == nameLower {
			c := *g
			return &c, nil
		}
	}
	return nil, nil
}

func (r *memGuildRepo) AddMember(ctx context.Context, id uuid.UUID, memberID int64) error {
	g := r.store.guilds[id]
	if !g.HasMember(memberID) {
		g.Members = append(g.Members, memberID)
	}
	return nil
}

func (r *memGuildRepo) RemoveMember(ctx context.Context, id uuid.UUID, memberID int64) error {
	g := r.store.guilds[id]
	for i, m := range g.Members {
		if m == memberID {
			g.Members = append(g.Members[:i], g.Members[i+1:]...)
			break
		}
	}
	return nil
}

func (r *memGuildRepo) IncrementWeeklyXP(ctx context.Context, id uuid.UUID, amount int64) (bool, error) {
	g, ok := r.store.guilds[id]
	if !ok {
		return false, nil
	}
	g.WeeklyXP += amount
	return true, nil
}

func (r *memGuildRepo) TopByWeeklyXP(ctx context.Context, limit int) ([]*models.Guild, error) {
	var out []*models.Guild
	for _, g := range r.store.guilds {
		if g.WeeklyXP > 0 {
			c := *g
			out = append(out, &c)
		}
	}
	for i := 0; i < len(out); i++ {
		for j := i + 1; j < len(out); j++ {
			if out[j].WeeklyXP > out[i].WeeklyXP {
				out[i], out[j] = out[j], out[i]
			}
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memGuildRepo) ResetAllWeeklyXP(ctx context.Context) error {
	for _, g := range r.store.guilds {
		g.WeeklyXP = 0
	}
	return nil
}

type memCashoutRepo struct{ store *memStore }

func (r *memCashoutRepo) Create(ctx context.Context, pending *models.PendingCashout) error {
	p := *pending
	r.store.cashouts[pending.MessageID] = &p
	return nil
}

func (r *memCashoutRepo) GetByMessageID(ctx context.Context, messageID int64) (*models.PendingCashout, error) {
	p, ok := r.store.cashouts[messageID]
	if !ok {
		return nil, nil
	}
	c := *p
	return &c, nil
}

func (r *memCashoutRepo) Delete(ctx context.Context, messageID int64) error {
	delete(r.store.cashouts, messageID)
	return nil
}

type memPurchaseRepo struct{ store *memStore }

func (r *memPurchaseRepo) CreatePending(ctx context.Context, pending *models.PendingPurchase) error {
	p := *pending
	r.store.purchases[pending.ID] = &p
	return nil
}

func (r *memPurchaseRepo) GetPending(ctx context.Context, id uuid.UUID) (*models.PendingPurchase, error) {
	p, ok := r.store.purchases[id]
	if !ok {
		return nil, nil
	}
	c := *p
	return &c, nil
}

func (r *memPurchaseRepo) DeletePending(ctx context.Context, id uuid.UUID) error {
	delete(r.store.purchases, id)
	return nil
}

func (r *memPurchaseRepo) CreatePromo(ctx context.Context, promo *models.Promo) error {
	p := *promo
	r.store.promos = append(r.store.promos, &p)
	return nil
}

type memLotteryRepo struct{ store *memStore }

func (r *memLotteryRepo) GetPot(ctx context.Context) (*models.LotteryPot, error) {
	return &models.LotteryPot{Entrants: append([]models.LotteryEntrant(nil), r.store.entrants...)}, nil
}

func (r *memLotteryRepo) SetPot(ctx context.Context, entrants []models.LotteryEntrant) error {
	r.store.entrants = append([]models.LotteryEntrant(nil), entrants...)
	return nil
}
