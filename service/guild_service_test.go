package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"guildhall/config"
	"guildhall/events"
	"guildhall/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvisioner struct {
	fail       bool
	provisions int
	teardowns  int
}

func (p *fakeProvisioner) Provision(ctx context.Context, name, color string) (*GuildSpace, error) {
	if p.fail {
		return nil, errors.New("platform unavailable")
	}
	p.provisions++
	return &GuildSpace{
		RoleHandle:         fmt.Sprintf("role-%d", p.provisions),
		TextChannelHandle:  fmt.Sprintf("text-%d", p.provisions),
		VoiceChannelHandle: fmt.Sprintf("voice-%d", p.provisions),
	}, nil
}

func (p *fakeProvisioner) Teardown(ctx context.Context, space *GuildSpace) {
	p.teardowns++
}

func TestCreateGuild(t *testing.T) {
	factory, store, bus := newFakeFactory()
	provisioner := &fakeProvisioner{}
	svc := NewGuildService(factory, config.DefaultEconomy(), provisioner)

	store.seedAccount(&models.Account{MemberID: 1, StoreCredit: decimal.NewFromInt(5)})

	guild, err := svc.CreateGuild(context.Background(), 1, "Night Crew", "#ff00aa")
	require.NoError(t, err)
	assert.Equal(t, "night crew", guild.NameLower)
	assert.Equal(t, []int64{1}, guild.Members)
	assert.Equal(t, "role-1", guild.RoleHandle)

	account := store.account(1)
	require.NotNil(t, account.GuildID)
	assert.Equal(t, guild.ID, *account.GuildID)
	assert.True(t, account.StoreCredit.Equal(decimal.NewFromInt(2)))
	assert.Len(t, bus.ofType(events.EventTypeGuildCreated), 1)
	assert.Equal(t, 0, provisioner.teardowns)
}

func TestCreateGuildValidation(t *testing.T) {
	factory, store, _ := newFakeFactory()
	provisioner := &fakeProvisioner{}
	svc := NewGuildService(factory, config.DefaultEconomy(), provisioner)
	ctx := context.Background()

	store.seedAccount(&models.Account{MemberID: 1, StoreCredit: decimal.NewFromInt(10)})

	_, err := svc.CreateGuild(ctx, 1, "Night Crew", "red")
	assert.ErrorIs(t, err, ErrInvalidColor)

	store.seedAccount(&models.Account{MemberID: 2, StoreCredit: decimal.NewFromInt(1)})
	_, err = svc.CreateGuild(ctx, 2, "Poor Crew", "#ff00aa")
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	_, err = svc.CreateGuild(ctx, 1, "Night Crew", "#ff00aa")
	require.NoError(t, err)

	// Name collisions are case-insensitive.
	store.seedAccount(&models.Account{MemberID: 3, StoreCredit: decimal.NewFromInt(10)})
	_, err = svc.CreateGuild(ctx, 3, "NIGHT CREW", "#00ff00")
	assert.ErrorIs(t, err, ErrGuildNameTaken)

	// One guild per member.
	_, err = svc.CreateGuild(ctx, 1, "Second Crew", "#00ff00")
	assert.ErrorIs(t, err, ErrAlreadyInGuild)

	// Validation failures never reached the provisioner.
	assert.Equal(t, 1, provisioner.provisions)
}

func TestCreateGuildProvisionFailure(t *testing.T) {
	factory, store, _ := newFakeFactory()
	svc := NewGuildService(factory, config.DefaultEconomy(), &fakeProvisioner{fail: true})

	store.seedAccount(&models.Account{MemberID: 1, StoreCredit: decimal.NewFromInt(5)})

	_, err := svc.CreateGuild(context.Background(), 1, "Night Crew", "#ff00aa")
	assert.ErrorIs(t, err, ErrCollaboratorUnavailable)
	assert.True(t, store.account(1).StoreCredit.Equal(decimal.NewFromInt(5)))
	assert.Nil(t, store.account(1).GuildID)
	assert.Empty(t, store.guilds)
}

func TestJoinGuild(t *testing.T) {
	factory, store, _ := newFakeFactory()
	eco := config.DefaultEconomy()
	eco.Guilds.MaxMembers = 2
	svc := NewGuildService(factory, eco, &fakeProvisioner{})
	ctx := context.Background()

	guildID := seedGuild(store, "raiders", 10)
	store.seedAccount(&models.Account{MemberID: 10, GuildID: &guildID})

	require.NoError(t, svc.JoinGuild(ctx, 2, guildID))
	assert.True(t, store.guilds[guildID].HasMember(2))
	require.NotNil(t, store.account(2).GuildID)

	// Joining twice fails on the membership check.
	assert.ErrorIs(t, svc.JoinGuild(ctx, 2, guildID), ErrAlreadyInGuild)

	// The roster cap of 2 is reached.
	assert.ErrorIs(t, svc.JoinGuild(ctx, 3, guildID), ErrGuildFull)
}

func TestJoinGuildNotFound(t *testing.T) {
	factory, store, _ := newFakeFactory()
	svc := NewGuildService(factory, config.DefaultEconomy(), &fakeProvisioner{})

	err := svc.JoinGuild(context.Background(), 1, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Nil(t, store.account(1).GuildID)
}
