package service

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"guildhall/config"
	"guildhall/events"
	"guildhall/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

var hexColorPattern = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

type guildService struct {
	uowFactory  UnitOfWorkFactory
	eco         *config.Economy
	applier     *TxApplier
	provisioner GuildProvisioner
}

// NewGuildService creates a new guild service
func NewGuildService(uowFactory UnitOfWorkFactory, eco *config.Economy, provisioner GuildProvisioner) GuildService {
	return &guildService{
		uowFactory:  uowFactory,
		eco:         eco,
		applier:     NewTxApplier(eco.MaxLogEntries),
		provisioner: provisioner,
	}
}

// CreateGuild provisions the chat-platform space for the guild, then
// records the guild, the owner's membership and the creation fee in one
// transaction. A failed transaction tears the provisioned space back down.
func (s *guildService) CreateGuild(ctx context.Context, ownerID int64, name, color string) (*models.Guild, error) {
	if !s.eco.Guilds.Enabled {
		return nil, ErrNotFound
	}

	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrGuildNameTaken
	}
	if !hexColorPattern.MatchString(color) {
		return nil, ErrInvalidColor
	}
	nameLower := strings.ToLower(name)
	cost := decimal.NewFromFloat(s.eco.Guilds.CreationCost)

	// Cheap rejection before the external provisioning call; the checks
	// run again inside the creation transaction.
	err := s.uowFactory.Execute(ctx, func(ctx context.Context, uow UnitOfWork) error {
		return s.validateCreation(ctx, uow, ownerID, nameLower, cost)
	})
	if err != nil {
		return nil, err
	}

	space, err := s.provisioner.Provision(ctx, name, color)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCollaboratorUnavailable, err)
	}

	var guild *models.Guild
	err = s.uowFactory.Execute(ctx, func(ctx context.Context, uow UnitOfWork) error {
		if err := s.validateCreation(ctx, uow, ownerID, nameLower, cost); err != nil {
			return err
		}

		if _, err := s.applier.Apply(ctx, uow, ownerID, models.FieldStoreCredit, cost.Neg(), fmt.Sprintf("guild creation: %s", name)); err != nil {
			return err
		}

		guild = &models.Guild{
			ID:                 uuid.New(),
			Name:               name,
			NameLower:          nameLower,
			OwnerID:            ownerID,
			Members:            []int64{ownerID},
			Color:              color,
			RoleHandle:         space.RoleHandle,
			TextChannelHandle:  space.TextChannelHandle,
			VoiceChannelHandle: space.VoiceChannelHandle,
		}
		if err := uow.GuildRepository().Create(ctx, guild); err != nil {
			return err
		}
		guildID := guild.ID
		if err := uow.AccountRepository().SetGuildMembership(ctx, ownerID, &guildID); err != nil {
			return err
		}

		uow.EventBus().Publish(events.GuildCreatedEvent{
			GuildName: name,
			OwnerID:   ownerID,
		})
		return nil
	})
	if err != nil {
		s.provisioner.Teardown(ctx, space)
		return nil, err
	}

	log.WithFields(log.Fields{
		"guild":   name,
		"ownerID": ownerID,
	}).Info("Guild created")
	return guild, nil
}

func (s *guildService) validateCreation(ctx context.Context, uow UnitOfWork, ownerID int64, nameLower string, cost decimal.Decimal) error {
	owner, err := uow.AccountRepository().GetOrCreate(ctx, ownerID)
	if err != nil {
		return err
	}
	if owner.InGuild() {
		return ErrAlreadyInGuild
	}
	if owner.StoreCredit.LessThan(cost) {
		return ErrInsufficientFunds
	}

	existing, err := uow.GuildRepository().GetByNameLower(ctx, nameLower)
	if err != nil {
		return err
	}
	if existing != nil {
		return ErrGuildNameTaken
	}
	return nil
}

// JoinGuild adds the member to an existing guild, enforcing the roster cap
func (s *guildService) JoinGuild(ctx context.Context, memberID int64, guildID uuid.UUID) error {
	return s.uowFactory.Execute(ctx, func(ctx context.Context, uow UnitOfWork) error {
		account, err := uow.AccountRepository().GetOrCreate(ctx, memberID)
		if err != nil {
			return err
		}
		if account.InGuild() {
			return ErrAlreadyInGuild
		}

		guild, err := uow.GuildRepository().GetByID(ctx, guildID)
		if err != nil {
			return err
		}
		if guild == nil {
			return ErrNotFound
		}
		if len(guild.Members) >= s.eco.Guilds.MaxMembers {
			return ErrGuildFull
		}

		if err := uow.GuildRepository().AddMember(ctx, guildID, memberID); err != nil {
			return err
		}
		return uow.AccountRepository().SetGuildMembership(ctx, memberID, &guildID)
	})
}
