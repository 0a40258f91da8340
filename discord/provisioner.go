package discord

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"guildhall/service"

	"github.com/bwmarrin/discordgo"
	log "github.com/sirupsen/logrus"
)

// Provisioner creates and tears down the Discord role and channels backing
// a guild.
type Provisioner struct {
	session        *discordgo.Session
	discordGuildID string
}

// NewProvisioner creates a new guild provisioner
func NewProvisioner(session *discordgo.Session, discordGuildID string) *Provisioner {
	return &Provisioner{session: session, discordGuildID: discordGuildID}
}

// Provision creates the role plus a private text and voice channel for the
// guild. A partially created space is torn down before the error returns.
func (p *Provisioner) Provision(ctx context.Context, name, color string) (*service.GuildSpace, error) {
	colorValue, err := strconv.ParseInt(strings.TrimPrefix(color, "#"), 16, 32)
	if err != nil {
		return nil, fmt.Errorf("invalid color %q: %w", color, err)
	}
	roleColor := int(colorValue)

	role, err := p.session.GuildRoleCreate(p.discordGuildID, &discordgo.RoleParams{
		Name:  name,
		Color: &roleColor,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create guild role: %w", err)
	}

	space := &service.GuildSpace{RoleHandle: role.ID}

	overwrites := []*discordgo.PermissionOverwrite{
		{
			ID:    p.discordGuildID, // @everyone
			Type:  discordgo.PermissionOverwriteTypeRole,
			Deny:  discordgo.PermissionViewChannel,
		},
		{
			ID:    role.ID,
			Type:  discordgo.PermissionOverwriteTypeRole,
			Allow: discordgo.PermissionViewChannel,
		},
	}

	text, err := p.session.GuildChannelCreateComplex(p.discordGuildID, discordgo.GuildChannelCreateData{
		Name:                 channelName(name),
		Type:                 discordgo.ChannelTypeGuildText,
		PermissionOverwrites: overwrites,
	})
	if err != nil {
		p.Teardown(ctx, space)
		return nil, fmt.Errorf("failed to create guild text channel: %w", err)
	}
	space.TextChannelHandle = text.ID

	voice, err := p.session.GuildChannelCreateComplex(p.discordGuildID, discordgo.GuildChannelCreateData{
		Name:                 name,
		Type:                 discordgo.ChannelTypeGuildVoice,
		PermissionOverwrites: overwrites,
	})
	if err != nil {
		p.Teardown(ctx, space)
		return nil, fmt.Errorf("failed to create guild voice channel: %w", err)
	}
	space.VoiceChannelHandle = voice.ID

	return space, nil
}

// Teardown removes whatever parts of the space exist. Used both to
// compensate a failed creation transaction and to clean up a partially
// provisioned space.
func (p *Provisioner) Teardown(ctx context.Context, space *service.GuildSpace) {
	if space == nil {
		return
	}
	if space.VoiceChannelHandle != "" {
		if _, err := p.session.ChannelDelete(space.VoiceChannelHandle); err != nil {
			log.WithFields(log.Fields{"channelID": space.VoiceChannelHandle, "error": err}).Error("Failed to delete guild voice channel")
		}
	}
	if space.TextChannelHandle != "" {
		if _, err := p.session.ChannelDelete(space.TextChannelHandle); err != nil {
			log.WithFields(log.Fields{"channelID": space.TextChannelHandle, "error": err}).Error("Failed to delete guild text channel")
		}
	}
	if space.RoleHandle != "" {
		if err := p.session.GuildRoleDelete(p.discordGuildID, space.RoleHandle); err != nil {
			log.WithFields(log.Fields{"roleID": space.RoleHandle, "error": err}).Error("Failed to delete guild role")
		}
	}
}

func channelName(guildName string) string {
	name := strings.ToLower(strings.TrimSpace(guildName))
	name = strings.ReplaceAll(name, " ", "-")
	return name
}
