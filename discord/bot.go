package discord

import (
	"context"
	"strconv"
	"strings"

	"guildhall/service"

	"github.com/bwmarrin/discordgo"
	log "github.com/sirupsen/logrus"
)

// BotServices bundles the services the message-facing layer drives.
type BotServices struct {
	Accounts    service.AccountService
	Progression service.ProgressionService
	Cashouts    service.CashoutService
	Guilds      service.GuildService
	Lottery     service.LotteryService
	Purchases   service.PurchaseService
	Shop        service.ShopService
	Missions    service.MissionService
	Moderation  service.ModerationService
}

// Bot bridges Discord gateway events to the economy services. Commands,
// modals and rich UI live outside the core; the bot only feeds message
// activity into progression and missions.
type Bot struct {
	session  *discordgo.Session
	services BotServices
	minWords int
}

// NewBot creates a new bot. minWords is the anti-farm floor below which a
// message feeds neither XP nor missions.
func NewBot(session *discordgo.Session, services BotServices, minWords int) *Bot {
	return &Bot{session: session, services: services, minWords: minWords}
}

// Register attaches the gateway handlers
func (b *Bot) Register() {
	b.session.AddHandler(b.onMessageCreate)
}

func (b *Bot) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot {
		return
	}
	memberID, err := strconv.ParseInt(m.Author.ID, 10, 64)
	if err != nil {
		return
	}

	ctx := context.Background()

	if len(strings.Fields(m.Content)) < b.minWords {
		return
	}

	if _, err := b.services.Progression.GrantXP(ctx, memberID, service.MessageActivity(), "message activity"); err != nil {
		log.WithFields(log.Fields{
			"memberID": memberID,
			"error":    err,
		}).Error("Failed to grant message XP")
	}

	if err := b.services.Missions.UpdateProgress(ctx, memberID, "send_message", 1); err != nil {
		log.WithFields(log.Fields{
			"memberID": memberID,
			"error":    err,
		}).Error("Failed to update mission progress")
	}
}
