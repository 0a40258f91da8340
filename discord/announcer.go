package discord

import (
	"context"
	"fmt"
	"strconv"

	"guildhall/config"

	"github.com/bwmarrin/discordgo"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// Announcer posts to the configured announcement channels. An unset
// channel ID makes that announcement unavailable.
type Announcer struct {
	session *discordgo.Session
	cfg     *config.Config
}

// NewAnnouncer creates a new channel announcer
func NewAnnouncer(session *discordgo.Session, cfg *config.Config) *Announcer {
	return &Announcer{session: session, cfg: cfg}
}

// AnnounceCashoutRequest posts a withdrawal request for staff review and
// returns the identity of the posted message, which keys the pending
// record the staff resolves later.
func (a *Announcer) AnnounceCashoutRequest(ctx context.Context, memberID int64, credits, currency decimal.Decimal, payoutAddress string) (int64, error) {
	if a.cfg.CashoutChannelID == "" {
		return 0, fmt.Errorf("cashout channel is not configured")
	}

	content := fmt.Sprintf(
		"**Cashout request** from <@%d>\nCredits: %s\nPayout: %s\nAddress: `%s`",
		memberID, credits.StringFixed(2), currency.StringFixed(2), payoutAddress,
	)
	msg, err := a.session.ChannelMessageSend(a.cfg.CashoutChannelID, content)
	if err != nil {
		return 0, fmt.Errorf("failed to announce cashout request: %w", err)
	}

	messageID, err := strconv.ParseInt(msg.ID, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("unexpected message id %q: %w", msg.ID, err)
	}
	return messageID, nil
}

// Announce posts content to the given channel, logging delivery failures
func (a *Announcer) Announce(channelID, content string) {
	if channelID == "" {
		return
	}
	if _, err := a.session.ChannelMessageSend(channelID, content); err != nil {
		log.WithFields(log.Fields{
			"channelID": channelID,
			"error":     err,
		}).Error("Failed to post announcement")
	}
}
