package discord

import (
	"context"
	"strconv"

	"github.com/bwmarrin/discordgo"
	log "github.com/sirupsen/logrus"
)

// Notifier delivers direct messages over Discord. Undeliverable messages
// (blocked or closed DMs) are logged and swallowed, never escalated.
type Notifier struct {
	session *discordgo.Session
}

// NewNotifier creates a new DM notifier
func NewNotifier(session *discordgo.Session) *Notifier {
	return &Notifier{session: session}
}

// DirectMessage sends a DM to the member, failing silently
func (n *Notifier) DirectMessage(ctx context.Context, memberID int64, content string) {
	userID := strconv.FormatInt(memberID, 10)

	channel, err := n.session.UserChannelCreate(userID)
	if err != nil {
		log.WithFields(log.Fields{
			"memberID": memberID,
			"error":    err,
		}).Debug("Could not open DM channel")
		return
	}

	if _, err := n.session.ChannelMessageSend(channel.ID, content); err != nil {
		log.WithFields(log.Fields{
			"memberID": memberID,
			"error":    err,
		}).Debug("Could not deliver DM")
	}
}
