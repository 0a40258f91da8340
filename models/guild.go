package models

import (
	"time"

	"github.com/google/uuid"
)

// Guild is a member-created crew competing on weekly XP. Role and channel
// handles are opaque identifiers owned by the chat front end.
type Guild struct {
	ID                 uuid.UUID `db:"id"`
	Name               string    `db:"name"`
	NameLower          string    `db:"name_lower"`
	OwnerID            int64     `db:"owner_id"`
	Members            []int64   `db:"members"`
	WeeklyXP           int64     `db:"weekly_xp"`
	Color              string    `db:"color"`
	RoleHandle         string    `db:"role_handle"`
	TextChannelHandle  string    `db:"text_channel_handle"`
	VoiceChannelHandle string    `db:"voice_channel_handle"`
	CreatedAt          time.Time `db:"created_at"`
}

// HasMember reports whether the member belongs to the guild.
func (g *Guild) HasMember(memberID int64) bool {
	for _, m := range g.Members {
		if m == memberID {
			return true
		}
	}
	return false
}
