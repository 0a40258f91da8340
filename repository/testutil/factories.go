package testutil

import (
	"strings"

	"guildhall/models"

	"github.com/google/uuid"
)

// CreateTestGuild creates a guild with sensible defaults, owned and
// initially populated by ownerID.
func CreateTestGuild(name string, ownerID int64) *models.Guild {
	return &models.Guild{
		ID:                 uuid.New(),
		Name:               name,
		NameLower:          strings.ToLower(name),
		OwnerID:            ownerID,
		Members:            []int64{ownerID},
		Color:              "#ff8800",
		RoleHandle:         "role-9001",
		TextChannelHandle:  "text-9002",
		VoiceChannelHandle: "voice-9003",
	}
}
