package repository

import (
	"context"
	"fmt"

	"guildhall/database"
	"guildhall/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// GuildRepository implements the GuildRepository interface
type GuildRepository struct {
	q queryable
}

// NewGuildRepository creates a new guild repository
func NewGuildRepository(db *database.DB) *GuildRepository {
	return &GuildRepository{q: db.Pool}
}

// newGuildRepositoryWithTx creates a new guild repository with a transaction
func newGuildRepositoryWithTx(tx queryable) *GuildRepository {
	return &GuildRepository{q: tx}
}

const guildColumns = `
	id, name, name_lower, owner_id, members, weekly_xp, color,
	role_handle, text_channel_handle, voice_channel_handle, created_at`

func scanGuild(row pgx.Row) (*models.Guild, error) {
	var g models.Guild
	err := row.Scan(
		&g.ID,
		&g.Name,
		&g.NameLower,
		&g.OwnerID,
		&g.Members,
		&g.WeeklyXP,
		&g.Color,
		&g.RoleHandle,
		&g.TextChannelHandle,
		&g.VoiceChannelHandle,
		&g.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &g, nil
}

// Create inserts a new guild
func (r *GuildRepository) Create(ctx context.Context, guild *models.Guild) error {
	query := `
		INSERT INTO guilds (id, name, name_lower, owner_id, members, color,
			role_handle, text_channel_handle, voice_channel_handle)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at
	`
	err := r.q.QueryRow(ctx, query,
		guild.ID, guild.Name, guild.NameLower, guild.OwnerID, guild.Members,
		guild.Color, guild.RoleHandle, guild.TextChannelHandle, guild.VoiceChannelHandle,
	).Scan(&guild.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create guild %q: %w", guild.Name, err)
	}
	return nil
}

// GetByID retrieves a guild, or nil if it no longer exists
func (r *GuildRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Guild, error) {
	query := `SELECT ` + guildColumns + ` FROM guilds WHERE id = $1`
	guild, err := scanGuild(r.q.QueryRow(ctx, query, id))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get guild %s: %w", id, err)
	}
	return guild, nil
}

// GetByNameLower retrieves a guild by its lowercased name, or nil
func (r *GuildRepository) GetByNameLower(ctx context.Context, nameLower string) (*models.Guild, error) {
	query := `SELECT ` + guildColumns + ` FROM guilds WHERE name_lower = $1`
	guild, err := scanGuild(r.q.QueryRow(ctx, query, nameLower))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get guild %q: %w", nameLower, err)
	}
	return guild, nil
}

// AddMember appends a member to the guild roster. Adding a member who is
// already on the roster is a no-op.
func (r *GuildRepository) AddMember(ctx context.Context, id uuid.UUID, memberID int64) error {
	query := `
		UPDATE guilds
		SET members = array_append(members, $2)
		WHERE id = $1 AND NOT ($2 = ANY(members))
	`
	if _, err := r.q.Exec(ctx, query, id, memberID); err != nil {
		return fmt.Errorf("failed to add member %d to guild %s: %w", memberID, id, err)
	}
	return nil
}

// RemoveMember removes a member from the guild roster
func (r *GuildRepository) RemoveMember(ctx context.Context, id uuid.UUID, memberID int64) error {
	query := `UPDATE guilds SET members = array_remove(members, $2) WHERE id = $1`
	if _, err := r.q.Exec(ctx, query, id, memberID); err != nil {
		return fmt.Errorf("failed to remove member %d from guild %s: %w", memberID, id, err)
	}
	return nil
}

// IncrementWeeklyXP adds to the guild's weekly XP tally. Reports false
// when the guild no longer exists, which callers treat as a silent skip.
func (r *GuildRepository) IncrementWeeklyXP(ctx context.Context, id uuid.UUID, amount int64) (bool, error) {
	query := `UPDATE guilds SET weekly_xp = weekly_xp + $2 WHERE id = $1`
	result, err := r.q.Exec(ctx, query, id, amount)
	if err != nil {
		return false, fmt.Errorf("failed to increment weekly XP for guild %s: %w", id, err)
	}
	return result.RowsAffected() > 0, nil
}

// TopByWeeklyXP returns up to limit guilds with weekly XP above zero,
// best first
func (r *GuildRepository) TopByWeeklyXP(ctx context.Context, limit int) ([]*models.Guild, error) {
	query := `SELECT ` + guildColumns + `
		FROM guilds
		WHERE weekly_xp > 0
		ORDER BY weekly_xp DESC
		LIMIT $1`

	rows, err := r.q.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get guild leaders: %w", err)
	}
	defer rows.Close()

	var guilds []*models.Guild
	for rows.Next() {
		guild, err := scanGuild(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan guild: %w", err)
		}
		guilds = append(guilds, guild)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate guilds: %w", err)
	}
	return guilds, nil
}

// ResetAllWeeklyXP zeroes weekly XP on every guild. Idempotent.
func (r *GuildRepository) ResetAllWeeklyXP(ctx context.Context) error {
	query := `UPDATE guilds SET weekly_xp = 0 WHERE weekly_xp <> 0`
	if _, err := r.q.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to reset guild weekly XP: %w", err)
	}
	return nil
}
