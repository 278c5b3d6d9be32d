package verification

import (
	"context"
	"errors"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/snowflake/v2"
)

var (
	// ErrNotFound indicates a referenced role or channel does not exist.
	ErrNotFound = errors.New("resource not found")
	// ErrPermissionDenied indicates the platform rejected a mutation.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrConfigMissing indicates a required configuration value is absent.
	ErrConfigMissing = errors.New("required configuration value missing")
)

// RoleService mutates and inspects member role assignments. Implementations
// wrap the Discord REST API; tests substitute in-memory fakes.
type RoleService interface {
	// AddRole grants a single role to a member.
	AddRole(ctx context.Context, guildID, userID, roleID snowflake.ID) error
	// RemoveRole revokes a single role from a member.
	RemoveRole(ctx context.Context, guildID, userID, roleID snowflake.ID) error
	// SetRoles replaces a member's full role set in one call.
	SetRoles(ctx context.Context, guildID, userID snowflake.ID, roleIDs []snowflake.ID) error
	// GetRole resolves a role by id. Returns ErrNotFound if the guild has no
	// such role.
	GetRole(ctx context.Context, guildID, roleID snowflake.ID) (*discord.Role, error)
}

// ChannelService manages guild channels.
type ChannelService interface {
	// CreateTextChannel creates a guild text channel and returns its id.
	CreateTextChannel(ctx context.Context, guildID snowflake.ID, create discord.GuildTextChannelCreate) (snowflake.ID, error)
	// DeleteChannel removes a channel. Deleting an already-removed channel
	// returns an error wrapping ErrNotFound.
	DeleteChannel(ctx context.Context, channelID snowflake.ID) error
	// FindChannelByName returns the id of the guild channel with the exact
	// given name, or false if none exists.
	FindChannelByName(ctx context.Context, guildID snowflake.ID, name string) (snowflake.ID, bool, error)
	// GetChannelParent returns the category a channel sits under, or zero if
	// it is uncategorized.
	GetChannelParent(ctx context.Context, channelID snowflake.ID) (snowflake.ID, error)
	// ListChannels returns every channel in the guild.
	ListChannels(ctx context.Context, guildID snowflake.ID) ([]ChannelInfo, error)
	// SetRolePermission sets a role permission overwrite on a channel.
	SetRolePermission(ctx context.Context, channelID, roleID snowflake.ID, allow, deny discord.Permissions) error
}

// ChannelInfo identifies a guild channel for lookups that do not need the
// full channel payload.
type ChannelInfo struct {
	ID   snowflake.ID
	Name string
}

// MessageService sends and removes channel messages.
type MessageService interface {
	// CreateMessage posts a message and returns its id.
	CreateMessage(ctx context.Context, channelID snowflake.ID, message discord.MessageCreate) (snowflake.ID, error)
	// DeleteMessage removes a single message.
	DeleteMessage(ctx context.Context, channelID, messageID snowflake.ID) error
	// GetMessages fetches up to limit of the most recent messages.
	GetMessages(ctx context.Context, channelID snowflake.ID, limit int) ([]discord.Message, error)
}
