package verification

import (
	"context"
	"fmt"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/snowflake/v2"
	"go.uber.org/zap"
)

// PermissionBootstrap applies the guild-wide channel permission scheme: the
// welcome channel is visible but read-only for everyone including muted
// members, and every other channel is hidden from them until they verify.
type PermissionBootstrap struct {
	channels ChannelService
	logger   *zap.Logger
}

// NewPermissionBootstrap creates the one-shot permission setup component.
func NewPermissionBootstrap(channels ChannelService, logger *zap.Logger) *PermissionBootstrap {
	return &PermissionBootstrap{
		channels: channels,
		logger:   logger,
	}
}

// Apply walks every channel in the guild and sets the overwrites for the
// @everyone role (which shares the guild id) and the muted role. A zero
// mutedRoleID skips the muted overwrites.
func (p *PermissionBootstrap) Apply(ctx context.Context, guildID, welcomeChannelID, mutedRoleID snowflake.ID) error {
	channels, err := p.channels.ListChannels(ctx, guildID)
	if err != nil {
		return fmt.Errorf("failed to list guild channels: %w", err)
	}

	everyoneRoleID := guildID

	for _, channel := range channels {
		var allow, deny discord.Permissions

		if channel.ID == welcomeChannelID {
			allow = discord.PermissionViewChannel
			deny = discord.PermissionSendMessages
		} else {
			deny = discord.PermissionViewChannel
		}

		if err := p.channels.SetRolePermission(ctx, channel.ID, everyoneRoleID, allow, deny); err != nil {
			return fmt.Errorf("failed to set @everyone overwrite on %q: %w", channel.Name, err)
		}

		if mutedRoleID != 0 {
			if err := p.channels.SetRolePermission(ctx, channel.ID, mutedRoleID, allow, deny); err != nil {
				return fmt.Errorf("failed to set muted overwrite on %q: %w", channel.Name, err)
			}
		}

		p.logger.Info("Applied channel permissions",
			zap.Uint64("channel_id", uint64(channel.ID)),
			zap.String("channel_name", channel.Name),
			zap.Bool("welcome", channel.ID == welcomeChannelID))
	}

	return nil
}
