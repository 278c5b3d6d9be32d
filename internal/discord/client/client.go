// Package client adapts the disgo REST API to the narrow service interfaces
// consumed by the verification core.
package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/rest"
	"github.com/disgoorg/snowflake/v2"

	"github.com/doorkeep/doorkeep/internal/verification"
)

// Client implements the verification platform interfaces on top of a disgo
// REST client.
type Client struct {
	rest rest.Rest
}

var (
	_ verification.RoleService    = (*Client)(nil)
	_ verification.ChannelService = (*Client)(nil)
	_ verification.MessageService = (*Client)(nil)
)

// New wraps a disgo REST client.
func New(restClient rest.Rest) *Client {
	return &Client{rest: restClient}
}

func (c *Client) AddRole(ctx context.Context, guildID, userID, roleID snowflake.ID) error {
	err := c.rest.AddMemberRole(guildID, userID, roleID, rest.WithCtx(ctx))
	if err != nil {
		return mapError(err)
	}

	return nil
}

func (c *Client) RemoveRole(ctx context.Context, guildID, userID, roleID snowflake.ID) error {
	err := c.rest.RemoveMemberRole(guildID, userID, roleID, rest.WithCtx(ctx))
	if err != nil {
		return mapError(err)
	}

	return nil
}

func (c *Client) SetRoles(ctx context.Context, guildID, userID snowflake.ID, roleIDs []snowflake.ID) error {
	if roleIDs == nil {
		roleIDs = []snowflake.ID{}
	}

	_, err := c.rest.UpdateMember(guildID, userID, discord.MemberUpdate{
		Roles: &roleIDs,
	}, rest.WithCtx(ctx))
	if err != nil {
		return mapError(err)
	}

	return nil
}

func (c *Client) GetRole(ctx context.Context, guildID, roleID snowflake.ID) (*discord.Role, error) {
	roles, err := c.rest.GetRoles(guildID, rest.WithCtx(ctx))
	if err != nil {
		return nil, mapError(err)
	}

	for i := range roles {
		if roles[i].ID == roleID {
			return &roles[i], nil
		}
	}

	return nil, fmt.Errorf("role %d: %w", roleID, verification.ErrNotFound)
}

func (c *Client) CreateTextChannel(
	ctx context.Context, guildID snowflake.ID, create discord.GuildTextChannelCreate,
) (snowflake.ID, error) {
	channel, err := c.rest.CreateGuildChannel(guildID, create, rest.WithCtx(ctx))
	if err != nil {
		return 0, mapError(err)
	}

	return channel.ID(), nil
}

func (c *Client) DeleteChannel(ctx context.Context, channelID snowflake.ID) error {
	if err := c.rest.DeleteChannel(channelID, rest.WithCtx(ctx)); err != nil {
		return mapError(err)
	}

	return nil
}

func (c *Client) FindChannelByName(
	ctx context.Context, guildID snowflake.ID, name string,
) (snowflake.ID, bool, error) {
	channels, err := c.rest.GetGuildChannels(guildID, rest.WithCtx(ctx))
	if err != nil {
		return 0, false, mapError(err)
	}

	for _, channel := range channels {
		if channel.Name() == name {
			return channel.ID(), true, nil
		}
	}

	return 0, false, nil
}

func (c *Client) ListChannels(ctx context.Context, guildID snowflake.ID) ([]verification.ChannelInfo, error) {
	channels, err := c.rest.GetGuildChannels(guildID, rest.WithCtx(ctx))
	if err != nil {
		return nil, mapError(err)
	}

	infos := make([]verification.ChannelInfo, 0, len(channels))
	for _, channel := range channels {
		infos = append(infos, verification.ChannelInfo{
			ID:   channel.ID(),
			Name: channel.Name(),
		})
	}

	return infos, nil
}

func (c *Client) SetRolePermission(
	ctx context.Context, channelID, roleID snowflake.ID, allow, deny discord.Permissions,
) error {
	err := c.rest.UpdatePermissionOverwrite(channelID, roleID, discord.RolePermissionOverwriteUpdate{
		Allow: &allow,
		Deny:  &deny,
	}, rest.WithCtx(ctx))
	if err != nil {
		return mapError(err)
	}

	return nil
}

func (c *Client) GetChannelParent(ctx context.Context, channelID snowflake.ID) (snowflake.ID, error) {
	channel, err := c.rest.GetChannel(channelID, rest.WithCtx(ctx))
	if err != nil {
		return 0, mapError(err)
	}

	guildChannel, ok := channel.(discord.GuildChannel)
	if !ok || guildChannel.ParentID() == nil {
		return 0, nil
	}

	return *guildChannel.ParentID(), nil
}

func (c *Client) CreateMessage(
	ctx context.Context, channelID snowflake.ID, message discord.MessageCreate,
) (snowflake.ID, error) {
	created, err := c.rest.CreateMessage(channelID, message, rest.WithCtx(ctx))
	if err != nil {
		return 0, mapError(err)
	}

	return created.ID, nil
}

func (c *Client) DeleteMessage(ctx context.Context, channelID, messageID snowflake.ID) error {
	if err := c.rest.DeleteMessage(channelID, messageID, rest.WithCtx(ctx)); err != nil {
		return mapError(err)
	}

	return nil
}

func (c *Client) GetMessages(
	ctx context.Context, channelID snowflake.ID, limit int,
) ([]discord.Message, error) {
	messages, err := c.rest.GetMessages(channelID, 0, 0, 0, limit, rest.WithCtx(ctx))
	if err != nil {
		return nil, mapError(err)
	}

	return messages, nil
}

// mapError translates Discord REST failures into the core error taxonomy so
// callers can branch without knowing about HTTP.
func mapError(err error) error {
	switch status := restStatus(err); status {
	case http.StatusForbidden:
		return fmt.Errorf("%w: %s", verification.ErrPermissionDenied, err)
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", verification.ErrNotFound, err)
	default:
		return err
	}
}

func restStatus(err error) int {
	var restErr rest.Error
	if errors.As(err, &restErr) && restErr.Response != nil {
		return restErr.Response.StatusCode
	}

	var restErrPtr *rest.Error
	if errors.As(err, &restErrPtr) && restErrPtr.Response != nil {
		return restErrPtr.Response.StatusCode
	}

	return 0
}
