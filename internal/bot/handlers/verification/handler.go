// Package verification contains the event handlers driving the onboarding
// flow: member muting on join, ticket creation from the welcome prompt, and
// booking confirmation.
package verification

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/snowflake/v2"
	"go.uber.org/zap"

	verifview "github.com/doorkeep/doorkeep/internal/bot/views/verification"
	"github.com/doorkeep/doorkeep/internal/setup/config"
	"github.com/doorkeep/doorkeep/internal/verification"
)

// welcomeResolveRetries bounds the startup backoff while waiting for the
// welcome channel to become visible over REST.
const welcomeResolveRetries = 5

// Handler reacts to gateway events for the configured guild.
type Handler struct {
	config   config.BotConfig
	channels verification.ChannelService
	roles    verification.RoleService
	gate     *verification.MuteGate
	tickets  *verification.TicketManager
	welcome  *verification.WelcomeManager
	logger   *zap.Logger

	botUserID atomic.Uint64
}

// NewHandler creates the verification event handler.
func NewHandler(
	cfg config.BotConfig,
	channels verification.ChannelService,
	roles verification.RoleService,
	gate *verification.MuteGate,
	tickets *verification.TicketManager,
	welcome *verification.WelcomeManager,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		config:   cfg,
		channels: channels,
		roles:    roles,
		gate:     gate,
		tickets:  tickets,
		welcome:  welcome,
		logger:   logger,
	}
}

// OnReady republishes the verification prompt in the welcome channel. The
// channel is resolved with backoff because REST visibility can lag the
// gateway session becoming ready.
func (h *Handler) OnReady(event *events.Ready) {
	h.botUserID.Store(uint64(event.User.ID))
	h.logger.Info("Bot is ready", zap.String("username", event.User.Username))

	ctx := context.Background()
	welcomeChannelID := snowflake.ID(h.config.Discord.WelcomeChannelID)

	if welcomeChannelID == 0 {
		h.logger.Error("Welcome channel id not configured, skipping prompt")
		return
	}

	resolve := func() error {
		_, err := h.channels.GetChannelParent(ctx, welcomeChannelID)
		return err
	}
	if err := backoff.Retry(resolve, backoff.WithMaxRetries(backoff.NewExponentialBackOff(), welcomeResolveRetries)); err != nil {
		h.logger.Error("Could not resolve welcome channel",
			zap.Uint64("channel_id", h.config.Discord.WelcomeChannelID),
			zap.Error(err))

		return
	}

	prompt := verifview.NewWelcomeBuilder(h.config.Verification.CompanyLogoURL).Build()
	if _, err := h.welcome.Publish(ctx, welcomeChannelID, snowflake.ID(h.botUserID.Load()), prompt); err != nil {
		h.logger.Error("Failed to publish welcome prompt", zap.Error(err))
	}
}

// OnMemberJoin mutes the new member and snapshots their roles.
func (h *Handler) OnMemberJoin(event *events.GuildMemberJoin) {
	if uint64(event.GuildID) != h.config.Discord.GuildID {
		return
	}

	if err := h.gate.OnJoin(context.Background(), event.GuildID, event.Member); err != nil {
		h.logger.Error("Error handling member join",
			zap.Uint64("user_id", uint64(event.Member.User.ID)),
			zap.Error(err))
	}
}

// OnVerifyButton handles a click on the welcome prompt: graduated members get
// an acknowledgment, members with an open ticket get the duplicate countdown,
// everyone else gets a fresh ticket.
func (h *Handler) OnVerifyButton(event *events.ComponentInteractionCreate) {
	if err := event.DeferCreateMessage(true); err != nil {
		h.logger.Error("Failed to defer verify interaction", zap.Error(err))
		return
	}

	ctx := context.Background()
	user := event.User()
	guildID := h.guildID(event)

	// Component interactions outside a guild carry no member payload.
	member := event.Member()
	if member == nil {
		h.followup(event, verifview.ErrorMessage("Verification is only available inside the server"))
		return
	}

	// Previously-verified members can re-click without side effects.
	if verification.IsGraduated(
		member.RoleIDs,
		snowflake.ID(h.config.Verification.MutedRoleID),
		h.config.Verification.GraduatedRoleIDs,
	) {
		h.followup(event, verifview.AlreadyVerifiedMessage())
		return
	}

	// At most one open ticket per member. A second click shows the existing
	// ticket and schedules its removal after the countdown.
	if ticket, ok := h.tickets.FindOpen(ctx, guildID, user.ID, user.Username); ok {
		delay := h.tickets.Config().DuplicateCloseDelay
		h.followup(event, verifview.ActiveTicketMessage(ticket.ChannelID, time.Now().Add(delay)))
		h.tickets.ScheduleClose(ticket, delay, verification.CloseReasonDuplicate)

		h.logger.Info("Duplicate verification click",
			zap.Uint64("user_id", uint64(user.ID)),
			zap.Uint64("channel_id", uint64(ticket.ChannelID)))

		return
	}

	// The ticket lives under the same category as the welcome channel.
	categoryID, err := h.channels.GetChannelParent(ctx, snowflake.ID(h.config.Discord.WelcomeChannelID))
	if err != nil {
		h.logger.Warn("Could not resolve welcome channel category", zap.Error(err))
	}

	expiresAt := time.Now().Add(h.tickets.Config().TicketTTL)
	prompt := verifview.NewTicketBuilder(
		user,
		h.config.Verification.CalendlyLink,
		h.config.Verification.CompanyLogoURL,
		expiresAt,
	).Build()

	ticket, err := h.tickets.Open(ctx, verification.OpenTicketParams{
		GuildID:     guildID,
		CategoryID:  categoryID,
		OwnerID:     user.ID,
		OwnerHandle: user.Username,
		BotUserID:   snowflake.ID(h.botUserID.Load()),
		Prompt:      prompt,
	})
	if err != nil {
		h.logger.Error("Failed to open verification ticket",
			zap.Uint64("user_id", uint64(user.ID)),
			zap.Error(err))
		h.followup(event, verifview.ErrorMessage("Error creating your verification ticket"))

		return
	}

	h.followup(event, verifview.TicketReadyMessage(ticket.ChannelID))
}

// OnConfirmButton handles the booking confirmation inside a ticket channel.
// Each step fails independently; role mutations already applied are never
// rolled back.
func (h *Handler) OnConfirmButton(event *events.ComponentInteractionCreate) {
	if err := event.DeferCreateMessage(true); err != nil {
		h.logger.Error("Failed to defer confirm interaction", zap.Error(err))
		return
	}

	ctx := context.Background()
	user := event.User()
	guildID := h.guildID(event)
	channelID := event.Channel().ID()

	mutedRoleID := snowflake.ID(h.config.Verification.MutedRoleID)
	if mutedRoleID == 0 {
		h.logger.Error("Muted role id not configured")
		h.followup(event, verifview.ErrorMessage("Configuration error: Muted role ID not set"))

		return
	}

	if _, err := h.roles.GetRole(ctx, guildID, mutedRoleID); err != nil {
		h.logger.Error("Muted role not found in guild",
			zap.Uint64("role_id", h.config.Verification.MutedRoleID),
			zap.Error(err))
		h.followup(event, verifview.ErrorMessage("Muted role not found"))

		return
	}

	// Channel visibility already restricts who can click, but ownership is
	// checked explicitly as well: the confirmation applies to the ticket
	// backing this channel, and only its owner may confirm it.
	ticket, err := h.tickets.ConfirmTicket(channelID, user.ID, user.Username)
	if err != nil {
		h.logger.Warn("Rejected booking confirmation from non-owner",
			zap.Uint64("user_id", uint64(user.ID)),
			zap.Uint64("channel_id", uint64(channelID)),
			zap.Error(err))
		h.followup(event, verifview.ErrorMessage("Only the ticket owner can confirm a booking"))

		return
	}

	if err := h.gate.Unmute(ctx, guildID, user.ID); err != nil {
		h.logger.Error("Failed to remove muted role",
			zap.Uint64("user_id", uint64(user.ID)),
			zap.Error(err))

		if errors.Is(err, verification.ErrPermissionDenied) {
			h.followup(event, verifview.ErrorMessage("Bot lacks required permissions"))
		} else {
			h.followup(event, verifview.ErrorMessage("Error during verification"))
		}

		return
	}

	if err := h.gate.Restore(ctx, guildID, user.ID); err != nil {
		h.logger.Error("Error restoring roles",
			zap.Uint64("user_id", uint64(user.ID)),
			zap.Error(err))
		h.followup(event, verifview.ErrorMessage("Error during verification"))

		return
	}

	h.followup(event, verifview.VerifiedMessage())
	h.tickets.ScheduleClose(ticket, h.tickets.Config().ConfirmCloseDelay, verification.CloseReasonConfirmed)

	h.logger.Info("Member completed verification",
		zap.Uint64("user_id", uint64(user.ID)),
		zap.String("username", user.Username))
}

// guildID returns the interaction's guild, falling back to the configured
// guild for safety.
func (h *Handler) guildID(event *events.ComponentInteractionCreate) snowflake.ID {
	if id := event.GuildID(); id != nil {
		return *id
	}

	return snowflake.ID(h.config.Discord.GuildID)
}

// followup sends an ephemeral followup for a deferred interaction.
func (h *Handler) followup(event *events.ComponentInteractionCreate, message discord.MessageCreate) {
	_, err := event.Client().Rest().CreateFollowupMessage(event.ApplicationID(), event.Token(), message)
	if err != nil {
		h.logger.Error("Failed to send interaction followup", zap.Error(err))
	}
}
