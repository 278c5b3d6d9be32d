package verification

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/snowflake/v2"
	"github.com/sourcegraph/conc"
	"go.uber.org/zap"
)

// Close reasons recorded in logs for ticket teardown.
const (
	CloseReasonExpired   = "expired"
	CloseReasonDuplicate = "duplicate"
	CloseReasonConfirmed = "confirmed"
)

// TicketManagerConfig holds the lifecycle timings of a ticket.
type TicketManagerConfig struct {
	// TicketTTL is how long an untouched ticket stays open.
	TicketTTL time.Duration
	// DuplicateCloseDelay is the countdown shown before a duplicate-detected
	// ticket is removed.
	DuplicateCloseDelay time.Duration
	// ConfirmCloseDelay is the grace period between the success
	// acknowledgment and channel deletion.
	ConfirmCloseDelay time.Duration
}

// DefaultTicketManagerConfig returns the production lifecycle timings.
func DefaultTicketManagerConfig() TicketManagerConfig {
	return TicketManagerConfig{
		TicketTTL:           24 * time.Hour,
		DuplicateCloseDelay: 20 * time.Second,
		ConfirmCloseDelay:   5 * time.Second,
	}
}

// OpenTicketParams describes the ticket channel to create.
type OpenTicketParams struct {
	GuildID     snowflake.ID
	CategoryID  snowflake.ID
	OwnerID     snowflake.ID
	OwnerHandle string
	BotUserID   snowflake.ID
	// Prompt is posted into the fresh channel; it carries the booking link
	// and the confirmation button.
	Prompt discord.MessageCreate
}

// TicketManager drives the ticket lifecycle: channel creation, scheduled
// teardown, and the duplicate/confirmation close paths. Every scheduled close
// is a cancellable timer keyed by the ticket channel, so confirming a ticket
// cancels its pending expiry instead of racing it.
type TicketManager struct {
	channels ChannelService
	messages MessageService
	registry *TicketRegistry
	config   TicketManagerConfig
	logger   *zap.Logger

	mu     sync.Mutex
	timers map[snowflake.ID]*time.Timer
	tasks  conc.WaitGroup
}

// NewTicketManager creates a ticket lifecycle manager.
func NewTicketManager(
	channels ChannelService,
	messages MessageService,
	registry *TicketRegistry,
	config TicketManagerConfig,
	logger *zap.Logger,
) *TicketManager {
	return &TicketManager{
		channels: channels,
		messages: messages,
		registry: registry,
		config:   config,
		logger:   logger,
		timers:   make(map[snowflake.ID]*time.Timer),
	}
}

// Config returns the lifecycle timings in use.
func (m *TicketManager) Config() TicketManagerConfig {
	return m.config
}

// FindOpen returns the member's open ticket if one exists. The registry is
// checked first; the deterministic channel name is used as a fallback so
// tickets created before a process restart are still recognized.
func (m *TicketManager) FindOpen(ctx context.Context, guildID, ownerID snowflake.ID, handle string) (*Ticket, bool) {
	if ticket, ok := m.registry.Find(ownerID); ok {
		return ticket, true
	}

	channelID, ok, err := m.channels.FindChannelByName(ctx, guildID, TicketChannelName(handle))
	if err != nil {
		m.logger.Warn("Ticket name lookup failed",
			zap.Uint64("owner_id", uint64(ownerID)),
			zap.Error(err))

		return nil, false
	}

	if !ok {
		return nil, false
	}

	// Re-adopt the orphaned channel so lifecycle timers apply to it again.
	ticket := &Ticket{
		OwnerID:     ownerID,
		OwnerHandle: handle,
		ChannelID:   channelID,
		CreatedAt:   time.Now(),
	}
	m.registry.Add(ticket)
	m.scheduleClose(ticket, m.config.TicketTTL, CloseReasonExpired)

	m.logger.Info("Adopted pre-existing ticket channel",
		zap.Uint64("owner_id", uint64(ownerID)),
		zap.Uint64("channel_id", uint64(channelID)))

	return ticket, true
}

// ConfirmTicket resolves which ticket a booking confirmation inside channelID
// applies to. Confirming inside another member's ticket channel returns
// ErrPermissionDenied. A channel the registry does not know about (created
// before a process restart) is honored with a synthesized record for the
// channel itself.
func (m *TicketManager) ConfirmTicket(channelID, userID snowflake.ID, handle string) (*Ticket, error) {
	if ticket, ok := m.registry.FindByChannel(channelID); ok {
		if ticket.OwnerID != userID {
			return nil, fmt.Errorf("ticket %d belongs to member %d: %w",
				channelID, ticket.OwnerID, ErrPermissionDenied)
		}

		return ticket, nil
	}

	return &Ticket{
		OwnerID:     userID,
		OwnerHandle: handle,
		ChannelID:   channelID,
		CreatedAt:   time.Now(),
	}, nil
}

// Open creates the private ticket channel, posts the booking prompt, and
// schedules the expiry timer. The channel is visible only to the member and
// the bot.
func (m *TicketManager) Open(ctx context.Context, params OpenTicketParams) (*Ticket, error) {
	channelID, err := m.channels.CreateTextChannel(ctx, params.GuildID, discord.GuildTextChannelCreate{
		Name:     TicketChannelName(params.OwnerHandle),
		ParentID: params.CategoryID,
		PermissionOverwrites: []discord.PermissionOverwrite{
			discord.MemberPermissionOverwrite{
				UserID: params.OwnerID,
				Allow:  discord.PermissionViewChannel | discord.PermissionSendMessages | discord.PermissionReadMessageHistory,
			},
			discord.MemberPermissionOverwrite{
				UserID: params.BotUserID,
				Allow:  discord.PermissionViewChannel | discord.PermissionSendMessages | discord.PermissionReadMessageHistory,
			},
			discord.RolePermissionOverwrite{
				// The @everyone role shares the guild id.
				RoleID: params.GuildID,
				Deny:   discord.PermissionViewChannel,
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create ticket channel: %w", err)
	}

	ticket := &Ticket{
		OwnerID:     params.OwnerID,
		OwnerHandle: params.OwnerHandle,
		ChannelID:   channelID,
		CreatedAt:   time.Now(),
	}
	m.registry.Add(ticket)

	if _, err := m.messages.CreateMessage(ctx, channelID, params.Prompt); err != nil {
		// A ticket without its booking prompt is unusable; tear it down.
		m.registry.Remove(ticket)

		if deleteErr := m.channels.DeleteChannel(ctx, channelID); deleteErr != nil {
			m.logger.Warn("Failed to remove unusable ticket channel",
				zap.Uint64("channel_id", uint64(channelID)),
				zap.Error(deleteErr))
		}

		return nil, fmt.Errorf("failed to post booking prompt: %w", err)
	}

	m.scheduleClose(ticket, m.config.TicketTTL, CloseReasonExpired)

	m.logger.Info("Opened verification ticket",
		zap.Uint64("owner_id", uint64(params.OwnerID)),
		zap.String("owner_handle", params.OwnerHandle),
		zap.Uint64("channel_id", uint64(channelID)))

	return ticket, nil
}

// ScheduleClose arranges for the ticket to be torn down after the given
// delay, replacing any timer already pending for it.
func (m *TicketManager) ScheduleClose(ticket *Ticket, delay time.Duration, reason string) {
	m.scheduleClose(ticket, delay, reason)
}

// Stop cancels every pending timer and waits for in-flight closes to finish.
// Tickets stay open; their channels remain discoverable by name after a
// restart.
func (m *TicketManager) Stop() {
	m.mu.Lock()
	for channelID, timer := range m.timers {
		timer.Stop()
		delete(m.timers, channelID)
	}
	m.mu.Unlock()

	m.tasks.Wait()
}

func (m *TicketManager) scheduleClose(ticket *Ticket, delay time.Duration, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if timer, ok := m.timers[ticket.ChannelID]; ok {
		timer.Stop()
	}

	m.timers[ticket.ChannelID] = time.AfterFunc(delay, func() {
		m.tasks.Go(func() {
			m.close(context.Background(), ticket, reason)
		})
	})
}

// close tears the ticket down. Deletion of an already-gone channel is logged
// and swallowed, never retried.
func (m *TicketManager) close(ctx context.Context, ticket *Ticket, reason string) {
	m.mu.Lock()
	delete(m.timers, ticket.ChannelID)
	m.mu.Unlock()

	m.registry.Remove(ticket)

	if err := m.channels.DeleteChannel(ctx, ticket.ChannelID); err != nil {
		if errors.Is(err, ErrNotFound) {
			m.logger.Debug("Ticket channel already deleted",
				zap.Uint64("channel_id", uint64(ticket.ChannelID)),
				zap.String("reason", reason))

			return
		}

		m.logger.Warn("Could not delete ticket channel",
			zap.Uint64("channel_id", uint64(ticket.ChannelID)),
			zap.String("reason", reason),
			zap.Error(err))

		return
	}

	m.logger.Info("Closed verification ticket",
		zap.Uint64("owner_id", uint64(ticket.OwnerID)),
		zap.Uint64("channel_id", uint64(ticket.ChannelID)),
		zap.String("reason", reason))
}
