// Package bot wires the Discord client to the verification flow.
package bot

import (
	"context"
	"time"

	"github.com/disgoorg/disgo"
	disgobot "github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/disgo/gateway"
	"github.com/disgoorg/snowflake/v2"
	"go.uber.org/zap"

	"github.com/doorkeep/doorkeep/internal/bot/constants"
	verifhandler "github.com/doorkeep/doorkeep/internal/bot/handlers/verification"
	"github.com/doorkeep/doorkeep/internal/discord/client"
	"github.com/doorkeep/doorkeep/internal/setup/config"
	"github.com/doorkeep/doorkeep/internal/verification"
)

// Bot holds the Discord client and the verification components it drives.
// New members are muted on join, offered a self-service ticket through the
// welcome prompt, and restored on booking confirmation.
type Bot struct {
	client  disgobot.Client
	handler *verifhandler.Handler
	tickets *verification.TicketManager
	logger  *zap.Logger
}

// New initializes a Bot instance by creating the verification components and
// configuring the Discord client with the required gateway intents and event
// listeners.
func New(cfg *config.Config, logger *zap.Logger) (*Bot, error) {
	b := &Bot{logger: logger}

	discordClient, err := disgo.New(cfg.Bot.Discord.Token,
		disgobot.WithGatewayConfigOpts(
			gateway.WithIntents(
				gateway.IntentGuilds,
				gateway.IntentGuildMembers,
				gateway.IntentGuildMessages,
			),
			gateway.WithPresenceOpts(
				gateway.WithOnlineStatus(discord.OnlineStatusDND),
			),
		),
		disgobot.WithEventListeners(&events.ListenerAdapter{
			OnReady:                b.handleReady,
			OnGuildMemberJoin:      b.handleMemberJoin,
			OnComponentInteraction: b.handleComponentInteraction,
		}),
	)
	if err != nil {
		return nil, err
	}

	platform := client.New(discordClient.Rest())

	store := verification.NewMemorySnapshotStore()
	gate := verification.NewMuteGate(platform, store, snowflake.ID(cfg.Bot.Verification.MutedRoleID), logger)
	registry := verification.NewTicketRegistry()
	tickets := verification.NewTicketManager(
		platform, platform, registry, verification.DefaultTicketManagerConfig(), logger,
	)
	welcome := verification.NewWelcomeManager(platform, constants.WelcomeMessageFile, logger)

	b.client = discordClient
	b.tickets = tickets
	b.handler = verifhandler.NewHandler(cfg.Bot, platform, platform, gate, tickets, welcome, logger)

	return b, nil
}

// Start opens the gateway connection.
func (b *Bot) Start() error {
	b.logger.Info("Starting bot")
	return b.client.OpenGateway(context.Background())
}

// Close cancels pending ticket timers and shuts down the gateway connection.
func (b *Bot) Close() {
	b.logger.Info("Closing bot")
	b.tickets.Stop()
	b.client.Close(context.Background())
}

func (b *Bot) handleReady(event *events.Ready) {
	go func() {
		defer b.recoverPanic("ready")
		b.handler.OnReady(event)
	}()
}

func (b *Bot) handleMemberJoin(event *events.GuildMemberJoin) {
	go func() {
		defer b.recoverPanic("member join")
		b.handler.OnMemberJoin(event)
	}()
}

// handleComponentInteraction dispatches button clicks in a goroutine so one
// member's slow flow never blocks another's events.
func (b *Bot) handleComponentInteraction(event *events.ComponentInteractionCreate) {
	go func() {
		start := time.Now()
		customID := event.Data.CustomID()

		defer func() {
			if r := recover(); r != nil {
				b.logger.Error("Panic in component interaction handler",
					zap.String("custom_id", customID),
					zap.Any("panic", r))
			}

			b.logger.Debug("Component interaction handled",
				zap.String("custom_id", customID),
				zap.Duration("duration", time.Since(start)))
		}()

		switch customID {
		case constants.VerifyButtonCustomID:
			b.handler.OnVerifyButton(event)
		case constants.ConfirmBookingButtonCustomID:
			b.handler.OnConfirmButton(event)
		}
	}()
}

func (b *Bot) recoverPanic(scope string) {
	if r := recover(); r != nil {
		b.logger.Error("Panic in event handler",
			zap.String("scope", scope),
			zap.Any("panic", r))
	}
}
