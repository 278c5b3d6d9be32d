package verification

import (
	"fmt"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/snowflake/v2"

	"github.com/doorkeep/doorkeep/internal/bot/constants"
)

// WelcomeBuilder creates the visual layout for the durable verification
// prompt posted in the welcome channel.
type WelcomeBuilder struct {
	logoURL string
}

// NewWelcomeBuilder creates a new welcome prompt builder.
func NewWelcomeBuilder(logoURL string) *WelcomeBuilder {
	return &WelcomeBuilder{logoURL: logoURL}
}

// Build creates the welcome prompt message with its persistent button.
func (b *WelcomeBuilder) Build() discord.MessageCreate {
	embed := discord.NewEmbedBuilder().
		SetTitle("👋 Welcome to the Server!").
		SetDescription("To access the server, you'll need to complete our verification process.\n\n" +
			"**What to expect:**\n" +
			"• Create a verification ticket\n" +
			"• Schedule a quick onboarding call\n" +
			"• Confirm your booking\n" +
			"• Get verified and gain access!\n\n" +
			"Click the button below to begin.").
		SetColor(constants.BrandEmbedColor).
		SetFooter("Join our community today!", "")

	if b.logoURL != "" {
		embed.SetThumbnail(b.logoURL)
	}

	return discord.NewMessageCreateBuilder().
		SetEmbeds(embed.Build()).
		AddActionRow(
			discord.NewSuccessButton("Start Verification", constants.VerifyButtonCustomID).
				WithEmoji(discord.ComponentEmoji{Name: "🔒"}),
		).
		Build()
}

// TicketBuilder creates the booking prompt posted into a fresh ticket
// channel.
type TicketBuilder struct {
	user         discord.User
	calendlyLink string
	logoURL      string
	expiresAt    time.Time
}

// NewTicketBuilder creates a new ticket prompt builder.
func NewTicketBuilder(user discord.User, calendlyLink, logoURL string, expiresAt time.Time) *TicketBuilder {
	return &TicketBuilder{
		user:         user,
		calendlyLink: calendlyLink,
		logoURL:      logoURL,
		expiresAt:    expiresAt,
	}
}

// Build creates the ticket prompt with the booking link and the confirmation
// button.
func (b *TicketBuilder) Build() discord.MessageCreate {
	expiry := b.expiresAt.Unix()

	embed := discord.NewEmbedBuilder().
		SetTitle("🎉 Welcome to Your Verification Process!").
		SetDescription(fmt.Sprintf(
			"To complete your verification and gain access to the server, please follow these steps:\n\n"+
				"**1.** Book your onboarding call here: [Calendly](%s)\n"+
				"**2.** After booking, click the 'I Have Booked' button below\n\n"+
				"**Note:** This ticket closes <t:%d:R>",
			b.calendlyLink, expiry)).
		AddField("📅 Booking Status", "Pending", true).
		AddField("⏱️ Expires", fmt.Sprintf("<t:%d:f>", expiry), true).
		SetColor(constants.SuccessEmbedColor).
		SetFooter(fmt.Sprintf("User ID: %d", b.user.ID), "")

	if b.logoURL != "" {
		embed.SetThumbnail(b.logoURL)
	}

	return discord.NewMessageCreateBuilder().
		SetContent(fmt.Sprintf("Welcome %s! Let's get you verified.", b.user.Mention())).
		SetEmbeds(embed.Build()).
		AddActionRow(
			discord.NewSuccessButton("I Have Booked", constants.ConfirmBookingButtonCustomID).
				WithEmoji(discord.ComponentEmoji{Name: "✅"}),
		).
		Build()
}

// AlreadyVerifiedMessage acknowledges a click from a member who has already
// completed verification.
func AlreadyVerifiedMessage() discord.MessageCreate {
	return discord.NewMessageCreateBuilder().
		SetEmbeds(discord.NewEmbedBuilder().
			SetTitle("✅ Already Verified").
			SetDescription("You have already completed the verification process!").
			SetColor(constants.SuccessEmbedColor).
			Build()).
		SetEphemeral(true).
		Build()
}

// ActiveTicketMessage points a member at their existing ticket and the
// countdown after which it is removed.
func ActiveTicketMessage(channelID snowflake.ID, closesAt time.Time) discord.MessageCreate {
	return discord.NewMessageCreateBuilder().
		SetEmbeds(discord.NewEmbedBuilder().
			SetTitle("🎫 Active Ticket Found").
			SetDescription(fmt.Sprintf(
				"You already have an active ticket: <#%d>\nThis ticket will auto-close <t:%d:R>",
				channelID, closesAt.Unix())).
			SetColor(constants.WarningEmbedColor).
			Build()).
		SetEphemeral(true).
		Build()
}

// TicketReadyMessage tells the member where their fresh ticket is.
func TicketReadyMessage(channelID snowflake.ID) discord.MessageCreate {
	return discord.NewMessageCreateBuilder().
		SetContent(fmt.Sprintf("✅ Your ticket is ready: <#%d>", channelID)).
		SetEphemeral(true).
		Build()
}

// VerifiedMessage acknowledges a successful booking confirmation.
func VerifiedMessage() discord.MessageCreate {
	return discord.NewMessageCreateBuilder().
		SetContent("✅ Verification complete! Your roles have been restored.").
		SetEphemeral(true).
		Build()
}

// ErrorMessage reports a user-visible failure.
func ErrorMessage(description string) discord.MessageCreate {
	return discord.NewMessageCreateBuilder().
		SetContent("❌ " + description).
		SetEphemeral(true).
		Build()
}
