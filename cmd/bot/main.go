package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/disgoorg/disgo/rest"
	"github.com/disgoorg/snowflake/v2"
	"github.com/urfave/cli/v3"

	"github.com/doorkeep/doorkeep/internal/bot"
	"github.com/doorkeep/doorkeep/internal/discord/client"
	"github.com/doorkeep/doorkeep/internal/setup"
	"github.com/doorkeep/doorkeep/internal/verification"
)

// BotLogDir specifies where bot log files are stored.
const BotLogDir = "logs/bot_logs"

func main() {
	app := &cli.Command{
		Name:  "doorkeep",
		Usage: "Start the onboarding verification bot",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "log-dir",
				Value: BotLogDir,
				Usage: "Directory for session log files",
			},
		},
		Action: func(_ context.Context, c *cli.Command) error {
			return run(c.String("log-dir"))
		},
		Commands: []*cli.Command{
			{
				Name:  "setup-permissions",
				Usage: "Apply the gated channel permission scheme to the guild and exit",
				Action: func(ctx context.Context, c *cli.Command) error {
					return setupPermissions(ctx, c.String("log-dir"))
				},
			},
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		log.Fatalf("Error: %v", err)
	}
}

func run(logDir string) error {
	// Initialize application with required dependencies
	app, err := setup.InitializeApp(logDir)
	if err != nil {
		return err
	}
	defer app.CleanupApp()

	// Create bot instance
	discordBot, err := bot.New(app.Config, app.Logger)
	if err != nil {
		return err
	}

	// Start the bot and connect to Discord
	if err := discordBot.Start(); err != nil {
		return err
	}

	log.Println("Bot has been started. Waiting for interrupt signal to gracefully shutdown...")

	// Wait for interrupt signal to gracefully shutdown the bot
	// This ensures all pending events are processed before closing
	sc := make(chan os.Signal, 1)
	signal.Notify(sc, syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	<-sc

	// Cleanly close down the Discord session
	discordBot.Close()

	return nil
}

// setupPermissions runs the one-shot channel permission bootstrap over REST,
// without opening a gateway connection.
func setupPermissions(ctx context.Context, logDir string) error {
	app, err := setup.InitializeApp(logDir)
	if err != nil {
		return err
	}
	defer app.CleanupApp()

	restClient := rest.New(rest.NewClient(app.Config.Bot.Discord.Token))
	platform := client.New(restClient)

	bootstrap := verification.NewPermissionBootstrap(platform, app.Logger)

	return bootstrap.Apply(ctx,
		snowflake.ID(app.Config.Bot.Discord.GuildID),
		snowflake.ID(app.Config.Bot.Discord.WelcomeChannelID),
		snowflake.ID(app.Config.Bot.Verification.MutedRoleID),
	)
}
