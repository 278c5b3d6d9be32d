package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

var (
	ErrConfigFileNotFound    = errors.New("could not find config file in any config path")
	ErrConfigVersionMissing  = errors.New("config file is missing version field")
	ErrConfigVersionMismatch = errors.New("config file version mismatch")
)

// EnvPrefix is the prefix for environment variable overrides, e.g.
// DOORKEEP_BOT_DISCORD_TOKEN overrides bot.discord.token.
const EnvPrefix = "DOORKEEP_"

// envKeys maps environment variable names (minus the prefix) to config key
// paths. The config keys themselves contain underscores, so section
// boundaries cannot be recovered mechanically from the flat env form.
var envKeys = map[string]string{
	"BOT_VERSION":                         "bot.version",
	"BOT_DEBUG_LOG_LEVEL":                 "bot.debug.log_level",
	"BOT_DEBUG_MAX_LOGS_TO_KEEP":          "bot.debug.max_logs_to_keep",
	"BOT_DISCORD_TOKEN":                   "bot.discord.token",
	"BOT_DISCORD_GUILD_ID":                "bot.discord.guild_id",
	"BOT_DISCORD_WELCOME_CHANNEL_ID":      "bot.discord.welcome_channel_id",
	"BOT_VERIFICATION_CALENDLY_LINK":      "bot.verification.calendly_link",
	"BOT_VERIFICATION_COMPANY_LOGO_URL":   "bot.verification.company_logo_url",
	"BOT_VERIFICATION_MUTED_ROLE_ID":      "bot.verification.muted_role_id",
	"BOT_VERIFICATION_GRADUATED_ROLE_IDS": "bot.verification.graduated_role_ids",
}

// Current version of the config file.
const CurrentBotVersion = 1

// Config represents the entire application configuration.
type Config struct {
	Bot BotConfig
}

// BotConfig contains Discord bot specific configuration.
type BotConfig struct {
	// Version of the bot config.
	Version int `koanf:"version"`
	// Debug contains logging and diagnostics settings.
	Debug Debug `koanf:"debug"`
	// Discord contains gateway credentials and target ids.
	Discord Discord `koanf:"discord"`
	// Verification contains the onboarding flow settings.
	Verification Verification `koanf:"verification"`
}

// Debug contains debug-related configuration.
type Debug struct {
	// Log level (debug, info, warn, error).
	LogLevel string `koanf:"log_level"`
	// Maximum log session directories to keep.
	MaxLogsToKeep int `koanf:"max_logs_to_keep"`
}

// Discord contains gateway credentials and the guild the bot operates in.
type Discord struct {
	// Bot token.
	Token string `koanf:"token"`
	// Guild ID the bot serves.
	GuildID uint64 `koanf:"guild_id"`
	// Channel ID where the verification prompt is posted.
	WelcomeChannelID uint64 `koanf:"welcome_channel_id"`
}

// Verification contains the onboarding verification flow configuration.
type Verification struct {
	// Calendly booking link embedded in ticket prompts.
	CalendlyLink string `koanf:"calendly_link"`
	// Thumbnail shown on prompt embeds.
	CompanyLogoURL string `koanf:"company_logo_url"`
	// Role applied to unverified members.
	MutedRoleID uint64 `koanf:"muted_role_id"`
	// Roles that mark a member as already verified.
	GraduatedRoleIDs []uint64 `koanf:"graduated_role_ids"`
}

// LoadConfig loads the configuration from the first bot.toml found in the
// search paths, then applies environment variable overrides.
// Returns the config along with the used config directory.
func LoadConfig() (*Config, string, error) {
	k := koanf.New(".")

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, "", fmt.Errorf("failed to get home directory: %w", err)
	}

	configPaths := []string{
		".doorkeep",
		homeDir + "/.doorkeep/config",
		"/etc/doorkeep/config",
		"/app/config",
		"config",
		".",
	}

	var usedConfigPath string

	for _, path := range configPaths {
		configPath := fmt.Sprintf("%s/bot.toml", path)
		if err := k.Load(file.Provider(configPath), toml.Parser()); err == nil {
			usedConfigPath = path
			break
		}
	}

	if usedConfigPath == "" {
		return nil, "", fmt.Errorf("%w: bot.toml", ErrConfigFileNotFound)
	}

	// Environment variables override file values, matching deployments that
	// are driven entirely by the process environment. Unknown variables map to
	// an empty key and are dropped by the provider.
	err = k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return envKeys[strings.TrimPrefix(s, EnvPrefix)]
	}), nil)
	if err != nil {
		return nil, "", fmt.Errorf("error loading environment overrides: %w", err)
	}

	var config Config
	if err := k.Unmarshal("", &config); err != nil {
		return nil, "", fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := checkConfigVersion("bot", config.Bot.Version, CurrentBotVersion); err != nil {
		return nil, "", err
	}

	return &config, usedConfigPath, nil
}

// checkConfigVersion checks if the config file version is correct.
func checkConfigVersion(name string, current, expected int) error {
	if current == 0 {
		return fmt.Errorf("%w: %s.toml", ErrConfigVersionMissing, name)
	}

	if current != expected {
		return fmt.Errorf("%w: %s.toml (got: %d, expected: %d)", ErrConfigVersionMismatch, name, current, expected)
	}

	return nil
}
