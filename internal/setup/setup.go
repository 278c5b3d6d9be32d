package setup

import (
	"log"

	"github.com/doorkeep/doorkeep/internal/setup/config"
	"go.uber.org/zap"
)

// App bundles the core dependencies needed by the application.
type App struct {
	Config *config.Config // Application configuration
	Logger *zap.Logger    // Main application logger
}

// InitializeApp bootstraps the application dependencies in the correct order,
// ensuring each component has its required dependencies available.
func InitializeApp(logDir string) (*App, error) {
	// Load app configuration
	cfg, configDir, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}

	// Logging system is initialized next to capture setup issues
	logger, err := GetLogger(logDir, cfg.Bot.Debug.LogLevel, cfg.Bot.Debug.MaxLogsToKeep)
	if err != nil {
		return nil, err
	}

	logger.Info("Loaded configuration", zap.String("config_dir", configDir))

	return &App{
		Config: cfg,
		Logger: logger,
	}, nil
}

// CleanupApp performs cleanup tasks.
func (app *App) CleanupApp() {
	if err := app.Logger.Sync(); err != nil {
		log.Printf("Failed to sync logger: %v", err)
	}
}
