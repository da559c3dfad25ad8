package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"readingtracker/internal/api"
	"readingtracker/internal/bot"
	"readingtracker/internal/config"
	"readingtracker/internal/reminder"
	"readingtracker/internal/storage"
	"readingtracker/internal/storage/ch"
	"readingtracker/internal/storage/stubs"
	"readingtracker/internal/tracker"
	"readingtracker/migrations"
)

const shutdownTimeout = 5 * time.Second

// App represents the application
type App struct {
	config    *config.Config
	logger    *zap.Logger
	db        storage.Storage
	tracker   *tracker.Tracker
	scheduler *reminder.CronScheduler
	reminders *reminder.Service
	bot       *bot.Bot
	server    *api.Server
}

// New creates and initializes a new application instance
func New() (*App, error) {
	// Load .env file if it exists
	envErr := godotenv.Load()

	// Load configuration from environment variables
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	if envErr != nil {
		logger.Debug("No .env file found, using system environment variables")
	}

	app := &App{config: cfg, logger: logger}

	logger.Info("Starting Reading Tracker",
		zap.String("storage", cfg.StorageBackend),
		zap.String("timezone", cfg.Location().String()),
	)

	if err := app.initDatabase(); err != nil {
		return nil, err
	}

	app.tracker = tracker.New(app.db, logger.Named("tracker"), tracker.WithLocation(cfg.Location()))
	app.scheduler = reminder.NewCronScheduler(cfg.Location(), logger.Named("cron"))
	app.reminders = reminder.NewService(app.db, app.scheduler, logger.Named("reminders"))

	if err := app.initBot(); err != nil {
		return nil, err
	}

	app.initHTTPServer()

	return app, nil
}

// newLogger builds a production logger, or a development one for debug level
func newLogger(level string) (*zap.Logger, error) {
	if level == "debug" {
		return zap.NewDevelopment()
	}

	cfg := zap.NewProductionConfig()
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, err
	}
	cfg.Level = lvl
	return cfg.Build()
}

// initDatabase opens the configured store and prepares its schema
func (a *App) initDatabase() error {
	var db storage.Storage
	if a.config.UseMemoryStorage() {
		a.logger.Info("Using in-memory storage")
		db = stubs.NewMockDB()
	} else {
		chCfg := ch.Config{
			Host:     a.config.ClickHouseHost,
			Port:     a.config.ClickHousePort,
			Database: a.config.ClickHouseDatabase,
			User:     a.config.ClickHouseUser,
			Password: a.config.ClickHousePassword,
			UseTLS:   a.config.ClickHouseUseTLS,
		}
		a.logger.Info("Connecting to ClickHouse",
			zap.String("host", chCfg.Host),
			zap.Int("port", chCfg.Port),
			zap.String("database", chCfg.Database),
			zap.String("user", chCfg.User),
			zap.Bool("tls", chCfg.UseTLS),
		)

		if err := migrate(chCfg); err != nil {
			return err
		}

		clickhouseDB, err := ch.NewClickHouseDB(chCfg)
		if err != nil {
			return fmt.Errorf("failed to connect to ClickHouse: %w", err)
		}
		db = clickhouseDB
	}

	if err := db.Initialize(context.Background()); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	a.logger.Info("Database initialized successfully")

	a.db = db
	return nil
}

// migrate applies pending schema migrations
func migrate(cfg ch.Config) error {
	sqlDB := ch.OpenSQL(cfg)
	defer sqlDB.Close()

	if err := migrations.Up(sqlDB); err != nil {
		return fmt.Errorf("failed to migrate ClickHouse: %w", err)
	}
	return nil
}

// initBot creates the Telegram bot and registers it as the reminder notifier
func (a *App) initBot() error {
	telegramBot, err := bot.NewBot(a.config.TelegramToken, a.tracker, a.reminders, bot.Options{
		AllowedUserIDs:     a.config.AllowedUserIDs,
		NotificationChatID: a.config.NotificationChatID,
	}, a.logger.Named("bot"))
	if err != nil {
		return fmt.Errorf("failed to create Telegram bot: %w", err)
	}
	a.logger.Info("Bot created successfully", zap.Int64s("allowed_users", a.config.AllowedUserIDs))

	a.bot = telegramBot
	a.scheduler.SetNotifier(telegramBot)
	return nil
}

// initHTTPServer builds the HTTP server for health checks, webhook and the JSON API
func (a *App) initHTTPServer() {
	opts := api.Options{
		// initData is only available when the API is reached through Telegram
		Auth: a.bot.AuthMiddleware(a.config.WebhookMode),
	}
	if a.config.WebhookMode {
		opts.Webhook = a.bot.WebhookHandler()
	}

	a.server = api.NewServer(":"+a.config.Port, a.tracker, a.reminders, opts, a.logger.Named("http"))
}

// Run starts the application and blocks until shutdown
func (a *App) Run() error {
	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Alerts for stored reminders must exist before the scheduler starts firing
	if err := a.reminders.Resync(context.Background()); err != nil {
		return fmt.Errorf("failed to restore reminders: %w", err)
	}
	a.scheduler.Start()

	errChan := make(chan error, 2)
	go func() {
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	// Start bot in appropriate mode
	if a.config.WebhookMode {
		// Webhook mode: configure webhook and wait for HTTP requests
		if err := a.bot.StartWebhook(a.config.WebhookURL); err != nil {
			a.Shutdown()
			return fmt.Errorf("failed to setup webhook: %w", err)
		}
		a.logger.Info("Webhook configured, receiving updates on /telegram-webhook",
			zap.String("webhook_url", a.config.WebhookURL))
	} else {
		// Polling mode: actively poll Telegram servers
		go func() {
			if err := a.bot.Start(); err != nil {
				errChan <- fmt.Errorf("failed to start bot: %w", err)
			}
		}()
	}

	var runErr error
	select {
	case <-sigChan:
		a.logger.Info("Received shutdown signal")
	case runErr = <-errChan:
		a.logger.Error("Stopping after failure", zap.Error(runErr))
	}

	a.Shutdown()
	return runErr
}

// Shutdown gracefully shuts down the application
func (a *App) Shutdown() {
	a.logger.Info("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := a.server.Shutdown(ctx); err != nil {
		a.logger.Error("HTTP server shutdown error", zap.Error(err))
	}

	a.bot.Stop()

	// Wait for running reminder fires
	select {
	case <-a.scheduler.Stop().Done():
	case <-ctx.Done():
		a.logger.Warn("Reminder jobs still running at shutdown")
	}

	if err := a.db.Close(); err != nil {
		a.logger.Error("Error closing database", zap.Error(err))
	}

	a.logger.Info("Shutdown complete")
	_ = a.logger.Sync()
}
