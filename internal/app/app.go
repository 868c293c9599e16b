package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"library/internal/config"
	"library/internal/library"
	"library/internal/notify"
	"library/internal/storage"
	"library/internal/storage/ch"
	"library/internal/storage/sqlstore"
	"library/internal/storage/stubs"
	"library/internal/web"
)

const shutdownTimeout = 5 * time.Second

// App represents the application
type App struct {
	config   *config.Config
	logger   *zap.Logger
	db       storage.Storage
	events   storage.EventLog
	notifier notify.Notifier
	server   *http.Server
}

// New creates and initializes a new application instance
func New() (*App, error) {
	// Load .env file if it exists
	envErr := godotenv.Load()

	cfg, err := config.LoadFromEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	if envErr != nil {
		logger.Debug("No .env file found, using system environment variables")
	}

	app := &App{config: cfg, logger: logger}

	logger.Info("Starting library app",
		zap.String("env", cfg.AppEnv),
		zap.Bool("mock_db", cfg.UseMockDB),
	)

	ctx := context.Background()
	if err := app.initDatabase(ctx); err != nil {
		return nil, err
	}
	if err := app.initEventLog(ctx); err != nil {
		app.db.Close()
		return nil, err
	}
	if err := app.initNotifier(); err != nil {
		app.db.Close()
		app.events.Close()
		return nil, err
	}
	if err := app.initHTTPServer(); err != nil {
		app.db.Close()
		app.events.Close()
		return nil, err
	}

	return app, nil
}

// newLogger builds the development or production zap logger at LOG_LEVEL
func newLogger(cfg *config.Config) (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}

	zapConfig := zap.NewProductionConfig()
	if cfg.Development() {
		zapConfig = zap.NewDevelopmentConfig()
	}
	zapConfig.Level = level
	return zapConfig.Build()
}

// initDatabase opens the relational store selected by the configuration
func (a *App) initDatabase(ctx context.Context) error {
	var db storage.Storage
	switch {
	case a.config.UseMockDB:
		a.logger.Info("Using mock database")
		db = stubs.NewSeededMockDB()
	case a.config.DBDriver == config.DriverSQLite:
		a.logger.Info("Opening SQLite database", zap.String("path", a.config.SQLitePath))
		store, err := sqlstore.OpenSQLite(ctx, a.config.SQLitePath,
			sqlstore.WithLogger(a.logger),
			sqlstore.WithAutoMigrate(a.config.AutoMigrate),
		)
		if err != nil {
			return fmt.Errorf("failed to open SQLite database: %w", err)
		}
		db = store
	default:
		a.logger.Info("Connecting to PostgreSQL")
		store, err := sqlstore.OpenPostgres(ctx, a.config.DatabaseURL,
			sqlstore.WithLogger(a.logger),
			sqlstore.WithAutoMigrate(a.config.AutoMigrate),
		)
		if err != nil {
			return fmt.Errorf("failed to connect to PostgreSQL: %w", err)
		}
		db = store
	}

	// Initialize database schema and default data
	if err := db.Initialize(ctx); err != nil {
		db.Close()
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	a.logger.Info("Database initialized successfully")

	a.db = db
	return nil
}

// initEventLog connects the ledger event log, falling back to memory
func (a *App) initEventLog(ctx context.Context) error {
	if !a.config.EventLogEnabled() {
		a.logger.Info("Using in-memory event log")
		a.events = stubs.NewMockEventLog()
		return nil
	}

	tlsStatus := "without TLS"
	if a.config.ClickHouseUseTLS {
		tlsStatus = "with TLS"
	}
	a.logger.Info("Connecting to ClickHouse",
		zap.String("host", a.config.ClickHouseHost),
		zap.Int("port", a.config.ClickHousePort),
		zap.String("database", a.config.ClickHouseDatabase),
		zap.String("user", a.config.ClickHouseUser),
		zap.String("tls", tlsStatus),
	)
	eventLog, err := ch.NewClickHouseEventLog(
		a.config.ClickHouseHost,
		a.config.ClickHousePort,
		a.config.ClickHouseDatabase,
		a.config.ClickHouseUser,
		a.config.ClickHousePassword,
		a.config.ClickHouseUseTLS,
	)
	if err != nil {
		return fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}
	if err := eventLog.Initialize(ctx); err != nil {
		eventLog.Close()
		return fmt.Errorf("failed to initialize event log: %w", err)
	}

	a.events = eventLog
	return nil
}

// initNotifier sets up Telegram notifications when configured
func (a *App) initNotifier() error {
	if !a.config.NotificationsEnabled() {
		a.notifier = notify.Nop{}
		return nil
	}

	telegram, err := notify.NewTelegram(a.config.TelegramToken, a.config.TelegramChatID, a.logger)
	if err != nil {
		return fmt.Errorf("failed to create Telegram notifier: %w", err)
	}
	a.logger.Info("Telegram notifications enabled", zap.Int64("chat_id", a.config.TelegramChatID))

	a.notifier = telegram
	return nil
}

// initHTTPServer builds the web server around the library service
func (a *App) initHTTPServer() error {
	svc := library.NewService(a.db, a.events, a.notifier, a.logger)

	server, err := web.NewServer(svc, a.logger)
	if err != nil {
		return fmt.Errorf("failed to create web server: %w", err)
	}

	a.server = &http.Server{
		Addr:         ":" + a.config.Port,
		Handler:      server.Handler(),
		ReadTimeout:  a.config.ReadTimeout,
		WriteTimeout: a.config.WriteTimeout,
	}
	return nil
}

// Run starts the application and blocks until shutdown
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return a.serve(ctx)
}

// serve listens until ctx is cancelled or the listener fails
func (a *App) serve(ctx context.Context) error {
	errChan := make(chan error, 1)
	go func() {
		a.logger.Info("Starting HTTP server", zap.String("addr", a.server.Addr))
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
		close(errChan)
	}()

	select {
	case err, ok := <-errChan:
		if !ok {
			return nil
		}
		a.Shutdown()
		return fmt.Errorf("HTTP server error: %w", err)
	case <-ctx.Done():
	}

	a.logger.Info("Shutting down...")
	return a.Shutdown()
}

// Shutdown gracefully shuts down the application
func (a *App) Shutdown() error {
	defer a.logger.Sync()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		a.logger.Warn("HTTP server shutdown error", zap.Error(err))
	}

	if err := a.events.Close(); err != nil {
		a.logger.Warn("Error closing event log", zap.Error(err))
	}

	if err := a.db.Close(); err != nil {
		a.logger.Error("Error closing database", zap.Error(err))
		return err
	}

	a.logger.Info("Shutdown complete")
	return nil
}

// Handler exposes the HTTP handler, mainly for tests
func (a *App) Handler() http.Handler {
	return a.server.Handler
}
