package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/uitrace/gateway/internal/gateway/domain"
	httpapi "github.com/uitrace/gateway/internal/gateway/http"
	"github.com/uitrace/gateway/internal/gateway/hub"
	"github.com/uitrace/gateway/internal/gateway/service"
	"github.com/uitrace/gateway/internal/gateway/store"
	"github.com/uitrace/gateway/internal/gateway/store/drivers/sqlite"
	"github.com/uitrace/gateway/pkg/slogx"
)

const (
	// BuildVersion should be set at build time via ldflags. Later problem
	BuildVersion = "v0.1.0"
)

// Application encapsulates the gateway with all its dependencies
type Application struct {
	cfg    Config
	logger *slog.Logger

	// Core dependencies
	db  store.Store
	hub *hub.Hub

	// Services
	tokenService *service.TokenService
	keyDirectory *service.KeyDirectory

	// HTTP server
	server *http.Server
	router *httpapi.Router
}

// New creates a new Application instance with all dependencies initialized
func New(cfg Config) (*Application, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "extension-gateway",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	if err := app.initDatabase(); err != nil {
		return nil, err
	}

	app.initServices()
	app.initHTTP()

	return app, nil
}

// Run starts the application and blocks until shutdown is requested
func (app *Application) Run() error {
	app.logger.Info("extension gateway starting", "port", app.cfg.Port, "version", BuildVersion)

	// Start server in a goroutine
	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	// Setup signal handling for graceful shutdown
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Block until we receive a shutdown signal or server error
	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown gracefully shuts down the application
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down extension gateway...")

	// Give outstanding requests a deadline for completion
	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	// Shutdown the HTTP server. In-flight WebSocket connections are
	// hijacked from the server's bookkeeping, so closing the listener
	// is what actually severs them.
	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	// Close database connection
	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("extension gateway stopped")
	return nil
}

// initDatabase initializes the extension registry and applies migrations
func (app *Application) initDatabase() error {
	host := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", app.cfg.DatabaseFile)
	db, err := sqlite.NewStore(host)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.logger.Info("database migrations applied successfully")
	return nil
}

// initServices initializes all business logic services
func (app *Application) initServices() {
	accessSecret := app.cfg.AccessSecret
	refreshSecret := app.cfg.RefreshSecret
	if app.cfg.Env == "development" {
		// Deterministic fallbacks so a bare dev checkout starts up.
		// Validate() guarantees these never survive into production.
		if accessSecret == "" {
			accessSecret = "dev-access-secret"
		}
		if refreshSecret == "" {
			refreshSecret = "dev-refresh-secret"
		}
	}

	app.tokenService = &service.TokenService{
		AccessSecret:  []byte(accessSecret),
		RefreshSecret: []byte(refreshSecret),
		Issuer:        app.cfg.Issuer,
		AccessTTL:     app.cfg.AccessTTL,
		RefreshTTL:    app.cfg.RefreshTTL,
	}

	bootstrap := make(map[string][]byte)
	if app.cfg.ExtensionID != "" {
		bootstrap[app.cfg.ExtensionID] = []byte(app.cfg.ExtensionPublicKey)
	}
	app.keyDirectory = &service.KeyDirectory{
		Store:     app.db,
		Bootstrap: bootstrap,
	}

	app.hub = hub.New(app.logger)
}

// initHTTP initializes the HTTP router and server
func (app *Application) initHTTP() {
	router := httpapi.NewRouter(
		app.cfg.Env,
		BuildVersion,
		app.cfg.AllowedOrigin,
		app.db,
		app.logger,
	)

	// Wire services to router
	router.TokenService = app.tokenService
	router.Keys = app.keyDirectory
	router.Hub = app.hub
	router.SkipSignature = app.cfg.SkipSignature
	router.SkipAuthn = app.cfg.SkipAuthn
	router.DevIdentity = domain.Identity{
		ID:          "dev-local",
		ExtensionID: "dev-extension",
		Role:        domain.RoleExtension,
		Type:        domain.TokenTypeAccess,
	}
	router.ApplyRoutes()

	app.router = router

	// Initialize HTTP server
	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
