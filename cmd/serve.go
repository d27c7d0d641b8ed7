package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/desertthunder/toolify/internal/repositories"
	"github.com/desertthunder/toolify/internal/server"
	"github.com/desertthunder/toolify/internal/session"
	"github.com/desertthunder/toolify/internal/shared"
	"github.com/desertthunder/toolify/internal/web"
	"github.com/urfave/cli/v3"
)

// sessionCleanupInterval is how often expired sessions are purged.
const sessionCleanupInterval = 15 * time.Minute

// Serve runs migrations, then serves the web application until interrupted.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	cfg := r.config
	if host := cmd.String("host"); host != "" {
		cfg.Server.Host = host
	}
	if port := cmd.Int("port"); port != 0 {
		cfg.Server.Port = port
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	db, err := shared.NewDatabase(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()
	if err := shared.RunMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	store := repositories.NewSessionStore(db, shared.WithLogger(r.logger, "component", "sessions"))
	store.StartCleanup(ctx, sessionCleanupInterval)

	authManager := r.authManager()
	app, err := web.New(web.Options{
		Engine: r.engine(),
		Auth:   authManager,
		Tokens: authManager,
		Sessions: session.New(session.Options{
			Store:    store,
			Lifetime: cfg.Server.SessionLifetime(),
			Secure:   cfg.Server.CookieSecure,
		}),
		Logger: r.logger,
	})
	if err != nil {
		return err
	}

	return server.Run(ctx, server.New(cfg.Server.Addr(), app.Routes(), r.logger), r.logger)
}
