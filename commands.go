package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/subcommands"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"stock-ledger/auth"
	"stock-ledger/database"
	"stock-ledger/handlers"
)

const shutdownTimeout = 10 * time.Second

type serveCmd struct {
	noMigrate bool
}

func (*serveCmd) Name() string     { return "serve" }
func (*serveCmd) Synopsis() string { return "run the HTTP API" }
func (*serveCmd) Usage() string {
	return `serve [-no-migrate]

  Migrates the schema, creates the default admin when there are no users,
  and serves the API on HTTP_ADDR until interrupted.
`
}

func (c *serveCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.noMigrate, "no-migrate", false, "skip schema migration on startup")
}

func (c *serveCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		fail("serve: %v", err)
		return subcommands.ExitFailure
	}
	defer a.Close()

	if !c.noMigrate {
		if err := database.AutoMigrate(a.db); err != nil {
			a.logger.Error("failed to migrate models", zap.Error(err))
			return subcommands.ExitFailure
		}
	}
	if err := seedAdmin(ctx, a); err != nil {
		a.logger.Error("failed to seed admin user", zap.Error(err))
		return subcommands.ExitFailure
	}

	var refresh *auth.RefreshTokens
	if a.rdb != nil {
		refresh = auth.NewRefreshTokens(a.rdb, a.cfg.JWTSecret, a.cfg.RefreshTokenTTL)
	} else {
		a.logger.Warn("REDIS_ADDR not set, refresh tokens and price cache disabled")
	}
	h := handlers.New(a.store, a.ledger, auth.NewTokens(a.cfg.JWTSecret, a.cfg.AccessTokenTTL), refresh, a.logger)

	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           handlers.NewRouter(h, a.logger, a.cfg.CORSAllowedOrigins),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.logger.Info("listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		a.logger.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		a.logger.Error("server stopped", zap.Error(err))
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

func seedAdmin(ctx context.Context, a *app) error {
	hash, err := auth.HashPassword(a.cfg.AdminPassword)
	if err != nil {
		return err
	}
	_, err = a.store.EnsureAdmin(ctx, a.cfg.AdminUsername, hash)
	return err
}

type migrateCmd struct{}

func (*migrateCmd) Name() string     { return "migrate" }
func (*migrateCmd) Synopsis() string { return "create or update the database schema" }
func (*migrateCmd) Usage() string    { return "migrate\n" }
func (*migrateCmd) SetFlags(*flag.FlagSet) {}

func (*migrateCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a, err := newApp(ctx)
	if err != nil {
		fail("migrate: %v", err)
		return subcommands.ExitFailure
	}
	defer a.Close()

	if err := database.AutoMigrate(a.db); err != nil {
		a.logger.Error("failed to migrate models", zap.Error(err))
		return subcommands.ExitFailure
	}
	a.logger.Info("schema up to date")
	return subcommands.ExitSuccess
}

type refreshPricesCmd struct{}

func (*refreshPricesCmd) Name() string     { return "refresh-prices" }
func (*refreshPricesCmd) Synopsis() string { return "fetch current prices for every stock once" }
func (*refreshPricesCmd) Usage() string {
	return `refresh-prices

  Pulls prices for the whole catalog from the configured market data
  provider and stores them. Exits non-zero only on storage errors.
`
}
func (*refreshPricesCmd) SetFlags(*flag.FlagSet) {}

func (*refreshPricesCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a, err := newApp(ctx)
	if err != nil {
		fail("refresh-prices: %v", err)
		return subcommands.ExitFailure
	}
	defer a.Close()

	res, err := a.ledger.RefreshPrices(ctx)
	if err != nil {
		a.logger.Error("price refresh failed", zap.Error(err))
		return subcommands.ExitFailure
	}
	a.logger.Info("prices refreshed",
		zap.Int("success", res.SuccessCount),
		zap.Int("failed", res.FailCount),
		zap.Strings("failed_symbols", res.Failed))
	return subcommands.ExitSuccess
}

type createAdminCmd struct {
	username string
	password string
}

func (*createAdminCmd) Name() string     { return "create-admin" }
func (*createAdminCmd) Synopsis() string { return "create an admin user or promote an existing one" }
func (*createAdminCmd) Usage() string {
	return `create-admin -u <username> -p <password>

  Creates the user with the ADMIN role. An existing user is promoted and
  their password reset.
`
}

func (c *createAdminCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.username, "u", "", "username")
	f.StringVar(&c.password, "p", "", "password")
}

func (c *createAdminCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.username == "" || c.password == "" {
		f.Usage()
		return subcommands.ExitUsageError
	}
	hash, err := auth.HashPassword(c.password)
	if err != nil {
		fail("create-admin: %v", err)
		return subcommands.ExitUsageError
	}

	a, err := newApp(ctx)
	if err != nil {
		fail("create-admin: %v", err)
		return subcommands.ExitFailure
	}
	defer a.Close()

	u, err := a.store.UpsertAdmin(ctx, c.username, hash)
	if err != nil {
		a.logger.Error("failed to create admin", zap.Error(err))
		return subcommands.ExitFailure
	}
	a.logger.Info("admin ready", zap.Uint("user_id", u.ID), zap.String("username", u.Username))
	return subcommands.ExitSuccess
}
