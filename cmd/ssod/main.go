// Command ssod runs the account and email-verification service over HTTP.
//
// It also doubles as the sweep entry point for external schedulers:
//
//	ssod -sweep    # delete expired verification tokens once and exit
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	sso "github.com/fmproj/sso"
	ssooauth "github.com/fmproj/sso/oauth2"
	gormstores "github.com/fmproj/sso/stores/gorm"
)

func main() {
	sweepOnce := flag.Bool("sweep", false, "run the token sweep once and exit")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	cfg, err := loadConfig()
	if err != nil {
		logger.Error("invalid configuration", "err", err)
		os.Exit(1)
	}

	db, err := openDB(cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to open database", "err", err)
		os.Exit(1)
	}
	if err := gormstores.AutoMigrate(db); err != nil {
		logger.Error("failed to migrate database", "err", err)
		os.Exit(1)
	}

	tokens := gormstores.NewTokenStore(db)
	accounts := gormstores.NewAccountDirectory(db, sso.BcryptHasher{})

	sweeper := &sso.Sweeper{Tokens: tokens, Logger: logger}
	if *sweepOnce {
		sweeper.RunOnce()
		return
	}

	if cfg.AdminEmail != "" {
		if err := bootstrapAdmin(accounts, cfg); err != nil {
			logger.Error("failed to bootstrap admin account", "err", err)
			os.Exit(1)
		}
	}

	flow := &sso.VerificationFlow{
		Tokens:   tokens,
		Accounts: accounts,
		Mailer:   &sso.ConsoleMailer{Logger: logger},
		BaseURL:  cfg.BaseURL,
		Logger:   logger,
	}

	server := &sso.Server{
		Flow:                    flow,
		Sessions:                &sso.SessionIssuer{Accounts: accounts},
		Providers:               buildProviders(cfg),
		JWTSecretKey:            cfg.JWTSecretKey,
		JwtIssuer:               cfg.JWTIssuer,
		SessionTimeoutInSeconds: int(cfg.SessionTTL / time.Second),
		Logger:                  logger,
	}

	if err := sweeper.Start(cfg.SweepSchedule); err != nil {
		logger.Error("failed to start token sweeper", "err", err)
		os.Exit(1)
	}
	defer sweeper.Stop()

	httpServer := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: server.Handler(),
	}

	go func() {
		logger.Info("listening", "addr", cfg.HTTPAddr, "base_url", cfg.BaseURL)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server exited", "err", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Warn("shutdown incomplete", "err", err)
	}
}

// openDB picks the driver from the URL scheme: postgres:// goes to
// Postgres, anything else is treated as a SQLite path (development
// default). TranslateError is required for the stores' uniqueness
// handling.
func openDB(url string) (*gorm.DB, error) {
	gormCfg := &gorm.Config{TranslateError: true}
	if strings.HasPrefix(url, "postgres://") || strings.HasPrefix(url, "postgresql://") {
		return gorm.Open(postgres.Open(url), gormCfg)
	}
	if url == "" {
		url = "sso.db"
	}
	return gorm.Open(sqlite.Open(url), gormCfg)
}

// bootstrapAdmin ensures the configured admin account exists. Rerunning
// against an existing account is a no-op.
func bootstrapAdmin(accounts sso.AccountDirectory, cfg config) error {
	registered, err := accounts.IsRegistered(cfg.AdminEmail)
	if err != nil {
		return err
	}
	if registered {
		return nil
	}
	_, err = accounts.CreateAccount(sso.NewAccount{
		Email:     cfg.AdminEmail,
		ShortName: "Admin",
		Password:  cfg.AdminPassword,
		IsAdmin:   true,
	})
	if errors.Is(err, sso.ErrDuplicateEmail) {
		// another instance won the startup race
		return nil
	}
	return err
}

func buildProviders(cfg config) []sso.EmailProvider {
	var providers []sso.EmailProvider
	if cfg.GithubClientID != "" {
		providers = append(providers, ssooauth.NewGithub(ssooauth.Config{
			ClientID:     cfg.GithubClientID,
			ClientSecret: cfg.GithubClientSecret,
			CallbackURL:  cfg.GithubCallbackURL,
		}))
	}
	if cfg.FacebookClientID != "" {
		providers = append(providers, ssooauth.NewFacebook(ssooauth.Config{
			ClientID:     cfg.FacebookClientID,
			ClientSecret: cfg.FacebookClientSecret,
			CallbackURL:  cfg.FacebookCallbackURL,
		}))
	}
	return providers
}
