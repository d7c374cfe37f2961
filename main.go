// main.go
//
// Entry point for the "and then" storytelling server.
// Loads .env and configuration, sets up logging, opens the configured store,
// builds the engine / lifecycle / accounts services and serves HTTP until
// SIGINT or SIGTERM.

package main

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
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/andthen/internal/accounts"
	"github.com/robalobadob/andthen/internal/config"
	"github.com/robalobadob/andthen/internal/engine"
	"github.com/robalobadob/andthen/internal/httpserver"
	"github.com/robalobadob/andthen/internal/store"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	setupLogging(cfg)

	backend, err := openBackend(cfg)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.StoreDriver).Msg("failed to open store")
	}
	defer backend.Close()

	srv := httpserver.New(
		engine.New(backend, engine.WithMaxAttempts(cfg.MaxCommitAttempts)),
		engine.NewLifecycle(backend, cfg.OwnerInRotation),
		accounts.New(backend, cfg.JWTSecret, accounts.WithTokenTTL(cfg.TokenTTL())),
		httpserver.Options{
			CookieName:     cfg.CookieName,
			SecureCookies:  cfg.Production(),
			ClientOrigins:  cfg.ClientOrigins,
			RequestTimeout: cfg.RequestTimeout,
		},
	)

	httpSrv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Info().Str("port", cfg.Port).Str("driver", cfg.StoreDriver).Msg("starting andthen server")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server exited")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}

func setupLogging(cfg config.Config) {
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}
	zerolog.TimeFieldFormat = time.RFC3339Nano
	if cfg.LogFormat == "console" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
}

// openBackend opens the store selected by STORE_DRIVER. SQL stores migrate on open.
func openBackend(cfg config.Config) (store.Backend, error) {
	switch cfg.StoreDriver {
	case config.DriverSQLite:
		return store.OpenSQLite(cfg.SQLitePath)
	case config.DriverPostgres:
		return store.OpenPostgres(cfg.DatabaseURL)
	case config.DriverRedis:
		return store.OpenRedis(cfg.RedisURL)
	case config.DriverMemory:
		log.Warn().Msg("memory store: data is lost on restart")
		return store.NewMemoryStore(), nil
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
}
