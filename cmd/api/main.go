// Blog API Backend
//
// This is the main entry point for the API server. It writes structured
// request, response and error logs to LOG_DIR and, outside production, to
// the console.
//
// Usage:
//
//	PORT=5000 APP_ENV=development go run ./cmd/api
//
// Environment Variables:
//   - PORT: Port to listen on (default: "5000")
//   - APP_ENV / NODE_ENV: "production" turns the console log off
//   - LOG_LEVEL, LOG_DIR: minimum level and directory of api.log / error.log
//   - DB_HOST, DB_PORT, DB_USER, DB_PASSWORD, DB_NAME: Postgres (optional)
//   - CLERK_JWT_KEY: PEM public key for session tokens (optional)
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"blogapi/internal/auth"
	"blogapi/internal/config"
	"blogapi/internal/database"
	"blogapi/internal/logging"
	"blogapi/internal/server"
)

func main() {
	setupLogging()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Config error")
	}

	logs, err := logging.New(logging.Config{
		Level: cfg.Log.Level,
		Destinations: logging.DefaultDestinations(cfg.Log.Dir, cfg.Production(), logging.Rotation{
			MaxSizeMB:  cfg.Log.MaxSizeMB,
			MaxBackups: cfg.Log.MaxBackups,
			MaxAgeDays: cfg.Log.MaxAgeDays,
		}),
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Logging setup error")
	}
	defer logs.Close()
	log.Logger = *logs.Logger()

	log.Info().Str("config", cfg.String()).Msg("Configuration loaded")

	var deps server.Deps
	if cfg.DB.Enabled() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		pool, err := database.Connect(ctx, cfg.DB)
		cancel()
		if err != nil {
			log.Fatal().Err(err).Msg("Database error")
		}
		defer pool.Close()
		deps.DB = pool
	}
	if cfg.Auth.JWTKey != "" {
		deps.Sessions, err = auth.NewVerifier(cfg.Auth.JWTKey, cfg.Auth.AuthorizedParties)
		if err != nil {
			log.Fatal().Err(err).Msg("Session key error")
		}
	}

	srv := server.New(cfg, logs, deps)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- srv.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	sig, err := waitForShutdown(quit, serverErr)
	if err != nil {
		log.Fatal().Err(err).Msg("Server error")
	}
	if sig == nil {
		return
	}
	log.Info().Str("signal", sig.String()).Msg("Shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Graceful shutdown failed")
	}
}

// waitForShutdown blocks until a signal arrives or the server stops. A nil
// signal means the server stopped on its own; err is set when it failed.
func waitForShutdown(quit <-chan os.Signal, serverErr <-chan error) (os.Signal, error) {
	select {
	case sig := <-quit:
		return sig, nil
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return nil, err
		}
		return nil, nil
	}
}

// setupLogging covers the time before the logging service exists.
func setupLogging() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
}
