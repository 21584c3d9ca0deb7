// Command server runs the Coony chat backend: the JSON API, the realtime
// WebSocket endpoint and the maintenance jobs.
//
//	@title			Coony Chat API
//	@version		1.0
//	@description	Private conversations, realtime delivery, notifications and a small social timeline.
//	@BasePath		/api/v1
//	@securityDefinitions.apikey	BearerAuth
//	@in				header
//	@name			Authorization
package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/coony/chat-backend/internal/auth"
	"github.com/coony/chat-backend/internal/config"
	httpapi "github.com/coony/chat-backend/internal/http"
	"github.com/coony/chat-backend/internal/jobs"
	"github.com/coony/chat-backend/internal/observability"
	"github.com/coony/chat-backend/internal/realtime"
	"github.com/coony/chat-backend/internal/repo"
	"github.com/coony/chat-backend/internal/services"
	"github.com/coony/chat-backend/internal/sysutil"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

const shutdownTimeout = 15 * time.Second

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn().Err(err).Msg(".env could not be loaded")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	logCloser := sysutil.SetupLogging(sysutil.LogOptions{
		Level:      cfg.LogLevel,
		Pretty:     cfg.LogPretty,
		File:       cfg.LogFile.Path,
		MaxSizeMB:  cfg.LogFile.MaxSizeMB,
		MaxBackups: cfg.LogFile.MaxBackups,
		MaxAgeDays: cfg.LogFile.MaxAgeDays,
	})
	defer logCloser.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		log.Fatal().Err(err).Msg("tracing setup failed")
	}

	db, err := repo.Open(repo.Options{
		Driver:  cfg.DB.Driver,
		DSN:     cfg.DB.DSN,
		Path:    cfg.DB.Path,
		Tracing: cfg.OTEL.Enabled,
		Silent:  cfg.LogLevel != "debug",
	})
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.DB.Driver).Msg("database open failed")
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("database migration failed")
	}

	broker, err := newBroker(ctx, cfg.Realtime)
	if err != nil {
		log.Fatal().Err(err).Str("broker", cfg.Realtime.Broker).Msg("realtime broker failed")
	}
	hub := realtime.NewHub()

	tokens, err := auth.NewTokens(cfg.Session.Secret, cfg.Session.TTL)
	if err != nil {
		log.Fatal().Err(err).Msg("session tokens")
	}

	scheduler := jobs.NewScheduler(log.Logger)
	if cfg.IdempotencyPurgeSpec != "off" {
		purger := services.NewMessageService(db, nil)
		if err := scheduler.AddIdempotencyPurge(cfg.IdempotencyPurgeSpec, purger); err != nil {
			log.Fatal().Err(err).Msg("idempotency purge schedule")
		}
	}
	scheduler.Start()

	gin.SetMode(cfg.GinMode)
	r := gin.New()
	httpapi.RegisterRoutes(r, httpapi.Deps{DB: db, Tokens: tokens, Broker: broker, Hub: hub}, cfg)

	srv := &http.Server{
		Addr:              net.JoinHostPort("", cfg.Port),
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info().
			Str("addr", srv.Addr).
			Str("version", version).
			Str("db", cfg.DB.Driver).
			Str("broker", cfg.Realtime.Broker).
			Msg("listening")
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("server stopped")
		}
	case <-ctx.Done():
		log.Info().Msg("shutting down")
	}

	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	// Hijacked sockets are not tracked by Shutdown; the hub closes them.
	if err := srv.Shutdown(sctx); err != nil {
		log.Warn().Err(err).Msg("http shutdown")
	}
	hub.Close()
	if err := broker.Close(); err != nil {
		log.Warn().Err(err).Msg("broker close")
	}
	scheduler.Stop(sctx)
	if err := shutdownTracing(sctx); err != nil {
		log.Warn().Err(err).Msg("tracing shutdown")
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	log.Info().Msg("bye")
}

// newBroker selects the in-process broker or the Redis one shared by
// several replicas.
func newBroker(ctx context.Context, cfg config.RealtimeConfig) (realtime.Broker, error) {
	if cfg.Broker == "redis" {
		return realtime.NewRedisBroker(ctx, cfg.RedisURL, cfg.SendBuffer, log.Logger)
	}
	return realtime.NewMemoryBroker(cfg.SendBuffer), nil
}
