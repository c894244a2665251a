// Command server runs the DocuMind HTTP backend.
//
// @title       DocuMind API
// @version     1.0
// @description Document uploads with uniform JSON failure envelopes.
// @BasePath    /api
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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-documind-backend/internal/async"
	"github.com/tbourn/go-documind-backend/internal/config"
	httpapi "github.com/tbourn/go-documind-backend/internal/http"
	"github.com/tbourn/go-documind-backend/internal/observability"
	"github.com/tbourn/go-documind-backend/internal/repo"
	"github.com/tbourn/go-documind-backend/internal/services"
	"github.com/tbourn/go-documind-backend/internal/storage"
	"github.com/tbourn/go-documind-backend/internal/sysutil"
)

const (
	shutdownTimeout = 15 * time.Second
	purgeInterval   = time.Hour
)

// version is set at build time with -ldflags "-X main.version=...".
var version string

func main() {
	// A missing .env is normal outside development.
	_ = godotenv.Load()

	cfg := config.MustLoad()
	sysutil.ConfigureLogging(cfg.LogLevel, cfg.LogPretty, os.Stderr)
	ver := sysutil.FirstNonEmpty(version, os.Getenv("APP_VERSION"), "dev")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, ver)
	if err != nil {
		log.Fatal().Err(err).Msg("otel setup failed")
	}

	db, err := repo.OpenSQLite(cfg.DBPath, repo.Options{Tracing: cfg.DBTracing})
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("open database")
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("migrate database")
	}

	store, err := storage.NewLocalStore(cfg.StorageDir)
	if err != nil {
		log.Fatal().Err(err).Str("dir", cfg.StorageDir).Msg("open file store")
	}

	exec := async.New(async.Options{
		CoreWorkers:   cfg.Async.CoreWorkers,
		MaxWorkers:    cfg.Async.MaxWorkers,
		QueueCapacity: queueCapacity(cfg.Async.QueueCapacity),
		KeepAlive:     cfg.Async.KeepAlive,
		NamePrefix:    cfg.Async.NamePrefix,
		Registerer:    prometheus.DefaultRegisterer,
	})

	svc := &services.DocumentService{
		DB:             db,
		Store:          store,
		Exec:           exec,
		IdempotencyTTL: cfg.IdempotencyTTL,
	}

	gin.SetMode(cfg.GinMode)
	r := gin.New()
	httpapi.RegisterRoutes(r, db, svc, cfg)

	srv := &http.Server{
		Addr:              net.JoinHostPort("", cfg.Port),
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	go purgeKeys(ctx, svc)

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Str("version", ver).Msg("listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("server failed")
		}
	}

	shCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shCtx); err != nil {
		log.Warn().Err(err).Msg("graceful shutdown failed")
		_ = srv.Close()
	}
	if err := exec.Shutdown(shCtx); err != nil {
		log.Warn().Err(err).Msg("background tasks did not finish")
	}
	if err := shutdownOTel(shCtx); err != nil {
		log.Warn().Err(err).Msg("trace flush failed")
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	log.Info().Msg("shutdown complete")
}

// queueCapacity maps the configured size to async.Options, where 0 selects
// the default and a negative value means direct hand-off.
func queueCapacity(n int) int {
	if n == 0 {
		return -1
	}
	return n
}

// purgeKeys removes expired idempotency records until ctx is done.
func purgeKeys(ctx context.Context, svc *services.DocumentService) {
	t := time.NewTicker(purgeInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			if _, err := svc.PurgeExpiredKeys(ctx, now.UTC()); err != nil {
				log.Warn().Err(err).Msg("idempotency purge failed")
			}
		}
	}
}
