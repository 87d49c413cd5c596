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

	"github.com/caredesk/frontdesk/internal/api"
	"github.com/caredesk/frontdesk/internal/audit"
	"github.com/caredesk/frontdesk/internal/config"
	"github.com/caredesk/frontdesk/internal/db"
	"github.com/caredesk/frontdesk/internal/patient"
	"github.com/caredesk/frontdesk/internal/queueing"
	redisclient "github.com/caredesk/frontdesk/internal/redis"
	"github.com/caredesk/frontdesk/internal/scheduling"
	"github.com/caredesk/frontdesk/internal/sequence"
)

const version = "1.2.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		errLog := zerolog.New(os.Stderr)
		errLog.Fatal().Err(err).Msg("config load error")
	}

	log := newLogger(cfg.Env, "api-server")
	log.Info().Str("env", cfg.Env).Str("http_port", cfg.HTTPPort).Msg("api-server starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		log.Fatal().Err(err).Msg("postgres connection error")
	}
	defer pgPool.Close()
	log.Info().Msg("connected to Postgres")

	if err := db.Migrate(rootCtx, pgPool); err != nil {
		log.Fatal().Err(err).Msg("migration error")
	}

	rdb, err := redisclient.NewRedisClient(cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		log.Fatal().Err(err).Msg("redis connection error")
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			log.Error().Err(err).Msg("error closing redis")
		}
	}()
	log.Info().Msg("connected to Redis")

	patientRepo := patient.NewPgRepository(pgPool)
	resolver := patient.NewResolver(patientRepo)
	allocator := sequence.NewPgAllocator()
	recorder := audit.NewPgRecorder(pgPool, log)
	notifier := redisclient.NewBoardNotifier(rdb, log)

	schedRepo := scheduling.NewPgRepository(pgPool)
	scheduler := scheduling.NewService(pgPool, schedRepo, resolver, allocator, recorder, cfg.ClinicName, log)

	queueRepo := queueing.NewPgRepository(pgPool)
	queue := queueing.NewService(pgPool, queueRepo, schedRepo, scheduler, resolver, allocator, recorder, notifier, log)

	handler := api.NewRouter(api.RouterConfig{
		Scheduler: scheduler,
		Queue:     queue,
		PgPool:    pgPool,
		Redis:     rdb,
		Log:       log,
		Env:       cfg.Env,
		Version:   version,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("http server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-rootCtx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("http server error")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown error")
	}

	log.Info().Msg("api-server stopped")
}

func newLogger(env, service string) zerolog.Logger {
	var out = zerolog.New(os.Stdout)
	if env == "dev" {
		out = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
	return out.With().Timestamp().Str("service", service).Logger()
}
