package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/caredesk/frontdesk/internal/audit"
	"github.com/caredesk/frontdesk/internal/config"
	"github.com/caredesk/frontdesk/internal/db"
	"github.com/caredesk/frontdesk/internal/patient"
	"github.com/caredesk/frontdesk/internal/queueing"
	redisclient "github.com/caredesk/frontdesk/internal/redis"
	"github.com/caredesk/frontdesk/internal/sequence"
)

// The sweeper cancels queue entries the front desk forgot to close out:
// anyone still waiting or in consultation on a past date.

func main() {
	cfg, err := config.Load()
	if err != nil {
		errLog := zerolog.New(os.Stderr)
		errLog.Fatal().Err(err).Msg("config load error")
	}

	log := zerolog.New(os.Stdout).With().Timestamp().Str("service", "queue-sweeper").Logger()
	log.Info().Str("env", cfg.Env).Dur("interval", cfg.SweepInterval).Msg("queue-sweeper starting up")

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

	queueRepo := queueing.NewPgRepository(pgPool)
	resolver := patient.NewResolver(patient.NewPgRepository(pgPool))
	svc := queueing.NewService(pgPool, queueRepo, nil, nil, resolver,
		sequence.NewPgAllocator(), audit.NopRecorder{}, redisclient.NopNotifier{}, log)

	runOnce(rootCtx, svc, log)

	ticker := time.NewTicker(cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			log.Info().Msg("shutdown signal received, stopping queue sweeper")
			return
		case <-ticker.C:
			runOnce(rootCtx, svc, log)
		}
	}
}

func runOnce(ctx context.Context, svc *queueing.Service, log zerolog.Logger) {
	runCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	start := time.Now()
	count, err := svc.SweepStale(runCtx, time.Now())
	if err != nil {
		log.Error().Err(err).Msg("sweep run error")
		return
	}
	log.Info().Int64("cancelled", count).Dur("took", time.Since(start)).Msg("sweep run complete")
}
