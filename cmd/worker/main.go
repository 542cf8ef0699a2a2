package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"kiranalogo/internal/app"
	"kiranalogo/internal/infra"
)

const (
	sweepParallelism = 4
	sweepTimeout     = 2 * time.Minute
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv).With().Str("component", "worker").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c, err := app.Build(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: failed to initialise services")
	}
	defer c.Close()

	cronLog := cronLogger{logger: logger}
	scheduler := cron.New(
		cron.WithLogger(cronLog),
		cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
	)
	if _, err := scheduler.AddFunc(cfg.ReconcileSchedule, func() { sweep(ctx, c, logger) }); err != nil {
		logger.Fatal().Err(err).Str("schedule", cfg.ReconcileSchedule).Msg("worker: invalid reconcile schedule")
	}

	logger.Info().
		Str("schedule", cfg.ReconcileSchedule).
		Dur("stale_after", cfg.ReconcileStaleAfter).
		Int("batch", cfg.ReconcileBatchSize).
		Dur("max_age", cfg.ReconcileMaxAge).
		Msg("worker: started")
	sweep(ctx, c, logger)
	scheduler.Start()

	<-ctx.Done()
	<-scheduler.Stop().Done()
	logger.Info().Msg("worker: stopped")
}

func sweep(ctx context.Context, c *app.Container, logger infra.Logger) {
	if ctx.Err() != nil {
		return
	}
	runCtx, cancel := context.WithTimeout(ctx, sweepTimeout)
	defer cancel()

	res, err := c.Generation.Sweep(runCtx, c.Config.ReconcileStaleAfter, c.Config.ReconcileBatchSize, sweepParallelism)
	c.Metrics.RecordSweep(res)
	if err != nil {
		logger.Error().Err(err).Msg("worker: sweep failed")
		return
	}
	if res.Checked > 0 {
		logger.Info().
			Int("checked", res.Checked).
			Int("moved", res.Moved).
			Int("failed", res.Failed).
			Int("expired", res.Expired).
			Msg("worker: sweep finished")
	}
}

// cronLogger adapts zerolog to cron.Logger.
type cronLogger struct {
	logger infra.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg("cron: " + msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error().Err(err).Fields(keysAndValues).Msg("cron: " + msg)
}
