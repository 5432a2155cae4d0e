package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/edvin/tenantctl/internal/config"
	"github.com/edvin/tenantctl/internal/core"
	"github.com/edvin/tenantctl/internal/db"
	"github.com/edvin/tenantctl/internal/jobs"
	"github.com/edvin/tenantctl/internal/logging"
	"github.com/edvin/tenantctl/internal/metrics"
	"github.com/edvin/tenantctl/internal/notify"
	"github.com/edvin/tenantctl/internal/queue"
	"github.com/edvin/tenantctl/internal/runner"
	"github.com/edvin/tenantctl/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate("worker"); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewLogger(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	metrics.RegisterPgxPoolMetrics(pool)

	rq := queue.New(cfg)
	if err := rq.Ping(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to redis")
	}
	metrics.RegisterQueueDepth(rq.Depth)

	notifier := notify.FromConfig(logger, cfg.SlackWebhookURL,
		cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword,
		cfg.AlertEmailFrom, cfg.AlertEmailTo)
	run := runner.NewExecRunner(logger, cfg)
	store := storage.NewS3Store(logger, cfg)
	jobStore := core.NewJobService(pool, rq)

	handlers := jobs.NewHandlers(logger, run, store, cfg.S3Prefix, cfg.S3RetentionDays)

	metricsServer := metrics.NewServer(cfg.HTTPListenAddr)
	go func() {
		logger.Info().Str("addr", cfg.HTTPListenAddr).Msg("starting metrics server")
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("metrics server failed")
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < cfg.WorkerConcurrency; i++ {
		workerLogger := logger.With().Int("worker", i).Logger()
		processor := jobs.NewProcessor(workerLogger, jobStore, rq, notifier)
		handlers.RegisterAll(processor)

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := processor.Run(ctx); err != nil && ctx.Err() == nil {
				workerLogger.Error().Err(err).Msg("worker loop stopped")
			}
		}()
	}
	logger.Info().Int("concurrency", cfg.WorkerConcurrency).Msg("worker started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down worker")
	cancel()
	wg.Wait()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	metricsServer.Shutdown(shutdownCtx)
}
