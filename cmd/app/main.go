// File: cmd/app/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"log-archiver/internal/config"
	"log-archiver/internal/domain/model"
	"log-archiver/internal/infra/archive"
	pg "log-archiver/internal/infra/db/postgres"
	"log-archiver/internal/infra/fetch"
	"log-archiver/internal/infra/logging"
	"log-archiver/internal/infra/metrics"
	"log-archiver/internal/infra/sched"
	"log-archiver/internal/infra/storage"
	"log-archiver/internal/infra/web"
	"log-archiver/internal/infra/worker"
	"log-archiver/internal/usecase"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (console logs)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	metrics.MustRegister()

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 10)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()

	jobRepo := pg.NewJobRepo(pool)
	tm := pg.NewTxManager(pool)
	fetcher := fetch.NewPostgresFetcher(pool)

	// ---- Archive staging + storage backend ----
	writer, err := archive.NewWriter(cfg.Archive.OutputDirectory, archive.Format(cfg.Archive.FileFormat))
	if err != nil {
		logger.Fatal().Err(err).Msg("archive writer")
	}
	backend, err := storage.NewBackend(ctx, cfg.Storage)
	if err != nil {
		logger.Fatal().Err(err).Msg("storage backend")
	}
	dispatcher := storage.NewDispatcher(backend, cfg.Storage.Backend, logger)
	logger.Info().Str("backend", cfg.Storage.Backend).Str("key_prefix", cfg.Storage.KeyPrefix).Msg("storage configured")

	// ---- Use cases ----
	loc := cfg.Scheduler.Location()
	dailyUC := usecase.NewDailyJobUseCase(jobRepo, tm, logger)
	processorUC := usecase.NewSlotProcessorUseCase(jobRepo, fetcher, writer, dispatcher, usecase.SlotProcessorConfig{
		Location:      loc,
		MaxAttempts:   cfg.Retry.MaxAttempts,
		FetchTimeout:  cfg.Fetch.Timeout,
		UploadTimeout: cfg.Storage.UploadTimeout,
	}, logger)
	retentionUC := usecase.NewRetentionUseCase(jobRepo, backend, usecase.RetentionConfig{
		DBRetentionDays:      cfg.Retention.DBRetentionDays,
		StorageRetentionDays: cfg.Retention.StorageRetentionDays,
		Location:             loc,
	}, logger)

	// ---- Retry coordinator ----
	retryPool := worker.NewPool(cfg.Retry.Concurrency, logger)
	retryPool.Start(ctx)
	defer retryPool.Stop()
	retryProc := worker.NewRetryProcessor(jobRepo, processorUC, retryPool, cfg.Retry.MaxAttempts, cfg.Retry.StaleAfter, logger)

	// ---- Scheduler ----
	scheduler, err := sched.New(cfg.Scheduler, dailyUC, processorUC, retryProc, retentionUC, cfg.Retention.DryRun, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("scheduler")
	}
	scheduler.Start(ctx)
	defer scheduler.Stop()

	// Today's job exists before the first hourly tick.
	if _, err := dailyUC.CreateDailyJob(ctx, time.Now().In(loc).Format(model.DateLayout)); err != nil {
		logger.Error().Err(err).Msg("startup daily job creation failed")
	}

	// ---- HTTP status surface ----
	srv := web.NewServer(dailyUC, processorUC, retentionUC, cfg.Web.APIKey, logger)
	server := &http.Server{Addr: fmt.Sprintf(":%d", cfg.Web.Port), Handler: srv.Router()}
	go func() {
		logger.Info().Str("addr", server.Addr).Msg("http listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("http server error")
		}
	}()

	// ---- Wait for shutdown ----
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info().Msg("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
}
