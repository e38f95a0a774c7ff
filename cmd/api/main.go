package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dvloznov/asset-tracker/internal/api/handlers"
	"github.com/dvloznov/asset-tracker/internal/api/middleware"
	bq "github.com/dvloznov/asset-tracker/internal/bigquery"
	"github.com/dvloznov/asset-tracker/internal/bootstrap"
	"github.com/dvloznov/asset-tracker/internal/config"
	"github.com/dvloznov/asset-tracker/internal/jobs/inmemory"
	"github.com/dvloznov/asset-tracker/internal/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		startupLog := logger.New()
		startupLog.Fatal().Err(err).Msg("Invalid configuration")
	}

	port := flag.String("port", cfg.Port, "HTTP server port (or set PORT env)")
	flag.Parse()

	log := logger.NewWithLevel(cfg.LogLevel, logger.Format(cfg.LogFormat))

	ctx := context.Background()
	services, err := bootstrap.New(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize services")
	}
	defer services.Close()

	// Initialize job infrastructure
	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(cfg.ImportQueueSize, jobStore,
		inmemory.WithWorkers(cfg.ImportWorkers),
		inmemory.WithLogger(log.With().Str("component", "import_queue").Logger()),
	)

	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()

	if services.Importer != nil {
		log.Info().Int("workers", cfg.ImportWorkers).Msg("Starting import workers")
		if err := jobQueue.Start(workerCtx, handlers.ImportJobHandler(services.Importer, services.App, log)); err != nil {
			log.Fatal().Err(err).Msg("Failed to start import workers")
		}
	}

	// Optional destinations stay nil interfaces when unavailable.
	var backups handlers.BackupWriter
	if services.Backups != nil {
		backups = services.Backups
	}
	var analytics bq.AnalyticsRepository
	if services.Analytics != nil {
		analytics = services.Analytics
	}
	var uploader handlers.StatementUploader
	if services.Storage != nil {
		uploader = services.Storage
	}

	validate := handlers.NewValidator()
	mux := newRouter(routes{
		session:        handlers.NewSessionHandler(services.Auth, services.App, validate, log),
		accounts:       handlers.NewAccountsHandler(services.App, validate, log),
		jobs:           handlers.NewJobsHandler(jobStore, jobQueue, uploader, cfg.GCSBucket, services.App, validate, log),
		exports:        handlers.NewExportsHandler(services.App, backups, analytics, log),
		importsEnabled: services.Importer != nil,
	})

	handler := middleware.Chain(mux,
		middleware.Recovery(log),
		middleware.Logger(log),
		middleware.RequestID,
		middleware.CORS,
		middleware.Auth(services.Session, publicPrefixes...),
	)

	server := &http.Server{
		Addr:         ":" + *port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("port", *port).Str("store", cfg.StoreBackend).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Stop job queue and wait for in-flight imports
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}
	cancelWorker()

	log.Info().Msg("Server exited")
}
