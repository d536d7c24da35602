package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"echovia/internal/auth"
	"echovia/internal/cache"
	"echovia/internal/config"
	"echovia/internal/database"
	"echovia/internal/ingest"
	"echovia/internal/media"
	"echovia/internal/metadata"
	"echovia/internal/ngrok"
	"echovia/internal/server"

	"github.com/kkdai/youtube/v2"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const (
	shutdownTimeout = 15 * time.Second
	ingestQueueSize = 32
)

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			logger, closeLog, err := newLogger(cfg.Logging)
			if err != nil {
				return err
			}
			defer closeLog()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := serve(ctx, cfg, logger); err != nil {
				logger.WithError(err).Error("Server stopped with an error")
				return err
			}
			return nil
		},
	}
}

func serve(ctx context.Context, cfg *config.Config, logger *logrus.Logger) error {
	db, err := database.NewDatabase(cfg.Database.Path, logger)
	if err != nil {
		return fmt.Errorf("error initializing database: %w", err)
	}
	defer db.Close()

	authService, err := auth.NewService(&cfg.Auth, db, logger)
	if err != nil {
		return fmt.Errorf("error creating auth service: %w", err)
	}
	authService.Start(ctx)

	storage, err := media.NewStorage(cfg.Media.Dir, cfg.Media.PublicBaseURL, logger)
	if err != nil {
		return fmt.Errorf("error preparing media storage: %w", err)
	}
	extractor := metadata.NewExtractor(cfg.Media.SupportedFormats, logger)

	var catalog *cache.CatalogCache
	if cfg.Cache.Enabled {
		catalog = cache.NewCatalogCache(time.Duration(cfg.Cache.TTLMinutes) * time.Minute)
		go catalog.Run(ctx, time.Minute)
	}

	// The pipeline also relays album and edit thumbnails, so it is built
	// even when song ingestion is off.
	httpClient := &http.Client{}
	pipeline := ingest.NewPipeline(&cfg.Ingest, ingest.PipelineDeps{
		Converter: ingest.NewConverter(ingest.ConverterOptions{
			Host:              cfg.Ingest.APIHost,
			APIKey:            cfg.Ingest.APIKey,
			RequestsPerSecond: cfg.Ingest.RequestsPerSecond,
		}, logger),
		Thumbnails: ingest.YouTubeThumbnails{Client: &youtube.Client{HTTPClient: httpClient}},
		Fetcher:    ingest.NewFetcher(httpClient, storage, logger),
		Storage:    storage,
		Extractor:  extractor,
		Tracks:     db,
	}, logger)

	deps := server.Deps{
		DB:        db,
		Auth:      authService,
		Catalog:   catalog,
		Images:    pipeline,
		Storage:   storage,
		Extractor: extractor,
	}

	var jobs *ingest.JobManager
	if cfg.Ingest.Enabled {
		if cfg.Ingest.APIKey == "" {
			logger.Warn("Ingest is enabled but no API key is set; conversions will be rejected")
		}
		jobs = ingest.NewJobManager(pipeline, db, cfg.Ingest.Workers, ingestQueueSize, logger)
		jobs.Start(ctx)
		deps.Pipeline = pipeline
		deps.Jobs = jobs
	}

	musicServer := server.NewMusicServer(cfg, deps, logger)

	listener, err := net.Listen("tcp", cfg.GetAddress())
	if err != nil {
		return fmt.Errorf("error listening on %s: %w", cfg.GetAddress(), err)
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- musicServer.Serve(listener)
	}()

	if err := musicServer.StartImportWatcher(ctx); err != nil {
		logger.WithError(err).Warn("Import watcher disabled")
	}

	tunnel, err := ngrok.NewService(&cfg.Ngrok, logger)
	if err != nil {
		logger.WithError(err).Error("Ngrok disabled")
	} else if err := tunnel.StartTunnel(ctx, listener.Addr().String()); err != nil {
		logger.WithError(err).Error("Failed to start ngrok tunnel")
		tunnel = nil
	}

	select {
	case <-ctx.Done():
		logger.Info("Received shutdown signal")
	case err := <-serveErr:
		if err != nil {
			return err
		}
	case <-tunnel.Done():
		logger.Warn("Ngrok tunnel closed")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var errs []error
	if err := tunnel.Stop(); err != nil {
		errs = append(errs, fmt.Errorf("stop tunnel: %w", err))
	}
	if err := musicServer.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("shutdown server: %w", err))
	}
	if jobs != nil {
		jobs.Wait()
	}
	return errors.Join(errs...)
}
