package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/p-blackswan/deepforge/internal/api"
	"github.com/p-blackswan/deepforge/internal/collab"
	"github.com/p-blackswan/deepforge/internal/config"
	"github.com/p-blackswan/deepforge/internal/docstore"
	"github.com/p-blackswan/deepforge/internal/health"
	"github.com/p-blackswan/deepforge/internal/metrics"
	"github.com/p-blackswan/deepforge/internal/project"
	"github.com/p-blackswan/deepforge/internal/vcs"
)

func main() {
	// Setup structured logging
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	logger := zerolog.New(os.Stdout).With().Timestamp().Caller().Logger()

	if os.Getenv("ENVIRONMENT") == "development" {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	log.Logger = logger

	// Load config
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}

	// Set log level
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err == nil {
		zerolog.SetGlobalLevel(level)
	}

	logger.Info().
		Str("environment", cfg.Environment).
		Str("listen_addr", cfg.HTTPListenAddr).
		Str("storage_root", cfg.StorageRoot).
		Msg("starting deepforge")

	// Document store and repository registry
	store, err := docstore.New(cfg.StorageRoot, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open document store")
	}
	registry, err := vcs.NewRegistry(store, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize repository registry")
	}

	// Project and collaboration managers
	projects, err := project.NewManager(store, registry, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize project manager")
	}
	metricsCollector := metrics.New()
	collabMgr := collab.NewManager(projects, registry, metricsCollector, nil, logger)

	// Readiness checks
	checker := health.NewChecker(logger)
	checker.Register("docstore", func(ctx context.Context) health.Status {
		if _, err := os.Stat(store.Root()); err != nil {
			return health.StatusDown
		}
		return health.StatusOK
	})

	// HTTP API
	server := api.NewServer(api.ServerConfig{
		ListenAddr:          cfg.HTTPListenAddr,
		CORSOrigins:         cfg.CORSOrigins,
		SessionWaitMax:      cfg.SessionWaitMax,
		SessionPollInterval: cfg.SessionPollInterval,
	}, registry, projects, collabMgr, checker, metricsCollector, logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info().Str("signal", sig.String()).Msg("shutting down")
		if err := server.Shutdown(); err != nil {
			logger.Error().Err(err).Msg("server shutdown failed")
		}
	case err := <-errCh:
		if err != nil {
			logger.Fatal().Err(err).Msg("server exited")
		}
	}

	logger.Info().Msg("deepforge stopped")
}
