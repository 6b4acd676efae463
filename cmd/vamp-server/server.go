package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/vamp-go/vamp-go/internal/api"
	"github.com/vamp-go/vamp-go/internal/backend"
	"github.com/vamp-go/vamp-go/internal/config"
	"github.com/vamp-go/vamp-go/internal/metrics"
	"github.com/vamp-go/vamp-go/internal/models"
	"github.com/vamp-go/vamp-go/internal/queue"
	"github.com/vamp-go/vamp-go/internal/render"
	"github.com/vamp-go/vamp-go/internal/telemetry"
)

const shutdownTimeout = 30 * time.Second

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := setupLogger(cfg.Logging)

	logger.Info().
		Str("listen", cfg.Server.Listen).
		Str("backend", cfg.Backend.URL).
		Int("workers", cfg.Generation.Workers).
		Int("max_queue", cfg.Generation.MaxQueue).
		Str("log_level", cfg.Logging.Level).
		Msg("Starting vamp server")

	shutdownTracing, err := telemetry.Init(context.Background(), cfg.Tracing, Version)
	if err != nil {
		return fmt.Errorf("failed to init tracing: %w", err)
	}

	registry, err := models.Load(cfg.Models.ConfDir, cfg.Models.Default, logger)
	if err != nil {
		return fmt.Errorf("failed to load models: %w", err)
	}

	backendClient := backend.NewClient(&cfg.Backend)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := backendClient.Health(ctx); err != nil {
		logger.Warn().Err(err).Msg("Backend health check failed - server will start but generation may not work")
	} else {
		logger.Info().Str("backend", cfg.Backend.URL).Msg("Backend connection verified")
	}
	cancel()

	m := metrics.New()
	jobs := queue.NewManager(queue.Config{
		Workers:  cfg.Generation.Workers,
		MaxQueue: cfg.Generation.MaxQueue,
		Observer: m,
	})
	renderer := render.New(backendClient, registry, logger, render.Options{
		CoarseCodebooks: cfg.Generation.CoarseCodebooks,
		MaxPasses:       cfg.Limits.MaxPasses,
		MaxPreviewCells: cfg.Limits.MaxPreviewCells,
		Recorder:        m,
	})

	router := api.NewRouter(cfg, api.Dependencies{
		Backend:  backendClient,
		Renderer: renderer,
		Models:   registry,
		Queue:    jobs,
		Metrics:  m,
	}, logger)

	srv := &http.Server{
		Addr:         cfg.Server.Listen,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.Server.Listen).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		return fmt.Errorf("server error: %w", err)
	case sig := <-quit:
		logger.Info().Str("signal", sig.String()).Msg("Shutting down server...")
	}

	ctx, cancel = context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}
	if err := jobs.Shutdown(ctx); err != nil {
		return fmt.Errorf("queue shutdown error: %w", err)
	}
	if err := shutdownTracing(ctx); err != nil {
		logger.Warn().Err(err).Msg("Trace exporter shutdown failed")
	}

	logger.Info().Msg("Server stopped")
	return nil
}

// loadConfig resolves flags, environment, config file and defaults, in that
// order of precedence.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	if cmd != nil {
		for _, b := range bindings {
			if flag := cmd.Flags().Lookup(b.flag); flag != nil {
				_ = viper.BindPFlag(b.key, flag)
			}
		}
	}

	cfg := config.Default()
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, err
	}

	if cfg.Generation.Workers < 1 {
		return nil, fmt.Errorf("generation.workers must be >= 1, got %d", cfg.Generation.Workers)
	}
	if cfg.Limits.MaxPasses < 1 {
		return nil, fmt.Errorf("limits.max_passes must be >= 1, got %d", cfg.Limits.MaxPasses)
	}
	return cfg, nil
}

func setupLogger(cfg config.LoggingConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Format == "text" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}
