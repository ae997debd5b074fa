package main

import (
	"context"
	"errors"
	"fmt"
	logByDefault "log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	config "github.com/plugfox/foxy-entity-store/internal/config"
	"github.com/plugfox/foxy-entity-store/internal/dao"
	log "github.com/plugfox/foxy-entity-store/internal/log"
	"github.com/plugfox/foxy-entity-store/internal/metrics"
	"github.com/plugfox/foxy-entity-store/internal/server"

	// This controls the maxprocs environment variable in container runtimes.
	// see https://martin.baillie.id/wrote/gotchas-in-the-go-network-packages-defaults/#bonus-gomaxprocs-containers-and-the-cfs
	"go.uber.org/automaxprocs/maxprocs"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// Set the local timezone to UTC
	time.Local = time.UTC

	// Initialize the configuration
	config, err := config.LoadConfig()
	if err != nil {
		logByDefault.Fatalf("Config load error: %v", err)
	}

	// Logger configuration
	logger := log.New(
		log.WithLevel(config.Verbose),
		log.WithSource(),
	)

	if err := run(config, logger); err != nil {
		logger.ErrorContext(context.Background(), "an error occurred", slog.String("error", err.Error()))
		os.Exit(1)
	}

	os.Exit(0)
}

func run(config *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	_, err := maxprocs.Set(maxprocs.Logger(func(s string, i ...interface{}) {
		logger.DebugContext(ctx, fmt.Sprintf(s, i...))
	}))
	if err != nil {
		return fmt.Errorf("setting max procs: %w", err)
	}

	// Setup metrics (no-op without an InfluxDB URL)
	metrics, err := metrics.New(&config.Metrics, map[string]string{"environment": config.Environment})
	if err != nil {
		return fmt.Errorf("metrics setup error: %w", err)
	}
	defer metrics.Close()

	// Setup entity storage
	repo, closeRepo, err := dao.Open(config, logger, metrics)
	if err != nil {
		return fmt.Errorf("storage setup error: %w", err)
	}
	defer func() {
		if err := closeRepo(); err != nil {
			logger.ErrorContext(ctx, "storage close error", slog.String("error", err.Error()))
		}
	}()

	// Setup API server
	srv := server.New(config, repo, logger)
	srv.AddHealthCheck(server.StorageHealth(repo, config.Storage.Backend))

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	logger.InfoContext(ctx, "Server started",
		slog.String("host", config.API.Host),
		slog.Int("port", config.API.Port),
		slog.String("backend", config.Storage.Backend),
		slog.String("root", config.Storage.Root),
	)

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("api server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.InfoContext(context.Background(), "Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("api server shutdown error: %w", err)
	}

	return nil
}
