package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/quantlake/ohlcv-gateway/internal/config"
	"github.com/quantlake/ohlcv-gateway/internal/events"
	"github.com/quantlake/ohlcv-gateway/internal/logging"
	"github.com/quantlake/ohlcv-gateway/internal/mediator"
	"github.com/quantlake/ohlcv-gateway/internal/objstore"
	"github.com/quantlake/ohlcv-gateway/internal/partindex"
	"github.com/quantlake/ohlcv-gateway/internal/pathcodec"
	"github.com/quantlake/ohlcv-gateway/internal/router"
)

var (
	Version   = "dev"     // Injected via ldflags during build
	GitCommit = "unknown" // Injected via ldflags during build
	BuildTime = "unknown" // Injected via ldflags during build
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "", "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Setup logger
	logger, err := logging.NewFromConfig(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logging.SetGlobal(logger)
	logger.Info("Gateway service starting...",
		"version", Version, "commit", GitCommit, "build time", BuildTime)

	// Parse the partition layout
	template, err := pathcodec.Parse(cfg.Layout.Template, cfg.Layout.Timeframes)
	if err != nil {
		logger.Fatal("Invalid layout template", "error", err)
	}

	// Connect to the object store
	store, err := newStore(context.Background(), cfg.Store, logger)
	if err != nil {
		logger.Fatal("Failed to initialize object store", "error", err)
	}

	// Partition index with listing cache
	index, err := partindex.New(store, template, partindex.Options{
		TTL:             cfg.Cache.TTL,
		CleanupInterval: cfg.Cache.CleanupInterval,
		PageSize:        cfg.Store.ListPageSize,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to initialize partition index", "error", err)
	}
	defer index.Close()

	// Ingest event publisher (optional)
	publisher, err := events.NewPublisher(cfg.Events)
	if err != nil {
		logger.Fatal("Failed to connect event publisher", "error", err)
	}
	notifier := events.NewNotifier(publisher, cfg.Events.Subject, logger)
	defer func() { _ = notifier.Close() }()
	if publisher != nil {
		logger.Info("Ingest events enabled", "type", cfg.Events.Type, "subject", cfg.Events.Subject)
	}

	med, err := mediator.New(store, template, index, notifier, cfg.Access,
		cfg.Store.MaxUploadBytes, logger)
	if err != nil {
		logger.Fatal("Failed to initialize access mediator", "error", err)
	}

	// Log authentication status
	if cfg.Auth.Enabled {
		logger.Info("API key authentication enabled", "num_keys", len(cfg.Auth.APIKeys))
	} else {
		logger.Warn("API key authentication DISABLED - all requests will be allowed")
	}

	// Initialize router
	app := router.New(logger, template, index, med, *cfg)

	// Start server in goroutine
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.HTTPPort)
		logger.Info("Server listening", "address", addr, "bucket", cfg.Store.Bucket)
		if err := app.Listen(addr); err != nil {
			logger.Fatal("Failed to start server", "error", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	// Graceful shutdown with 10 second timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}

	logger.Info("Server exited")
}

// newStore builds the configured object store backend.
func newStore(ctx context.Context, cfg config.StoreConfig, logger *logging.Logger) (objstore.Store, error) {
	switch cfg.Backend {
	case "s3":
		logger.Info("Connecting to S3", "region", cfg.Region, "endpoint", cfg.Endpoint)
		client, err := objstore.NewS3Client(ctx, objstore.S3ClientConfig{
			Region:       cfg.Region,
			Endpoint:     cfg.Endpoint,
			UsePathStyle: cfg.UsePathStyle,
			AccessKey:    cfg.AccessKey,
			SecretKey:    cfg.SecretKey,
		})
		if err != nil {
			return nil, err
		}
		return objstore.NewS3StoreFromClient(client, cfg.Bucket, cfg.RequestTimeout)
	case "memory":
		// Ephemeral backend for local development
		return objstore.NewMemStore(), nil
	default:
		return nil, fmt.Errorf("unsupported store backend: %s", cfg.Backend)
	}
}
