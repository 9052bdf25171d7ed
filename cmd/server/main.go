package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/neurodetect-server/internal/api"
	"github.com/neurodetect-server/internal/config"
	"github.com/neurodetect-server/internal/database"
	"github.com/neurodetect-server/internal/domain"
	"github.com/neurodetect-server/internal/logging"
	"github.com/neurodetect-server/internal/registry"
	"github.com/neurodetect-server/internal/resultstore"
	"github.com/neurodetect-server/internal/service"
	"github.com/neurodetect-server/pkg/classifier"
)

func main() {
	// Load configuration
	configManager, err := config.NewManager()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Validate configuration
	if err := configManager.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}

	cfg := configManager.GetConfig()
	logger := logging.New(cfg.Logging)
	logger.WithFields(logrus.Fields{
		"host":             cfg.Server.Host,
		"port":             cfg.Server.Port,
		"registry_backend": cfg.Storage.RegistryBackend,
		"result_backend":   cfg.Storage.ResultBackend,
	}).Info("Starting NeuroDetect server")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reg, results, cleanup, err := buildStores(ctx, configManager, logger)
	if err != nil {
		cleanup()
		logger.WithError(err).Fatal("Failed to initialize storage backends")
	}
	defer cleanup()

	client := classifier.NewClient(cfg.Classifier, logger)
	orchestrator := service.NewOrchestrator(client, results, reg, logger)
	server := api.NewServer(cfg.Server, orchestrator, results, reg, cfg.Logging.Level, logger)

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, gracefully shutting down")
		cancel()
	}()

	// Start server
	if err := server.Start(ctx); err != nil {
		logger.WithError(err).Fatal("Server failed")
	}

	logger.Info("Server stopped")
}

// buildStores constructs the configured registry and result store backends.
// The returned cleanup closes everything opened so far, in reverse order,
// and is safe to call on a partial failure.
func buildStores(ctx context.Context, configManager *config.Manager, logger *logrus.Logger) (domain.PatientRegistry, domain.ResultStore, func(), error) {
	cfg := configManager.GetConfig()

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if cfg.Storage.RegistryBackend == "postgres" || cfg.Storage.ResultBackend == "postgres" {
		if err := database.RunMigrations(configManager.GetDatabaseURL(), cfg.Storage.MigrationsPath, logger); err != nil {
			return nil, nil, cleanup, fmt.Errorf("running migrations: %w", err)
		}
	}

	var reg domain.PatientRegistry
	var err error
	switch cfg.Storage.RegistryBackend {
	case "postgres":
		db, dberr := database.NewConnection(ctx, cfg.Database, logger)
		if dberr != nil {
			return nil, nil, cleanup, dberr
		}
		closers = append(closers, db.Close)
		reg, err = registry.NewPostgresRegistry(ctx, db.Pool, cfg.Storage.SeedDemoData, logger)
	case "memory":
		reg = registry.NewMemoryRegistry(cfg.Storage.SeedDemoData)
	default:
		reg, err = registry.NewSQLiteRegistry(cfg.Storage.SQLitePath, cfg.Storage.SeedDemoData, logger)
	}
	if err != nil {
		return nil, nil, cleanup, fmt.Errorf("initializing patient registry: %w", err)
	}
	closers = append(closers, func() { reg.Close() })

	var results domain.ResultStore
	switch cfg.Storage.ResultBackend {
	case "postgres":
		results, err = resultstore.NewPostgresStore(configManager.GetDatabaseConnectionString(), logger)
	case "redis":
		results, err = resultstore.NewRedisStore(cfg.Cache.RedisURL, logger)
	case "memory":
		results = resultstore.NewMemoryStore()
	default:
		results, err = resultstore.NewSQLiteStore(cfg.Storage.SQLitePath, logger)
	}
	if err != nil {
		return nil, nil, cleanup, fmt.Errorf("initializing result store: %w", err)
	}
	closers = append(closers, func() { results.Close() })

	return reg, results, cleanup, nil
}
