package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hospitality-spend-ledger/internal/analytics_api"
	"github.com/hospitality-spend-ledger/internal/analytics_api/service"
	"github.com/hospitality-spend-ledger/internal/config"
	"github.com/hospitality-spend-ledger/internal/data/mongo"
	"github.com/hospitality-spend-ledger/internal/data/postgres"
	redisdata "github.com/hospitality-spend-ledger/internal/data/redis"
	"github.com/hospitality-spend-ledger/internal/logger"
	"github.com/hospitality-spend-ledger/internal/platform/messaging/producers"
	"github.com/hospitality-spend-ledger/internal/platform/persistence"
	"github.com/hospitality-spend-ledger/internal/retro"
	"github.com/hospitality-spend-ledger/internal/spend"
	"github.com/hospitality-spend-ledger/internal/supersession"
)

func main() {
	// Create base context with cancellation
	appCtx, cancelAppCtx := context.WithCancel(context.Background())
	defer cancelAppCtx()

	// Initialize configuration
	cfg, err := config.LoadConfig("analytics_api")
	if err != nil {
		// logger is not initialized yet, so we use fmt
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.NewLogger(cfg)

	// Initialize databases with app context
	postgresDB, err := persistence.NewPostgresDB(appCtx, log, &cfg.Postgres)
	if err != nil {
		log.Error("Failed to initialize PostgreSQL", "error", err)
		os.Exit(1)
	}

	mongoDB, err := persistence.NewMongoDB(appCtx, log, &cfg.MongoDB)
	if err != nil {
		log.Error("Failed to initialize MongoDB", "error", err)
		os.Exit(1)
	}

	redisDB, err := persistence.NewRedis(appCtx, log, &cfg.Redis)
	if err != nil {
		log.Error("Failed to initialize Redis", "error", err)
		os.Exit(1)
	}

	// Snapshot refreshes are queued for the retro processor
	refreshProducer, err := producers.NewRefreshRequestProducer(appCtx, log, &cfg.Kafka)
	if err != nil {
		log.Error("Failed to initialize refresh request Kafka producer", "error", err)
		os.Exit(1)
	}

	// Initialize repositories
	documentRepo := postgres.NewDocumentRepository(log, postgresDB)
	invoiceRepo := postgres.NewInvoiceRepository(log, postgresDB)
	supplierRepo := postgres.NewSupplierRepository(log, postgresDB)
	productRepo := postgres.NewProductRepository(log, postgresDB)
	batchRepo := postgres.NewBatchRepository(log, postgresDB)
	auditRepo := postgres.NewAuditRepository(log, postgresDB)
	outboxRepo := postgres.NewOutboxRepository(log, postgresDB)
	snapshotRepo := postgres.NewSnapshotRepository(log, postgresDB)
	historyRepo := mongo.NewHistoryRepository(log, mongoDB.Database())
	if err := historyRepo.EnsureIndexes(appCtx); err != nil {
		log.Error("Failed to ensure batch history indexes", "error", err)
		os.Exit(1)
	}

	// Initialize services
	spendService := spend.NewService(
		invoiceRepo,
		supersession.NewResolver(invoiceRepo, log),
		supplierRepo,
		productRepo,
		log,
	)
	cache, locker := snapshotBackends(log, redisDB, &cfg.Redis)
	snapshotService := spend.NewSnapshotService(postgresDB, spendService, snapshotRepo, cache, locker, log)

	approver := retro.NewApprover(documentRepo, invoiceRepo, batchRepo, auditRepo, outboxRepo, log)
	processor := retro.NewProcessor(
		postgresDB,
		documentRepo,
		batchRepo,
		approver,
		cfg.Features,
		retroConfig(&cfg.Retro),
		log,
	)

	// Initialize REST server
	server := analytics_api.NewServer(log, cfg, analytics_api.Services{
		Verification: service.NewVerificationService(log, postgresDB, documentRepo, invoiceRepo, cfg.Features),
		Retro:        processor,
		History:      service.NewHistoryService(log, historyRepo),
		Spend:        spendService,
		Snapshots:    snapshotService,
		Refresh:      service.NewRefreshService(log, refreshProducer),
	})
	log.Info("REST server initialized")

	// Create error channel for server errors
	errChan := make(chan error, 1)

	// Start server in goroutine
	go func() {
		log.Info("Starting HTTP server", "port", cfg.Server.Port)
		if err := server.Start(); err != nil {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	// Set up signal handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	// Wait for a shutdown signal or error
	var serverErr error
	select {
	case <-quit:
		log.Info("Shutdown signal received")
	case err := <-errChan:
		log.Error("Server error occurred", "error", err)
		serverErr = err
	}

	// Cancel the application context
	cancelAppCtx()

	// Create a shutdown context with timeout
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancelShutdown()

	// Graceful shutdown sequence
	log.Info("Starting graceful shutdown...")

	// Stop accepting requests before the stores go away
	if err = server.Stop(shutdownCtx, cfg.Server.ShutdownTimeout); err != nil {
		log.Error("Error during server shutdown", "error", err)
	}

	if err = refreshProducer.Close(); err != nil {
		log.Error("Error closing Kafka producer", "error", err)
	}

	postgresDB.Close()

	if redisDB != nil {
		if err = redisDB.Close(); err != nil {
			log.Error("Error closing Redis connection", "error", err)
		}
	}

	if err = mongoDB.Close(shutdownCtx); err != nil {
		log.Error("Error closing MongoDB connection", "error", err)
	}

	// Final status
	if serverErr != nil {
		log.Error("HTTP server shutdown with errors", "error", serverErr)
	}
	if err != nil {
		log.Error("Server shutdown completed with errors")
	} else {
		log.Info("Server shutdown completed successfully")
	}
}

// snapshotBackends falls back to uncached pages and process-local locks when Redis is disabled
func snapshotBackends(log *slog.Logger, redisDB *persistence.Redis, cfg *config.RedisConfig) (spend.PageCache, spend.Locker) {
	if redisDB == nil {
		return spend.NoopCache{}, spend.LocalLocker{}
	}
	return redisdata.NewSnapshotCache(log, redisDB.Client(), cfg.SnapshotCacheTTL),
		redisdata.NewRefreshLocker(log, redisDB.Locker(), cfg.RefreshLockTTL)
}

func retroConfig(cfg *config.RetroConfig) retro.Config {
	return retro.Config{
		MaxApprovalsPerRun: cfg.MaxApprovalsPerRun,
		MaxScanned:         cfg.MaxScanned,
		PreviewSampleSize:  cfg.PreviewSampleSize,
		StaleBatchAfter:    cfg.StaleBatchAfter,
	}
}
