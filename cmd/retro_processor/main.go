package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/hospitality-spend-ledger/internal/config"
	"github.com/hospitality-spend-ledger/internal/data/mongo"
	"github.com/hospitality-spend-ledger/internal/data/postgres"
	redisdata "github.com/hospitality-spend-ledger/internal/data/redis"
	"github.com/hospitality-spend-ledger/internal/logger"
	"github.com/hospitality-spend-ledger/internal/platform/messaging/consumers"
	"github.com/hospitality-spend-ledger/internal/platform/messaging/producers"
	"github.com/hospitality-spend-ledger/internal/platform/persistence"
	"github.com/hospitality-spend-ledger/internal/retro"
	"github.com/hospitality-spend-ledger/internal/retro_processor/consumer"
	"github.com/hospitality-spend-ledger/internal/retro_processor/outbox_poller"
	"github.com/hospitality-spend-ledger/internal/retro_processor/service"
	"github.com/hospitality-spend-ledger/internal/spend"
	"github.com/hospitality-spend-ledger/internal/supersession"
)

func main() {
	// Create base context with cancellation
	appCtx, cancelAppCtx := context.WithCancel(context.Background())
	defer cancelAppCtx()

	// Initialize configuration
	cfg, err := config.LoadConfig("retro_processor")
	if err != nil {
		// logger is not initialized yet, so we use fmt
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.NewLogger(cfg)

	log.Info("Starting Retro Processor",
		"app_name", cfg.Application.Name,
		"env", cfg.Application.Env,
	)

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

	// Initialize Kafka consumers, one reader per topic in the same group
	supplierConsumer := consumers.NewKafkaConsumer(appCtx, log, &cfg.Kafka, cfg.Kafka.SupplierEventsTopic)
	refreshConsumer := consumers.NewKafkaConsumer(appCtx, log, &cfg.Kafka, cfg.Kafka.RefreshRequestsTopic)

	// Initialize Kafka DLQ producer
	dlqProducer, err := producers.NewDLQProducer(appCtx, log, &cfg.Kafka)
	if err != nil {
		log.Error("Failed to initialize DLQ Kafka producer", "error", err)
		os.Exit(1)
	}
	var deadLetters producers.DeadLetterPublisher
	if dlqProducer != nil {
		deadLetters = dlqProducer
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
		retro.Config{
			MaxApprovalsPerRun: cfg.Retro.MaxApprovalsPerRun,
			MaxScanned:         cfg.Retro.MaxScanned,
			PreviewSampleSize:  cfg.Retro.PreviewSampleSize,
			StaleBatchAfter:    cfg.Retro.StaleBatchAfter,
		},
		log,
	)

	refreshPool, err := service.NewRefreshPool(snapshotService, service.WorkerPoolConfig{Size: cfg.WorkerPool.Size}, log)
	if err != nil {
		log.Error("Failed to initialize refresh worker pool", "error", err)
		os.Exit(1)
	}

	// Initialize event handlers
	supplierEventHandler := consumer.NewSupplierEventHandler(log, processor, deadLetters)
	refreshRequestHandler := consumer.NewRefreshRequestHandler(log, refreshPool, deadLetters)

	// Initialize outbox poller
	batchPublisher := outbox_poller.NewBatchPublisher(
		outboxRepo,
		historyRepo,
		snapshotService,
		log,
	)
	poller := outbox_poller.NewPoller(
		&cfg.Outbox,
		outboxRepo,
		batchPublisher,
		log,
	)

	// Create error channel for service errors
	errChan := make(chan error, 2)

	// Create wait group for graceful shutdown
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Info("Starting Kafka consumer",
			"topic", cfg.Kafka.SupplierEventsTopic,
			"group", cfg.Kafka.ConsumerGroup,
		)
		if err := supplierConsumer.Subscribe(appCtx, supplierEventHandler.HandleMessage); err != nil {
			errChan <- fmt.Errorf("supplier events consumer error: %w", err)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Info("Starting Kafka consumer",
			"topic", cfg.Kafka.RefreshRequestsTopic,
			"group", cfg.Kafka.ConsumerGroup,
		)
		if err := refreshConsumer.Subscribe(appCtx, refreshRequestHandler.HandleMessage); err != nil {
			errChan <- fmt.Errorf("refresh requests consumer error: %w", err)
		}
	}()

	// Start outbox poller in a goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()
		poller.Start(appCtx)
	}()

	// Set up signal handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	// Wait for a shutdown signal or error
	var serviceErr error
	select {
	case <-quit:
		log.Info("Shutdown signal received")
	case err := <-errChan:
		log.Error("Service error occurred", "error", err)
		serviceErr = err
	}

	// Cancel the application context
	cancelAppCtx()

	refreshPool.Shutdown()

	// Create a shutdown context with timeout
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancelShutdown()

	// Graceful shutdown sequence
	log.Info("Starting graceful shutdown...")

	// Wait for all goroutines to finish
	log.Info("Waiting for services to stop...")
	wgChan := make(chan struct{})
	go func() {
		wg.Wait()
		close(wgChan)
	}()

	select {
	case <-wgChan:
		log.Info("All services stopped successfully")
	case <-shutdownCtx.Done():
		log.Warn("Shutdown timeout reached, forcing exit")
	}

	if dlqProducer != nil {
		if err = dlqProducer.Close(); err != nil {
			log.Error("Error closing DLQ Kafka producer", "error", err)
		}
	}

	if err = supplierConsumer.Close(); err != nil {
		log.Error("Error closing supplier events consumer", "error", err)
	}
	if err = refreshConsumer.Close(); err != nil {
		log.Error("Error closing refresh requests consumer", "error", err)
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
	if serviceErr != nil {
		log.Error("Retro Processor shutdown with errors", "error", serviceErr)
	}
	if err != nil {
		log.Error("Retro Processor shutdown completed with errors")
	} else {
		log.Info("Retro Processor shutdown completed successfully")
	}
}

func snapshotBackends(log *slog.Logger, redisDB *persistence.Redis, cfg *config.RedisConfig) (spend.PageCache, spend.Locker) {
	if redisDB == nil {
		return spend.NoopCache{}, spend.LocalLocker{}
	}
	return redisdata.NewSnapshotCache(log, redisDB.Client(), cfg.SnapshotCacheTTL),
		redisdata.NewRefreshLocker(log, redisDB.Locker(), cfg.RefreshLockTTL)
}
