package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/Frictionless-Ledger-Operations/flo-wallet/internal/config"
	"github.com/Frictionless-Ledger-Operations/flo-wallet/internal/coordinator"
	"github.com/Frictionless-Ledger-Operations/flo-wallet/internal/data/kvstore"
	"github.com/Frictionless-Ledger-Operations/flo-wallet/internal/data/postgres"
	"github.com/Frictionless-Ledger-Operations/flo-wallet/internal/domain/audit"
	"github.com/Frictionless-Ledger-Operations/flo-wallet/internal/logger"
	"github.com/Frictionless-Ledger-Operations/flo-wallet/internal/platform/ledger"
	"github.com/Frictionless-Ledger-Operations/flo-wallet/internal/platform/messaging/producers"
	"github.com/Frictionless-Ledger-Operations/flo-wallet/internal/platform/nfc"
	"github.com/Frictionless-Ledger-Operations/flo-wallet/internal/platform/persistence"
	"github.com/Frictionless-Ledger-Operations/flo-wallet/internal/platform/wallet"
	"github.com/Frictionless-Ledger-Operations/flo-wallet/internal/proximity"
	"github.com/Frictionless-Ledger-Operations/flo-wallet/internal/reconciliation"
	"github.com/Frictionless-Ledger-Operations/flo-wallet/internal/wallet_api"
	"github.com/Frictionless-Ledger-Operations/flo-wallet/internal/wallet_api/service"
)

func main() {
	// Create base context with cancellation
	appCtx, cancelAppCtx := context.WithCancel(context.Background())
	defer cancelAppCtx()

	cfg, err := config.LoadConfig("wallet_node")
	if err != nil {
		// logger is not initialized yet, so we use fmt
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewLogger(cfg)

	log.Info("Starting wallet node",
		"app_name", cfg.Application.Name,
		"env", cfg.Application.Env,
		"storage", cfg.Storage.Driver,
	)

	// Queue storage
	var (
		kv      persistence.KeyValueStore
		pebble  *persistence.PebbleStore
		mongoDB *persistence.MongoDB
	)
	switch cfg.Storage.Driver {
	case config.StorageDriverMongo:
		mongoDB, err = persistence.NewMongoDB(appCtx, log, &cfg.MongoDB)
		if err != nil {
			log.Error("Failed to initialize MongoDB", "error", err)
			os.Exit(1)
		}
		kv = persistence.NewMongoStore(mongoDB.Collection(cfg.MongoDB.Collection), log)
	default:
		pebble, err = persistence.NewPebbleStore(cfg.Storage.Path, log)
		if err != nil {
			log.Error("Failed to open queue storage", "path", cfg.Storage.Path, "error", err)
			os.Exit(1)
		}
		kv = pebble
	}
	queueRepo := kvstore.NewQueueRepository(log, kv, cfg.Storage.QueueKey)

	// Ledger and wallet
	ledgerClient := ledger.NewClient(&cfg.Ledger, log)

	key, err := wallet.LoadKeypair(cfg.Wallet.KeypairPath)
	if err != nil {
		log.Error("Failed to load wallet keypair", "path", cfg.Wallet.KeypairPath, "error", err)
		os.Exit(1)
	}
	authorizer := wallet.NewKeypairAuthorizer(key, cfg.Wallet.TokenTTL, log)
	log.Info("Wallet keypair loaded", "address", authorizer.Address())

	// Proximity link
	protocol := proximity.NewProtocol(nfc.NewLoopback(), log, proximity.WithSenderName(cfg.Wallet.Name))

	// Reconciliation store
	store, err := reconciliation.NewStore(&cfg.Broadcast, queueRepo, ledgerClient, log)
	if err != nil {
		log.Error("Failed to initialize reconciliation store", "error", err)
		os.Exit(1)
	}
	loaded := store.Load(appCtx)
	log.Info("Queues restored",
		"pending", loaded.Pending,
		"completed", loaded.Completed,
		"dropped", loaded.Dropped,
		"degraded", loaded.Degraded,
	)

	// Optional sinks
	var opts []coordinator.Option

	var (
		postgresDB *persistence.PostgresDB
		auditRepo  audit.Repository = audit.NopRepository{}
	)
	if cfg.Postgres.AuditEnabled {
		postgresDB, err = persistence.NewPostgresDB(appCtx, log, &cfg.Postgres)
		if err != nil {
			log.Error("Failed to initialize PostgreSQL", "error", err)
			os.Exit(1)
		}
		auditRepo = postgres.NewAuditRepository(log, postgresDB)
		opts = append(opts, coordinator.WithAudit(auditRepo))
	}

	var (
		eventProducer *producers.TransferEventProducer
		dlqProducer   *producers.DLQProducer
	)
	if cfg.Kafka.Enabled {
		eventProducer, err = producers.NewTransferEventProducer(log, &cfg.Kafka)
		if err != nil {
			log.Error("Failed to initialize transfer event producer", "error", err)
			os.Exit(1)
		}
		opts = append(opts, coordinator.WithEvents(eventProducer))

		dlqProducer, err = producers.NewDLQProducer(log, &cfg.Kafka)
		if err != nil {
			log.Error("Failed to initialize DLQ Kafka producer", "error", err)
			os.Exit(1)
		}
		// dlqProducer is nil when no DLQ topic is configured
		if dlqProducer != nil {
			opts = append(opts, coordinator.WithDeadLetters(dlqProducer))
		}
	}

	coord := coordinator.NewCoordinator(&cfg.Transfer, ledgerClient, authorizer, protocol, store, log, opts...)

	history := service.NewHistoryService(log, store, auditRepo)

	server := wallet_api.NewServer(log, cfg, coord, history)
	log.Info("REST server initialized")

	errChan := make(chan error, 1)
	var wg sync.WaitGroup

	go func() {
		log.Info("Starting HTTP server", "port", cfg.Server.Port)
		if err := server.Start(); err != nil {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	if cfg.Broadcast.SweepInterval > 0 {
		sweeper := reconciliation.NewSweeper(&cfg.Broadcast, coord, ledgerClient, log)
		wg.Add(1)
		go func() {
			defer wg.Done()
			sweeper.Start(appCtx)
		}()
	}

	// Set up signal handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	var serverErr error
	select {
	case <-quit:
		log.Info("Shutdown signal received")
	case err := <-errChan:
		log.Error("Server error occurred", "error", err)
		serverErr = err
	}

	cancelAppCtx()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancelShutdown()

	log.Info("Starting graceful shutdown...")

	if err = server.Stop(shutdownCtx); err != nil {
		log.Error("Error during server shutdown", "error", err)
	}

	// Leave the radio idle and release any session
	if stopErr := coord.StopReceiving(); stopErr != nil {
		log.Warn("Failed to stop proximity listener", "error", stopErr)
	}

	wgChan := make(chan struct{})
	go func() {
		wg.Wait()
		close(wgChan)
	}()
	select {
	case <-wgChan:
		log.Info("Broadcast sweeper stopped")
	case <-shutdownCtx.Done():
		log.Warn("Shutdown timeout reached, forcing exit")
	}

	store.Close()

	if eventProducer != nil {
		if err = eventProducer.Close(); err != nil {
			log.Error("Error closing transfer event producer", "error", err)
		}
	}
	if dlqProducer != nil {
		if err = dlqProducer.Close(); err != nil {
			log.Error("Error closing DLQ Kafka producer", "error", err)
		}
	}

	if postgresDB != nil {
		postgresDB.Close()
	}
	if pebble != nil {
		if err = pebble.Close(); err != nil {
			log.Error("Error closing queue storage", "error", err)
		}
	}
	if mongoDB != nil {
		if err = mongoDB.Close(shutdownCtx); err != nil {
			log.Error("Error closing MongoDB connection", "error", err)
		}
	}

	if serverErr != nil {
		log.Error("HTTP server shutdown with errors", "error", serverErr)
	}
	if err != nil {
		log.Error("Wallet node shutdown completed with errors")
	} else {
		log.Info("Wallet node shutdown completed successfully")
	}
}
