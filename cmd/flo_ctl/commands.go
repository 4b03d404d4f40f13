package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Frictionless-Ledger-Operations/flo-wallet/internal/config"
	"github.com/Frictionless-Ledger-Operations/flo-wallet/internal/coordinator"
	"github.com/Frictionless-Ledger-Operations/flo-wallet/internal/data/kvstore"
	"github.com/Frictionless-Ledger-Operations/flo-wallet/internal/data/postgres"
	"github.com/Frictionless-Ledger-Operations/flo-wallet/internal/domain/shared"
	"github.com/Frictionless-Ledger-Operations/flo-wallet/internal/logger"
	"github.com/Frictionless-Ledger-Operations/flo-wallet/internal/platform/ledger"
	"github.com/Frictionless-Ledger-Operations/flo-wallet/internal/platform/messaging/consumers"
	"github.com/Frictionless-Ledger-Operations/flo-wallet/internal/platform/messaging/producers"
	"github.com/Frictionless-Ledger-Operations/flo-wallet/internal/platform/persistence"
	"github.com/Frictionless-Ledger-Operations/flo-wallet/internal/reconciliation"
	"github.com/segmentio/kafka-go"
	"github.com/spf13/cobra"
)

type options struct {
	configName string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:           "flo_ctl",
		Short:         "Operate the wallet node's pending and completed queues",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configName, "config", "wallet_node", "config base name, read from ./configs/<name>.env")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "log level written to stderr")

	root.AddCommand(
		newPendingCmd(opts),
		newCompletedCmd(opts),
		newBroadcastCmd(opts),
		newBroadcastAllCmd(opts),
		newEventsCmd(opts),
	)
	return root
}

func newPendingCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "pending",
		Short: "List transfers waiting for broadcast, oldest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			n, err := openNode(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer n.close()
			return writeRecords(cmd.OutOrStdout(), n.store.Pending())
		},
	}
}

func newCompletedCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "completed",
		Short: "List transfers confirmed on the ledger",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			n, err := openNode(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer n.close()
			return writeRecords(cmd.OutOrStdout(), n.store.Completed())
		},
	}
}

func newBroadcastCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "broadcast <transfer-id>",
		Short: "Submit one pending transfer and wait for confirmation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := openNode(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer n.close()

			signature, err := n.coordinator.Broadcast(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", args[0], signature)
			return err
		},
	}
}

func newBroadcastAllCmd(opts *options) *cobra.Command {
	var skipCheck bool

	cmd := &cobra.Command{
		Use:   "broadcast-all",
		Short: "Broadcast every pending transfer",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			n, err := openNode(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer n.close()

			if !skipCheck {
				if err := reconciliation.CheckOnline(cmd.Context(), n.ledger, n.cfg.Broadcast.OnlineRetries, n.cfg.Broadcast.OnlineBackoff); err != nil {
					return err
				}
			}

			summary, err := n.coordinator.BroadcastAll(cmd.Context())
			if werr := writeSummary(cmd.OutOrStdout(), summary); werr != nil {
				return werr
			}
			if err != nil {
				return err
			}
			if len(summary.Failed) > 0 {
				return fmt.Errorf("%d of %d transfers left pending", len(summary.Failed), len(summary.Failed)+len(summary.Succeeded))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&skipCheck, "skip-online-check", false, "do not check ledger health first")
	return cmd
}

func newEventsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "events",
		Short: "Tail transfer lifecycle events from Kafka",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadConfig(opts.configName)
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			if !cfg.Kafka.Enabled {
				return fmt.Errorf("KAFKA_ENABLED is not set for %s", opts.configName)
			}
			log := logger.New(os.Stderr, logger.ParseLevel(opts.logLevel))

			consumer := consumers.NewKafkaConsumer(log, &cfg.Kafka)
			defer consumer.Close()

			out := cmd.OutOrStdout()
			err = consumer.Consume(cmd.Context(), func(_ context.Context, msg kafka.Message) error {
				var event shared.TransferEvent
				if err := json.Unmarshal(msg.Value, &event); err != nil {
					// unreadable events are skipped, not retried
					log.Warn("Skipping undecodable event", "offset", msg.Offset, "error", err)
					return nil
				}
				return writeEvent(out, event)
			})
			if cmd.Context().Err() != nil {
				return nil
			}
			return err
		},
	}
}

// node is the subset of the wallet node flo_ctl needs
type node struct {
	cfg         *config.Config
	store       *reconciliation.Store
	coordinator *coordinator.Coordinator
	ledger      *ledger.Client
	closers     []func()
}

func (n *node) close() {
	for i := len(n.closers) - 1; i >= 0; i-- {
		n.closers[i]()
	}
}

func openNode(ctx context.Context, opts *options) (*node, error) {
	cfg, err := config.LoadConfig(opts.configName)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	log := logger.New(os.Stderr, logger.ParseLevel(opts.logLevel))

	n := &node{cfg: cfg}
	ok := false
	defer func() {
		if !ok {
			n.close()
		}
	}()

	kv, err := openStorage(ctx, log, cfg, n)
	if err != nil {
		return nil, err
	}

	n.ledger = ledger.NewClient(&cfg.Ledger, log)
	n.store, err = reconciliation.NewStore(&cfg.Broadcast, kvstore.NewQueueRepository(log, kv, cfg.Storage.QueueKey), n.ledger, log)
	if err != nil {
		return nil, err
	}
	n.closers = append(n.closers, n.store.Close)
	if loaded := n.store.Load(ctx); loaded.Degraded {
		return nil, fmt.Errorf("queue storage is unreadable")
	}

	var coordOpts []coordinator.Option
	if cfg.Postgres.AuditEnabled {
		db, err := persistence.NewPostgresDB(ctx, log, &cfg.Postgres)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize PostgreSQL: %w", err)
		}
		n.closers = append(n.closers, db.Close)
		coordOpts = append(coordOpts, coordinator.WithAudit(postgres.NewAuditRepository(log, db)))
	}
	if cfg.Kafka.Enabled {
		events, err := producers.NewTransferEventProducer(log, &cfg.Kafka)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize transfer event producer: %w", err)
		}
		n.closers = append(n.closers, func() { _ = events.Close() })
		coordOpts = append(coordOpts, coordinator.WithEvents(events))
	}

	// flo_ctl never signs or touches the radio
	n.coordinator = coordinator.NewCoordinator(&cfg.Transfer, n.ledger, nil, nil, n.store, log, coordOpts...)

	ok = true
	return n, nil
}

func openStorage(ctx context.Context, log *slog.Logger, cfg *config.Config, n *node) (persistence.KeyValueStore, error) {
	if cfg.Storage.Driver == config.StorageDriverMongo {
		db, err := persistence.NewMongoDB(ctx, log, &cfg.MongoDB)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize MongoDB: %w", err)
		}
		n.closers = append(n.closers, func() { _ = db.Close(context.Background()) })
		return persistence.NewMongoStore(db.Collection(cfg.MongoDB.Collection), log), nil
	}

	store, err := persistence.NewPebbleStore(cfg.Storage.Path, log)
	if err != nil {
		return nil, fmt.Errorf("failed to open queue storage at %s (is the node running?): %w", cfg.Storage.Path, err)
	}
	n.closers = append(n.closers, func() { _ = store.Close() })
	return store, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}
