// Package config provides configuration structures and validation for the wallet node.
// It handles environment-based configuration for storage, the ledger adapter, the
// broadcast sweeper, the optional audit and event sinks, and the local HTTP API.
package config

import (
	"errors"
	"strings"
	"time"
)

// Storage drivers for the queue document
const (
	StorageDriverPebble = "pebble"
	StorageDriverMongo  = "mongo"
)

// Config holds the complete node configuration. Each field is one subsystem
// and is validated during startup.
type Config struct {
	Application ApplicationConfig
	Logging     LoggingConfig
	Server      ServerConfig
	Storage     StorageConfig
	MongoDB     MongoDBConfig
	Postgres    PostgresConfig
	Kafka       KafkaConfig
	Ledger      LedgerConfig
	Broadcast   BroadcastConfig
	Transfer    TransferConfig
	Wallet      WalletConfig
	Proximity   ProximityConfig
}

// ApplicationConfig contains general application configuration
type ApplicationConfig struct {
	Env  string
	Name string
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level string
}

// ServerConfig contains HTTP server configuration settings
type ServerConfig struct {
	Port            int           // Port to listen on
	ShutdownTimeout time.Duration // Grace period for server shutdown
	ReadTimeout     time.Duration // Maximum duration for reading entire request
	WriteTimeout    time.Duration // Maximum duration for writing response
	IdleTimeout     time.Duration // Maximum duration to wait for next request
}

// StorageConfig selects where the reconciliation queues are persisted
type StorageConfig struct {
	Driver   string // pebble or mongo
	Path     string // pebble data directory
	QueueKey string // key of the queue document
}

// MongoDBConfig contains MongoDB configuration
type MongoDBConfig struct {
	URI             string
	Database        string
	Collection      string
	Timeout         time.Duration
	MaxPoolSize     uint64
	MinPoolSize     uint64
	MaxConnIdleTime time.Duration
}

// PostgresConfig contains PostgreSQL configuration for the audit journal
type PostgresConfig struct {
	AuditEnabled    bool
	URL             string        // Database connection string
	MaxConns        int32         // Maximum number of open connections
	MinConns        int32         // Maximum number of idle connections
	ConnMaxLifetime time.Duration // Maximum lifetime of a connection
	ConnMaxIdleTime time.Duration // Maximum idle time of a connection
	MigrationsPath  string        // Path to migration files
}

// KafkaConfig contains configuration of the transfer event producers
type KafkaConfig struct {
	Enabled           bool
	Brokers           string
	EventsTopic       string
	DLQTopic          string // discarded inbound tags
	NumPartitions     int
	ReplicationFactor int
	WriteTimeout      time.Duration
	ConsumerGroup     string        // used by flo_ctl when tailing events
	MaxWait           time.Duration // reader fetch wait
}

// LedgerConfig contains the ledger RPC endpoint settings
type LedgerConfig struct {
	RPCURL              string
	RequestTimeout      time.Duration
	ConfirmPollInterval time.Duration
	Commitment          string
}

// BroadcastConfig contains broadcast and sweep settings
type BroadcastConfig struct {
	Timeout       time.Duration // submit plus confirm budget per transfer
	FanOut        int           // concurrent broadcasts in BroadcastAll
	SweepInterval time.Duration // zero disables the background sweeper
	OnlineRetries int
	OnlineBackoff time.Duration
}

// TransferConfig contains transfer creation rules
type TransferConfig struct {
	FeeEstimate uint64 // lamports
	MaxAmount   uint64 // lamports
}

// WalletConfig contains the signing wallet settings
type WalletConfig struct {
	KeypairPath string
	Name        string // display name sent to receivers
	Identity    string // identity presented on authorize
	TokenTTL    time.Duration
}

// ProximityConfig selects the proximity driver
type ProximityConfig struct {
	Driver string
}

// validate performs validation of all configuration values, collecting every
// problem into a single error
func (c *Config) validate() error {
	var validationErrors []string

	// Validate Server config
	if c.Server.Port <= 0 {
		validationErrors = append(validationErrors, "SERVER_PORT must be greater than 0")
	}
	if c.Server.ShutdownTimeout <= 0 {
		validationErrors = append(validationErrors, "SERVER_SHUTDOWN_TIMEOUT must be greater than 0")
	}
	if c.Server.ReadTimeout <= 0 {
		validationErrors = append(validationErrors, "SERVER_READ_TIMEOUT must be greater than 0")
	}
	if c.Server.WriteTimeout <= 0 {
		validationErrors = append(validationErrors, "SERVER_WRITE_TIMEOUT must be greater than 0")
	}
	if c.Server.IdleTimeout <= 0 {
		validationErrors = append(validationErrors, "SERVER_IDLE_TIMEOUT must be greater than 0")
	}

	// Validate Storage config
	switch c.Storage.Driver {
	case StorageDriverPebble:
		if c.Storage.Path == "" {
			validationErrors = append(validationErrors, "STORAGE_PATH is required for the pebble driver")
		}
	case StorageDriverMongo:
		if c.MongoDB.URI == "" {
			validationErrors = append(validationErrors, "MONGO_URI is required for the mongo driver")
		}
		if c.MongoDB.Database == "" {
			validationErrors = append(validationErrors, "MONGO_DATABASE is required for the mongo driver")
		}
		if c.MongoDB.Collection == "" {
			validationErrors = append(validationErrors, "MONGO_COLLECTION is required for the mongo driver")
		}
		if c.MongoDB.Timeout <= 0 {
			validationErrors = append(validationErrors, "MONGO_TIMEOUT must be greater than 0")
		}
	default:
		validationErrors = append(validationErrors, "STORAGE_DRIVER must be pebble or mongo")
	}
	if c.Storage.QueueKey == "" {
		validationErrors = append(validationErrors, "STORAGE_QUEUE_KEY is required")
	}

	// Validate PostgreSQL config
	if c.Postgres.AuditEnabled {
		if c.Postgres.URL == "" {
			validationErrors = append(validationErrors, "POSTGRES_URL is required when AUDIT_ENABLED is set")
		}
		if c.Postgres.MaxConns <= 0 {
			validationErrors = append(validationErrors, "POSTGRES_MAX_CONNS must be greater than 0")
		}
		if c.Postgres.MinConns <= 0 {
			validationErrors = append(validationErrors, "POSTGRES_MIN_CONNS must be greater than 0")
		}
	}

	// Validate Kafka config
	if c.Kafka.Enabled {
		if c.Kafka.Brokers == "" {
			validationErrors = append(validationErrors, "KAFKA_BROKERS is required when KAFKA_ENABLED is set")
		}
		if c.Kafka.EventsTopic == "" {
			validationErrors = append(validationErrors, "KAFKA_EVENTS_TOPIC is required when KAFKA_ENABLED is set")
		}
		if c.Kafka.WriteTimeout <= 0 {
			validationErrors = append(validationErrors, "KAFKA_WRITE_TIMEOUT must be greater than 0")
		}
	}

	// Validate Ledger config
	if c.Ledger.RPCURL == "" {
		validationErrors = append(validationErrors, "LEDGER_RPC_URL is required")
	}
	if c.Ledger.RequestTimeout <= 0 {
		validationErrors = append(validationErrors, "LEDGER_REQUEST_TIMEOUT must be greater than 0")
	}
	if c.Ledger.ConfirmPollInterval <= 0 {
		validationErrors = append(validationErrors, "LEDGER_CONFIRM_POLL_INTERVAL must be greater than 0")
	}
	switch c.Ledger.Commitment {
	case "processed", "confirmed", "finalized":
	default:
		validationErrors = append(validationErrors, "LEDGER_COMMITMENT must be processed, confirmed or finalized")
	}

	// Validate Broadcast config
	if c.Broadcast.Timeout <= 0 {
		validationErrors = append(validationErrors, "BROADCAST_TIMEOUT must be greater than 0")
	}
	if c.Broadcast.FanOut <= 0 {
		validationErrors = append(validationErrors, "BROADCAST_FAN_OUT must be greater than 0")
	}
	if c.Broadcast.SweepInterval < 0 {
		validationErrors = append(validationErrors, "BROADCAST_SWEEP_INTERVAL must not be negative")
	}
	if c.Broadcast.OnlineRetries < 0 {
		validationErrors = append(validationErrors, "BROADCAST_ONLINE_RETRIES must not be negative")
	}
	if c.Broadcast.OnlineBackoff <= 0 {
		validationErrors = append(validationErrors, "BROADCAST_ONLINE_BACKOFF must be greater than 0")
	}

	// Validate Transfer config
	if c.Transfer.MaxAmount == 0 {
		validationErrors = append(validationErrors, "TRANSFER_MAX_AMOUNT must be greater than 0")
	}

	// Validate Wallet config
	if c.Wallet.KeypairPath == "" {
		validationErrors = append(validationErrors, "WALLET_KEYPAIR_PATH is required")
	}
	if c.Wallet.Identity == "" {
		validationErrors = append(validationErrors, "WALLET_IDENTITY is required")
	}
	if c.Wallet.TokenTTL <= 0 {
		validationErrors = append(validationErrors, "WALLET_TOKEN_TTL must be greater than 0")
	}

	if c.Proximity.Driver != "loopback" {
		validationErrors = append(validationErrors, "PROXIMITY_DRIVER must be loopback")
	}

	if len(validationErrors) > 0 {
		return errors.New(strings.Join(validationErrors, ", "))
	}

	return nil
}
