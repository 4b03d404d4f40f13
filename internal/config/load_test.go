package config

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_HappyPath(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "config_test")
	require.NoError(t, err)
	defer os.RemoveAll(tempDir)

	tempConfigsSubDir := filepath.Join(tempDir, "configs")
	err = os.Mkdir(tempConfigsSubDir, 0755)
	require.NoError(t, err)

	testAppName := "TestWallet"
	testPort := 9090
	testLogLevel := "debug"
	testRPC := "http://127.0.0.1:8899"

	envContent := fmt.Sprintf(
		"APP_NAME=%s\nSERVER_PORT=%d\nLOG_LEVEL=%s\nLEDGER_RPC_URL=%s\nBROADCAST_FAN_OUT=8\nWALLET_NAME=Alice\n",
		testAppName, testPort, testLogLevel, testRPC,
	)
	envFilePath := filepath.Join(tempConfigsSubDir, "test_happy.env")
	err = os.WriteFile(envFilePath, []byte(envContent), 0644)
	require.NoError(t, err)

	originalWD, err := os.Getwd()
	require.NoError(t, err)
	defer func() {
		_ = os.Chdir(originalWD)
	}()

	err = os.Chdir(tempDir)
	require.NoError(t, err)

	cfg, err := LoadConfig("test_happy")
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, testAppName, cfg.Application.Name)
	assert.Equal(t, testPort, cfg.Server.Port)
	assert.Equal(t, testLogLevel, cfg.Logging.Level)
	assert.Equal(t, testRPC, cfg.Ledger.RPCURL)
	assert.Equal(t, 8, cfg.Broadcast.FanOut)
	assert.Equal(t, "Alice", cfg.Wallet.Name)

	assert.Equal(t, "development", cfg.Application.Env)
	assert.Equal(t, StorageDriverPebble, cfg.Storage.Driver)
	assert.Equal(t, "transfer_queues", cfg.Storage.QueueKey)
	assert.Equal(t, uint64(5000), cfg.Transfer.FeeEstimate)
	assert.Equal(t, uint64(1_000_000_000_000_000), cfg.Transfer.MaxAmount)
	assert.Equal(t, time.Duration(0), cfg.Broadcast.SweepInterval)
	assert.False(t, cfg.Kafka.Enabled)
	assert.False(t, cfg.Postgres.AuditEnabled)

	cfgWithName, err := LoadConfigWithName("configs/test_happy")
	require.NoError(t, err)
	assert.Equal(t, testAppName, cfgWithName.Application.Name)

	cfgWithNameAndType, err := LoadConfigWithNameAndType("configs/test_happy", "env")
	require.NoError(t, err)
	assert.Equal(t, testAppName, cfgWithNameAndType.Application.Name)
}

func TestLoadConfig_EnvironmentOverridesFile(t *testing.T) {
	tempDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(tempDir, "override.env"), []byte("BROADCAST_FAN_OUT=2\n"), 0644))

	originalWD, err := os.Getwd()
	require.NoError(t, err)
	defer func() {
		_ = os.Chdir(originalWD)
	}()
	require.NoError(t, os.Chdir(tempDir))

	t.Setenv("BROADCAST_FAN_OUT", "16")

	cfg, err := LoadConfig("override")
	require.NoError(t, err)
	assert.Equal(t, 16, cfg.Broadcast.FanOut)
}

func TestConfig_Validate_HappyPath(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	err := fromViper(v).validate()
	assert.NoError(t, err, "Default config should be valid")
}

func TestConfig_Validate_Failures(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantMsg string
	}{
		{"UnknownStorageDriver", func(c *Config) { c.Storage.Driver = "sqlite" }, "STORAGE_DRIVER"},
		{"PebbleWithoutPath", func(c *Config) { c.Storage.Path = "" }, "STORAGE_PATH"},
		{"MongoWithoutCollection", func(c *Config) {
			c.Storage.Driver = StorageDriverMongo
			c.MongoDB.Collection = ""
		}, "MONGO_COLLECTION"},
		{"AuditWithoutURL", func(c *Config) {
			c.Postgres.AuditEnabled = true
			c.Postgres.URL = ""
		}, "POSTGRES_URL"},
		{"KafkaWithoutTopic", func(c *Config) {
			c.Kafka.Enabled = true
			c.Kafka.EventsTopic = ""
		}, "KAFKA_EVENTS_TOPIC"},
		{"BadCommitment", func(c *Config) { c.Ledger.Commitment = "max" }, "LEDGER_COMMITMENT"},
		{"ZeroFanOut", func(c *Config) { c.Broadcast.FanOut = 0 }, "BROADCAST_FAN_OUT"},
		{"NegativeSweep", func(c *Config) { c.Broadcast.SweepInterval = -time.Second }, "BROADCAST_SWEEP_INTERVAL"},
		{"NoKeypair", func(c *Config) { c.Wallet.KeypairPath = "" }, "WALLET_KEYPAIR_PATH"},
		{"UnknownProximityDriver", func(c *Config) { c.Proximity.Driver = "bluetooth" }, "PROXIMITY_DRIVER"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := viper.New()
			setDefaults(v)
			cfg := fromViper(v)
			tt.mutate(cfg)

			err := cfg.validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}

	t.Run("CollectsEveryProblem", func(t *testing.T) {
		v := viper.New()
		setDefaults(v)
		cfg := fromViper(v)
		cfg.Server.Port = 0
		cfg.Ledger.RPCURL = ""

		err := cfg.validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "SERVER_PORT")
		assert.Contains(t, err.Error(), "LEDGER_RPC_URL")
	})
}
