package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	chdir(t, t.TempDir()) // no stray .env

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "release", cfg.Server.GinMode)
	assert.Equal(t, 30*time.Minute, cfg.Engine.TTL)
	assert.Equal(t, time.Minute, cfg.Engine.CleanupInterval)
	assert.Equal(t, 100000, cfg.Engine.MaxMatchIterations)
	assert.False(t, cfg.Engine.AutoCreate)
	assert.Equal(t, 24*time.Hour, cfg.Engine.IdempotencyTTL)
	assert.Equal(t, 16, cfg.Engine.RegistryShards)
	assert.Empty(t, cfg.Kafka.Brokers)
	assert.Equal(t, "fund-trades", cfg.Kafka.Topic)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoad_Overrides(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("PM_HTTP_ADDR", "127.0.0.1:9000")
	t.Setenv("PM_ENGINE_TTL", "5m")
	t.Setenv("PM_MAX_MATCH_ITERATIONS", "250")
	t.Setenv("PM_AUTO_CREATE_ENGINES", "yes")
	t.Setenv("PM_KAFKA_BROKERS", " kafka-1:9092, ,kafka-2:9092 ")
	t.Setenv("PM_LOG_LEVEL", "DEBUG")
	t.Setenv("PM_FUNDS", "ALPHA:4:3:10.5")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Addr)
	assert.Equal(t, 5*time.Minute, cfg.Engine.TTL)
	assert.Equal(t, 250, cfg.Engine.MaxMatchIterations)
	assert.True(t, cfg.Engine.AutoCreate)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "ALPHA:4:3:10.5", cfg.Funds.Specs)
}

func TestLoad_MalformedValues(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("PM_ENGINE_TTL", "soon")
	t.Setenv("PM_REGISTRY_SHARDS", "many")
	t.Setenv("PM_MAX_MATCH_ITERATIONS", "abc")
	t.Setenv("PM_AUTO_CREATE_ENGINES", "maybe")

	cfg, err := Load()
	require.Error(t, err)
	assert.Nil(t, cfg)
	for _, key := range []string{"PM_ENGINE_TTL", "PM_REGISTRY_SHARDS", "PM_MAX_MATCH_ITERATIONS", "PM_AUTO_CREATE_ENGINES"} {
		assert.Contains(t, err.Error(), key)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero ttl", func(c *Config) { c.Engine.TTL = 0 }},
		{"negative iterations", func(c *Config) { c.Engine.MaxMatchIterations = -1 }},
		{"zero shards", func(c *Config) { c.Engine.RegistryShards = 0 }},
		{"zero cleanup interval", func(c *Config) { c.Engine.CleanupInterval = 0 }},
		{"bad log level", func(c *Config) { c.Logging.Level = "trace" }},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }},
		{"bad gin mode", func(c *Config) { c.Server.GinMode = "prod" }},
		{"brokers without topic", func(c *Config) { c.Kafka.Brokers = []string{"k:9092"}; c.Kafka.Topic = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chdir(t, t.TempDir())
			cfg, err := Load()
			require.NoError(t, err)
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

// chdir switches the working directory for the test and restores it on cleanup (t.Chdir needs Go 1.24)
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}
