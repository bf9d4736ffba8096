package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server  ServerConfig
	Engine  EngineConfig
	Funds   FundsConfig
	Kafka   KafkaConfig
	Logging LoggingConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Addr            string
	ShutdownTimeout time.Duration
	GinMode         string
}

// EngineConfig holds engine registry configuration
type EngineConfig struct {
	TTL                time.Duration
	CleanupInterval    time.Duration
	MaxMatchIterations int
	AutoCreate         bool
	IdempotencyTTL     time.Duration
	RegistryShards     int
}

// FundsConfig holds the fund catalog seed. Empty Specs selects the built-in catalog.
type FundsConfig struct {
	Specs string
}

// KafkaConfig holds trade publication configuration. No brokers disables publication.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// Load loads configuration from environment variables, after an optional .env file
func Load() (*Config, error) {
	_ = godotenv.Load() // .env is optional

	env := &envParser{}
	cfg := &Config{
		Server: ServerConfig{
			Addr:            getEnvString("PM_HTTP_ADDR", ":8080"),
			ShutdownTimeout: env.getDuration("PM_SHUTDOWN_TIMEOUT", 10*time.Second),
			GinMode:         getEnvString("PM_GIN_MODE", "release"),
		},
		Engine: EngineConfig{
			TTL:                env.getDuration("PM_ENGINE_TTL", 30*time.Minute),
			CleanupInterval:    env.getDuration("PM_CLEANUP_INTERVAL", time.Minute),
			MaxMatchIterations: env.getInt("PM_MAX_MATCH_ITERATIONS", 100000),
			AutoCreate:         env.getBool("PM_AUTO_CREATE_ENGINES", false),
			IdempotencyTTL:     env.getDuration("PM_IDEMPOTENCY_TTL", 24*time.Hour),
			RegistryShards:     env.getInt("PM_REGISTRY_SHARDS", 16),
		},
		Funds: FundsConfig{
			Specs: getEnvString("PM_FUNDS", ""),
		},
		Kafka: KafkaConfig{
			Brokers: getEnvList("PM_KAFKA_BROKERS"),
			Topic:   getEnvString("PM_KAFKA_TOPIC", "fund-trades"),
		},
		Logging: LoggingConfig{
			Level:  strings.ToLower(getEnvString("PM_LOG_LEVEL", "info")),
			Format: strings.ToLower(getEnvString("PM_LOG_FORMAT", "json")),
		},
	}
	if err := errors.Join(env.errs...); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Helper functions for environment variable parsing

func getEnvString(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

// envParser reads typed variables and collects every malformed value
type envParser struct {
	errs []error
}

func (p *envParser) fail(key, value, want string) {
	p.errs = append(p.errs, fmt.Errorf("%s: %q is not a valid %s", key, value, want))
}

func (p *envParser) getInt(key string, defaultValue int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	intValue, err := strconv.Atoi(value)
	if err != nil {
		p.fail(key, value, "integer")
		return defaultValue
	}
	return intValue
}

func (p *envParser) getBool(key string, defaultValue bool) bool {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	if boolValue, err := strconv.ParseBool(value); err == nil {
		return boolValue
	}
	switch strings.ToLower(value) {
	case "yes", "on":
		return true
	case "no", "off":
		return false
	}
	p.fail(key, value, "boolean")
	return defaultValue
}

func (p *envParser) getDuration(key string, defaultValue time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	duration, err := time.ParseDuration(value)
	if err != nil {
		p.fail(key, value, "duration")
		return defaultValue
	}
	return duration
}

func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("http address is required")
	}
	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("invalid shutdown timeout: %s", c.Server.ShutdownTimeout)
	}
	switch c.Server.GinMode {
	case "debug", "release", "test":
	default:
		return fmt.Errorf("invalid gin mode: %q", c.Server.GinMode)
	}

	if c.Engine.TTL <= 0 {
		return fmt.Errorf("invalid engine ttl: %s", c.Engine.TTL)
	}
	if c.Engine.CleanupInterval <= 0 {
		return fmt.Errorf("invalid cleanup interval: %s", c.Engine.CleanupInterval)
	}
	if c.Engine.MaxMatchIterations <= 0 {
		return fmt.Errorf("invalid max match iterations: %d", c.Engine.MaxMatchIterations)
	}
	if c.Engine.IdempotencyTTL <= 0 {
		return fmt.Errorf("invalid idempotency ttl: %s", c.Engine.IdempotencyTTL)
	}
	if c.Engine.RegistryShards <= 0 {
		return fmt.Errorf("invalid registry shards: %d", c.Engine.RegistryShards)
	}

	if len(c.Kafka.Brokers) > 0 && c.Kafka.Topic == "" {
		return fmt.Errorf("kafka topic required when brokers are set")
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("invalid log format: %q", c.Logging.Format)
	}
	return nil
}

// String returns a safe string representation
func (c *Config) String() string {
	return fmt.Sprintf(
		"Server{Addr:%s}, Engine{TTL:%s, Cleanup:%s, MaxIter:%d, AutoCreate:%v, Shards:%d}, Kafka{Brokers:%d, Topic:%s}",
		c.Server.Addr, c.Engine.TTL, c.Engine.CleanupInterval, c.Engine.MaxMatchIterations,
		c.Engine.AutoCreate, c.Engine.RegistryShards, len(c.Kafka.Brokers), c.Kafka.Topic,
	)
}
