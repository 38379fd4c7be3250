package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the matching engine process: the
// gateway's HTTP surface, the Redis market-data fan-out, and the
// observability stack. It does not configure the matching kernel itself
// (internal/matching.Book takes no configuration beyond its symbol).
type Config struct {
	Gateway       GatewayConfig
	Feed          FeedConfig
	Observability ObservabilityConfig
	RateLimit     RateLimitConfig
	Engine        EngineConfig
}

// GatewayConfig configures the gin command surface and the gorilla/mux
// admin router (health/metrics).
type GatewayConfig struct {
	Host         string
	Port         string
	AdminPort    string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// FeedConfig configures the Redis publisher that fans out book updates
// to external subscribers.
type FeedConfig struct {
	URL             string
	Password        string
	DB              int
	PoolSize        int
	MinIdleConns    int
	DialTimeout     time.Duration
	PublishTimeout  time.Duration
	Channel         string
	MaxRetries      int
	MinRetryBackoff time.Duration
	MaxRetryBackoff time.Duration
}

type ObservabilityConfig struct {
	JaegerEndpoint string
	ServiceName    string
	ServiceVersion string
	LogLevel       string
	LogFormat      string
	MetricsEnabled bool
	MetricsPort    int
}

type RateLimitConfig struct {
	RequestsPerMinute int
	Burst             int
}

// EngineConfig parameterizes the matching kernel's symbols: the set of
// instruments the Registry should serve, and the default snapshot depth
// exposed by the gateway's book-depth endpoint. Price/quantity
// granularity is fixed by internal/matching (two decimal ticks), not
// configurable here.
type EngineConfig struct {
	Symbols       []string
	SnapshotDepth int
	MinOrderQty   decimal.Decimal
}

// Load builds a Config from environment variables, applying the same
// defaults-with-override pattern regardless of deployment target.
func Load() (*Config, error) {
	cfg := &Config{
		Gateway: GatewayConfig{
			Host:         getEnv("GATEWAY_HOST", "0.0.0.0"),
			Port:         getEnv("GATEWAY_PORT", "8080"),
			AdminPort:    getEnv("GATEWAY_ADMIN_PORT", "9090"),
			ReadTimeout:  getDurationEnv("GATEWAY_READ_TIMEOUT", 5*time.Second),
			WriteTimeout: getDurationEnv("GATEWAY_WRITE_TIMEOUT", 5*time.Second),
			IdleTimeout:  getDurationEnv("GATEWAY_IDLE_TIMEOUT", 60*time.Second),
		},
		Feed: FeedConfig{
			URL:             getEnv("FEED_REDIS_URL", "redis://localhost:6379"),
			Password:        getEnv("FEED_REDIS_PASSWORD", ""),
			DB:              getIntEnv("FEED_REDIS_DB", 0),
			PoolSize:        getIntEnv("FEED_REDIS_POOL_SIZE", 10),
			MinIdleConns:    getIntEnv("FEED_REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:     getDurationEnv("FEED_REDIS_DIAL_TIMEOUT", 5*time.Second),
			PublishTimeout:  getDurationEnv("FEED_PUBLISH_TIMEOUT", 2*time.Second),
			Channel:         getEnv("FEED_CHANNEL_PREFIX", "book-updates"),
			MaxRetries:      getIntEnv("FEED_REDIS_MAX_RETRIES", 3),
			MinRetryBackoff: getDurationEnv("FEED_REDIS_MIN_RETRY_BACKOFF", 8*time.Millisecond),
			MaxRetryBackoff: getDurationEnv("FEED_REDIS_MAX_RETRY_BACKOFF", 512*time.Millisecond),
		},
		Observability: ObservabilityConfig{
			JaegerEndpoint: getEnv("JAEGER_ENDPOINT", "http://localhost:14268/api/traces"),
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "matchcore"),
			ServiceVersion: getEnv("SERVICE_VERSION", "dev"),
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			LogFormat:      getEnv("LOG_FORMAT", "json"),
			MetricsEnabled: getBoolEnv("METRICS_ENABLED", true),
			MetricsPort:    getIntEnv("METRICS_PORT", 9090),
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: getIntEnv("RATE_LIMIT_REQUESTS_PER_MINUTE", 6000),
			Burst:             getIntEnv("RATE_LIMIT_BURST", 200),
		},
		Engine: EngineConfig{
			Symbols:       getSliceEnv("ENGINE_SYMBOLS", []string{"BTCUSD"}),
			SnapshotDepth: getIntEnv("ENGINE_SNAPSHOT_DEPTH", 10),
			MinOrderQty:   getDecimalEnv("ENGINE_MIN_ORDER_QTY", decimal.NewFromFloat(0.0001)),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// LoadFile layers a YAML file over Load's environment-derived defaults,
// for deployments that prefer a checked-in config over a pile of env
// vars. Fields absent from the file keep their env/default value.
func LoadFile(path string) (*Config, error) {
	cfg, err := Load()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if len(c.Engine.Symbols) == 0 {
		return fmt.Errorf("at least one ENGINE_SYMBOLS entry is required")
	}
	if c.Engine.SnapshotDepth <= 0 {
		return fmt.Errorf("ENGINE_SNAPSHOT_DEPTH must be positive")
	}
	return nil
}

// Helper functions for environment variable parsing.

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getDecimalEnv(key string, defaultValue decimal.Decimal) decimal.Decimal {
	if value := os.Getenv(key); value != "" {
		if parsed, err := decimal.NewFromString(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getSliceEnv(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	var result []string
	for _, item := range strings.Split(value, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			result = append(result, item)
		}
	}
	if len(result) == 0 {
		return defaultValue
	}
	return result
}
