// Package config loads application configuration from YAML files with
// environment-variable overrides. It provides typed structs for every
// subsystem (Server, Postgres, Kafka, Redis, Indexer, Crawler, Search, etc.).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Postgres PostgresConfig `yaml:"postgres"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Redis    RedisConfig    `yaml:"redis"`
	Indexer  IndexerConfig  `yaml:"indexer"`
	Crawler  CrawlerConfig  `yaml:"crawler"`
	Search   SearchConfig   `yaml:"search"`
	Logging  LoggingConfig  `yaml:"logging"`
	Tracing  TracingConfig  `yaml:"tracing"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

// PostgresConfig holds PostgreSQL connection parameters for the document
// catalog. An empty Host disables the catalog.
type PostgresConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// KafkaConfig holds Kafka broker and topic settings. HandlerRetries is how
// many times a consumer attempts one message before it stops.
type KafkaConfig struct {
	Brokers        []string    `yaml:"brokers"`
	ConsumerGroup  string      `yaml:"consumerGroup"`
	HandlerRetries int         `yaml:"handlerRetries"`
	Topics         KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	PageEvents string `yaml:"pageEvents"`
}

// RedisConfig holds Redis connection and caching parameters. An empty Addr
// disables the query cache.
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"poolSize"`
	CacheTTL time.Duration `yaml:"cacheTTL"`
}

// IndexerConfig controls where the index snapshot lives and how often it is
// flushed.
type IndexerConfig struct {
	SnapshotPath  string        `yaml:"snapshotPath"`
	FlushInterval time.Duration `yaml:"flushInterval"`
}

// CrawlerConfig controls crawl size, parallelism and fetch behaviour.
type CrawlerConfig struct {
	MaxPages        int           `yaml:"maxPages"`
	Concurrency     int           `yaml:"concurrency"`
	UserAgent       string        `yaml:"userAgent"`
	RequestTimeout  time.Duration `yaml:"requestTimeout"`
	RetryAttempts   int           `yaml:"retryAttempts"`
	RetryBaseDelay  time.Duration `yaml:"retryBaseDelay"`
	BreakerFailures int           `yaml:"breakerFailures"`
	BreakerReset    time.Duration `yaml:"breakerReset"`
}

// SearchConfig controls query execution limits and timeouts. RateLimit is
// the number of requests a single client may make per RateWindow; zero
// disables limiting.
type SearchConfig struct {
	MaxResults   int           `yaml:"maxResults"`
	DefaultLimit int           `yaml:"defaultLimit"`
	Timeout      time.Duration `yaml:"timeout"`
	RateLimit    int           `yaml:"rateLimit"`
	RateWindow   time.Duration `yaml:"rateWindow"`
	CORSOrigins  []string      `yaml:"corsOrigins"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// TracingConfig controls span logging.
type TracingConfig struct {
	Enabled bool `yaml:"enabled"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads a YAML config file (if provided) and applies environment-variable
// overrides. It returns a Config populated with defaults for any missing
// values.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	return cfg, nil
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return defaultConfig()
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Postgres: PostgresConfig{
			Port:            5432,
			Database:        "webquery",
			User:            "webquery",
			SSLMode:         "disable",
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Kafka: KafkaConfig{
			Brokers:        []string{"localhost:9092"},
			ConsumerGroup:  "webquery-indexer",
			HandlerRetries: 5,
			Topics: KafkaTopics{
				PageEvents: "page-events",
			},
		},
		Redis: RedisConfig{
			PoolSize: 10,
			CacheTTL: 60 * time.Second,
		},
		Indexer: IndexerConfig{
			SnapshotPath:  "data/index.db",
			FlushInterval: 30 * time.Second,
		},
		Crawler: CrawlerConfig{
			Concurrency:     4,
			UserAgent:       "webquery-crawler/1.0",
			RequestTimeout:  10 * time.Second,
			RetryAttempts:   3,
			RetryBaseDelay:  200 * time.Millisecond,
			BreakerFailures: 5,
			BreakerReset:    30 * time.Second,
		},
		Search: SearchConfig{
			MaxResults:   1000,
			DefaultLimit: 50,
			Timeout:      5 * time.Second,
			RateWindow:   time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
		},
	}
}

// applyEnvOverrides reads WQ_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	setInt("WQ_SERVER_PORT", &cfg.Server.Port)
	setString("WQ_POSTGRES_HOST", &cfg.Postgres.Host)
	setInt("WQ_POSTGRES_PORT", &cfg.Postgres.Port)
	setString("WQ_POSTGRES_DATABASE", &cfg.Postgres.Database)
	setString("WQ_POSTGRES_USER", &cfg.Postgres.User)
	setString("WQ_POSTGRES_PASSWORD", &cfg.Postgres.Password)
	setString("WQ_POSTGRES_SSLMODE", &cfg.Postgres.SSLMode)
	if v := os.Getenv("WQ_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	setString("WQ_KAFKA_TOPIC_PAGE_EVENTS", &cfg.Kafka.Topics.PageEvents)
	setInt("WQ_KAFKA_HANDLER_RETRIES", &cfg.Kafka.HandlerRetries)
	setString("WQ_REDIS_ADDR", &cfg.Redis.Addr)
	setString("WQ_REDIS_PASSWORD", &cfg.Redis.Password)
	setDuration("WQ_REDIS_CACHE_TTL", &cfg.Redis.CacheTTL)
	setString("WQ_INDEXER_SNAPSHOT_PATH", &cfg.Indexer.SnapshotPath)
	setDuration("WQ_INDEXER_FLUSH_INTERVAL", &cfg.Indexer.FlushInterval)
	setInt("WQ_CRAWLER_MAX_PAGES", &cfg.Crawler.MaxPages)
	setInt("WQ_CRAWLER_CONCURRENCY", &cfg.Crawler.Concurrency)
	setString("WQ_CRAWLER_USER_AGENT", &cfg.Crawler.UserAgent)
	setDuration("WQ_SEARCH_TIMEOUT", &cfg.Search.Timeout)
	setInt("WQ_SEARCH_RATE_LIMIT", &cfg.Search.RateLimit)
	if v := os.Getenv("WQ_SEARCH_CORS_ORIGINS"); v != "" {
		cfg.Search.CORSOrigins = strings.Split(v, ",")
	}
	setString("WQ_LOGGING_LEVEL", &cfg.Logging.Level)
	setString("WQ_LOGGING_FORMAT", &cfg.Logging.Format)
	if v := os.Getenv("WQ_TRACING_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Tracing.Enabled = b
		}
	}
	setInt("WQ_METRICS_PORT", &cfg.Metrics.Port)
}

func setString(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setDuration(key string, dst *time.Duration) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
