// Package config loads and validates crawler configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/JakeFAU/insider-filings-crawler/internal/edgar"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	EDGAR      EDGARConfig      `mapstructure:"edgar"`
	Crawl      CrawlConfig      `mapstructure:"crawl"`
	Storage    StorageConfig    `mapstructure:"storage"`
	DeadLetter DeadLetterConfig `mapstructure:"deadletter"`
	DB         DBConfig         `mapstructure:"db"`
	Cache      CacheConfig      `mapstructure:"cache"`
	PubSub     PubSubConfig     `mapstructure:"pubsub"`
	Server     ServerConfig     `mapstructure:"server"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// EDGARConfig describes the upstream host. EDGAR rejects requests whose User-Agent
// does not name a contact.
type EDGARConfig struct {
	BaseURL     string        `mapstructure:"base_url"`
	Host        string        `mapstructure:"host"`
	UserAgent   string        `mapstructure:"user_agent"`
	Timeout     time.Duration `mapstructure:"timeout"`
	MaxBodySize int           `mapstructure:"max_body_bytes"`
}

// CrawlConfig governs the scheduler and the persistence pipeline.
type CrawlConfig struct {
	BatchSize          int           `mapstructure:"batch_size"`
	Cooldown           time.Duration `mapstructure:"cooldown"`
	RetryDelay         time.Duration `mapstructure:"retry_delay"`
	MaxIndexAttempts   int           `mapstructure:"max_index_attempts"`
	FormTypes          []string      `mapstructure:"form_types"`
	PersistConcurrency int           `mapstructure:"persist_concurrency"`
}

// StorageConfig selects where checkpoint files live.
type StorageConfig struct {
	Backend string             `mapstructure:"backend"`
	Local   LocalStorageConfig `mapstructure:"local"`
	GCS     GCSStorageConfig   `mapstructure:"gcs"`
}

// LocalStorageConfig roots checkpoints on the filesystem.
type LocalStorageConfig struct {
	BaseDir string `mapstructure:"base_dir"`
}

// GCSStorageConfig roots checkpoints in a bucket.
type GCSStorageConfig struct {
	Bucket string `mapstructure:"bucket"`
	Prefix string `mapstructure:"prefix"`
}

// DeadLetterConfig locates the dead-letter log.
type DeadLetterConfig struct {
	Path string `mapstructure:"path"`
}

// DBConfig controls access to Postgres.
type DBConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
}

// CacheConfig selects the identifier cache backend.
type CacheConfig struct {
	Backend  string        `mapstructure:"backend"`
	RedisURL string        `mapstructure:"redis_url"`
	Prefix   string        `mapstructure:"prefix"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// PubSubConfig holds the day-report topic. An empty project disables publishing.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	Topic     string `mapstructure:"topic"`
}

// ServerConfig controls the status HTTP server.
type ServerConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// Backend names.
const (
	BackendLocal  = "local"
	BackendGCS    = "gcs"
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("INSIDER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("edgar.base_url", edgar.DefaultBaseURL)
	v.SetDefault("edgar.host", "www.sec.gov")
	v.SetDefault("edgar.user_agent", "")
	v.SetDefault("edgar.timeout", 30*time.Second)
	v.SetDefault("edgar.max_body_bytes", 20*1024*1024)
	v.SetDefault("crawl.batch_size", edgar.MaxRequestsPerSecond)
	v.SetDefault("crawl.cooldown", 60*time.Second)
	v.SetDefault("crawl.retry_delay", 5*time.Minute)
	v.SetDefault("crawl.max_index_attempts", 3)
	v.SetDefault("crawl.form_types", []string{"4", "4/A"})
	v.SetDefault("crawl.persist_concurrency", 10)
	v.SetDefault("storage.backend", BackendLocal)
	v.SetDefault("storage.local.base_dir", "filings")
	v.SetDefault("storage.gcs.bucket", "")
	v.SetDefault("storage.gcs.prefix", "filings")
	v.SetDefault("deadletter.path", "filings/failed.txt")
	v.SetDefault("db.dsn", "")
	v.SetDefault("db.max_conns", 10)
	v.SetDefault("db.min_conns", 1)
	v.SetDefault("db.max_conn_lifetime", time.Hour)
	v.SetDefault("cache.backend", BackendMemory)
	v.SetDefault("cache.redis_url", "")
	v.SetDefault("cache.prefix", "insider")
	v.SetDefault("cache.ttl", 24*time.Hour)
	v.SetDefault("pubsub.project_id", "")
	v.SetDefault("pubsub.topic", "insider-filings-days")
	v.SetDefault("server.enabled", true)
	v.SetDefault("server.port", 8080)
	v.SetDefault("logging.development", false)
	v.SetDefault("logging.level", "info")
}

// Validate enforces required values and reasonable limits. Every failure wraps
// edgar.ErrConfig.
func (c Config) Validate() error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if strings.TrimSpace(c.EDGAR.BaseURL) == "" {
		fail("edgar.base_url is required")
	}
	if c.EDGAR.Timeout <= 0 {
		fail("edgar.timeout must be > 0")
	}
	if c.Crawl.BatchSize <= 0 || c.Crawl.BatchSize > edgar.MaxRequestsPerSecond {
		fail("crawl.batch_size must be between 1 and %d", edgar.MaxRequestsPerSecond)
	}
	if c.Crawl.MaxIndexAttempts <= 0 {
		fail("crawl.max_index_attempts must be > 0")
	}
	if c.Crawl.PersistConcurrency <= 0 {
		fail("crawl.persist_concurrency must be > 0")
	}
	switch c.Storage.Backend {
	case BackendLocal:
		if c.Storage.Local.BaseDir == "" {
			fail("storage.local.base_dir is required for the local backend")
		}
	case BackendGCS:
		if c.Storage.GCS.Bucket == "" {
			fail("storage.gcs.bucket is required for the gcs backend")
		}
	default:
		fail("storage.backend must be %q or %q", BackendLocal, BackendGCS)
	}
	if c.DeadLetter.Path == "" {
		fail("deadletter.path is required")
	}
	switch c.Cache.Backend {
	case BackendMemory:
	case BackendRedis:
		if c.Cache.RedisURL == "" {
			fail("cache.redis_url is required for the redis backend")
		}
	default:
		fail("cache.backend must be %q or %q", BackendMemory, BackendRedis)
	}
	if c.Server.Enabled && c.Server.Port <= 0 {
		fail("server.port must be > 0")
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("%w: %w", edgar.ErrConfig, err)
	}
	return nil
}

// RequireDatabase reports a configuration error when no DSN is set. Only commands
// that touch Postgres call it.
func (c Config) RequireDatabase() error {
	if strings.TrimSpace(c.DB.DSN) == "" {
		return fmt.Errorf("%w: db.dsn is required", edgar.ErrConfig)
	}
	return nil
}

// RequireUserAgent reports a configuration error when no contact User-Agent is set.
func (c Config) RequireUserAgent() error {
	if strings.TrimSpace(c.EDGAR.UserAgent) == "" {
		return fmt.Errorf("%w: edgar.user_agent is required by EDGAR", edgar.ErrConfig)
	}
	return nil
}
