package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Cache       CacheConfig       `mapstructure:"cache"`
	Shortener   ShortenerConfig   `mapstructure:"shortener"`
	RateLimit   RateLimitConfig   `mapstructure:"rate_limit"`
	IDAllocator IDAllocatorConfig `mapstructure:"id_allocator"`
	Worker      WorkerConfig      `mapstructure:"worker"`
	Metrics     MetricsConfig     `mapstructure:"metrics"`
	Logging     LoggingConfig     `mapstructure:"logging"`
}

type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	BaseURL         string        `mapstructure:"base_url"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type DatabaseConfig struct {
	URL            string `mapstructure:"url"`
	MaxConnections int    `mapstructure:"max_connections"`
	AutoMigrate    bool   `mapstructure:"auto_migrate"`
}

type CacheConfig struct {
	URL          string        `mapstructure:"url"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
}

type ShortenerConfig struct {
	APIVersion   string `mapstructure:"api_version"`
	MaxURLLength int    `mapstructure:"max_url_length"`
	ValidityDays int    `mapstructure:"validity_days"`
	// CreationLeaseTTL must cover an id allocation (id_allocator.max_wait)
	// plus the insert.
	CreationLeaseTTL time.Duration `mapstructure:"creation_lease_ttl"`
}

// Validity is the lifetime given to newly created mappings.
func (c ShortenerConfig) Validity() time.Duration {
	return time.Duration(c.ValidityDays) * 24 * time.Hour
}

type RateLimitConfig struct {
	Enabled           bool          `mapstructure:"enabled"`
	Limit             int64         `mapstructure:"limit"`
	Window            time.Duration `mapstructure:"window"`
	TrustForwardedFor bool          `mapstructure:"trust_forwarded_for"`
}

type IDAllocatorConfig struct {
	MaxWait time.Duration `mapstructure:"max_wait"`
}

type WorkerConfig struct {
	ReconcileInterval time.Duration `mapstructure:"reconcile_interval"`
}

type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

type LoggingConfig struct {
	Level    string `mapstructure:"level"`
	Format   string `mapstructure:"format"`
	Output   string `mapstructure:"output"`
	FilePath string `mapstructure:"file_path"`
}

// Load reads the config file at path, applies environment overrides
// (server.port -> SERVER_PORT) and falls back to defaults for anything unset.
// A missing file is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// REDIS_URL is what most hosting platforms inject.
	if err := v.BindEnv("cache.url", "CACHE_URL", "REDIS_URL"); err != nil {
		return nil, err
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.base_url", "")
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 10*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)
	v.SetDefault("server.shutdown_timeout", 15*time.Second)

	v.SetDefault("database.url", "file:shortr.db?_busy_timeout=5000&_journal_mode=WAL&_txlock=immediate")
	v.SetDefault("database.max_connections", 10)
	v.SetDefault("database.auto_migrate", true)

	v.SetDefault("cache.url", "redis://localhost:6379/0")
	v.SetDefault("cache.pool_size", 20)
	v.SetDefault("cache.min_idle_conns", 5)
	v.SetDefault("cache.dial_timeout", 5*time.Second)

	v.SetDefault("shortener.api_version", "v1")
	v.SetDefault("shortener.max_url_length", 2048)
	v.SetDefault("shortener.validity_days", 30)
	v.SetDefault("shortener.creation_lease_ttl", 15*time.Second)

	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.limit", 10)
	v.SetDefault("rate_limit.window", 60*time.Second)
	v.SetDefault("rate_limit.trust_forwarded_for", false)

	v.SetDefault("id_allocator.max_wait", 5*time.Second)

	v.SetDefault("worker.reconcile_interval", time.Minute)

	v.SetDefault("metrics.enabled", true)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.file_path", "")
}
