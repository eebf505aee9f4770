package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
)

// Storage backends.
const (
	BackendMemory   = "memory"
	BackendFile     = "file"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

const defaultAddr = "0.0.0.0:8080"

// Config holds the complete application configuration, loadable from
// environment variables (STOREFRONT_ prefix), flags, or YAML config files.
type Config struct {
	Addr          string `default:"0.0.0.0:8080" usage:"API server listen address"`
	SiteName      string `default:"Storefront" usage:"Site name appended to product page titles" flag:"site-name"`
	CategoryLimit int    `default:"100" usage:"Products fetched per category page" flag:"category-limit"`
	Catalog       CatalogConfig
	Storage       StorageConfig
	Session       SessionConfig
	Feed          FeedConfig
	RateLimit     RateLimitConfig
	CORS          CORSConfig
	Graceful      GracefulConfig
}

// CatalogConfig points at the upstream product catalog.
type CatalogConfig struct {
	URL     string        `default:"https://dummyjson.com" usage:"Catalog API base URL" flag:"catalog-url"`
	Timeout time.Duration `default:"10s" usage:"Catalog request timeout" flag:"catalog-timeout"`
}

// StorageConfig selects where client state (carts, recently viewed) lives.
type StorageConfig struct {
	Backend     string        `default:"memory" usage:"State backend: memory, file, postgres or redis"`
	Dir         string        `default:"data/state" usage:"Directory for the file backend"`
	DatabaseURL string        `usage:"PostgreSQL connection URL (STOREFRONT_STORAGE_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	RedisURL    string        `usage:"Redis URL (STOREFRONT_STORAGE_REDIS_URL or REDIS_URL)" flag:"redis-url"`
	RedisTTL    time.Duration `default:"720h" usage:"Expiry of client state in Redis, 0 disables"`
}

// SessionConfig controls in-memory session retention.
type SessionConfig struct {
	IdleTTL time.Duration `default:"30m" usage:"Evict sessions idle for this long" flag:"session-idle-ttl"`
}

// FeedConfig tunes the landing page feed.
type FeedConfig struct {
	PageSize int           `default:"20" usage:"Products per feed page"`
	Throttle time.Duration `default:"1s" usage:"Minimum delay before each page fetch"`
	Debounce time.Duration `default:"500ms" usage:"Quiet period before a search query is applied"`
}

// RateLimitConfig controls the per-client token bucket.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins []string `default:"*" usage:"Allowed CORS origins"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables, YAML config files,
// and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix:         "STOREFRONT",
		AllowUnknownFlags: true,
		Files:             []string{"config.yaml", "/etc/storefront/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks that the selected storage backend is fully configured.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case BackendMemory:
	case BackendFile:
		if c.Storage.Dir == "" {
			return errors.New("storage dir is required for the file backend")
		}
	case BackendPostgres:
		if c.Storage.DatabaseURL == "" {
			return errors.New("database URL is required: set STOREFRONT_STORAGE_DATABASE_URL or DATABASE_URL")
		}
	case BackendRedis:
		if c.Storage.RedisURL == "" {
			return errors.New("redis URL is required: set STOREFRONT_STORAGE_REDIS_URL or REDIS_URL")
		}
	default:
		return errors.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
	if c.Catalog.URL == "" {
		return errors.New("catalog URL is required")
	}
	if c.Feed.PageSize <= 0 {
		return errors.Errorf("feed page size must be positive, got %d", c.Feed.PageSize)
	}
	if c.RateLimit.Max <= 0 || c.RateLimit.Window <= 0 {
		return errors.New("rate limit max and window must be positive")
	}
	// The sweeper ticks every IdleTTL/2.
	if c.Session.IdleTTL < time.Second {
		return errors.Errorf("session idle TTL must be at least 1s, got %s", c.Session.IdleTTL)
	}
	return nil
}

// applyPlatformDefaults maps platform-provided environment variables (Railway,
// Render, etc.) that use standard names like DATABASE_URL and PORT to the
// application's STOREFRONT_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.Storage.DatabaseURL == "" {
		c.Storage.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if c.Storage.RedisURL == "" {
		c.Storage.RedisURL = os.Getenv("REDIS_URL")
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == defaultAddr {
		c.Addr = "0.0.0.0:" + port
	}
}
