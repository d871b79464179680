package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/darkodi/whatsapp-redirect/internal/logger"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Balancer  BalancerConfig  `yaml:"balancer"`
	Redirect  RedirectConfig  `yaml:"redirect"`
	Geo       GeoConfig       `yaml:"geo"`
	App       AppConfig       `yaml:"app"`
	Admin     AdminConfig     `yaml:"admin"`
	Log       logger.Config   `yaml:"log"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port            string        `yaml:"port" validate:"required,numeric"`
	ReadTimeout     time.Duration `yaml:"read_timeout" validate:"gt=0"`
	WriteTimeout    time.Duration `yaml:"write_timeout" validate:"gt=0"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" validate:"gt=0"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" validate:"gt=0"`
	TrustedProxies  []string      `yaml:"trusted_proxies" validate:"dive,cidr"` // peers whose forwarding headers are believed
}

// DatabaseConfig holds database settings
type DatabaseConfig struct {
	Driver          string        `yaml:"driver" validate:"required,oneof=sqlite3 postgres"`
	DSN             string        `yaml:"dsn" validate:"required"` // file path for sqlite3, URL for postgres
	MaxOpenConns    int           `yaml:"max_open_conns" validate:"gte=1"`
	MaxIdleConns    int           `yaml:"max_idle_conns" validate:"gte=0"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" validate:"gte=0"`
}

// RedisConfig holds Redis settings. An empty Addr disables Redis.
type RedisConfig struct {
	Addr         string        `yaml:"addr"`
	Password     string        `yaml:"password"`
	DB           int           `yaml:"db" validate:"gte=0"`
	PoolSize     int           `yaml:"pool_size" validate:"gte=1"`
	DialTimeout  time.Duration `yaml:"dial_timeout" validate:"gt=0"`
	ReadTimeout  time.Duration `yaml:"read_timeout" validate:"gt=0"`
	WriteTimeout time.Duration `yaml:"write_timeout" validate:"gt=0"`
	LinkCacheTTL time.Duration `yaml:"link_cache_ttl" validate:"gte=0"` // 0 disables link caching
	GeoCacheTTL  time.Duration `yaml:"geo_cache_ttl" validate:"gt=0"`
	KeyPrefix    string        `yaml:"key_prefix"`
}

// Enabled reports whether a Redis address was configured
func (r RedisConfig) Enabled() bool {
	return r.Addr != ""
}

// RateLimitConfig holds per-IP token bucket settings
type RateLimitConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Rate     int           `yaml:"rate" validate:"gte=1"`
	Burst    int           `yaml:"burst" validate:"gte=1"`
	Interval time.Duration `yaml:"interval" validate:"gt=0"`
	Cleanup  time.Duration `yaml:"cleanup" validate:"gt=0"`
}

// BalancerConfig holds the number selection tuning knobs
type BalancerConfig struct {
	Window         time.Duration `yaml:"window" validate:"gt=0"`
	ExplorationCap float64       `yaml:"exploration_cap" validate:"gte=0,lte=1"`
	LinkWeight     float64       `yaml:"link_weight" validate:"gte=0"`
	JitterMin      float64       `yaml:"jitter_min" validate:"gt=0"`
	JitterMax      float64       `yaml:"jitter_max" validate:"gtfield=JitterMin"`
}

// RedirectConfig holds settings for building the outbound WhatsApp URL
type RedirectConfig struct {
	CountryCode    string        `yaml:"country_code" validate:"required,numeric,max=4"`
	DefaultMessage string        `yaml:"default_message"`
	WriteTimeout   time.Duration `yaml:"write_timeout" validate:"gt=0"` // bound on detached bookkeeping writes
}

// GeoConfig holds geolocation enrichment settings
type GeoConfig struct {
	Enabled     bool          `yaml:"enabled"`
	ProviderURL string        `yaml:"provider_url" validate:"required,url"`
	FallbackURL string        `yaml:"fallback_url" validate:"omitempty,url"` // ipinfo-style provider tried second
	Timeout     time.Duration `yaml:"timeout" validate:"gt=0"`
	Workers     int           `yaml:"workers" validate:"gte=1"`
	Queue       string        `yaml:"queue" validate:"oneof=memory redis"`
	QueueSize   int           `yaml:"queue_size" validate:"gte=1"`
	QueueKey    string        `yaml:"queue_key"`
}

// AppConfig holds application-specific settings
type AppConfig struct {
	BaseURL     string `yaml:"base_url"`
	Environment string `yaml:"environment"` // "development", "production", "testing"
}

// AdminConfig guards the statistics API. An empty token leaves it unmounted.
type AdminConfig struct {
	Token string `yaml:"token"`
}

// Default returns the configuration used when nothing is overridden
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            "8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			TrustedProxies:  []string{"127.0.0.0/8", "::1/128", "10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16", "fc00::/7"},
		},
		Database: DatabaseConfig{
			Driver:       "sqlite3",
			DSN:          "./data/redirect.db",
			MaxOpenConns: 25,
			MaxIdleConns: 5,
		},
		Redis: RedisConfig{
			PoolSize:     20,
			DialTimeout:  2 * time.Second,
			ReadTimeout:  time.Second,
			WriteTimeout: time.Second,
			LinkCacheTTL: time.Minute,
			GeoCacheTTL:  7 * 24 * time.Hour,
			KeyPrefix:    "wr:",
		},
		RateLimit: RateLimitConfig{
			Enabled:  false,
			Rate:     10,
			Burst:    20,
			Interval: time.Second,
			Cleanup:  5 * time.Minute,
		},
		Balancer: BalancerConfig{
			Window:         24 * time.Hour,
			ExplorationCap: 0.3,
			LinkWeight:     2,
			JitterMin:      0.1,
			JitterMax:      0.6,
		},
		Redirect: RedirectConfig{
			CountryCode:    "55",
			DefaultMessage: "Olá! Você será redirecionado para um de nossos atendentes. Aguarde um momento...",
			WriteTimeout:   5 * time.Second,
		},
		Geo: GeoConfig{
			Enabled:     true,
			ProviderURL: "http://ip-api.com/json/",
			FallbackURL: "https://ipinfo.io/",
			Timeout:     3 * time.Second,
			Workers:     2,
			Queue:       "memory",
			QueueSize:   1024,
			QueueKey:    "geo:jobs",
		},
		App: AppConfig{
			Environment: "development",
		},
		Log: logger.Config{
			Level:         "info",
			Format:        "text",
			MaxSizeMB:     100,
			MaxBackups:    5,
			MaxAgeDays:    30,
			CompressFiles: true,
		},
	}
}

// Load reads configuration from an optional YAML file and environment variables.
// Environment variables win over the file.
func Load() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	// Set default BaseURL if not provided
	if cfg.App.BaseURL == "" {
		cfg.App.BaseURL = fmt.Sprintf("http://localhost:%s", cfg.Server.Port)
	}
	cfg.Log.Environment = cfg.App.Environment

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Server.Port = getEnv("PORT", c.Server.Port)
	c.Server.ReadTimeout = getDurationEnv("SERVER_READ_TIMEOUT", c.Server.ReadTimeout)
	c.Server.WriteTimeout = getDurationEnv("SERVER_WRITE_TIMEOUT", c.Server.WriteTimeout)
	c.Server.IdleTimeout = getDurationEnv("SERVER_IDLE_TIMEOUT", c.Server.IdleTimeout)
	c.Server.ShutdownTimeout = getDurationEnv("SERVER_SHUTDOWN_TIMEOUT", c.Server.ShutdownTimeout)
	c.Server.TrustedProxies = getListEnv("TRUSTED_PROXIES", c.Server.TrustedProxies)

	c.Database.Driver = getEnv("DB_DRIVER", c.Database.Driver)
	c.Database.DSN = getEnv("DB_DSN", getEnv("DATABASE_URL", c.Database.DSN))
	c.Database.MaxOpenConns = getIntEnv("DB_MAX_OPEN_CONNS", c.Database.MaxOpenConns)
	c.Database.MaxIdleConns = getIntEnv("DB_MAX_IDLE_CONNS", c.Database.MaxIdleConns)
	c.Database.ConnMaxLifetime = getDurationEnv("DB_CONN_MAX_LIFETIME", c.Database.ConnMaxLifetime)

	c.Redis.Addr = getEnv("REDIS_ADDR", c.Redis.Addr)
	c.Redis.Password = getEnv("REDIS_PASSWORD", c.Redis.Password)
	c.Redis.DB = getIntEnv("REDIS_DB", c.Redis.DB)
	c.Redis.PoolSize = getIntEnv("REDIS_POOL_SIZE", c.Redis.PoolSize)
	c.Redis.LinkCacheTTL = getDurationEnv("REDIS_LINK_CACHE_TTL", c.Redis.LinkCacheTTL)
	c.Redis.GeoCacheTTL = getDurationEnv("REDIS_GEO_CACHE_TTL", c.Redis.GeoCacheTTL)
	c.Redis.KeyPrefix = getEnv("REDIS_KEY_PREFIX", c.Redis.KeyPrefix)

	c.RateLimit.Enabled = getBoolEnv("RATE_LIMIT_ENABLED", c.RateLimit.Enabled)
	c.RateLimit.Rate = getIntEnv("RATE_LIMIT_RATE", c.RateLimit.Rate)
	c.RateLimit.Burst = getIntEnv("RATE_LIMIT_BURST", c.RateLimit.Burst)
	c.RateLimit.Interval = getDurationEnv("RATE_LIMIT_INTERVAL", c.RateLimit.Interval)
	c.RateLimit.Cleanup = getDurationEnv("RATE_LIMIT_CLEANUP", c.RateLimit.Cleanup)

	c.Balancer.Window = getDurationEnv("BALANCER_WINDOW", c.Balancer.Window)
	c.Balancer.ExplorationCap = getFloatEnv("BALANCER_EXPLORATION_CAP", c.Balancer.ExplorationCap)
	c.Balancer.LinkWeight = getFloatEnv("BALANCER_LINK_WEIGHT", c.Balancer.LinkWeight)
	c.Balancer.JitterMin = getFloatEnv("BALANCER_JITTER_MIN", c.Balancer.JitterMin)
	c.Balancer.JitterMax = getFloatEnv("BALANCER_JITTER_MAX", c.Balancer.JitterMax)

	c.Redirect.CountryCode = getEnv("DEFAULT_COUNTRY_CODE", c.Redirect.CountryCode)
	c.Redirect.DefaultMessage = getEnv("DEFAULT_MESSAGE", c.Redirect.DefaultMessage)
	c.Redirect.WriteTimeout = getDurationEnv("REDIRECT_WRITE_TIMEOUT", c.Redirect.WriteTimeout)

	c.Geo.Enabled = getBoolEnv("GEO_ENABLED", c.Geo.Enabled)
	c.Geo.ProviderURL = getEnv("GEO_PROVIDER_URL", c.Geo.ProviderURL)
	c.Geo.FallbackURL = getEnv("GEO_FALLBACK_URL", c.Geo.FallbackURL)
	c.Geo.Timeout = getDurationEnv("GEO_TIMEOUT", c.Geo.Timeout)
	c.Geo.Workers = getIntEnv("GEO_WORKERS", c.Geo.Workers)
	c.Geo.Queue = getEnv("GEO_QUEUE", c.Geo.Queue)
	c.Geo.QueueSize = getIntEnv("GEO_QUEUE_SIZE", c.Geo.QueueSize)
	c.Geo.QueueKey = getEnv("GEO_QUEUE_KEY", c.Geo.QueueKey)

	c.App.BaseURL = getEnv("BASE_URL", c.App.BaseURL)
	c.App.Environment = getEnv("ENVIRONMENT", c.App.Environment)

	c.Admin.Token = getEnv("ADMIN_TOKEN", c.Admin.Token)

	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnv("LOG_FORMAT", c.Log.Format)
	c.Log.File = getEnv("LOG_FILE", c.Log.File)
	c.Log.MaxSizeMB = getIntEnv("LOG_MAX_SIZE_MB", c.Log.MaxSizeMB)
	c.Log.MaxBackups = getIntEnv("LOG_MAX_BACKUPS", c.Log.MaxBackups)
	c.Log.MaxAgeDays = getIntEnv("LOG_MAX_AGE_DAYS", c.Log.MaxAgeDays)
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("%s: failed %q check (value %v)", fe.Namespace(), fe.Tag(), fe.Value())
		}
		return err
	}

	// Validate port
	port, err := strconv.Atoi(c.Server.Port)
	if err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("invalid port: %s (must be 1-65535)", c.Server.Port)
	}

	// Validate environment
	validEnvs := map[string]bool{
		"development": true,
		"production":  true,
		"testing":     true,
	}
	if !validEnvs[c.App.Environment] {
		return fmt.Errorf("invalid environment: %s (must be development, production, or testing)", c.App.Environment)
	}
	// Validate log level
	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[c.Log.Level] {
		return fmt.Errorf("invalid log level: %s", c.Log.Level)
	}

	if c.Geo.Enabled && c.Geo.Queue == "redis" && !c.Redis.Enabled() {
		return errors.New("geo queue \"redis\" requires REDIS_ADDR")
	}

	return nil
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// ============================================================
// HELPER FUNCTIONS
// ============================================================

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	duration, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return duration
}

func getIntEnv(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	intValue, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return intValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue
	}
	return f
}

// getListEnv splits a comma separated value. Set but empty means an empty list.
func getListEnv(key string, defaultValue []string) []string {
	value, ok := os.LookupEnv(key)
	if !ok {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func getBoolEnv(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	b, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return b
}
