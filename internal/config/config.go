package config

import (
	"fmt"
	"time"
)

// Config represents the complete application configuration
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Store   StoreConfig   `mapstructure:"store"`
	Layout  LayoutConfig  `mapstructure:"layout"`
	Cache   CacheConfig   `mapstructure:"cache"`
	Access  AccessConfig  `mapstructure:"access"`
	Events  EventsConfig  `mapstructure:"events"`
	Auth    AuthConfig    `mapstructure:"auth"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Host     string `mapstructure:"host"`      // Bind address (e.g., 0.0.0.0 for all interfaces)
	HTTPPort int    `mapstructure:"http_port"` // HTTP server port
}

// StoreConfig represents object store configuration
type StoreConfig struct {
	Backend        string        `mapstructure:"backend"`          // s3 (default), memory
	Bucket         string        `mapstructure:"bucket"`           // Bucket name (required for s3)
	Region         string        `mapstructure:"region"`           // AWS region
	Endpoint       string        `mapstructure:"endpoint"`         // Custom endpoint for MinIO/LocalStack/R2
	UsePathStyle   bool          `mapstructure:"use_path_style"`   // Path-style addressing (MinIO, LocalStack)
	AccessKey      string        `mapstructure:"access_key"`       // Static credentials; default chain when empty
	SecretKey      string        `mapstructure:"secret_key"`       //
	RequestTimeout time.Duration `mapstructure:"request_timeout"`  // Per store round trip (list/get/put)
	ListPageSize   int           `mapstructure:"list_page_size"`   // Store-side page cap for listings
	MaxUploadBytes int64         `mapstructure:"max_upload_bytes"` // Reject direct uploads above this size
}

// LayoutConfig represents the physical key layout convention.
// One template governs a deployment; the gateway does not auto-detect
// between conventions.
type LayoutConfig struct {
	Template   string   `mapstructure:"template"`   // e.g. processed/timeframe={timeframe}/exchange={exchange}/symbol={symbol}/year={year}/month={month}/day={day}
	Timeframes []string `mapstructure:"timeframes"` // Recognized timeframe values (e.g. 1m, 5m, 15m, 1h, 1d)
	Exchange   string   `mapstructure:"exchange"`   // Default exchange for symbol normalization
}

// CacheConfig represents partition listing cache configuration.
// The TTL is a staleness/load trade-off, not a correctness mechanism.
type CacheConfig struct {
	TTL             time.Duration `mapstructure:"ttl"`              // Listing snapshot lifetime
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"` // Expired entry sweep interval
}

// AccessConfig represents access mediation configuration
type AccessConfig struct {
	DefaultExpiry  time.Duration `mapstructure:"default_expiry"`   // Presigned URL expiry when unspecified
	MinExpiry      time.Duration `mapstructure:"min_expiry"`       // Lower bound for caller-supplied expiry
	MaxExpiry      time.Duration `mapstructure:"max_expiry"`       // Upper bound for caller-supplied expiry
	MaxStreamBytes int64         `mapstructure:"max_stream_bytes"` // Cap for streamed object delivery
	AllowOverwrite bool          `mapstructure:"allow_overwrite"`  // Permit direct uploads to replace existing keys
}

// EventsConfig represents ingest event publishing configuration
type EventsConfig struct {
	Enabled  bool   `mapstructure:"enabled"`  // Publish an event after each successful direct upload
	Type     string `mapstructure:"type"`     // Broker type: memory (default), nats, redis, kafka
	URL      string `mapstructure:"url"`      // Broker URL (e.g., nats://localhost:4222, redis://localhost:6379)
	Subject  string `mapstructure:"subject"`  // Subject/topic for ingest events
	Username string `mapstructure:"username"` // Optional authentication
	Password string `mapstructure:"password"` // Optional authentication

	// Redis-specific options
	RedisDB     int    `mapstructure:"redis_db"`     // Redis database number (default: 0)
	RedisStream string `mapstructure:"redis_stream"` // Redis stream prefix (default: "ohlcv-gateway")

	// Kafka-specific options
	KafkaBrokers []string `mapstructure:"kafka_brokers"` // Kafka broker addresses
}

// AuthConfig represents authentication configuration
type AuthConfig struct {
	Enabled bool     `mapstructure:"enabled"`  // Enable/disable API key authentication
	APIKeys []string `mapstructure:"api_keys"` // List of valid API keys
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level      string `mapstructure:"level"`       // debug, info, warn, error
	Format     string `mapstructure:"format"`      // json, console
	OutputPath string `mapstructure:"output_path"` // stdout, stderr, file path
	TimeFormat string `mapstructure:"time_format"` // RFC3339, Unix, Kitchen
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server config: %w", err)
	}

	if err := c.Store.Validate(); err != nil {
		return fmt.Errorf("store config: %w", err)
	}

	if err := c.Layout.Validate(); err != nil {
		return fmt.Errorf("layout config: %w", err)
	}

	if err := c.Cache.Validate(); err != nil {
		return fmt.Errorf("cache config: %w", err)
	}

	if err := c.Access.Validate(); err != nil {
		return fmt.Errorf("access config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

// Validate validates server configuration
func (c *ServerConfig) Validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid http_port: %d", c.HTTPPort)
	}

	return nil
}

// Validate validates store configuration
func (c *StoreConfig) Validate() error {
	switch c.Backend {
	case "s3":
		if c.Bucket == "" {
			return fmt.Errorf("store.bucket is required for the s3 backend")
		}
	case "memory":
		// No external dependencies
	default:
		return fmt.Errorf("store.backend must be 's3' or 'memory', got %q", c.Backend)
	}

	if c.RequestTimeout <= 0 {
		return fmt.Errorf("store.request_timeout must be positive")
	}

	if c.ListPageSize < 1 || c.ListPageSize > 1000 {
		return fmt.Errorf("store.list_page_size must be in [1, 1000]")
	}

	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("store.max_upload_bytes must be positive")
	}

	return nil
}

// Validate validates layout configuration
func (c *LayoutConfig) Validate() error {
	if c.Template == "" {
		return fmt.Errorf("layout.template is required")
	}

	if len(c.Timeframes) == 0 {
		return fmt.Errorf("layout.timeframes must list at least one recognized timeframe")
	}

	return nil
}

// Validate validates cache configuration
func (c *CacheConfig) Validate() error {
	if c.TTL <= 0 {
		return fmt.Errorf("cache.ttl must be positive")
	}

	if c.CleanupInterval <= 0 {
		return fmt.Errorf("cache.cleanup_interval must be positive")
	}

	return nil
}

// Validate validates access configuration
func (c *AccessConfig) Validate() error {
	if c.DefaultExpiry <= 0 {
		return fmt.Errorf("access.default_expiry must be positive")
	}

	if c.MinExpiry <= 0 {
		return fmt.Errorf("access.min_expiry must be positive")
	}

	if c.MaxExpiry < c.MinExpiry {
		return fmt.Errorf("access.max_expiry cannot be below access.min_expiry")
	}

	if c.DefaultExpiry < c.MinExpiry || c.DefaultExpiry > c.MaxExpiry {
		return fmt.Errorf("access.default_expiry must lie within [min_expiry, max_expiry]")
	}

	if c.MaxStreamBytes <= 0 {
		return fmt.Errorf("access.max_stream_bytes must be positive")
	}

	return nil
}

// Validate validates logging configuration
func (c *LoggingConfig) Validate() error {
	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}

	if !validLevels[c.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}

	validFormats := map[string]bool{
		"json":    true,
		"console": true,
	}

	if !validFormats[c.Format] {
		return fmt.Errorf("logging.format must be 'json' or 'console'")
	}

	return nil
}
