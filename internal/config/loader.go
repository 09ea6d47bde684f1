package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// DefaultLayoutTemplate matches the ingestion pipeline's partitioned key
// convention. Numeric fields are rendered zero-padded so lexicographic key
// order matches chronological order.
const DefaultLayoutTemplate = "processed/timeframe={timeframe}/exchange={exchange}/symbol={symbol}/year={year}/month={month}/day={day}"

// Load loads configuration from file
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// Default config locations
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")                  // Current directory
		v.AddConfigPath("./configs")          // Project configs directory
		v.AddConfigPath("/etc/ohlcv-gateway") // System-wide config
	}

	// Set defaults
	setDefaults(v)

	// Enable environment variable overrides
	v.SetEnvPrefix("OHLCV_GATEWAY")
	v.AutomaticEnv()

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found; use defaults
			return parseConfig(v)
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	return parseConfig(v)
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.http_port", 8080)

	// Store defaults
	v.SetDefault("store.backend", "s3")
	v.SetDefault("store.bucket", "ohlcv-pipeline")
	v.SetDefault("store.region", "ap-south-1")
	v.SetDefault("store.request_timeout", "10s")
	v.SetDefault("store.list_page_size", 1000)
	v.SetDefault("store.max_upload_bytes", 256*1024*1024)

	// Layout defaults
	v.SetDefault("layout.template", DefaultLayoutTemplate)
	v.SetDefault("layout.timeframes", []string{"1m", "5m", "15m", "1h", "1d"})
	v.SetDefault("layout.exchange", "NSE")

	// Cache defaults
	v.SetDefault("cache.ttl", "30s")
	v.SetDefault("cache.cleanup_interval", "1m")

	// Access defaults
	v.SetDefault("access.default_expiry", "15m")
	v.SetDefault("access.min_expiry", "1m")
	v.SetDefault("access.max_expiry", "24h")
	v.SetDefault("access.max_stream_bytes", 128*1024*1024)
	v.SetDefault("access.allow_overwrite", false)

	// Events defaults
	v.SetDefault("events.enabled", false)
	v.SetDefault("events.type", "memory")
	v.SetDefault("events.subject", "ohlcv.ingest")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output_path", "stdout")
}

// parseConfig parses viper config into Config struct
func parseConfig(v *viper.Viper) (*Config, error) {
	var cfg Config

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// DefaultConfig returns default configuration
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:     "0.0.0.0",
			HTTPPort: 8080,
		},
		Store: StoreConfig{
			Backend:        "s3",
			Bucket:         "ohlcv-pipeline",
			Region:         "ap-south-1",
			RequestTimeout: 10 * time.Second,
			ListPageSize:   1000,
			MaxUploadBytes: 256 * 1024 * 1024,
		},
		Layout: LayoutConfig{
			Template:   DefaultLayoutTemplate,
			Timeframes: []string{"1m", "5m", "15m", "1h", "1d"},
			Exchange:   "NSE",
		},
		Cache: CacheConfig{
			TTL:             30 * time.Second,
			CleanupInterval: time.Minute,
		},
		Access: AccessConfig{
			DefaultExpiry:  15 * time.Minute,
			MinExpiry:      time.Minute,
			MaxExpiry:      24 * time.Hour,
			MaxStreamBytes: 128 * 1024 * 1024,
			AllowOverwrite: false,
		},
		Events: EventsConfig{
			Enabled: false,
			Type:    "memory",
			Subject: "ohlcv.ingest",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "json",
			OutputPath: "stdout",
		},
	}
}
