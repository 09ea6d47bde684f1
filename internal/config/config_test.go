package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	require.NoError(t, cfg.Validate())
	assert.Equal(t, 8080, cfg.Server.HTTPPort)
	assert.Equal(t, "s3", cfg.Store.Backend)
	assert.Equal(t, DefaultLayoutTemplate, cfg.Layout.Template)
	assert.Equal(t, 30*time.Second, cfg.Cache.TTL)
	assert.False(t, cfg.Access.AllowOverwrite)
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	// Point at a directory with no config file
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatal("expected error for explicitly named missing file")
	}
	_ = cfg
}

func TestLoad_FromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	content := `
server:
  http_port: 9090
store:
  backend: memory
  request_timeout: 5s
  list_page_size: 100
  max_upload_bytes: 1048576
layout:
  template: "timeframe={timeframe}/symbol={symbol}/year={year}/month={month}/day={day}"
  timeframes: ["5m", "15m"]
cache:
  ttl: 10s
access:
  default_expiry: 5m
  min_expiry: 1m
  max_expiry: 1h
  max_stream_bytes: 1048576
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.HTTPPort)
	assert.Equal(t, "memory", cfg.Store.Backend)
	assert.Equal(t, []string{"5m", "15m"}, cfg.Layout.Timeframes)
	assert.Equal(t, 10*time.Second, cfg.Cache.TTL)
	assert.Equal(t, 5*time.Minute, cfg.Access.DefaultExpiry)
}

func TestStoreConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*StoreConfig)
		wantErr bool
	}{
		{"valid s3", func(c *StoreConfig) {}, false},
		{"s3 without bucket", func(c *StoreConfig) { c.Bucket = "" }, true},
		{"memory without bucket", func(c *StoreConfig) { c.Backend = "memory"; c.Bucket = "" }, false},
		{"unknown backend", func(c *StoreConfig) { c.Backend = "gcs" }, true},
		{"zero timeout", func(c *StoreConfig) { c.RequestTimeout = 0 }, true},
		{"oversized page", func(c *StoreConfig) { c.ListPageSize = 5000 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig().Store
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestAccessConfig_Validate(t *testing.T) {
	cfg := DefaultConfig().Access

	cfg.MaxExpiry = 30 * time.Second // below min
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig().Access
	cfg.DefaultExpiry = 48 * time.Hour // above max
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig().Access
	cfg.MaxStreamBytes = 0
	assert.Error(t, cfg.Validate())
}

func TestLayoutConfig_Validate(t *testing.T) {
	cfg := LayoutConfig{}
	assert.Error(t, cfg.Validate())

	cfg.Template = DefaultLayoutTemplate
	assert.Error(t, cfg.Validate()) // no timeframes

	cfg.Timeframes = []string{"5m"}
	assert.NoError(t, cfg.Validate())
}
