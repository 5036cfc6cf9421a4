// Package config loads the process-level configuration for the storage
// service: where the SQLite file and its adaptive tuning knobs live, when
// the purge task runs, and where the HTTP façade binds. The readings
// engine's own StoreConfig stays a plain Go struct; this package is only
// the on-disk YAML shape a process reads at startup.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/foglamp-io/storage-sqlite/readings"
)

// Config is the top-level process configuration.
type Config struct {
	DataDir  string         `yaml:"data_dir"`
	Database DatabaseConfig `yaml:"database"`
	Purge    PurgeConfig    `yaml:"purge"`
	HTTP     HTTPConfig     `yaml:"http"`
	Admin    AdminConfig    `yaml:"admin,omitempty"`
}

// DatabaseConfig configures the SQLite backing store. Fields left at their
// zero value fall back to readings.DefaultStoreConfig.
type DatabaseConfig struct {
	Filename         string `yaml:"filename,omitempty"`
	CacheSize        int    `yaml:"cache_size,omitempty"`
	JournalMode      string `yaml:"journal_mode,omitempty"`
	Synchronous      string `yaml:"synchronous,omitempty"`
	BusyTimeoutMS    int    `yaml:"busy_timeout_ms,omitempty"`
	MaxConnections   int    `yaml:"max_connections,omitempty"`
	MaxBusyRetries   int    `yaml:"max_busy_retries,omitempty"`
	CompressReadings bool   `yaml:"compress_readings,omitempty"`
}

// PurgeConfig controls the scheduled purge task.
type PurgeConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Schedule      string `yaml:"schedule,omitempty"`
	AgeHours      int64  `yaml:"age_hours,omitempty"`
	RetainUnsent  bool   `yaml:"retain_unsent,omitempty"`
	SizeThreshold int64  `yaml:"size_threshold,omitempty"`
}

// HTTPConfig configures the storage façade's listener.
type HTTPConfig struct {
	Bind            string `yaml:"bind"`
	NotifyWebsocket bool   `yaml:"notify_websocket,omitempty"`
}

// AdminConfig holds the bootstrap admin API key. In production this is
// expected to come from an environment variable or secret store rather
// than the YAML file itself; the field exists so tests and local runs
// don't need either.
type AdminConfig struct {
	APIKey string `yaml:"api_key,omitempty"`
}

// Default returns a Config with the readings engine's own defaults mirrored
// into the on-disk shape, plus reasonable process-level defaults.
func Default() Config {
	store := readings.DefaultStoreConfig()
	return Config{
		DataDir: "./data",
		Database: DatabaseConfig{
			Filename:       "foglamp.sqlite",
			CacheSize:      store.CacheSize,
			JournalMode:    store.JournalMode,
			Synchronous:    store.Synchronous,
			BusyTimeoutMS:  store.BusyTimeoutMS,
			MaxConnections: store.MaxConnections,
			MaxBusyRetries: store.MaxBusyRetries,
		},
		Purge: PurgeConfig{
			Enabled:  true,
			Schedule: "1h",
			AgeHours: 72,
		},
		HTTP: HTTPConfig{
			Bind:            ":8118",
			NotifyWebsocket: true,
		},
	}
}

// Parse parses a YAML process configuration from bytes and validates it.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: invalid YAML: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Load reads and parses a YAML process configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: cannot read %s: %w", path, err)
	}
	return Parse(data)
}

// Validate checks the configuration for structural correctness.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("config: data_dir is required")
	}
	if c.Database.Filename == "" {
		return fmt.Errorf("config: database.filename is required")
	}
	if c.HTTP.Bind == "" {
		return fmt.Errorf("config: http.bind is required")
	}
	if c.Purge.Enabled {
		if c.Purge.Schedule == "" {
			return fmt.Errorf("config: purge.schedule is required when purge.enabled")
		}
		if _, err := time.ParseDuration(c.Purge.Schedule); err != nil {
			return fmt.Errorf("config: purge.schedule %q is not a valid duration: %w", c.Purge.Schedule, err)
		}
		if c.Purge.AgeHours == 0 && c.Purge.SizeThreshold == 0 {
			return fmt.Errorf("config: purge.age_hours or purge.size_threshold is required when purge.enabled")
		}
	}
	return nil
}

// StoreConfig builds a readings.StoreConfig from this configuration,
// resolving the database path against DataDir.
func (c *Config) StoreConfig() readings.StoreConfig {
	store := readings.DefaultStoreConfig()
	store.Path = c.DataDir + "/" + c.Database.Filename
	if c.Database.CacheSize != 0 {
		store.CacheSize = c.Database.CacheSize
	}
	if c.Database.JournalMode != "" {
		store.JournalMode = c.Database.JournalMode
	}
	if c.Database.Synchronous != "" {
		store.Synchronous = c.Database.Synchronous
	}
	if c.Database.BusyTimeoutMS != 0 {
		store.BusyTimeoutMS = c.Database.BusyTimeoutMS
	}
	if c.Database.MaxConnections != 0 {
		store.MaxConnections = c.Database.MaxConnections
	}
	if c.Database.MaxBusyRetries != 0 {
		store.MaxBusyRetries = c.Database.MaxBusyRetries
	}
	store.CompressReadings = c.Database.CompressReadings
	return store
}

// PurgeInterval parses Schedule into a time.Duration. Callers should only
// call this after Validate has succeeded.
func (c *Config) PurgeInterval() time.Duration {
	d, _ := time.ParseDuration(c.Purge.Schedule)
	return d
}
