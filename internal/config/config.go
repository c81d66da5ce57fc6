// Package config handles focuscoach configuration.
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/quantumlife/focuscoach/internal/core"
	"github.com/quantumlife/focuscoach/internal/intervention"
	"github.com/quantumlife/focuscoach/internal/logging"
)

// EnvPrefix prefixes environment overrides, e.g. FOCUSCOACH_SERVER_PORT or
// FOCUSCOACH_POLICY_GATE_MAX_DAILY.
const EnvPrefix = "FOCUSCOACH"

// Storage drivers
const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
)

// Config holds all configuration
type Config struct {
	// Paths
	DataDir string `json:"data_dir" mapstructure:"data_dir"`

	Log     logging.Options           `json:"log" mapstructure:"log"`
	Server  ServerConfig              `json:"server" mapstructure:"server"`
	Storage StorageConfig             `json:"storage" mapstructure:"storage"`
	Catalog CatalogConfig             `json:"catalog" mapstructure:"catalog"`
	Policy  intervention.PolicyConfig `json:"policy" mapstructure:"policy"`

	Simulation SimulationConfig `json:"simulation" mapstructure:"simulation"`
}

// ServerConfig for HTTP server
type ServerConfig struct {
	Port            int           `json:"port" mapstructure:"port"`
	Host            string        `json:"host" mapstructure:"host"`
	AllowedOrigins  []string      `json:"allowed_origins" mapstructure:"allowed_origins"`
	ReadTimeout     time.Duration `json:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `json:"write_timeout" mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout" mapstructure:"shutdown_timeout"`
}

// StorageConfig selects where user profiles live.
type StorageConfig struct {
	Driver   string        `json:"driver" mapstructure:"driver"`       // memory or sqlite
	Path     string        `json:"path" mapstructure:"path"`           // sqlite file, empty for <data_dir>/focuscoach.db
	CacheTTL time.Duration `json:"cache_ttl" mapstructure:"cache_ttl"` // 0 disables the read cache
}

// CatalogConfig locates the intervention catalog. An empty path uses the
// built-in catalog.
type CatalogConfig struct {
	Path string `json:"path" mapstructure:"path"`
}

// SimulationConfig holds defaults for the simulate command.
type SimulationConfig struct {
	Users int   `json:"users" mapstructure:"users"`
	Steps int   `json:"steps" mapstructure:"steps"`
	Seed  int64 `json:"seed" mapstructure:"seed"`
}

// Default returns default configuration
func Default() *Config {
	home, _ := os.UserHomeDir()

	return &Config{
		DataDir: filepath.Join(home, ".focuscoach"),
		Log:     logging.DefaultOptions(),
		Server: ServerConfig{
			Port:            8080,
			Host:            "localhost",
			AllowedOrigins:  []string{"http://localhost:*"},
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Storage: StorageConfig{
			Driver:   DriverSQLite,
			CacheTTL: 5 * time.Minute,
		},
		Policy: intervention.DefaultPolicyConfig(),
		Simulation: SimulationConfig{
			Users: 20,
			Steps: 200,
			Seed:  1,
		},
	}
}

// DefaultPath returns the config file location inside dataDir.
func DefaultPath(dataDir string) string {
	return filepath.Join(dataDir, "config.yaml")
}

// Load reads the config file at path over the defaults and applies
// environment overrides. A missing file is not an error. The format follows
// the file extension (yaml, json or toml).
func Load(path string) (*Config, error) {
	defaults, err := json.Marshal(Default())
	if err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetConfigType("json")
	if err := v.ReadConfig(bytes.NewReader(defaults)); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path == "" {
		dataDir := v.GetString("data_dir")
		path = DefaultPath(dataDir)
	}

	if _, err := os.Stat(path); err == nil {
		ext := strings.TrimPrefix(filepath.Ext(path), ".")
		if ext == "" {
			ext = "yaml"
		}
		v.SetConfigType(ext)
		v.SetConfigFile(path)
		if err := v.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("%w: read %s: %v", core.ErrConfiguration, path, err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrConfiguration, err)
	}
	return &cfg, nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("%w: log.level: %v", core.ErrConfiguration, err)
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: server.port %d out of range", core.ErrConfiguration, c.Server.Port)
	}
	switch c.Storage.Driver {
	case DriverMemory:
	case DriverSQLite:
		if c.DatabasePath() == "" {
			return fmt.Errorf("%w: storage.path or data_dir is required for sqlite", core.ErrConfiguration)
		}
	default:
		return fmt.Errorf("%w: unknown storage.driver %q", core.ErrConfiguration, c.Storage.Driver)
	}
	if c.Storage.CacheTTL < 0 {
		return fmt.Errorf("%w: storage.cache_ttl is negative", core.ErrConfiguration)
	}
	return c.Policy.Validate()
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Server.Port))
}

// DatabasePath returns the sqlite file path.
func (c *Config) DatabasePath() string {
	if c.Storage.Path != "" {
		return c.Storage.Path
	}
	if c.DataDir == "" {
		return ""
	}
	return filepath.Join(c.DataDir, "focuscoach.db")
}

// Save writes the config as YAML, or JSON when path ends in .json.
func (c *Config) Save(path string) error {
	if path == "" {
		path = DefaultPath(c.DataDir)
	}

	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return os.WriteFile(path, data, 0600)
	}

	v := viper.New()
	v.SetConfigType("json")
	if err := v.ReadConfig(bytes.NewReader(data)); err != nil {
		return err
	}
	v.SetConfigType("yaml")
	return v.WriteConfigAs(path)
}
