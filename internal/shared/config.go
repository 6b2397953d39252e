package shared

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Backend   BackendConfig   `toml:"backend"`
	Mock      MockConfig      `toml:"mock"`
	Downloads DownloadsConfig `toml:"downloads"`
	Database  DatabaseConfig  `toml:"database"`
	History   HistoryConfig   `toml:"history"`
	Server    ServerConfig    `toml:"server"`
	Logging   LoggingConfig   `toml:"logging"`
}

// BackendConfig contains settings for the remote conversion API.
type BackendConfig struct {
	URL            string `toml:"url"`
	APIToken       string `toml:"api_token"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	PollIntervalMS int    `toml:"poll_interval_ms"`
	MaxPolls       int    `toml:"max_polls"`
}

// Timeout returns the per-request HTTP timeout.
func (b BackendConfig) Timeout() time.Duration {
	return time.Duration(b.TimeoutSeconds) * time.Second
}

// PollInterval returns the delay between job status polls.
func (b BackendConfig) PollInterval() time.Duration {
	return time.Duration(b.PollIntervalMS) * time.Millisecond
}

// MockConfig tunes the local mock conversion engine.
type MockConfig struct {
	Steps         int     `toml:"steps"`
	StepDelayMS   int     `toml:"step_delay_ms"`
	SuccessRate   float64 `toml:"success_rate"`
	MinSizeFactor float64 `toml:"min_size_factor"`
	MaxSizeFactor float64 `toml:"max_size_factor"`
	Seed          uint64  `toml:"seed"` // 0 seeds from the clock
}

// StepDelay returns the delay between simulated progress steps.
func (m MockConfig) StepDelay() time.Duration {
	return time.Duration(m.StepDelayMS) * time.Millisecond
}

// DownloadsConfig contains settings for writing converted files to disk.
type DownloadsConfig struct {
	OutputDir string `toml:"output_dir"`
	StaggerMS int    `toml:"stagger_ms"`
	Workers   int    `toml:"workers"`
}

// Stagger returns the minimum spacing between consecutive downloads.
func (d DownloadsConfig) Stagger() time.Duration {
	return time.Duration(d.StaggerMS) * time.Millisecond
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// HistoryConfig controls how many conversion history entries are retained.
type HistoryConfig struct {
	Limit int `toml:"limit"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// Addr returns the host:port listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// LoggingConfig contains log level and the TUI log file location.
type LoggingConfig struct {
	Level string `toml:"level"`
	File  string `toml:"file"`
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Values missing from the file keep the embedded defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks value ranges that would otherwise break conversions at runtime.
func (c *Config) Validate() error {
	if c.Backend.URL == "" {
		return fmt.Errorf("%w: backend.url is required", ErrInvalidConfig)
	}
	if c.Mock.SuccessRate < 0 || c.Mock.SuccessRate > 1 {
		return fmt.Errorf("%w: mock.success_rate must be within [0, 1]", ErrInvalidConfig)
	}
	if c.Mock.MinSizeFactor <= 0 || c.Mock.MaxSizeFactor < c.Mock.MinSizeFactor {
		return fmt.Errorf("%w: mock size factors must satisfy 0 < min <= max", ErrInvalidConfig)
	}
	if c.Mock.Steps <= 0 {
		return fmt.Errorf("%w: mock.steps must be positive", ErrInvalidConfig)
	}
	if c.History.Limit <= 0 {
		return fmt.Errorf("%w: history.limit must be positive", ErrInvalidConfig)
	}
	return nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s: %w", path, os.ErrExist)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
