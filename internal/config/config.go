// Package config handles configuration loading, validation, and management for copilot.
package config

import (
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
)

// Version is the current configuration schema version.
const Version = 1

// Config holds the complete engine configuration.
type Config struct {
	// Version is the configuration schema version.
	Version int `toml:"version" json:"version" yaml:"version"`

	// AutoSpace controls the boundary-space key processor.
	AutoSpace AutoSpaceConfig `toml:"auto_space" json:"auto_space" yaml:"auto_space"`

	// Filters configures the candidate filter chain.
	Filters FiltersConfig `toml:"filters" json:"filters" yaml:"filters"`

	// Dictionary maps input codes to candidate phrases.
	Dictionary map[string][]string `toml:"dictionary" json:"dictionary" yaml:"dictionary"`

	// Logging configuration.
	Logging LoggingConfig `toml:"logging" json:"logging" yaml:"logging"`

	// IBus front-end configuration.
	IBus IBusConfig `toml:"ibus" json:"ibus" yaml:"ibus"`

	mu sync.RWMutex
}

// AutoSpaceConfig configures the auto-spacer processor.
type AutoSpaceConfig struct {
	Enabled bool `toml:"enabled" json:"enabled" yaml:"enabled"`

	// ASCIIModeOption is the session option that reports ASCII mode.
	ASCIIModeOption string `toml:"ascii_mode_option" json:"ascii_mode_option" yaml:"ascii_mode_option"`
}

// FiltersConfig configures the candidate filter chain.
type FiltersConfig struct {
	// Stages are stage names in application order. A name may carry a
	// namespace after "@", e.g. "lua@/path/to/script.lua".
	Stages []string `toml:"stages" json:"stages" yaml:"stages"`

	// PageSize is the number of candidates shown per page.
	PageSize int `toml:"page_size" json:"page_size" yaml:"page_size"`

	// Options are passed to every stage through its ticket.
	Options map[string]any `toml:"options" json:"options" yaml:"options"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level      string `toml:"level" json:"level" yaml:"level"`
	Format     string `toml:"format" json:"format" yaml:"format"`
	Output     string `toml:"output" json:"output" yaml:"output"`
	FilePath   string `toml:"file_path" json:"file_path" yaml:"file_path"`
	MaxSizeMB  int    `toml:"max_size_mb" json:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups" json:"max_backups" yaml:"max_backups"`

	// LogText disables redaction of typed and committed text.
	LogText bool `toml:"log_text" json:"log_text" yaml:"log_text"`
}

// IBusConfig configures the IBus engine process.
type IBusConfig struct {
	BusName    string `toml:"bus_name" json:"bus_name" yaml:"bus_name"`
	EngineName string `toml:"engine_name" json:"engine_name" yaml:"engine_name"`

	// StartASCII starts every session in ASCII mode.
	StartASCII bool `toml:"start_ascii" json:"start_ascii" yaml:"start_ascii"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Version: Version,
		AutoSpace: AutoSpaceConfig{
			Enabled:         true,
			ASCIIModeOption: "ascii_mode",
		},
		Filters: FiltersConfig{
			Stages:   []string{"raw_input", "auto_spacer"},
			PageSize: 9,
			Options:  map[string]any{},
		},
		Dictionary: map[string][]string{},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			Output:     "stderr",
			FilePath:   filepath.Join(CopilotDir(), "copilot.log"),
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
		IBus: IBusConfig{
			BusName:    "org.copilot.IBus",
			EngineName: "copilot",
		},
	}
}

// CopilotDir returns the base copilot configuration directory.
// COPILOT_CONFIG_DIR overrides the platform default.
func CopilotDir() string {
	if envDir := os.Getenv("COPILOT_CONFIG_DIR"); envDir != "" {
		return envDir
	}
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "copilot")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "copilot")
	}
	return filepath.Join(home, ".config", "copilot")
}

// ConfigPath returns the default configuration file path.
func ConfigPath() string {
	return filepath.Join(CopilotDir(), "config.toml")
}

// Load reads configuration from the specified path.
// If the file doesn't exist, returns default configuration.
// Supports TOML, JSON, and YAML formats based on file extension.
func Load(path string) (*Config, error) {
	if path == "" {
		path = ConfigPath()
	}

	cfg, err := loadConfigFromFile(path)
	if err != nil {
		return nil, err
	}

	cfg.ApplyEnvOverrides()
	return cfg, nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	return ValidateConfig(c)
}

// ApplyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables are prefixed with COPILOT_.
func (c *Config) ApplyEnvOverrides() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if v := os.Getenv("COPILOT_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("COPILOT_LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}
	if v := os.Getenv("COPILOT_LOG_PATH"); v != "" {
		c.Logging.FilePath = v
		c.Logging.Output = "file"
	}
	if v, ok := envBool("COPILOT_LOG_TEXT"); ok {
		c.Logging.LogText = v
	}

	if v, ok := envBool("COPILOT_AUTO_SPACE"); ok {
		c.AutoSpace.Enabled = v
	}
	if v := os.Getenv("COPILOT_FILTERS"); v != "" {
		var stages []string
		for _, s := range strings.Split(v, ",") {
			if s = strings.TrimSpace(s); s != "" {
				stages = append(stages, s)
			}
		}
		c.Filters.Stages = stages
	}

	if v := os.Getenv("COPILOT_IBUS_BUS_NAME"); v != "" {
		c.IBus.BusName = v
	}
	if v, ok := envBool("COPILOT_START_ASCII"); ok {
		c.IBus.StartASCII = v
	}
}

// Clone returns a deep copy of the configuration.
func (c *Config) Clone() *Config {
	c.mu.RLock()
	defer c.mu.RUnlock()

	clone := &Config{
		Version:   c.Version,
		AutoSpace: c.AutoSpace,
		Filters:   c.Filters,
		Logging:   c.Logging,
		IBus:      c.IBus,
	}

	clone.Filters.Stages = slices.Clone(c.Filters.Stages)
	clone.Filters.Options = maps.Clone(c.Filters.Options)
	if c.Dictionary != nil {
		clone.Dictionary = make(map[string][]string, len(c.Dictionary))
		for code, phrases := range c.Dictionary {
			clone.Dictionary[code] = slices.Clone(phrases)
		}
	}

	return clone
}

// EnsureDirectories creates the directories the configuration refers to.
func (c *Config) EnsureDirectories() error {
	if c.Logging.Output != "file" && c.Logging.Output != "both" {
		return nil
	}
	dir := filepath.Dir(c.Logging.FilePath)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("create directory %s: %w", dir, err)
	}
	return nil
}

func envBool(key string) (bool, bool) {
	v := os.Getenv(key)
	if v == "" {
		return false, false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, false
	}
	return b, true
}

func decodeTOML(data []byte, cfg *Config) error {
	_, err := toml.Decode(string(data), cfg)
	return err
}
