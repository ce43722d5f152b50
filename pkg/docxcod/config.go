package docxcod

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config contains all configuration options for the docxcod engine
type Config struct {
	// CacheMaxSize is the maximum number of prepared templates to cache. 0 disables caching.
	CacheMaxSize int
	// CacheTTL is the time-to-live for cached templates. 0 means no expiration.
	CacheTTL time.Duration
	// LogLevel controls the verbosity of logging (debug, info, warn, error, off)
	LogLevel string
	// StrictMode turns a failed chart duplication into a render error instead of
	// keeping the original chart reference.
	StrictMode bool
	// MaxLoopRows caps the number of rows a spreadsheet loop may expand to.
	MaxLoopRows int
	// DefaultPadStyle is the style index given to padding cells in expanded
	// spreadsheet rows.
	DefaultPadStyle string
}

// fileConfig mirrors Config in the shape of a TOML file.
type fileConfig struct {
	CacheMaxSize    *int    `toml:"cache_max_size"`
	CacheTTL        string  `toml:"cache_ttl"`
	LogLevel        string  `toml:"log_level"`
	StrictMode      *bool   `toml:"strict_mode"`
	MaxLoopRows     *int    `toml:"max_loop_rows"`
	DefaultPadStyle *string `toml:"default_pad_style"`
}

var (
	globalConfig      *Config
	globalConfigMutex sync.RWMutex
	configOnce        sync.Once
)

func init() {
	configOnce.Do(func() {
		globalConfig = ConfigFromEnvironment()
	})
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		CacheMaxSize:    100,
		CacheTTL:        0,
		LogLevel:        "info",
		StrictMode:      false,
		MaxLoopRows:     100000,
		DefaultPadStyle: "1",
	}
}

// ConfigFromEnvironment creates a configuration from environment variables
func ConfigFromEnvironment() *Config {
	config := DefaultConfig()
	applyEnvironment(config)
	return config
}

func applyEnvironment(config *Config) {
	if val := os.Getenv("DOCXCOD_CACHE_MAX_SIZE"); val != "" {
		if size, err := strconv.Atoi(val); err == nil {
			config.CacheMaxSize = size
		}
	}

	if val := os.Getenv("DOCXCOD_CACHE_TTL"); val != "" {
		if duration, err := time.ParseDuration(val); err == nil {
			config.CacheTTL = duration
		}
	}

	if val := os.Getenv("DOCXCOD_LOG_LEVEL"); val != "" {
		config.LogLevel = val
	}

	if val := os.Getenv("DOCXCOD_STRICT_MODE"); val != "" {
		config.StrictMode = parseBool(val)
	}

	if val := os.Getenv("DOCXCOD_MAX_LOOP_ROWS"); val != "" {
		if rows, err := strconv.Atoi(val); err == nil {
			config.MaxLoopRows = rows
		}
	}
}

// LoadConfigFile reads a TOML configuration file on top of the defaults.
// Environment variables still take precedence over the file. A missing file
// yields the environment configuration.
func LoadConfigFile(path string) (*Config, error) {
	config := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			applyEnvironment(config)
			return config, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var fc fileConfig
	if err := toml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if fc.CacheMaxSize != nil {
		config.CacheMaxSize = *fc.CacheMaxSize
	}
	if fc.CacheTTL != "" {
		ttl, err := time.ParseDuration(fc.CacheTTL)
		if err != nil {
			return nil, fmt.Errorf("invalid cache_ttl %q: %w", fc.CacheTTL, err)
		}
		config.CacheTTL = ttl
	}
	if fc.LogLevel != "" {
		config.LogLevel = fc.LogLevel
	}
	if fc.StrictMode != nil {
		config.StrictMode = *fc.StrictMode
	}
	if fc.MaxLoopRows != nil {
		config.MaxLoopRows = *fc.MaxLoopRows
	}
	if fc.DefaultPadStyle != nil {
		config.DefaultPadStyle = *fc.DefaultPadStyle
	}

	applyEnvironment(config)
	return config, config.Validate()
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.CacheMaxSize < 0 {
		return errors.New("cache max size cannot be negative")
	}

	if c.CacheTTL < 0 {
		return errors.New("cache TTL cannot be negative")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
		"off":   true,
	}
	if !validLogLevels[c.LogLevel] {
		return errors.New("invalid log level: " + c.LogLevel)
	}

	if c.MaxLoopRows <= 0 {
		return errors.New("max loop rows must be positive")
	}

	return nil
}

// GetGlobalConfig returns a copy of the global configuration
func GetGlobalConfig() *Config {
	globalConfigMutex.RLock()
	defer globalConfigMutex.RUnlock()

	if globalConfig == nil {
		return DefaultConfig()
	}

	configCopy := *globalConfig
	return &configCopy
}

// SetGlobalConfig sets the global configuration
func SetGlobalConfig(config *Config) {
	globalConfigMutex.Lock()
	globalConfig = config
	globalConfigMutex.Unlock()

	UpdateLoggerFromConfig()
}

func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "true" || s == "1" || s == "yes" || s == "on"
}
