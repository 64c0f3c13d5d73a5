// Package config loads seitai configuration from viper.
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mitchellh/go-homedir"
	gap "github.com/muesli/go-app-paths"
	"github.com/spf13/viper"

	"github.com/dgnsrekt/seitai/internal/cache"
)

// AppName names the config file, directories and environment prefix.
const AppName = "seitai"

// Config is the root configuration structure.
type Config struct {
	Engine  EngineConfig  `mapstructure:"engine"`
	Voice   VoiceConfig   `mapstructure:"voice"`
	Cache   CacheConfig   `mapstructure:"cache"`
	NATS    NATSConfig    `mapstructure:"nats"`
	Message MessageConfig `mapstructure:"message"`
}

// EngineConfig holds the VOICEVOX engine connection.
type EngineConfig struct {
	URL               string        `mapstructure:"url"`
	Timeout           time.Duration `mapstructure:"timeout"`
	RequestsPerMinute int           `mapstructure:"requests_per_minute"`
}

// VoiceConfig holds the default voice.
type VoiceConfig struct {
	Speaker string  `mapstructure:"speaker"`
	Speed   float64 `mapstructure:"speed"`
}

// CacheConfig holds audio cache settings.
type CacheConfig struct {
	// Coalesce makes concurrent misses for the same audio share a synthesis.
	Coalesce bool `mapstructure:"coalesce"`

	// MaxSize bounds the cache, e.g. "64MB". Empty means unbounded.
	MaxSize string `mapstructure:"max_size"`

	CompressionLevel int  `mapstructure:"compression_level"`
	Warmup           bool `mapstructure:"warmup"`

	// Seed lists WAV files stored for cache targets at startup.
	Seed []SeedEntry `mapstructure:"seed"`
}

// SeedEntry pairs a cache target with a WAV file.
type SeedEntry struct {
	Text string `mapstructure:"text"`
	File string `mapstructure:"file"`
}

// NATSConfig holds the responder connection.
type NATSConfig struct {
	URL         string        `mapstructure:"url"`
	Subject     string        `mapstructure:"subject"`
	Queue       string        `mapstructure:"queue"`
	Concurrency int           `mapstructure:"concurrency"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// MessageConfig holds message segmentation settings.
type MessageConfig struct {
	MaxLength int `mapstructure:"max_length"`
	QueueSize int `mapstructure:"queue_size"`

	// Names resolves mention ids to spoken names.
	Names map[string]string `mapstructure:"names"`
}

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("engine.url", "http://127.0.0.1:50021")
	v.SetDefault("engine.timeout", 30*time.Second)
	v.SetDefault("engine.requests_per_minute", 0)

	v.SetDefault("voice.speaker", "1")
	v.SetDefault("voice.speed", 1.0)

	v.SetDefault("cache.coalesce", false)
	v.SetDefault("cache.max_size", "")
	v.SetDefault("cache.compression_level", 3)
	v.SetDefault("cache.warmup", false)

	v.SetDefault("nats.url", "nats://127.0.0.1:4222")
	v.SetDefault("nats.subject", "seitai.speak")
	v.SetDefault("nats.queue", "seitai")
	v.SetDefault("nats.concurrency", 8)
	v.SetDefault("nats.timeout", 30*time.Second)

	v.SetDefault("message.max_length", 200)
	v.SetDefault("message.queue_size", 16)
}

// Load unmarshals and validates the configuration held by v. Seed paths are
// expanded.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	for i, entry := range cfg.Cache.Seed {
		expanded, err := homedir.Expand(entry.File)
		if err != nil {
			return nil, fmt.Errorf("cache.seed[%d]: %w", i, err)
		}
		cfg.Cache.Seed[i].File = expanded
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks configuration values.
func (c *Config) Validate() error {
	var errs []error

	if c.Engine.URL == "" {
		errs = append(errs, errors.New("engine.url cannot be empty"))
	}
	if c.Engine.Timeout < 0 {
		errs = append(errs, fmt.Errorf("engine.timeout must not be negative, got %s", c.Engine.Timeout))
	}
	if c.Engine.RequestsPerMinute < 0 {
		errs = append(errs, fmt.Errorf("engine.requests_per_minute must not be negative, got %d", c.Engine.RequestsPerMinute))
	}

	if c.Voice.Speaker == "" {
		errs = append(errs, errors.New("voice.speaker cannot be empty"))
	}
	if math.IsNaN(c.Voice.Speed) || c.Voice.Speed < 0.5 || c.Voice.Speed > 2.0 {
		errs = append(errs, fmt.Errorf("voice.speed must be between 0.5 and 2.0, got %.2f", c.Voice.Speed))
	}

	if _, err := c.Cache.MaxBytes(); err != nil {
		errs = append(errs, err)
	}
	if c.Cache.CompressionLevel < 1 || c.Cache.CompressionLevel > 22 {
		errs = append(errs, fmt.Errorf("cache.compression_level must be between 1 and 22, got %d", c.Cache.CompressionLevel))
	}
	for i, entry := range c.Cache.Seed {
		if !cache.IsCacheable(entry.Text) {
			errs = append(errs, fmt.Errorf("cache.seed[%d]: %q is not a cache target", i, entry.Text))
		}
		if entry.File == "" {
			errs = append(errs, fmt.Errorf("cache.seed[%d]: file cannot be empty", i))
		}
	}

	if c.Message.MaxLength < 0 {
		errs = append(errs, fmt.Errorf("message.max_length must not be negative, got %d", c.Message.MaxLength))
	}

	return errors.Join(errs...)
}

// MaxBytes parses MaxSize. Zero means unbounded.
func (c CacheConfig) MaxBytes() (int64, error) {
	if c.MaxSize == "" {
		return 0, nil
	}
	n, err := humanize.ParseBytes(c.MaxSize)
	if err != nil {
		return 0, fmt.Errorf("cache.max_size: %w", err)
	}
	if n > math.MaxInt64 {
		return 0, fmt.Errorf("cache.max_size: %s is too large", c.MaxSize)
	}
	return int64(n), nil
}

// Speed32 returns the default speed as the synthesis type.
func (v VoiceConfig) Speed32() float32 {
	return float32(v.Speed)
}

// Dirs returns the directories searched for the config file, most specific
// first: $SEITAI_CONFIG_HOME, $XDG_CONFIG_HOME/seitai, then the platform
// user config directories.
func Dirs() ([]string, error) {
	scope := gap.NewScope(gap.User, AppName)
	dirs, err := scope.ConfigDirs()
	if err != nil {
		return nil, fmt.Errorf("could not find configuration directory: %w", err)
	}

	if c := os.Getenv("XDG_CONFIG_HOME"); c != "" {
		dirs = append([]string{filepath.Join(c, AppName)}, dirs...)
	}

	if c := os.Getenv("SEITAI_CONFIG_HOME"); c != "" {
		dirs = append([]string{c}, dirs...)
	}

	return dirs, nil
}

// LogPath returns the default log file location in the user cache directory.
func LogPath() (string, error) {
	scope := gap.NewScope(gap.User, AppName)
	return scope.LogPath(AppName + ".log")
}
