package docxcompose

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of every environment variable read by
// ConfigFromEnvironment, e.g. DOCXCOMPOSE_LOG_LEVEL.
const EnvPrefix = "DOCXCOMPOSE"

// Config contains the options shared by every composer an Engine creates
type Config struct {
	// LogLevel controls the verbosity of logging (debug, info, warn, error, off)
	LogLevel string
	// SkipCoverPage leaves out the template's cover page, which is otherwise
	// inserted at the start of the body on save.
	SkipCoverPage bool
	// ScratchDir is the parent of per-session scratch directories. Empty means os.TempDir.
	ScratchDir string
	// ImageDPI is the resolution used to convert image pixels to physical size.
	ImageDPI int
	// CacheMaxSize is the maximum number of template files kept in memory. 0 disables caching.
	CacheMaxSize int
	// CacheTTL is the time-to-live for cached templates. 0 means no expiration.
	CacheTTL time.Duration
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		LogLevel:     "info",
		ImageDPI:     96,
		CacheMaxSize: 16,
		CacheTTL:     0,
	}
}

// SetDefaults registers the configuration defaults on v under the keys read
// by ConfigFromViper.
func SetDefaults(v *viper.Viper) {
	d := DefaultConfig()
	v.SetDefault("log.level", d.LogLevel)
	v.SetDefault("cover_page", !d.SkipCoverPage)
	v.SetDefault("scratch_dir", d.ScratchDir)
	v.SetDefault("image_dpi", d.ImageDPI)
	v.SetDefault("cache.max_size", d.CacheMaxSize)
	v.SetDefault("cache.ttl", d.CacheTTL)
}

// ConfigFromViper reads a configuration from an already populated viper
// instance (config file, environment, bound flags).
func ConfigFromViper(v *viper.Viper) *Config {
	return &Config{
		LogLevel:      v.GetString("log.level"),
		SkipCoverPage: !v.GetBool("cover_page"),
		ScratchDir:    v.GetString("scratch_dir"),
		ImageDPI:      v.GetInt("image_dpi"),
		CacheMaxSize:  v.GetInt("cache.max_size"),
		CacheTTL:      v.GetDuration("cache.ttl"),
	}
}

// NewEnvViper returns a viper instance with defaults set and environment
// lookups bound to EnvPrefix, so "log.level" reads DOCXCOMPOSE_LOG_LEVEL.
func NewEnvViper() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// ConfigFromEnvironment creates a configuration from DOCXCOMPOSE_*
// environment variables, falling back to the defaults.
func ConfigFromEnvironment() *Config {
	return ConfigFromViper(NewEnvViper())
}

// NewConfigWithDefaults creates a new configuration with defaults applied to unset fields
func NewConfigWithDefaults(overrides *Config) *Config {
	defaults := DefaultConfig()

	if overrides == nil {
		return defaults
	}

	config := *overrides

	if config.LogLevel == "" {
		config.LogLevel = defaults.LogLevel
	}

	if config.ImageDPI == 0 {
		config.ImageDPI = defaults.ImageDPI
	}

	return &config
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.CacheMaxSize < 0 {
		return errors.New("cache max size cannot be negative")
	}

	if c.CacheTTL < 0 {
		return errors.New("cache TTL cannot be negative")
	}

	if _, _, err := ParseLogLevel(c.LogLevel); err != nil {
		return err
	}

	if c.ImageDPI <= 0 {
		return errors.New("image DPI must be positive")
	}

	return nil
}
