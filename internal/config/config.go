// Package config loads ketabi settings from defaults, an optional config file
// and KETABI_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"
)

const (
	// AppName is the application name.
	AppName = "ketabi"
	// ConfigFileName is the name of the config file (without extension).
	ConfigFileName = "config"
	// EnvPrefix prefixes environment overrides, e.g. KETABI_STORE_MAX_SIZE.
	EnvPrefix = "KETABI"

	// DefaultExtension is the extension of the application's document files.
	DefaultExtension = ".ketabi"
	// DefaultMaxSize bounds the on-disk size of a document file.
	DefaultMaxSize int64 = 10 << 20
	// DefaultGenerator is stamped into exported EPUB metadata.
	DefaultGenerator = "Ketabi"
)

var (
	// ErrInvalidConfig is wrapped by every validation failure.
	ErrInvalidConfig = errors.New("invalid config")
	// ErrConfigNotFound is returned when an explicit config file does not exist.
	ErrConfigNotFound = errors.New("config file not found")
)

// Config is the full ketabi configuration.
type Config struct {
	Store  StoreConfig  `mapstructure:"store" toml:"store"`
	Export ExportConfig `mapstructure:"export" toml:"export"`
	Log    LogConfig    `mapstructure:"log" toml:"log"`
}

// StoreConfig controls reading and writing of document files.
type StoreConfig struct {
	Extension        string `mapstructure:"extension" toml:"extension"`
	MaxSize          int64  `mapstructure:"max_size" toml:"max_size"`
	MaxDecodedSize   int64  `mapstructure:"max_decoded_size" toml:"max_decoded_size"`
	CompressionLevel int    `mapstructure:"compression_level" toml:"compression_level"`
}

// ExportConfig controls EPUB generation.
type ExportConfig struct {
	Generator      string `mapstructure:"generator" toml:"generator"`
	CoverMaxWidth  int    `mapstructure:"cover_max_width" toml:"cover_max_width"`
	CoverMaxHeight int    `mapstructure:"cover_max_height" toml:"cover_max_height"`
	CoverQuality   int    `mapstructure:"cover_quality" toml:"cover_quality"`
}

// LogConfig selects the log level and output format.
type LogConfig struct {
	Level  string `mapstructure:"level" toml:"level"`
	Format string `mapstructure:"format" toml:"format"`
}

// LoadOptions overrides where configuration is read from.
type LoadOptions struct {
	// ConfigFilePath is used exclusively when set.
	ConfigFilePath string
	// ConfigDirPath replaces the platform config directory.
	ConfigDirPath string
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *Config {
	return &Config{
		Store: StoreConfig{
			Extension:        DefaultExtension,
			MaxSize:          DefaultMaxSize,
			MaxDecodedSize:   8 * DefaultMaxSize,
			CompressionLevel: -1,
		},
		Export: ExportConfig{
			Generator:      DefaultGenerator,
			CoverMaxWidth:  1600,
			CoverMaxHeight: 2560,
			CoverQuality:   90,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Dir returns $XDG_CONFIG_HOME/ketabi, falling back to the user config dir.
func Dir() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, AppName), nil
	}
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get config directory: %w", err)
	}
	return filepath.Join(base, AppName), nil
}

// Load resolves the configuration and returns it together with the path of
// the config file that was read ("" when only defaults and env were used).
func Load(opts LoadOptions) (*Config, string, error) {
	v := viper.New()

	defaults := DefaultConfig()
	v.SetDefault("store.extension", defaults.Store.Extension)
	v.SetDefault("store.max_size", defaults.Store.MaxSize)
	v.SetDefault("store.max_decoded_size", defaults.Store.MaxDecodedSize)
	v.SetDefault("store.compression_level", defaults.Store.CompressionLevel)
	v.SetDefault("export.generator", defaults.Export.Generator)
	v.SetDefault("export.cover_max_width", defaults.Export.CoverMaxWidth)
	v.SetDefault("export.cover_max_height", defaults.Export.CoverMaxHeight)
	v.SetDefault("export.cover_quality", defaults.Export.CoverQuality)
	v.SetDefault("log.level", defaults.Log.Level)
	v.SetDefault("log.format", defaults.Log.Format)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	resolvedPath := ""
	if opts.ConfigFilePath != "" {
		if _, err := os.Stat(opts.ConfigFilePath); err != nil {
			return nil, "", fmt.Errorf("%w: %s", ErrConfigNotFound, opts.ConfigFilePath)
		}
		v.SetConfigFile(opts.ConfigFilePath)
		if err := v.ReadInConfig(); err != nil {
			return nil, "", fmt.Errorf("failed to read config %s: %w", opts.ConfigFilePath, err)
		}
		resolvedPath = opts.ConfigFilePath
	} else {
		dir := opts.ConfigDirPath
		if dir == "" {
			d, err := Dir()
			if err != nil {
				return nil, "", err
			}
			dir = d
		}
		v.SetConfigName(ConfigFileName)
		v.AddConfigPath(dir)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, "", fmt.Errorf("failed to read config: %w", err)
			}
		} else {
			resolvedPath = v.ConfigFileUsed()
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, "", fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", err
	}

	return &cfg, resolvedPath, nil
}

// Validate checks value ranges that the loaders cannot express.
func (c *Config) Validate() error {
	ext := c.Store.Extension
	if len(ext) < 2 || !strings.HasPrefix(ext, ".") || strings.ContainsAny(ext, `/\`) {
		return fmt.Errorf("%w: store.extension must look like \".ext\", got %q", ErrInvalidConfig, ext)
	}
	if c.Store.MaxSize <= 0 {
		return fmt.Errorf("%w: store.max_size must be positive", ErrInvalidConfig)
	}
	if c.Store.MaxDecodedSize < c.Store.MaxSize {
		return fmt.Errorf("%w: store.max_decoded_size must be at least store.max_size", ErrInvalidConfig)
	}
	if c.Store.CompressionLevel < -1 || c.Store.CompressionLevel > 9 {
		return fmt.Errorf("%w: store.compression_level must be between -1 and 9", ErrInvalidConfig)
	}
	if c.Export.CoverMaxWidth <= 0 || c.Export.CoverMaxHeight <= 0 {
		return fmt.Errorf("%w: export cover bounds must be positive", ErrInvalidConfig)
	}
	if c.Export.CoverQuality < 1 || c.Export.CoverQuality > 100 {
		return fmt.Errorf("%w: export.cover_quality must be between 1 and 100", ErrInvalidConfig)
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: log.level %q", ErrInvalidConfig, c.Log.Level)
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json", "pretty":
	default:
		return fmt.Errorf("%w: log.format %q", ErrInvalidConfig, c.Log.Format)
	}
	return nil
}

// TOML renders the configuration in config-file form.
func (c *Config) TOML() ([]byte, error) {
	data, err := toml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	return data, nil
}
