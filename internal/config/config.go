// Package config loads plugbot configuration from defaults, an optional YAML
// file, .env files and PLUGBOT_ environment variables, in increasing priority.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"plugbot/internal/logger"
	"plugbot/internal/plugins"
)

// EnvPrefix prefixes every environment variable read by plugbot.
const EnvPrefix = "PLUGBOT"

// Store backends.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendSQLite = "sqlite"
)

// Config is the complete runtime configuration.
type Config struct {
	Token         string         `mapstructure:"token" yaml:"token"`
	APIEndpoint   string         `mapstructure:"api_endpoint" yaml:"api_endpoint"`
	PollTimeout   int            `mapstructure:"poll_timeout" yaml:"poll_timeout"`
	Debug         bool           `mapstructure:"debug" yaml:"debug"`
	MaxMessageAge time.Duration  `mapstructure:"max_message_age" yaml:"max_message_age"`
	Concurrency   int            `mapstructure:"concurrency" yaml:"concurrency"`
	Store         StoreConfig    `mapstructure:"store" yaml:"store"`
	Plugins       []plugins.Spec `mapstructure:"plugins" yaml:"plugins"`
	Log           LogConfig      `mapstructure:"log" yaml:"log"`
}

// StoreConfig selects and configures the key-value backend.
type StoreConfig struct {
	Backend string       `mapstructure:"backend" yaml:"backend"`
	Redis   RedisConfig  `mapstructure:"redis" yaml:"redis"`
	SQLite  SQLiteConfig `mapstructure:"sqlite" yaml:"sqlite"`
}

// RedisConfig configures the redis backend.
type RedisConfig struct {
	Addr     string `mapstructure:"addr" yaml:"addr"`
	Password string `mapstructure:"password" yaml:"password"`
	DB       int    `mapstructure:"db" yaml:"db"`
}

// SQLiteConfig configures the sqlite backend.
type SQLiteConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
	File  string `mapstructure:"file" yaml:"file"`
}

// DefaultPlugins is the module list used when the configuration names none.
func DefaultPlugins() []plugins.Spec {
	return []plugins.Spec{
		{Name: "plugins"},
		{Name: "help", Essential: true},
		{Name: "id"},
		{Name: "memes"},
		{Name: "quote"},
	}
}

// NewViper returns a viper instance with plugbot defaults and environment
// binding. Callers may bind command-line flags to it before Load.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetDefault("token", "")
	v.SetDefault("api_endpoint", "")
	v.SetDefault("poll_timeout", 60)
	v.SetDefault("debug", false)
	v.SetDefault("max_message_age", "1m")
	v.SetDefault("concurrency", 64)
	v.SetDefault("store.backend", BackendMemory)
	v.SetDefault("store.redis.addr", "localhost:6379")
	v.SetDefault("store.redis.password", "")
	v.SetDefault("store.redis.db", 0)
	v.SetDefault("store.sqlite.path", "plugbot.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Options controls where configuration files are looked up.
type Options struct {
	// ConfigFile is an explicit YAML file. When empty, config.yaml is searched
	// in ConfigDir and WorkDir.
	ConfigFile string
	// ConfigDir defaults to <user config dir>/plugbot.
	ConfigDir string
	// WorkDir defaults to the current working directory.
	WorkDir string
}

// Load reads configuration into a Config.
func Load(v *viper.Viper, opts Options) (*Config, error) {
	if opts.ConfigDir == "" {
		if dir, err := os.UserConfigDir(); err == nil {
			opts.ConfigDir = filepath.Join(dir, "plugbot")
		}
	}
	if opts.WorkDir == "" {
		if dir, err := os.Getwd(); err == nil {
			opts.WorkDir = dir
		}
	}

	// .env files never override variables already in the environment, so the
	// config directory file is loaded after the local one.
	for _, dir := range []string{opts.WorkDir, opts.ConfigDir} {
		if err := loadDotEnv(dir); err != nil {
			return nil, err
		}
	}

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		for _, dir := range []string{opts.WorkDir, opts.ConfigDir} {
			if dir != "" {
				v.AddConfigPath(dir)
			}
		}
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if opts.ConfigFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		logger.Debug("No config file found, using defaults and environment")
	} else {
		logger.Debug("Loaded config file", "path", v.ConfigFileUsed())
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if len(cfg.Plugins) == 0 {
		cfg.Plugins = DefaultPlugins()
	}
	return &cfg, nil
}

func loadDotEnv(dir string) error {
	if dir == "" {
		return nil
	}
	path := filepath.Join(dir, ".env")
	if _, err := os.Stat(path); err != nil {
		// Missing .env file is not an error
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// Validate checks the settings needed to run the bot.
func (c *Config) Validate() error {
	if c.Token == "" {
		return fmt.Errorf("no bot token configured; set %s_TOKEN or token in config.yaml", EnvPrefix)
	}
	switch c.Store.Backend {
	case BackendMemory, BackendRedis, BackendSQLite:
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}
	if c.Concurrency < 0 {
		return errors.New("concurrency cannot be negative")
	}
	for _, p := range c.Plugins {
		if strings.TrimSpace(p.Name) == "" {
			return errors.New("plugin entry without a name")
		}
	}
	return nil
}
