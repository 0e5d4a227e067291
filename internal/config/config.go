package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DefaultPath is where the CLI looks for a configuration file.
const DefaultPath = "~/.config/sitetime/config.yaml"

// Config holds the complete application configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Tracking  TrackingConfig  `mapstructure:"tracking"`
	Dashboard DashboardConfig `mapstructure:"dashboard"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig defines listen addresses for the host bridge and metrics
type ServerConfig struct {
	BindAddress    string   `mapstructure:"bind_address"`
	APIPort        int      `mapstructure:"api_port"`
	MetricsPort    int      `mapstructure:"metrics_port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// APIAddr returns host:port of the host bridge API.
func (s ServerConfig) APIAddr() string {
	return fmt.Sprintf("%s:%d", s.BindAddress, s.APIPort)
}

// MetricsAddr returns host:port of the metrics endpoint.
func (s ServerConfig) MetricsAddr() string {
	return fmt.Sprintf("%s:%d", s.BindAddress, s.MetricsPort)
}

// StorageConfig defines storage backend settings
type StorageConfig struct {
	Type  string      `mapstructure:"type"`
	Path  string      `mapstructure:"path"`
	Key   string      `mapstructure:"key"`
	Redis RedisConfig `mapstructure:"redis"`
}

// RedisConfig defines the redis backend connection
type RedisConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Password     string `mapstructure:"password"`
	DB           int    `mapstructure:"db"`
	PoolSize     int    `mapstructure:"pool_size"`
	MinIdleConns int    `mapstructure:"min_idle_conns"`
	DialTimeout  string `mapstructure:"dial_timeout"`
	ReadTimeout  string `mapstructure:"read_timeout"`
	WriteTimeout string `mapstructure:"write_timeout"`
	KeyPrefix    string `mapstructure:"key_prefix"`
}

// TrackingConfig defines how the tracker samples focus
type TrackingConfig struct {
	FlushInterval   string   `mapstructure:"flush_interval"`
	ExcludedSchemes []string `mapstructure:"excluded_schemes"`
	TabCacheSize    int      `mapstructure:"tab_cache_size"`
}

// FlushEvery returns the parsed flush interval.
func (t TrackingConfig) FlushEvery() time.Duration {
	d, err := time.ParseDuration(t.FlushInterval)
	if err != nil || d <= 0 {
		return time.Minute
	}
	return d
}

// DashboardConfig defines dashboard rendering defaults
type DashboardConfig struct {
	DefaultRange string `mapstructure:"default_range"`
	ChartLimit   int    `mapstructure:"chart_limit"`
	ServerURL    string `mapstructure:"server_url"`
}

// LoggingConfig defines logging behavior
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()

	SetDefaults(v)

	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("SITETIME")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if !isMissingFile(err) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, use defaults and environment variables
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// Default returns the configuration produced by defaults alone.
func Default() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	_ = v.Unmarshal(&cfg)
	return &cfg
}

// SetDefaults sets default configuration values
func SetDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.bind_address", "127.0.0.1")
	v.SetDefault("server.api_port", 8765)
	v.SetDefault("server.metrics_port", 9465)
	v.SetDefault("server.allowed_origins", []string{})

	// Storage defaults
	v.SetDefault("storage.type", "bolt")
	v.SetDefault("storage.path", "~/.local/share/sitetime/sitetime.bolt")
	v.SetDefault("storage.key", "domainData")
	v.SetDefault("storage.redis.host", "localhost")
	v.SetDefault("storage.redis.port", 6379)
	v.SetDefault("storage.redis.password", "")
	v.SetDefault("storage.redis.db", 0)
	v.SetDefault("storage.redis.pool_size", 10)
	v.SetDefault("storage.redis.min_idle_conns", 1)
	v.SetDefault("storage.redis.dial_timeout", "5s")
	v.SetDefault("storage.redis.read_timeout", "3s")
	v.SetDefault("storage.redis.write_timeout", "3s")
	v.SetDefault("storage.redis.key_prefix", "sitetime")

	// Tracking defaults
	v.SetDefault("tracking.flush_interval", "1m")
	v.SetDefault("tracking.excluded_schemes", []string{"chrome", "edge"})
	v.SetDefault("tracking.tab_cache_size", 512)

	// Dashboard defaults
	v.SetDefault("dashboard.default_range", "today")
	v.SetDefault("dashboard.chart_limit", 10)
	v.SetDefault("dashboard.server_url", "")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// validate validates the configuration
func validate(cfg *Config) error {
	if cfg.Server.APIPort <= 0 || cfg.Server.APIPort > 65535 {
		return fmt.Errorf("invalid API port: %d", cfg.Server.APIPort)
	}
	if cfg.Server.MetricsPort < 0 || cfg.Server.MetricsPort > 65535 {
		return fmt.Errorf("invalid metrics port: %d", cfg.Server.MetricsPort)
	}

	switch cfg.Storage.Type {
	case "", "bolt":
		cfg.Storage.Type = "bolt"
		if cfg.Storage.Path == "" {
			return fmt.Errorf("storage path is required for bolt storage")
		}
	case "redis":
		if cfg.Storage.Redis.Host == "" {
			return fmt.Errorf("storage.redis.host is required for redis storage")
		}
	default:
		return fmt.Errorf("unknown storage type %q (must be bolt or redis)", cfg.Storage.Type)
	}
	if cfg.Storage.Key == "" {
		return fmt.Errorf("storage key is required")
	}

	if d, err := time.ParseDuration(cfg.Tracking.FlushInterval); err != nil || d <= 0 {
		return fmt.Errorf("invalid tracking.flush_interval: %q", cfg.Tracking.FlushInterval)
	}
	if cfg.Tracking.TabCacheSize <= 0 {
		return fmt.Errorf("tracking.tab_cache_size must be positive")
	}
	for i, scheme := range cfg.Tracking.ExcludedSchemes {
		cfg.Tracking.ExcludedSchemes[i] = strings.TrimSuffix(strings.ToLower(scheme), ":")
	}

	switch cfg.Dashboard.DefaultRange {
	case "today", "week", "last-7-days", "all-time":
	default:
		return fmt.Errorf("invalid dashboard.default_range: %q", cfg.Dashboard.DefaultRange)
	}
	if cfg.Dashboard.ChartLimit <= 0 {
		return fmt.Errorf("dashboard.chart_limit must be positive")
	}

	switch cfg.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid logging.level: %q", cfg.Logging.Level)
	}

	return nil
}

func isMissingFile(err error) bool {
	var notFound viper.ConfigFileNotFoundError
	// SetConfigFile reports a missing explicit path as a plain fs error.
	return errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist)
}
