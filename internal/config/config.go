package config

import "time"

// Config is the root configuration for xbmcnotify.
type Config struct {
	Server     ServerConfig      `yaml:"server"`
	Database   DatabaseConfig    `yaml:"database"`
	Delivery   DeliveryConfig    `yaml:"delivery"`
	Bus        BusConfig         `yaml:"bus"`
	Telemetry  TelemetryConfig   `yaml:"telemetry"`
	RateLimit  RateLimitConfig   `yaml:"rate_limit"`
	Forwarding map[string]string `yaml:"forwarding"`
}

type ServerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	LogLevel string `yaml:"log_level"`
	LogFile  string `yaml:"log_file"`
	APIToken string `yaml:"api_token"`
}

type DatabaseConfig struct {
	Path          string `yaml:"path"`
	RetentionDays int    `yaml:"retention_days"`
}

type DeliveryConfig struct {
	RequestTimeout time.Duration `yaml:"request_timeout"`
	Workers        int           `yaml:"workers"`
	Title          string        `yaml:"title"`
	Image          string        `yaml:"image"`
}

type BusConfig struct {
	BufferSize int `yaml:"buffer_size"`
}

type TelemetryConfig struct {
	Enabled        bool          `yaml:"enabled"`
	OTLPEndpoint   string        `yaml:"otlp_endpoint"`
	OTLPInsecure   bool          `yaml:"otlp_insecure"`
	MetricInterval time.Duration `yaml:"metric_interval"`
	Environment    string        `yaml:"environment"`
}

type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute"`
	Burst             int `yaml:"burst"`
}

// Defaults returns a Config with sensible default values.
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Host:     "127.0.0.1",
			Port:     8430,
			LogLevel: "info",
		},
		Database: DatabaseConfig{
			Path:          "~/.config/xbmcnotify/xbmcnotify.db",
			RetentionDays: 30,
		},
		Delivery: DeliveryConfig{
			RequestTimeout: 5 * time.Second,
			Workers:        1,
			Title:          "Dog says:",
			Image:          "info",
		},
		Bus: BusConfig{
			BufferSize: 256,
		},
		Telemetry: TelemetryConfig{
			Enabled:        false,
			OTLPEndpoint:   "localhost:4318",
			MetricInterval: 30 * time.Second,
			Environment:    "development",
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: 120,
			Burst:             30,
		},
	}
}
