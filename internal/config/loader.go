package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// searchPaths returns the ordered list of config file locations to try.
func searchPaths() []string {
	paths := []string{
		"/etc/xbmcnotify/xbmcnotify.yaml",
	}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "xbmcnotify", "xbmcnotify.yaml"))
	}

	paths = append(paths, "xbmcnotify.yaml")

	if envPath := os.Getenv("XBMCNOTIFY_CONFIG"); envPath != "" {
		paths = append(paths, envPath)
	}

	return paths
}

// Load reads configuration from YAML files and environment variables.
// Files are loaded in order (each overrides the previous):
// /etc/xbmcnotify/xbmcnotify.yaml < ~/.config/xbmcnotify/xbmcnotify.yaml < ./xbmcnotify.yaml < $XBMCNOTIFY_CONFIG
func Load() (*Config, error) {
	cfg := Defaults()

	for _, path := range searchPaths() {
		if err := loadFile(cfg, path); err != nil {
			return nil, fmt.Errorf("loading config %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// LoadFromFile reads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	cfg := Defaults()

	if err := loadFile(cfg, path); err != nil {
		return nil, fmt.Errorf("loading config %s: %w", path, err)
	}

	applyEnvOverrides(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables have higher priority than YAML config values.
func applyEnvOverrides(cfg *Config) {
	if token := os.Getenv("XBMCNOTIFY_API_TOKEN"); token != "" {
		cfg.Server.APIToken = token
	}
	if servers := os.Getenv("XBMCNOTIFY_SERVERS"); servers != "" {
		if cfg.Forwarding == nil {
			cfg.Forwarding = make(map[string]string)
		}
		cfg.Forwarding[KeyServers] = servers
	}
	if topics := os.Getenv("XBMCNOTIFY_TOPICS"); topics != "" {
		if cfg.Forwarding == nil {
			cfg.Forwarding = make(map[string]string)
		}
		cfg.Forwarding[KeyTopics] = topics
	}
}

func loadFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from trusted config search paths
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading file: %w", err)
	}

	slog.Debug("loading config file", "path", path)

	expanded := os.ExpandEnv(string(data))

	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return fmt.Errorf("parsing YAML: %w", err)
	}

	return nil
}

// ExpandHome replaces a leading ~ with the user's home directory.
func ExpandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}

func validate(cfg *Config) error {
	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", cfg.Server.Port)
	}

	if cfg.Delivery.Workers < 1 {
		return fmt.Errorf("delivery.workers must be at least 1")
	}

	if cfg.Delivery.RequestTimeout <= 0 {
		return fmt.Errorf("delivery.request_timeout must be positive")
	}

	// forwarding may be pushed later through the API; only check it when present
	if len(cfg.Forwarding) > 0 {
		if _, err := ParseForwarding(cfg.Forwarding); err != nil {
			return fmt.Errorf("forwarding: %w", err)
		}
	}

	cfg.Database.Path = ExpandHome(cfg.Database.Path)

	return nil
}
