// Package config loads the plugin daemon's TOML configuration with a
// default overlay: omitted keys keep their defaults, present keys win.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the daemon's resolved runtime configuration.
type Config struct {
	// PluginName identifies this daemon in the registry and names its
	// unix socket under SocketDir.
	PluginName string

	// SocketDir holds plugin sockets and registry manifests.
	SocketDir string

	// IdleTimeout drops a connection when no request arrives for this
	// long. Zero disables the bound.
	IdleTimeout time.Duration

	// RateLimit caps requests per second per connection; zero disables
	// limiting. RateBurst is the momentary allowance above the rate.
	RateLimit float64
	RateBurst int

	// EtcdEndpoints switches registration from the socket directory to
	// etcd when non-empty.
	EtcdEndpoints []string

	// RegistryTTL bounds how long an etcd announcement outlives a
	// crashed daemon, in seconds.
	RegistryTTL int64

	// LogLevel is a zerolog level name: trace, debug, info, warn, error.
	LogLevel string
}

type fileConfig struct {
	PluginName    string   `toml:"plugin_name"`
	SocketDir     string   `toml:"socket_dir"`
	IdleTimeoutMS int64    `toml:"idle_timeout_ms"`
	RateLimit     float64  `toml:"rate_limit"`
	RateBurst     int      `toml:"rate_burst"`
	EtcdEndpoints []string `toml:"etcd_endpoints"`
	RegistryTTL   int64    `toml:"registry_ttl_seconds"`
	LogLevel      string   `toml:"log_level"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		PluginName:   "sim",
		SocketDir:    "/run/stormgmt",
		IdleTimeout:  0,
		RateLimit:    0,
		RateBurst:    1,
		RegistryTTL:  10,
		LogLevel:     "info",
	}
}

// Load reads path over the defaults. Only keys present in the file
// override.
func Load(path string) (Config, error) {
	cfg := Default()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}

	if meta.IsDefined("plugin_name") {
		cfg.PluginName = strings.TrimSpace(raw.PluginName)
	}
	if meta.IsDefined("socket_dir") {
		cfg.SocketDir = strings.TrimSpace(raw.SocketDir)
	}
	if meta.IsDefined("idle_timeout_ms") {
		cfg.IdleTimeout = time.Duration(raw.IdleTimeoutMS) * time.Millisecond
	}
	if meta.IsDefined("rate_limit") {
		cfg.RateLimit = raw.RateLimit
	}
	if meta.IsDefined("rate_burst") {
		cfg.RateBurst = raw.RateBurst
	}
	if meta.IsDefined("etcd_endpoints") {
		cfg.EtcdEndpoints = raw.EtcdEndpoints
	}
	if meta.IsDefined("registry_ttl_seconds") {
		cfg.RegistryTTL = raw.RegistryTTL
	}
	if meta.IsDefined("log_level") {
		cfg.LogLevel = strings.TrimSpace(raw.LogLevel)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects configurations the daemon cannot run with.
func (c Config) Validate() error {
	if c.PluginName == "" {
		return fmt.Errorf("config: plugin_name must not be empty")
	}
	if strings.ContainsAny(c.PluginName, "/ ") {
		return fmt.Errorf("config: plugin_name %q must not contain slashes or spaces", c.PluginName)
	}
	if c.SocketDir == "" {
		return fmt.Errorf("config: socket_dir must not be empty")
	}
	if c.IdleTimeout < 0 {
		return fmt.Errorf("config: idle_timeout_ms must not be negative")
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("config: rate_limit must not be negative")
	}
	if c.RateLimit > 0 && c.RateBurst < 1 {
		return fmt.Errorf("config: rate_burst must be at least 1 when rate_limit is set")
	}
	if c.RegistryTTL < 1 {
		return fmt.Errorf("config: registry_ttl_seconds must be at least 1")
	}
	switch c.LogLevel {
	case "trace", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: unknown log_level %q", c.LogLevel)
	}
	return nil
}

// SocketPath is where this daemon listens.
func (c Config) SocketPath() string {
	return c.SocketDir + "/" + c.PluginName + ".sock"
}
