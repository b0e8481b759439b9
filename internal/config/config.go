// Package config handles TOML configuration loading and validation.
package config

import (
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"
	"strings"

	toml "github.com/pelletier/go-toml/v2"

	"localstack-relay/internal/relay"
)

// configSearchPaths lists paths checked in order when no explicit config is given.
var configSearchPaths = []string{
	"/etc/localstack-relay/config.toml",
	"configs/config.toml",
}

// ReservedPrefix is the path prefix of the gateway's own admin routes.
const ReservedPrefix = "/_relay"

// CLI holds command-line arguments parsed by Kong.
type CLI struct {
	Config       string `kong:"short='c',help='Path to TOML config file.',env='CONFIG_PATH'"`
	ProxyAddr    string `kong:"help='Intercepting proxy listen address (overrides config).',env='PROXY_ADDR'"`
	Host         string `kong:"help='Gateway listen host (overrides config).',env='HOST'"`
	Port         int    `kong:"short='p',help='Gateway listen port (overrides config).',env='PORT'"`
	EmulatorHost string `kong:"help='Emulator host (overrides config).',env='EMULATOR_HOST'"`
	EmulatorPort int    `kong:"help='Emulator port (overrides config).',env='EMULATOR_PORT'"`
	LogLevel     string `kong:"help='Log level: debug|info|warn|error (overrides config).',env='LOG_LEVEL'"`
}

// Config is the top-level application configuration.
type Config struct {
	Proxy    ProxyConfig    `toml:"proxy"`
	Gateway  GatewayConfig  `toml:"gateway"`
	Emulator EmulatorConfig `toml:"emulator"`
	Upstream UpstreamConfig `toml:"upstream"`
	Log      LogConfig      `toml:"log"`
	Metrics  MetricsConfig  `toml:"metrics"`

	filePath string // resolved config file path (unexported)
}

// ProxyConfig holds the intercepting (HTTPS MITM) proxy settings.
type ProxyConfig struct {
	// Enabled is a pointer so an omitted key keeps the proxy on.
	Enabled           *bool  `toml:"enabled"`
	Addr              string `toml:"addr"`
	CARootPath        string `toml:"ca_root_path"`
	SSLInsecure       bool   `toml:"ssl_insecure"`
	StreamLargeBodies int64  `toml:"stream_large_bodies"`
}

// GatewayConfig holds the plain-HTTP gateway and admin server settings.
type GatewayConfig struct {
	Host         string          `toml:"host"`
	Port         int             `toml:"port"` // 0 means "use default" (8000); TOML cannot distinguish 0 from unset
	BodyMaxBytes int64           `toml:"body_max_bytes"`
	RateLimit    RateLimitConfig `toml:"rate_limit"`
}

// RateLimitConfig controls per-IP request rate limiting.
type RateLimitConfig struct {
	Enabled           bool    `toml:"enabled"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
}

// EmulatorConfig is the local emulator all traffic is redirected to.
type EmulatorConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// UpstreamConfig holds connection settings for calls to the emulator.
type UpstreamConfig struct {
	TimeoutSeconds  int `toml:"timeout_seconds"`
	IdleConnections int `toml:"idle_connections"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
	// File, when set, receives a copy of all log output with size-based rotation.
	File       string `toml:"file"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days"`
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// Load reads the TOML config file and applies CLI overrides.
// When no explicit path is given (via --config or CONFIG_PATH), it searches
// /etc/localstack-relay/config.toml then configs/config.toml. Unlike most
// deployments the relay is usable with no file at all, so a failed search
// falls back to defaults.
func Load(cli *CLI) (*Config, error) {
	path := cli.Config
	if path == "" {
		path = findConfig()
	}

	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
		cfg.filePath = path
	}

	cfg.applyCLI(cli)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}

	cfg.setDefaults()
	return &cfg, nil
}

// applyCLI overrides config values with non-zero CLI flags.
func (c *Config) applyCLI(cli *CLI) {
	if cli.ProxyAddr != "" {
		c.Proxy.Addr = cli.ProxyAddr
	}
	if cli.Host != "" {
		c.Gateway.Host = cli.Host
	}
	if cli.Port != 0 {
		c.Gateway.Port = cli.Port
	}
	if cli.EmulatorHost != "" {
		c.Emulator.Host = cli.EmulatorHost
	}
	if cli.EmulatorPort != 0 {
		c.Emulator.Port = cli.EmulatorPort
	}
	if cli.LogLevel != "" {
		c.Log.Level = cli.LogLevel
	}
}

func (c *Config) validate() error {
	// Proxy address must be host:port; an empty host listens on all interfaces.
	if c.Proxy.Addr != "" {
		if _, port, err := net.SplitHostPort(c.Proxy.Addr); err != nil {
			return fmt.Errorf("proxy.addr must be host:port: %w", err)
		} else if n, err := strconv.Atoi(port); err != nil || n < 1 || n > 65535 {
			return fmt.Errorf("proxy.addr port must be 1–65535; got %q", port)
		}
	}
	if c.Proxy.StreamLargeBodies < 0 {
		return fmt.Errorf("proxy.stream_large_bodies must be non-negative; got %d", c.Proxy.StreamLargeBodies)
	}

	// Emulator: a bare host, no scheme or port.
	if strings.Contains(c.Emulator.Host, "://") || strings.Contains(c.Emulator.Host, "/") {
		return fmt.Errorf("emulator.host must be a bare host name or address; got %q", c.Emulator.Host)
	}
	if c.Emulator.Port < 0 || c.Emulator.Port > 65535 {
		return fmt.Errorf("emulator.port must be 0–65535; got %d", c.Emulator.Port)
	}

	// Numeric bounds.
	if c.Gateway.Port < 0 || c.Gateway.Port > 65535 {
		return fmt.Errorf("gateway.port must be 0–65535; got %d", c.Gateway.Port)
	}
	if c.Gateway.BodyMaxBytes < 0 {
		return fmt.Errorf("gateway.body_max_bytes must be non-negative; got %d", c.Gateway.BodyMaxBytes)
	}
	if c.Upstream.TimeoutSeconds < 0 {
		return fmt.Errorf("upstream.timeout_seconds must be non-negative; got %d", c.Upstream.TimeoutSeconds)
	}
	if c.Upstream.IdleConnections < 0 {
		return fmt.Errorf("upstream.idle_connections must be non-negative; got %d", c.Upstream.IdleConnections)
	}
	if c.Gateway.RateLimit.Enabled && c.Gateway.RateLimit.RequestsPerSecond <= 0 {
		return fmt.Errorf("gateway.rate_limit.requests_per_second must be > 0 when rate limiting is enabled; got %v", c.Gateway.RateLimit.RequestsPerSecond)
	}

	// Log fields.
	level := strings.ToLower(c.Log.Level)
	switch level {
	case "debug", "info", "warn", "error", "":
		// valid
	default:
		return fmt.Errorf("log.level must be one of: debug, info, warn, error; got %q", c.Log.Level)
	}
	format := strings.ToLower(c.Log.Format)
	switch format {
	case "json", "text", "":
		// valid
	default:
		return fmt.Errorf("log.format must be one of: json, text; got %q", c.Log.Format)
	}
	if c.Log.MaxSizeMB < 0 || c.Log.MaxBackups < 0 || c.Log.MaxAgeDays < 0 {
		return fmt.Errorf("log rotation settings must be non-negative")
	}

	// Metrics path validation (only when metrics are enabled).
	if c.Metrics.Enabled && c.Metrics.Path != "" {
		p := c.Metrics.Path
		if p[0] != '/' {
			return fmt.Errorf("metrics.path must start with '/'; got %q", p)
		}
		if !strings.HasPrefix(p, ReservedPrefix+"/") {
			return fmt.Errorf("metrics.path must live under %s/ so it cannot shadow proxied paths; got %q", ReservedPrefix, p)
		}
		for _, reserved := range []string{HealthzPath, StatusPath} {
			if p == reserved || strings.HasPrefix(p, reserved+"/") {
				return fmt.Errorf("metrics.path %q conflicts with reserved route %q", p, reserved)
			}
		}
	}

	return nil
}

// Admin routes served by the gateway.
const (
	HealthzPath = ReservedPrefix + "/healthz"
	StatusPath  = ReservedPrefix + "/status"
)

// setDefaults fills zero-valued fields with sensible defaults.
// For integer fields (Port, BodyMaxBytes, etc.), zero means "unset" because TOML
// cannot distinguish between an explicit 0 and an omitted key.
func (c *Config) setDefaults() {
	if c.Proxy.Enabled == nil {
		enabled := true
		c.Proxy.Enabled = &enabled
	}
	if c.Proxy.Addr == "" {
		c.Proxy.Addr = ":8080"
	}
	if c.Proxy.StreamLargeBodies == 0 {
		c.Proxy.StreamLargeBodies = 5 * 1024 * 1024 // 5 MB
	}
	if c.Gateway.Host == "" {
		c.Gateway.Host = "127.0.0.1"
	}
	if c.Gateway.Port == 0 {
		c.Gateway.Port = 8000
	}
	if c.Gateway.BodyMaxBytes == 0 {
		c.Gateway.BodyMaxBytes = 10 * 1024 * 1024 // 10 MB
	}
	if c.Emulator.Host == "" {
		c.Emulator.Host = relay.DefaultEmulatorHost
	}
	if c.Emulator.Port == 0 {
		c.Emulator.Port = relay.DefaultEmulatorPort
	}
	if c.Upstream.TimeoutSeconds == 0 {
		c.Upstream.TimeoutSeconds = 120
	}
	if c.Upstream.IdleConnections == 0 {
		c.Upstream.IdleConnections = 100
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.Log.MaxSizeMB == 0 {
		c.Log.MaxSizeMB = 5
	}
	if c.Log.MaxBackups == 0 {
		c.Log.MaxBackups = 5
	}
	if c.Log.MaxAgeDays == 0 {
		c.Log.MaxAgeDays = 7
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = ReservedPrefix + "/metrics"
	}
}

// findConfig returns the first config path that exists, or empty string.
func findConfig() string {
	return findConfigInPaths(configSearchPaths)
}

// findConfigInPaths returns the first path that exists on disk, or empty string.
func findConfigInPaths(paths []string) string {
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// Addr returns the gateway listen address as host:port.
func (c *GatewayConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// ProxyEnabled reports whether the intercepting proxy should be started.
func (c *Config) ProxyEnabled() bool {
	return c.Proxy.Enabled == nil || *c.Proxy.Enabled
}

// Target returns the emulator endpoint as a relay target.
func (c *EmulatorConfig) Target() relay.Target {
	return relay.Target{Host: c.Host, Port: c.Port}
}

// FilePath returns the config file the configuration was read from, if any.
func (c *Config) FilePath() string {
	return c.filePath
}

// WarnPermissions logs a warning if the config file is readable by group or others.
func (c *Config) WarnPermissions(logger *slog.Logger) {
	if c.filePath == "" {
		return
	}
	info, err := os.Stat(c.filePath)
	if err != nil {
		return
	}
	if perm := info.Mode().Perm(); perm&0o077 != 0 {
		logger.Warn("config file is readable by group/others; consider chmod 600",
			"path", c.filePath,
			"mode", fmt.Sprintf("%04o", perm),
		)
	}
}
