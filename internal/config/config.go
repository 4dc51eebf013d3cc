package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Settings store drivers.
const (
	SettingsDriverFile  = "file"
	SettingsDriverRedis = "redis"
)

// Config holds the quotawatch application configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Discovery DiscoveryConfig `yaml:"discovery"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Settings  SettingsConfig  `yaml:"settings"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// HTTPConfig holds status server settings.
type HTTPConfig struct {
	Enabled         bool     `yaml:"enabled"`
	Host            string   `yaml:"host"`
	Port            int      `yaml:"port"`
	APIKeys         []string `yaml:"api_keys"` // empty disables auth
	ReadTimeoutSec  int      `yaml:"read_timeout_sec"`
	WriteTimeoutSec int      `yaml:"write_timeout_sec"`
	ShutdownSec     int      `yaml:"shutdown_timeout_sec"`
}

// Addr returns host:port for the listener.
func (h HTTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", h.Host, h.Port)
}

// DiscoveryConfig holds process discovery settings.
type DiscoveryConfig struct {
	ProcessName       string `yaml:"process_name"` // overrides the per-platform executable name
	MaxAttempts       int    `yaml:"max_attempts"`
	RetryDelayMs      int    `yaml:"retry_delay_ms"`
	CommandTimeoutSec int    `yaml:"command_timeout_sec"`
	ProbeTimeoutMs    int    `yaml:"probe_timeout_ms"`
}

// TelemetryConfig holds language server RPC settings.
type TelemetryConfig struct {
	RequestTimeoutSec int    `yaml:"request_timeout_sec"`
	IDEName           string `yaml:"ide_name"`
	ExtensionName     string `yaml:"extension_name"`
	Locale            string `yaml:"locale"`
}

// SettingsConfig selects where user settings live.
type SettingsConfig struct {
	Driver string        `yaml:"driver"` // file, redis (default: file)
	Path   string        `yaml:"path"`
	Watch  bool          `yaml:"watch"`
	Redis  RedisSettings `yaml:"redis"`
}

// RedisSettings holds the shared settings store connection.
type RedisSettings struct {
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	Key              string   `yaml:"key"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
	PollIntervalSec  int      `yaml:"poll_interval_sec"`
}

// MetricsConfig toggles the prometheus endpoint.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	return LoadFile(findConfigPath(env))
}

// LoadFrom reads <dir>/<env>.yaml.
func LoadFrom(dir, env string) (Config, error) {
	return LoadFile(filepath.Join(dir, env+".yaml"))
}

// LoadFile reads configuration from an explicit path.
func LoadFile(configPath string) (Config, error) {
	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.Host == "" {
		c.HTTP.Host = "127.0.0.1"
	}
	if c.HTTP.Port == 0 {
		c.HTTP.Port = 9477
	}
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 30
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Discovery.MaxAttempts <= 0 {
		c.Discovery.MaxAttempts = 3
	}
	if c.Discovery.RetryDelayMs <= 0 {
		c.Discovery.RetryDelayMs = 1500
	}
	if c.Discovery.CommandTimeoutSec <= 0 {
		c.Discovery.CommandTimeoutSec = 8
	}
	if c.Discovery.ProbeTimeoutMs <= 0 {
		c.Discovery.ProbeTimeoutMs = 2000
	}
	if c.Telemetry.RequestTimeoutSec <= 0 {
		c.Telemetry.RequestTimeoutSec = 5
	}
	if c.Telemetry.IDEName == "" {
		c.Telemetry.IDEName = "antigravity"
	}
	if c.Telemetry.ExtensionName == "" {
		c.Telemetry.ExtensionName = "antigravity"
	}
	if c.Telemetry.Locale == "" {
		c.Telemetry.Locale = "en"
	}
	if c.Settings.Driver == "" {
		c.Settings.Driver = SettingsDriverFile
	}
	if c.Settings.Path == "" {
		c.Settings.Path = defaultSettingsPath()
	}
	if c.Settings.Redis.Key == "" {
		c.Settings.Redis.Key = "quotawatch:settings"
	}
	if c.Settings.Redis.ReadinessTimeout <= 0 {
		c.Settings.Redis.ReadinessTimeout = 10
	}
	if c.Settings.Redis.PollIntervalSec <= 0 {
		c.Settings.Redis.PollIntervalSec = 15
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Enabled && (c.HTTP.Port <= 0 || c.HTTP.Port > 65535) {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if c.Discovery.MaxAttempts > 20 {
		return fmt.Errorf("discovery.max_attempts must be at most 20, got %d", c.Discovery.MaxAttempts)
	}
	switch c.Settings.Driver {
	case SettingsDriverFile:
		// ok
	case SettingsDriverRedis:
		if len(c.Settings.Redis.Addrs) == 0 {
			return fmt.Errorf("settings.redis.addrs is required for the redis driver")
		}
	default:
		return fmt.Errorf("settings.driver must be %q or %q, got %q",
			SettingsDriverFile, SettingsDriverRedis, c.Settings.Driver)
	}
	return nil
}

func defaultSettingsPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "quotawatch-settings.yaml"
	}
	return filepath.Join(dir, "quotawatch", "settings.yaml")
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
