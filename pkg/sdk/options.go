package quotawatch

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Option configures the Monitor.
type Option interface {
	apply(*monitorConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*monitorConfig)

func (f optionFunc) apply(c *monitorConfig) { f(c) }

type monitorConfig struct {
	settings *Settings

	settingsPath string
	hotReload    bool

	redisAddrs    []string
	redisPassword string
	redisKey      string

	processName    string
	maxAttempts    int
	requestTimeout time.Duration
	probeTimeout   time.Duration
	retryDelay     time.Duration
	commandTimeout time.Duration

	logger     *slog.Logger
	metricsReg prometheus.Registerer
}

func defaultMonitorConfig() *monitorConfig {
	return &monitorConfig{
		redisKey:       defaultRedisKey,
		requestTimeout: 5 * time.Second,
		probeTimeout:   2 * time.Second,
		retryDelay:     1500 * time.Millisecond,
		commandTimeout: 8 * time.Second,
	}
}

// WithSettings sets the initial settings. Without a settings file or Redis
// key they are kept in memory only.
func WithSettings(s Settings) Option {
	return optionFunc(func(c *monitorConfig) {
		c.settings = &s
	})
}

// WithSettingsFile stores settings in a YAML file. A missing file means
// default settings; the file is created on the first change.
func WithSettingsFile(path string) Option {
	return optionFunc(func(c *monitorConfig) {
		c.settingsPath = path
		c.redisAddrs = nil
	})
}

// WithHotReload re-applies the settings whenever the store changes outside
// the monitor.
func WithHotReload() Option {
	return optionFunc(func(c *monitorConfig) {
		c.hotReload = true
	})
}

// WithRedisSettings stores settings as a YAML document under key in Redis.
// An empty key uses "quotawatch:settings".
func WithRedisSettings(addr, password, key string) Option {
	return optionFunc(func(c *monitorConfig) {
		c.redisAddrs = []string{addr}
		c.redisPassword = password
		if key != "" {
			c.redisKey = key
		}
		c.settingsPath = ""
	})
}

// WithProcessName overrides the language server process name on every
// platform.
func WithProcessName(name string) Option {
	return optionFunc(func(c *monitorConfig) {
		c.processName = name
	})
}

// WithMaxAttempts bounds process searches per discovery.
// Default: 3.
func WithMaxAttempts(n int) Option {
	return optionFunc(func(c *monitorConfig) {
		c.maxAttempts = n
	})
}

// WithRequestTimeout sets the timeout of a user status request.
// Default: 5s.
func WithRequestTimeout(d time.Duration) Option {
	return optionFunc(func(c *monitorConfig) {
		if d > 0 {
			c.requestTimeout = d
		}
	})
}

// WithProbeTimeout sets the timeout of each candidate port check.
// Default: 2s.
func WithProbeTimeout(d time.Duration) Option {
	return optionFunc(func(c *monitorConfig) {
		if d > 0 {
			c.probeTimeout = d
		}
	})
}

// WithLogger enables structured logging for SDK operations.
// Pass nil to disable (default). Uses standard library slog.
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(c *monitorConfig) {
		c.logger = l
	})
}

// WithPrometheus registers SDK metrics (operation counts and durations)
// on the given registerer. Pass nil to disable (default).
func WithPrometheus(reg prometheus.Registerer) Option {
	return optionFunc(func(c *monitorConfig) {
		c.metricsReg = reg
	})
}
