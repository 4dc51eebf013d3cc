package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/kailas-cloud/quotawatch/internal/config"
	dbRedis "github.com/kailas-cloud/quotawatch/internal/db/redis"
	"github.com/kailas-cloud/quotawatch/internal/domain"
	"github.com/kailas-cloud/quotawatch/internal/domain/quota"
	logpkg "github.com/kailas-cloud/quotawatch/internal/logger"
	"github.com/kailas-cloud/quotawatch/internal/metrics"
	"github.com/kailas-cloud/quotawatch/internal/platform"
	settingsrepo "github.com/kailas-cloud/quotawatch/internal/repository/settings"
	chiTransport "github.com/kailas-cloud/quotawatch/internal/transport/chi"
	"github.com/kailas-cloud/quotawatch/internal/transport/dto"
	"github.com/kailas-cloud/quotawatch/internal/transport/lsrpc"
	"github.com/kailas-cloud/quotawatch/internal/transport/ws"
	healthuc "github.com/kailas-cloud/quotawatch/internal/usecase/health"
	locateuc "github.com/kailas-cloud/quotawatch/internal/usecase/locate"
	probeuc "github.com/kailas-cloud/quotawatch/internal/usecase/probe"
	telemetryuc "github.com/kailas-cloud/quotawatch/internal/usecase/telemetry"
	"github.com/kailas-cloud/quotawatch/internal/version"
)

type options struct {
	env       string
	configDir string
	logLevel  string
	once      bool
}

// settingsStore is what the composition root needs from either settings backend.
type settingsStore interface {
	Load(ctx context.Context) (quota.Settings, error)
	Update(ctx context.Context, fn func(*quota.Settings)) (quota.Settings, error)
	Ping(ctx context.Context) error
}

func main() {
	if err := run(); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var opts options
	flagSet := pflag.NewFlagSet("quotawatch", pflag.ContinueOnError)
	flagSet.StringVar(&opts.env, "env", config.GetEnv(), "config environment: local, dev, prod")
	flagSet.StringVar(&opts.configDir, "config-dir", "", "directory holding <env>.yaml (default: ./config)")
	flagSet.StringVar(&opts.logLevel, "log-level", "", "override logging.level: debug, info, warn, error")
	flagSet.BoolVar(&opts.once, "once", false, "discover, poll once, print the snapshot as JSON and exit")
	showVersion := flagSet.Bool("version", false, "print version and exit")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		return err
	}
	if *showVersion {
		fmt.Printf("quotawatch %s (%s, %s)\n", version.Version, version.Commit, version.Date)
		return nil
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	level := cfg.Logging.Level
	if opts.logLevel != "" {
		level = opts.logLevel
	}

	logger, err := logpkg.NewLogger(opts.env, level)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting quotawatch",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", opts.env),
		zap.String("platform", runtime.GOOS+"/"+runtime.GOARCH),
		zap.String("settings_driver", cfg.Settings.Driver),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Register telemetry metrics explicitly (no init())
	metrics.RegisterTelemetryMetrics()

	store, closeStore, err := buildSettingsStore(ctx, &cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	settings, err := store.Load(ctx)
	if err != nil {
		logger.Error("Settings rejected, using defaults", zap.Error(err))
		settings = quota.DefaultSettings()
	}

	rpc := lsrpc.NewClient(&lsrpc.Config{
		Timeout:       time.Duration(cfg.Telemetry.RequestTimeoutSec) * time.Second,
		IDEName:       cfg.Telemetry.IDEName,
		ExtensionName: cfg.Telemetry.ExtensionName,
		Locale:        cfg.Telemetry.Locale,
		Logger:        logger,
	})
	locator, err := buildLocator(&cfg, rpc, logger)
	if err != nil {
		return err
	}

	tel := telemetryuc.New(locator, rpc, store, settings, telemetryuc.Config{
		MaxAttempts: cfg.Discovery.MaxAttempts,
		Logger:      logger,
	})

	if opts.once {
		return runOnce(ctx, tel)
	}

	hub := ws.NewHub(logger)
	go hub.Run(ctx)
	tel.Subscribe(hub)
	tel.Subscribe(alertLogger{logger: logger})

	if err := watchSettings(ctx, &cfg, store, tel, logger); err != nil {
		return err
	}

	healthSvc := healthuc.New(store, tel)
	var srv *http.Server
	if cfg.HTTP.Enabled {
		server := chiTransport.NewServer(tel, healthSvc, hub, logger).WithMetrics(cfg.Metrics.Enabled)
		srv = &http.Server{
			Addr:              cfg.HTTP.Addr(),
			Handler:           server.Handler(cfg.HTTP.APIKeys),
			ReadHeaderTimeout: time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
			ReadTimeout:       time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		}
		// no WriteTimeout: /events is long-lived
		go func() {
			logger.Info("Starting status server", zap.String("addr", srv.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("Status server error", zap.Error(err))
				stop()
			}
		}()
	}

	if err := tel.StartPolling(ctx, settings.RefreshInterval); err != nil {
		return fmt.Errorf("start polling: %w", err)
	}

	<-ctx.Done()
	logger.Info("Received shutdown signal")
	tel.Stop()

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Error during shutdown", zap.Error(err))
		}
	}

	logger.Info("Stopped")
	return nil
}

func loadConfig(opts options) (config.Config, error) {
	if opts.configDir != "" {
		return config.LoadFrom(opts.configDir, opts.env)
	}
	return config.Load(opts.env)
}

// buildSettingsStore opens the configured settings backend. The returned
// close func is always safe to call.
func buildSettingsStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (settingsStore, func(), error) {
	switch cfg.Settings.Driver {
	case config.SettingsDriverRedis:
		kv, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Settings.Redis.Addrs,
			Password: cfg.Settings.Redis.Password,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create settings store: %w", err)
		}
		timeout := time.Duration(cfg.Settings.Redis.ReadinessTimeout) * time.Second
		if err := kv.WaitForReady(ctx, timeout); err != nil {
			kv.Close()
			return nil, nil, fmt.Errorf("settings store not ready: %w", err)
		}
		logger.Info("Connected to settings store", zap.Strings("addrs", cfg.Settings.Redis.Addrs))
		return settingsrepo.NewKVStore(kv, cfg.Settings.Redis.Key), kv.Close, nil
	default:
		logger.Info("Using settings file", zap.String("path", cfg.Settings.Path))
		return settingsrepo.NewFileStore(cfg.Settings.Path), func() {}, nil
	}
}

// buildLocator assembles discovery for the host platform.
func buildLocator(cfg *config.Config, rpc *lsrpc.Client, logger *zap.Logger) (*locateuc.Service, error) {
	profile := domain.DefaultProfile().WithProcessName(cfg.Discovery.ProcessName)
	strategy, err := platform.New(runtime.GOOS, runtime.GOARCH, profile)
	if err != nil {
		return nil, fmt.Errorf("select platform strategy: %w", err)
	}
	runner := platform.NewExecRunner(time.Duration(cfg.Discovery.CommandTimeoutSec) * time.Second)
	native := platform.NativeLister{}

	probe := probeuc.New(strategy, runner, native, rpc,
		time.Duration(cfg.Discovery.ProbeTimeoutMs)*time.Millisecond, logger)
	return locateuc.New(strategy, runner, probe, native,
		time.Duration(cfg.Discovery.RetryDelayMs)*time.Millisecond, logger), nil
}

// watchSettings starts hot reload for the configured backend.
func watchSettings(
	ctx context.Context, cfg *config.Config, store settingsStore,
	tel *telemetryuc.Service, logger *zap.Logger,
) error {
	onChange := func(s quota.Settings, err error) {
		_ = tel.ReloadSettings(s, err)
	}

	switch st := store.(type) {
	case *settingsrepo.FileStore:
		if !cfg.Settings.Watch {
			return nil
		}
		if err := os.MkdirAll(filepath.Dir(st.Path()), 0o755); err != nil {
			return fmt.Errorf("create settings dir: %w", err)
		}
		w, err := settingsrepo.NewWatcher(st, 0, onChange, logger)
		if err != nil {
			return fmt.Errorf("watch settings: %w", err)
		}
		go w.Run(ctx)
	case *settingsrepo.KVStore:
		interval := time.Duration(cfg.Settings.Redis.PollIntervalSec) * time.Second
		go st.Watch(ctx, interval, onChange)
	}
	return nil
}

// runOnce discovers, polls once and prints the snapshot.
func runOnce(ctx context.Context, tel *telemetryuc.Service) error {
	if err := tel.PollOnce(ctx); err != nil {
		return err
	}
	snap, ok := tel.Latest()
	if !ok {
		return domain.ErrNoPayload
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(dto.FromSnapshot(&snap))
}

// alertLogger logs quota alerts carried by published snapshots.
type alertLogger struct {
	logger *zap.Logger
}

func (a alertLogger) OnSnapshot(snap quota.Snapshot) {
	for _, al := range snap.Alerts {
		a.logger.Warn("Quota alert",
			zap.String("model", al.Label),
			zap.String("status", string(al.Status)),
			zap.Float64("remaining_pct", al.Percentage),
		)
	}
}

func (alertLogger) OnMalfunction(domain.Malfunction) {}
