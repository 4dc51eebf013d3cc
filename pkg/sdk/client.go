package quotawatch

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"go.uber.org/zap"

	dbRedis "github.com/kailas-cloud/quotawatch/internal/db/redis"
	"github.com/kailas-cloud/quotawatch/internal/domain"
	"github.com/kailas-cloud/quotawatch/internal/domain/quota"
	"github.com/kailas-cloud/quotawatch/internal/platform"
	settingsrepo "github.com/kailas-cloud/quotawatch/internal/repository/settings"
	"github.com/kailas-cloud/quotawatch/internal/transport/dto"
	"github.com/kailas-cloud/quotawatch/internal/transport/lsrpc"
	healthuc "github.com/kailas-cloud/quotawatch/internal/usecase/health"
	locateuc "github.com/kailas-cloud/quotawatch/internal/usecase/locate"
	probeuc "github.com/kailas-cloud/quotawatch/internal/usecase/probe"
	telemetryuc "github.com/kailas-cloud/quotawatch/internal/usecase/telemetry"
)

const (
	defaultReadinessTimeout = 10 * time.Second
	defaultRedisKey         = "quotawatch:settings"
	redisWatchInterval      = 15 * time.Second
)

// Внутренние интерфейсы для подмены в тестах.
type telemetryUseCase interface {
	Latest() (quota.Snapshot, bool)
	Settings() quota.Settings
	PollOnce(ctx context.Context) error
	Rediscover(ctx context.Context) (domain.ConnectionTarget, error)
	AutoGroup(ctx context.Context) (quota.Membership, error)
	RenameGroup(ctx context.Context, groupID, name string) error
	RenameModel(ctx context.Context, modelID, name string) error
	ApplySettings(next quota.Settings) error
	ReloadSettings(next quota.Settings, loadErr error) error
	StartPolling(ctx context.Context, interval time.Duration) error
	Stop()
	Subscribe(sub telemetryuc.Subscriber) func()
}

type settingsStore interface {
	Load(ctx context.Context) (quota.Settings, error)
	Update(ctx context.Context, fn func(*quota.Settings)) (quota.Settings, error)
	Ping(ctx context.Context) error
}

// Monitor is the quotawatch SDK entry point.
type Monitor struct {
	tel       telemetryUseCase
	store     settingsStore // nil keeps settings in memory
	healthSvc healthUseCase
	obs       *observer
	hotReload bool
	closeFn   func()

	mu     sync.Mutex
	cancel context.CancelFunc
}

// New creates a Monitor. It loads settings and, for Redis, waits for the
// server; discovery happens on the first poll. The provided context is used
// for the readiness check and the settings read.
func New(ctx context.Context, opts ...Option) (*Monitor, error) {
	cfg := defaultMonitorConfig()
	for _, o := range opts {
		o.apply(cfg)
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		return nil, err
	}

	store, closeFn, err := createStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	settings := quota.DefaultSettings()
	if cfg.settings != nil {
		settings = *cfg.settings
	}
	if store != nil {
		stored, err := store.Load(ctx)
		if err != nil {
			closeFn()
			return nil, fmt.Errorf("quotawatch: load settings: %w", err)
		}
		settings = stored
	}
	if err := settings.Validate(); err != nil {
		closeFn()
		return nil, fmt.Errorf("quotawatch: %w", err)
	}

	tel, err := wireTelemetry(cfg, store, settings)
	if err != nil {
		closeFn()
		return nil, err
	}

	var pinger healthuc.StorePinger
	if store != nil {
		pinger = store
	}
	return &Monitor{
		tel:       tel,
		store:     store,
		healthSvc: healthuc.New(pinger, tel),
		obs:       obs,
		hotReload: cfg.hotReload,
		closeFn:   closeFn,
	}, nil
}

func createStore(ctx context.Context, cfg *monitorConfig) (settingsStore, func(), error) {
	switch {
	case len(cfg.redisAddrs) > 0:
		s, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.redisAddrs,
			Password: cfg.redisPassword,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("quotawatch: create redis store: %w", err)
		}
		if err := s.WaitForReady(ctx, defaultReadinessTimeout); err != nil {
			s.Close()
			return nil, nil, fmt.Errorf("quotawatch: redis not ready: %w", err)
		}
		return settingsrepo.NewKVStore(s, cfg.redisKey), s.Close, nil
	case cfg.settingsPath != "":
		return settingsrepo.NewFileStore(cfg.settingsPath), func() {}, nil
	default:
		return nil, func() {}, nil
	}
}

func wireTelemetry(cfg *monitorConfig, store settingsStore, settings quota.Settings) (*telemetryuc.Service, error) {
	logger := zap.NewNop()

	profile := domain.DefaultProfile().WithProcessName(cfg.processName)
	strategy, err := platform.New(runtime.GOOS, runtime.GOARCH, profile)
	if err != nil {
		return nil, fmt.Errorf("quotawatch: %w", err)
	}
	runner := platform.NewExecRunner(cfg.commandTimeout)
	native := platform.NativeLister{}

	rpc := lsrpc.NewClient(&lsrpc.Config{Timeout: cfg.requestTimeout, Logger: logger})
	probe := probeuc.New(strategy, runner, native, rpc, cfg.probeTimeout, logger)
	locator := locateuc.New(strategy, runner, probe, native, cfg.retryDelay, logger)

	var writer telemetryuc.SettingsWriter
	if store != nil {
		writer = store
	}
	return telemetryuc.New(locator, rpc, writer, settings, telemetryuc.Config{
		MaxAttempts: cfg.maxAttempts,
		Logger:      logger,
	}), nil
}

// Start polls immediately and then at the configured refresh interval until
// Stop, Close or ctx cancellation. With hot reload it also watches the
// settings store.
func (m *Monitor) Start(ctx context.Context) (err error) {
	defer func(start time.Time) { m.obs.observe("start", start, err) }(time.Now())

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		m.cancel()
	}
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel

	if m.hotReload {
		if err := m.watch(runCtx); err != nil {
			cancel()
			m.cancel = nil
			return err
		}
	}
	if err := m.tel.StartPolling(runCtx, m.tel.Settings().RefreshInterval); err != nil {
		cancel()
		m.cancel = nil
		return fmt.Errorf("quotawatch: start polling: %w", err)
	}
	return nil
}

func (m *Monitor) watch(ctx context.Context) error {
	onChange := func(s quota.Settings, err error) {
		_ = m.tel.ReloadSettings(s, err)
	}
	switch st := m.store.(type) {
	case *settingsrepo.FileStore:
		w, err := settingsrepo.NewWatcher(st, 0, onChange, zap.NewNop())
		if err != nil {
			return fmt.Errorf("quotawatch: watch settings: %w", err)
		}
		go w.Run(ctx)
	case *settingsrepo.KVStore:
		go st.Watch(ctx, redisWatchInterval, onChange)
	}
	return nil
}

// Stop halts polling and settings watching. The latest snapshot stays
// readable.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	m.mu.Unlock()
	m.tel.Stop()
}

// Close stops the monitor and releases the settings store.
func (m *Monitor) Close() {
	m.Stop()
	if m.closeFn != nil {
		m.closeFn()
	}
}

// Refresh polls once, discovering the language server if needed, and returns
// the resulting snapshot.
func (m *Monitor) Refresh(ctx context.Context) (_ Snapshot, err error) {
	defer func(start time.Time) { m.obs.observe("refresh", start, err) }(time.Now())

	if err := m.tel.PollOnce(ctx); err != nil {
		return Snapshot{}, err
	}
	snap, ok := m.tel.Latest()
	if !ok {
		return Snapshot{}, ErrNoPayload
	}
	return dto.FromSnapshot(&snap), nil
}

// Snapshot returns the last published snapshot.
func (m *Monitor) Snapshot() (Snapshot, bool) {
	snap, ok := m.tel.Latest()
	if !ok {
		return Snapshot{}, false
	}
	return dto.FromSnapshot(&snap), true
}

// Rediscover drops the current connection and searches for the language
// server again. It returns the verified port.
func (m *Monitor) Rediscover(ctx context.Context) (_ int, err error) {
	defer func(start time.Time) { m.obs.observe("rediscover", start, err) }(time.Now())

	target, err := m.tel.Rediscover(ctx)
	if err != nil {
		return 0, err
	}
	return target.Port, nil
}

// AutoGroup recomputes group membership from the latest payload and returns
// it as modelID → groupID.
func (m *Monitor) AutoGroup(ctx context.Context) (_ map[string]string, err error) {
	defer func(start time.Time) { m.obs.observe("auto_group", start, err) }(time.Now())

	membership, err := m.tel.AutoGroup(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]string(membership.Clone()), nil
}

// RenameGroup sets a custom name for a group. An empty name restores the
// computed one.
func (m *Monitor) RenameGroup(ctx context.Context, groupID, name string) (err error) {
	defer func(start time.Time) { m.obs.observe("rename_group", start, err) }(time.Now())
	return m.tel.RenameGroup(ctx, groupID, name)
}

// RenameModel sets a custom label for a model. An empty name restores the
// server label.
func (m *Monitor) RenameModel(ctx context.Context, modelID, name string) (err error) {
	defer func(start time.Time) { m.obs.observe("rename_model", start, err) }(time.Now())
	return m.tel.RenameModel(ctx, modelID, name)
}

// Settings returns the settings in force.
func (m *Monitor) Settings() Settings {
	return m.tel.Settings()
}

// UpdateSettings applies fn to the current settings, persists the result
// when a store is configured and applies it. Invalid results are rejected
// and nothing changes.
func (m *Monitor) UpdateSettings(ctx context.Context, fn func(*Settings)) (_ Settings, err error) {
	defer func(start time.Time) { m.obs.observe("update_settings", start, err) }(time.Now())

	var next quota.Settings
	if m.store != nil {
		next, err = m.store.Update(ctx, fn)
		if err != nil {
			return Settings{}, err
		}
	} else {
		next = cloneSettings(m.tel.Settings())
		fn(&next)
	}
	if err := m.tel.ApplySettings(next); err != nil {
		return Settings{}, err
	}
	return next, nil
}

// OnSnapshot registers fn for every published snapshot. Callbacks run on the
// polling goroutine and must not block. The returned func unsubscribes.
func (m *Monitor) OnSnapshot(fn func(Snapshot)) func() {
	return m.tel.Subscribe(subscriber{onSnapshot: func(s Snapshot) {
		m.obs.notified("snapshot", nil)
		fn(s)
	}})
}

// OnMalfunction registers fn for every classified error. The returned func
// unsubscribes.
func (m *Monitor) OnMalfunction(fn func(Malfunction)) func() {
	return m.tel.Subscribe(subscriber{onMalfunction: func(mf Malfunction) {
		m.obs.notified("malfunction", &mf)
		fn(mf)
	}})
}

func cloneSettings(s quota.Settings) quota.Settings {
	s.Membership = s.Membership.Clone()
	s.ModelNames = cloneNames(s.ModelNames)
	s.GroupNames = cloneNames(s.GroupNames)
	s.PinnedModels = append([]string(nil), s.PinnedModels...)
	s.PinnedGroups = append([]string(nil), s.PinnedGroups...)
	return s
}

func cloneNames(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
