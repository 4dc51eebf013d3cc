package quotawatch

import (
	"context"
	"time"

	"github.com/kailas-cloud/quotawatch/internal/domain"
	"github.com/kailas-cloud/quotawatch/internal/domain/quota"
	healthuc "github.com/kailas-cloud/quotawatch/internal/usecase/health"
	telemetryuc "github.com/kailas-cloud/quotawatch/internal/usecase/telemetry"
)

// --- telemetryUseCase mock ---

type mockTelemetryUC struct {
	latest       *quota.Snapshot
	settings     quota.Settings
	subs         []telemetryuc.Subscriber
	stopped      int
	pollFn       func(ctx context.Context) error
	rediscoverFn func(ctx context.Context) (domain.ConnectionTarget, error)
	autoGroupFn  func(ctx context.Context) (quota.Membership, error)
	renameFn     func(ctx context.Context, kind, id, name string) error
	applyFn      func(next quota.Settings) error
	startFn      func(ctx context.Context, interval time.Duration) error
}

func (m *mockTelemetryUC) Latest() (quota.Snapshot, bool) {
	if m.latest == nil {
		return quota.Snapshot{}, false
	}
	return *m.latest, true
}

func (m *mockTelemetryUC) Settings() quota.Settings { return m.settings }

func (m *mockTelemetryUC) PollOnce(ctx context.Context) error { return m.pollFn(ctx) }

func (m *mockTelemetryUC) Rediscover(ctx context.Context) (domain.ConnectionTarget, error) {
	return m.rediscoverFn(ctx)
}

func (m *mockTelemetryUC) AutoGroup(ctx context.Context) (quota.Membership, error) {
	return m.autoGroupFn(ctx)
}

func (m *mockTelemetryUC) RenameGroup(ctx context.Context, groupID, name string) error {
	return m.renameFn(ctx, "group", groupID, name)
}

func (m *mockTelemetryUC) RenameModel(ctx context.Context, modelID, name string) error {
	return m.renameFn(ctx, "model", modelID, name)
}

func (m *mockTelemetryUC) ApplySettings(next quota.Settings) error {
	if m.applyFn != nil {
		if err := m.applyFn(next); err != nil {
			return err
		}
	}
	m.settings = next
	return nil
}

func (m *mockTelemetryUC) ReloadSettings(next quota.Settings, loadErr error) error {
	if loadErr != nil {
		return loadErr
	}
	return m.ApplySettings(next)
}

func (m *mockTelemetryUC) StartPolling(ctx context.Context, interval time.Duration) error {
	return m.startFn(ctx, interval)
}

func (m *mockTelemetryUC) Stop() { m.stopped++ }

func (m *mockTelemetryUC) Subscribe(sub telemetryuc.Subscriber) func() {
	m.subs = append(m.subs, sub)
	idx := len(m.subs) - 1
	return func() { m.subs[idx] = nil }
}

func (m *mockTelemetryUC) publish(snap quota.Snapshot) {
	for _, s := range m.subs {
		if s != nil {
			s.OnSnapshot(snap)
		}
	}
}

func (m *mockTelemetryUC) report(mf domain.Malfunction) {
	for _, s := range m.subs {
		if s != nil {
			s.OnMalfunction(mf)
		}
	}
}

// --- settingsStore mock ---

type mockSettingsStore struct {
	updateFn func(ctx context.Context, fn func(*quota.Settings)) (quota.Settings, error)
	pingFn   func(ctx context.Context) error
}

func (m *mockSettingsStore) Load(_ context.Context) (quota.Settings, error) {
	return quota.DefaultSettings(), nil
}

func (m *mockSettingsStore) Update(ctx context.Context, fn func(*quota.Settings)) (quota.Settings, error) {
	return m.updateFn(ctx, fn)
}

func (m *mockSettingsStore) Ping(ctx context.Context) error {
	return m.pingFn(ctx)
}

// --- healthUseCase mock ---

type mockHealthUC struct {
	report healthuc.Report
}

func (m *mockHealthUC) Check(_ context.Context) healthuc.Report { return m.report }
