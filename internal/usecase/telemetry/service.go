// Package telemetry owns the verified connection, polls quota data and
// publishes decoded, grouped snapshots.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/quotawatch/internal/domain"
	"github.com/kailas-cloud/quotawatch/internal/domain/quota"
	"github.com/kailas-cloud/quotawatch/internal/metrics"
	"github.com/kailas-cloud/quotawatch/internal/usecase/alert"
	"github.com/kailas-cloud/quotawatch/internal/usecase/grouping"
	"github.com/kailas-cloud/quotawatch/internal/usecase/snapshot"
)

// ErrPollInProgress is returned when a poll starts while another is in flight.
var ErrPollInProgress = errors.New("poll already in progress")

// DefaultMaxAttempts bounds name-search attempts per discovery.
const DefaultMaxAttempts = 3

// Phase is the client lifecycle state.
type Phase int32

// Lifecycle phases.
const (
	PhaseIdle Phase = iota
	PhaseEngaged
	PhasePolling
)

func (p Phase) String() string {
	switch p {
	case PhaseEngaged:
		return "engaged"
	case PhasePolling:
		return "polling"
	default:
		return "idle"
	}
}

// Config holds optional service parameters.
type Config struct {
	MaxAttempts int
	Logger      *zap.Logger
	Now         func() time.Time
}

// payload is the last raw response kept for Reprocess.
type payload struct {
	raw []byte
	at  time.Time
}

// Service is the telemetry client. Shared state is held behind atomic
// pointers and replaced wholesale.
type Service struct {
	locator  Locator
	fetcher  Fetcher
	writer   SettingsWriter
	tracker  *alert.Tracker
	attempts int
	logger   *zap.Logger
	now      func() time.Time

	target   atomic.Pointer[domain.ConnectionTarget]
	last     atomic.Pointer[payload]
	latest   atomic.Pointer[quota.Snapshot]
	settings atomic.Pointer[quota.Settings]

	inFlight     atomic.Bool
	bootstrapped atomic.Bool
	polls        atomic.Int64
	phase        atomic.Int32

	discoverMu sync.Mutex
	updateMu   sync.Mutex

	loopMu   sync.Mutex
	loopCtx  context.Context //nolint:containedctx // scheduler restarts on interval change
	interval time.Duration
	stop     chan struct{}
	done     chan struct{}

	subMu sync.RWMutex
	subs  map[int]Subscriber
	subID int
}

// New creates a telemetry client. locator and writer can be nil.
func New(locator Locator, fetcher Fetcher, writer SettingsWriter, settings quota.Settings, cfg Config) *Service {
	s := &Service{
		locator:  locator,
		fetcher:  fetcher,
		writer:   writer,
		tracker:  alert.NewTracker(),
		attempts: cfg.MaxAttempts,
		logger:   cfg.Logger,
		now:      cfg.Now,
		subs:     make(map[int]Subscriber),
	}
	if s.attempts <= 0 {
		s.attempts = DefaultMaxAttempts
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.now == nil {
		s.now = time.Now
	}
	s.settings.Store(&settings)
	return s
}

// Phase returns the lifecycle state.
func (s *Service) Phase() Phase { return Phase(s.phase.Load()) }

// PollCount returns the number of network fetches made.
func (s *Service) PollCount() int64 { return s.polls.Load() }

// Target returns the current connection target; zero when not engaged.
func (s *Service) Target() domain.ConnectionTarget {
	if t := s.target.Load(); t != nil {
		return *t
	}
	return domain.ConnectionTarget{}
}

// Settings returns the settings in effect.
func (s *Service) Settings() quota.Settings { return *s.settings.Load() }

// Latest returns the last published snapshot.
func (s *Service) Latest() (quota.Snapshot, bool) {
	if p := s.latest.Load(); p != nil {
		return *p, true
	}
	return quota.Snapshot{}, false
}

// Engage replaces the connection target.
func (s *Service) Engage(target domain.ConnectionTarget) {
	s.target.Store(&target)
	s.phase.CompareAndSwap(int32(PhaseIdle), int32(PhaseEngaged))
	s.logger.Info("Engaged language server", zap.Int("port", target.Port))
}

func (s *Service) disengage() {
	s.target.Store(nil)
	s.phase.CompareAndSwap(int32(PhaseEngaged), int32(PhaseIdle))
}

// Rediscover runs discovery and engages the result. Concurrent calls are
// serialized; a failure publishes a disconnected snapshot.
func (s *Service) Rediscover(ctx context.Context) (domain.ConnectionTarget, error) {
	if s.locator == nil {
		return domain.ConnectionTarget{}, domain.ErrNotEngaged
	}
	s.discoverMu.Lock()
	defer s.discoverMu.Unlock()

	target, err := s.locator.Discover(ctx, s.attempts)
	if err != nil {
		if ctx.Err() == nil {
			s.publish(quota.Disconnected(s.now(), err))
			s.report(err)
		}
		return domain.ConnectionTarget{}, fmt.Errorf("rediscover: %w", err)
	}
	s.Engage(target)
	return target, nil
}

// PollOnce fetches, decodes and publishes one snapshot. It discovers first
// when not engaged. Returns ErrPollInProgress if another poll is running.
func (s *Service) PollOnce(ctx context.Context) error {
	if !s.inFlight.CompareAndSwap(false, true) {
		return ErrPollInProgress
	}
	defer s.inFlight.Store(false)

	start := s.now()
	target := s.Target()
	if target.IsZero() {
		var err error
		if target, err = s.Rediscover(ctx); err != nil {
			metrics.PollsTotal.WithLabelValues("error").Inc()
			return err
		}
	}

	raw, err := s.fetch(ctx, target)
	if errors.Is(err, domain.ErrSignalLost) {
		// The server restarted or exited: the target is void, look again now.
		// Only a failed rediscovery is surfaced.
		s.logger.Info("Signal lost, rediscovering", zap.Int("port", target.Port), zap.Error(err))
		s.disengage()
		if target, err = s.Rediscover(ctx); err != nil {
			metrics.PollsTotal.WithLabelValues("error").Inc()
			return err
		}
		raw, err = s.fetch(ctx, target)
	}
	if err != nil {
		metrics.PollsTotal.WithLabelValues("error").Inc()
		if ctx.Err() == nil {
			s.report(err)
		}
		return err
	}

	if err := s.apply(ctx, raw); err != nil {
		metrics.PollsTotal.WithLabelValues("error").Inc()
		s.report(err)
		return err
	}
	metrics.PollsTotal.WithLabelValues("ok").Inc()
	s.logger.Debug("Poll complete", zap.Duration("duration", s.now().Sub(start)))
	return nil
}

func (s *Service) fetch(ctx context.Context, target domain.ConnectionTarget) ([]byte, error) {
	s.polls.Add(1)
	raw, err := s.fetcher.UserStatus(ctx, target)
	if err != nil {
		return nil, fmt.Errorf("fetch user status: %w", err)
	}
	return raw, nil
}

// apply decodes raw, keeps it for Reprocess and publishes the snapshot.
func (s *Service) apply(ctx context.Context, raw []byte) error {
	now := s.now()
	settings := s.Settings()
	snap, err := s.build(raw, settings, now)
	if err != nil {
		return err
	}
	s.last.Store(&payload{raw: raw, at: now})

	if settings.GroupingEnabled && len(settings.Membership) == 0 && s.bootstrapped.CompareAndSwap(false, true) {
		if _, err := s.regroup(ctx, snap.Models); err != nil {
			s.logger.Warn("Initial grouping failed", zap.Error(err))
		} else if snap, err = s.build(raw, s.Settings(), now); err != nil {
			return err
		}
	}

	s.publish(snap)
	return nil
}

// Reprocess re-runs decoding and grouping on the last raw payload with the
// current settings. No network call is made.
func (s *Service) Reprocess() (quota.Snapshot, error) {
	p := s.last.Load()
	if p == nil {
		return quota.Snapshot{}, domain.ErrNoPayload
	}
	snap, err := s.build(p.raw, s.Settings(), s.now())
	if err != nil {
		s.report(err)
		return quota.Snapshot{}, err
	}
	// Connectivity belongs to the last poll, not to the cached payload.
	if prev := s.latest.Load(); prev != nil && !prev.Connected {
		snap.Connected = false
		snap.Error = prev.Error
	}
	s.publish(snap)
	return snap, nil
}

func (s *Service) build(raw []byte, settings quota.Settings, now time.Time) (quota.Snapshot, error) {
	snap, err := snapshot.Decode(raw, settings, now)
	if err != nil {
		return quota.Snapshot{}, fmt.Errorf("decode: %w", err)
	}
	if settings.GroupingEnabled {
		snap.Groups = grouping.Group(snap.Models, settings)
	}
	snap.Alerts = s.tracker.Observe(snap.Models)
	return snap, nil
}

// AutoGroup recomputes membership from the latest models, persists it and
// reprocesses.
func (s *Service) AutoGroup(ctx context.Context) (quota.Membership, error) {
	p := s.last.Load()
	if p == nil {
		return nil, domain.ErrNoPayload
	}
	snap, err := snapshot.Decode(p.raw, s.Settings(), s.now())
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	m, err := s.regroup(ctx, snap.Models)
	if err != nil {
		return nil, err
	}
	if _, err := s.Reprocess(); err != nil {
		return nil, err
	}
	return m, nil
}

func (s *Service) regroup(ctx context.Context, models []quota.Model) (quota.Membership, error) {
	m := grouping.Recompute(models, s.Settings().GroupingTolerance)
	if err := s.update(ctx, func(st *quota.Settings) { st.Membership = m.Clone() }); err != nil {
		return nil, err
	}
	s.logger.Info("Recomputed grouping", zap.Int("models", len(m)))
	return m, nil
}

// RenameGroup assigns a custom name to every member of a group. An empty name
// clears it.
func (s *Service) RenameGroup(ctx context.Context, groupID, name string) error {
	snap, ok := s.Latest()
	if !ok {
		return domain.ErrNoPayload
	}
	var members []string
	for _, g := range snap.Groups {
		if g.ID == groupID {
			for _, m := range g.Models {
				members = append(members, m.ID)
			}
		}
	}
	if len(members) == 0 {
		return fmt.Errorf("group %q: %w", groupID, domain.ErrNotFound)
	}
	return s.renameAndReprocess(ctx, func(st *quota.Settings) {
		st.GroupNames = setNames(st.GroupNames, members, name)
	})
}

// RenameModel assigns a custom display label to a model. An empty name clears it.
func (s *Service) RenameModel(ctx context.Context, modelID, name string) error {
	snap, ok := s.Latest()
	if !ok {
		return domain.ErrNoPayload
	}
	if _, found := snap.Model(modelID); !found {
		return fmt.Errorf("model %q: %w", modelID, domain.ErrNotFound)
	}
	return s.renameAndReprocess(ctx, func(st *quota.Settings) {
		st.ModelNames = setNames(st.ModelNames, []string{modelID}, name)
	})
}

func (s *Service) renameAndReprocess(ctx context.Context, fn func(*quota.Settings)) error {
	if err := s.update(ctx, fn); err != nil {
		return err
	}
	_, err := s.Reprocess()
	return err
}

func setNames(names map[string]string, ids []string, name string) map[string]string {
	out := make(map[string]string, len(names)+len(ids))
	for k, v := range names {
		out[k] = v
	}
	for _, id := range ids {
		if name == "" {
			delete(out, id)
		} else {
			out[id] = name
		}
	}
	return out
}

// update writes through the settings writer when present, otherwise in memory.
func (s *Service) update(ctx context.Context, fn func(*quota.Settings)) error {
	if s.writer != nil {
		next, err := s.writer.Update(ctx, fn)
		if err != nil {
			return fmt.Errorf("update settings: %w", err)
		}
		s.settings.Store(&next)
		return nil
	}
	s.updateMu.Lock()
	defer s.updateMu.Unlock()
	next := s.Settings()
	next.Membership = next.Membership.Clone()
	next.ModelNames = cloneNames(next.ModelNames)
	next.GroupNames = cloneNames(next.GroupNames)
	fn(&next)
	s.settings.Store(&next)
	return nil
}

func cloneNames(names map[string]string) map[string]string {
	out := make(map[string]string, len(names))
	for k, v := range names {
		out[k] = v
	}
	return out
}

// ApplySettings replaces the settings after validation. Invalid settings are
// reported as a configuration malfunction and the previous ones stay in force.
// A changed refresh interval restarts the scheduler.
func (s *Service) ApplySettings(next quota.Settings) error {
	if err := next.Validate(); err != nil {
		s.report(err)
		return err
	}
	prev := s.Settings()
	s.settings.Store(&next)
	if next.GroupingEnabled && !prev.GroupingEnabled {
		s.bootstrapped.Store(false)
	}

	if next.RefreshInterval != prev.RefreshInterval {
		s.restart(next.RefreshInterval)
	}
	if _, err := s.Reprocess(); err != nil && !errors.Is(err, domain.ErrNoPayload) {
		return err
	}
	return nil
}

// ReloadSettings applies settings re-read from their store. A load error is
// reported like an invalid document and the previous settings stay.
func (s *Service) ReloadSettings(next quota.Settings, loadErr error) error {
	if loadErr != nil {
		s.report(loadErr)
		return loadErr
	}
	return s.ApplySettings(next)
}

// StartPolling polls immediately and then every interval until Stop or ctx
// cancellation. Calling it again replaces the running schedule.
func (s *Service) StartPolling(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("interval must be positive, got %s", interval)
	}
	s.loopMu.Lock()
	defer s.loopMu.Unlock()

	s.stopLocked()
	s.loopCtx = ctx
	s.interval = interval
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	s.phase.Store(int32(PhasePolling))

	go s.loop(ctx, interval, s.stop, s.done)
	return nil
}

func (s *Service) restart(interval time.Duration) {
	s.loopMu.Lock()
	ctx, running := s.loopCtx, s.stop != nil
	s.loopMu.Unlock()
	if running && ctx != nil && ctx.Err() == nil {
		_ = s.StartPolling(ctx, interval)
	}
}

func (s *Service) loop(ctx context.Context, interval time.Duration, stop, done chan struct{}) {
	defer close(done)
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		default:
		}

		if err := s.PollOnce(ctx); errors.Is(err, ErrPollInProgress) {
			metrics.PollsTotal.WithLabelValues("skipped").Inc()
			s.logger.Debug("Poll skipped, previous still running")
		}

		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}

// Stop halts the scheduler before its next tick. An in-flight poll completes.
func (s *Service) Stop() {
	s.loopMu.Lock()
	defer s.loopMu.Unlock()
	s.stopLocked()
	if s.Target().IsZero() {
		s.phase.Store(int32(PhaseIdle))
	} else {
		s.phase.Store(int32(PhaseEngaged))
	}
}

func (s *Service) stopLocked() {
	if s.stop != nil {
		close(s.stop)
		s.stop = nil
	}
}

// Wait blocks until the last started scheduler has exited.
func (s *Service) Wait() {
	s.loopMu.Lock()
	done := s.done
	s.loopMu.Unlock()
	if done != nil {
		<-done
	}
}

// Subscribe registers sub and returns a function removing it.
func (s *Service) Subscribe(sub Subscriber) func() {
	s.subMu.Lock()
	s.subID++
	id := s.subID
	s.subs[id] = sub
	s.subMu.Unlock()

	return func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
	}
}

func (s *Service) subscribers() []Subscriber {
	s.subMu.RLock()
	defer s.subMu.RUnlock()
	out := make([]Subscriber, 0, len(s.subs))
	for _, sub := range s.subs {
		out = append(out, sub)
	}
	return out
}

func (s *Service) publish(snap quota.Snapshot) {
	s.latest.Store(&snap)
	observe(snap)
	for _, sub := range s.subscribers() {
		sub.OnSnapshot(snap)
	}
}

// report delivers a classified error to every subscriber exactly once.
func (s *Service) report(err error) {
	m := domain.NewMalfunction(err, s.now())
	metrics.MalfunctionsTotal.WithLabelValues(string(m.Kind)).Inc()
	if m.Kind.Transient() {
		s.logger.Debug("Transient malfunction", zap.String("kind", string(m.Kind)), zap.Error(err))
	} else {
		s.logger.Warn("Malfunction", zap.String("kind", string(m.Kind)), zap.Error(err))
	}
	for _, sub := range s.subscribers() {
		sub.OnMalfunction(m)
	}
}

func observe(snap quota.Snapshot) {
	if snap.Connected {
		metrics.Connected.Set(1)
	} else {
		metrics.Connected.Set(0)
	}
	for _, m := range snap.Models {
		if m.HasQuota {
			metrics.ModelRemainingRatio.WithLabelValues(m.ID).Set(m.RemainingFraction)
		}
	}
}

// Connected reports whether the last published snapshot reached the server.
func (s *Service) Connected() bool {
	snap, ok := s.Latest()
	return ok && snap.Connected
}
