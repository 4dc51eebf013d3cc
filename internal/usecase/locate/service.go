package locate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/quotawatch/internal/domain"
	logpkg "github.com/kailas-cloud/quotawatch/internal/logger"
	"github.com/kailas-cloud/quotawatch/internal/metrics"
)

// DefaultRetryDelay separates name-search attempts.
const DefaultRetryDelay = 1500 * time.Millisecond

// diagnosticKeywords select processes for the native diagnostics listing.
var diagnosticKeywords = []string{"language_server", "antigravity"}

// Service finds the language server: by process name, then by token keyword,
// then gives up after logging diagnostics. Runs are serialized.
type Service struct {
	mu         sync.Mutex
	strategy   Strategy
	runner     Runner
	verifier   Verifier
	describer  Describer
	retryDelay time.Duration
	logger     *zap.Logger
}

// New creates a locator. describer can be nil.
func New(
	strategy Strategy, runner Runner, verifier Verifier, describer Describer,
	retryDelay time.Duration, logger *zap.Logger,
) *Service {
	return &Service{
		strategy:   strategy,
		runner:     runner,
		verifier:   verifier,
		describer:  describer,
		retryDelay: retryDelay,
		logger:     logger,
	}
}

// Discover returns a verified connection target or an error wrapping
// domain.ErrDiscoveryFailure.
func (s *Service) Discover(ctx context.Context, maxAttempts int) (domain.ConnectionTarget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	defer func() { metrics.DiscoveryDuration.Observe(time.Since(start).Seconds()) }()

	if maxAttempts < 1 {
		maxAttempts = 1
	}

	if t, ok := s.byName(ctx, maxAttempts); ok {
		return t, nil
	}
	if err := ctx.Err(); err != nil {
		return domain.ConnectionTarget{}, fmt.Errorf("discover: %w", err)
	}

	if t, ok := s.byKeyword(ctx); ok {
		return t, nil
	}
	if err := ctx.Err(); err != nil {
		return domain.ConnectionTarget{}, fmt.Errorf("discover: %w", err)
	}

	s.diagnose(ctx)
	return domain.ConnectionTarget{}, fmt.Errorf(
		"%w: no verified language server after %d attempts", domain.ErrDiscoveryFailure, maxAttempts)
}

// byName is phase A. Tool-unavailable errors switch the sub-tool and a first
// timeout on the preferred tool is retried; neither charges an attempt.
func (s *Service) byName(ctx context.Context, maxAttempts int) (domain.ConnectionTarget, bool) {
	timeoutRetried := false

	for attempt := 1; attempt <= maxAttempts; {
		tool := string(s.strategy.Tool())
		cmd := s.strategy.ListCandidates()
		out, err := s.runner.Run(ctx, cmd)

		if err != nil {
			if ctx.Err() != nil {
				return domain.ConnectionTarget{}, false
			}
			metrics.DiscoveryAttemptsTotal.WithLabelValues("name", tool, "error").Inc()

			if errors.Is(err, domain.ErrToolUnavailable) && s.strategy.SwitchTool() {
				metrics.ToolSwitchesTotal.WithLabelValues(string(s.strategy.Tool())).Inc()
				s.logger.Warn("Process listing tool unavailable, switching",
					zap.String("from", tool),
					zap.String("to", string(s.strategy.Tool())),
					zap.Error(err),
				)
				continue
			}
			if errors.Is(err, domain.ErrTransportTimeout) && s.strategy.Preferred() && !timeoutRetried {
				timeoutRetried = true
				s.logger.Warn("Process listing timed out, retrying", zap.String("tool", tool))
				continue
			}

			s.logger.Warn("Process listing failed",
				zap.Int("attempt", attempt),
				zap.Int("max_attempts", maxAttempts),
				zap.String("tool", tool),
				zap.Error(err),
			)
		} else {
			cands := s.strategy.ParseCandidates(out)
			if len(cands) == 0 {
				metrics.DiscoveryAttemptsTotal.WithLabelValues("name", tool, "empty").Inc()
				s.logger.Debug("No candidates", zap.Int("attempt", attempt), zap.String("tool", tool))
			} else {
				metrics.DiscoveryAttemptsTotal.WithLabelValues("name", tool, "found").Inc()
				if t, ok := s.verifyAll(ctx, cands); ok {
					return t, true
				}
			}
		}

		if attempt == maxAttempts || !s.sleep(ctx) {
			break
		}
		attempt++
	}
	return domain.ConnectionTarget{}, false
}

// byKeyword is phase B, available only on sub-tools that can scan every
// command line for the token marker.
func (s *Service) byKeyword(ctx context.Context) (domain.ConnectionTarget, bool) {
	cmd, ok := s.strategy.KeywordScan()
	if !ok {
		s.logger.Debug("Keyword scan unsupported", zap.String("tool", string(s.strategy.Tool())))
		return domain.ConnectionTarget{}, false
	}
	tool := string(s.strategy.Tool())

	out, err := s.runner.Run(ctx, cmd)
	if err != nil {
		metrics.DiscoveryAttemptsTotal.WithLabelValues("keyword", tool, "error").Inc()
		s.logger.Warn("Keyword scan failed", zap.String("tool", tool), zap.Error(err))
		return domain.ConnectionTarget{}, false
	}

	cands := s.strategy.ParseKeywordScan(out)
	if len(cands) == 0 {
		metrics.DiscoveryAttemptsTotal.WithLabelValues("keyword", tool, "empty").Inc()
		return domain.ConnectionTarget{}, false
	}
	metrics.DiscoveryAttemptsTotal.WithLabelValues("keyword", tool, "found").Inc()
	return s.verifyAll(ctx, cands)
}

func (s *Service) verifyAll(ctx context.Context, cands []domain.ProcessCandidate) (domain.ConnectionTarget, bool) {
	for _, c := range cands {
		if t, ok := s.verifier.Verify(ctx, c); ok {
			return t, true
		}
		if ctx.Err() != nil {
			break
		}
	}
	return domain.ConnectionTarget{}, false
}

// diagnose is phase C: best effort, output goes to the operator log only.
func (s *Service) diagnose(ctx context.Context) {
	cmd := s.strategy.Diagnostics()
	out, err := s.runner.Run(ctx, cmd)
	out = strings.TrimSpace(out)
	if err == nil && out != "" {
		s.logger.Warn("Language server not found; matching processes",
			zap.Stringer("command", cmd),
			logpkg.RedactedString("output", out),
		)
		return
	}

	if s.describer != nil {
		lines, derr := s.describer.Describe(ctx, diagnosticKeywords...)
		if derr == nil && len(lines) > 0 {
			s.logger.Warn("Language server not found; matching processes",
				zap.String("source", "native"),
				logpkg.RedactedString("output", strings.Join(lines, "\n")),
			)
			return
		}
	}

	s.logger.Warn("Language server not found; no matching processes", zap.Error(err))
}

func (s *Service) sleep(ctx context.Context) bool {
	if s.retryDelay <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(s.retryDelay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
