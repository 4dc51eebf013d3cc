package probe

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/quotawatch/internal/domain"
	"github.com/kailas-cloud/quotawatch/internal/metrics"
)

// DefaultTimeout bounds a single liveness request.
const DefaultTimeout = 2 * time.Second

// Service verifies a candidate by probing its listening ports one by one.
type Service struct {
	cmds    PortCommands
	runner  Runner
	native  NativePorts
	pinger  Pinger
	timeout time.Duration
	logger  *zap.Logger
}

// New creates a probe service. native can be nil.
func New(
	cmds PortCommands, runner Runner, native NativePorts, pinger Pinger,
	timeout time.Duration, logger *zap.Logger,
) *Service {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Service{
		cmds:    cmds,
		runner:  runner,
		native:  native,
		pinger:  pinger,
		timeout: timeout,
		logger:  logger,
	}
}

// Verify returns the first port of the candidate that answers the liveness
// request with 200. Ports are tried in ascending order, never in parallel.
func (s *Service) Verify(ctx context.Context, cand domain.ProcessCandidate) (domain.ConnectionTarget, bool) {
	ports := s.listPorts(ctx, cand.PID)
	if len(ports) == 0 {
		s.logger.Debug("No listening ports", zap.Int("pid", cand.PID))
		return domain.ConnectionTarget{}, false
	}
	sort.Ints(ports)

	for _, port := range ports {
		if ctx.Err() != nil {
			return domain.ConnectionTarget{}, false
		}
		target := domain.ConnectionTarget{Port: port, Token: cand.Token}
		if s.ping(ctx, target) {
			metrics.ProbeTotal.WithLabelValues("ok").Inc()
			s.logger.Info("Language server verified",
				zap.Int("pid", cand.PID),
				zap.Int("port", port),
			)
			return target, true
		}
		metrics.ProbeTotal.WithLabelValues("fail").Inc()
	}

	s.logger.Debug("No port answered", zap.Int("pid", cand.PID), zap.Ints("ports", ports))
	return domain.ConnectionTarget{}, false
}

func (s *Service) ping(ctx context.Context, target domain.ConnectionTarget) bool {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.pinger.Ping(ctx, target); err != nil {
		s.logger.Debug("Probe failed", zap.Int("port", target.Port), zap.Error(err))
		return false
	}
	return true
}

// listPorts runs the OS port command and falls back to the native lister when
// the command fails or prints nothing usable.
func (s *Service) listPorts(ctx context.Context, pid int) []int {
	cmd := s.cmds.ListPorts(pid)
	out, err := s.runner.Run(ctx, cmd)
	if err != nil {
		s.logger.Debug("Port listing failed", zap.Stringer("command", cmd), zap.Error(err))
	} else if ports := s.cmds.ParsePorts(out, pid); len(ports) > 0 {
		return ports
	}

	if s.native == nil {
		return nil
	}
	ports, err := s.native.ListeningPorts(ctx, pid)
	if err != nil {
		s.logger.Debug("Native port listing failed", zap.Int("pid", pid), zap.Error(err))
		return nil
	}
	return ports
}
