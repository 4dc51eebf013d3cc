package locate

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/quotawatch/internal/domain"
	"github.com/kailas-cloud/quotawatch/internal/platform"
)

// --- Mocks ---

// mockStrategy lists with "list <tool>" and parses "<pid> <token>" lines.
type mockStrategy struct {
	tools    [2]platform.Tool
	active   int
	switches int
	keyword  bool
}

func newMockStrategy() *mockStrategy {
	return &mockStrategy{tools: [2]platform.Tool{platform.ToolPS, platform.ToolPgrep}, keyword: true}
}

func (m *mockStrategy) Tool() platform.Tool { return m.tools[m.active] }
func (m *mockStrategy) Preferred() bool     { return m.active == 0 }

func (m *mockStrategy) SwitchTool() bool {
	if m.switches >= 2 {
		return false
	}
	m.active = 1 - m.active
	m.switches++
	return true
}

func (m *mockStrategy) ListCandidates() platform.Command {
	return platform.Command{Name: "list", Args: []string{string(m.Tool())}}
}

func (m *mockStrategy) ParseCandidates(out string) []domain.ProcessCandidate { return parseLines(out) }

func (m *mockStrategy) KeywordScan() (platform.Command, bool) {
	if !m.keyword || !m.Preferred() {
		return platform.Command{}, false
	}
	return platform.Command{Name: "keyword"}, true
}

func (m *mockStrategy) ParseKeywordScan(out string) []domain.ProcessCandidate { return parseLines(out) }

func (m *mockStrategy) Diagnostics() platform.Command { return platform.Command{Name: "diag"} }

func parseLines(out string) []domain.ProcessCandidate {
	var cands []domain.ProcessCandidate
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		pid, tok, ok := strings.Cut(line, " ")
		if !ok {
			continue
		}
		n, _ := strconv.Atoi(pid)
		cands = append(cands, domain.ProcessCandidate{PID: n, Token: tok})
	}
	return cands
}

type mockRunner struct {
	respond func(cmd platform.Command) (string, error)
	calls   []platform.Command
}

func (m *mockRunner) Run(_ context.Context, cmd platform.Command) (string, error) {
	m.calls = append(m.calls, cmd)
	if m.respond == nil {
		return "", nil
	}
	return m.respond(cmd)
}

func (m *mockRunner) count(name string) int {
	n := 0
	for _, c := range m.calls {
		if c.Name == name {
			n++
		}
	}
	return n
}

type mockVerifier struct {
	alive    map[int]bool
	verified []int
}

func (m *mockVerifier) Verify(_ context.Context, c domain.ProcessCandidate) (domain.ConnectionTarget, bool) {
	m.verified = append(m.verified, c.PID)
	if m.alive[c.PID] {
		return domain.ConnectionTarget{Port: c.PID * 10, Token: c.Token}, true
	}
	return domain.ConnectionTarget{}, false
}

type mockDescriber struct {
	calls int
}

func (m *mockDescriber) Describe(_ context.Context, _ ...string) ([]string, error) {
	m.calls++
	return []string{"1 language_server --x"}, nil
}

var errBoom = errors.New("access denied")

func toolMissing() error {
	return fmt.Errorf("%w: exit status 127", domain.ErrToolUnavailable)
}

// --- Tests ---

func TestDiscover_BoundedRetry(t *testing.T) {
	r := &mockRunner{respond: func(cmd platform.Command) (string, error) {
		if cmd.Name == "list" {
			return "", errBoom
		}
		return "", nil
	}}
	svc := New(newMockStrategy(), r, &mockVerifier{}, nil, 0, zap.NewNop())

	_, err := svc.Discover(context.Background(), 3)
	if !errors.Is(err, domain.ErrDiscoveryFailure) {
		t.Fatalf("expected ErrDiscoveryFailure, got %v", err)
	}
	if n := r.count("list"); n != 3 {
		t.Errorf("expected exactly 3 list attempts, got %d", n)
	}
	if r.count("keyword") != 1 {
		t.Error("expected keyword fallback")
	}
	if r.count("diag") != 1 {
		t.Error("expected diagnostics")
	}
}

func TestDiscover_SwitchDoesNotChargeAttempt(t *testing.T) {
	r := &mockRunner{respond: func(cmd platform.Command) (string, error) {
		if cmd.Name == "list" && cmd.Args[0] == string(platform.ToolPS) {
			return "", toolMissing()
		}
		return "7 tok", nil
	}}
	st := newMockStrategy()
	svc := New(st, r, &mockVerifier{alive: map[int]bool{7: true}}, nil, 0, zap.NewNop())

	got, err := svc.Discover(context.Background(), 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Port != 70 || got.Token != "tok" {
		t.Errorf("unexpected target %+v", got)
	}
	if st.Tool() != platform.ToolPgrep {
		t.Errorf("expected switch to pgrep, active %s", st.Tool())
	}
}

func TestDiscover_SwitchCap(t *testing.T) {
	r := &mockRunner{respond: func(cmd platform.Command) (string, error) {
		if cmd.Name == "list" {
			return "", toolMissing()
		}
		return "", nil
	}}
	svc := New(newMockStrategy(), r, &mockVerifier{}, nil, 0, zap.NewNop())

	if _, err := svc.Discover(context.Background(), 3); !errors.Is(err, domain.ErrDiscoveryFailure) {
		t.Fatalf("expected ErrDiscoveryFailure, got %v", err)
	}
	// two free switches, then three charged attempts
	if n := r.count("list"); n != 5 {
		t.Errorf("expected 5 list calls, got %d", n)
	}
}

func TestDiscover_PreferredTimeoutRetriedOnce(t *testing.T) {
	r := &mockRunner{respond: func(cmd platform.Command) (string, error) {
		if cmd.Name == "list" {
			return "", platform.ErrCommandTimeout
		}
		return "", nil
	}}
	svc := New(newMockStrategy(), r, &mockVerifier{}, nil, 0, zap.NewNop())

	_, _ = svc.Discover(context.Background(), 3)
	if n := r.count("list"); n != 4 {
		t.Errorf("expected 1 free retry + 3 attempts, got %d", n)
	}
}

func TestDiscover_VerifiesEveryCandidate(t *testing.T) {
	r := &mockRunner{respond: func(cmd platform.Command) (string, error) {
		return "1 a\n2 b\n3 c", nil
	}}
	v := &mockVerifier{alive: map[int]bool{3: true}}
	svc := New(newMockStrategy(), r, v, nil, 0, zap.NewNop())

	got, err := svc.Discover(context.Background(), 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Token != "c" {
		t.Errorf("expected third candidate, got %+v", got)
	}
	if len(v.verified) != 3 {
		t.Errorf("expected 3 verifications, got %v", v.verified)
	}
	if r.count("list") != 1 {
		t.Error("expected a single listing")
	}
}

func TestDiscover_UnverifiedCandidatesConsumeAttempts(t *testing.T) {
	r := &mockRunner{respond: func(cmd platform.Command) (string, error) {
		if cmd.Name == "list" {
			return "1 a", nil
		}
		return "", nil
	}}
	svc := New(newMockStrategy(), r, &mockVerifier{}, nil, 0, zap.NewNop())

	if _, err := svc.Discover(context.Background(), 2); !errors.Is(err, domain.ErrDiscoveryFailure) {
		t.Fatalf("expected ErrDiscoveryFailure, got %v", err)
	}
	if r.count("list") != 2 {
		t.Errorf("expected 2 list calls, got %d", r.count("list"))
	}
}

func TestDiscover_KeywordFallback(t *testing.T) {
	r := &mockRunner{respond: func(cmd platform.Command) (string, error) {
		if cmd.Name == "keyword" {
			return "9 kw", nil
		}
		return "", nil
	}}
	svc := New(newMockStrategy(), r, &mockVerifier{alive: map[int]bool{9: true}}, nil, 0, zap.NewNop())

	got, err := svc.Discover(context.Background(), 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Token != "kw" {
		t.Errorf("unexpected target %+v", got)
	}
	if r.count("diag") != 0 {
		t.Error("diagnostics must not run after a keyword hit")
	}
}

func TestDiscover_KeywordSkippedOnFallbackTool(t *testing.T) {
	st := newMockStrategy()
	st.SwitchTool()
	r := &mockRunner{}
	svc := New(st, r, &mockVerifier{}, nil, 0, zap.NewNop())

	_, _ = svc.Discover(context.Background(), 1)
	if r.count("keyword") != 0 {
		t.Error("keyword scan must not run on the fallback tool")
	}
}

func TestDiscover_NativeDiagnosticsFallback(t *testing.T) {
	r := &mockRunner{respond: func(cmd platform.Command) (string, error) {
		if cmd.Name == "diag" {
			return "", errBoom
		}
		return "", nil
	}}
	d := &mockDescriber{}
	svc := New(newMockStrategy(), r, &mockVerifier{}, d, 0, zap.NewNop())

	_, _ = svc.Discover(context.Background(), 1)
	if d.calls != 1 {
		t.Errorf("expected native diagnostics, got %d calls", d.calls)
	}
}

func TestDiscover_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	r := &mockRunner{respond: func(cmd platform.Command) (string, error) {
		cancel()
		return "", context.Canceled
	}}
	svc := New(newMockStrategy(), r, &mockVerifier{}, nil, 0, zap.NewNop())

	_, err := svc.Discover(ctx, 3)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if errors.Is(err, domain.ErrDiscoveryFailure) {
		t.Error("cancellation is not a discovery failure")
	}
	if len(r.calls) != 1 {
		t.Errorf("expected 1 call, got %d", len(r.calls))
	}
}
