package locate

import (
	"context"

	"github.com/kailas-cloud/quotawatch/internal/domain"
	"github.com/kailas-cloud/quotawatch/internal/platform"
)

// Strategy is the per-OS command surface used by discovery.
type Strategy interface {
	Tool() platform.Tool
	Preferred() bool
	SwitchTool() bool
	ListCandidates() platform.Command
	ParseCandidates(output string) []domain.ProcessCandidate
	KeywordScan() (platform.Command, bool)
	ParseKeywordScan(output string) []domain.ProcessCandidate
	Diagnostics() platform.Command
}

// Runner executes OS commands.
type Runner interface {
	Run(ctx context.Context, cmd platform.Command) (string, error)
}

// Verifier confirms a candidate by live probing.
type Verifier interface {
	Verify(ctx context.Context, cand domain.ProcessCandidate) (domain.ConnectionTarget, bool)
}

// Describer lists loosely matching processes without OS commands.
type Describer interface {
	Describe(ctx context.Context, keywords ...string) ([]string, error)
}
