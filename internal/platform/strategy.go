package platform

import (
	"fmt"
	"sort"

	"github.com/kailas-cloud/quotawatch/internal/domain"
)

// maxToolSwitches caps flips between the two process-listing tools.
const maxToolSwitches = 2

// Tool names a process-listing sub-tool.
type Tool string

// Sub-tools per OS family. The first of each pair is preferred.
const (
	ToolPowerShell Tool = "powershell"
	ToolWMIC       Tool = "wmic"
	ToolPS         Tool = "ps"
	ToolPgrep      Tool = "pgrep"
)

// Strategy is the per-OS command surface used by discovery.
type Strategy interface {
	// OS returns the OS family the strategy serves.
	OS() string
	// Tool returns the active process-listing sub-tool.
	Tool() Tool
	// Preferred reports whether the active sub-tool is the preferred one.
	Preferred() bool
	// SwitchTool flips to the alternate sub-tool. Returns false when no
	// alternate exists or the switch cap is reached.
	SwitchTool() bool

	ListCandidates() Command
	ParseCandidates(output string) []domain.ProcessCandidate
	// KeywordScan returns the broad token-marker scan; ok is false when the
	// active sub-tool cannot express it.
	KeywordScan() (cmd Command, ok bool)
	ParseKeywordScan(output string) []domain.ProcessCandidate
	ListPorts(pid int) Command
	ParsePorts(output string, pid int) []int
	Diagnostics() Command
}

// New selects the strategy for an OS/arch pair. Called once at startup.
func New(goos, goarch string, p domain.Profile) (Strategy, error) {
	name := p.ProcessName(goos, goarch)
	if name == "" {
		return nil, fmt.Errorf("no language server process name for %s/%s", goos, goarch)
	}
	m := newMatchers(name, p)

	switch goos {
	case "windows":
		return newWindowsStrategy(m), nil
	case "darwin", "linux":
		return newPosixStrategy(goos, m), nil
	default:
		return nil, fmt.Errorf("unsupported platform %q", goos)
	}
}

// matchers bundles the name-scoped and keyword-scoped matchers of one profile.
type matchers struct {
	byName    Matcher
	byKeyword Matcher
	profile   domain.Profile
}

func newMatchers(processName string, p domain.Profile) matchers {
	base := Matcher{
		TokenFlag:    p.TokenFlag,
		PortFlag:     p.PortFlag,
		DataDirFlag:  p.DataDirFlag,
		DataDirValue: p.DataDirValue,
		PathMarker:   p.PathMarker,
	}
	byName := base
	byName.ProcessName = processName
	byKeyword := base
	byKeyword.Keyword = p.KeywordMarker
	return matchers{byName: byName, byKeyword: byKeyword, profile: p}
}

// switcher tracks the active sub-tool of a two-tool family.
type switcher struct {
	preferred Tool
	fallback  Tool
	active    Tool
	switches  int
}

func newSwitcher(preferred, fallback Tool) switcher {
	return switcher{preferred: preferred, fallback: fallback, active: preferred}
}

func (s *switcher) Tool() Tool      { return s.active }
func (s *switcher) Preferred() bool { return s.active == s.preferred }

func (s *switcher) SwitchTool() bool {
	if s.fallback == "" || s.switches >= maxToolSwitches {
		return false
	}
	if s.active == s.preferred {
		s.active = s.fallback
	} else {
		s.active = s.preferred
	}
	s.switches++
	return true
}

func sortedUnique(ports []int) []int {
	if len(ports) == 0 {
		return nil
	}
	sort.Ints(ports)
	out := ports[:1]
	for _, p := range ports[1:] {
		if p != out[len(out)-1] {
			out = append(out, p)
		}
	}
	return out
}
