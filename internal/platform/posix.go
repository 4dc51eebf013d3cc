package platform

import (
	"strconv"

	"github.com/kailas-cloud/quotawatch/internal/domain"
)

// posixStrategy serves macOS and Linux. ps is preferred since it also backs
// the keyword scan; pgrep is the fallback on minimal images without procps ps.
type posixStrategy struct {
	switcher
	goos string
	m    matchers
}

func newPosixStrategy(goos string, m matchers) *posixStrategy {
	return &posixStrategy{switcher: newSwitcher(ToolPS, ToolPgrep), goos: goos, m: m}
}

func (s *posixStrategy) OS() string { return s.goos }

var psListing = Command{Name: "ps", Args: []string{"-ww", "-eo", "pid,args"}}

func (s *posixStrategy) ListCandidates() Command {
	if s.active == ToolPgrep {
		flags := "-af"
		if s.goos == "darwin" {
			flags = "-fl"
		}
		return Command{Name: "pgrep", Args: []string{flags, s.m.byName.ProcessName}}
	}
	return psListing
}

func (s *posixStrategy) ParseCandidates(output string) []domain.ProcessCandidate {
	return ParsePidArgs(output, s.m.byName)
}

func (s *posixStrategy) KeywordScan() (Command, bool) {
	if s.active != ToolPS {
		return Command{}, false
	}
	return psListing, true
}

func (s *posixStrategy) ParseKeywordScan(output string) []domain.ProcessCandidate {
	return ParsePidArgs(output, s.m.byKeyword)
}

func (s *posixStrategy) ListPorts(pid int) Command {
	if s.goos == "linux" {
		return Command{Name: "ss", Args: []string{"-tlnp"}}
	}
	return Command{Name: "lsof", Args: []string{"-nP", "-a", "-iTCP", "-sTCP:LISTEN", "-p", strconv.Itoa(pid)}}
}

func (s *posixStrategy) ParsePorts(output string, pid int) []int {
	if s.goos == "linux" {
		return ParseSSPorts(output, pid)
	}
	return ParseLsofPorts(output)
}

func (s *posixStrategy) Diagnostics() Command {
	return Command{
		Name: "sh",
		Args: []string{"-c", "ps -ww -eo pid,ppid,args | grep -i -E 'language_server|antigravity' | grep -v grep"},
	}
}
