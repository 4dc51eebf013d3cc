package platform

import (
	"fmt"

	"github.com/kailas-cloud/quotawatch/internal/domain"
)

// windowsStrategy lists processes with PowerShell CIM queries, falling back to
// WMIC where PowerShell is missing or script execution is blocked.
type windowsStrategy struct {
	switcher
	m matchers
}

func newWindowsStrategy(m matchers) *windowsStrategy {
	return &windowsStrategy{switcher: newSwitcher(ToolPowerShell, ToolWMIC), m: m}
}

func (s *windowsStrategy) OS() string { return "windows" }

func powershell(script string) Command {
	return Command{
		Name: "powershell",
		Args: []string{"-NoProfile", "-NonInteractive", "-ExecutionPolicy", "Bypass", "-Command", script},
	}
}

func (s *windowsStrategy) ListCandidates() Command {
	name := s.m.byName.ProcessName
	if s.active == ToolWMIC {
		return Command{
			Name: "wmic",
			Args: []string{"process", "where", fmt.Sprintf("name='%s'", name), "get", "ProcessId,CommandLine", "/format:list"},
		}
	}
	return powershell(fmt.Sprintf(
		`Get-CimInstance -ClassName Win32_Process -Filter "Name='%s'" | Select-Object ProcessId,Name,CommandLine | ConvertTo-Json -Compress`,
		name))
}

func (s *windowsStrategy) ParseCandidates(output string) []domain.ProcessCandidate {
	if s.active == ToolWMIC {
		return ParseWMICProcesses(output, s.m.byName)
	}
	return ParsePowerShellProcesses(output, s.m.byName)
}

func (s *windowsStrategy) KeywordScan() (Command, bool) {
	if s.active != ToolPowerShell {
		return Command{}, false
	}
	return powershell(fmt.Sprintf(
		`Get-CimInstance -ClassName Win32_Process | Where-Object { $_.CommandLine -match '%s' } | Select-Object ProcessId,Name,CommandLine | ConvertTo-Json -Compress`,
		s.m.profile.KeywordMarker)), true
}

func (s *windowsStrategy) ParseKeywordScan(output string) []domain.ProcessCandidate {
	return ParsePowerShellProcesses(output, s.m.byKeyword)
}

func (s *windowsStrategy) ListPorts(pid int) Command {
	if s.active == ToolWMIC {
		return Command{Name: "netstat", Args: []string{"-ano", "-p", "TCP"}}
	}
	return powershell(fmt.Sprintf(
		`Get-NetTCPConnection -State Listen -OwningProcess %d | Select-Object -ExpandProperty LocalPort`, pid))
}

func (s *windowsStrategy) ParsePorts(output string, pid int) []int {
	if s.active == ToolWMIC {
		return ParseNetstatPorts(output, pid)
	}
	return ParsePortLines(output)
}

func (s *windowsStrategy) Diagnostics() Command {
	if s.active == ToolWMIC {
		return Command{Name: "tasklist", Args: []string{"/FO", "CSV", "/NH", "/FI", "IMAGENAME eq language_server*"}}
	}
	return powershell(`Get-Process | Where-Object { $_.ProcessName -match 'language|antigravity' } | ` +
		`Select-Object Id,ProcessName,Path | Format-Table -AutoSize | Out-String -Width 300`)
}
