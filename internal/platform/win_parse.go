package platform

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/kailas-cloud/quotawatch/internal/domain"
)

// psProcess is one Win32_Process row as emitted by ConvertTo-Json.
type psProcess struct {
	ProcessID   int     `json:"ProcessId"`
	Name        string  `json:"Name"`
	CommandLine *string `json:"CommandLine"`
}

// ParsePowerShellProcesses reads ConvertTo-Json output, which is a single
// object for one match and an array for several. Leading noise such as
// progress or warning lines is skipped; non-JSON output yields nothing.
func ParsePowerShellProcesses(output string, m Matcher) []domain.ProcessCandidate {
	start := strings.IndexAny(output, "[{")
	if start < 0 {
		return nil
	}
	data := []byte(strings.TrimSpace(output[start:]))

	var rows []psProcess
	if data[0] == '[' {
		if err := json.Unmarshal(data, &rows); err != nil {
			return nil
		}
	} else {
		var row psProcess
		if err := json.Unmarshal(data, &row); err != nil {
			return nil
		}
		rows = []psProcess{row}
	}

	var out []domain.ProcessCandidate
	for _, r := range rows {
		if r.CommandLine == nil {
			continue
		}
		if c, ok := m.Match(r.ProcessID, *r.CommandLine); ok {
			out = append(out, c)
		}
	}
	return out
}

// ParseWMICProcesses reads `wmic ... /format:list` output: blank-line separated
// blocks of Key=Value lines.
func ParseWMICProcesses(output string, m Matcher) []domain.ProcessCandidate {
	text := normalizeNewlines(output)

	var out []domain.ProcessCandidate
	for _, block := range strings.Split(text, "\n\n") {
		var cmdline string
		pid := 0
		for _, line := range strings.Split(block, "\n") {
			key, val, ok := strings.Cut(line, "=")
			if !ok {
				continue
			}
			switch strings.TrimSpace(key) {
			case "CommandLine":
				cmdline = strings.TrimSpace(val)
			case "ProcessId":
				pid, _ = strconv.Atoi(strings.TrimSpace(val))
			}
		}
		if c, ok := m.Match(pid, cmdline); ok {
			out = append(out, c)
		}
	}
	return out
}

// ParseNetstatPorts reads `netstat -ano` and returns ports listened on by pid.
// A socket counts as listening when its foreign address is the wildcard, which
// holds regardless of the localized state column.
func ParseNetstatPorts(output string, pid int) []int {
	want := strconv.Itoa(pid)
	var ports []int
	for _, line := range strings.Split(normalizeNewlines(output), "\n") {
		fields := strings.Fields(line)
		if len(fields) < 5 || !strings.HasPrefix(strings.ToUpper(fields[0]), "TCP") {
			continue
		}
		if fields[len(fields)-1] != want {
			continue
		}
		foreign := fields[2]
		if foreign != "0.0.0.0:0" && foreign != "[::]:0" && foreign != "*:*" {
			continue
		}
		if p := portOf(fields[1]); p > 0 {
			ports = append(ports, p)
		}
	}
	return sortedUnique(ports)
}

// ParsePortLines reads one port number per line, as printed by
// `Select-Object -ExpandProperty LocalPort`.
func ParsePortLines(output string) []int {
	var ports []int
	for _, line := range strings.Split(normalizeNewlines(output), "\n") {
		p, err := strconv.Atoi(strings.TrimSpace(line))
		if err == nil && p > 0 && p < 65536 {
			ports = append(ports, p)
		}
	}
	return sortedUnique(ports)
}

// portOf extracts the port from host:port, [v6]:port or *:port.
func portOf(addr string) int {
	i := strings.LastIndex(addr, ":")
	if i < 0 {
		return 0
	}
	p, err := strconv.Atoi(addr[i+1:])
	if err != nil || p <= 0 || p > 65535 {
		return 0
	}
	return p
}

func normalizeNewlines(s string) string {
	s = strings.ReplaceAll(s, "\x00", "")
	return strings.ReplaceAll(s, "\r", "")
}
