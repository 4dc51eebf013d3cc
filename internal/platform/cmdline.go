package platform

import (
	"strconv"
	"strings"

	"github.com/kailas-cloud/quotawatch/internal/domain"
)

// Matcher decides whether a command line belongs to the language server.
type Matcher struct {
	ProcessName  string // required substring in name mode
	Keyword      string // required substring in keyword mode
	TokenFlag    string
	PortFlag     string
	DataDirFlag  string
	DataDirValue string
	PathMarker   string
}

// Match extracts a candidate from a process command line. A command line
// qualifies only with the token flag present and one product fingerprint:
// the data-dir argument or the product path substring.
func (m Matcher) Match(pid int, cmdline string) (domain.ProcessCandidate, bool) {
	if pid <= 0 || cmdline == "" {
		return domain.ProcessCandidate{}, false
	}
	lower := strings.ToLower(cmdline)
	if m.ProcessName != "" && !strings.Contains(lower, strings.ToLower(m.ProcessName)) {
		return domain.ProcessCandidate{}, false
	}
	if m.Keyword != "" && !strings.Contains(cmdline, m.Keyword) {
		return domain.ProcessCandidate{}, false
	}

	token := FlagValue(cmdline, m.TokenFlag)
	if token == "" {
		return domain.ProcessCandidate{}, false
	}
	if !m.fingerprint(cmdline, lower) {
		return domain.ProcessCandidate{}, false
	}

	port, _ := strconv.Atoi(FlagValue(cmdline, m.PortFlag))
	return domain.ProcessCandidate{PID: pid, DeclaredPort: port, Token: token}, true
}

func (m Matcher) fingerprint(cmdline, lower string) bool {
	if m.DataDirFlag != "" {
		v := strings.ToLower(FlagValue(cmdline, m.DataDirFlag))
		if v != "" && strings.Contains(v, strings.ToLower(m.DataDirValue)) {
			return true
		}
	}
	return m.PathMarker != "" && strings.Contains(lower, strings.ToLower(m.PathMarker))
}

// FlagValue returns the value of --flag=value or --flag value in a command line.
func FlagValue(cmdline, flag string) string {
	if flag == "" {
		return ""
	}
	fields := strings.Fields(cmdline)
	for i, f := range fields {
		f = strings.Trim(f, `"'`)
		if v, ok := strings.CutPrefix(f, flag+"="); ok {
			return strings.Trim(v, `"'`)
		}
		if f == flag && i+1 < len(fields) {
			v := strings.Trim(fields[i+1], `"'`)
			if strings.HasPrefix(v, "--") {
				return ""
			}
			return v
		}
	}
	return ""
}
