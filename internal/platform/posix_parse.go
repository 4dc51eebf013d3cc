package platform

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/kailas-cloud/quotawatch/internal/domain"
)

// ParsePidArgs reads "<pid> <args...>" lines as printed by `ps -eo pid,args`
// and `pgrep -af` / `pgrep -fl`. Header and malformed lines are skipped.
func ParsePidArgs(output string, m Matcher) []domain.ProcessCandidate {
	var out []domain.ProcessCandidate
	for _, line := range strings.Split(normalizeNewlines(output), "\n") {
		line = strings.TrimSpace(line)
		pidText, args, ok := strings.Cut(line, " ")
		if !ok {
			continue
		}
		pid, err := strconv.Atoi(pidText)
		if err != nil {
			continue
		}
		if c, ok := m.Match(pid, strings.TrimSpace(args)); ok {
			out = append(out, c)
		}
	}
	return out
}

var lsofListenRe = regexp.MustCompile(`:(\d+)\s+\(LISTEN\)`)

// ParseLsofPorts reads `lsof -iTCP -sTCP:LISTEN -p <pid>` output.
func ParseLsofPorts(output string) []int {
	var ports []int
	for _, m := range lsofListenRe.FindAllStringSubmatch(output, -1) {
		if p, err := strconv.Atoi(m[1]); err == nil && p > 0 && p < 65536 {
			ports = append(ports, p)
		}
	}
	return sortedUnique(ports)
}

// ParseSSPorts reads `ss -tlnp` output and keeps sockets owned by pid.
func ParseSSPorts(output string, pid int) []int {
	marker := "pid=" + strconv.Itoa(pid) + ","
	var ports []int
	for _, line := range strings.Split(normalizeNewlines(output), "\n") {
		if !strings.Contains(line, marker) {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 5 {
			continue
		}
		if p := portOf(fields[3]); p > 0 {
			ports = append(ports, p)
		}
	}
	return sortedUnique(ports)
}
