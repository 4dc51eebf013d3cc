package platform

import (
	"context"
	"fmt"
	"strings"

	gnet "github.com/shirou/gopsutil/v3/net"
	"github.com/shirou/gopsutil/v3/process"
)

// NativeLister reads sockets and processes through OS APIs instead of
// commands. Used when the command tools are missing or print nothing usable.
type NativeLister struct{}

// ListeningPorts returns TCP ports in LISTEN state owned by pid.
func (NativeLister) ListeningPorts(ctx context.Context, pid int) ([]int, error) {
	conns, err := gnet.ConnectionsPidWithContext(ctx, "tcp", int32(pid))
	if err != nil {
		return nil, fmt.Errorf("connections of pid %d: %w", pid, err)
	}
	var ports []int
	for _, c := range conns {
		if c.Status == "LISTEN" && c.Laddr.Port > 0 {
			ports = append(ports, int(c.Laddr.Port))
		}
	}
	return sortedUnique(ports), nil
}

// Describe lists "pid name cmdline" for processes whose name or command line
// contains any of the keywords, case-insensitively.
func (NativeLister) Describe(ctx context.Context, keywords ...string) ([]string, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("list processes: %w", err)
	}

	var lines []string
	for _, p := range procs {
		name, _ := p.NameWithContext(ctx)
		cmdline, _ := p.CmdlineWithContext(ctx)
		hay := strings.ToLower(name + " " + cmdline)
		for _, k := range keywords {
			if strings.Contains(hay, strings.ToLower(k)) {
				lines = append(lines, fmt.Sprintf("%d %s %s", p.Pid, name, cmdline))
				break
			}
		}
	}
	return lines, nil
}
