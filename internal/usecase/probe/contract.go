package probe

import (
	"context"

	"github.com/kailas-cloud/quotawatch/internal/domain"
	"github.com/kailas-cloud/quotawatch/internal/platform"
)

// PortCommands builds and parses the per-OS listening-port command.
type PortCommands interface {
	ListPorts(pid int) platform.Command
	ParsePorts(output string, pid int) []int
}

// Runner executes OS commands.
type Runner interface {
	Run(ctx context.Context, cmd platform.Command) (string, error)
}

// NativePorts lists listening ports through OS APIs.
type NativePorts interface {
	ListeningPorts(ctx context.Context, pid int) ([]int, error)
}

// Pinger sends the authenticated liveness request.
type Pinger interface {
	Ping(ctx context.Context, target domain.ConnectionTarget) error
}
