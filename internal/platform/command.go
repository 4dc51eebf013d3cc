package platform

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/kailas-cloud/quotawatch/internal/domain"
)

// ErrCommandTimeout signals a command abandoned at its deadline.
var ErrCommandTimeout = fmt.Errorf("command timed out: %w", domain.ErrTransportTimeout)

// Command is an executable with its argument vector.
type Command struct {
	Name string
	Args []string
}

// String renders the command for logs.
func (c Command) String() string {
	if len(c.Args) == 0 {
		return c.Name
	}
	return c.Name + " " + strings.Join(c.Args, " ")
}

// CommandError wraps a failed command with its stderr for signature matching.
type CommandError struct {
	Command string
	Stderr  string
	Err     error
}

func (e *CommandError) Error() string {
	msg := e.Command + ": " + e.Err.Error()
	if e.Stderr != "" {
		msg += ": " + firstLine(e.Stderr)
	}
	return msg
}

func (e *CommandError) Unwrap() error { return e.Err }

// Runner executes a command and returns its stdout.
type Runner interface {
	Run(ctx context.Context, cmd Command) (string, error)
}

// ExecRunner runs commands through os/exec with a per-command deadline.
type ExecRunner struct {
	timeout time.Duration
}

// NewExecRunner creates a runner. timeout bounds every command.
func NewExecRunner(timeout time.Duration) *ExecRunner {
	return &ExecRunner{timeout: timeout}
}

// Run executes cmd. Exit status 1 with empty stderr is treated as "no matches"
// (grep, pgrep, lsof convention) and returns the output without error.
func (r *ExecRunner) Run(ctx context.Context, cmd Command) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	c := exec.CommandContext(ctx, cmd.Name, cmd.Args...)
	// Stop waiting on inherited pipes shortly after the kill; the child may outlive us.
	c.WaitDelay = 500 * time.Millisecond
	var stdout, stderr bytes.Buffer
	c.Stdout = &stdout
	c.Stderr = &stderr

	err := c.Run()
	out := stdout.String()
	if err == nil {
		return out, nil
	}

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return out, &CommandError{Command: cmd.String(), Stderr: stderr.String(), Err: ErrCommandTimeout}
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 && strings.TrimSpace(stderr.String()) == "" {
		return out, nil
	}

	return out, classifyFailure(cmd, err, stderr.String(), out)
}

// toolMissingSignatures are fragments of shell and PowerShell errors meaning the
// tool cannot run here at all, as opposed to running and failing.
var toolMissingSignatures = []string{
	"is not recognized as",
	"commandnotfoundexception",
	"command not found",
	"no such file or directory",
	"executable file not found",
	"running scripts is disabled",
	"cannot be loaded because",
	"invalid class",
	"invalid namespace",
	"not supported on this platform",
	"wmic is deprecated",
}

func classifyFailure(cmd Command, err error, stderr, stdout string) error {
	cause := err
	if IsToolMissing(err, stderr+"\n"+stdout) {
		cause = fmt.Errorf("%w: %w", domain.ErrToolUnavailable, err)
	}
	return &CommandError{Command: cmd.String(), Stderr: stderr, Err: cause}
}

// IsToolMissing reports whether an exec error and its output match a
// tool-unavailable signature.
func IsToolMissing(err error, output string) bool {
	if errors.Is(err, exec.ErrNotFound) {
		return true
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		// 127: POSIX shell command not found, 9009: cmd.exe command not found.
		if code := exitErr.ExitCode(); code == 127 || code == 9009 {
			return true
		}
	}
	lower := strings.ToLower(output)
	for _, sig := range toolMissingSignatures {
		if strings.Contains(lower, sig) {
			return true
		}
	}
	return false
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexAny(s, "\r\n"); i >= 0 {
		return s[:i]
	}
	return s
}
