package domain

import "strconv"

// ProcessCandidate is a process whose command line plausibly belongs to the
// language server, pending network verification.
type ProcessCandidate struct {
	PID          int
	DeclaredPort int // 0 when the command line carries no port flag
	Token        string
}

// ConnectionTarget is a verified (port, token) pair. Replaced wholesale on re-discovery.
type ConnectionTarget struct {
	Port  int
	Token string
}

// IsZero reports whether no target has been established.
func (t ConnectionTarget) IsZero() bool {
	return t.Port == 0 && t.Token == ""
}

// Addr returns the loopback host:port of the target.
func (t ConnectionTarget) Addr() string {
	return "127.0.0.1:" + strconv.Itoa(t.Port)
}
