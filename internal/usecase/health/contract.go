package health

import "context"

// StorePinger checks settings store availability.
type StorePinger interface {
	Ping(ctx context.Context) error
}

// ConnectivityChecker reports whether the language server answered the last poll.
type ConnectivityChecker interface {
	Connected() bool
}
