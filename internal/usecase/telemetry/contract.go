package telemetry

import (
	"context"

	"github.com/kailas-cloud/quotawatch/internal/domain"
	"github.com/kailas-cloud/quotawatch/internal/domain/quota"
)

// Locator discovers the language server.
type Locator interface {
	Discover(ctx context.Context, maxAttempts int) (domain.ConnectionTarget, error)
}

// Fetcher retrieves the raw quota payload.
type Fetcher interface {
	UserStatus(ctx context.Context, target domain.ConnectionTarget) ([]byte, error)
}

// SettingsWriter persists changes the core makes to user settings: recomputed
// membership and custom names. Update applies fn to the stored settings and
// returns the result.
type SettingsWriter interface {
	Update(ctx context.Context, fn func(*quota.Settings)) (quota.Settings, error)
}

// Subscriber receives outbound notifications. Calls are synchronous and must
// not block.
type Subscriber interface {
	OnSnapshot(snap quota.Snapshot)
	OnMalfunction(m domain.Malfunction)
}
