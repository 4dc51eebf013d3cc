package quotawatch

import (
	"github.com/kailas-cloud/quotawatch/internal/domain"
	telemetryuc "github.com/kailas-cloud/quotawatch/internal/usecase/telemetry"
)

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrDiscoveryFailure     = domain.ErrDiscoveryFailure
	ErrToolUnavailable      = domain.ErrToolUnavailable
	ErrSignalLost           = domain.ErrSignalLost
	ErrTransportTimeout     = domain.ErrTransportTimeout
	ErrPayloadCorrupt       = domain.ErrPayloadCorrupt
	ErrInvalidConfiguration = domain.ErrInvalidConfiguration
	ErrNotEngaged           = domain.ErrNotEngaged
	ErrNoPayload            = domain.ErrNoPayload
	ErrNotFound             = domain.ErrNotFound
	ErrPollInProgress       = telemetryuc.ErrPollInProgress
)
