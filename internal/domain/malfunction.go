package domain

import (
	"errors"
	"time"
)

// MalfunctionKind is the classification delivered to the malfunction callback.
type MalfunctionKind string

// Malfunction kinds, one per error class.
const (
	KindDiscoveryFailure MalfunctionKind = "discovery_failure"
	KindToolUnavailable  MalfunctionKind = "tool_unavailable"
	KindSignalLost       MalfunctionKind = "signal_lost"
	KindTransportTimeout MalfunctionKind = "transport_timeout"
	KindPayloadCorrupt   MalfunctionKind = "payload_corrupt"
	KindConfiguration    MalfunctionKind = "configuration_error"
	KindInternal         MalfunctionKind = "internal"
)

// Transient reports whether the kind is covered by the next scheduled poll.
func (k MalfunctionKind) Transient() bool {
	return k == KindTransportTimeout
}

// Malfunction is a classified error event.
type Malfunction struct {
	Kind MalfunctionKind
	Err  error
	At   time.Time
}

// NewMalfunction classifies err and stamps it.
func NewMalfunction(err error, at time.Time) Malfunction {
	return Malfunction{Kind: Classify(err), Err: err, At: at}
}

// Classify maps an error onto its malfunction kind.
func Classify(err error) MalfunctionKind {
	switch {
	case errors.Is(err, ErrDiscoveryFailure):
		return KindDiscoveryFailure
	case errors.Is(err, ErrSignalLost):
		return KindSignalLost
	case errors.Is(err, ErrTransportTimeout):
		return KindTransportTimeout
	case errors.Is(err, ErrPayloadCorrupt):
		return KindPayloadCorrupt
	case errors.Is(err, ErrToolUnavailable):
		return KindToolUnavailable
	case errors.Is(err, ErrInvalidConfiguration):
		return KindConfiguration
	default:
		return KindInternal
	}
}
