package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrDiscoveryFailure signals that no verified language server was found after all phases.
	ErrDiscoveryFailure = errors.New("discovery failure")
	// ErrToolUnavailable signals a missing or blocked OS command.
	ErrToolUnavailable = errors.New("tool unavailable")
	// ErrSignalLost signals a refused or reset connection during polling.
	ErrSignalLost = errors.New("signal lost")
	// ErrTransportTimeout signals a request or command that exceeded its deadline.
	ErrTransportTimeout = errors.New("transport timeout")
	// ErrPayloadCorrupt signals a malformed or unexpected telemetry response.
	ErrPayloadCorrupt = errors.New("payload corrupt")
	// ErrInvalidConfiguration signals rejected user settings.
	ErrInvalidConfiguration = errors.New("invalid configuration")
	// ErrNotEngaged signals a poll attempted without a connection target.
	ErrNotEngaged = errors.New("no connection target engaged")
	// ErrNoPayload signals a reprocess attempted before any successful poll.
	ErrNoPayload = errors.New("no payload to reprocess")
	// ErrNotFound signals an unknown model or group id.
	ErrNotFound = errors.New("not found")
)

// ConfigurationError carries the offending settings field.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s: %s: %s", ErrInvalidConfiguration.Error(), e.Field, e.Reason)
}

func (e *ConfigurationError) Unwrap() error { return ErrInvalidConfiguration }

// NewConfigurationError creates a configuration error for a settings field.
func NewConfigurationError(field, reason string) error {
	return &ConfigurationError{Field: field, Reason: reason}
}
