package quota

import "time"

// Model is one AI model's quota state for a single poll. Immutable once built.
type Model struct {
	ID                string
	Label             string // display label, custom name applied
	OriginalLabel     string
	RemainingFraction float64
	HasQuota          bool // false when the payload carried no quota sub-object
	ResetAt           time.Time
	ResetIn           time.Duration
	ResetText         string
	Status            Status
	Pinned            bool
	SupportsImages    bool
	Recommended       bool
}

// Percentage returns the remaining quota in percent.
func (m Model) Percentage() float64 {
	return m.RemainingFraction * 100
}

// Exhausted reports whether the quota is fully consumed.
func (m Model) Exhausted() bool {
	return m.HasQuota && m.RemainingFraction == 0
}
