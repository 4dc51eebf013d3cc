package quota

import (
	"fmt"
	"time"

	"github.com/kailas-cloud/quotawatch/internal/domain"
)

// Settings bounds.
const (
	MinRefreshInterval = 10 * time.Second
	MaxRefreshInterval = time.Hour
	MaxTolerance       = 0.5
)

// Settings is the user configuration surface read by the core.
type Settings struct {
	RefreshInterval   time.Duration
	WarningThreshold  int
	CriticalThreshold int
	GroupingEnabled   bool
	GroupingTolerance float64
	Membership        Membership
	ModelNames        map[string]string // modelId -> custom display label
	GroupNames        map[string]string // member modelId -> custom group name
	PinnedModels      []string
	PinnedGroups      []string
}

// DefaultSettings returns the settings used before the user changes anything.
func DefaultSettings() Settings {
	return Settings{
		RefreshInterval:   2 * time.Minute,
		WarningThreshold:  30,
		CriticalThreshold: 10,
		GroupingEnabled:   true,
		GroupingTolerance: 1e-6,
		Membership:        Membership{},
		ModelNames:        map[string]string{},
		GroupNames:        map[string]string{},
	}
}

// Thresholds returns the warning/critical pair.
func (s *Settings) Thresholds() Thresholds {
	return Thresholds{Warning: s.WarningThreshold, Critical: s.CriticalThreshold}
}

// Validate rejects out-of-range values. Values are never clamped.
func (s *Settings) Validate() error {
	if s.RefreshInterval < MinRefreshInterval || s.RefreshInterval > MaxRefreshInterval {
		return domain.NewConfigurationError("refresh_interval",
			fmt.Sprintf("must be between %s and %s, got %s", MinRefreshInterval, MaxRefreshInterval, s.RefreshInterval))
	}
	if s.WarningThreshold < 2 || s.WarningThreshold > 99 {
		return domain.NewConfigurationError("warning_threshold",
			fmt.Sprintf("must be between 2 and 99, got %d", s.WarningThreshold))
	}
	if s.CriticalThreshold < 1 || s.CriticalThreshold > 98 {
		return domain.NewConfigurationError("critical_threshold",
			fmt.Sprintf("must be between 1 and 98, got %d", s.CriticalThreshold))
	}
	if s.CriticalThreshold >= s.WarningThreshold {
		return domain.NewConfigurationError("critical_threshold",
			fmt.Sprintf("must be below warning_threshold (%d), got %d", s.WarningThreshold, s.CriticalThreshold))
	}
	if s.GroupingTolerance < 0 || s.GroupingTolerance > MaxTolerance {
		return domain.NewConfigurationError("grouping_tolerance",
			fmt.Sprintf("must be between 0 and %v, got %v", MaxTolerance, s.GroupingTolerance))
	}
	return nil
}

// IsPinnedModel reports whether the model id is pinned.
func (s *Settings) IsPinnedModel(id string) bool {
	return contains(s.PinnedModels, id)
}

// IsPinnedGroup reports whether the group id is pinned.
func (s *Settings) IsPinnedGroup(id string) bool {
	return contains(s.PinnedGroups, id)
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
