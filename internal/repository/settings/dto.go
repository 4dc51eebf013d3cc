package settings

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kailas-cloud/quotawatch/internal/domain"
	"github.com/kailas-cloud/quotawatch/internal/domain/quota"
)

// settingsDTO is the persisted YAML shape of quota.Settings.
type settingsDTO struct {
	RefreshInterval   time.Duration     `yaml:"refresh_interval"`
	WarningThreshold  int               `yaml:"warning_threshold"`
	CriticalThreshold int               `yaml:"critical_threshold"`
	Grouping          groupingDTO       `yaml:"grouping"`
	ModelNames        map[string]string `yaml:"model_names,omitempty"`
	Pinned            pinnedDTO         `yaml:"pinned,omitempty"`
}

type groupingDTO struct {
	Enabled    bool              `yaml:"enabled"`
	Tolerance  float64           `yaml:"tolerance"`
	Membership map[string]string `yaml:"membership,omitempty"`
	Names      map[string]string `yaml:"names,omitempty"`
}

type pinnedDTO struct {
	Models []string `yaml:"models,omitempty"`
	Groups []string `yaml:"groups,omitempty"`
}

func toDTO(s *quota.Settings) settingsDTO {
	return settingsDTO{
		RefreshInterval:   s.RefreshInterval,
		WarningThreshold:  s.WarningThreshold,
		CriticalThreshold: s.CriticalThreshold,
		Grouping: groupingDTO{
			Enabled:    s.GroupingEnabled,
			Tolerance:  s.GroupingTolerance,
			Membership: s.Membership,
			Names:      s.GroupNames,
		},
		ModelNames: s.ModelNames,
		Pinned:     pinnedDTO{Models: s.PinnedModels, Groups: s.PinnedGroups},
	}
}

func (d *settingsDTO) toDomain() quota.Settings {
	s := quota.Settings{
		RefreshInterval:   d.RefreshInterval,
		WarningThreshold:  d.WarningThreshold,
		CriticalThreshold: d.CriticalThreshold,
		GroupingEnabled:   d.Grouping.Enabled,
		GroupingTolerance: d.Grouping.Tolerance,
		Membership:        quota.Membership(d.Grouping.Membership),
		ModelNames:        d.ModelNames,
		GroupNames:        d.Grouping.Names,
		PinnedModels:      d.Pinned.Models,
		PinnedGroups:      d.Pinned.Groups,
	}
	if s.Membership == nil {
		s.Membership = quota.Membership{}
	}
	if s.ModelNames == nil {
		s.ModelNames = map[string]string{}
	}
	if s.GroupNames == nil {
		s.GroupNames = map[string]string{}
	}
	return s
}

// Decode parses a settings document. Absent fields keep their defaults; the
// result is validated and never clamped.
func Decode(data []byte) (quota.Settings, error) {
	defaults := quota.DefaultSettings()
	dto := toDTO(&defaults)
	if err := yaml.Unmarshal(data, &dto); err != nil {
		return quota.Settings{}, domain.NewConfigurationError("document", err.Error())
	}
	s := dto.toDomain()
	if err := s.Validate(); err != nil {
		return quota.Settings{}, err
	}
	return s, nil
}

// Encode renders settings as YAML.
func Encode(s *quota.Settings) ([]byte, error) {
	data, err := yaml.Marshal(toDTO(s))
	if err != nil {
		return nil, fmt.Errorf("marshal settings: %w", err)
	}
	return data, nil
}
