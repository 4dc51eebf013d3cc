// Package snapshot turns the raw quota payload into a domain snapshot.
package snapshot

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/kailas-cloud/quotawatch/internal/domain"
	"github.com/kailas-cloud/quotawatch/internal/domain/quota"
)

// Decode parses raw and builds a connected snapshot with models ordered, renamed,
// pinned and classified per settings. Groups and alerts are left empty. now is
// the reference for countdowns.
func Decode(raw []byte, settings quota.Settings, now time.Time) (quota.Snapshot, error) {
	if len(raw) == 0 {
		return quota.Snapshot{}, fmt.Errorf("empty body: %w", domain.ErrPayloadCorrupt)
	}
	var p payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return quota.Snapshot{}, fmt.Errorf("%w: %w", domain.ErrPayloadCorrupt, err)
	}
	if p.UserStatus == nil {
		return quota.Snapshot{}, fmt.Errorf("missing userStatus: %w", domain.ErrPayloadCorrupt)
	}

	us := p.UserStatus
	configs := us.CascadeModelConfigData
	if configs == nil {
		configs = p.CascadeModelConfigData
	}
	tier := us.UserTier
	if tier == nil {
		tier = p.UserTier
	}

	var models []quota.Model
	if configs != nil {
		models = decodeModels(configs.ClientModelConfigs, settings, now)
		order(models, preferredLabels(configs.ClientModelSorts))
	}

	return quota.Snapshot{
		Timestamp: now,
		Connected: true,
		Models:    models,
		User:      decodeEntitlement(us, tier),
	}, nil
}

func decodeModels(cfgs []modelConfig, settings quota.Settings, now time.Time) []quota.Model {
	thresholds := settings.Thresholds()
	models := make([]quota.Model, 0, len(cfgs))
	seen := make(map[string]bool, len(cfgs))

	for _, c := range cfgs {
		id := modelID(c)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true

		m := quota.Model{
			ID:             id,
			Label:          c.Label,
			OriginalLabel:  c.Label,
			SupportsImages: c.SupportsImages,
			Recommended:    c.IsRecommended,
			Pinned:         settings.IsPinnedModel(id),
		}
		if m.Label == "" {
			m.Label, m.OriginalLabel = id, id
		}
		if name := settings.ModelNames[id]; name != "" {
			m.Label = name
		}

		if q := c.QuotaInfo; q != nil {
			m.HasQuota = true
			m.RemainingFraction = clamp01(q.RemainingFraction)
			if t, ok := parseResetTime(q.ResetTime); ok {
				m.ResetAt = t
				m.ResetIn = t.Sub(now)
				m.ResetText = Countdown(m.ResetIn)
			}
		}
		m.Status = thresholds.Classify(m.Percentage(), m.Exhausted(), m.HasQuota)
		models = append(models, m)
	}
	return models
}

// resetLayouts are tried in order. Layouts without a zone read as UTC.
var resetLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
}

func parseResetTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range resetLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func modelID(c modelConfig) string {
	if c.ModelOrAlias != nil {
		if c.ModelOrAlias.Model != "" {
			return c.ModelOrAlias.Model
		}
		if c.ModelOrAlias.Alias != "" {
			return c.ModelOrAlias.Alias
		}
	}
	return c.Label
}

func clamp01(f float64) float64 {
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	default:
		return f
	}
}

// preferredLabels flattens the first sort definition into a label sequence.
func preferredLabels(sorts []modelSort) []string {
	if len(sorts) == 0 {
		return nil
	}
	var labels []string
	for _, g := range sorts[0].Groups {
		labels = append(labels, g.ModelLabels...)
	}
	return labels
}

// order sorts models by the preferred label sequence; unlisted models follow
// in lexical order of their original label.
func order(models []quota.Model, preferred []string) {
	rank := make(map[string]int, len(preferred))
	for i, l := range preferred {
		if _, dup := rank[l]; !dup {
			rank[l] = i
		}
	}
	sort.SliceStable(models, func(i, j int) bool {
		ri, iok := rank[models[i].OriginalLabel]
		rj, jok := rank[models[j].OriginalLabel]
		switch {
		case iok && jok:
			return ri < rj
		case iok != jok:
			return iok
		default:
			return models[i].OriginalLabel < models[j].OriginalLabel
		}
	})
}

func decodeEntitlement(us *userStatus, tier *userTier) quota.Entitlement {
	e := quota.UnknownEntitlement()
	e.Name = str(us.Name)
	e.Email = str(us.Email)
	if tier != nil {
		e.TierID = str(tier.ID)
		e.TierName = str(tier.Name)
	}
	if ps := us.PlanStatus; ps != nil {
		e.AvailablePromptCredits = amount(ps.AvailablePromptCredits)
		e.AvailableFlowCredits = amount(ps.AvailableFlowCredits)
		if pi := ps.PlanInfo; pi != nil {
			e.PlanName = str(pi.PlanName)
			e.TeamsTier = str(pi.TeamsTier)
			e.MonthlyPromptCredits = amount(pi.MonthlyPromptCredits)
			e.MonthlyFlowCredits = amount(pi.MonthlyFlowCredits)
			e.CanBuyMoreCredits = pi.CanBuyMoreCredits
			e.BrowserEnabled = pi.BrowserEnabled
		}
	}
	return e
}

func str(p *string) string {
	if p == nil || *p == "" {
		return quota.Unknown
	}
	return *p
}

func amount(p *flexInt) int64 {
	if p == nil {
		return quota.UnknownAmount
	}
	return int64(*p)
}
