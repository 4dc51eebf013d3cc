package quota

import "time"

// Unknown is the sentinel for missing string fields in entitlement info.
const Unknown = "unknown"

// UnknownAmount is the sentinel for missing numeric fields in entitlement info.
const UnknownAmount int64 = -1

// Entitlement is the user's identity and plan as reported by the language server.
type Entitlement struct {
	Name                   string
	Email                  string
	TierID                 string
	TierName               string
	PlanName               string
	TeamsTier              string
	AvailablePromptCredits int64
	MonthlyPromptCredits   int64
	AvailableFlowCredits   int64
	MonthlyFlowCredits     int64
	CanBuyMoreCredits      bool
	BrowserEnabled         bool
}

// UnknownEntitlement returns an entitlement with every field at its sentinel.
func UnknownEntitlement() Entitlement {
	return Entitlement{
		Name:                   Unknown,
		Email:                  Unknown,
		TierID:                 Unknown,
		TierName:               Unknown,
		PlanName:               Unknown,
		TeamsTier:              Unknown,
		AvailablePromptCredits: UnknownAmount,
		MonthlyPromptCredits:   UnknownAmount,
		AvailableFlowCredits:   UnknownAmount,
		MonthlyFlowCredits:     UnknownAmount,
	}
}

// Alert records a model crossing into a more severe status.
type Alert struct {
	ModelID    string
	Label      string
	Status     Status
	Percentage float64
}

// Snapshot is the unit of truth handed to downstream consumers. Always replaced, never diffed.
type Snapshot struct {
	Timestamp time.Time
	Connected bool
	Error     string
	Models    []Model
	Groups    []Group // nil when grouping is disabled
	User      Entitlement
	Alerts    []Alert
}

// Disconnected builds an offline snapshot carrying the cause.
func Disconnected(at time.Time, err error) Snapshot {
	s := Snapshot{Timestamp: at, User: UnknownEntitlement()}
	if err != nil {
		s.Error = err.Error()
	}
	return s
}

// Model returns the model with the given id.
func (s *Snapshot) Model(id string) (Model, bool) {
	for _, m := range s.Models {
		if m.ID == id {
			return m, true
		}
	}
	return Model{}, false
}
