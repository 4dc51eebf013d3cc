// Package dto holds the JSON shapes served by the status server, pushed over
// the event stream and printed by one-shot mode.
package dto

import (
	"time"

	"github.com/kailas-cloud/quotawatch/internal/domain"
	"github.com/kailas-cloud/quotawatch/internal/domain/quota"
)

// ErrorCode is a stable machine-readable error class.
type ErrorCode string

// Error codes.
const (
	ErrorCodeBadRequest       ErrorCode = "bad_request"
	ErrorCodeUnauthorized     ErrorCode = "unauthorized"
	ErrorCodeNotFound         ErrorCode = "not_found"
	ErrorCodeNotEngaged       ErrorCode = "not_engaged"
	ErrorCodeNoPayload        ErrorCode = "no_payload"
	ErrorCodePollInProgress   ErrorCode = "poll_in_progress"
	ErrorCodeDiscoveryFailure ErrorCode = "discovery_failure"
	ErrorCodeSignalLost       ErrorCode = "signal_lost"
	ErrorCodeTimeout          ErrorCode = "transport_timeout"
	ErrorCodePayloadCorrupt   ErrorCode = "payload_corrupt"
	ErrorCodeValidation       ErrorCode = "validation_failed"
	ErrorCodeInternal         ErrorCode = "internal_error"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// Model is one model's quota line.
type Model struct {
	ID                  string     `json:"id"`
	Label               string     `json:"label"`
	OriginalLabel       string     `json:"original_label"`
	RemainingPercentage *float64   `json:"remaining_percentage"` // null when the server sent no quota
	ResetAt             *time.Time `json:"reset_at,omitempty"`
	ResetIn             string     `json:"reset_in,omitempty"`
	Status              string     `json:"status"`
	Exhausted           bool       `json:"exhausted"`
	Pinned              bool       `json:"pinned,omitempty"`
	SupportsImages      bool       `json:"supports_images,omitempty"`
	Recommended         bool       `json:"recommended,omitempty"`
}

// Group is a shared quota pool.
type Group struct {
	ID                  string     `json:"id"`
	Name                string     `json:"name"`
	ModelIDs            []string   `json:"model_ids"`
	RemainingPercentage *float64   `json:"remaining_percentage"`
	ResetAt             *time.Time `json:"reset_at,omitempty"`
	ResetIn             string     `json:"reset_in,omitempty"`
	Status              string     `json:"status"`
	Exhausted           bool       `json:"exhausted"`
	Pinned              bool       `json:"pinned,omitempty"`
}

// User is the entitlement block. Unknown numbers are -1.
type User struct {
	Name                   string `json:"name"`
	Email                  string `json:"email"`
	Tier                   string `json:"tier"`
	TierName               string `json:"tier_name"`
	Plan                   string `json:"plan"`
	TeamsTier              string `json:"teams_tier"`
	AvailablePromptCredits int64  `json:"available_prompt_credits"`
	MonthlyPromptCredits   int64  `json:"monthly_prompt_credits"`
	AvailableFlowCredits   int64  `json:"available_flow_credits"`
	MonthlyFlowCredits     int64  `json:"monthly_flow_credits"`
	CanBuyMoreCredits      bool   `json:"can_buy_more_credits"`
	BrowserEnabled         bool   `json:"browser_enabled"`
}

// Alert is an upward status transition.
type Alert struct {
	ModelID    string  `json:"model_id"`
	Label      string  `json:"label"`
	Status     string  `json:"status"`
	Percentage float64 `json:"percentage"`
}

// Snapshot is the full telemetry view.
type Snapshot struct {
	Timestamp time.Time `json:"timestamp"`
	Connected bool      `json:"connected"`
	Error     string    `json:"error,omitempty"`
	User      User      `json:"user"`
	Models    []Model   `json:"models"`
	Groups    []Group   `json:"groups,omitempty"`
	Alerts    []Alert   `json:"alerts,omitempty"`
}

// Malfunction is a classified error event.
type Malfunction struct {
	Kind      string    `json:"kind"`
	Message   string    `json:"message"`
	Transient bool      `json:"transient"`
	At        time.Time `json:"at"`
}

// Status describes the client's connection state. The token is never exposed.
type Status struct {
	Phase     string `json:"phase"`
	Connected bool   `json:"connected"`
	Port      int    `json:"port,omitempty"`
	PollCount int64  `json:"poll_count"`
}

// FromSnapshot converts a domain snapshot.
func FromSnapshot(s *quota.Snapshot) Snapshot {
	out := Snapshot{
		Timestamp: s.Timestamp,
		Connected: s.Connected,
		Error:     s.Error,
		User:      fromEntitlement(s.User),
		Models:    make([]Model, 0, len(s.Models)),
	}
	for i := range s.Models {
		out.Models = append(out.Models, fromModel(&s.Models[i]))
	}
	if s.Groups != nil {
		out.Groups = make([]Group, 0, len(s.Groups))
		for i := range s.Groups {
			out.Groups = append(out.Groups, fromGroup(&s.Groups[i]))
		}
	}
	for _, a := range s.Alerts {
		out.Alerts = append(out.Alerts, Alert{
			ModelID:    a.ModelID,
			Label:      a.Label,
			Status:     string(a.Status),
			Percentage: a.Percentage,
		})
	}
	return out
}

// FromMalfunction converts a classified error.
func FromMalfunction(m domain.Malfunction) Malfunction {
	out := Malfunction{Kind: string(m.Kind), Transient: m.Kind.Transient(), At: m.At}
	if m.Err != nil {
		out.Message = m.Err.Error()
	}
	return out
}

func fromModel(m *quota.Model) Model {
	out := Model{
		ID:             m.ID,
		Label:          m.Label,
		OriginalLabel:  m.OriginalLabel,
		ResetIn:        m.ResetText,
		Status:         string(m.Status),
		Exhausted:      m.Exhausted(),
		Pinned:         m.Pinned,
		SupportsImages: m.SupportsImages,
		Recommended:    m.Recommended,
	}
	if m.HasQuota {
		pct := m.Percentage()
		out.RemainingPercentage = &pct
	}
	out.ResetAt = timePtr(m.ResetAt)
	return out
}

func fromGroup(g *quota.Group) Group {
	out := Group{
		ID:        g.ID,
		Name:      g.Name,
		ModelIDs:  make([]string, 0, len(g.Models)),
		ResetIn:   g.ResetText,
		Status:    string(g.Status),
		Exhausted: g.Exhausted,
		Pinned:    g.Pinned,
	}
	for _, m := range g.Models {
		out.ModelIDs = append(out.ModelIDs, m.ID)
	}
	if g.HasQuota {
		pct := g.RemainingPercentage
		out.RemainingPercentage = &pct
	}
	out.ResetAt = timePtr(g.ResetAt)
	return out
}

func fromEntitlement(e quota.Entitlement) User {
	return User{
		Name:                   e.Name,
		Email:                  e.Email,
		Tier:                   e.TierID,
		TierName:               e.TierName,
		Plan:                   e.PlanName,
		TeamsTier:              e.TeamsTier,
		AvailablePromptCredits: e.AvailablePromptCredits,
		MonthlyPromptCredits:   e.MonthlyPromptCredits,
		AvailableFlowCredits:   e.AvailableFlowCredits,
		MonthlyFlowCredits:     e.MonthlyFlowCredits,
		CanBuyMoreCredits:      e.CanBuyMoreCredits,
		BrowserEnabled:         e.BrowserEnabled,
	}
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
