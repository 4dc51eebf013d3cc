package dto

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/kailas-cloud/quotawatch/internal/domain"
	"github.com/kailas-cloud/quotawatch/internal/domain/quota"
)

func TestFromSnapshot(t *testing.T) {
	reset := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	pro := quota.Model{ID: "pro", Label: "Pro", OriginalLabel: "Gemini Pro", RemainingFraction: 0.25,
		HasQuota: true, ResetAt: reset, ResetText: "2h 0m", Status: quota.StatusWarning}
	bare := quota.Model{ID: "bare", Label: "Bare", Status: quota.StatusUnknown}
	snap := quota.Snapshot{
		Timestamp: reset.Add(-2 * time.Hour),
		Connected: true,
		Models:    []quota.Model{pro, bare},
		Groups: []quota.Group{{ID: "pro", Name: "Pro", Models: []quota.Model{pro},
			RemainingPercentage: 25, HasQuota: true, ResetAt: reset, Status: quota.StatusWarning}},
		User:   quota.UnknownEntitlement(),
		Alerts: []quota.Alert{{ModelID: "pro", Label: "Pro", Status: quota.StatusWarning, Percentage: 25}},
	}

	got := FromSnapshot(&snap)

	if len(got.Models) != 2 {
		t.Fatalf("models = %d", len(got.Models))
	}
	if p := got.Models[0].RemainingPercentage; p == nil || *p != 25 {
		t.Errorf("pro percentage = %v", p)
	}
	if got.Models[1].RemainingPercentage != nil || got.Models[1].ResetAt != nil {
		t.Errorf("bare model must have null quota fields: %+v", got.Models[1])
	}
	if len(got.Groups) != 1 || got.Groups[0].ModelIDs[0] != "pro" {
		t.Errorf("groups = %+v", got.Groups)
	}
	if got.User.AvailablePromptCredits != quota.UnknownAmount || got.User.Plan != quota.Unknown {
		t.Errorf("user = %+v", got.User)
	}
	if len(got.Alerts) != 1 || got.Alerts[0].Status != "warning" {
		t.Errorf("alerts = %+v", got.Alerts)
	}

	data, err := json.Marshal(got)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(data), `"remaining_percentage":null`) {
		t.Errorf("missing null percentage: %s", data)
	}
}

func TestFromSnapshot_GroupingDisabled(t *testing.T) {
	snap := quota.Disconnected(time.Now(), errors.New("gone"))
	got := FromSnapshot(&snap)
	if got.Groups != nil {
		t.Errorf("groups must be omitted, got %+v", got.Groups)
	}
	if got.Models == nil {
		t.Error("models must be an empty list, not null")
	}
	if got.Connected || got.Error != "gone" {
		t.Errorf("unexpected %+v", got)
	}
}

func TestFromMalfunction(t *testing.T) {
	at := time.Now()
	m := domain.NewMalfunction(domain.ErrTransportTimeout, at)
	got := FromMalfunction(m)
	if got.Kind != "transport_timeout" || !got.Transient || got.Message != "transport timeout" {
		t.Errorf("got %+v", got)
	}

	lost := FromMalfunction(domain.NewMalfunction(domain.ErrSignalLost, at))
	if lost.Transient {
		t.Error("signal lost is not transient")
	}
}
