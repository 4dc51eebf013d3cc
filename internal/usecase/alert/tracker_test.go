package alert

import (
	"testing"

	"github.com/kailas-cloud/quotawatch/internal/domain/quota"
)

func m(id string, s quota.Status) quota.Model {
	return quota.Model{ID: id, Label: id, Status: s, HasQuota: true}
}

func TestObserve_Transitions(t *testing.T) {
	tr := NewTracker()
	steps := []struct {
		status quota.Status
		alert  bool
	}{
		{quota.StatusNormal, false},
		{quota.StatusWarning, true},
		{quota.StatusWarning, false},
		{quota.StatusCritical, true},
		{quota.StatusCritical, false},
		{quota.StatusWarning, false},
		{quota.StatusExhausted, false},
		{quota.StatusNormal, false},
		{quota.StatusCritical, true},
	}
	for i, s := range steps {
		got := tr.Observe([]quota.Model{m("a", s.status)})
		if (len(got) == 1) != s.alert {
			t.Fatalf("step %d (%s): expected alert=%v, got %v", i, s.status, s.alert, got)
		}
		if s.alert && got[0].Status != s.status {
			t.Errorf("step %d: alert status %s", i, got[0].Status)
		}
	}
}

func TestObserve_UnknownKeepsState(t *testing.T) {
	tr := NewTracker()
	tr.Observe([]quota.Model{m("a", quota.StatusWarning)})
	if got := tr.Observe([]quota.Model{m("a", quota.StatusUnknown)}); len(got) != 0 {
		t.Errorf("unknown status must not alert: %v", got)
	}
	if got := tr.Observe([]quota.Model{m("a", quota.StatusWarning)}); len(got) != 0 {
		t.Errorf("warning must not repeat after unknown: %v", got)
	}
}

func TestObserve_ForgetsMissingModels(t *testing.T) {
	tr := NewTracker()
	tr.Observe([]quota.Model{m("a", quota.StatusWarning)})
	tr.Observe(nil)
	if got := tr.Observe([]quota.Model{m("a", quota.StatusWarning)}); len(got) != 1 {
		t.Errorf("expected fresh alert after model reappeared, got %v", got)
	}
}

func TestObserve_Independent(t *testing.T) {
	tr := NewTracker()
	got := tr.Observe([]quota.Model{m("a", quota.StatusWarning), m("b", quota.StatusCritical), m("c", quota.StatusNormal)})
	if len(got) != 2 || got[0].ModelID != "a" || got[1].ModelID != "b" {
		t.Errorf("unexpected alerts %v", got)
	}
}

func TestReset(t *testing.T) {
	tr := NewTracker()
	tr.Observe([]quota.Model{m("a", quota.StatusCritical)})
	tr.Reset()
	if got := tr.Observe([]quota.Model{m("a", quota.StatusCritical)}); len(got) != 1 {
		t.Errorf("expected alert after reset, got %v", got)
	}
}
