// Package alert deduplicates low-quota notifications per model.
package alert

import (
	"sync"

	"github.com/kailas-cloud/quotawatch/internal/domain/quota"
)

type level int

const (
	levelNormal level = iota
	levelWarned
	levelCritical
)

// Tracker runs one state machine per model: normal -> warned -> critical,
// back to normal only once the model recovers above the warning threshold.
// An alert is emitted on each upward step and never repeated within a level.
type Tracker struct {
	mu    sync.Mutex
	state map[string]level
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{state: make(map[string]level)}
}

// Observe advances every model's state and returns the alerts raised.
// Models missing from the list are forgotten.
func (t *Tracker) Observe(models []quota.Model) []quota.Alert {
	t.mu.Lock()
	defer t.mu.Unlock()

	var alerts []quota.Alert
	present := make(map[string]bool, len(models))
	for _, m := range models {
		present[m.ID] = true
		cur := t.state[m.ID]

		next := cur
		switch m.Status {
		case quota.StatusNormal:
			next = levelNormal
		case quota.StatusWarning:
			if cur == levelNormal {
				next = levelWarned
			}
		case quota.StatusCritical, quota.StatusExhausted:
			next = levelCritical
		}

		if next > cur {
			alerts = append(alerts, quota.Alert{
				ModelID:    m.ID,
				Label:      m.Label,
				Status:     m.Status,
				Percentage: m.Percentage(),
			})
		}
		t.state[m.ID] = next
	}

	for id := range t.state {
		if !present[id] {
			delete(t.state, id)
		}
	}
	return alerts
}

// Reset forgets all state.
func (t *Tracker) Reset() {
	t.mu.Lock()
	t.state = make(map[string]level)
	t.mu.Unlock()
}
