package quota

import (
	"sort"
	"strings"
	"time"
)

// GroupIDSeparator joins member model ids into a group id.
const GroupIDSeparator = "_"

// Group is a set of models drawing from one quota pool.
type Group struct {
	ID                  string
	Name                string
	Models              []Model
	RemainingPercentage float64
	HasQuota            bool
	ResetAt             time.Time
	ResetText           string
	Exhausted           bool
	Status              Status
	Pinned              bool
}

// GroupID derives the deterministic id of a member set.
func GroupID(modelIDs []string) string {
	ids := make([]string, len(modelIDs))
	copy(ids, modelIDs)
	sort.Strings(ids)
	return strings.Join(ids, GroupIDSeparator)
}

// Membership maps modelId to groupId. Replaced wholesale, never edited in place.
type Membership map[string]string

// Clone returns an independent copy.
func (m Membership) Clone() Membership {
	out := make(Membership, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Equal reports whether both mappings assign the same groups.
func (m Membership) Equal(other Membership) bool {
	if len(m) != len(other) {
		return false
	}
	for k, v := range m {
		if other[k] != v {
			return false
		}
	}
	return true
}
