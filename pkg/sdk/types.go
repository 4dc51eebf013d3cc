package quotawatch

import (
	"github.com/kailas-cloud/quotawatch/internal/domain"
	"github.com/kailas-cloud/quotawatch/internal/domain/quota"
	"github.com/kailas-cloud/quotawatch/internal/transport/dto"
)

// Public views of a published snapshot. They serialize to the same JSON as
// the status server.
type (
	Snapshot    = dto.Snapshot
	Model       = dto.Model
	Group       = dto.Group
	User        = dto.User
	Alert       = dto.Alert
	Malfunction = dto.Malfunction
)

// Settings is the user configuration applied to every snapshot.
type Settings = quota.Settings

// DefaultSettings returns the settings used when nothing is stored.
func DefaultSettings() Settings { return quota.DefaultSettings() }

// subscriber adapts callbacks to the telemetry notification interface.
type subscriber struct {
	onSnapshot    func(Snapshot)
	onMalfunction func(Malfunction)
}

func (s subscriber) OnSnapshot(snap quota.Snapshot) {
	if s.onSnapshot != nil {
		s.onSnapshot(dto.FromSnapshot(&snap))
	}
}

func (s subscriber) OnMalfunction(m domain.Malfunction) {
	if s.onMalfunction != nil {
		s.onMalfunction(dto.FromMalfunction(m))
	}
}
