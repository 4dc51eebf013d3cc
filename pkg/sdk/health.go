package quotawatch

import (
	"context"

	healthuc "github.com/kailas-cloud/quotawatch/internal/usecase/health"
)

// HealthStatus represents the aggregated monitor health.
type HealthStatus struct {
	Status string            // "ok", "degraded", "error"
	Checks map[string]string // component → "ok"/"error"
}

// Health checks the settings store and the language server connection.
func (m *Monitor) Health(ctx context.Context) HealthStatus {
	report := m.healthSvc.Check(ctx)
	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}
	return HealthStatus{
		Status: string(report.Status),
		Checks: checks,
	}
}

// healthUseCase is the internal interface for health checks.
type healthUseCase interface {
	Check(ctx context.Context) healthuc.Report
}
