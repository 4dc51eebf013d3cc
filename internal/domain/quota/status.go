package quota

// Status classifies a remaining percentage against user thresholds.
type Status string

// Status values ordered by severity.
const (
	StatusUnknown   Status = "unknown"
	StatusNormal    Status = "normal"
	StatusWarning   Status = "warning"
	StatusCritical  Status = "critical"
	StatusExhausted Status = "exhausted"
)

// Severity orders statuses; unknown ranks with normal.
func (s Status) Severity() int {
	switch s {
	case StatusWarning:
		return 1
	case StatusCritical:
		return 2
	case StatusExhausted:
		return 3
	default:
		return 0
	}
}

// Thresholds are percentage boundaries, critical < warning.
type Thresholds struct {
	Warning  int
	Critical int
}

// Classify returns the status for a percentage.
func (t Thresholds) Classify(percentage float64, exhausted, hasQuota bool) Status {
	switch {
	case !hasQuota:
		return StatusUnknown
	case exhausted:
		return StatusExhausted
	case percentage <= float64(t.Critical):
		return StatusCritical
	case percentage <= float64(t.Warning):
		return StatusWarning
	default:
		return StatusNormal
	}
}
