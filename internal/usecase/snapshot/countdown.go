package snapshot

import (
	"fmt"
	"time"
)

// Countdown renders the time until reset: "1d 4h", "2h 15m", "45m" or "ready".
// Partial minutes round up so a pending reset never shows "0m".
func Countdown(d time.Duration) string {
	if d <= 0 {
		return "ready"
	}
	mins := int((d + time.Minute - 1) / time.Minute)
	days, hours, mins := mins/(24*60), (mins/60)%24, mins%60

	switch {
	case days > 0:
		return fmt.Sprintf("%dd %dh", days, hours)
	case hours > 0:
		return fmt.Sprintf("%dh %dm", hours, mins)
	default:
		return fmt.Sprintf("%dm", mins)
	}
}
