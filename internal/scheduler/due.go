package scheduler

import (
	"time"

	"github.com/linusbett/MedTrack-Backend/internal/medication"
)

// DefaultTolerance is the half-width of the due window around an
// occurrence's time-of-day. The scheduler ticks once a minute, so the window
// must be wide enough to absorb tick jitter without notifying far from the
// scheduled time.
const DefaultTolerance = 2 * time.Minute

// IsDue reports whether the occurrence should be notified at instant now.
// It is true only when the occurrence is still Pending, its date is now's
// calendar date, and now's minute-of-day is within tolerance of the
// occurrence's time-of-day. An occurrence whose window has elapsed never
// becomes due again for that date.
func IsDue(occ medication.Occurrence, now time.Time, tolerance time.Duration) bool {
	if occ.Status != medication.StatusPending {
		return false
	}
	if occ.Date != now.Format(medication.DateLayout) {
		return false
	}
	target, err := medication.ParseTimeOfDay(occ.Time)
	if err != nil {
		return false
	}
	diff := now.Hour()*60 + now.Minute() - target
	if diff < 0 {
		diff = -diff
	}
	return diff <= int(tolerance.Minutes())
}
