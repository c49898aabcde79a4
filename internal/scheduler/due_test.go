package scheduler

import (
	"testing"
	"time"

	"github.com/linusbett/MedTrack-Backend/internal/medication"
)

func at(hour, minute int) time.Time {
	return time.Date(2025, 11, 3, hour, minute, 0, 0, time.Local)
}

func TestIsDueWindow(t *testing.T) {
	occ := medication.Occurrence{Date: "2025-11-03", Time: "08:00", Status: medication.StatusPending}

	tests := []struct {
		name string
		now  time.Time
		want bool
	}{
		{"well before window", at(7, 50), false},
		{"one minute before window", at(7, 57), false},
		{"window opens", at(7, 58), true},
		{"exact time", at(8, 0), true},
		{"window closes", at(8, 2), true},
		{"one minute after window", at(8, 3), false},
		{"window long gone", at(8, 10), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsDue(occ, tt.now, DefaultTolerance); got != tt.want {
				t.Errorf("IsDue at %s = %v, want %v", tt.now.Format("15:04"), got, tt.want)
			}
		})
	}
}

func TestIsDueOtherDate(t *testing.T) {
	occ := medication.Occurrence{Date: "2025-11-04", Time: "08:00", Status: medication.StatusPending}
	if IsDue(occ, at(8, 0), DefaultTolerance) {
		t.Error("occurrence on a different date must not be due")
	}
}

func TestIsDueNonPending(t *testing.T) {
	for _, status := range []medication.Status{medication.StatusTaken, medication.StatusRemindLater, medication.StatusSkipped} {
		occ := medication.Occurrence{Date: "2025-11-03", Time: "08:00", Status: status}
		if IsDue(occ, at(8, 0), DefaultTolerance) {
			t.Errorf("occurrence with status %s must not be due", status)
		}
	}
}

func TestIsDueMidnightBoundary(t *testing.T) {
	// 23:59 on the previous day is not within the window of a 00:01
	// occurrence: the dates differ, so it is simply not due yet.
	occ := medication.Occurrence{Date: "2025-11-04", Time: "00:01", Status: medication.StatusPending}
	now := time.Date(2025, 11, 3, 23, 59, 0, 0, time.Local)
	if IsDue(occ, now, DefaultTolerance) {
		t.Error("occurrence must not be due before its calendar date")
	}
}

func TestIsDueCustomTolerance(t *testing.T) {
	occ := medication.Occurrence{Date: "2025-11-03", Time: "08:00", Status: medication.StatusPending}
	if !IsDue(occ, at(8, 5), 5*time.Minute) {
		t.Error("expected due with widened tolerance")
	}
	if IsDue(occ, at(8, 1), 0) {
		t.Error("expected not due with zero tolerance")
	}
}
