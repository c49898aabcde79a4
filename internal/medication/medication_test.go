package medication

import (
	"errors"
	"reflect"
	"testing"
	"time"
)

func TestExpand(t *testing.T) {
	start := time.Date(2025, 11, 3, 14, 30, 0, 0, time.Local)
	schedule := []string{"08:00", "20:00"}

	occurrences, err := Expand(schedule, 30, start)
	if err != nil {
		t.Fatalf("Expand failed: %v", err)
	}
	if len(occurrences) != 60 {
		t.Fatalf("expected 60 occurrences, got %d", len(occurrences))
	}

	perDate := make(map[string]int)
	for _, occ := range occurrences {
		if occ.Status != StatusPending {
			t.Errorf("occurrence %s %s: expected status Pending, got %s", occ.Date, occ.Time, occ.Status)
		}
		if !occ.UpdatedAt.IsZero() {
			t.Errorf("occurrence %s %s: expected zero UpdatedAt", occ.Date, occ.Time)
		}
		perDate[occ.Date]++
	}
	if len(perDate) != 30 {
		t.Fatalf("expected 30 distinct dates, got %d", len(perDate))
	}
	for i := 0; i < 30; i++ {
		date := start.AddDate(0, 0, i).Format(DateLayout)
		if perDate[date] != 2 {
			t.Errorf("date %s: expected 2 occurrences, got %d", date, perDate[date])
		}
	}

	// First date must be the start date itself, regardless of its time of day.
	if occurrences[0].Date != "2025-11-03" || occurrences[0].Time != "08:00" {
		t.Errorf("unexpected first occurrence: %+v", occurrences[0])
	}
}

func TestExpandIsPure(t *testing.T) {
	start := time.Date(2025, 11, 3, 0, 0, 0, 0, time.Local)
	schedule := []string{"08:00", "14:00", "20:00"}

	first, err := Expand(schedule, 7, start)
	if err != nil {
		t.Fatalf("Expand failed: %v", err)
	}
	second, err := Expand(schedule, 7, start)
	if err != nil {
		t.Fatalf("Expand failed: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("expected identical output from identical inputs")
	}
}

func TestExpandValidation(t *testing.T) {
	start := time.Date(2025, 11, 3, 0, 0, 0, 0, time.Local)

	tests := []struct {
		name     string
		schedule []string
		horizon  int
		wantErr  error
	}{
		{"empty schedule", nil, 30, ErrEmptySchedule},
		{"zero horizon", []string{"08:00"}, 0, ErrInvalidHorizon},
		{"negative horizon", []string{"08:00"}, -1, ErrInvalidHorizon},
		{"malformed time", []string{"8am"}, 30, ErrInvalidTimeOfDay},
		{"out of range hour", []string{"24:00"}, 30, ErrInvalidTimeOfDay},
		{"duplicate time", []string{"08:00", "08:00"}, 30, ErrDuplicateTime},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Expand(tt.schedule, tt.horizon, start)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestParseTimeOfDay(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"00:00", 0, false},
		{"08:00", 480, false},
		{"23:59", 1439, false},
		{"8:30", 510, false},
		{"24:00", 0, true},
		{"12:60", 0, true},
		{"12:5", 0, true},
		{"noon", 0, true},
		{"", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseTimeOfDay(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseTimeOfDay(%q): expected error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseTimeOfDay(%q) failed: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseTimeOfDay(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestFindOccurrence(t *testing.T) {
	start := time.Date(2025, 11, 3, 0, 0, 0, 0, time.Local)
	med, err := New("med1", "user1", "Amoxicillin", "500mg", []string{"08:00", "20:00"}, 5, start, start)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	occ := med.FindOccurrence("2025-11-04", "20:00")
	if occ == nil {
		t.Fatal("expected occurrence, got nil")
	}
	if occ.Date != "2025-11-04" || occ.Time != "20:00" {
		t.Errorf("unexpected occurrence: %+v", occ)
	}

	if med.FindOccurrence("2025-11-04", "09:00") != nil {
		t.Error("expected nil for time not in schedule")
	}
	if med.FindOccurrence("2026-01-01", "08:00") != nil {
		t.Error("expected nil for date outside horizon")
	}
}

func TestOccurrencesOn(t *testing.T) {
	start := time.Date(2025, 11, 3, 0, 0, 0, 0, time.Local)
	med, err := New("med1", "user1", "Amoxicillin", "500mg", []string{"08:00", "14:00", "20:00"}, 5, start, start)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	on := med.OccurrencesOn("2025-11-05")
	if len(on) != 3 {
		t.Fatalf("expected 3 occurrences, got %d", len(on))
	}
	if med.OccurrencesOn("2025-12-01") != nil {
		t.Error("expected no occurrences outside horizon")
	}
}

func TestCloneIsDeep(t *testing.T) {
	start := time.Date(2025, 11, 3, 0, 0, 0, 0, time.Local)
	med, err := New("med1", "user1", "Amoxicillin", "500mg", []string{"08:00"}, 2, start, start)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	clone := med.Clone()
	clone.Occurrences[0].Status = StatusTaken
	clone.Schedule[0] = "09:00"
	if med.Occurrences[0].Status != StatusPending {
		t.Error("mutating the clone changed the original occurrences")
	}
	if med.Schedule[0] != "08:00" {
		t.Error("mutating the clone changed the original schedule")
	}
}
