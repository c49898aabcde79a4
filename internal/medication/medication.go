package medication

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the calendar-date form stored on occurrences, e.g. "2025-11-03".
const DateLayout = "2006-01-02"

// DefaultHorizonDays is how far ahead occurrences are generated when a
// medication is created.
const DefaultHorizonDays = 30

// Status is the user-facing state of a single occurrence.
type Status string

const (
	StatusPending     Status = "Pending"
	StatusTaken       Status = "Taken"
	StatusRemindLater Status = "Remind Later"
	StatusSkipped     Status = "Skipped"
)

// ValidStatus reports whether s is one of the accepted occurrence statuses.
func ValidStatus(s Status) bool {
	switch s {
	case StatusPending, StatusTaken, StatusRemindLater, StatusSkipped:
		return true
	}
	return false
}

var (
	ErrEmptySchedule    = errors.New("schedule must have at least one time")
	ErrInvalidHorizon   = errors.New("horizon must be at least one day")
	ErrDuplicateTime    = errors.New("schedule times must be unique")
	ErrInvalidTimeOfDay = errors.New("schedule time must be in HH:MM form")
)

// Occurrence is one concrete dose event: a time-of-day on a calendar date.
// Its identity within a medication is the (date, time) pair.
type Occurrence struct {
	Date      string    `json:"date" bson:"date"`
	Time      string    `json:"time" bson:"time"`
	Status    Status    `json:"status" bson:"status"`
	UpdatedAt time.Time `json:"updated_at,omitempty" bson:"updatedat,omitempty"`
}

// HistoryEntry is an append-only audit record of a status change.
type HistoryEntry struct {
	Date   string    `json:"date" bson:"date"`
	Time   string    `json:"time" bson:"time"`
	Status Status    `json:"status" bson:"status"`
	At     time.Time `json:"at" bson:"at"`
}

type Medication struct {
	ID          string         `json:"id" bson:"id"`
	UserID      string         `json:"user_id" bson:"userid"`
	Name        string         `json:"name" bson:"name"`
	Dosage      string         `json:"dosage" bson:"dosage"`
	Schedule    []string       `json:"schedule" bson:"schedule"`
	Occurrences []Occurrence   `json:"occurrences" bson:"occurrences"`
	History     []HistoryEntry `json:"history" bson:"history"`
	CreatedAt   time.Time      `json:"created_at" bson:"createdat"`
	UpdatedAt   time.Time      `json:"updated_at" bson:"updatedat"`
}

// New builds a medication with its occurrences expanded over the horizon
// starting at startDate.
func New(id, userID, name, dosage string, schedule []string, horizonDays int, startDate time.Time, now time.Time) (*Medication, error) {
	occurrences, err := Expand(schedule, horizonDays, startDate)
	if err != nil {
		return nil, err
	}
	return &Medication{
		ID:          id,
		UserID:      userID,
		Name:        name,
		Dosage:      dosage,
		Schedule:    append([]string(nil), schedule...),
		Occurrences: occurrences,
		History:     []HistoryEntry{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// Expand generates one Pending occurrence per schedule time for each of
// horizonDays consecutive dates starting at startDate. It is a pure function
// of its inputs: no clock reads, no mutation of the schedule slice.
func Expand(schedule []string, horizonDays int, startDate time.Time) ([]Occurrence, error) {
	if len(schedule) == 0 {
		return nil, ErrEmptySchedule
	}
	if horizonDays <= 0 {
		return nil, ErrInvalidHorizon
	}
	seen := make(map[string]bool, len(schedule))
	for _, tod := range schedule {
		if _, err := ParseTimeOfDay(tod); err != nil {
			return nil, err
		}
		if seen[tod] {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateTime, tod)
		}
		seen[tod] = true
	}

	occurrences := make([]Occurrence, 0, horizonDays*len(schedule))
	day := time.Date(startDate.Year(), startDate.Month(), startDate.Day(), 0, 0, 0, 0, startDate.Location())
	for i := 0; i < horizonDays; i++ {
		date := day.AddDate(0, 0, i).Format(DateLayout)
		for _, tod := range schedule {
			occurrences = append(occurrences, Occurrence{
				Date:   date,
				Time:   tod,
				Status: StatusPending,
			})
		}
	}
	return occurrences, nil
}

// ParseTimeOfDay parses a wall-clock "HH:MM" string and returns it as
// minutes since midnight.
func ParseTimeOfDay(tod string) (int, error) {
	parts := strings.Split(tod, ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTimeOfDay, tod)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTimeOfDay, tod)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 || len(parts[1]) != 2 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTimeOfDay, tod)
	}
	return hour*60 + minute, nil
}

// FindOccurrence returns a pointer to the occurrence identified by
// (date, tod), or nil when the medication has no such occurrence.
func (m *Medication) FindOccurrence(date, tod string) *Occurrence {
	for i := range m.Occurrences {
		if m.Occurrences[i].Date == date && m.Occurrences[i].Time == tod {
			return &m.Occurrences[i]
		}
	}
	return nil
}

// OccurrencesOn returns the occurrences scheduled for the given date.
func (m *Medication) OccurrencesOn(date string) []Occurrence {
	var out []Occurrence
	for _, occ := range m.Occurrences {
		if occ.Date == date {
			out = append(out, occ)
		}
	}
	return out
}

// Clone returns a deep copy, so storage backends can hand out snapshots
// without sharing occurrence slices with callers.
func (m *Medication) Clone() *Medication {
	c := *m
	c.Schedule = append([]string(nil), m.Schedule...)
	c.Occurrences = append([]Occurrence(nil), m.Occurrences...)
	c.History = append([]HistoryEntry(nil), m.History...)
	return &c
}
