package storage

import (
	"context"
	"errors"
	"time"

	"github.com/linusbett/MedTrack-Backend/internal/medication"
	"github.com/linusbett/MedTrack-Backend/internal/user"
)

var (
	// ErrNotFound marks lookups for users, medications or occurrences that
	// do not exist. Distinct from validation failures, which surface as
	// medication package errors.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateEmail marks signup attempts with an already registered email.
	ErrDuplicateEmail = errors.New("email already registered")
)

// Storage defines the interface for data persistence for users, medications
// and dispatch markers.
type Storage interface {
	// User operations
	CreateUser(ctx context.Context, u *user.User) error
	GetUser(ctx context.Context, id string) (*user.User, error)
	GetUserByEmail(ctx context.Context, email string) (*user.User, error)
	UpdateUser(ctx context.Context, u *user.User) error

	// GetDeviceToken returns the user's registered push token, or an empty
	// string when the user has no device.
	GetDeviceToken(ctx context.Context, userID string) (string, error)

	// Medication operations. A medication owns its occurrences and history:
	// they are written and deleted only through the parent document.
	CreateMedication(ctx context.Context, m *medication.Medication) error
	GetMedication(ctx context.Context, id, userID string) (*medication.Medication, error)
	ListMedications(ctx context.Context, userID string) ([]*medication.Medication, error)
	DeleteMedication(ctx context.Context, id, userID string) error

	// FindDueMedications returns medications that have at least one Pending
	// occurrence on the given date.
	FindDueMedications(ctx context.Context, date string) ([]*medication.Medication, error)

	// UpdateOccurrenceStatus sets the status of the occurrence identified by
	// (date, tod), stamps it with now, and appends one history entry. Returns
	// ErrNotFound when the medication or the (date, tod) pair does not exist.
	UpdateOccurrenceStatus(ctx context.Context, medID, userID, date, tod string, status medication.Status, now time.Time) (*medication.Medication, error)

	// ClaimDispatch atomically records that a notification is being sent for
	// the occurrence (medID, date, tod). It returns false when the marker
	// already exists, which guarantees at-most-one send per due window even
	// under overlapping ticks.
	ClaimDispatch(ctx context.Context, medID, date, tod string) (bool, error)

	// ReleaseDispatch removes a claim so a failed send can be retried on the
	// next tick.
	ReleaseDispatch(ctx context.Context, medID, date, tod string) error

	Close(ctx context.Context) error
}

func markerKey(medID, date, tod string) string {
	return medID + "|" + date + "|" + tod
}
