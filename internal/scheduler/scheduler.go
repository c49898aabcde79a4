package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/linusbett/MedTrack-Backend/internal/medication"
	"github.com/linusbett/MedTrack-Backend/internal/notify"
)

// DefaultInterval is the tick cadence. It is coarser than the due-window
// tolerance, so an occurrence is seen by at least one tick inside its window.
const DefaultInterval = time.Minute

// Store is the slice of the occurrence store the scheduler needs per tick.
type Store interface {
	FindDueMedications(ctx context.Context, date string) ([]*medication.Medication, error)
	ClaimDispatch(ctx context.Context, medID, date, tod string) (bool, error)
	ReleaseDispatch(ctx context.Context, medID, date, tod string) error
}

// UserDirectory resolves a user's registered push device token. An empty
// token means the user has no device and is silently skipped.
type UserDirectory interface {
	GetDeviceToken(ctx context.Context, userID string) (string, error)
}

// Scheduler is the recurring background task that scans for due occurrences
// and dispatches exactly one notification per occurrence per due window.
// It is owned and started by the composition root; a single instance is
// assumed to run at a time.
type Scheduler struct {
	store      Store
	users      UserDirectory
	dispatcher notify.Dispatcher
	log        *logrus.Logger

	interval  time.Duration
	tolerance time.Duration
	now       func() time.Time
}

type Option func(*Scheduler)

// WithInterval overrides the tick cadence.
func WithInterval(d time.Duration) Option {
	return func(s *Scheduler) { s.interval = d }
}

// WithTolerance overrides the due-window tolerance.
func WithTolerance(d time.Duration) Option {
	return func(s *Scheduler) { s.tolerance = d }
}

// WithClock overrides the time source. Tests use this to pin "now".
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

func New(store Store, users UserDirectory, dispatcher notify.Dispatcher, log *logrus.Logger, opts ...Option) *Scheduler {
	s := &Scheduler{
		store:      store,
		users:      users,
		dispatcher: dispatcher,
		log:        log,
		interval:   DefaultInterval,
		tolerance:  DefaultTolerance,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run ticks until ctx is cancelled. Every failure inside a tick is logged
// and absorbed; the loop itself never stops early.
func (s *Scheduler) Run(ctx context.Context) {
	s.log.WithField("interval", s.interval.String()).Info("Reminder scheduler started")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("Reminder scheduler stopped")
			return
		case <-ticker.C:
			if _, err := s.Tick(ctx); err != nil {
				s.log.WithError(err).Error("Scheduler tick failed")
			}
		}
	}
}

// Tick runs a single scan over today's pending occurrences and returns the
// number of notifications dispatched. A storage read failure aborts the tick
// (the next one retries from scratch); a single occurrence's dispatch failure
// only skips that occurrence.
func (s *Scheduler) Tick(ctx context.Context) (int, error) {
	now := s.now()
	date := now.Format(medication.DateLayout)

	meds, err := s.store.FindDueMedications(ctx, date)
	if err != nil {
		return 0, fmt.Errorf("failed to load due medications: %w", err)
	}

	dispatched := 0
	for _, med := range meds {
		for _, occ := range med.Occurrences {
			if !IsDue(occ, now, s.tolerance) {
				continue
			}
			if s.dispatchOne(ctx, med, occ) {
				dispatched++
			}
		}
	}

	if dispatched > 0 {
		s.log.WithFields(logrus.Fields{
			"date":       date,
			"dispatched": dispatched,
		}).Info("Dispatched due reminders")
	}
	return dispatched, nil
}

// dispatchOne sends at most one notification for the occurrence. The marker
// is claimed before sending so an overlapping tick cannot send a duplicate;
// on send failure the claim is released and the next tick may retry while
// the occurrence is still inside its window.
func (s *Scheduler) dispatchOne(ctx context.Context, med *medication.Medication, occ medication.Occurrence) bool {
	fields := logrus.Fields{
		"medication_id": med.ID,
		"user_id":       med.UserID,
		"date":          occ.Date,
		"time":          occ.Time,
	}

	token, err := s.users.GetDeviceToken(ctx, med.UserID)
	if err != nil {
		s.log.WithFields(fields).WithError(err).Error("Failed to look up device token")
		return false
	}
	if token == "" {
		s.log.WithFields(fields).Debug("User has no device token, skipping")
		return false
	}

	claimed, err := s.store.ClaimDispatch(ctx, med.ID, occ.Date, occ.Time)
	if err != nil {
		s.log.WithFields(fields).WithError(err).Error("Failed to claim dispatch marker")
		return false
	}
	if !claimed {
		return false
	}

	title := fmt.Sprintf("Time for %s", med.Name)
	body := fmt.Sprintf("Take %s now at %s", med.Dosage, occ.Time)
	data := map[string]string{"medication_id": med.ID, "time": occ.Time}

	if err := s.dispatcher.Send(ctx, token, title, body, data); err != nil {
		s.log.WithFields(fields).WithError(err).Error("Push dispatch failed")
		if relErr := s.store.ReleaseDispatch(ctx, med.ID, occ.Date, occ.Time); relErr != nil {
			s.log.WithFields(fields).WithError(relErr).Error("Failed to release dispatch marker")
		}
		return false
	}

	s.log.WithFields(fields).Info("Reminder notification sent")
	return true
}
