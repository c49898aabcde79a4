package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/linusbett/MedTrack-Backend/internal/medication"
	"github.com/linusbett/MedTrack-Backend/internal/user"
)

func testUser(id, email string) *user.User {
	now := time.Now().UTC().Truncate(time.Millisecond)
	return &user.User{
		ID:        id,
		Email:     email,
		Password:  "$2a$12$notarealhash",
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func testMedication(t *testing.T, id, userID string, schedule []string) *medication.Medication {
	t.Helper()
	start := time.Date(2025, 11, 3, 0, 0, 0, 0, time.UTC)
	med, err := medication.New(id, userID, "Amoxicillin", "500mg", schedule, 5, start, start)
	if err != nil {
		t.Fatalf("failed to build medication: %v", err)
	}
	return med
}

func runStorageTests(t *testing.T, store Storage) {
	ctx := context.Background()

	// User CRUD
	u := testUser("user1", "alice@example.com")
	if err := store.CreateUser(ctx, u); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	got, err := store.GetUser(ctx, u.ID)
	if err != nil {
		t.Fatalf("GetUser failed: %v", err)
	}
	if got.Email != u.Email || got.Password != u.Password {
		t.Errorf("GetUser: got %+v, want %+v", got, u)
	}
	got, err = store.GetUserByEmail(ctx, u.Email)
	if err != nil {
		t.Fatalf("GetUserByEmail failed: %v", err)
	}
	if got.ID != u.ID {
		t.Errorf("GetUserByEmail: got ID %s, want %s", got.ID, u.ID)
	}
	if _, err := store.GetUser(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetUser for missing user: got %v, want ErrNotFound", err)
	}
	if _, err := store.GetUserByEmail(ctx, "nobody@example.com"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetUserByEmail for missing email: got %v, want ErrNotFound", err)
	}

	dup := testUser("user2", "alice@example.com")
	if err := store.CreateUser(ctx, dup); !errors.Is(err, ErrDuplicateEmail) {
		t.Errorf("CreateUser with duplicate email: got %v, want ErrDuplicateEmail", err)
	}

	// Device token registration through UpdateUser
	token, err := store.GetDeviceToken(ctx, u.ID)
	if err != nil {
		t.Fatalf("GetDeviceToken failed: %v", err)
	}
	if token != "" {
		t.Errorf("expected empty device token before registration, got %q", token)
	}
	u.FCMToken = "device-token-1"
	u.Verified = true
	if err := store.UpdateUser(ctx, u); err != nil {
		t.Fatalf("UpdateUser failed: %v", err)
	}
	token, err = store.GetDeviceToken(ctx, u.ID)
	if err != nil {
		t.Fatalf("GetDeviceToken failed: %v", err)
	}
	if token != "device-token-1" {
		t.Errorf("GetDeviceToken: got %q, want device-token-1", token)
	}
	got, err = store.GetUser(ctx, u.ID)
	if err != nil {
		t.Fatalf("GetUser after update failed: %v", err)
	}
	if !got.Verified {
		t.Error("UpdateUser did not persist the verified flag")
	}

	// Medication CRUD
	med := testMedication(t, "med1", u.ID, []string{"08:00", "20:00"})
	if err := store.CreateMedication(ctx, med); err != nil {
		t.Fatalf("CreateMedication failed: %v", err)
	}
	gotMed, err := store.GetMedication(ctx, med.ID, u.ID)
	if err != nil {
		t.Fatalf("GetMedication failed: %v", err)
	}
	if gotMed.Name != med.Name || gotMed.Dosage != med.Dosage {
		t.Errorf("GetMedication: got %+v, want %+v", gotMed, med)
	}
	if len(gotMed.Occurrences) != 10 {
		t.Errorf("GetMedication: got %d occurrences, want 10", len(gotMed.Occurrences))
	}
	if _, err := store.GetMedication(ctx, med.ID, "other-user"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetMedication across users: got %v, want ErrNotFound", err)
	}

	list, err := store.ListMedications(ctx, u.ID)
	if err != nil || len(list) != 1 {
		t.Errorf("ListMedications: got %d, want 1 (err=%v)", len(list), err)
	}
	list, err = store.ListMedications(ctx, "other-user")
	if err != nil || len(list) != 0 {
		t.Errorf("ListMedications for other user: got %d, want 0 (err=%v)", len(list), err)
	}

	// Due lookup
	due, err := store.FindDueMedications(ctx, "2025-11-04")
	if err != nil {
		t.Fatalf("FindDueMedications failed: %v", err)
	}
	if len(due) != 1 {
		t.Fatalf("FindDueMedications: got %d, want 1", len(due))
	}
	due, err = store.FindDueMedications(ctx, "2026-01-01")
	if err != nil {
		t.Fatalf("FindDueMedications failed: %v", err)
	}
	if len(due) != 0 {
		t.Errorf("FindDueMedications outside horizon: got %d, want 0", len(due))
	}

	// Occurrence status update
	now := time.Now().UTC().Truncate(time.Millisecond)
	updated, err := store.UpdateOccurrenceStatus(ctx, med.ID, u.ID, "2025-11-04", "08:00", medication.StatusTaken, now)
	if err != nil {
		t.Fatalf("UpdateOccurrenceStatus failed: %v", err)
	}
	occ := updated.FindOccurrence("2025-11-04", "08:00")
	if occ == nil {
		t.Fatal("updated medication is missing the occurrence")
	}
	if occ.Status != medication.StatusTaken {
		t.Errorf("occurrence status: got %s, want Taken", occ.Status)
	}
	if !occ.UpdatedAt.Equal(now) {
		t.Errorf("occurrence UpdatedAt: got %v, want %v", occ.UpdatedAt, now)
	}
	if other := updated.FindOccurrence("2025-11-04", "20:00"); other == nil || other.Status != medication.StatusPending {
		t.Error("untouched occurrence must stay Pending")
	}
	if len(updated.History) != 1 {
		t.Fatalf("history: got %d entries, want 1", len(updated.History))
	}
	entry := updated.History[0]
	if entry.Date != "2025-11-04" || entry.Time != "08:00" || entry.Status != medication.StatusTaken {
		t.Errorf("unexpected history entry: %+v", entry)
	}
	if !entry.At.Equal(now) {
		t.Errorf("history entry At: got %v, want %v", entry.At, now)
	}

	// A second update appends rather than replaces.
	updated, err = store.UpdateOccurrenceStatus(ctx, med.ID, u.ID, "2025-11-04", "20:00", medication.StatusSkipped, now)
	if err != nil {
		t.Fatalf("UpdateOccurrenceStatus failed: %v", err)
	}
	if len(updated.History) != 2 {
		t.Errorf("history after second update: got %d entries, want 2", len(updated.History))
	}

	// Unknown (date, time) pairs and foreign owners are not found.
	if _, err := store.UpdateOccurrenceStatus(ctx, med.ID, u.ID, "2025-11-04", "09:30", medication.StatusTaken, now); !errors.Is(err, ErrNotFound) {
		t.Errorf("UpdateOccurrenceStatus for unscheduled time: got %v, want ErrNotFound", err)
	}
	if _, err := store.UpdateOccurrenceStatus(ctx, med.ID, u.ID, "2026-01-01", "08:00", medication.StatusTaken, now); !errors.Is(err, ErrNotFound) {
		t.Errorf("UpdateOccurrenceStatus outside horizon: got %v, want ErrNotFound", err)
	}
	if _, err := store.UpdateOccurrenceStatus(ctx, med.ID, "other-user", "2025-11-04", "08:00", medication.StatusTaken, now); !errors.Is(err, ErrNotFound) {
		t.Errorf("UpdateOccurrenceStatus across users: got %v, want ErrNotFound", err)
	}
	if _, err := store.UpdateOccurrenceStatus(ctx, "nope", u.ID, "2025-11-04", "08:00", medication.StatusTaken, now); !errors.Is(err, ErrNotFound) {
		t.Errorf("UpdateOccurrenceStatus for missing medication: got %v, want ErrNotFound", err)
	}

	// Dispatch markers
	claimed, err := store.ClaimDispatch(ctx, med.ID, "2025-11-04", "08:00")
	if err != nil {
		t.Fatalf("ClaimDispatch failed: %v", err)
	}
	if !claimed {
		t.Fatal("first claim must succeed")
	}
	claimed, err = store.ClaimDispatch(ctx, med.ID, "2025-11-04", "08:00")
	if err != nil {
		t.Fatalf("ClaimDispatch failed: %v", err)
	}
	if claimed {
		t.Error("second claim for the same occurrence must fail")
	}
	claimed, err = store.ClaimDispatch(ctx, med.ID, "2025-11-04", "20:00")
	if err != nil {
		t.Fatalf("ClaimDispatch failed: %v", err)
	}
	if !claimed {
		t.Error("claim for a different time of day must succeed")
	}
	if err := store.ReleaseDispatch(ctx, med.ID, "2025-11-04", "08:00"); err != nil {
		t.Fatalf("ReleaseDispatch failed: %v", err)
	}
	claimed, err = store.ClaimDispatch(ctx, med.ID, "2025-11-04", "08:00")
	if err != nil {
		t.Fatalf("ClaimDispatch failed: %v", err)
	}
	if !claimed {
		t.Error("claim after release must succeed")
	}

	// Delete
	if err := store.DeleteMedication(ctx, med.ID, "other-user"); !errors.Is(err, ErrNotFound) {
		t.Errorf("DeleteMedication across users: got %v, want ErrNotFound", err)
	}
	if err := store.DeleteMedication(ctx, med.ID, u.ID); err != nil {
		t.Fatalf("DeleteMedication failed: %v", err)
	}
	if _, err := store.GetMedication(ctx, med.ID, u.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetMedication after delete: got %v, want ErrNotFound", err)
	}
}

func TestMemoryStorage(t *testing.T) {
	runStorageTests(t, NewMemoryStorage())
}

func TestFileStorage(t *testing.T) {
	dir := t.TempDir()
	store := NewFileStorage(
		filepath.Join(dir, "users.json"),
		filepath.Join(dir, "medications.json"),
		filepath.Join(dir, "dispatches.json"),
	)
	runStorageTests(t, store)
}

func TestFileStoragePersistsAcrossReload(t *testing.T) {
	dir := t.TempDir()
	usersFile := filepath.Join(dir, "users.json")
	medsFile := filepath.Join(dir, "medications.json")
	dispatchFile := filepath.Join(dir, "dispatches.json")
	ctx := context.Background()

	store := NewFileStorage(usersFile, medsFile, dispatchFile)
	u := testUser("user1", "alice@example.com")
	if err := store.CreateUser(ctx, u); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	med := testMedication(t, "med1", u.ID, []string{"08:00"})
	if err := store.CreateMedication(ctx, med); err != nil {
		t.Fatalf("CreateMedication failed: %v", err)
	}
	if _, err := store.ClaimDispatch(ctx, med.ID, "2025-11-03", "08:00"); err != nil {
		t.Fatalf("ClaimDispatch failed: %v", err)
	}

	// A fresh instance over the same files sees everything.
	store2 := NewFileStorage(usersFile, medsFile, dispatchFile)
	if _, err := store2.GetUser(ctx, u.ID); err != nil {
		t.Errorf("GetUser after reload failed: %v", err)
	}
	gotMed, err := store2.GetMedication(ctx, med.ID, u.ID)
	if err != nil {
		t.Fatalf("GetMedication after reload failed: %v", err)
	}
	if len(gotMed.Occurrences) != 5 {
		t.Errorf("occurrences after reload: got %d, want 5", len(gotMed.Occurrences))
	}
	claimed, err := store2.ClaimDispatch(ctx, med.ID, "2025-11-03", "08:00")
	if err != nil {
		t.Fatalf("ClaimDispatch after reload failed: %v", err)
	}
	if claimed {
		t.Error("dispatch marker must survive a reload")
	}
}
