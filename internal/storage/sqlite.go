package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/linusbett/MedTrack-Backend/internal/medication"
	"github.com/linusbett/MedTrack-Backend/internal/user"
)

// SQLiteStorage implements the Storage interface on a local SQLite database.
// Occurrences and history live in child tables keyed by
// (medication_id, date, time) so updates are addressed by identity.
type SQLiteStorage struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteStorage creates a new SQLite storage instance
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	s := &SQLiteStorage{db: db}

	if err := s.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return s, nil
}

func (s *SQLiteStorage) Close(ctx context.Context) error {
	return s.db.Close()
}

func (s *SQLiteStorage) createTables() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			email TEXT NOT NULL UNIQUE,
			password TEXT NOT NULL,
			verified BOOLEAN NOT NULL DEFAULT 0,
			fcm_token TEXT NOT NULL DEFAULT '',
			verification_code TEXT NOT NULL DEFAULT '',
			verification_code_validation INTEGER NOT NULL DEFAULT 0,
			forgot_password_code TEXT NOT NULL DEFAULT '',
			forgot_password_code_validation INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS medications (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			name TEXT NOT NULL,
			dosage TEXT NOT NULL,
			schedule TEXT NOT NULL, -- JSON array of "HH:MM" strings
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS occurrences (
			medication_id TEXT NOT NULL,
			date TEXT NOT NULL, -- "2006-01-02"
			time TEXT NOT NULL, -- "15:04"
			status TEXT NOT NULL,
			updated_at TEXT NOT NULL DEFAULT '',
			PRIMARY KEY (medication_id, date, time),
			FOREIGN KEY (medication_id) REFERENCES medications(id)
		)`,
		`CREATE TABLE IF NOT EXISTS history (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			medication_id TEXT NOT NULL,
			date TEXT NOT NULL,
			time TEXT NOT NULL,
			status TEXT NOT NULL,
			at TEXT NOT NULL,
			FOREIGN KEY (medication_id) REFERENCES medications(id)
		)`,
		`CREATE TABLE IF NOT EXISTS dispatches (
			medication_id TEXT NOT NULL,
			date TEXT NOT NULL,
			time TEXT NOT NULL,
			sent_at TEXT NOT NULL,
			PRIMARY KEY (medication_id, date, time)
		)`,
	}

	for _, query := range queries {
		if _, err := s.db.Exec(query); err != nil {
			return fmt.Errorf("failed to execute query %q: %w", query, err)
		}
	}
	return nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

// User operations

func (s *SQLiteStorage) CreateUser(ctx context.Context, u *user.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var exists int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(1) FROM users WHERE email = ?", u.Email).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check email: %w", err)
	}
	if exists > 0 {
		return ErrDuplicateEmail
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO users (id, email, password, verified, fcm_token,
			verification_code, verification_code_validation,
			forgot_password_code, forgot_password_code_validation,
			created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Email, u.Password, u.Verified, u.FCMToken,
		u.VerificationCode, u.VerificationCodeValidation,
		u.ForgotPasswordCode, u.ForgotPasswordCodeValidation,
		formatTime(u.CreatedAt), formatTime(u.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) scanUser(row *sql.Row) (*user.User, error) {
	var u user.User
	var createdAt, updatedAt string
	err := row.Scan(&u.ID, &u.Email, &u.Password, &u.Verified, &u.FCMToken,
		&u.VerificationCode, &u.VerificationCodeValidation,
		&u.ForgotPasswordCode, &u.ForgotPasswordCodeValidation,
		&createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}
	u.CreatedAt = parseTime(createdAt)
	u.UpdatedAt = parseTime(updatedAt)
	return &u, nil
}

const userColumns = `id, email, password, verified, fcm_token,
	verification_code, verification_code_validation,
	forgot_password_code, forgot_password_code_validation,
	created_at, updated_at`

func (s *SQLiteStorage) GetUser(ctx context.Context, id string) (*user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scanUser(s.db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE id = ?", id))
}

func (s *SQLiteStorage) GetUserByEmail(ctx context.Context, email string) (*user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scanUser(s.db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE email = ?", email))
}

func (s *SQLiteStorage) UpdateUser(ctx context.Context, u *user.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.ExecContext(ctx,
		`UPDATE users SET email = ?, password = ?, verified = ?, fcm_token = ?,
			verification_code = ?, verification_code_validation = ?,
			forgot_password_code = ?, forgot_password_code_validation = ?,
			updated_at = ?
		 WHERE id = ?`,
		u.Email, u.Password, u.Verified, u.FCMToken,
		u.VerificationCode, u.VerificationCodeValidation,
		u.ForgotPasswordCode, u.ForgotPasswordCodeValidation,
		formatTime(u.UpdatedAt), u.ID)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStorage) GetDeviceToken(ctx context.Context, userID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var token string
	err := s.db.QueryRowContext(ctx, "SELECT fcm_token FROM users WHERE id = ?", userID).Scan(&token)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to get device token: %w", err)
	}
	return token, nil
}

// Medication operations

func (s *SQLiteStorage) CreateMedication(ctx context.Context, med *medication.Medication) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	scheduleJSON, err := json.Marshal(med.Schedule)
	if err != nil {
		return fmt.Errorf("failed to marshal schedule: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		"INSERT INTO medications (id, user_id, name, dosage, schedule, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)",
		med.ID, med.UserID, med.Name, med.Dosage, string(scheduleJSON),
		formatTime(med.CreatedAt), formatTime(med.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to create medication: %w", err)
	}

	for _, occ := range med.Occurrences {
		_, err = tx.ExecContext(ctx,
			"INSERT INTO occurrences (medication_id, date, time, status, updated_at) VALUES (?, ?, ?, ?, ?)",
			med.ID, occ.Date, occ.Time, occ.Status, formatTime(occ.UpdatedAt))
		if err != nil {
			return fmt.Errorf("failed to create occurrence: %w", err)
		}
	}

	for _, entry := range med.History {
		_, err = tx.ExecContext(ctx,
			"INSERT INTO history (medication_id, date, time, status, at) VALUES (?, ?, ?, ?, ?)",
			med.ID, entry.Date, entry.Time, entry.Status, formatTime(entry.At))
		if err != nil {
			return fmt.Errorf("failed to create history entry: %w", err)
		}
	}

	return tx.Commit()
}

func (s *SQLiteStorage) loadMedication(ctx context.Context, id string) (*medication.Medication, error) {
	var med medication.Medication
	var scheduleJSON, createdAt, updatedAt string
	err := s.db.QueryRowContext(ctx,
		"SELECT id, user_id, name, dosage, schedule, created_at, updated_at FROM medications WHERE id = ?", id).
		Scan(&med.ID, &med.UserID, &med.Name, &med.Dosage, &scheduleJSON, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load medication: %w", err)
	}
	if err := json.Unmarshal([]byte(scheduleJSON), &med.Schedule); err != nil {
		return nil, fmt.Errorf("failed to unmarshal schedule: %w", err)
	}
	med.CreatedAt = parseTime(createdAt)
	med.UpdatedAt = parseTime(updatedAt)

	rows, err := s.db.QueryContext(ctx,
		"SELECT date, time, status, updated_at FROM occurrences WHERE medication_id = ? ORDER BY date, time", id)
	if err != nil {
		return nil, fmt.Errorf("failed to load occurrences: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var occ medication.Occurrence
		var occUpdatedAt string
		if err := rows.Scan(&occ.Date, &occ.Time, &occ.Status, &occUpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan occurrence: %w", err)
		}
		occ.UpdatedAt = parseTime(occUpdatedAt)
		med.Occurrences = append(med.Occurrences, occ)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("occurrence rows error: %w", err)
	}

	histRows, err := s.db.QueryContext(ctx,
		"SELECT date, time, status, at FROM history WHERE medication_id = ? ORDER BY id", id)
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}
	defer histRows.Close()
	med.History = []medication.HistoryEntry{}
	for histRows.Next() {
		var entry medication.HistoryEntry
		var at string
		if err := histRows.Scan(&entry.Date, &entry.Time, &entry.Status, &at); err != nil {
			return nil, fmt.Errorf("failed to scan history entry: %w", err)
		}
		entry.At = parseTime(at)
		med.History = append(med.History, entry)
	}
	if err := histRows.Err(); err != nil {
		return nil, fmt.Errorf("history rows error: %w", err)
	}

	return &med, nil
}

func (s *SQLiteStorage) GetMedication(ctx context.Context, id, userID string) (*medication.Medication, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	med, err := s.loadMedication(ctx, id)
	if err != nil {
		return nil, err
	}
	if med.UserID != userID {
		return nil, ErrNotFound
	}
	return med, nil
}

func (s *SQLiteStorage) listMedicationIDs(ctx context.Context, query string, args ...interface{}) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *SQLiteStorage) ListMedications(ctx context.Context, userID string) ([]*medication.Medication, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids, err := s.listMedicationIDs(ctx, "SELECT id FROM medications WHERE user_id = ? ORDER BY created_at DESC", userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list medications: %w", err)
	}
	var list []*medication.Medication
	for _, id := range ids {
		med, err := s.loadMedication(ctx, id)
		if err != nil {
			return nil, err
		}
		list = append(list, med)
	}
	return list, nil
}

func (s *SQLiteStorage) DeleteMedication(ctx context.Context, id, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, "DELETE FROM medications WHERE id = ? AND user_id = ?", id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete medication: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM occurrences WHERE medication_id = ?", id); err != nil {
		return fmt.Errorf("failed to delete occurrences: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM history WHERE medication_id = ?", id); err != nil {
		return fmt.Errorf("failed to delete history: %w", err)
	}
	return tx.Commit()
}

func (s *SQLiteStorage) FindDueMedications(ctx context.Context, date string) ([]*medication.Medication, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids, err := s.listMedicationIDs(ctx,
		"SELECT DISTINCT medication_id FROM occurrences WHERE date = ? AND status = ?",
		date, medication.StatusPending)
	if err != nil {
		return nil, fmt.Errorf("failed to find due medications: %w", err)
	}
	var list []*medication.Medication
	for _, id := range ids {
		med, err := s.loadMedication(ctx, id)
		if err != nil {
			return nil, err
		}
		list = append(list, med)
	}
	return list, nil
}

func (s *SQLiteStorage) UpdateOccurrenceStatus(ctx context.Context, medID, userID, date, tod string, status medication.Status, now time.Time) (*medication.Medication, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var owner string
	err = tx.QueryRowContext(ctx, "SELECT user_id FROM medications WHERE id = ?", medID).Scan(&owner)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && owner != userID) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to check medication owner: %w", err)
	}

	result, err := tx.ExecContext(ctx,
		"UPDATE occurrences SET status = ?, updated_at = ? WHERE medication_id = ? AND date = ? AND time = ?",
		status, formatTime(now), medID, date, tod)
	if err != nil {
		return nil, fmt.Errorf("failed to update occurrence: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return nil, ErrNotFound
	}

	_, err = tx.ExecContext(ctx,
		"INSERT INTO history (medication_id, date, time, status, at) VALUES (?, ?, ?, ?, ?)",
		medID, date, tod, status, formatTime(now))
	if err != nil {
		return nil, fmt.Errorf("failed to append history entry: %w", err)
	}

	_, err = tx.ExecContext(ctx, "UPDATE medications SET updated_at = ? WHERE id = ?", formatTime(now), medID)
	if err != nil {
		return nil, fmt.Errorf("failed to stamp medication: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}

	return s.loadMedication(ctx, medID)
}

// Dispatch markers

// ClaimDispatch relies on the (medication_id, date, time) primary key:
// INSERT OR IGNORE affects zero rows when the marker already exists.
func (s *SQLiteStorage) ClaimDispatch(ctx context.Context, medID, date, tod string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO dispatches (medication_id, date, time, sent_at) VALUES (?, ?, ?, ?)",
		medID, date, tod, formatTime(time.Now()))
	if err != nil {
		return false, fmt.Errorf("failed to claim dispatch marker: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return n == 1, nil
}

func (s *SQLiteStorage) ReleaseDispatch(ctx context.Context, medID, date, tod string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		"DELETE FROM dispatches WHERE medication_id = ? AND date = ? AND time = ?",
		medID, date, tod)
	if err != nil {
		return fmt.Errorf("failed to release dispatch marker: %w", err)
	}
	return nil
}
