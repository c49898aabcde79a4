package storage

import (
	"context"
	"sync"
	"time"

	"github.com/linusbett/MedTrack-Backend/internal/medication"
	"github.com/linusbett/MedTrack-Backend/internal/user"
)

// MemoryStorage keeps everything in maps. Used for tests and local development.
type MemoryStorage struct {
	users       map[string]*user.User
	medications map[string]*medication.Medication
	dispatches  map[string]time.Time
	mu          sync.Mutex
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		users:       make(map[string]*user.User),
		medications: make(map[string]*medication.Medication),
		dispatches:  make(map[string]time.Time),
	}
}

// User operations

func (m *MemoryStorage) CreateUser(ctx context.Context, u *user.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.Email == u.Email {
			return ErrDuplicateEmail
		}
	}
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m *MemoryStorage) GetUser(ctx context.Context, id string) (*user.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *MemoryStorage) GetUserByEmail(ctx context.Context, email string) (*user.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStorage) UpdateUser(ctx context.Context, u *user.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[u.ID]; !ok {
		return ErrNotFound
	}
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m *MemoryStorage) GetDeviceToken(ctx context.Context, userID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return "", ErrNotFound
	}
	return u.FCMToken, nil
}

// Medication operations

func (m *MemoryStorage) CreateMedication(ctx context.Context, med *medication.Medication) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.medications[med.ID] = med.Clone()
	return nil
}

func (m *MemoryStorage) GetMedication(ctx context.Context, id, userID string) (*medication.Medication, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	med, ok := m.medications[id]
	if !ok || med.UserID != userID {
		return nil, ErrNotFound
	}
	return med.Clone(), nil
}

func (m *MemoryStorage) ListMedications(ctx context.Context, userID string) ([]*medication.Medication, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var list []*medication.Medication
	for _, med := range m.medications {
		if med.UserID == userID {
			list = append(list, med.Clone())
		}
	}
	return list, nil
}

func (m *MemoryStorage) DeleteMedication(ctx context.Context, id, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	med, ok := m.medications[id]
	if !ok || med.UserID != userID {
		return ErrNotFound
	}
	delete(m.medications, id)
	return nil
}

func (m *MemoryStorage) FindDueMedications(ctx context.Context, date string) ([]*medication.Medication, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var list []*medication.Medication
	for _, med := range m.medications {
		for _, occ := range med.Occurrences {
			if occ.Date == date && occ.Status == medication.StatusPending {
				list = append(list, med.Clone())
				break
			}
		}
	}
	return list, nil
}

func (m *MemoryStorage) UpdateOccurrenceStatus(ctx context.Context, medID, userID, date, tod string, status medication.Status, now time.Time) (*medication.Medication, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	med, ok := m.medications[medID]
	if !ok || med.UserID != userID {
		return nil, ErrNotFound
	}
	occ := med.FindOccurrence(date, tod)
	if occ == nil {
		return nil, ErrNotFound
	}
	occ.Status = status
	occ.UpdatedAt = now
	med.History = append(med.History, medication.HistoryEntry{Date: date, Time: tod, Status: status, At: now})
	med.UpdatedAt = now
	return med.Clone(), nil
}

// Dispatch markers

func (m *MemoryStorage) ClaimDispatch(ctx context.Context, medID, date, tod string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := markerKey(medID, date, tod)
	if _, exists := m.dispatches[key]; exists {
		return false, nil
	}
	m.dispatches[key] = time.Now()
	return true, nil
}

func (m *MemoryStorage) ReleaseDispatch(ctx context.Context, medID, date, tod string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.dispatches, markerKey(medID, date, tod))
	return nil
}

func (m *MemoryStorage) Close(ctx context.Context) error {
	return nil
}
