package storage

import (
	"context"
	"encoding/json"
	"os"
	"sync"
	"time"

	"github.com/linusbett/MedTrack-Backend/internal/medication"
	"github.com/linusbett/MedTrack-Backend/internal/user"
)

// FileStorage persists each collection as a JSON file, reloading and
// rewriting the whole file per operation. Fine for a single small deployment,
// not for anything bigger.
type FileStorage struct {
	userFile       string
	medicationFile string
	dispatchFile   string
	mu             sync.Mutex
}

func NewFileStorage(userFile, medicationFile, dispatchFile string) *FileStorage {
	return &FileStorage{
		userFile:       userFile,
		medicationFile: medicationFile,
		dispatchFile:   dispatchFile,
	}
}

func loadJSONFile[T any](path string) (map[string]T, error) {
	out := make(map[string]T)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return out, nil
	}
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func saveJSONFile[T any](path string, m map[string]T) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// User operations

func (fs *FileStorage) CreateUser(ctx context.Context, u *user.User) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	users, err := loadJSONFile[*user.User](fs.userFile)
	if err != nil {
		return err
	}
	for _, existing := range users {
		if existing.Email == u.Email {
			return ErrDuplicateEmail
		}
	}
	users[u.ID] = u
	return saveJSONFile(fs.userFile, users)
}

func (fs *FileStorage) GetUser(ctx context.Context, id string) (*user.User, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	users, err := loadJSONFile[*user.User](fs.userFile)
	if err != nil {
		return nil, err
	}
	u, ok := users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return u, nil
}

func (fs *FileStorage) GetUserByEmail(ctx context.Context, email string) (*user.User, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	users, err := loadJSONFile[*user.User](fs.userFile)
	if err != nil {
		return nil, err
	}
	for _, u := range users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, ErrNotFound
}

func (fs *FileStorage) UpdateUser(ctx context.Context, u *user.User) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	users, err := loadJSONFile[*user.User](fs.userFile)
	if err != nil {
		return err
	}
	if _, ok := users[u.ID]; !ok {
		return ErrNotFound
	}
	users[u.ID] = u
	return saveJSONFile(fs.userFile, users)
}

func (fs *FileStorage) GetDeviceToken(ctx context.Context, userID string) (string, error) {
	u, err := fs.GetUser(ctx, userID)
	if err != nil {
		return "", err
	}
	return u.FCMToken, nil
}

// Medication operations

func (fs *FileStorage) CreateMedication(ctx context.Context, med *medication.Medication) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	meds, err := loadJSONFile[*medication.Medication](fs.medicationFile)
	if err != nil {
		return err
	}
	meds[med.ID] = med
	return saveJSONFile(fs.medicationFile, meds)
}

func (fs *FileStorage) GetMedication(ctx context.Context, id, userID string) (*medication.Medication, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	meds, err := loadJSONFile[*medication.Medication](fs.medicationFile)
	if err != nil {
		return nil, err
	}
	med, ok := meds[id]
	if !ok || med.UserID != userID {
		return nil, ErrNotFound
	}
	return med, nil
}

func (fs *FileStorage) ListMedications(ctx context.Context, userID string) ([]*medication.Medication, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	meds, err := loadJSONFile[*medication.Medication](fs.medicationFile)
	if err != nil {
		return nil, err
	}
	var list []*medication.Medication
	for _, med := range meds {
		if med.UserID == userID {
			list = append(list, med)
		}
	}
	return list, nil
}

func (fs *FileStorage) DeleteMedication(ctx context.Context, id, userID string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	meds, err := loadJSONFile[*medication.Medication](fs.medicationFile)
	if err != nil {
		return err
	}
	med, ok := meds[id]
	if !ok || med.UserID != userID {
		return ErrNotFound
	}
	delete(meds, id)
	return saveJSONFile(fs.medicationFile, meds)
}

func (fs *FileStorage) FindDueMedications(ctx context.Context, date string) ([]*medication.Medication, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	meds, err := loadJSONFile[*medication.Medication](fs.medicationFile)
	if err != nil {
		return nil, err
	}
	var list []*medication.Medication
	for _, med := range meds {
		for _, occ := range med.Occurrences {
			if occ.Date == date && occ.Status == medication.StatusPending {
				list = append(list, med)
				break
			}
		}
	}
	return list, nil
}

func (fs *FileStorage) UpdateOccurrenceStatus(ctx context.Context, medID, userID, date, tod string, status medication.Status, now time.Time) (*medication.Medication, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	meds, err := loadJSONFile[*medication.Medication](fs.medicationFile)
	if err != nil {
		return nil, err
	}
	med, ok := meds[medID]
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
	if err := saveJSONFile(fs.medicationFile, meds); err != nil {
		return nil, err
	}
	return med, nil
}

// Dispatch markers

func (fs *FileStorage) ClaimDispatch(ctx context.Context, medID, date, tod string) (bool, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	dispatches, err := loadJSONFile[time.Time](fs.dispatchFile)
	if err != nil {
		return false, err
	}
	key := markerKey(medID, date, tod)
	if _, exists := dispatches[key]; exists {
		return false, nil
	}
	dispatches[key] = time.Now()
	if err := saveJSONFile(fs.dispatchFile, dispatches); err != nil {
		return false, err
	}
	return true, nil
}

func (fs *FileStorage) ReleaseDispatch(ctx context.Context, medID, date, tod string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	dispatches, err := loadJSONFile[time.Time](fs.dispatchFile)
	if err != nil {
		return err
	}
	delete(dispatches, markerKey(medID, date, tod))
	return saveJSONFile(fs.dispatchFile, dispatches)
}

func (fs *FileStorage) Close(ctx context.Context) error {
	return nil
}
