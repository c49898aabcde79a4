package handlers

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/linusbett/MedTrack-Backend/internal/medication"
	"github.com/linusbett/MedTrack-Backend/internal/storage"
)

func (h *Handlers) AddMedication(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name     string   `json:"name"`
		Dosage   string   `json:"dosage"`
		Schedule []string `json:"schedule"`
	}
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Name == "" || req.Dosage == "" || len(req.Schedule) == 0 {
		h.writeError(w, r, http.StatusBadRequest, "name, dosage, and schedule[] are required")
		return
	}

	claims, _ := claimsFrom(r.Context())
	now := h.now()
	med, err := medication.New(uuid.NewString(), claims.UserID, req.Name, req.Dosage, req.Schedule, h.horizon, now, now)
	if err != nil {
		h.writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.store.CreateMedication(r.Context(), med); err != nil {
		h.log.WithError(err).Error("Failed to create medication")
		h.writeError(w, r, http.StatusInternalServerError, "server error")
		return
	}

	h.log.WithFields(logrus.Fields{
		"medication_id": med.ID,
		"user_id":       med.UserID,
		"occurrences":   len(med.Occurrences),
	}).Info("Medication added")
	h.writeJSON(w, http.StatusCreated, "Medication added successfully", med)
}

func (h *Handlers) ListMedications(w http.ResponseWriter, r *http.Request) {
	claims, _ := claimsFrom(r.Context())
	meds, err := h.store.ListMedications(r.Context(), claims.UserID)
	if err != nil {
		h.log.WithError(err).Error("Failed to list medications")
		h.writeError(w, r, http.StatusInternalServerError, "server error")
		return
	}
	h.writeJSON(w, http.StatusOK, "Medications fetched successfully", meds)
}

// todayReminder is one dose event on today's date, flattened for clients.
type todayReminder struct {
	MedicationID string                `json:"medication_id"`
	Name         string                `json:"name"`
	Dosage       string                `json:"dosage"`
	Occurrence   medication.Occurrence `json:"occurrence"`
}

func (h *Handlers) TodayReminders(w http.ResponseWriter, r *http.Request) {
	claims, _ := claimsFrom(r.Context())
	meds, err := h.store.ListMedications(r.Context(), claims.UserID)
	if err != nil {
		h.log.WithError(err).Error("Failed to list medications")
		h.writeError(w, r, http.StatusInternalServerError, "server error")
		return
	}

	today := h.now().Format(medication.DateLayout)
	reminders := []todayReminder{}
	for _, med := range meds {
		for _, occ := range med.OccurrencesOn(today) {
			reminders = append(reminders, todayReminder{
				MedicationID: med.ID,
				Name:         med.Name,
				Dosage:       med.Dosage,
				Occurrence:   occ,
			})
		}
	}
	h.writeJSON(w, http.StatusOK, "Today's reminders fetched successfully", reminders)
}

func (h *Handlers) UpdateReminderStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		MedicationID string            `json:"medication_id"`
		Date         string            `json:"date"`
		Time         string            `json:"time"`
		Status       medication.Status `json:"status"`
	}
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.MedicationID == "" || req.Date == "" || req.Time == "" || !medication.ValidStatus(req.Status) {
		h.writeError(w, r, http.StatusBadRequest, "medication_id, date, time, and a valid status are required")
		return
	}

	claims, _ := claimsFrom(r.Context())
	med, err := h.store.UpdateOccurrenceStatus(r.Context(), req.MedicationID, claims.UserID, req.Date, req.Time, req.Status, h.now())
	if errors.Is(err, storage.ErrNotFound) {
		h.writeError(w, r, http.StatusNotFound, "medication or reminder time not found")
		return
	}
	if err != nil {
		h.log.WithError(err).Error("Failed to update reminder status")
		h.writeError(w, r, http.StatusInternalServerError, "server error")
		return
	}
	h.writeJSON(w, http.StatusOK, "Reminder status updated", med)
}

func (h *Handlers) GetHistory(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	claims, _ := claimsFrom(r.Context())

	med, err := h.store.GetMedication(r.Context(), id, claims.UserID)
	if errors.Is(err, storage.ErrNotFound) {
		h.writeError(w, r, http.StatusNotFound, "medication not found")
		return
	}
	if err != nil {
		h.log.WithError(err).Error("Failed to get medication")
		h.writeError(w, r, http.StatusInternalServerError, "server error")
		return
	}
	h.writeJSON(w, http.StatusOK, "History fetched successfully", med.History)
}

func (h *Handlers) DeleteMedication(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	claims, _ := claimsFrom(r.Context())

	err := h.store.DeleteMedication(r.Context(), id, claims.UserID)
	if errors.Is(err, storage.ErrNotFound) {
		h.writeError(w, r, http.StatusNotFound, "medication not found")
		return
	}
	if err != nil {
		h.log.WithError(err).Error("Failed to delete medication")
		h.writeError(w, r, http.StatusInternalServerError, "server error")
		return
	}
	h.writeJSON(w, http.StatusOK, "Medication deleted", nil)
}
