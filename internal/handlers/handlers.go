package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/linusbett/MedTrack-Backend/internal/auth"
	"github.com/linusbett/MedTrack-Backend/internal/mail"
	"github.com/linusbett/MedTrack-Backend/internal/storage"
)

// Handlers carries the collaborators every HTTP handler needs.
type Handlers struct {
	store      storage.Storage
	tokens     *auth.TokenManager
	mailer     mail.Mailer
	log        *logrus.Logger
	hmacSecret string
	horizon    int
	now        func() time.Time
}

func New(store storage.Storage, tokens *auth.TokenManager, mailer mail.Mailer, log *logrus.Logger, hmacSecret string, horizonDays int) *Handlers {
	return &Handlers{
		store:      store,
		tokens:     tokens,
		mailer:     mailer,
		log:        log,
		hmacSecret: hmacSecret,
		horizon:    horizonDays,
		now:        time.Now,
	}
}

// Routes registers every endpoint on the router.
func (h *Handlers) Routes(r *mux.Router) {
	// Auth routes
	r.HandleFunc("/api/auth/signup", h.Signup).Methods("POST")
	r.HandleFunc("/api/auth/signin", h.Signin).Methods("POST")
	r.HandleFunc("/api/auth/signout", h.requireAuth(h.Signout)).Methods("POST")
	r.HandleFunc("/api/auth/send-verification-code", h.requireAuth(h.SendVerificationCode)).Methods("PATCH")
	r.HandleFunc("/api/auth/verify-verification-code", h.requireAuth(h.VerifyVerificationCode)).Methods("PATCH")
	r.HandleFunc("/api/auth/change-password", h.requireAuth(h.ChangePassword)).Methods("PATCH")
	r.HandleFunc("/api/auth/send-forgot-password-code", h.SendForgotPasswordCode).Methods("PATCH")
	r.HandleFunc("/api/auth/verify-forgot-password-code", h.VerifyForgotPasswordCode).Methods("PATCH")

	// Device token registration
	r.HandleFunc("/api/users/fcm-token", h.requireAuth(h.RegisterFCMToken)).Methods("PUT")

	// Reminder routes
	r.HandleFunc("/api/reminder/add", h.requireAuth(h.AddMedication)).Methods("POST")
	r.HandleFunc("/api/reminder/list", h.requireAuth(h.ListMedications)).Methods("GET")
	r.HandleFunc("/api/reminder/today", h.requireAuth(h.TodayReminders)).Methods("GET")
	r.HandleFunc("/api/reminder/update-status", h.requireAuth(h.UpdateReminderStatus)).Methods("PATCH")
	r.HandleFunc("/api/reminder/{id}/history", h.requireAuth(h.GetHistory)).Methods("GET")
	r.HandleFunc("/api/reminder/{id}", h.requireAuth(h.DeleteMedication)).Methods("DELETE")
}

// response is the envelope every endpoint answers with.
type response struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func (h *Handlers) writeJSON(w http.ResponseWriter, status int, message string, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(response{Success: true, Message: message, Data: data})
}

func (h *Handlers) writeError(w http.ResponseWriter, r *http.Request, status int, message string) {
	h.log.WithFields(logrus.Fields{
		"method": r.Method,
		"path":   r.URL.Path,
		"status": status,
	}).Warn(message)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(response{Success: false, Message: message})
}

func decodeJSON(r *http.Request, dst interface{}) error {
	return json.NewDecoder(r.Body).Decode(dst)
}
