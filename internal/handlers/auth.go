package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/linusbett/MedTrack-Backend/internal/auth"
	"github.com/linusbett/MedTrack-Backend/internal/storage"
	"github.com/linusbett/MedTrack-Backend/internal/user"
)

// codeValiditySeconds is how long a verification or forgot-password code
// stays usable after it is mailed out.
const codeValiditySeconds = 10 * 60

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func validCredentials(email, password string) string {
	if len(email) < 5 || !strings.Contains(email, "@") {
		return "a valid email is required"
	}
	if len(password) < 8 {
		return "password must have at least 8 characters"
	}
	return ""
}

func (h *Handlers) Signup(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, http.StatusBadRequest, "invalid JSON body")
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if msg := validCredentials(req.Email, req.Password); msg != "" {
		h.writeError(w, r, http.StatusBadRequest, msg)
		return
	}

	hashed, err := auth.HashPassword(req.Password)
	if err != nil {
		h.writeError(w, r, http.StatusInternalServerError, "server error")
		return
	}

	now := h.now()
	u := &user.User{
		ID:        uuid.NewString(),
		Email:     req.Email,
		Password:  hashed,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := h.store.CreateUser(r.Context(), u); err != nil {
		if errors.Is(err, storage.ErrDuplicateEmail) {
			h.writeError(w, r, http.StatusConflict, "user already exists")
			return
		}
		h.log.WithError(err).Error("Failed to create user")
		h.writeError(w, r, http.StatusInternalServerError, "server error")
		return
	}

	token, err := h.tokens.Sign(u.ID, u.Email, u.Verified)
	if err != nil {
		h.writeError(w, r, http.StatusInternalServerError, "server error")
		return
	}

	h.writeJSON(w, http.StatusCreated, "Your account has been created successfully", map[string]interface{}{
		"token": token,
		"user":  u.Public(),
	})
}

func (h *Handlers) Signin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, http.StatusBadRequest, "invalid JSON body")
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	u, err := h.store.GetUserByEmail(r.Context(), req.Email)
	if err != nil || !auth.CheckPassword(req.Password, u.Password) {
		h.writeError(w, r, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token, err := h.tokens.Sign(u.ID, u.Email, u.Verified)
	if err != nil {
		h.writeError(w, r, http.StatusInternalServerError, "server error")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     "Authorization",
		Value:    "Bearer " + token,
		Path:     "/",
		HttpOnly: true,
	})
	h.writeJSON(w, http.StatusOK, "logged in successfully", map[string]interface{}{
		"token": token,
		"user":  u.Public(),
	})
}

func (h *Handlers) Signout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     "Authorization",
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
	h.writeJSON(w, http.StatusOK, "logged out successfully", nil)
}

func (h *Handlers) SendVerificationCode(w http.ResponseWriter, r *http.Request) {
	claims, _ := claimsFrom(r.Context())
	u, err := h.store.GetUser(r.Context(), claims.UserID)
	if err != nil {
		h.writeError(w, r, http.StatusNotFound, "user not found")
		return
	}
	if u.Verified {
		h.writeError(w, r, http.StatusBadRequest, "you are already verified")
		return
	}

	code, err := auth.GenerateCode()
	if err != nil {
		h.writeError(w, r, http.StatusInternalServerError, "server error")
		return
	}
	u.VerificationCode = auth.HMACCode(code, h.hmacSecret)
	u.VerificationCodeValidation = h.now().Unix()
	u.UpdatedAt = h.now()
	if err := h.store.UpdateUser(r.Context(), u); err != nil {
		h.log.WithError(err).Error("Failed to store verification code")
		h.writeError(w, r, http.StatusInternalServerError, "server error")
		return
	}

	body := fmt.Sprintf("Your MedTrack verification code is %s. It expires in 10 minutes.", code)
	if err := h.mailer.Send(r.Context(), u.Email, "Verify your MedTrack account", body); err != nil {
		h.log.WithError(err).Error("Failed to send verification email")
		h.writeError(w, r, http.StatusInternalServerError, "failed to send code")
		return
	}
	h.writeJSON(w, http.StatusOK, "code sent", nil)
}

func (h *Handlers) VerifyVerificationCode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code string `json:"code"`
	}
	if err := decodeJSON(r, &req); err != nil || req.Code == "" {
		h.writeError(w, r, http.StatusBadRequest, "code is required")
		return
	}

	claims, _ := claimsFrom(r.Context())
	u, err := h.store.GetUser(r.Context(), claims.UserID)
	if err != nil {
		h.writeError(w, r, http.StatusNotFound, "user not found")
		return
	}
	if u.Verified {
		h.writeError(w, r, http.StatusBadRequest, "you are already verified")
		return
	}
	if u.VerificationCode == "" || h.now().Unix()-u.VerificationCodeValidation > codeValiditySeconds {
		h.writeError(w, r, http.StatusBadRequest, "code has expired")
		return
	}
	if !auth.CheckCode(req.Code, h.hmacSecret, u.VerificationCode) {
		h.writeError(w, r, http.StatusBadRequest, "invalid code")
		return
	}

	u.Verified = true
	u.VerificationCode = ""
	u.VerificationCodeValidation = 0
	u.UpdatedAt = h.now()
	if err := h.store.UpdateUser(r.Context(), u); err != nil {
		h.log.WithError(err).Error("Failed to mark user verified")
		h.writeError(w, r, http.StatusInternalServerError, "server error")
		return
	}
	h.writeJSON(w, http.StatusOK, "your account has been verified", nil)
}

func (h *Handlers) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OldPassword string `json:"old_password"`
		NewPassword string `json:"new_password"`
	}
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if len(req.NewPassword) < 8 {
		h.writeError(w, r, http.StatusBadRequest, "password must have at least 8 characters")
		return
	}

	claims, _ := claimsFrom(r.Context())
	u, err := h.store.GetUser(r.Context(), claims.UserID)
	if err != nil {
		h.writeError(w, r, http.StatusNotFound, "user not found")
		return
	}
	if !auth.CheckPassword(req.OldPassword, u.Password) {
		h.writeError(w, r, http.StatusUnauthorized, "invalid credentials")
		return
	}

	hashed, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		h.writeError(w, r, http.StatusInternalServerError, "server error")
		return
	}
	u.Password = hashed
	u.UpdatedAt = h.now()
	if err := h.store.UpdateUser(r.Context(), u); err != nil {
		h.log.WithError(err).Error("Failed to change password")
		h.writeError(w, r, http.StatusInternalServerError, "server error")
		return
	}
	h.writeJSON(w, http.StatusOK, "password changed", nil)
}

func (h *Handlers) SendForgotPasswordCode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := decodeJSON(r, &req); err != nil || req.Email == "" {
		h.writeError(w, r, http.StatusBadRequest, "email is required")
		return
	}

	u, err := h.store.GetUserByEmail(r.Context(), strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		h.writeError(w, r, http.StatusNotFound, "user not found")
		return
	}

	code, err := auth.GenerateCode()
	if err != nil {
		h.writeError(w, r, http.StatusInternalServerError, "server error")
		return
	}
	u.ForgotPasswordCode = auth.HMACCode(code, h.hmacSecret)
	u.ForgotPasswordCodeValidation = h.now().Unix()
	u.UpdatedAt = h.now()
	if err := h.store.UpdateUser(r.Context(), u); err != nil {
		h.log.WithError(err).Error("Failed to store forgot-password code")
		h.writeError(w, r, http.StatusInternalServerError, "server error")
		return
	}

	body := fmt.Sprintf("Your MedTrack password reset code is %s. It expires in 10 minutes.", code)
	if err := h.mailer.Send(r.Context(), u.Email, "Reset your MedTrack password", body); err != nil {
		h.log.WithError(err).Error("Failed to send forgot-password email")
		h.writeError(w, r, http.StatusInternalServerError, "failed to send code")
		return
	}
	h.writeJSON(w, http.StatusOK, "code sent", nil)
}

func (h *Handlers) VerifyForgotPasswordCode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email       string `json:"email"`
		Code        string `json:"code"`
		NewPassword string `json:"new_password"`
	}
	if err := decodeJSON(r, &req); err != nil || req.Email == "" || req.Code == "" {
		h.writeError(w, r, http.StatusBadRequest, "email and code are required")
		return
	}
	if len(req.NewPassword) < 8 {
		h.writeError(w, r, http.StatusBadRequest, "password must have at least 8 characters")
		return
	}

	u, err := h.store.GetUserByEmail(r.Context(), strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		h.writeError(w, r, http.StatusNotFound, "user not found")
		return
	}
	if u.ForgotPasswordCode == "" || h.now().Unix()-u.ForgotPasswordCodeValidation > codeValiditySeconds {
		h.writeError(w, r, http.StatusBadRequest, "code has expired")
		return
	}
	if !auth.CheckCode(req.Code, h.hmacSecret, u.ForgotPasswordCode) {
		h.writeError(w, r, http.StatusBadRequest, "invalid code")
		return
	}

	hashed, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		h.writeError(w, r, http.StatusInternalServerError, "server error")
		return
	}
	u.Password = hashed
	u.ForgotPasswordCode = ""
	u.ForgotPasswordCodeValidation = 0
	u.UpdatedAt = h.now()
	if err := h.store.UpdateUser(r.Context(), u); err != nil {
		h.log.WithError(err).Error("Failed to reset password")
		h.writeError(w, r, http.StatusInternalServerError, "server error")
		return
	}
	h.writeJSON(w, http.StatusOK, "password updated", nil)
}

// RegisterFCMToken stores the caller's push device token. An empty token
// unregisters the device.
func (h *Handlers) RegisterFCMToken(w http.ResponseWriter, r *http.Request) {
	var req struct {
		FCMToken string `json:"fcm_token"`
	}
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, http.StatusBadRequest, "invalid JSON body")
		return
	}

	claims, _ := claimsFrom(r.Context())
	u, err := h.store.GetUser(r.Context(), claims.UserID)
	if err != nil {
		h.writeError(w, r, http.StatusNotFound, "user not found")
		return
	}
	u.FCMToken = req.FCMToken
	u.UpdatedAt = h.now()
	if err := h.store.UpdateUser(r.Context(), u); err != nil {
		h.log.WithError(err).Error("Failed to update device token")
		h.writeError(w, r, http.StatusInternalServerError, "server error")
		return
	}
	h.writeJSON(w, http.StatusOK, "device token updated", nil)
}
