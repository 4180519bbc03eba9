package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/adb-analytics/apiserver/internal/services"
	"github.com/adb-analytics/apiserver/internal/validation"
)

// PasswordHandler serves the forgot/reset password flow.
type PasswordHandler struct {
	userService *services.UserService
}

func NewPasswordHandler(userService *services.UserService) *PasswordHandler {
	return &PasswordHandler{userService: userService}
}

// PasswordRouter registers the reset routes. limit wraps forgot-password
// and may be nil.
func PasswordRouter(r chi.Router, userService *services.UserService, limit func(http.Handler) http.Handler) {
	handler := NewPasswordHandler(userService)

	if limit != nil {
		r.With(limit).Post("/forgot-password", handler.ForgotPassword)
	} else {
		r.Post("/forgot-password", handler.ForgotPassword)
	}
	r.Post("/reset-password", handler.ResetPassword)
}

// ForgotPassword answers 200 whether or not the email has an account.
func (h *PasswordHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req validation.ForgotPasswordInput
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	if err := h.userService.ForgotPassword(r.Context(), req); err != nil {
		if writeValidation(w, err) {
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to process request")
		return
	}

	writeJSON(w, http.StatusOK, MessageResponse{Message: "If that email is registered, a reset link has been sent"})
}

func (h *PasswordHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req validation.ResetPasswordInput
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	if err := h.userService.ResetPassword(r.Context(), req); err != nil {
		if writeValidation(w, err) {
			return
		}
		if errors.Is(err, services.ErrInvalidResetToken) {
			writeError(w, http.StatusBadRequest, "Invalid or expired reset token")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to reset password")
		return
	}

	writeJSON(w, http.StatusOK, MessageResponse{Message: "Password has been reset"})
}

type MessageResponse struct {
	Message string `json:"message"`
}
