package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/Capstone-POKI/Pitchcoach-BACK/internal/service"
	"github.com/Capstone-POKI/Pitchcoach-BACK/pkg/httputil"
	"github.com/Capstone-POKI/Pitchcoach-BACK/pkg/middleware"
	"github.com/Capstone-POKI/Pitchcoach-BACK/pkg/validator"
)

const maxRequestBody = 1 << 20 // 1MB

// UserHandler handles HTTP requests for the authenticated account.
type UserHandler struct {
	service *service.AuthService
	logger  *slog.Logger
}

// NewUserHandler creates a new user HTTP handler.
func NewUserHandler(svc *service.AuthService, logger *slog.Logger) *UserHandler {
	return &UserHandler{service: svc, logger: logger}
}

// ChangePasswordRequest is the JSON request body for changing the password.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,password"`
}

// ChangePassword handles PATCH /api/users/me/password
func (h *UserHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req ChangePasswordRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	userID := middleware.UserIDFromContext(r.Context())
	if err := h.service.ChangePassword(r.Context(), userID, req.CurrentPassword, req.NewPassword); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{
		Data: MessageResponse{Message: "password changed; please log in again"},
	})
}

// DeleteAccount handles DELETE /api/users/me
func (h *UserHandler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())
	if err := h.service.DeleteAccount(r.Context(), userID); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{
		Data: MessageResponse{Message: "account deleted"},
	})
}

// decodeRequest decodes and validates a JSON body into dst, writing a 400
// response on failure.
func decodeRequest(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)

	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
		})
		return false
	}

	if err := validator.Validate(dst); err != nil {
		httputil.WriteValidationError(w, err)
		return false
	}
	return true
}
