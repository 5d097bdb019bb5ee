package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/Capstone-POKI/Pitchcoach-BACK/internal/domain"
	"github.com/Capstone-POKI/Pitchcoach-BACK/internal/service"
	"github.com/Capstone-POKI/Pitchcoach-BACK/pkg/httputil"
	"github.com/Capstone-POKI/Pitchcoach-BACK/pkg/middleware"
)

// AuthHandler handles HTTP requests for session endpoints.
type AuthHandler struct {
	service *service.AuthService
	logger  *slog.Logger
}

// NewAuthHandler creates a new auth HTTP handler.
func NewAuthHandler(svc *service.AuthService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{service: svc, logger: logger}
}

// --- Request DTOs ---

// SignupRequest is the JSON request body for local signup.
type SignupRequest struct {
	Name     string `json:"name" validate:"required,min=1,max=50"`
	Email    string `json:"email" validate:"required,email"`
	Phone    string `json:"phone" validate:"required,phone"`
	Password string `json:"password" validate:"required,password"`
}

// LoginRequest is the JSON request body for password login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RefreshTokenRequest is the JSON request body for refresh and logout.
type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// GoogleLoginRequest is the JSON request body for Google sign-in.
type GoogleLoginRequest struct {
	IDToken string `json:"id_token" validate:"required"`
}

// --- Response types ---

// SessionResponse is returned by every endpoint that starts a session.
type SessionResponse struct {
	UserID            string    `json:"user_id"`
	Email             string    `json:"email"`
	Name              string    `json:"name"`
	IsProfileComplete bool      `json:"is_profile_complete"`
	IsNewUser         bool      `json:"is_new_user"`
	AccessToken       string    `json:"access_token"`
	RefreshToken      string    `json:"refresh_token"`
	TokenType         string    `json:"token_type"`
	ExpiresAt         time.Time `json:"expires_at"`
}

// TokenResponse is returned by the refresh endpoint.
type TokenResponse struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// MeResponse describes the authenticated account.
type MeResponse struct {
	UserID            string            `json:"user_id"`
	Email             string            `json:"email"`
	Name              string            `json:"name"`
	Phone             *string           `json:"phone"`
	AuthType          domain.AuthOrigin `json:"auth_type"`
	IsProfileComplete bool              `json:"is_profile_complete"`
}

// MessageResponse carries a human-readable confirmation.
type MessageResponse struct {
	Message string `json:"message"`
}

func newSessionResponse(res *service.AuthResult) SessionResponse {
	return SessionResponse{
		UserID:            res.Account.ID,
		Email:             res.Account.Email,
		Name:              res.Account.Name,
		IsProfileComplete: res.Account.IsProfileComplete,
		IsNewUser:         res.IsNewAccount,
		AccessToken:       res.Tokens.AccessToken,
		RefreshToken:      res.Tokens.RefreshToken,
		TokenType:         res.Tokens.TokenType,
		ExpiresAt:         res.Tokens.AccessTokenExpiresAt,
	}
}

// --- Handlers ---

// Signup handles POST /api/auth/signup
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	res, err := h.service.Signup(r.Context(), service.SignupInput{
		Name:     req.Name,
		Email:    req.Email,
		Phone:    req.Phone,
		Password: req.Password,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: newSessionResponse(res)})
}

// Login handles POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	res, err := h.service.Login(r.Context(), service.LoginInput{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: newSessionResponse(res)})
}

// Refresh handles POST /api/auth/refresh
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshTokenRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	tokens, err := h.service.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: TokenResponse{
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		TokenType:    tokens.TokenType,
		ExpiresAt:    tokens.AccessTokenExpiresAt,
	}})
}

// Logout handles POST /api/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	var req RefreshTokenRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	if err := h.service.Logout(r.Context(), middleware.UserIDFromContext(r.Context()), req.RefreshToken); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: MessageResponse{Message: "logged out"}})
}

// Google handles POST /api/auth/google
func (h *AuthHandler) Google(w http.ResponseWriter, r *http.Request) {
	var req GoogleLoginRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	res, err := h.service.FederatedLogin(r.Context(), req.IDToken)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	status := http.StatusOK
	if res.IsNewAccount {
		status = http.StatusCreated
	}
	httputil.WriteJSON(w, status, httputil.Response{Data: newSessionResponse(res)})
}

// Me handles GET /api/auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	account, err := h.service.Me(r.Context(), middleware.UserIDFromContext(r.Context()))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: MeResponse{
		UserID:            account.ID,
		Email:             account.Email,
		Name:              account.Name,
		Phone:             account.Phone,
		AuthType:          account.AuthOrigin,
		IsProfileComplete: account.IsProfileComplete,
	}})
}
