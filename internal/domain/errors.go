package domain

import (
	"net/http"

	apperrors "github.com/Capstone-POKI/Pitchcoach-BACK/pkg/errors"
)

// Failure codes surfaced by the authentication engine.
const (
	CodeEmailAlreadyExists    = "EMAIL_ALREADY_EXISTS"
	CodePhoneAlreadyExists    = "PHONE_ALREADY_EXISTS"
	CodeInvalidCredentials    = "INVALID_CREDENTIALS"
	CodeWrongPassword         = "WRONG_PASSWORD"
	CodeInvalidRefreshToken   = "INVALID_REFRESH_TOKEN"
	CodeRefreshTokenExpired   = "REFRESH_TOKEN_EXPIRED"
	CodeUnauthorized          = "UNAUTHORIZED"
	CodeInvalidFederatedToken = "INVALID_FEDERATED_TOKEN"
)

// Sentinel errors for each failure code. They compare by code, so a freshly
// constructed error with the same code also satisfies errors.Is.
var (
	ErrEmailAlreadyExists = apperrors.Coded(CodeEmailAlreadyExists,
		"an account with this email already exists", http.StatusConflict, apperrors.ErrAlreadyExists)
	ErrPhoneAlreadyExists = apperrors.Coded(CodePhoneAlreadyExists,
		"an account with this phone number already exists", http.StatusConflict, apperrors.ErrAlreadyExists)
	ErrInvalidCredentials = apperrors.Coded(CodeInvalidCredentials,
		"invalid email or password", http.StatusUnauthorized, apperrors.ErrUnauthorized)
	ErrWrongPassword = apperrors.Coded(CodeWrongPassword,
		"current password is incorrect", http.StatusUnauthorized, apperrors.ErrUnauthorized)
	ErrInvalidRefreshToken = apperrors.Coded(CodeInvalidRefreshToken,
		"invalid refresh token", http.StatusUnauthorized, apperrors.ErrUnauthorized)
	ErrRefreshTokenExpired = apperrors.Coded(CodeRefreshTokenExpired,
		"refresh token has expired", http.StatusUnauthorized, apperrors.ErrUnauthorized)
	ErrUnauthorized = apperrors.Coded(CodeUnauthorized,
		"authentication required", http.StatusUnauthorized, apperrors.ErrUnauthorized)
	ErrInvalidFederatedToken = apperrors.Coded(CodeInvalidFederatedToken,
		"invalid identity provider token", http.StatusUnauthorized, apperrors.ErrUnauthorized)
)
