package domain

import (
	"time"
)

// Account represents a registered end user.
type Account struct {
	ID                    string     `json:"id"`
	Name                  string     `json:"name"`
	Email                 string     `json:"email"`
	Phone                 *string    `json:"phone,omitempty"`
	PasswordHash          *string    `json:"-"`
	AuthOrigin            AuthOrigin `json:"auth_type"`
	IsProfileComplete     bool       `json:"is_profile_complete"`
	IsDeleted             bool       `json:"-"`
	DeletedAt             *time.Time `json:"-"`
	RefreshTokenHash      *string    `json:"-"`
	RefreshTokenExpiresAt *time.Time `json:"-"`
	LastLoginAt           *time.Time `json:"last_login_at,omitempty"`
	CreatedAt             time.Time  `json:"created_at"`
	UpdatedAt             time.Time  `json:"updated_at"`
}

// HasPassword reports whether the account can log in with a password.
// Accounts created through identity federation have none.
func (a *Account) HasPassword() bool {
	return a.PasswordHash != nil && *a.PasswordHash != ""
}

// HasRefreshToken reports whether a refresh token is currently recorded.
func (a *Account) HasRefreshToken() bool {
	return a.RefreshTokenHash != nil && a.RefreshTokenExpiresAt != nil
}

// RefreshTokenExpired reports whether the recorded refresh token has expired
// at the given instant. An account without a refresh token is treated as
// expired.
func (a *Account) RefreshTokenExpired(now time.Time) bool {
	if a.RefreshTokenExpiresAt == nil {
		return true
	}
	return !now.Before(*a.RefreshTokenExpiresAt)
}

// SetRefreshToken records the digest and expiry of a newly issued refresh
// token. The two fields are always written together.
func (a *Account) SetRefreshToken(hash string, expiresAt time.Time) {
	a.RefreshTokenHash = &hash
	a.RefreshTokenExpiresAt = &expiresAt
}

// ClearRefreshToken drops the recorded refresh token.
func (a *Account) ClearRefreshToken() {
	a.RefreshTokenHash = nil
	a.RefreshTokenExpiresAt = nil
}

// MarkDeleted soft-deletes the account. Deletion is terminal.
func (a *Account) MarkDeleted(now time.Time) {
	a.IsDeleted = true
	a.DeletedAt = &now
	a.ClearRefreshToken()
}

// TokenPair holds an access and refresh token pair.
type TokenPair struct {
	AccessToken           string    `json:"access_token"`
	RefreshToken          string    `json:"refresh_token"`
	TokenType             string    `json:"token_type"`
	AccessTokenExpiresAt  time.Time `json:"access_token_expires_at"`
	RefreshTokenExpiresAt time.Time `json:"refresh_token_expires_at"`
}
