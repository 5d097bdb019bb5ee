package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Default token lifetimes.
const (
	DefaultAccessTTL  = time.Hour
	DefaultRefreshTTL = 7 * 24 * time.Hour
)

// TokenKind distinguishes access tokens from refresh tokens.
type TokenKind string

const (
	KindAccess  TokenKind = "access"
	KindRefresh TokenKind = "refresh"
)

// Verification failures returned by TokenIssuer.Verify.
var (
	ErrTokenExpired      = errors.New("token expired")
	ErrTokenMalformed    = errors.New("token malformed")
	ErrTokenBadSignature = errors.New("token signature invalid")
)

// Claims represents the JWT claims carried by both token kinds. The subject
// holds the account id. Email is advisory and only present on access tokens.
type Claims struct {
	Email string    `json:"email,omitempty"`
	Kind  TokenKind `json:"kind"`
	jwt.RegisteredClaims
}

// AccountID returns the subject of the token.
func (c *Claims) AccountID() string {
	return c.Subject
}

// TokenIssuer signs and verifies HS256 session tokens with a single
// process-wide secret.
type TokenIssuer struct {
	secret     []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// NewTokenIssuer creates a token issuer. Zero lifetimes fall back to the
// defaults. An empty secret is rejected.
func NewTokenIssuer(secret, issuer string, accessTTL, refreshTTL time.Duration) (*TokenIssuer, error) {
	if secret == "" {
		return nil, errors.New("token issuer: signing secret is required")
	}
	if accessTTL <= 0 {
		accessTTL = DefaultAccessTTL
	}
	if refreshTTL <= 0 {
		refreshTTL = DefaultRefreshTTL
	}
	return &TokenIssuer{
		secret:     []byte(secret),
		issuer:     issuer,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}, nil
}

// AccessTTL returns the lifetime of access tokens.
func (m *TokenIssuer) AccessTTL() time.Duration { return m.accessTTL }

// RefreshTTL returns the lifetime of refresh tokens.
func (m *TokenIssuer) RefreshTTL() time.Duration { return m.refreshTTL }

// IssueAccess creates a signed access token for the account.
func (m *TokenIssuer) IssueAccess(accountID, email string) (string, time.Time, error) {
	token, exp, err := m.sign(accountID, email, KindAccess, m.accessTTL)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign access token: %w", err)
	}
	return token, exp, nil
}

// IssueRefresh creates a signed refresh token for the account.
func (m *TokenIssuer) IssueRefresh(accountID string) (string, time.Time, error) {
	token, exp, err := m.sign(accountID, "", KindRefresh, m.refreshTTL)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign refresh token: %w", err)
	}
	return token, exp, nil
}

func (m *TokenIssuer) sign(accountID, email string, kind TokenKind, ttl time.Duration) (string, time.Time, error) {
	now := m.now().UTC()
	exp := now.Add(ttl)
	claims := &Claims{
		Email: email,
		Kind:  kind,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   accountID,
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	// NumericDate truncates to seconds; report what the token actually says.
	return signed, claims.ExpiresAt.Time, nil
}

// Verify checks the signature and expiry of a token and returns its claims.
// When the signature is valid but the token has expired, the claims are
// returned together with ErrTokenExpired.
func (m *TokenIssuer) Verify(tokenString string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	}
	if m.issuer != "" {
		opts = append(opts, jwt.WithIssuer(m.issuer))
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secret, nil
	}, opts...)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
			return nil, fmt.Errorf("%w: %v", ErrTokenBadSignature, err)
		case errors.Is(err, jwt.ErrTokenInvalidIssuer):
			return nil, fmt.Errorf("%w: %v", ErrTokenMalformed, err)
		case errors.Is(err, jwt.ErrTokenExpired):
			if claims.Subject == "" {
				return nil, ErrTokenMalformed
			}
			return claims, ErrTokenExpired
		default:
			return nil, fmt.Errorf("%w: %v", ErrTokenMalformed, err)
		}
	}

	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrTokenMalformed)
	}
	if claims.Kind != KindAccess && claims.Kind != KindRefresh {
		return nil, fmt.Errorf("%w: unknown token kind %q", ErrTokenMalformed, claims.Kind)
	}

	return claims, nil
}
