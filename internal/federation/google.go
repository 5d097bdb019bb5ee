package federation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/lestrrat-go/jwx/v3/jwk"
	"github.com/lestrrat-go/jwx/v3/jwt"

	"github.com/Capstone-POKI/Pitchcoach-BACK/internal/domain"
	"github.com/Capstone-POKI/Pitchcoach-BACK/pkg/httpclient"
)

// DefaultGoogleJWKSURL is where Google publishes its ID token signing keys.
const DefaultGoogleJWKSURL = "https://www.googleapis.com/oauth2/v3/certs"

const (
	defaultKeyCacheTTL = time.Hour
	// minRefetchInterval bounds how often an unknown key id can force a
	// JWKS refetch.
	minRefetchInterval = time.Minute
	maxJWKSBytes       = 1 << 20
)

var googleIssuers = map[string]struct{}{
	"accounts.google.com":         {},
	"https://accounts.google.com": {},
}

// Identity is a verified identity asserted by an external provider.
type Identity struct {
	Provider domain.AuthOrigin
	Subject  string
	Email    string
	Name     string
}

// HTTPGetter fetches a URL. *httpclient.CircuitBreakerClient satisfies it.
type HTTPGetter interface {
	Get(ctx context.Context, url string) (*http.Response, error)
}

// GoogleVerifier validates Google ID tokens against Google's published
// signing keys. Keys are cached in memory and refreshed after a TTL.
type GoogleVerifier struct {
	clientID string
	jwksURL  string
	client   HTTPGetter
	cacheTTL time.Duration
	logger   *slog.Logger
	now      func() time.Time

	mu        sync.RWMutex
	keys      jwk.Set
	fetchedAt time.Time
}

// NewGoogleVerifier creates a verifier for ID tokens issued to clientID.
// An empty jwksURL selects Google's production endpoint.
func NewGoogleVerifier(clientID, jwksURL string, client HTTPGetter, logger *slog.Logger) (*GoogleVerifier, error) {
	if clientID == "" {
		return nil, errors.New("google verifier: client id is required")
	}
	if jwksURL == "" {
		jwksURL = DefaultGoogleJWKSURL
	}
	return &GoogleVerifier{
		clientID: clientID,
		jwksURL:  jwksURL,
		client:   client,
		cacheTTL: defaultKeyCacheTTL,
		logger:   logger,
		now:      time.Now,
	}, nil
}

// Validate verifies the signature, audience, issuer and expiry of an ID
// token and requires a verified email. Every failure is reported as
// domain.ErrInvalidFederatedToken.
func (v *GoogleVerifier) Validate(ctx context.Context, idToken string) (*Identity, error) {
	if strings.TrimSpace(idToken) == "" {
		return nil, domain.ErrInvalidFederatedToken
	}

	identity, err := v.validate(ctx, idToken)
	if err != nil {
		v.logger.DebugContext(ctx, "google id token rejected", slog.String("reason", err.Error()))
		return nil, domain.ErrInvalidFederatedToken
	}
	return identity, nil
}

func (v *GoogleVerifier) validate(ctx context.Context, idToken string) (*Identity, error) {
	keys, fetchedAt, err := v.keySet(ctx, false)
	if err != nil {
		return nil, err
	}

	tok, err := v.parse(idToken, keys)
	if err != nil && v.now().Sub(fetchedAt) >= minRefetchInterval {
		// Google rotates keys; a token signed with a new key fails against
		// a stale set.
		keys, _, ferr := v.keySet(ctx, true)
		if ferr != nil {
			return nil, ferr
		}
		tok, err = v.parse(idToken, keys)
	}
	if err != nil {
		return nil, fmt.Errorf("verify id token: %w", err)
	}

	iss, _ := tok.Issuer()
	if _, ok := googleIssuers[iss]; !ok {
		return nil, fmt.Errorf("unexpected issuer %q", iss)
	}

	sub, ok := tok.Subject()
	if !ok || sub == "" {
		return nil, errors.New("missing subject")
	}

	var email string
	if err := tok.Get("email", &email); err != nil || email == "" {
		return nil, errors.New("missing email")
	}

	if !emailVerified(tok) {
		return nil, errors.New("email not verified")
	}

	var name string
	_ = tok.Get("name", &name)

	return &Identity{
		Provider: domain.AuthOriginGoogle,
		Subject:  sub,
		Email:    email,
		Name:     name,
	}, nil
}

func (v *GoogleVerifier) parse(idToken string, keys jwk.Set) (jwt.Token, error) {
	return jwt.Parse([]byte(idToken),
		jwt.WithKeySet(keys),
		jwt.WithValidate(true),
		jwt.WithAudience(v.clientID),
		jwt.WithClock(jwt.ClockFunc(v.now)),
	)
}

// emailVerified accepts both the boolean claim and the legacy string form.
func emailVerified(tok jwt.Token) bool {
	var raw any
	if err := tok.Get("email_verified", &raw); err != nil {
		return false
	}
	switch val := raw.(type) {
	case bool:
		return val
	case string:
		return val == "true"
	default:
		return false
	}
}

func (v *GoogleVerifier) keySet(ctx context.Context, force bool) (jwk.Set, time.Time, error) {
	v.mu.RLock()
	keys, fetchedAt := v.keys, v.fetchedAt
	v.mu.RUnlock()

	if !force && keys != nil && v.now().Sub(fetchedAt) < v.cacheTTL {
		return keys, fetchedAt, nil
	}

	fresh, err := v.fetch(ctx)
	if err != nil {
		if keys != nil && !force {
			v.logger.WarnContext(ctx, "jwks refresh failed, using cached keys", slog.String("error", err.Error()))
			return keys, fetchedAt, nil
		}
		return nil, time.Time{}, err
	}

	now := v.now()
	v.mu.Lock()
	v.keys, v.fetchedAt = fresh, now
	v.mu.Unlock()

	return fresh, now, nil
}

func (v *GoogleVerifier) fetch(ctx context.Context) (jwk.Set, error) {
	resp, err := v.client.Get(ctx, v.jwksURL)
	if err != nil {
		return nil, fmt.Errorf("fetch jwks: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch jwks: %w", httpclient.ParseResponseError(resp, "google-jwks"))
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxJWKSBytes))
	if err != nil {
		return nil, fmt.Errorf("read jwks: %w", err)
	}

	set, err := jwk.Parse(body)
	if err != nil {
		return nil, fmt.Errorf("parse jwks: %w", err)
	}
	return set, nil
}
