package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Capstone-POKI/Pitchcoach-BACK/internal/auth"
	"github.com/Capstone-POKI/Pitchcoach-BACK/internal/domain"
	"github.com/Capstone-POKI/Pitchcoach-BACK/internal/event"
	"github.com/Capstone-POKI/Pitchcoach-BACK/internal/federation"
	"github.com/Capstone-POKI/Pitchcoach-BACK/internal/repository"
	apperrors "github.com/Capstone-POKI/Pitchcoach-BACK/pkg/errors"
)

// TokenTypeBearer is the token type reported alongside issued tokens.
const TokenTypeBearer = "Bearer"

// IdentityVerifier validates an ID token issued by an external identity
// provider. *federation.GoogleVerifier satisfies it.
type IdentityVerifier interface {
	Validate(ctx context.Context, idToken string) (*federation.Identity, error)
}

// AuthService implements the session lifecycle: signup, login, refresh
// rotation, logout and federated login. Every account holds at most one
// valid refresh token; issuing a new one overwrites the previous digest.
type AuthService struct {
	accounts repository.AccountRepository
	hasher   *auth.Hasher
	tokens   *auth.TokenIssuer
	verifier IdentityVerifier
	producer *event.Producer
	logger   *slog.Logger
	now      func() time.Time
}

// NewAuthService creates a new auth service.
func NewAuthService(
	accounts repository.AccountRepository,
	hasher *auth.Hasher,
	tokens *auth.TokenIssuer,
	verifier IdentityVerifier,
	producer *event.Producer,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		accounts: accounts,
		hasher:   hasher,
		tokens:   tokens,
		verifier: verifier,
		producer: producer,
		logger:   logger,
		now:      time.Now,
	}
}

// --- Input/Output types ---

// SignupInput holds the parameters for creating a local account.
type SignupInput struct {
	Name     string
	Email    string
	Phone    string
	Password string
}

// LoginInput holds the parameters for password login.
type LoginInput struct {
	Email    string
	Password string
}

// AuthResult is returned by every operation that starts a session.
type AuthResult struct {
	Account      *domain.Account
	Tokens       *domain.TokenPair
	IsNewAccount bool
}

// --- Session operations ---

// Signup creates a local account and starts its first session. Email and
// phone must not belong to any account, deleted or not.
func (s *AuthService) Signup(ctx context.Context, input SignupInput) (_ *AuthResult, err error) {
	ctx, end := observe(ctx, "signup")
	defer func() { end(err) }()

	if input.Email == "" {
		return nil, apperrors.InvalidInput("email is required")
	}
	if input.Name == "" {
		return nil, apperrors.InvalidInput("name is required")
	}
	if input.Password == "" {
		return nil, apperrors.InvalidInput("password is required")
	}

	if err := s.ensureUnclaimed(ctx, input.Email, input.Phone); err != nil {
		return nil, err
	}

	digest, err := s.hasher.Hash(input.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := s.now().UTC()
	account := &domain.Account{
		ID:                uuid.New().String(),
		Name:              input.Name,
		Email:             input.Email,
		PasswordHash:      &digest,
		AuthOrigin:        domain.AuthOriginLocal,
		IsProfileComplete: false,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if input.Phone != "" {
		phone := input.Phone
		account.Phone = &phone
	}

	// The pre-checks above can race with a concurrent signup; the store's
	// unique constraints decide the winner.
	if err := s.accounts.Create(ctx, account); err != nil {
		return nil, conflictFromUniqueViolation(err)
	}

	tokens, err := s.startSession(ctx, account)
	if err != nil {
		return nil, err
	}

	if err := s.producer.PublishAccountRegistered(ctx, account); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish account.registered event",
			slog.String("account_id", account.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "account registered",
		slog.String("account_id", account.ID),
		slog.String("auth_origin", string(account.AuthOrigin)),
	)

	return &AuthResult{Account: account, Tokens: tokens, IsNewAccount: true}, nil
}

// Login authenticates with email and password. An unknown email, a
// federated-only account and a wrong password all fail with the same
// INVALID_CREDENTIALS error.
func (s *AuthService) Login(ctx context.Context, input LoginInput) (_ *AuthResult, err error) {
	ctx, end := observe(ctx, "login")
	defer func() { end(err) }()

	if input.Email == "" || input.Password == "" {
		return nil, domain.ErrInvalidCredentials
	}

	account, err := s.accounts.FindActiveByEmail(ctx, input.Email)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("find account by email: %w", err)
	}

	if !account.HasPassword() || !s.hasher.Verify(input.Password, *account.PasswordHash) {
		return nil, domain.ErrInvalidCredentials
	}

	tokens, err := s.startSession(ctx, account)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "account logged in",
		slog.String("account_id", account.ID),
	)

	return &AuthResult{Account: account, Tokens: tokens}, nil
}

// Refresh exchanges a refresh token for a new token pair. The presented
// token is consumed: a second use fails with INVALID_REFRESH_TOKEN.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (_ *domain.TokenPair, err error) {
	ctx, end := observe(ctx, "refresh")
	defer func() { end(err) }()

	claims, err := s.tokens.Verify(refreshToken)
	switch {
	case errors.Is(err, auth.ErrTokenExpired) && claims != nil && claims.Kind == auth.KindRefresh:
		return nil, domain.ErrRefreshTokenExpired
	case err != nil:
		return nil, domain.ErrInvalidRefreshToken
	case claims.Kind != auth.KindRefresh:
		return nil, domain.ErrInvalidRefreshToken
	}

	account, storedDigest, err := s.matchRefreshToken(ctx, claims.AccountID(), refreshToken)
	if err != nil {
		return nil, err
	}

	tokens, newDigest, err := s.issueTokens(account)
	if err != nil {
		return nil, err
	}

	ok, err := s.accounts.RotateRefreshToken(ctx, account.ID, storedDigest, newDigest, tokens.RefreshTokenExpiresAt)
	if err != nil {
		return nil, fmt.Errorf("rotate refresh token: %w", err)
	}
	if !ok {
		// Another request rotated or revoked the token after we read it.
		return nil, domain.ErrInvalidRefreshToken
	}

	s.logger.InfoContext(ctx, "tokens refreshed",
		slog.String("account_id", account.ID),
	)

	return tokens, nil
}

// Logout ends the account's session. The caller must present the current
// refresh token; any other token fails with INVALID_REFRESH_TOKEN.
func (s *AuthService) Logout(ctx context.Context, accountID, refreshToken string) (err error) {
	ctx, end := observe(ctx, "logout")
	defer func() { end(err) }()

	if refreshToken == "" {
		return domain.ErrInvalidRefreshToken
	}

	account, storedDigest, err := s.matchRefreshToken(ctx, accountID, refreshToken)
	if err != nil {
		// An expired session cannot be refreshed anyway, but logout must still
		// prove possession of it.
		if errors.Is(err, domain.ErrRefreshTokenExpired) {
			return domain.ErrInvalidRefreshToken
		}
		return err
	}

	ok, err := s.accounts.ClearRefreshToken(ctx, account.ID, storedDigest)
	if err != nil {
		return fmt.Errorf("clear refresh token: %w", err)
	}
	if !ok {
		return domain.ErrInvalidRefreshToken
	}

	s.logger.InfoContext(ctx, "account logged out",
		slog.String("account_id", account.ID),
	)

	return nil
}

// FederatedLogin signs in with an identity provider ID token, creating the
// account on first use. A soft-deleted account cannot be revived this way.
func (s *AuthService) FederatedLogin(ctx context.Context, idToken string) (_ *AuthResult, err error) {
	ctx, end := observe(ctx, "federated_login")
	defer func() { end(err) }()

	identity, err := s.verifier.Validate(ctx, idToken)
	if err != nil {
		return nil, domain.ErrInvalidFederatedToken
	}

	account, err := s.accounts.FindByEmail(ctx, identity.Email)
	created := false
	switch {
	case err == nil:
	case errors.Is(err, apperrors.ErrNotFound):
		account, created, err = s.createFederatedAccount(ctx, identity)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("find account by email: %w", err)
	}

	if account.IsDeleted {
		return nil, domain.ErrInvalidCredentials
	}

	tokens, err := s.startSession(ctx, account)
	if err != nil {
		return nil, err
	}

	if created {
		if err := s.producer.PublishAccountRegistered(ctx, account); err != nil {
			s.logger.ErrorContext(ctx, "failed to publish account.registered event",
				slog.String("account_id", account.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	s.logger.InfoContext(ctx, "federated login",
		slog.String("account_id", account.ID),
		slog.String("provider", string(identity.Provider)),
		slog.Bool("new_account", created),
	)

	return &AuthResult{Account: account, Tokens: tokens, IsNewAccount: created}, nil
}

// --- Helpers ---

// createFederatedAccount inserts a password-less account for identity. If a
// concurrent request created the email first, the winner's row is returned.
func (s *AuthService) createFederatedAccount(ctx context.Context, identity *federation.Identity) (*domain.Account, bool, error) {
	now := s.now().UTC()
	account := &domain.Account{
		ID:                uuid.New().String(),
		Name:              identity.Name,
		Email:             identity.Email,
		AuthOrigin:        identity.Provider,
		IsProfileComplete: false,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	err := s.accounts.Create(ctx, account)
	if err == nil {
		return account, true, nil
	}

	var uv *repository.UniqueViolationError
	if !errors.As(err, &uv) || uv.Field != repository.FieldEmail {
		return nil, false, fmt.Errorf("create federated account: %w", err)
	}

	existing, err := s.accounts.FindByEmail(ctx, identity.Email)
	if err != nil {
		return nil, false, fmt.Errorf("re-read account after create race: %w", err)
	}
	return existing, false, nil
}

// ensureUnclaimed rejects an email or phone already bound to any account.
func (s *AuthService) ensureUnclaimed(ctx context.Context, email, phone string) error {
	_, err := s.accounts.FindByEmail(ctx, email)
	switch {
	case err == nil:
		return domain.ErrEmailAlreadyExists
	case !errors.Is(err, apperrors.ErrNotFound):
		return fmt.Errorf("check email: %w", err)
	}

	if phone == "" {
		return nil
	}
	_, err = s.accounts.FindByPhone(ctx, phone)
	switch {
	case err == nil:
		return domain.ErrPhoneAlreadyExists
	case !errors.Is(err, apperrors.ErrNotFound):
		return fmt.Errorf("check phone: %w", err)
	}
	return nil
}

// matchRefreshToken loads the live account and checks refreshToken against
// its stored digest. It returns the digest for the conditional update that
// follows.
func (s *AuthService) matchRefreshToken(ctx context.Context, accountID, refreshToken string) (*domain.Account, string, error) {
	account, err := s.accounts.FindByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, "", domain.ErrInvalidRefreshToken
		}
		return nil, "", fmt.Errorf("find account: %w", err)
	}
	if account.IsDeleted || !account.HasRefreshToken() {
		return nil, "", domain.ErrInvalidRefreshToken
	}
	if account.RefreshTokenExpired(s.now()) {
		return nil, "", domain.ErrRefreshTokenExpired
	}

	storedDigest := *account.RefreshTokenHash
	if !s.hasher.VerifyToken(refreshToken, storedDigest) {
		return nil, "", domain.ErrInvalidRefreshToken
	}
	return account, storedDigest, nil
}

// startSession issues a token pair, records the refresh digest on the
// account (overwriting any previous one) and stamps the login time.
func (s *AuthService) startSession(ctx context.Context, account *domain.Account) (*domain.TokenPair, error) {
	tokens, digest, err := s.issueTokens(account)
	if err != nil {
		return nil, err
	}

	loginAt := s.now().UTC()
	if err := s.accounts.SetRefreshToken(ctx, account.ID, digest, tokens.RefreshTokenExpiresAt, loginAt); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			// Deleted between lookup and update.
			return nil, domain.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("store refresh token: %w", err)
	}

	account.SetRefreshToken(digest, tokens.RefreshTokenExpiresAt)
	account.LastLoginAt = &loginAt
	account.UpdatedAt = loginAt

	return tokens, nil
}

// issueTokens mints an access/refresh pair and the digest of the refresh
// token to persist.
func (s *AuthService) issueTokens(account *domain.Account) (*domain.TokenPair, string, error) {
	accessToken, accessExp, err := s.tokens.IssueAccess(account.ID, account.Email)
	if err != nil {
		return nil, "", fmt.Errorf("issue access token: %w", err)
	}

	refreshToken, refreshExp, err := s.tokens.IssueRefresh(account.ID)
	if err != nil {
		return nil, "", fmt.Errorf("issue refresh token: %w", err)
	}

	digest, err := s.hasher.HashToken(refreshToken)
	if err != nil {
		return nil, "", fmt.Errorf("hash refresh token: %w", err)
	}

	return &domain.TokenPair{
		AccessToken:           accessToken,
		RefreshToken:          refreshToken,
		TokenType:             TokenTypeBearer,
		AccessTokenExpiresAt:  accessExp,
		RefreshTokenExpiresAt: refreshExp,
	}, digest, nil
}

// conflictFromUniqueViolation maps a store uniqueness violation to the
// matching conflict error.
func conflictFromUniqueViolation(err error) error {
	var uv *repository.UniqueViolationError
	if errors.As(err, &uv) {
		switch uv.Field {
		case repository.FieldEmail:
			return domain.ErrEmailAlreadyExists
		case repository.FieldPhone:
			return domain.ErrPhoneAlreadyExists
		}
	}
	return fmt.Errorf("create account: %w", err)
}
