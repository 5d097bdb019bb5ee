package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Capstone-POKI/Pitchcoach-BACK/internal/auth"
	"github.com/Capstone-POKI/Pitchcoach-BACK/internal/domain"
	"github.com/Capstone-POKI/Pitchcoach-BACK/internal/repository"
	apperrors "github.com/Capstone-POKI/Pitchcoach-BACK/pkg/errors"
	"github.com/Capstone-POKI/Pitchcoach-BACK/pkg/middleware"
)

// Authenticator resolves bearer access tokens to live accounts. The account
// is loaded from the store on every call so deletions take effect
// immediately.
type Authenticator struct {
	accounts repository.AccountRepository
	tokens   *auth.TokenIssuer
	logger   *slog.Logger
}

// NewAuthenticator creates a new request authenticator.
func NewAuthenticator(accounts repository.AccountRepository, tokens *auth.TokenIssuer, logger *slog.Logger) *Authenticator {
	return &Authenticator{
		accounts: accounts,
		tokens:   tokens,
		logger:   logger,
	}
}

// Authenticate verifies an access token and returns the account it names.
// Every rejection is reported as UNAUTHORIZED; store failures are returned
// wrapped.
func (a *Authenticator) Authenticate(ctx context.Context, bearer string) (*domain.Account, error) {
	claims, err := a.tokens.Verify(bearer)
	if err != nil {
		a.logger.DebugContext(ctx, "access token rejected", slog.String("reason", err.Error()))
		return nil, domain.ErrUnauthorized
	}

	// A refresh token must never work as an access token.
	if claims.Kind != auth.KindAccess {
		a.logger.DebugContext(ctx, "access token rejected", slog.String("reason", "wrong token kind"))
		return nil, domain.ErrUnauthorized
	}

	account, err := a.accounts.FindByID(ctx, claims.AccountID())
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, domain.ErrUnauthorized
		}
		return nil, fmt.Errorf("find account: %w", err)
	}
	if account.IsDeleted {
		return nil, domain.ErrUnauthorized
	}

	return account, nil
}

// Middleware adapts Authenticate to the HTTP auth middleware. The principal
// carries the stored email, not the one embedded in the token.
func (a *Authenticator) Middleware() middleware.Authenticator {
	return func(ctx context.Context, token string) (*middleware.Principal, error) {
		account, err := a.Authenticate(ctx, token)
		if err != nil {
			return nil, err
		}
		return &middleware.Principal{UserID: account.ID, Email: account.Email}, nil
	}
}
