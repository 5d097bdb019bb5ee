package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/Capstone-POKI/Pitchcoach-BACK/internal/domain"
	apperrors "github.com/Capstone-POKI/Pitchcoach-BACK/pkg/errors"
)

// Me returns the live account for accountID.
func (s *AuthService) Me(ctx context.Context, accountID string) (*domain.Account, error) {
	return s.liveAccount(ctx, accountID)
}

// ChangePassword replaces the password of an authenticated local account and
// revokes its session, forcing a fresh login.
func (s *AuthService) ChangePassword(ctx context.Context, accountID, currentPassword, newPassword string) (err error) {
	ctx, end := observe(ctx, "change_password")
	defer func() { end(err) }()

	if currentPassword == "" {
		return apperrors.InvalidInput("current password is required")
	}
	if newPassword == "" {
		return apperrors.InvalidInput("new password is required")
	}

	account, err := s.liveAccount(ctx, accountID)
	if err != nil {
		return err
	}

	if !account.HasPassword() {
		return apperrors.Coded(domain.CodeUnauthorized,
			"accounts created with an identity provider have no password", http.StatusUnauthorized, apperrors.ErrUnauthorized)
	}
	if !s.hasher.Verify(currentPassword, *account.PasswordHash) {
		return domain.ErrWrongPassword
	}

	digest, err := s.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("hash new password: %w", err)
	}

	if err := s.accounts.UpdatePassword(ctx, account.ID, digest); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return domain.ErrUnauthorized
		}
		return fmt.Errorf("update password: %w", err)
	}

	if err := s.producer.PublishPasswordChanged(ctx, account.ID, s.now().UTC()); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish account.password_changed event",
			slog.String("account_id", account.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "password changed",
		slog.String("account_id", account.ID),
	)

	return nil
}

// DeleteAccount soft-deletes the account and revokes its session. Deletion
// is terminal: the account can no longer log in, refresh or authenticate.
func (s *AuthService) DeleteAccount(ctx context.Context, accountID string) (err error) {
	ctx, end := observe(ctx, "delete_account")
	defer func() { end(err) }()

	if _, err := s.liveAccount(ctx, accountID); err != nil {
		return err
	}

	deletedAt := s.now().UTC()
	if err := s.accounts.SoftDelete(ctx, accountID, deletedAt); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return domain.ErrUnauthorized
		}
		return fmt.Errorf("soft delete account: %w", err)
	}

	if err := s.producer.PublishAccountDeleted(ctx, accountID, deletedAt); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish account.deleted event",
			slog.String("account_id", accountID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "account deleted",
		slog.String("account_id", accountID),
	)

	return nil
}

// liveAccount loads a non-deleted account, reporting UNAUTHORIZED otherwise.
func (s *AuthService) liveAccount(ctx context.Context, accountID string) (*domain.Account, error) {
	account, err := s.accounts.FindByID(ctx, accountID)
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
