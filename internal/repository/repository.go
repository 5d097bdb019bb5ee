package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/Capstone-POKI/Pitchcoach-BACK/internal/domain"
)

// Unique fields on an account.
const (
	FieldEmail = "email"
	FieldPhone = "phone"
)

// UniqueViolationError reports that a write collided with an existing
// account on a unique field.
type UniqueViolationError struct {
	Field string
}

func (e *UniqueViolationError) Error() string {
	return fmt.Sprintf("unique violation on %s", e.Field)
}

// AccountRepository defines the interface for account persistence operations.
// Lookups return apperrors.ErrNotFound when no row matches.
type AccountRepository interface {
	// FindByID retrieves an account by id, including deleted accounts.
	FindByID(ctx context.Context, id string) (*domain.Account, error)

	// FindByEmail retrieves an account by email, including deleted accounts.
	FindByEmail(ctx context.Context, email string) (*domain.Account, error)

	// FindActiveByEmail retrieves a non-deleted account by email.
	FindActiveByEmail(ctx context.Context, email string) (*domain.Account, error)

	// FindByPhone retrieves an account by phone, including deleted accounts.
	FindByPhone(ctx context.Context, phone string) (*domain.Account, error)

	// Create inserts a new account. Collisions on email or phone return
	// *UniqueViolationError.
	Create(ctx context.Context, account *domain.Account) error

	// SetRefreshToken unconditionally records a new refresh token digest and
	// expiry and stamps the last login time.
	SetRefreshToken(ctx context.Context, id, hash string, expiresAt, loginAt time.Time) error

	// RotateRefreshToken replaces the refresh token digest only if the stored
	// digest still equals expectedHash. It reports whether the swap happened.
	RotateRefreshToken(ctx context.Context, id, expectedHash, newHash string, expiresAt time.Time) (bool, error)

	// ClearRefreshToken removes the refresh token only if the stored digest
	// still equals expectedHash. It reports whether the row changed.
	ClearRefreshToken(ctx context.Context, id, expectedHash string) (bool, error)

	// UpdatePassword stores a new password digest and drops any refresh token.
	UpdatePassword(ctx context.Context, id, passwordHash string) error

	// SoftDelete marks the account deleted and drops any refresh token.
	SoftDelete(ctx context.Context, id string, deletedAt time.Time) error
}
