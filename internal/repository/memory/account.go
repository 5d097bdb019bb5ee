package memory

import (
	"context"
	"sync"
	"time"

	"github.com/Capstone-POKI/Pitchcoach-BACK/internal/domain"
	"github.com/Capstone-POKI/Pitchcoach-BACK/internal/repository"
	apperrors "github.com/Capstone-POKI/Pitchcoach-BACK/pkg/errors"
)

// AccountRepository implements repository.AccountRepository using in-memory
// maps. Email and phone uniqueness and the conditional refresh token updates
// behave like the PostgreSQL implementation. Returned accounts are copies.
type AccountRepository struct {
	mu      sync.RWMutex
	byID    map[string]*domain.Account
	byEmail map[string]string
	byPhone map[string]string
}

// NewAccountRepository creates an empty in-memory account repository.
func NewAccountRepository() *AccountRepository {
	return &AccountRepository{
		byID:    make(map[string]*domain.Account),
		byEmail: make(map[string]string),
		byPhone: make(map[string]string),
	}
}

var _ repository.AccountRepository = (*AccountRepository)(nil)

// FindByID retrieves an account by its ID.
func (r *AccountRepository) FindByID(_ context.Context, id string) (*domain.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.byID[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return cloneAccount(a), nil
}

// FindByEmail retrieves an account by email address.
func (r *AccountRepository) FindByEmail(_ context.Context, email string) (*domain.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.lookup(r.byEmail, email, false)
}

// FindActiveByEmail retrieves a non-deleted account by email address.
func (r *AccountRepository) FindActiveByEmail(_ context.Context, email string) (*domain.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.lookup(r.byEmail, email, true)
}

// FindByPhone retrieves an account by phone number.
func (r *AccountRepository) FindByPhone(_ context.Context, phone string) (*domain.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.lookup(r.byPhone, phone, false)
}

// Create inserts a new account.
func (r *AccountRepository) Create(_ context.Context, a *domain.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byEmail[a.Email]; exists {
		return &repository.UniqueViolationError{Field: repository.FieldEmail}
	}
	if a.Phone != nil {
		if _, exists := r.byPhone[*a.Phone]; exists {
			return &repository.UniqueViolationError{Field: repository.FieldPhone}
		}
	}

	stored := cloneAccount(a)
	r.byID[a.ID] = stored
	r.byEmail[a.Email] = a.ID
	if a.Phone != nil {
		r.byPhone[*a.Phone] = a.ID
	}
	return nil
}

// SetRefreshToken records a freshly issued refresh token and stamps the login time.
func (r *AccountRepository) SetRefreshToken(_ context.Context, id, hash string, expiresAt, loginAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.byID[id]
	if !ok || a.IsDeleted {
		return apperrors.NotFound("account", id)
	}
	a.SetRefreshToken(hash, expiresAt)
	a.LastLoginAt = &loginAt
	a.UpdatedAt = loginAt
	return nil
}

// RotateRefreshToken swaps the stored digest if it still matches expectedHash.
func (r *AccountRepository) RotateRefreshToken(_ context.Context, id, expectedHash, newHash string, expiresAt time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.byID[id]
	if !ok || a.IsDeleted || !storedHashEquals(a, expectedHash) {
		return false, nil
	}
	a.SetRefreshToken(newHash, expiresAt)
	a.UpdatedAt = time.Now().UTC()
	return true, nil
}

// ClearRefreshToken drops the stored refresh token if it still matches expectedHash.
func (r *AccountRepository) ClearRefreshToken(_ context.Context, id, expectedHash string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.byID[id]
	if !ok || !storedHashEquals(a, expectedHash) {
		return false, nil
	}
	a.ClearRefreshToken()
	a.UpdatedAt = time.Now().UTC()
	return true, nil
}

// UpdatePassword stores a new password digest and revokes the current session.
func (r *AccountRepository) UpdatePassword(_ context.Context, id, passwordHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.byID[id]
	if !ok || a.IsDeleted {
		return apperrors.NotFound("account", id)
	}
	a.PasswordHash = &passwordHash
	a.ClearRefreshToken()
	a.UpdatedAt = time.Now().UTC()
	return nil
}

// SoftDelete marks the account deleted and revokes the current session.
func (r *AccountRepository) SoftDelete(_ context.Context, id string, deletedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.byID[id]
	if !ok || a.IsDeleted {
		return apperrors.NotFound("account", id)
	}
	a.MarkDeleted(deletedAt)
	a.UpdatedAt = deletedAt
	return nil
}

func (r *AccountRepository) lookup(index map[string]string, key string, activeOnly bool) (*domain.Account, error) {
	id, ok := index[key]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	a := r.byID[id]
	if activeOnly && a.IsDeleted {
		return nil, apperrors.ErrNotFound
	}
	return cloneAccount(a), nil
}

func storedHashEquals(a *domain.Account, expected string) bool {
	return a.RefreshTokenHash != nil && *a.RefreshTokenHash == expected
}

// cloneAccount deep-copies the pointer fields so callers cannot mutate
// stored state.
func cloneAccount(a *domain.Account) *domain.Account {
	c := *a
	c.Phone = clonePtr(a.Phone)
	c.PasswordHash = clonePtr(a.PasswordHash)
	c.DeletedAt = clonePtr(a.DeletedAt)
	c.RefreshTokenHash = clonePtr(a.RefreshTokenHash)
	c.RefreshTokenExpiresAt = clonePtr(a.RefreshTokenExpiresAt)
	c.LastLoginAt = clonePtr(a.LastLoginAt)
	return &c
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
