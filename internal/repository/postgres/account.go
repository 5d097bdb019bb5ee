package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/Capstone-POKI/Pitchcoach-BACK/internal/domain"
	"github.com/Capstone-POKI/Pitchcoach-BACK/internal/repository"
	"github.com/Capstone-POKI/Pitchcoach-BACK/pkg/database"
	apperrors "github.com/Capstone-POKI/Pitchcoach-BACK/pkg/errors"
)

// SQLSTATE for unique_violation.
const uniqueViolationCode = "23505"

// Constraint names from migrations/000001_create_accounts.up.sql.
const (
	emailConstraint = "accounts_email_key"
	phoneConstraint = "accounts_phone_key"
)

const accountColumns = `id, name, email, phone, password_hash, auth_origin, is_profile_complete,
		is_deleted, deleted_at, refresh_token_hash, refresh_token_expires_at, last_login_at,
		created_at, updated_at`

// AccountRepository implements repository.AccountRepository using PostgreSQL.
type AccountRepository struct {
	db database.DBTX
}

// NewAccountRepository creates a new PostgreSQL-backed account repository.
func NewAccountRepository(db database.DBTX) *AccountRepository {
	return &AccountRepository{db: db}
}

var _ repository.AccountRepository = (*AccountRepository)(nil)

// FindByID retrieves an account by its ID.
func (r *AccountRepository) FindByID(ctx context.Context, id string) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`
	return r.scanAccount(ctx, "FindAccountByID", query, id)
}

// FindByEmail retrieves an account by email address.
func (r *AccountRepository) FindByEmail(ctx context.Context, email string) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE email = $1`
	return r.scanAccount(ctx, "FindAccountByEmail", query, email)
}

// FindActiveByEmail retrieves a non-deleted account by email address.
func (r *AccountRepository) FindActiveByEmail(ctx context.Context, email string) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE email = $1 AND is_deleted = FALSE`
	return r.scanAccount(ctx, "FindActiveAccountByEmail", query, email)
}

// FindByPhone retrieves an account by phone number.
func (r *AccountRepository) FindByPhone(ctx context.Context, phone string) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE phone = $1`
	return r.scanAccount(ctx, "FindAccountByPhone", query, phone)
}

// Create inserts a new account.
func (r *AccountRepository) Create(ctx context.Context, a *domain.Account) (err error) {
	query := `
		INSERT INTO accounts (id, name, email, phone, password_hash, auth_origin, is_profile_complete, is_deleted, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	ctx, end := database.TraceQuery(ctx, "CreateAccount", query)
	defer func() { end(err) }()

	_, err = r.db.Exec(ctx, query,
		a.ID,
		a.Name,
		a.Email,
		a.Phone,
		a.PasswordHash,
		string(a.AuthOrigin),
		a.IsProfileComplete,
		a.IsDeleted,
		a.CreatedAt,
		a.UpdatedAt,
	)
	if err != nil {
		if uv := asUniqueViolation(err); uv != nil {
			return uv
		}
		return fmt.Errorf("insert account: %w", err)
	}

	return nil
}

// SetRefreshToken records a freshly issued refresh token and stamps the login time.
func (r *AccountRepository) SetRefreshToken(ctx context.Context, id, hash string, expiresAt, loginAt time.Time) (err error) {
	query := `
		UPDATE accounts
		SET refresh_token_hash = $1, refresh_token_expires_at = $2, last_login_at = $3, updated_at = $3
		WHERE id = $4 AND is_deleted = FALSE`

	ctx, end := database.TraceQuery(ctx, "SetRefreshToken", query)
	defer func() { end(err) }()

	ct, err := r.db.Exec(ctx, query, hash, expiresAt, loginAt, id)
	if err != nil {
		return fmt.Errorf("set refresh token: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("account", id)
	}

	return nil
}

// RotateRefreshToken swaps the stored digest if it still matches expectedHash.
func (r *AccountRepository) RotateRefreshToken(ctx context.Context, id, expectedHash, newHash string, expiresAt time.Time) (ok bool, err error) {
	query := `
		UPDATE accounts
		SET refresh_token_hash = $1, refresh_token_expires_at = $2, updated_at = NOW()
		WHERE id = $3 AND refresh_token_hash = $4 AND is_deleted = FALSE`

	ctx, end := database.TraceQuery(ctx, "RotateRefreshToken", query)
	defer func() { end(err) }()

	ct, err := r.db.Exec(ctx, query, newHash, expiresAt, id, expectedHash)
	if err != nil {
		return false, fmt.Errorf("rotate refresh token: %w", err)
	}

	return ct.RowsAffected() == 1, nil
}

// ClearRefreshToken drops the stored refresh token if it still matches expectedHash.
func (r *AccountRepository) ClearRefreshToken(ctx context.Context, id, expectedHash string) (ok bool, err error) {
	query := `
		UPDATE accounts
		SET refresh_token_hash = NULL, refresh_token_expires_at = NULL, updated_at = NOW()
		WHERE id = $1 AND refresh_token_hash = $2`

	ctx, end := database.TraceQuery(ctx, "ClearRefreshToken", query)
	defer func() { end(err) }()

	ct, err := r.db.Exec(ctx, query, id, expectedHash)
	if err != nil {
		return false, fmt.Errorf("clear refresh token: %w", err)
	}

	return ct.RowsAffected() == 1, nil
}

// UpdatePassword stores a new password digest and revokes the current session.
func (r *AccountRepository) UpdatePassword(ctx context.Context, id, passwordHash string) (err error) {
	query := `
		UPDATE accounts
		SET password_hash = $1, refresh_token_hash = NULL, refresh_token_expires_at = NULL, updated_at = NOW()
		WHERE id = $2 AND is_deleted = FALSE`

	ctx, end := database.TraceQuery(ctx, "UpdatePassword", query)
	defer func() { end(err) }()

	ct, err := r.db.Exec(ctx, query, passwordHash, id)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("account", id)
	}

	return nil
}

// SoftDelete marks the account deleted and revokes the current session.
func (r *AccountRepository) SoftDelete(ctx context.Context, id string, deletedAt time.Time) (err error) {
	query := `
		UPDATE accounts
		SET is_deleted = TRUE, deleted_at = $1, refresh_token_hash = NULL, refresh_token_expires_at = NULL, updated_at = $1
		WHERE id = $2 AND is_deleted = FALSE`

	ctx, end := database.TraceQuery(ctx, "SoftDeleteAccount", query)
	defer func() { end(err) }()

	ct, err := r.db.Exec(ctx, query, deletedAt, id)
	if err != nil {
		return fmt.Errorf("soft delete account: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("account", id)
	}

	return nil
}

// scanAccount executes a query expected to return a single account row.
func (r *AccountRepository) scanAccount(ctx context.Context, operation, query string, args ...any) (_ *domain.Account, err error) {
	ctx, end := database.TraceQuery(ctx, operation, query)
	defer func() {
		if errors.Is(err, apperrors.ErrNotFound) {
			end(nil)
			return
		}
		end(err)
	}()

	var (
		a      domain.Account
		origin string
	)
	err = r.db.QueryRow(ctx, query, args...).Scan(
		&a.ID,
		&a.Name,
		&a.Email,
		&a.Phone,
		&a.PasswordHash,
		&origin,
		&a.IsProfileComplete,
		&a.IsDeleted,
		&a.DeletedAt,
		&a.RefreshTokenHash,
		&a.RefreshTokenExpiresAt,
		&a.LastLoginAt,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("scan account: %w", err)
	}
	a.AuthOrigin = domain.AuthOrigin(origin)

	return &a, nil
}

// asUniqueViolation maps a PostgreSQL unique_violation to the field it hit.
func asUniqueViolation(err error) *repository.UniqueViolationError {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != uniqueViolationCode {
		return nil
	}
	switch {
	case pgErr.ConstraintName == phoneConstraint, strings.Contains(pgErr.ConstraintName, "phone"):
		return &repository.UniqueViolationError{Field: repository.FieldPhone}
	case pgErr.ConstraintName == emailConstraint, strings.Contains(pgErr.ConstraintName, "email"):
		return &repository.UniqueViolationError{Field: repository.FieldEmail}
	default:
		return &repository.UniqueViolationError{Field: pgErr.ConstraintName}
	}
}
