package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Capstone-POKI/Pitchcoach-BACK/internal/auth"
	"github.com/Capstone-POKI/Pitchcoach-BACK/internal/domain"
	"github.com/Capstone-POKI/Pitchcoach-BACK/internal/event"
	"github.com/Capstone-POKI/Pitchcoach-BACK/internal/repository"
	apperrors "github.com/Capstone-POKI/Pitchcoach-BACK/pkg/errors"
)

// --- Signup Tests ---

func TestSignup_Success(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	res, err := env.svc.Signup(ctx, defaultSignup())
	require.NoError(t, err)

	assert.True(t, res.IsNewAccount)
	assert.NotEmpty(t, res.Account.ID)
	assert.Equal(t, "a@x.com", res.Account.Email)
	assert.Equal(t, "010-0000-0000", *res.Account.Phone)
	assert.Equal(t, domain.AuthOriginLocal, res.Account.AuthOrigin)
	assert.False(t, res.Account.IsProfileComplete)
	assert.False(t, res.Account.IsDeleted)
	assert.NotEqual(t, "Abc12345!", *res.Account.PasswordHash)
	assert.Equal(t, TokenTypeBearer, res.Tokens.TokenType)

	stored, err := env.repo.FindByID(ctx, res.Account.ID)
	require.NoError(t, err)
	require.True(t, stored.HasRefreshToken())
	assert.NotEqual(t, res.Tokens.RefreshToken, *stored.RefreshTokenHash, "refresh token must be stored hashed")
	assert.True(t, env.hasher.VerifyToken(res.Tokens.RefreshToken, *stored.RefreshTokenHash))
	assert.NotNil(t, stored.LastLoginAt)

	claims, err := env.issuer.Verify(res.Tokens.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, res.Account.ID, claims.AccountID())
	assert.Equal(t, auth.KindAccess, claims.Kind)

	assert.Equal(t, []string{event.TopicAccountRegistered}, env.publisher.Topics())
}

func TestSignup_DuplicateEmail(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	_, err := env.svc.Signup(ctx, defaultSignup())
	require.NoError(t, err)

	in := defaultSignup()
	in.Phone = "010-9999-9999"
	_, err = env.svc.Signup(ctx, in)
	assert.ErrorIs(t, err, domain.ErrEmailAlreadyExists)
	assert.Equal(t, 409, apperrors.HTTPStatus(err))
}

func TestSignup_DuplicatePhone(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	_, err := env.svc.Signup(ctx, defaultSignup())
	require.NoError(t, err)

	in := defaultSignup()
	in.Email = "b@x.com"
	_, err = env.svc.Signup(ctx, in)
	assert.ErrorIs(t, err, domain.ErrPhoneAlreadyExists)
}

func TestSignup_EmailOfDeletedAccountStaysTaken(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	res, err := env.svc.Signup(ctx, defaultSignup())
	require.NoError(t, err)
	require.NoError(t, env.svc.DeleteAccount(ctx, res.Account.ID))

	in := defaultSignup()
	in.Phone = "010-5555-5555"
	_, err = env.svc.Signup(ctx, in)
	assert.ErrorIs(t, err, domain.ErrEmailAlreadyExists)
}

func TestSignup_DistinctSignupsEachCreateOneAccount(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	ids := make(map[string]struct{})
	for i := 0; i < 3; i++ {
		res, err := env.svc.Signup(ctx, SignupInput{
			Name:     "user",
			Email:    fmt.Sprintf("user%d@x.com", i),
			Phone:    fmt.Sprintf("010-0000-000%d", i),
			Password: "Abc12345!",
		})
		require.NoError(t, err)
		ids[res.Account.ID] = struct{}{}
	}
	assert.Len(t, ids, 3)
}

func TestSignup_ConcurrentSameEmail(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	const workers = 8
	var (
		wg        sync.WaitGroup
		succeeded atomic.Int32
		conflicts atomic.Int32
		other     atomic.Int32
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := env.svc.Signup(ctx, SignupInput{
				Name:     "racer",
				Email:    "race@x.com",
				Phone:    fmt.Sprintf("010-1234-%04d", i),
				Password: "Abc12345!",
			})
			switch {
			case err == nil:
				succeeded.Add(1)
			case errors.Is(err, domain.ErrEmailAlreadyExists):
				conflicts.Add(1)
			default:
				other.Add(1)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), succeeded.Load())
	assert.Equal(t, int32(workers-1), conflicts.Load())
	assert.Zero(t, other.Load())
}

func TestSignup_StoreRaceMapsToConflict(t *testing.T) {
	tests := []struct {
		field string
		want  error
	}{
		{repository.FieldEmail, domain.ErrEmailAlreadyExists},
		{repository.FieldPhone, domain.ErrPhoneAlreadyExists},
	}

	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			repo := new(mockAccountRepository)
			env := newTestEnv(t, repo)
			ctx := context.Background()

			repo.On("FindByEmail", mock.Anything, "a@x.com").Return(nil, apperrors.ErrNotFound)
			repo.On("FindByPhone", mock.Anything, "010-0000-0000").Return(nil, apperrors.ErrNotFound)
			repo.On("Create", mock.Anything, mock.AnythingOfType("*domain.Account")).
				Return(&repository.UniqueViolationError{Field: tt.field})

			_, err := env.svc.Signup(ctx, defaultSignup())
			assert.ErrorIs(t, err, tt.want)
			repo.AssertExpectations(t)
			repo.AssertNotCalled(t, "SetRefreshToken", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestSignup_StoreFailurePropagates(t *testing.T) {
	repo := new(mockAccountRepository)
	env := newTestEnv(t, repo)
	ctx := context.Background()

	repo.On("FindByEmail", mock.Anything, "a@x.com").Return(nil, errors.New("connection refused"))

	_, err := env.svc.Signup(ctx, defaultSignup())
	require.Error(t, err)
	var appErr *apperrors.AppError
	assert.False(t, errors.As(err, &appErr), "unexpected store errors must not be mapped to a failure code")
	assert.Contains(t, err.Error(), "connection refused")
}

func TestSignup_MissingFields(t *testing.T) {
	env := newTestEnv(t, nil)
	for _, in := range []SignupInput{
		{Name: "n", Password: "Abc12345!"},
		{Email: "a@x.com", Password: "Abc12345!"},
		{Name: "n", Email: "a@x.com"},
	} {
		_, err := env.svc.Signup(context.Background(), in)
		assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	}
}

// --- Login Tests ---

func TestLogin_SubjectMatchesCreatedAccount(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	signup, err := env.svc.Signup(ctx, defaultSignup())
	require.NoError(t, err)

	res, err := env.svc.Login(ctx, LoginInput{Email: "a@x.com", Password: "Abc12345!"})
	require.NoError(t, err)
	assert.False(t, res.IsNewAccount)

	claims, err := env.issuer.Verify(res.Tokens.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, signup.Account.ID, claims.AccountID())
}

func TestLogin_FailuresAreIndistinguishable(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	_, err := env.svc.Signup(ctx, defaultSignup())
	require.NoError(t, err)
	_, err = env.svc.FederatedLogin(ctx, "google-id-token")
	require.NoError(t, err)

	tests := []struct {
		name  string
		input LoginInput
	}{
		{"unknown email", LoginInput{Email: "nobody@x.com", Password: "Abc12345!"}},
		{"federated account without password", LoginInput{Email: "fed@example.com", Password: "Abc12345!"}},
		{"wrong password", LoginInput{Email: "a@x.com", Password: "Wrong1234!"}},
	}

	var errs []error
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := env.svc.Login(ctx, tt.input)
			assert.Nil(t, res)
			assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
			errs = append(errs, err)
		})
	}

	require.Len(t, errs, 3)
	assert.Equal(t, errs[0].Error(), errs[1].Error())
	assert.Equal(t, errs[1].Error(), errs[2].Error())
}

func TestLogin_DeletedAccount(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	res, err := env.svc.Signup(ctx, defaultSignup())
	require.NoError(t, err)
	require.NoError(t, env.svc.DeleteAccount(ctx, res.Account.ID))

	_, err = env.svc.Login(ctx, LoginInput{Email: "a@x.com", Password: "Abc12345!"})
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
}

func TestLogin_NewSessionRevokesPrevious(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	first, err := env.svc.Signup(ctx, defaultSignup())
	require.NoError(t, err)

	second, err := env.svc.Login(ctx, LoginInput{Email: "a@x.com", Password: "Abc12345!"})
	require.NoError(t, err)

	_, err = env.svc.Refresh(ctx, first.Tokens.RefreshToken)
	assert.ErrorIs(t, err, domain.ErrInvalidRefreshToken)

	_, err = env.svc.Refresh(ctx, second.Tokens.RefreshToken)
	assert.NoError(t, err)
}

func TestLogin_CountsOutcome(t *testing.T) {
	env := newTestEnv(t, nil)

	counter := AuthOperations.WithLabelValues("login", domain.CodeInvalidCredentials)
	before := counterValue(t, counter)

	_, err := env.svc.Login(context.Background(), LoginInput{Email: "nobody@x.com", Password: "x"})
	require.Error(t, err)

	after := counterValue(t, counter)
	assert.InDelta(t, before+1, after, 0.001)
}

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}

// --- Refresh Tests ---

func TestRefresh_RotationIsOneShot(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	res, err := env.svc.Signup(ctx, defaultSignup())
	require.NoError(t, err)

	rotated, err := env.svc.Refresh(ctx, res.Tokens.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, res.Tokens.RefreshToken, rotated.RefreshToken)

	// The stale token fails on every later use.
	for i := 0; i < 2; i++ {
		_, err = env.svc.Refresh(ctx, res.Tokens.RefreshToken)
		assert.ErrorIs(t, err, domain.ErrInvalidRefreshToken)
	}

	_, err = env.svc.Refresh(ctx, rotated.RefreshToken)
	assert.NoError(t, err)
}

func TestRefresh_ConcurrentUseOnlyOneSucceeds(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	res, err := env.svc.Signup(ctx, defaultSignup())
	require.NoError(t, err)

	const workers = 6
	var (
		wg      sync.WaitGroup
		wins    atomic.Int32
		invalid atomic.Int32
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.svc.Refresh(ctx, res.Tokens.RefreshToken)
			switch {
			case err == nil:
				wins.Add(1)
			case errors.Is(err, domain.ErrInvalidRefreshToken):
				invalid.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
	assert.Equal(t, int32(workers-1), invalid.Load())
}

func TestRefresh_ExpiredTokenSignature(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	res, err := env.svc.Signup(ctx, defaultSignup())
	require.NoError(t, err)

	expired := mintToken(t, res.Account.ID, auth.KindRefresh, time.Now().Add(-time.Minute))
	_, err = env.svc.Refresh(ctx, expired)
	assert.ErrorIs(t, err, domain.ErrRefreshTokenExpired)
}

func TestRefresh_StoredExpiryPassed(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	res, err := env.svc.Signup(ctx, defaultSignup())
	require.NoError(t, err)

	env.svc.now = func() time.Time { return time.Now().Add(8 * 24 * time.Hour) }

	_, err = env.svc.Refresh(ctx, res.Tokens.RefreshToken)
	assert.ErrorIs(t, err, domain.ErrRefreshTokenExpired)
}

func TestRefresh_RejectsNonRefreshTokens(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	res, err := env.svc.Signup(ctx, defaultSignup())
	require.NoError(t, err)

	wrongSecret, err := auth.NewTokenIssuer("another-secret-entirely-000000000", testIssuer, 0, 0)
	require.NoError(t, err)
	forged, _, err := wrongSecret.IssueRefresh(res.Account.ID)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{"access token", res.Tokens.AccessToken},
		{"expired access token", mintToken(t, res.Account.ID, auth.KindAccess, time.Now().Add(-time.Minute))},
		{"wrong secret", forged},
		{"garbage", "not-a-token"},
		{"empty", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.svc.Refresh(ctx, tt.token)
			assert.ErrorIs(t, err, domain.ErrInvalidRefreshToken)
		})
	}
}

func TestRefresh_UnknownOrDeletedAccount(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	res, err := env.svc.Signup(ctx, defaultSignup())
	require.NoError(t, err)

	ghost, _, err := env.issuer.IssueRefresh("no-such-account")
	require.NoError(t, err)
	_, err = env.svc.Refresh(ctx, ghost)
	assert.ErrorIs(t, err, domain.ErrInvalidRefreshToken)

	require.NoError(t, env.svc.DeleteAccount(ctx, res.Account.ID))
	_, err = env.svc.Refresh(ctx, res.Tokens.RefreshToken)
	assert.ErrorIs(t, err, domain.ErrInvalidRefreshToken)
}

func TestRefresh_LostRotationRace(t *testing.T) {
	repo := new(mockAccountRepository)
	env := newTestEnv(t, repo)
	ctx := context.Background()

	token, exp, err := env.issuer.IssueRefresh("acc-1")
	require.NoError(t, err)
	digest, err := env.hasher.HashToken(token)
	require.NoError(t, err)

	account := &domain.Account{ID: "acc-1", Email: "a@x.com"}
	account.SetRefreshToken(digest, exp)

	repo.On("FindByID", mock.Anything, "acc-1").Return(account, nil)
	repo.On("RotateRefreshToken", mock.Anything, "acc-1", digest, mock.AnythingOfType("string"), mock.AnythingOfType("time.Time")).
		Return(false, nil)

	_, err = env.svc.Refresh(ctx, token)
	assert.ErrorIs(t, err, domain.ErrInvalidRefreshToken)
	repo.AssertExpectations(t)
}

// --- Logout Tests ---

func TestLogout_ThenRefreshFails(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	res, err := env.svc.Signup(ctx, defaultSignup())
	require.NoError(t, err)

	require.NoError(t, env.svc.Logout(ctx, res.Account.ID, res.Tokens.RefreshToken))

	_, err = env.svc.Refresh(ctx, res.Tokens.RefreshToken)
	assert.ErrorIs(t, err, domain.ErrInvalidRefreshToken)

	stored, err := env.repo.FindByID(ctx, res.Account.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.RefreshTokenHash)
	assert.Nil(t, stored.RefreshTokenExpiresAt)
}

func TestLogout_RequiresCurrentToken(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	res, err := env.svc.Signup(ctx, defaultSignup())
	require.NoError(t, err)

	other, _, err := env.issuer.IssueRefresh(res.Account.ID)
	require.NoError(t, err)

	assert.ErrorIs(t, env.svc.Logout(ctx, res.Account.ID, other), domain.ErrInvalidRefreshToken)
	assert.ErrorIs(t, env.svc.Logout(ctx, res.Account.ID, ""), domain.ErrInvalidRefreshToken)
	assert.ErrorIs(t, env.svc.Logout(ctx, "someone-else", res.Tokens.RefreshToken), domain.ErrInvalidRefreshToken)

	// The session survives failed logouts.
	_, err = env.svc.Refresh(ctx, res.Tokens.RefreshToken)
	assert.NoError(t, err)
}

func TestLogout_Twice(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	res, err := env.svc.Signup(ctx, defaultSignup())
	require.NoError(t, err)

	require.NoError(t, env.svc.Logout(ctx, res.Account.ID, res.Tokens.RefreshToken))
	assert.ErrorIs(t, env.svc.Logout(ctx, res.Account.ID, res.Tokens.RefreshToken), domain.ErrInvalidRefreshToken)
}

// --- Federated Login Tests ---

func TestFederatedLogin_CreatesAccount(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	res, err := env.svc.FederatedLogin(ctx, "google-id-token")
	require.NoError(t, err)

	assert.True(t, res.IsNewAccount)
	assert.Equal(t, "fed@example.com", res.Account.Email)
	assert.Equal(t, "Fed User", res.Account.Name)
	assert.Equal(t, domain.AuthOriginGoogle, res.Account.AuthOrigin)
	assert.False(t, res.Account.HasPassword())
	assert.False(t, res.Account.IsProfileComplete)
	assert.Equal(t, []string{event.TopicAccountRegistered}, env.publisher.Topics())

	again, err := env.svc.FederatedLogin(ctx, "google-id-token")
	require.NoError(t, err)
	assert.False(t, again.IsNewAccount)
	assert.Equal(t, res.Account.ID, again.Account.ID)
}

func TestFederatedLogin_LinksExistingLocalAccount(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	in := defaultSignup()
	in.Email = "fed@example.com"
	local, err := env.svc.Signup(ctx, in)
	require.NoError(t, err)

	res, err := env.svc.FederatedLogin(ctx, "google-id-token")
	require.NoError(t, err)
	assert.False(t, res.IsNewAccount)
	assert.Equal(t, local.Account.ID, res.Account.ID)
	assert.Equal(t, domain.AuthOriginLocal, res.Account.AuthOrigin)
}

func TestFederatedLogin_DeletedAccountIsNotRevived(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	res, err := env.svc.FederatedLogin(ctx, "google-id-token")
	require.NoError(t, err)
	require.NoError(t, env.svc.DeleteAccount(ctx, res.Account.ID))

	_, err = env.svc.FederatedLogin(ctx, "google-id-token")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
}

func TestFederatedLogin_InvalidToken(t *testing.T) {
	env := newTestEnv(t, nil)
	env.verifier.err = errors.New("signature mismatch")

	_, err := env.svc.FederatedLogin(context.Background(), "bad")
	assert.ErrorIs(t, err, domain.ErrInvalidFederatedToken)
}

func TestFederatedLogin_CreateRaceReadsWinner(t *testing.T) {
	repo := new(mockAccountRepository)
	env := newTestEnv(t, repo)
	ctx := context.Background()

	winner := &domain.Account{ID: "winner-id", Email: "fed@example.com", AuthOrigin: domain.AuthOriginLocal}

	repo.On("FindByEmail", mock.Anything, "fed@example.com").Return(nil, apperrors.ErrNotFound).Once()
	repo.On("Create", mock.Anything, mock.AnythingOfType("*domain.Account")).
		Return(&repository.UniqueViolationError{Field: repository.FieldEmail}).Once()
	repo.On("FindByEmail", mock.Anything, "fed@example.com").Return(winner, nil).Once()
	repo.On("SetRefreshToken", mock.Anything, "winner-id", mock.AnythingOfType("string"),
		mock.AnythingOfType("time.Time"), mock.AnythingOfType("time.Time")).Return(nil)

	res, err := env.svc.FederatedLogin(ctx, "google-id-token")
	require.NoError(t, err)
	assert.False(t, res.IsNewAccount)
	assert.Equal(t, "winner-id", res.Account.ID)
	assert.Empty(t, env.publisher.Topics(), "the losing request must not announce a registration")
	repo.AssertExpectations(t)
}

// --- Account Tests ---

func TestChangePassword(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	res, err := env.svc.Signup(ctx, defaultSignup())
	require.NoError(t, err)

	err = env.svc.ChangePassword(ctx, res.Account.ID, "Wrong1234!", "Newpass1!")
	assert.ErrorIs(t, err, domain.ErrWrongPassword)

	require.NoError(t, env.svc.ChangePassword(ctx, res.Account.ID, "Abc12345!", "Newpass1!"))

	// The session is revoked and only the new password works.
	_, err = env.svc.Refresh(ctx, res.Tokens.RefreshToken)
	assert.ErrorIs(t, err, domain.ErrInvalidRefreshToken)

	_, err = env.svc.Login(ctx, LoginInput{Email: "a@x.com", Password: "Abc12345!"})
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
	_, err = env.svc.Login(ctx, LoginInput{Email: "a@x.com", Password: "Newpass1!"})
	assert.NoError(t, err)

	assert.Contains(t, env.publisher.Topics(), event.TopicAccountPasswordChanged)
}

func TestChangePassword_FederatedAccount(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	res, err := env.svc.FederatedLogin(ctx, "google-id-token")
	require.NoError(t, err)

	err = env.svc.ChangePassword(ctx, res.Account.ID, "anything1!", "Newpass1!")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestChangePassword_DeletedAccount(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	res, err := env.svc.Signup(ctx, defaultSignup())
	require.NoError(t, err)
	require.NoError(t, env.svc.DeleteAccount(ctx, res.Account.ID))

	err = env.svc.ChangePassword(ctx, res.Account.ID, "Abc12345!", "Newpass1!")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestDeleteAccount(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	res, err := env.svc.Signup(ctx, defaultSignup())
	require.NoError(t, err)

	require.NoError(t, env.svc.DeleteAccount(ctx, res.Account.ID))

	stored, err := env.repo.FindByID(ctx, res.Account.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsDeleted)
	assert.NotNil(t, stored.DeletedAt)
	assert.False(t, stored.HasRefreshToken())

	_, err = env.authn.Authenticate(ctx, res.Tokens.AccessToken)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	_, err = env.svc.Me(ctx, res.Account.ID)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	assert.ErrorIs(t, env.svc.DeleteAccount(ctx, res.Account.ID), domain.ErrUnauthorized)
	assert.Contains(t, env.publisher.Topics(), event.TopicAccountDeleted)
}

func TestMe(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	res, err := env.svc.Signup(ctx, defaultSignup())
	require.NoError(t, err)

	me, err := env.svc.Me(ctx, res.Account.ID)
	require.NoError(t, err)
	assert.Equal(t, res.Account.Email, me.Email)

	_, err = env.svc.Me(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}
