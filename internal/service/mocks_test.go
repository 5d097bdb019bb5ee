package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/Capstone-POKI/Pitchcoach-BACK/internal/auth"
	"github.com/Capstone-POKI/Pitchcoach-BACK/internal/domain"
	"github.com/Capstone-POKI/Pitchcoach-BACK/internal/event"
	"github.com/Capstone-POKI/Pitchcoach-BACK/internal/federation"
	"github.com/Capstone-POKI/Pitchcoach-BACK/internal/repository"
	"github.com/Capstone-POKI/Pitchcoach-BACK/internal/repository/memory"
	pkgkafka "github.com/Capstone-POKI/Pitchcoach-BACK/pkg/kafka"
)

const (
	testSecret = "test-secret-key-for-testing-only-000"
	testIssuer = "pitchcoach-test"
)

// --- Mock Account Repository ---

type mockAccountRepository struct {
	mock.Mock
}

var _ repository.AccountRepository = (*mockAccountRepository)(nil)

func (m *mockAccountRepository) account(args mock.Arguments) (*domain.Account, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Account), args.Error(1)
}

func (m *mockAccountRepository) FindByID(ctx context.Context, id string) (*domain.Account, error) {
	return m.account(m.Called(ctx, id))
}

func (m *mockAccountRepository) FindByEmail(ctx context.Context, email string) (*domain.Account, error) {
	return m.account(m.Called(ctx, email))
}

func (m *mockAccountRepository) FindActiveByEmail(ctx context.Context, email string) (*domain.Account, error) {
	return m.account(m.Called(ctx, email))
}

func (m *mockAccountRepository) FindByPhone(ctx context.Context, phone string) (*domain.Account, error) {
	return m.account(m.Called(ctx, phone))
}

func (m *mockAccountRepository) Create(ctx context.Context, account *domain.Account) error {
	args := m.Called(ctx, account)
	return args.Error(0)
}

func (m *mockAccountRepository) SetRefreshToken(ctx context.Context, id, hash string, expiresAt, loginAt time.Time) error {
	args := m.Called(ctx, id, hash, expiresAt, loginAt)
	return args.Error(0)
}

func (m *mockAccountRepository) RotateRefreshToken(ctx context.Context, id, expectedHash, newHash string, expiresAt time.Time) (bool, error) {
	args := m.Called(ctx, id, expectedHash, newHash, expiresAt)
	return args.Bool(0), args.Error(1)
}

func (m *mockAccountRepository) ClearRefreshToken(ctx context.Context, id, expectedHash string) (bool, error) {
	args := m.Called(ctx, id, expectedHash)
	return args.Bool(0), args.Error(1)
}

func (m *mockAccountRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	args := m.Called(ctx, id, passwordHash)
	return args.Error(0)
}

func (m *mockAccountRepository) SoftDelete(ctx context.Context, id string, deletedAt time.Time) error {
	args := m.Called(ctx, id, deletedAt)
	return args.Error(0)
}

// --- Fakes ---

type fakeVerifier struct {
	identity *federation.Identity
	err      error
}

func (f *fakeVerifier) Validate(_ context.Context, idToken string) (*federation.Identity, error) {
	if f.err != nil {
		return nil, f.err
	}
	if idToken == "" {
		return nil, domain.ErrInvalidFederatedToken
	}
	return f.identity, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	topics []string
}

func (r *recordingPublisher) Publish(_ context.Context, topic string, _ *pkgkafka.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.topics = append(r.topics, topic)
	return nil
}

func (r *recordingPublisher) Topics() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.topics...)
}

// --- Test Helpers ---

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestIssuer(t *testing.T) *auth.TokenIssuer {
	t.Helper()
	issuer, err := auth.NewTokenIssuer(testSecret, testIssuer, 0, 0)
	require.NoError(t, err)
	return issuer
}

type testEnv struct {
	svc       *AuthService
	authn     *Authenticator
	repo      repository.AccountRepository
	issuer    *auth.TokenIssuer
	hasher    *auth.Hasher
	verifier  *fakeVerifier
	publisher *recordingPublisher
}

// newTestEnv wires the service over the given repository. A nil repository
// selects a fresh in-memory store.
func newTestEnv(t *testing.T, repo repository.AccountRepository) *testEnv {
	t.Helper()
	if repo == nil {
		repo = memory.NewAccountRepository()
	}
	logger := newTestLogger()
	issuer := newTestIssuer(t)
	hasher := auth.NewHasher(bcrypt.MinCost)
	verifier := &fakeVerifier{identity: &federation.Identity{
		Provider: domain.AuthOriginGoogle,
		Subject:  "google-sub-1",
		Email:    "fed@example.com",
		Name:     "Fed User",
	}}
	publisher := &recordingPublisher{}
	producer := event.NewProducer(publisher, logger)

	return &testEnv{
		svc:       NewAuthService(repo, hasher, issuer, verifier, producer, logger),
		authn:     NewAuthenticator(repo, issuer, logger),
		repo:      repo,
		issuer:    issuer,
		hasher:    hasher,
		verifier:  verifier,
		publisher: publisher,
	}
}

func defaultSignup() SignupInput {
	return SignupInput{
		Name:     "Kim Poki",
		Email:    "a@x.com",
		Phone:    "010-0000-0000",
		Password: "Abc12345!",
	}
}

// mintToken signs a token with the test secret directly, so tests can
// produce tokens the issuer would never hand out (for example already
// expired ones).
func mintToken(t *testing.T, accountID string, kind auth.TokenKind, exp time.Time) string {
	t.Helper()
	claims := &auth.Claims{
		Kind: kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   accountID,
			Issuer:    testIssuer,
			IssuedAt:  jwt.NewNumericDate(exp.Add(-time.Hour)),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func strPtr(s string) *string {
	return &s
}
