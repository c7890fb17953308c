package auth

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"ticket-market/internal/apperr"
	"ticket-market/internal/clock"
	"ticket-market/internal/session"
	"ticket-market/internal/store"
	"ticket-market/models"
)

type memUsers struct {
	mu      sync.Mutex
	byID    map[string]*models.User
	byEmail map[string]*models.User
}

func newMemUsers() *memUsers {
	return &memUsers{byID: map[string]*models.User{}, byEmail: map[string]*models.User{}}
}

func (m *memUsers) CreateUser(_ context.Context, u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byEmail[u.Email]; ok {
		return apperr.ErrEmailInUse
	}
	m.byID[u.ID] = u
	m.byEmail[u.Email] = u
	return nil
}

func (m *memUsers) FindUserByEmail(_ context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.byEmail[email]; ok {
		return u, nil
	}
	return nil, store.ErrNotFound
}

func (m *memUsers) FindUserByID(_ context.Context, id string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.byID[id]; ok {
		return u, nil
	}
	return nil, store.ErrNotFound
}

type MockLimiter struct {
	mock.Mock
}

func (m *MockLimiter) Allow(ctx context.Context, key string) (bool, error) {
	args := m.Called(ctx, key)
	return args.Bool(0), args.Error(1)
}

func newTestService(opts ...Option) (*Service, *clock.Fake) {
	clk := clock.NewFake(time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC))
	sessions := session.NewManager("test-secret", time.Hour, false, clk)
	opts = append([]Option{WithClock(clk), WithBcryptCost(bcrypt.MinCost)}, opts...)
	return NewService(newMemUsers(), sessions, opts...), clk
}

func TestSignupThenSignin(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	u, sess, err := svc.Signup(ctx, Credentials{Email: " Buyer@Example.com ", Password: "pass1"})
	require.NoError(t, err)
	assert.Equal(t, "buyer@example.com", u.Email)
	assert.NotEqual(t, "pass1", u.PasswordHash)
	assert.Equal(t, u.ID, sess.UserID)

	got, sess2, err := svc.Signin(ctx, Credentials{Email: "buyer@example.com", Password: "pass1"})
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	who, err := svc.Identity(ctx, sess2.Token)
	require.NoError(t, err)
	require.NotNil(t, who)
	assert.Equal(t, u.ID, who.ID)
}

func TestSignupValidation(t *testing.T) {
	svc, _ := newTestService()

	_, _, err := svc.Signup(context.Background(), Credentials{Email: "not-an-email", Password: "x"})
	require.Error(t, err)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	var appErr *apperr.Error
	require.ErrorAs(t, err, &appErr)
	assert.Len(t, appErr.Fields, 2)
}

func TestSignupDuplicateEmail(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	_, _, err := svc.Signup(ctx, Credentials{Email: "a@b.co", Password: "pass1"})
	require.NoError(t, err)
	_, _, err = svc.Signup(ctx, Credentials{Email: "a@b.co", Password: "pass2"})
	assert.ErrorIs(t, err, apperr.ErrEmailInUse)
}

func TestSigninInvalidCredentials(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	_, _, err := svc.Signup(ctx, Credentials{Email: "a@b.co", Password: "pass1"})
	require.NoError(t, err)

	_, _, err = svc.Signin(ctx, Credentials{Email: "a@b.co", Password: "wrong"})
	assert.ErrorIs(t, err, apperr.ErrInvalidCredentials)

	_, _, err = svc.Signin(ctx, Credentials{Email: "nobody@b.co", Password: "pass1"})
	assert.ErrorIs(t, err, apperr.ErrInvalidCredentials)
}

func TestSigninRateLimited(t *testing.T) {
	limiter := new(MockLimiter)
	limiter.On("Allow", mock.Anything, "signin:a@b.co").Return(false, nil)
	svc, _ := newTestService(WithLimiter(limiter))

	_, _, err := svc.Signin(context.Background(), Credentials{Email: "a@b.co", Password: "pass1"})
	assert.ErrorIs(t, err, apperr.ErrRateLimited)
	limiter.AssertExpectations(t)
}

func TestIdentityAnonymous(t *testing.T) {
	svc, clk := newTestService()
	ctx := context.Background()

	u, err := svc.Identity(ctx, "")
	require.NoError(t, err)
	assert.Nil(t, u)

	u, err = svc.Identity(ctx, "garbage")
	require.NoError(t, err)
	assert.Nil(t, u)

	_, sess, err := svc.Signup(ctx, Credentials{Email: "a@b.co", Password: "pass1"})
	require.NoError(t, err)
	clk.Advance(2 * time.Hour)
	u, err = svc.Identity(ctx, sess.Token)
	require.NoError(t, err)
	assert.Nil(t, u)
}
