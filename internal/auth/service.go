// Package auth owns user accounts: signup, signin and resolving a session
// token back to a user.
package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"ticket-market/internal/apperr"
	"ticket-market/internal/clock"
	"ticket-market/internal/session"
	"ticket-market/internal/store"
	"ticket-market/models"
)

type UserStore interface {
	CreateUser(ctx context.Context, u *models.User) error
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)
	FindUserByID(ctx context.Context, id string) (*models.User, error)
}

// Limiter throttles signin attempts per key.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (c Credentials) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Email, validation.Required.Error("Email must be valid"), is.EmailFormat.Error("Email must be valid")),
		validation.Field(&c.Password, validation.Required.Error("You must supply a password"), validation.Length(4, 20).Error("Password must be between 4 and 20 characters")),
	)
}

type Service struct {
	users    UserStore
	sessions *session.Manager
	limiter  Limiter
	clock    clock.Clock
	cost     int
}

type Option func(*Service)

func WithLimiter(l Limiter) Option {
	return func(s *Service) { s.limiter = l }
}

func WithClock(c clock.Clock) Option {
	return func(s *Service) { s.clock = c }
}

// WithBcryptCost overrides the hashing cost, mostly to keep tests fast.
func WithBcryptCost(cost int) Option {
	return func(s *Service) { s.cost = cost }
}

func NewService(users UserStore, sessions *session.Manager, opts ...Option) *Service {
	s := &Service{
		users:    users,
		sessions: sessions,
		clock:    clock.Real(),
		cost:     bcrypt.DefaultCost,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Signup creates an account and signs the new user in.
func (s *Service) Signup(ctx context.Context, creds Credentials) (*models.User, *session.Session, error) {
	creds.Email = strings.TrimSpace(strings.ToLower(creds.Email))
	creds.Password = strings.TrimSpace(creds.Password)
	if err := creds.Validate(); err != nil {
		return nil, nil, apperr.FromValidation(err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(creds.Password), s.cost)
	if err != nil {
		return nil, nil, err
	}
	u := &models.User{
		ID:           uuid.NewString(),
		Email:        creds.Email,
		PasswordHash: string(hash),
		CreatedAt:    s.clock.Now(),
	}
	if err := s.users.CreateUser(ctx, u); err != nil {
		return nil, nil, err
	}

	sess, err := s.sessions.Issue(u)
	if err != nil {
		return nil, nil, err
	}
	slog.Info("User signed up", "user_id", u.ID)
	return u, sess, nil
}

// Signin checks the credentials and issues a session.
func (s *Service) Signin(ctx context.Context, creds Credentials) (*models.User, *session.Session, error) {
	creds.Email = strings.TrimSpace(strings.ToLower(creds.Email))
	if err := validation.ValidateStruct(&creds,
		validation.Field(&creds.Email, validation.Required.Error("Email must be valid"), is.EmailFormat.Error("Email must be valid")),
		validation.Field(&creds.Password, validation.Required.Error("You must supply a password")),
	); err != nil {
		return nil, nil, apperr.FromValidation(err)
	}

	if s.limiter != nil {
		ok, err := s.limiter.Allow(ctx, "signin:"+creds.Email)
		if err != nil {
			slog.Warn("Signin limiter failed", "error", err)
		} else if !ok {
			return nil, nil, apperr.ErrRateLimited
		}
	}

	u, err := s.users.FindUserByEmail(ctx, creds.Email)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil, apperr.ErrInvalidCredentials
	}
	if err != nil {
		return nil, nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(creds.Password)); err != nil {
		return nil, nil, apperr.ErrInvalidCredentials
	}

	sess, err := s.sessions.Issue(u)
	if err != nil {
		return nil, nil, err
	}
	return u, sess, nil
}

// Authenticate is Signin without the user record.
func (s *Service) Authenticate(ctx context.Context, creds Credentials) (*session.Session, error) {
	_, sess, err := s.Signin(ctx, creds)
	return sess, err
}

// Identity resolves token to a user. An absent, invalid or expired token
// is an anonymous caller: nil user, nil error.
func (s *Service) Identity(ctx context.Context, token string) (*models.User, error) {
	sess, err := s.sessions.Verify(token)
	if err != nil {
		return nil, nil
	}
	u, err := s.users.FindUserByID(ctx, sess.UserID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}

// Sessions exposes the manager used to verify tokens.
func (s *Service) Sessions() *session.Manager { return s.sessions }
