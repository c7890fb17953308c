// Package session issues and verifies the signed token that carries a
// caller's identity between the browser, the relay and the API.
package session

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"ticket-market/internal/apperr"
	"ticket-market/internal/clock"
	"ticket-market/models"
)

// CookieName is the cookie holding the session token.
const CookieName = "jwt"

const issuer = "ticket-market"

type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// Session is a verified identity plus the token that proves it.
type Session struct {
	Token     string
	UserID    string
	Email     string
	ExpiresAt time.Time
}

// User returns the identity carried by the session.
func (s *Session) User() *models.User {
	return &models.User{ID: s.UserID, Email: s.Email}
}

type Manager struct {
	secret []byte
	ttl    time.Duration
	secure bool
	clock  clock.Clock
}

// NewManager returns a Manager signing with secret. secure controls the
// cookie Secure flag and should be set in production.
func NewManager(secret string, ttl time.Duration, secure bool, clk clock.Clock) *Manager {
	if clk == nil {
		clk = clock.Real()
	}
	return &Manager{secret: []byte(secret), ttl: ttl, secure: secure, clock: clk}
}

// Issue signs a new token for u.
func (m *Manager) Issue(u *models.User) (*Session, error) {
	now := m.clock.Now()
	exp := now.Add(m.ttl)
	claims := Claims{
		Email: u.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   u.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return nil, err
	}
	return &Session{Token: token, UserID: u.ID, Email: u.Email, ExpiresAt: exp.Truncate(time.Second)}, nil
}

// Verify checks the signature and expiry of token. Any failure is
// apperr.ErrUnauthenticated.
func (m *Manager) Verify(token string) (*Session, error) {
	if token == "" {
		return nil, apperr.ErrUnauthenticated
	}
	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.clock.Now),
	)
	if err != nil {
		return nil, apperr.ErrUnauthenticated.Wrap(err)
	}
	if claims.Subject == "" {
		return nil, apperr.ErrUnauthenticated.Wrap(errors.New("token has no subject"))
	}
	return &Session{
		Token:     token,
		UserID:    claims.Subject,
		Email:     claims.Email,
		ExpiresAt: claims.ExpiresAt.Time.UTC(),
	}, nil
}

// Cookie builds the cookie persisting s.
func (m *Manager) Cookie(s *Session) *http.Cookie {
	return NewCookie(s, m.secure)
}

// ClearCookie expires the session cookie.
func (m *Manager) ClearCookie() *http.Cookie {
	return ExpiredCookie(m.secure)
}

// NewCookie persists s where page scripts cannot read it: HttpOnly,
// SameSite=Lax, Path=/, and Secure when secure is set.
func NewCookie(s *Session, secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    s.Token,
		Path:     "/",
		Expires:  s.ExpiresAt,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
}

func ExpiredCookie(secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// TokenFromRequest reads the token from the session cookie, falling back
// to an "Authorization: Bearer" header.
func TokenFromRequest(r *http.Request) string {
	if c, err := r.Cookie(CookieName); err == nil && c.Value != "" {
		return c.Value
	}
	auth := r.Header.Get("Authorization")
	if len(auth) > 7 && strings.EqualFold(auth[:7], "bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}

type ctxKey struct{}

func NewContext(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

// FromContext returns the session attached to ctx, or nil.
func FromContext(ctx context.Context) *Session {
	s, _ := ctx.Value(ctxKey{}).(*Session)
	return s
}
