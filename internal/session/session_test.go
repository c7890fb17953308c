package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ticket-market/internal/apperr"
	"ticket-market/internal/clock"
	"ticket-market/models"
)

var start = time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)

func TestIssueAndVerify(t *testing.T) {
	clk := clock.NewFake(start)
	m := NewManager("secret", time.Hour, false, clk)

	s, err := m.Issue(&models.User{ID: "u1", Email: "a@b.c"})
	require.NoError(t, err)

	got, err := m.Verify(s.Token)
	require.NoError(t, err)
	assert.Equal(t, "u1", got.UserID)
	assert.Equal(t, "a@b.c", got.Email)
	assert.Equal(t, start.Add(time.Hour), got.ExpiresAt)
}

func TestVerifyRejectsExpired(t *testing.T) {
	clk := clock.NewFake(start)
	m := NewManager("secret", time.Minute, false, clk)
	s, err := m.Issue(&models.User{ID: "u1"})
	require.NoError(t, err)

	clk.Advance(2 * time.Minute)
	_, err = m.Verify(s.Token)
	assert.ErrorIs(t, err, apperr.ErrUnauthenticated)
}

func TestVerifyRejectsForeignSignature(t *testing.T) {
	clk := clock.NewFake(start)
	issuer := NewManager("other-secret", time.Hour, false, clk)
	verifier := NewManager("secret", time.Hour, false, clk)

	s, err := issuer.Issue(&models.User{ID: "u1"})
	require.NoError(t, err)
	_, err = verifier.Verify(s.Token)
	assert.ErrorIs(t, err, apperr.ErrUnauthenticated)

	_, err = verifier.Verify("")
	assert.ErrorIs(t, err, apperr.ErrUnauthenticated)
}

func TestVerifyRejectsNoneAlgorithm(t *testing.T) {
	m := NewManager("secret", time.Hour, false, clock.NewFake(start))
	claims := Claims{RegisteredClaims: jwt.RegisteredClaims{
		Issuer:    issuer,
		Subject:   "someone-else",
		ExpiresAt: jwt.NewNumericDate(start.Add(time.Hour)),
	}}
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = m.Verify(token)
	assert.ErrorIs(t, err, apperr.ErrUnauthenticated)
}

func TestCookieAttributes(t *testing.T) {
	m := NewManager("secret", time.Hour, true, clock.NewFake(start))
	s, err := m.Issue(&models.User{ID: "u1"})
	require.NoError(t, err)

	c := m.Cookie(s)
	assert.Equal(t, CookieName, c.Name)
	assert.True(t, c.HttpOnly)
	assert.True(t, c.Secure)
	assert.Equal(t, http.SameSiteLaxMode, c.SameSite)
	assert.Equal(t, "/", c.Path)

	dev := NewManager("secret", time.Hour, false, clock.NewFake(start))
	assert.False(t, dev.Cookie(s).Secure)
	assert.Equal(t, -1, dev.ClearCookie().MaxAge)
}

func TestTokenFromRequest(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Empty(t, TokenFromRequest(r))

	r.Header.Set("Authorization", "Bearer abc")
	assert.Equal(t, "abc", TokenFromRequest(r))

	r.AddCookie(&http.Cookie{Name: CookieName, Value: "from-cookie"})
	assert.Equal(t, "from-cookie", TokenFromRequest(r))
}

func TestContextRoundTrip(t *testing.T) {
	assert.Nil(t, FromContext(context.Background()))
	s := &Session{UserID: "u1"}
	assert.Same(t, s, FromContext(NewContext(context.Background(), s)))
}
