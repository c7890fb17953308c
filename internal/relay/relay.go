// Package relay lets the presentation tier act for a signed-in user
// against the API. It forwards the session token it was handed and never
// derives identity on its own.
package relay

import (
	"context"
	"net"
	"net/http"

	"ticket-market/internal/auth"
	"ticket-market/internal/session"
	"ticket-market/models"
)

// Authenticator is the authority the relay defers to. The API's
// auth.Service satisfies it in process; Upstream satisfies it over HTTP.
type Authenticator interface {
	Authenticate(ctx context.Context, creds auth.Credentials) (*session.Session, error)
	// Identity returns nil, nil for a token that proves nothing.
	Identity(ctx context.Context, token string) (*models.User, error)
}

var _ Authenticator = (*auth.Service)(nil)

type clientIPKey struct{}

// WithClientIP records the end user's address so calls the relay makes on
// their behalf are attributed to them, not to the relay.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey{}, ip)
}

func clientIP(ctx context.Context) string {
	ip, _ := ctx.Value(clientIPKey{}).(string)
	return ip
}

// remoteIP strips the port from a request's RemoteAddr.
func remoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

type Relay struct {
	auth   Authenticator
	secure bool
}

// New returns a Relay. secure sets the Secure flag on session cookies and
// should be on in production.
func New(a Authenticator, secure bool) *Relay {
	return &Relay{auth: a, secure: secure}
}

// Authenticate exchanges credentials for a session. Transport failures
// surface as apperr.ErrRelayUnavailable.
func (r *Relay) Authenticate(ctx context.Context, creds auth.Credentials) (*session.Session, error) {
	return r.auth.Authenticate(ctx, creds)
}

// CurrentIdentity resolves sess to a user. A nil session is an anonymous
// caller and yields nil, nil.
func (r *Relay) CurrentIdentity(ctx context.Context, sess *session.Session) (*models.User, error) {
	if sess == nil || sess.Token == "" {
		return nil, nil
	}
	return r.auth.Identity(ctx, sess.Token)
}

// WithSession returns a copy of req carrying sess as a bearer token. Any
// credentials the client put on req are dropped, so a caller cannot pass
// another user's token through the relay.
func (r *Relay) WithSession(sess *session.Session, req *http.Request) *http.Request {
	out := req.Clone(req.Context())
	attach(sess, out.Header)
	return out
}

func attach(sess *session.Session, h http.Header) {
	h.Del("Authorization")
	h.Del("Cookie")
	if sess != nil && sess.Token != "" {
		h.Set("Authorization", "Bearer "+sess.Token)
	}
}

// SessionFromRequest reads the session cookie. The token is not verified
// here; the API verifies it on every forwarded call.
func (r *Relay) SessionFromRequest(req *http.Request) *session.Session {
	c, err := req.Cookie(session.CookieName)
	if err != nil || c.Value == "" {
		return nil
	}
	return &session.Session{Token: c.Value}
}

// Cookie persists sess on the browser.
func (r *Relay) Cookie(sess *session.Session) *http.Cookie {
	return session.NewCookie(sess, r.secure)
}

func (r *Relay) ClearCookie() *http.Cookie {
	return session.ExpiredCookie(r.secure)
}
