package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"ticket-market/internal/apperr"
	"ticket-market/internal/auth"
	"ticket-market/internal/session"
	"ticket-market/models"
	"ticket-market/utils"
)

// Upstream is an Authenticator backed by the API over HTTP.
type Upstream struct {
	// baseURL is the API root, for example http://api:8090.
	baseURL *url.URL

	// breaker fails fast while the API is down.
	breaker *utils.CircuitBreaker

	hc *http.Client
}

func NewUpstream(baseURL string, timeout time.Duration) (*Upstream, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("relay: url.Parse: %w", err)
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Upstream{
		baseURL: u,
		breaker: utils.NewCircuitBreaker("relay-upstream"),
		hc:      &http.Client{Timeout: timeout},
	}, nil
}

// URL is the API root the relay forwards to.
func (u *Upstream) URL() *url.URL { return u.baseURL }

type userReply struct {
	User        *models.User `json:"user"`
	CurrentUser *models.User `json:"currentUser"`
}

func (u *Upstream) Authenticate(ctx context.Context, creds auth.Credentials) (*session.Session, error) {
	body, err := json.Marshal(creds)
	if err != nil {
		return nil, fmt.Errorf("relay: json.Marshal: %w", err)
	}

	var sess *session.Session
	err = u.call(ctx, http.MethodPost, "/auth/signin", "", body, func(resp *http.Response) error {
		if resp.StatusCode != http.StatusOK {
			return upstreamError(resp)
		}
		var reply userReply
		if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil || reply.User == nil {
			return apperr.ErrRelayUnavailable.Wrap(fmt.Errorf("relay: bad signin reply: %v", err))
		}
		for _, c := range resp.Cookies() {
			if c.Name == session.CookieName && c.Value != "" {
				sess = &session.Session{
					Token:     c.Value,
					UserID:    reply.User.ID,
					Email:     reply.User.Email,
					ExpiresAt: c.Expires.UTC(),
				}
				return nil
			}
		}
		return apperr.ErrRelayUnavailable.Wrap(errors.New("relay: signin reply carried no session"))
	})
	return sess, err
}

func (u *Upstream) Identity(ctx context.Context, token string) (*models.User, error) {
	if token == "" {
		return nil, nil
	}
	var user *models.User
	err := u.call(ctx, http.MethodGet, "/auth/currentuser", token, nil, func(resp *http.Response) error {
		if resp.StatusCode != http.StatusOK {
			return apperr.ErrRelayUnavailable.Wrap(fmt.Errorf("relay: currentuser status %d", resp.StatusCode))
		}
		var reply userReply
		if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
			return apperr.ErrRelayUnavailable.Wrap(fmt.Errorf("relay: json.Decode: %w", err))
		}
		user = reply.CurrentUser
		return nil
	})
	return user, err
}

// call sends one request through the breaker and hands the response to
// handle. Transport failures and 5xx replies become ErrRelayUnavailable.
func (u *Upstream) call(ctx context.Context, method, path, token string, body []byte, handle func(*http.Response) error) error {
	var handled error
	err := u.breaker.Execute(ctx, func(ctx context.Context) error {
		var rd io.Reader
		if body != nil {
			rd = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, u.baseURL.JoinPath(path).String(), rd)
		if err != nil {
			return fmt.Errorf("relay: http.NewReq: %w", err)
		}
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		// the API rate limits per client address
		if ip := clientIP(ctx); ip != "" {
			req.Header.Set("X-Forwarded-For", ip)
		}

		resp, err := u.hc.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode >= http.StatusInternalServerError {
			return fmt.Errorf("relay: upstream status %d", resp.StatusCode)
		}
		// business failures do not count against the breaker
		handled = handle(resp)
		return nil
	})
	if err != nil {
		if errors.Is(err, apperr.ErrRelayUnavailable) {
			return err
		}
		return apperr.ErrRelayUnavailable.Wrap(err)
	}
	return handled
}

// upstreamError rebuilds the API's error envelope as an apperr value.
func upstreamError(resp *http.Response) error {
	switch resp.StatusCode {
	case http.StatusTooManyRequests:
		return apperr.ErrRateLimited
	case http.StatusUnauthorized:
		return apperr.ErrInvalidCredentials
	}

	var env apperr.Response
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil || len(env.Errors) == 0 {
		return apperr.ErrInvalidCredentials
	}
	for _, fe := range env.Errors {
		if fe.Field != "" {
			return apperr.Validation(env.Errors...)
		}
	}
	return apperr.ErrInvalidCredentials
}
