// Package client is a small API client used by the command line tools.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"ticket-market/internal/apperr"
	"ticket-market/models"
)

type Client struct {
	baseURL *url.URL
	token   string
	hc      *http.Client
}

// New returns a client for the API at baseURL, authenticating with token.
func New(baseURL, token string) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("client: url.Parse: %w", err)
	}
	return &Client{baseURL: u, token: token, hc: &http.Client{Timeout: 10 * time.Second}}, nil
}

func (c *Client) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	var o models.Order
	if err := c.get(ctx, "/orders/"+url.PathEscape(id), &o); err != nil {
		return nil, err
	}
	return &o, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL.JoinPath(path).String(), nil)
	if err != nil {
		return fmt.Errorf("client: http.NewReq: %w", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return apperr.ErrUnknownOutcome.Wrap(err)
		}
		return apperr.ErrRelayUnavailable.Wrap(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return replyError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("client: json.Decode: %w", err)
	}
	return nil
}

func replyError(resp *http.Response) error {
	var env apperr.Response
	_ = json.NewDecoder(resp.Body).Decode(&env)

	var base *apperr.Error
	switch resp.StatusCode {
	case http.StatusUnauthorized:
		base = apperr.ErrUnauthenticated
	case http.StatusNotFound:
		base = apperr.ErrOrderNotFound
	default:
		return fmt.Errorf("client: unexpected status %d", resp.StatusCode)
	}
	if len(env.Errors) > 0 && env.Errors[0].Message != "" {
		return base.WithMessage(env.Errors[0].Message)
	}
	return base
}
