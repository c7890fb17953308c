package payments

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"ticket-market/internal/apperr"
	"ticket-market/models"
	"ticket-market/utils"
)

type ClientConfig struct {
	BaseURL string        `yaml:"base_url"`
	APIKey  string        `yaml:"api_key"`
	HMACKey string        `yaml:"hmac_key"`
	Timeout time.Duration `yaml:"timeout"`
}

// HTTPGateway is a Gateway over the provider's JSON API.
type HTTPGateway struct {
	// baseURL is the provider endpoint.
	baseURL string

	// apiKey authenticates us with the provider.
	apiKey string

	// hmacKey signs request bodies.
	hmacKey string

	// breaker stops calling the provider while it keeps failing.
	breaker *utils.CircuitBreaker

	hc *http.Client
}

func NewHTTPGateway(c ClientConfig) *HTTPGateway {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPGateway{
		baseURL: c.BaseURL,
		apiKey:  c.APIKey,
		hmacKey: c.HMACKey,
		breaker: utils.NewCircuitBreaker("payment-gateway", utils.WithFailureFilter(func(err error) bool {
			return err != nil && !errors.Is(err, apperr.ErrCardDeclined)
		})),
		hc: &http.Client{Timeout: timeout},
	}
}

type chargeReply struct {
	ID      string `json:"id"`
	Status  string `json:"status"`
	Created int64  `json:"created"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (g *HTTPGateway) Charge(ctx context.Context, req ChargeRequest) (*models.ChargeResult, error) {
	body, err := json.Marshal(map[string]string{
		"amount":   req.Amount.StringFixed(2),
		"currency": req.Currency,
		"source":   req.Token,
		"orderId":  req.OrderID,
	})
	if err != nil {
		return nil, fmt.Errorf("charge: json.Marshal: %w", err)
	}

	var result *models.ChargeResult
	err = g.breaker.Execute(ctx, func(ctx context.Context) error {
		var reply chargeReply
		status, err := g.post(ctx, "/v1/charges", req.OrderID, body, &reply)
		if err != nil {
			return err
		}
		switch {
		case status == http.StatusOK || status == http.StatusCreated:
			if reply.Status != "succeeded" {
				return apperr.ErrCardDeclined.Wrap(fmt.Errorf("charge status %q", reply.Status))
			}
			result = &models.ChargeResult{Reference: reply.ID, ChargedAt: time.Unix(reply.Created, 0).UTC()}
			return nil
		case status == http.StatusPaymentRequired || status == http.StatusBadRequest:
			msg := "card declined"
			if reply.Error != nil {
				msg = reply.Error.Code
			}
			return apperr.ErrCardDeclined.Wrap(errors.New(msg))
		default:
			return apperr.ErrGatewayUnavailable.Wrap(fmt.Errorf("charge: unexpected status %d", status))
		}
	})
	if errors.Is(err, utils.ErrOpenState) || errors.Is(err, utils.ErrTooManyRequests) {
		return nil, apperr.ErrGatewayUnavailable.Wrap(err)
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (g *HTTPGateway) Refund(ctx context.Context, orderID, reference string) error {
	body, err := json.Marshal(map[string]string{"charge": reference})
	if err != nil {
		return fmt.Errorf("refund: json.Marshal: %w", err)
	}

	err = g.breaker.Execute(ctx, func(ctx context.Context) error {
		var reply chargeReply
		status, err := g.post(ctx, "/v1/refunds", "refund-"+orderID, body, &reply)
		if err != nil {
			return err
		}
		if status != http.StatusOK && status != http.StatusCreated {
			return apperr.ErrGatewayUnavailable.Wrap(fmt.Errorf("refund: unexpected status %d", status))
		}
		return nil
	})
	if errors.Is(err, utils.ErrOpenState) || errors.Is(err, utils.ErrTooManyRequests) {
		return apperr.ErrGatewayUnavailable.Wrap(err)
	}
	return err
}

// post sends a signed JSON request and decodes the reply into out.
func (g *HTTPGateway) post(ctx context.Context, path, idempotencyKey string, body []byte, out any) (int, error) {
	base, err := url.Parse(g.baseURL)
	if err != nil {
		return 0, fmt.Errorf("gateway: url.Parse: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base.JoinPath(path).String(), bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("gateway: http.NewReq: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.apiKey)
	req.Header.Set("Idempotency-Key", idempotencyKey)
	req.Header.Set("SignedHash", Hmac256(body, []byte(g.hmacKey)))

	resp, err := g.hc.Do(req)
	if err != nil {
		return 0, apperr.ErrGatewayUnavailable.Wrap(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return resp.StatusCode, apperr.ErrGatewayUnavailable.Wrap(fmt.Errorf("gateway: status %d", resp.StatusCode))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resp.StatusCode, apperr.ErrGatewayUnavailable.Wrap(fmt.Errorf("gateway: json.Decode: %w", err))
	}
	return resp.StatusCode, nil
}

// Hmac256 signs body with key.
func Hmac256(body, key []byte) string {
	hash := hmac.New(sha256.New, key)
	hash.Write(body)
	return hex.EncodeToString(hash.Sum(nil))
}
