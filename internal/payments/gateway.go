// Package payments talks to the external payment provider. Card data never
// passes through here: callers hand over an opaque token.
package payments

import (
	"context"

	"github.com/shopspring/decimal"

	"ticket-market/models"
)

type ChargeRequest struct {
	OrderID  string          `json:"orderId"`
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
	Token    string          `json:"source"`
}

// Gateway charges a payment token. Charges are idempotent per order id: a
// repeated charge for the same order returns the first result.
//
// Errors are apperr.ErrCardDeclined or apperr.ErrGatewayUnavailable.
type Gateway interface {
	Charge(ctx context.Context, req ChargeRequest) (*models.ChargeResult, error)
	Refund(ctx context.Context, orderID, reference string) error
}

// MinorToDecimal converts integer minor units to the provider's decimal
// amount, e.g. 5000 -> 50.00.
func MinorToDecimal(minor int64) decimal.Decimal {
	return decimal.New(minor, -2)
}
