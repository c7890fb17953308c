package payments

import (
	"context"
	"sync"

	"ticket-market/internal/apperr"
	"ticket-market/internal/clock"
	"ticket-market/models"
	"ticket-market/utils"
)

// Test tokens understood by Fake.
const (
	TokenOK          = "tok_visa"
	TokenDeclined    = "tok_chargeDeclined"
	TokenUnavailable = "tok_unavailable"
)

// Fake is an in-memory Gateway for development and tests. Any token other
// than TokenDeclined and TokenUnavailable succeeds.
type Fake struct {
	mu      sync.Mutex
	clock   clock.Clock
	charges map[string]*models.ChargeResult
	refunds map[string]string
	calls   int
}

func NewFake(clk clock.Clock) *Fake {
	if clk == nil {
		clk = clock.Real()
	}
	return &Fake{
		clock:   clk,
		charges: map[string]*models.ChargeResult{},
		refunds: map[string]string{},
	}
}

func (f *Fake) Charge(ctx context.Context, req ChargeRequest) (*models.ChargeResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++

	if err := ctx.Err(); err != nil {
		return nil, apperr.ErrGatewayUnavailable.Wrap(err)
	}
	if prev, ok := f.charges[req.OrderID]; ok {
		return prev, nil
	}

	switch req.Token {
	case TokenDeclined:
		return nil, apperr.ErrCardDeclined
	case TokenUnavailable:
		return nil, apperr.ErrGatewayUnavailable
	}

	code, err := utils.GenerateCode(12)
	if err != nil {
		return nil, err
	}
	res := &models.ChargeResult{Reference: "ch_" + code, ChargedAt: f.clock.Now()}
	f.charges[req.OrderID] = res
	return res, nil
}

// Refund also forgets the order's charge, so a refunded reference is
// never replayed by a later Charge.
func (f *Fake) Refund(_ context.Context, orderID, reference string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refunds[orderID] = reference
	if prev, ok := f.charges[orderID]; ok && prev.Reference == reference {
		delete(f.charges, orderID)
	}
	return nil
}

// Calls reports how many charges were attempted.
func (f *Fake) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// Refunded returns the refunded charge reference for orderID.
func (f *Fake) Refunded(orderID string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ref, ok := f.refunds[orderID]
	return ref, ok
}
