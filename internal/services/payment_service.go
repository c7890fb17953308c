package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"

	"ticket-market/internal/apperr"
	"ticket-market/internal/payments"
	"ticket-market/models"
	"ticket-market/monitoring"
)

type PaymentInput struct {
	OrderID string `json:"orderId"`
	Token   string `json:"token"`
}

func (in PaymentInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.OrderID, validation.Required.Error("OrderId must be provided")),
		validation.Field(&in.Token, validation.Required.Error("Token must be provided")),
	)
}

// PaymentService charges the buyer and completes the order.
type PaymentService struct {
	orders   *OrderService
	gateway  payments.Gateway
	currency string
}

func NewPaymentService(orders *OrderService, gateway payments.Gateway, currency string) *PaymentService {
	if currency == "" {
		currency = "usd"
	}
	return &PaymentService{orders: orders, gateway: gateway, currency: strings.ToLower(currency)}
}

// Pay charges in.Token for the order and completes it. Ownership and
// expiry are checked before the provider is called. A charge is refunded
// only once the order has ended without it; while the order is still open
// the charge is kept, and a retry gets it back from the provider instead of
// charging again.
func (s *PaymentService) Pay(ctx context.Context, actor *models.User, in PaymentInput) (*models.Payment, *models.Order, error) {
	if err := in.Validate(); err != nil {
		return nil, nil, apperr.FromValidation(err)
	}

	o, err := s.orders.owned(ctx, actor, in.OrderID)
	if err != nil {
		return nil, nil, err
	}
	if err := checkPayable(o); err != nil {
		monitoring.TrackPayment("rejected")
		return nil, nil, err
	}

	charge, err := s.gateway.Charge(ctx, payments.ChargeRequest{
		OrderID:  o.ID,
		Amount:   payments.MinorToDecimal(o.Ticket.Price),
		Currency: s.currency,
		Token:    in.Token,
	})
	if err != nil {
		switch {
		case errors.Is(err, apperr.ErrCardDeclined):
			monitoring.TrackPayment("declined")
		default:
			monitoring.TrackPayment("unavailable")
			slog.Error("Payment gateway failed", "error", err, "order_id", o.ID)
		}
		return nil, nil, err
	}

	payment := &models.Payment{
		ID:         uuid.NewString(),
		OrderID:    o.ID,
		GatewayRef: charge.Reference,
		Amount:     o.Ticket.Price,
	}
	completed, err := s.orders.Complete(ctx, o.ID, payment)
	if err != nil {
		s.afterFailedComplete(ctx, o, charge, err)
		return nil, nil, err
	}

	monitoring.TrackPayment("success")
	slog.Info("Payment captured", "order_id", o.ID, "payment_id", payment.ID, "gateway_ref", charge.Reference)
	return payment, completed, nil
}

// afterFailedComplete decides what happens to a charge the order did not
// take. It refunds only when the re-read order is cancelled. AlreadyPaid
// means a concurrent attempt completed the order with the same idempotent
// charge. An unknown outcome or an open order keeps the charge for the
// retry.
func (s *PaymentService) afterFailedComplete(ctx context.Context, o *models.Order, charge *models.ChargeResult, err error) {
	log := slog.With("order_id", o.ID, "gateway_ref", charge.Reference)
	if errors.Is(err, apperr.ErrAlreadyPaid) {
		monitoring.TrackPayment("duplicate")
		return
	}
	if errors.Is(err, apperr.ErrUnknownOutcome) {
		monitoring.TrackPayment("pending")
		log.Error("Order completion outcome unknown, charge kept", "error", err)
		return
	}

	ctx = context.WithoutCancel(ctx)
	cur, rerr := s.orders.current(ctx, o.ID)
	switch {
	case rerr != nil:
		monitoring.TrackPayment("pending")
		log.Error("Order unreadable after charge, charge kept", "error", err, "read_error", rerr)
	case cur.Status == models.OrderCreated:
		monitoring.TrackPayment("pending")
		log.Warn("Order still open after failed completion, charge kept for retry", "error", err)
	case cur.Status == models.OrderComplete:
		monitoring.TrackPayment("duplicate")
	default:
		monitoring.TrackPayment("refunded")
		log.Warn("Order ended without the charge, refunding", "error", err, "status", string(cur.Status), "reason", string(cur.CancelReason))
		if rerr := s.gateway.Refund(ctx, o.ID, charge.Reference); rerr != nil {
			log.Error("Refund failed", "error", rerr)
		}
	}
}
