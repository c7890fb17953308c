package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"

	"ticket-market/internal/apperr"
	"ticket-market/internal/clock"
	"ticket-market/internal/store"
	"ticket-market/models"
	"ticket-market/monitoring"
)

// DefaultOrderTTL is how long a reservation holds a ticket.
const DefaultOrderTTL = 900 * time.Second

type OrderStore interface {
	GetTicket(ctx context.Context, id string) (*models.Ticket, error)
	GetOrder(ctx context.Context, id string) (*models.Order, error)
	ListOrdersByBuyer(ctx context.Context, buyerID string) ([]*models.Order, error)
	ListDueOrders(ctx context.Context, now time.Time, limit int) ([]*models.Order, error)
	InsertReservation(ctx context.Context, ticket *models.Ticket, o *models.Order) error
	TransitionOrder(ctx context.Context, o *models.Order, to models.OrderStatus, reason models.CancelReason, now time.Time) (*models.Order, error)
	CompleteOrder(ctx context.Context, o *models.Order, p *models.Payment) (*models.Order, error)
}

// Notifier publishes committed state changes. Delivery is best effort.
type Notifier interface {
	Notify(ctx context.Context, e models.Event)
}

// Scheduler tracks order deadlines for the eager sweep.
type Scheduler interface {
	Schedule(ctx context.Context, orderID string, dueAt time.Time) error
	Unschedule(ctx context.Context, orderID string) error
}

// OrderService runs the order lifecycle: created, then cancelled or
// complete. Expiry is evaluated on every read and transition, so a
// created order past its deadline is never reported as created.
type OrderService struct {
	store    OrderStore
	clock    clock.Clock
	ttl      time.Duration
	notifier Notifier
	schedule Scheduler
}

type OrderOption func(*OrderService)

func WithOrderTTL(ttl time.Duration) OrderOption {
	return func(s *OrderService) { s.ttl = ttl }
}

func WithOrderClock(c clock.Clock) OrderOption {
	return func(s *OrderService) { s.clock = c }
}

func WithNotifier(n Notifier) OrderOption {
	return func(s *OrderService) { s.notifier = n }
}

func WithScheduler(sch Scheduler) OrderOption {
	return func(s *OrderService) { s.schedule = sch }
}

func NewOrderService(st OrderStore, opts ...OrderOption) *OrderService {
	s := &OrderService{
		store: st,
		clock: clock.Real(),
		ttl:   DefaultOrderTTL,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *OrderService) Clock() clock.Clock { return s.clock }

// Reserve creates an order for ticketID on behalf of buyer. Of two
// concurrent attempts on the same ticket exactly one wins; the other gets
// ErrTicketAlreadyReserved.
func (s *OrderService) Reserve(ctx context.Context, buyer *models.User, ticketID string) (*models.Order, error) {
	if err := validation.Validate(ticketID, validation.Required.Error("TicketId must be provided")); err != nil {
		return nil, apperr.Validation(apperr.FieldError{Field: "ticketId", Message: err.Error()})
	}

	var order *models.Order
	err := retryOnce(ctx, "reserve", func(ctx context.Context) error {
		ticket, err := s.reservableTicket(ctx, ticketID)
		if err != nil {
			return err
		}

		now := s.clock.Now()
		o := &models.Order{
			ID:        uuid.NewString(),
			BuyerID:   buyer.ID,
			Ticket:    ticket.Snapshot(),
			Status:    models.OrderCreated,
			ExpiresAt: now.Add(s.ttl),
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := s.store.InsertReservation(ctx, ticket, o); err != nil {
			return err
		}
		order = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info("Order reserved", "order_id", order.ID, "ticket_id", order.Ticket.ID, "expires_at", order.ExpiresAt)
	monitoring.TrackReservation()
	s.notify(ctx, models.EventOrderCreated, order)
	if s.schedule != nil {
		if err := s.schedule.Schedule(ctx, order.ID, order.ExpiresAt); err != nil {
			slog.Warn("Failed to schedule expiration", "error", err, "order_id", order.ID)
		}
	}
	return order, nil
}

// reservableTicket loads the ticket, releasing it first if the order
// holding it is past its deadline.
func (s *OrderService) reservableTicket(ctx context.Context, ticketID string) (*models.Ticket, error) {
	ticket, err := s.store.GetTicket(ctx, ticketID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.ErrTicketNotFound
	}
	if err != nil {
		return nil, err
	}
	if !ticket.IsReserved() {
		return ticket, nil
	}

	released, err := s.releaseIfDue(ctx, *ticket.ReservedByOrderID)
	if err != nil {
		return nil, err
	}
	if !released {
		return nil, apperr.ErrTicketAlreadyReserved
	}

	ticket, err = s.store.GetTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if ticket.IsReserved() {
		return nil, apperr.ErrTicketAlreadyReserved
	}
	return ticket, nil
}

// releaseIfDue expires orderID if it is due and reports whether its
// reservation is gone.
func (s *OrderService) releaseIfDue(ctx context.Context, orderID string) (bool, error) {
	holder, err := s.store.GetOrder(ctx, orderID)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	holder, err = s.settle(ctx, holder)
	if err != nil {
		return false, err
	}
	return holder.Status != models.OrderCreated, nil
}

// Get returns the buyer's order with expiry applied. Another buyer's order
// reads as not found.
func (s *OrderService) Get(ctx context.Context, actor *models.User, orderID string) (*models.Order, error) {
	o, err := s.owned(ctx, actor, orderID)
	if errors.Is(err, apperr.ErrNotOwner) {
		return nil, apperr.ErrOrderNotFound
	}
	return o, err
}

// owned is Get for mutations, which tell the caller it is not theirs.
func (s *OrderService) owned(ctx context.Context, actor *models.User, orderID string) (*models.Order, error) {
	o, err := s.load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.BuyerID != actor.ID {
		return nil, apperr.ErrNotOwner
	}
	return s.settle(ctx, o)
}

// current re-reads the order with expiry applied, whoever owns it.
func (s *OrderService) current(ctx context.Context, orderID string) (*models.Order, error) {
	o, err := s.load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return s.settle(ctx, o)
}

// List returns the buyer's orders with expiry applied.
func (s *OrderService) List(ctx context.Context, actor *models.User) ([]*models.Order, error) {
	orders, err := s.store.ListOrdersByBuyer(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	for i, o := range orders {
		settled, err := s.settle(ctx, o)
		if err != nil {
			return nil, err
		}
		orders[i] = settled
	}
	return orders, nil
}

// Cancel lets the buyer give up a created order.
func (s *OrderService) Cancel(ctx context.Context, actor *models.User, orderID string) (*models.Order, error) {
	var cancelled *models.Order
	err := retryOnce(ctx, "cancel", func(ctx context.Context) error {
		o, err := s.load(ctx, orderID)
		if err != nil {
			return err
		}
		if o.BuyerID != actor.ID {
			return apperr.ErrNotOwner
		}
		o, err = s.settle(ctx, o)
		if err != nil {
			return err
		}
		if o.Status.IsTerminal() {
			return apperr.ErrAlreadyTerminal
		}

		cancelled, err = s.store.TransitionOrder(ctx, o, models.OrderCancelled, models.ReasonBuyer, s.clock.Now())
		return err
	})
	if err != nil {
		return nil, err
	}

	s.resolved(ctx, models.OrderCreated, cancelled, models.EventOrderCancelled)
	return cancelled, nil
}

// Complete marks a created order paid and stores payment. The deadline is
// checked here, after the charge, so a payment that lands late is refused.
func (s *OrderService) Complete(ctx context.Context, orderID string, payment *models.Payment) (*models.Order, error) {
	var completed *models.Order
	err := retryOnce(ctx, "complete", func(ctx context.Context) error {
		o, err := s.load(ctx, orderID)
		if err != nil {
			return err
		}
		o, err = s.settle(ctx, o)
		if err != nil {
			return err
		}
		if err := checkPayable(o); err != nil {
			return err
		}

		payment.CreatedAt = s.clock.Now()
		completed, err = s.store.CompleteOrder(ctx, o, payment)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.resolved(ctx, models.OrderCreated, completed, models.EventPaymentCreated)
	return completed, nil
}

// Expire is the system trigger used by the sweep. It is a no-op for
// orders that are terminal or not yet due.
func (s *OrderService) Expire(ctx context.Context, orderID string) (*models.Order, bool, error) {
	var (
		result  *models.Order
		expired bool
	)
	err := retryOnce(ctx, "expire", func(ctx context.Context) error {
		o, err := s.load(ctx, orderID)
		if err != nil {
			return err
		}
		wasDue := o.IsDue(s.clock.Now())
		result, err = s.settle(ctx, o)
		expired = wasDue && err == nil && result.CancelReason == models.ReasonExpired
		return err
	})
	return result, expired, err
}

// DueOrders lists created orders past their deadline.
func (s *OrderService) DueOrders(ctx context.Context, limit int) ([]*models.Order, error) {
	return s.store.ListDueOrders(ctx, s.clock.Now(), limit)
}

// settle applies lazy expiry to o. If another writer got there first the
// stored copy is returned instead, so the release happens exactly once.
func (s *OrderService) settle(ctx context.Context, o *models.Order) (*models.Order, error) {
	if !o.IsDue(s.clock.Now()) {
		return o, nil
	}

	expired, err := s.store.TransitionOrder(ctx, o, models.OrderCancelled, models.ReasonExpired, s.clock.Now())
	if errors.Is(err, apperr.ErrVersionConflict) || errors.Is(err, apperr.ErrAlreadyTerminal) {
		current, gerr := s.load(ctx, o.ID)
		if gerr != nil {
			return nil, gerr
		}
		if current.Status == models.OrderCreated {
			return nil, apperr.ErrVersionConflict
		}
		return current, nil
	}
	if err != nil {
		return nil, err
	}

	s.resolved(ctx, models.OrderCreated, expired, models.EventOrderExpired)
	return expired, nil
}

func (s *OrderService) load(ctx context.Context, orderID string) (*models.Order, error) {
	o, err := s.store.GetOrder(ctx, orderID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.ErrOrderNotFound
	}
	return o, err
}

func (s *OrderService) resolved(ctx context.Context, from models.OrderStatus, o *models.Order, typ models.EventType) {
	slog.Info("Order transitioned",
		"order_id", o.ID,
		"from", string(from),
		"to", string(o.Status),
		"reason", string(o.CancelReason),
	)
	monitoring.TrackTransition(o)
	s.notify(ctx, typ, o)
	if s.schedule != nil {
		if err := s.schedule.Unschedule(ctx, o.ID); err != nil {
			slog.Warn("Failed to unschedule expiration", "error", err, "order_id", o.ID)
		}
	}
}

func (s *OrderService) notify(ctx context.Context, typ models.EventType, o *models.Order) {
	if s.notifier == nil {
		return
	}
	s.notifier.Notify(ctx, models.OrderEvent(typ, o, s.clock.Now()))
}

// checkPayable maps a settled order's state to the payment failure it
// implies.
func checkPayable(o *models.Order) error {
	switch {
	case o.Status == models.OrderComplete:
		return apperr.ErrAlreadyPaid
	case o.Status == models.OrderCancelled && o.CancelReason == models.ReasonExpired:
		return apperr.ErrOrderExpired
	case o.Status == models.OrderCancelled:
		return apperr.ErrAlreadyTerminal
	}
	return nil
}
