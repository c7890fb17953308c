package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"

	"ticket-market/internal/apperr"
	"ticket-market/internal/store"
	"ticket-market/models"
)

type TicketStore interface {
	CreateTicket(ctx context.Context, t *models.Ticket) error
	GetTicket(ctx context.Context, id string) (*models.Ticket, error)
	ListTickets(ctx context.Context) ([]*models.Ticket, error)
	UpdateTicket(ctx context.Context, t *models.Ticket, expectedVersion int64, now time.Time) error
}

type TicketInput struct {
	Title   string `json:"title"`
	Price   int64  `json:"price"`
	Version int64  `json:"version"`
}

func (in TicketInput) validate(requireVersion bool) error {
	err := validation.ValidateStruct(&in,
		validation.Field(&in.Title, validation.Required.Error("Title is required"), validation.Length(1, 200)),
		validation.Field(&in.Price, validation.Required.Error("Price must be greater than 0"), validation.Min(int64(1)).Error("Price must be greater than 0")),
		validation.Field(&in.Version, validation.When(requireVersion, validation.Required.Error("Version is required"))),
	)
	return apperr.FromValidation(err)
}

// TicketService manages listings. Tickets are only editable while no order
// holds them.
type TicketService struct {
	store  TicketStore
	orders *OrderService
}

func NewTicketService(st TicketStore, orders *OrderService) *TicketService {
	return &TicketService{store: st, orders: orders}
}

func (s *TicketService) Create(ctx context.Context, seller *models.User, in TicketInput) (*models.Ticket, error) {
	in.Title = strings.TrimSpace(in.Title)
	if err := in.validate(false); err != nil {
		return nil, err
	}

	now := s.orders.clock.Now()
	t := &models.Ticket{
		ID:        uuid.NewString(),
		Title:     in.Title,
		Price:     in.Price,
		SellerID:  seller.ID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.CreateTicket(ctx, t); err != nil {
		return nil, err
	}
	slog.Info("Ticket created", "ticket_id", t.ID, "seller_id", seller.ID, "price", t.Price)
	return t, nil
}

// Get returns the ticket, releasing a reservation whose order has expired.
func (s *TicketService) Get(ctx context.Context, id string) (*models.Ticket, error) {
	t, err := s.store.GetTicket(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.ErrTicketNotFound
	}
	if err != nil {
		return nil, err
	}
	return s.settle(ctx, t)
}

// List returns all tickets, or only the reservable ones.
func (s *TicketService) List(ctx context.Context, onlyAvailable bool) ([]*models.Ticket, error) {
	tickets, err := s.store.ListTickets(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*models.Ticket, 0, len(tickets))
	for _, t := range tickets {
		settled, err := s.settle(ctx, t)
		if err != nil {
			return nil, err
		}
		if onlyAvailable && settled.IsReserved() {
			continue
		}
		out = append(out, settled)
	}
	return out, nil
}

// Update edits title and price. in.Version must be the version the seller
// last saw; a stale version is reported, never retried.
func (s *TicketService) Update(ctx context.Context, actor *models.User, id string, in TicketInput) (*models.Ticket, error) {
	in.Title = strings.TrimSpace(in.Title)
	if err := in.validate(true); err != nil {
		return nil, err
	}

	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.SellerID != actor.ID {
		return nil, apperr.ErrNotSeller
	}
	if current.IsReserved() {
		return nil, apperr.ErrTicketReserved
	}

	edit := *current
	edit.Title = in.Title
	edit.Price = in.Price
	if err := s.store.UpdateTicket(ctx, &edit, in.Version, s.orders.clock.Now()); err != nil {
		if errors.Is(err, apperr.ErrVersionConflict) {
			slog.Info("Stale ticket update rejected", "ticket_id", id)
		}
		return nil, outcome(ctx, err)
	}
	if s.orders.notifier != nil {
		s.orders.notifier.Notify(ctx, models.Event{
			Type:     models.EventTicketUpdated,
			TicketID: edit.ID,
			UserID:   edit.SellerID,
			Version:  edit.Version,
			At:       edit.UpdatedAt,
		})
	}
	return &edit, nil
}

func (s *TicketService) settle(ctx context.Context, t *models.Ticket) (*models.Ticket, error) {
	if !t.IsReserved() {
		return t, nil
	}
	released, err := s.orders.releaseIfDue(ctx, *t.ReservedByOrderID)
	if err != nil {
		return nil, err
	}
	if !released {
		return t, nil
	}
	fresh, err := s.store.GetTicket(ctx, t.ID)
	if err != nil {
		return nil, err
	}
	return fresh, nil
}
