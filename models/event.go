package models

import (
	"time"
)

type EventType string

const (
	EventOrderCreated   EventType = "order:created"
	EventOrderCancelled EventType = "order:cancelled"
	EventOrderExpired   EventType = "expiration:complete"
	EventPaymentCreated EventType = "payment:created"
	EventTicketUpdated  EventType = "ticket:updated"
)

// Event is published after a committed state change.
type Event struct {
	Type      EventType   `json:"type"`
	OrderID   string      `json:"orderId,omitempty"`
	TicketID  string      `json:"ticketId"`
	UserID    string      `json:"userId"`
	Status    OrderStatus `json:"status,omitempty"`
	Version   int64       `json:"version"`
	ExpiresAt *time.Time  `json:"expiresAt,omitempty"`
	At        time.Time   `json:"at"`
}

func OrderEvent(typ EventType, o *Order, at time.Time) Event {
	e := Event{
		Type:     typ,
		OrderID:  o.ID,
		TicketID: o.Ticket.ID,
		UserID:   o.BuyerID,
		Status:   o.Status,
		Version:  o.Version,
		At:       at,
	}
	if o.Status == OrderCreated {
		exp := o.ExpiresAt
		e.ExpiresAt = &exp
	}
	return e
}
