package models

import (
	"time"
)

type OrderStatus string

const (
	OrderCreated   OrderStatus = "created"
	OrderCancelled OrderStatus = "cancelled"
	OrderComplete  OrderStatus = "complete"
)

func (s OrderStatus) IsTerminal() bool {
	return s == OrderCancelled || s == OrderComplete
}

type CancelReason string

const (
	ReasonNone    CancelReason = ""
	ReasonBuyer   CancelReason = "buyer"
	ReasonExpired CancelReason = "expired"
)

type TicketSnapshot struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Price int64  `json:"price"`
}

type Order struct {
	ID           string         `json:"id"`
	BuyerID      string         `json:"userId"`
	Ticket       TicketSnapshot `json:"ticket"`
	Status       OrderStatus    `json:"status"`
	CancelReason CancelReason   `json:"cancelReason,omitempty"`
	ExpiresAt    time.Time      `json:"expiresAt"`
	Version      int64          `json:"version"`
	CreatedAt    time.Time      `json:"createdAt"`
	UpdatedAt    time.Time      `json:"updatedAt"`
}

// IsDue reports whether a created order has reached its deadline.
func (o *Order) IsDue(now time.Time) bool {
	return o.Status == OrderCreated && !now.Before(o.ExpiresAt)
}

// Remaining is the time left before expiry, never negative.
func (o *Order) Remaining(now time.Time) time.Duration {
	if o.Status != OrderCreated {
		return 0
	}
	d := o.ExpiresAt.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// CanTransition reports whether from -> to is a legal lifecycle move.
// Nothing ever returns to created.
func CanTransition(from, to OrderStatus) bool {
	return from == OrderCreated && to.IsTerminal()
}
