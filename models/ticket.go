package models

import (
	"time"
)

// Ticket is a listing put up by a seller. ReservedByOrderID is set exactly
// while an order for it is in the created state.
type Ticket struct {
	ID                string    `json:"id"`
	Title             string    `json:"title"`
	Price             int64     `json:"price"` // minor currency units
	SellerID          string    `json:"userId"`
	Version           int64     `json:"version"`
	ReservedByOrderID *string   `json:"orderId"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

func (t *Ticket) IsReserved() bool {
	return t.ReservedByOrderID != nil && *t.ReservedByOrderID != ""
}

// Snapshot freezes the fields an order keeps from the ticket at reservation.
func (t *Ticket) Snapshot() TicketSnapshot {
	return TicketSnapshot{ID: t.ID, Title: t.Title, Price: t.Price}
}

type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}
