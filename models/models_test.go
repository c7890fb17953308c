package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestOrder_IsDue(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	o := Order{Status: OrderCreated, ExpiresAt: now.Add(15 * time.Minute)}

	assert.False(t, o.IsDue(now))
	assert.False(t, o.IsDue(now.Add(15*time.Minute-time.Nanosecond)))
	assert.True(t, o.IsDue(now.Add(15*time.Minute)))

	o.Status = OrderComplete
	assert.False(t, o.IsDue(now.Add(time.Hour)))
}

func TestOrder_Remaining(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	o := Order{Status: OrderCreated, ExpiresAt: now.Add(900 * time.Second)}

	assert.Equal(t, 900*time.Second, o.Remaining(now))
	assert.Equal(t, time.Duration(0), o.Remaining(now.Add(time.Hour)))

	o.Status = OrderCancelled
	assert.Equal(t, time.Duration(0), o.Remaining(now))
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to OrderStatus
		want     bool
	}{
		{OrderCreated, OrderCancelled, true},
		{OrderCreated, OrderComplete, true},
		{OrderCreated, OrderCreated, false},
		{OrderCancelled, OrderCreated, false},
		{OrderComplete, OrderCancelled, false},
		{OrderCancelled, OrderComplete, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CanTransition(tt.from, tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestTicket_Snapshot(t *testing.T) {
	orderID := "ord-1"
	tk := Ticket{ID: "t-1", Title: "Concert", Price: 5000, ReservedByOrderID: &orderID}

	assert.True(t, tk.IsReserved())
	assert.Equal(t, TicketSnapshot{ID: "t-1", Title: "Concert", Price: 5000}, tk.Snapshot())

	tk.ReservedByOrderID = nil
	assert.False(t, tk.IsReserved())
}

func TestOrderEvent_CarriesExpiryOnlyWhileCreated(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	o := &Order{ID: "o", BuyerID: "u", Ticket: TicketSnapshot{ID: "t"}, Status: OrderCreated, ExpiresAt: now.Add(time.Minute), Version: 1}

	e := OrderEvent(EventOrderCreated, o, now)
	if assert.NotNil(t, e.ExpiresAt) {
		assert.Equal(t, o.ExpiresAt, *e.ExpiresAt)
	}

	o.Status = OrderCancelled
	e = OrderEvent(EventOrderCancelled, o, now)
	assert.Nil(t, e.ExpiresAt)
	assert.Equal(t, "u", e.UserID)
}
