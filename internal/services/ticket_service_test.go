package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ticket-market/internal/apperr"
	"ticket-market/models"
)

func TestCreateTicketValidation(t *testing.T) {
	f := newFixture(t)

	_, err := f.tickets.Create(context.Background(), f.seller, TicketInput{Title: "  ", Price: 0})
	require.Error(t, err)
	var appErr *apperr.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperr.KindValidation, appErr.Kind)
	assert.Len(t, appErr.Fields, 2)
}

func TestUpdateTicket(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tk := f.ticket(t, 5000)

	updated, err := f.tickets.Update(ctx, f.seller, tk.ID, TicketInput{Title: "Front row", Price: 9000, Version: tk.Version})
	require.NoError(t, err)
	assert.Equal(t, int64(9000), updated.Price)
	assert.Equal(t, tk.Version+1, updated.Version)

	_, err = f.tickets.Update(ctx, f.seller, tk.ID, TicketInput{Title: "Stale", Price: 1, Version: tk.Version})
	assert.ErrorIs(t, err, apperr.ErrVersionConflict)

	_, err = f.tickets.Update(ctx, f.buyer, tk.ID, TicketInput{Title: "Mine", Price: 1, Version: updated.Version})
	assert.ErrorIs(t, err, apperr.ErrNotSeller)
}

func TestUpdateReservedTicketRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tk := f.ticket(t, 5000)
	o, err := f.orders.Reserve(ctx, f.buyer, tk.ID)
	require.NoError(t, err)

	current, err := f.tickets.Get(ctx, tk.ID)
	require.NoError(t, err)
	_, err = f.tickets.Update(ctx, f.seller, tk.ID, TicketInput{Title: "New", Price: 1, Version: current.Version})
	assert.ErrorIs(t, err, apperr.ErrTicketReserved)

	// The order keeps the price it was reserved at.
	got, err := f.orders.Get(ctx, f.buyer, o.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(5000), got.Ticket.Price)
}

func TestTicketReadsReleaseExpiredReservation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tk := f.ticket(t, 5000)
	_, err := f.orders.Reserve(ctx, f.buyer, tk.ID)
	require.NoError(t, err)

	available, err := f.tickets.List(ctx, true)
	require.NoError(t, err)
	assert.Empty(t, available)

	f.clock.Advance(15 * time.Minute)

	got, err := f.tickets.Get(ctx, tk.ID)
	require.NoError(t, err)
	assert.False(t, got.IsReserved())

	available, err = f.tickets.List(ctx, true)
	require.NoError(t, err)
	require.Len(t, available, 1)
	assert.Equal(t, tk.ID, available[0].ID)

	_, err = f.tickets.Get(ctx, "missing")
	assert.ErrorIs(t, err, apperr.ErrTicketNotFound)
}

func TestListAvailableSettlesExpiredHolders(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	held := f.ticket(t, 5000)
	free := f.ticket(t, 2500)
	_, err := f.orders.Reserve(ctx, f.buyer, held.ID)
	require.NoError(t, err)

	all, err := f.tickets.List(ctx, false)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	available, err := f.tickets.List(ctx, true)
	require.NoError(t, err)
	require.Len(t, available, 1)
	assert.Equal(t, free.ID, available[0].ID)

	f.clock.Advance(15 * time.Minute)
	available, err = f.tickets.List(ctx, true)
	require.NoError(t, err)
	assert.Len(t, available, 2)
}

func TestTicketPriceEditDoesNotMoveOrderSnapshot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tk := f.ticket(t, 5000)
	o, err := f.orders.Reserve(ctx, f.buyer, tk.ID)
	require.NoError(t, err)
	_, err = f.orders.Cancel(ctx, f.buyer, o.ID)
	require.NoError(t, err)

	current, err := f.tickets.Get(ctx, tk.ID)
	require.NoError(t, err)
	_, err = f.tickets.Update(ctx, f.seller, tk.ID, TicketInput{Title: "Concert", Price: 12000, Version: current.Version})
	require.NoError(t, err)

	got, err := f.orders.Get(ctx, f.buyer, o.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(5000), got.Ticket.Price)
	assert.Equal(t, models.OrderCancelled, got.Status)
}
