package services

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"ticket-market/internal/clock"
	"ticket-market/internal/payments"
	"ticket-market/internal/store"
	"ticket-market/migrations"
	"ticket-market/models"
)

var epoch = time.Date(2026, 4, 1, 18, 0, 0, 0, time.UTC)

type recordingNotifier struct {
	mu     sync.Mutex
	events []models.Event
}

func (n *recordingNotifier) Notify(_ context.Context, e models.Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, e)
}

func (n *recordingNotifier) types() []models.EventType {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]models.EventType, 0, len(n.events))
	for _, e := range n.events {
		out = append(out, e.Type)
	}
	return out
}

type recordingScheduler struct {
	mu        sync.Mutex
	scheduled map[string]time.Time
}

func (s *recordingScheduler) Schedule(_ context.Context, orderID string, dueAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scheduled[orderID] = dueAt
	return nil
}

func (s *recordingScheduler) Unschedule(_ context.Context, orderID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.scheduled, orderID)
	return nil
}

type fixture struct {
	store    *store.Store
	clock    *clock.Fake
	orders   *OrderService
	tickets  *TicketService
	payments *PaymentService
	gateway  *payments.Fake
	notifier *recordingNotifier
	schedule *recordingScheduler
	seller   *models.User
	buyer    *models.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st, err := store.Open(store.DriverSQLite, filepath.Join(t.TempDir(), "services.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	_, err = migrations.Run(context.Background(), st.DB())
	require.NoError(t, err)

	clk := clock.NewFake(epoch)
	notifier := &recordingNotifier{}
	schedule := &recordingScheduler{scheduled: map[string]time.Time{}}
	orders := NewOrderService(st,
		WithOrderClock(clk),
		WithNotifier(notifier),
		WithScheduler(schedule),
	)
	gateway := payments.NewFake(clk)

	return &fixture{
		store:    st,
		clock:    clk,
		orders:   orders,
		tickets:  NewTicketService(st, orders),
		payments: NewPaymentService(orders, gateway, "usd"),
		gateway:  gateway,
		notifier: notifier,
		schedule: schedule,
		seller:   &models.User{ID: "seller-" + uuid.NewString(), Email: "seller@example.com"},
		buyer:    &models.User{ID: "buyer-" + uuid.NewString(), Email: "buyer@example.com"},
	}
}

func (f *fixture) ticket(t *testing.T, price int64) *models.Ticket {
	t.Helper()
	tk, err := f.tickets.Create(context.Background(), f.seller, TicketInput{Title: "Concert", Price: price})
	require.NoError(t, err)
	return tk
}
