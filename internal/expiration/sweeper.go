package expiration

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"ticket-market/internal/apperr"
	"ticket-market/internal/clock"
	"ticket-market/models"
	"ticket-market/monitoring"
)

const defaultBatch = 100

// Expirer applies the lazy-expiry transition to one order.
type Expirer interface {
	Expire(ctx context.Context, orderID string) (*models.Order, bool, error)
}

// Sweeper releases tickets held by overdue orders without waiting for a
// reader to notice. It applies the same transition a read would, so running
// it is never required for correctness.
type Sweeper struct {
	orders   Expirer
	sources  []Source
	clock    clock.Clock
	interval time.Duration
	batch    int
}

type SweeperOption func(*Sweeper)

func WithSweepClock(c clock.Clock) SweeperOption {
	return func(s *Sweeper) { s.clock = c }
}

func WithBatch(n int) SweeperOption {
	return func(s *Sweeper) {
		if n > 0 {
			s.batch = n
		}
	}
}

func NewSweeper(orders Expirer, interval time.Duration, sources []Source, opts ...SweeperOption) *Sweeper {
	s := &Sweeper{
		orders:   orders,
		sources:  sources,
		clock:    clock.Real(),
		interval: interval,
		batch:    defaultBatch,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run sweeps every interval until ctx is done.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := s.clock.NewTicker(s.interval)
	defer ticker.Stop()

	slog.Info("Expiration sweeper started", "interval", s.interval.String(), "sources", len(s.sources))
	for {
		select {
		case <-ctx.Done():
			slog.Info("Expiration sweeper stopped")
			return nil
		case <-ticker.C:
			if _, err := s.RunOnce(ctx); err != nil && ctx.Err() == nil {
				slog.Error("Expiration sweep failed", "error", err)
			}
		}
	}
}

// RunOnce drains every source once. An order seen by several sources is
// handled once.
func (s *Sweeper) RunOnce(ctx context.Context) (models.SweepResult, error) {
	res := models.SweepResult{RanAt: s.clock.Now()}
	seen := make(map[string]bool)

	var errs []error
	for _, src := range s.sources {
		due, err := src.Due(ctx, res.RanAt, s.batch)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		for _, entry := range due {
			if seen[entry.OrderID] {
				s.done(ctx, src, entry.OrderID)
				continue
			}
			seen[entry.OrderID] = true
			res.Scanned++
			s.sweep(ctx, src, entry, &res)
		}
	}

	monitoring.TrackSweep(res)
	if res.Expired > 0 || res.Failed > 0 {
		slog.Info("Expiration sweep finished",
			"scanned", res.Scanned,
			"expired", res.Expired,
			"skipped", res.Skipped,
			"failed", res.Failed,
		)
	}
	return res, errors.Join(errs...)
}

func (s *Sweeper) sweep(ctx context.Context, src Source, entry models.ScheduledExpiry, res *models.SweepResult) {
	o, expired, err := s.orders.Expire(ctx, entry.OrderID)
	switch {
	case errors.Is(err, apperr.ErrOrderNotFound):
		res.Skipped++
		s.done(ctx, src, entry.OrderID)
	case err != nil:
		res.Failed++
		slog.Warn("Failed to expire order", "error", err, "order_id", entry.OrderID)
	case expired:
		res.Expired++
		s.done(ctx, src, entry.OrderID)
	case o.Status.IsTerminal():
		res.Skipped++
		s.done(ctx, src, entry.OrderID)
	default:
		// not due by the store's reckoning yet; keep the entry
		res.Skipped++
	}
}

func (s *Sweeper) done(ctx context.Context, src Source, orderID string) {
	if err := src.Done(ctx, orderID); err != nil {
		slog.Warn("Failed to clear scheduled expiration", "error", err, "order_id", orderID)
	}
}
