// Package expiration keeps reservations honest in time: a countdown for
// interactive watchers and an eager sweep for the server.
package expiration

import (
	"context"
	"errors"
	"sync"
	"time"

	"ticket-market/internal/clock"
	"ticket-market/models"
)

var ErrAlreadyStarted = errors.New("expiration: countdown already started")

// refetchBackoff spaces out refetches while the server still reports a
// created order past its local deadline.
const refetchBackoff = 5 * time.Second

// Fetcher reloads the order from the authoritative source.
type Fetcher func(ctx context.Context) (*models.Order, error)

// Tick is one update of the countdown.
type Tick struct {
	OrderID   string
	Remaining time.Duration
	// Expired is set once the local clock passes the deadline, before the
	// server has confirmed it.
	Expired bool
	// Final carries the server's view once the order is known to be
	// terminal. No ticks follow a final one.
	Final *models.Order
	// Err is set when the refetch after expiry failed.
	Err error
}

// Countdown ticks once a second toward an order's deadline. The local
// clock is only a hint: when it says the deadline passed, Countdown shows
// the expired state and refetches the order once to learn the truth.
//
// A Countdown has a single owner, who must call Stop when the order is no
// longer of interest.
type Countdown struct {
	clock  clock.Clock
	fetch  Fetcher
	onTick func(Tick)

	mu      sync.Mutex
	order   *models.Order
	cancel  context.CancelFunc
	done    chan struct{}
	started bool
}

func NewCountdown(clk clock.Clock, order *models.Order, fetch Fetcher, onTick func(Tick)) *Countdown {
	return &Countdown{
		clock:  clk,
		fetch:  fetch,
		onTick: onTick,
		order:  order,
		done:   make(chan struct{}),
	}
}

// Start launches the tick loop. It returns immediately.
func (c *Countdown) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return ErrAlreadyStarted
	}
	c.started = true

	ctx, c.cancel = context.WithCancel(ctx)
	go c.run(ctx)
	return nil
}

// Stop tears the loop down and waits for it to exit. Safe to call more
// than once and before Start.
func (c *Countdown) Stop() {
	c.mu.Lock()
	if !c.started {
		c.started = true
		close(c.done)
		c.mu.Unlock()
		return
	}
	cancel := c.cancel
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	<-c.done
}

// Done is closed when the loop has exited.
func (c *Countdown) Done() <-chan struct{} {
	return c.done
}

// Order returns the latest known copy of the order.
func (c *Countdown) Order() *models.Order {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order
}

type fetchResult struct {
	order *models.Order
	err   error
}

func (c *Countdown) run(ctx context.Context) {
	defer close(c.done)

	order := c.Order()
	if order.Status != models.OrderCreated {
		c.onTick(Tick{OrderID: order.ID, Expired: order.CancelReason == models.ReasonExpired, Final: order})
		return
	}

	ticker := c.clock.NewTicker(time.Second)
	defer ticker.Stop()

	var (
		expiredShown bool
		nextFetch    time.Time
		refetched    chan fetchResult
	)
	check := func() {
		now := c.clock.Now()
		remaining := order.ExpiresAt.Sub(now)
		if remaining > 0 {
			c.onTick(Tick{OrderID: order.ID, Remaining: remaining.Round(time.Second)})
			return
		}
		if !expiredShown {
			expiredShown = true
			c.onTick(Tick{OrderID: order.ID, Expired: true})
		}
		if refetched != nil || now.Before(nextFetch) {
			return
		}

		refetched = make(chan fetchResult, 1)
		go func(out chan<- fetchResult) {
			o, err := c.fetch(ctx)
			out <- fetchResult{order: o, err: err}
		}(refetched)
	}

	check()
	for {
		select {
		case <-ctx.Done():
			return

		case <-ticker.C:
			check()

		case res := <-refetched:
			refetched = nil
			if res.err != nil {
				if ctx.Err() != nil {
					return
				}
				c.onTick(Tick{OrderID: order.ID, Expired: true, Err: res.err})
				return
			}

			c.mu.Lock()
			c.order = res.order
			c.mu.Unlock()

			if res.order.Status == models.OrderCreated {
				// the server has not reached the deadline yet
				order = res.order
				if order.ExpiresAt.After(c.clock.Now()) {
					expiredShown = false
				} else {
					nextFetch = c.clock.Now().Add(refetchBackoff)
				}
				continue
			}
			c.onTick(Tick{OrderID: order.ID, Expired: res.order.Status != models.OrderComplete, Final: res.order})
			return
		}
	}
}
