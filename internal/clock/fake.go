package clock

import (
	"sort"
	"sync"
	"time"
)

// Fake is a Clock whose time moves only when Advance or Set is called.
// Safe for concurrent use.
type Fake struct {
	mu      sync.Mutex
	current time.Time
	tickers []*fakeTicker
	changed *sync.Cond
}

type fakeTicker struct {
	deadline time.Time
	interval time.Duration
	ch       chan time.Time
	stopped  bool
}

// NewFake returns a Fake clock reading initial.
func NewFake(initial time.Time) *Fake {
	f := &Fake{current: initial.UTC()}
	f.changed = sync.NewCond(&f.mu)
	return f
}

func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current
}

// NewTicker panics on a non-positive interval, like time.NewTicker.
func (f *Fake) NewTicker(d time.Duration) *Ticker {
	if d <= 0 {
		panic("clock: non-positive interval for NewTicker")
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	ft := &fakeTicker{
		deadline: f.current.Add(d),
		interval: d,
		ch:       make(chan time.Time, 1),
	}
	f.tickers = append(f.tickers, ft)
	f.changed.Broadcast()

	return &Ticker{
		C: ft.ch,
		stopFunc: func() {
			f.mu.Lock()
			defer f.mu.Unlock()
			ft.stopped = true
			f.changed.Broadcast()
		},
	}
}

// Advance moves the clock forward by d, firing every ticker deadline that
// falls inside the window in deadline order. Sends are non-blocking: a
// ticker whose buffer is full drops the tick, as time.Ticker does.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()

	target := f.current.Add(d)
	for {
		live := f.tickers[:0]
		for _, t := range f.tickers {
			if !t.stopped {
				live = append(live, t)
			}
		}
		f.tickers = live

		sort.Slice(f.tickers, func(i, j int) bool {
			return f.tickers[i].deadline.Before(f.tickers[j].deadline)
		})
		if len(f.tickers) == 0 || f.tickers[0].deadline.After(target) {
			break
		}

		next := f.tickers[0]
		f.current = next.deadline
		select {
		case next.ch <- next.deadline:
		default:
		}
		next.deadline = next.deadline.Add(next.interval)
	}
	f.current = target
}

// Set jumps the clock to t without firing tickers, simulating a suspended
// process that wakes up late.
func (f *Fake) Set(t time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.current = t.UTC()
}

// WaitForTickers blocks until at least n tickers are active.
func (f *Fake) WaitForTickers(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for f.activeLocked() < n {
		f.changed.Wait()
	}
}

// ActiveTickers reports how many tickers have not been stopped.
func (f *Fake) ActiveTickers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.activeLocked()
}

func (f *Fake) activeLocked() int {
	n := 0
	for _, t := range f.tickers {
		if !t.stopped {
			n++
		}
	}
	return n
}
