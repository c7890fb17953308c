// Package clock abstracts time so expiration logic can be driven
// deterministically in tests.
package clock

import "time"

// Clock is the source of "now" and of repeating ticks.
type Clock interface {
	Now() time.Time
	NewTicker(d time.Duration) *Ticker
}

// Ticker delivers ticks on C until Stop is called.
type Ticker struct {
	C        <-chan time.Time
	stopFunc func()
}

// Stop turns off the ticker. No more ticks are sent after Stop returns.
func (t *Ticker) Stop() {
	if t.stopFunc != nil {
		t.stopFunc()
	}
}

type realClock struct{}

// Real returns a Clock backed by the time package. Now is in UTC.
func Real() Clock {
	return realClock{}
}

func (realClock) Now() time.Time {
	return time.Now().UTC()
}

func (realClock) NewTicker(d time.Duration) *Ticker {
	t := time.NewTicker(d)
	return &Ticker{C: t.C, stopFunc: t.Stop}
}
