package session

import (
	"time"
)

// Ticker is the countdown's clock source. The engine decrements one second
// per delivered tick, so the production implementation fires every second;
// tests drive a channel by hand.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// TickerFactory builds the ticker when the session begins. Construction is
// deferred so an engine that never passes the instructions gate never
// schedules anything.
type TickerFactory func() Ticker

type wallTicker struct {
	t *time.Ticker
}

func (w *wallTicker) C() <-chan time.Time { return w.t.C }
func (w *wallTicker) Stop()               { w.t.Stop() }

// WallClockTicker returns the production tick source, firing once a second.
func WallClockTicker() Ticker {
	return &wallTicker{t: time.NewTicker(time.Second)}
}
