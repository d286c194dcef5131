package capture

import "time"

// DefaultFPS approximates a display refresh callback
const DefaultFPS = 30

// Ticker paces the scan loop
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// TickerFactory creates a ticker each time scanning starts
type TickerFactory func() Ticker

type intervalTicker struct {
	t *time.Ticker
}

func (it intervalTicker) C() <-chan time.Time { return it.t.C }

func (it intervalTicker) Stop() { it.t.Stop() }

// IntervalTicker ticks fps times per second. Like time.Ticker it drops ticks
// for a slow receiver instead of queueing them.
func IntervalTicker(fps int) TickerFactory {
	if fps <= 0 {
		fps = DefaultFPS
	}
	interval := time.Second / time.Duration(fps)
	return func() Ticker {
		return intervalTicker{t: time.NewTicker(interval)}
	}
}
