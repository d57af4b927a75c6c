package testsupport

import (
	"sync"
	"time"

	"github.com/naver-ai/elmi-monorepo/internal/sampler"
)

// ManualClock hands out tickers that only fire when Tick is called.
type ManualClock struct {
	mu      sync.Mutex
	tickers []*ManualTicker
}

// ManualTicker is a ticker driven by ManualClock.
type ManualTicker struct {
	c       chan time.Time
	mu      sync.Mutex
	stopped bool
}

func (t *ManualTicker) C() <-chan time.Time { return t.c }

func (t *ManualTicker) Stop() {
	t.mu.Lock()
	t.stopped = true
	t.mu.Unlock()
}

// Stopped reports whether Stop was called.
func (t *ManualTicker) Stopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}

func (c *ManualClock) NewTicker(time.Duration) sampler.Ticker {
	t := &ManualTicker{c: make(chan time.Time)}
	c.mu.Lock()
	c.tickers = append(c.tickers, t)
	c.mu.Unlock()
	return t
}

// Tickers returns every ticker created so far.
func (c *ManualClock) Tickers() []*ManualTicker {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*ManualTicker(nil), c.tickers...)
}

// Tick fires the newest live ticker and reports whether a loop received
// the tick within a short grace period.
func (c *ManualClock) Tick() bool {
	c.mu.Lock()
	var t *ManualTicker
	for i := len(c.tickers) - 1; i >= 0; i-- {
		if !c.tickers[i].Stopped() {
			t = c.tickers[i]
			break
		}
	}
	c.mu.Unlock()
	if t == nil {
		return false
	}
	select {
	case t.c <- time.Now():
		return true
	case <-time.After(100 * time.Millisecond):
		return false
	}
}
