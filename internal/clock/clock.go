package clock

import (
	"sync"
	"time"
)

// Source is the single time port consulted by lazy expiry (internal/store),
// active eviction (internal/ttlsweep) and the hot-key rate windows
// (internal/adaptive). Production code wires Wall; tests and the simulator
// wire Virtual.
type Source interface {
	// NowMillis returns the current time in virtual milliseconds since the
	// source's epoch. Strictly non-decreasing for a given Source instance.
	NowMillis() uint64

	// Sleep blocks the calling goroutine for d, honoring the source's notion
	// of time (Wall sleeps for real, Virtual returns once advanced past it).
	Sleep(d time.Duration)

	// Interval returns a channel that receives a tick roughly every period,
	// analogous to time.Ticker but satisfied by the virtual clock in tests.
	Interval(period time.Duration) Ticker
}

// Ticker is the minimal surface of time.Ticker needed by the periodic
// tasks, so Virtual can hand out a fake one.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// Wall is the production Source backed by the real wall clock.
type Wall struct{}

// NewWall returns the production time source.
func NewWall() Wall { return Wall{} }

// NowMillis returns time.Now() in Unix milliseconds.
func (Wall) NowMillis() uint64 {
	return uint64(time.Now().UnixMilli())
}

// Sleep delegates to time.Sleep.
func (Wall) Sleep(d time.Duration) { time.Sleep(d) }

// Interval wraps time.NewTicker.
func (Wall) Interval(period time.Duration) Ticker {
	return &wallTicker{t: time.NewTicker(period)}
}

type wallTicker struct {
	t *time.Ticker
}

func (w *wallTicker) C() <-chan time.Time { return w.t.C }
func (w *wallTicker) Stop()               { w.t.Stop() }

// Virtual is a manually advanced clock for tests and the simulator. All
// methods are safe for concurrent use; Sleep and Interval block/tick based on
// the virtual "now" rather than the real clock.
type Virtual struct {
	mu       sync.Mutex
	nowMs    uint64
	waiters  []virtualWaiter
	tickers  []*virtualTicker
}

type virtualWaiter struct {
	deadline uint64
	done     chan struct{}
}

// NewVirtual creates a virtual clock starting at the given millisecond value.
func NewVirtual(startMs uint64) *Virtual {
	return &Virtual{nowMs: startMs}
}

// NowMillis returns the current virtual time.
func (v *Virtual) NowMillis() uint64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.nowMs
}

// Advance moves the virtual clock forward by d, waking any Sleep callers and
// firing any Interval tickers whose next tick has elapsed.
func (v *Virtual) Advance(d time.Duration) {
	v.mu.Lock()
	target := v.nowMs + uint64(d.Milliseconds())
	v.nowMs = target

	var woken []chan struct{}
	remaining := v.waiters[:0]
	for _, w := range v.waiters {
		if w.deadline <= target {
			woken = append(woken, w.done)
		} else {
			remaining = append(remaining, w)
		}
	}
	v.waiters = remaining

	for _, t := range v.tickers {
		for t.next <= target {
			t.next += t.period
			select {
			case t.ch <- timeAt(target):
			default:
			}
		}
	}
	v.mu.Unlock()

	for _, done := range woken {
		close(done)
	}
}

// Sleep blocks until the virtual clock is advanced past d from now.
func (v *Virtual) Sleep(d time.Duration) {
	v.mu.Lock()
	deadline := v.nowMs + uint64(d.Milliseconds())
	if deadline <= v.nowMs {
		v.mu.Unlock()
		return
	}
	done := make(chan struct{})
	v.waiters = append(v.waiters, virtualWaiter{deadline: deadline, done: done})
	v.mu.Unlock()
	<-done
}

// Interval returns a Ticker driven by Advance rather than real time.
func (v *Virtual) Interval(period time.Duration) Ticker {
	v.mu.Lock()
	defer v.mu.Unlock()
	t := &virtualTicker{
		period: uint64(period.Milliseconds()),
		next:   v.nowMs + uint64(period.Milliseconds()),
		ch:     make(chan time.Time, 1),
	}
	v.tickers = append(v.tickers, t)
	return t
}

type virtualTicker struct {
	period uint64
	next   uint64
	ch     chan time.Time
}

func (t *virtualTicker) C() <-chan time.Time { return t.ch }
func (t *virtualTicker) Stop()               {}

func timeAt(ms uint64) time.Time {
	return time.UnixMilli(int64(ms))
}
