package adaptive

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dreamware/ridgecache/internal/clock"
)

const (
	// DefaultWindow is the sliding window over which a key's access rate is
	// measured.
	DefaultWindow = 10 * time.Second
	// DefaultRecalcInterval is how often hot/cold status is recomputed.
	DefaultRecalcInterval = time.Second
	// DefaultThreshold is the accesses-per-second rate at or above which a
	// key is considered hot.
	DefaultThreshold = 50.0
	// DefaultBaseRF is the replication factor for cold keys.
	DefaultBaseRF = 3
	// DefaultHotRF is the replication factor for hot keys.
	DefaultHotRF = 5
)

// Config parameterizes a Controller. Zero-value fields fall back to the
// package defaults in New.
type Config struct {
	Window         time.Duration
	RecalcInterval time.Duration
	Threshold      float64
	BaseRF         int
	HotRF          int
}

func (c Config) withDefaults() Config {
	if c.Window <= 0 {
		c.Window = DefaultWindow
	}
	if c.RecalcInterval <= 0 {
		c.RecalcInterval = DefaultRecalcInterval
	}
	if c.Threshold <= 0 {
		c.Threshold = DefaultThreshold
	}
	if c.BaseRF <= 0 {
		c.BaseRF = DefaultBaseRF
	}
	if c.HotRF <= 0 {
		c.HotRF = DefaultHotRF
	}
	return c
}

// keyWindow is one key's sliding-window bucket ring: buckets[pos] counts
// accesses since the last rotate, and every other slot holds the count of
// one earlier RecalcInterval tick.
type keyWindow struct {
	buckets []uint64
	pos     int
	hot     bool
}

func newKeyWindow(buckets int) *keyWindow {
	return &keyWindow{buckets: make([]uint64, buckets)}
}

func (w *keyWindow) sum() uint64 {
	var total uint64
	for _, b := range w.buckets {
		total += b
	}
	return total
}

// rotate advances to a fresh bucket, returning the rate observed over the
// full window (accesses summed across all buckets, divided by the window's
// duration in seconds).
func (w *keyWindow) rotate(windowSeconds float64) float64 {
	rate := float64(w.sum()) / windowSeconds
	w.pos = (w.pos + 1) % len(w.buckets)
	w.buckets[w.pos] = 0
	return rate
}

func (w *keyWindow) record() {
	w.buckets[w.pos]++
}

// Controller maintains per-key access counters and the current hot-key set.
// RecordAccess and RFOf are safe for concurrent use; Recalculate runs only
// from Start's own goroutine.
type Controller struct {
	cfg     Config
	clock   clock.Source
	log     *logrus.Entry
	buckets int

	mu      sync.Mutex
	windows map[string]*keyWindow

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New builds a Controller. src drives both the recalculation ticker and
// (indirectly) the window's notion of elapsed time.
func New(cfg Config, src clock.Source, log *logrus.Entry) *Controller {
	cfg = cfg.withDefaults()
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	buckets := int(cfg.Window / cfg.RecalcInterval)
	if buckets < 1 {
		buckets = 1
	}
	return &Controller{
		cfg:     cfg,
		clock:   src,
		log:     log.WithField("component", "adaptive"),
		buckets: buckets,
		windows: make(map[string]*keyWindow),
	}
}

// RecordAccess registers one access to key, to be counted in the current
// recalculation bucket.
func (c *Controller) RecordAccess(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	w, ok := c.windows[key]
	if !ok {
		w = newKeyWindow(c.buckets)
		c.windows[key] = w
	}
	w.record()
}

// RFOf implements internal/ring.RFProvider: hot keys get cfg.HotRF, every
// other key (including ones never observed) gets cfg.BaseRF.
func (c *Controller) RFOf(key string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if w, ok := c.windows[key]; ok && w.hot {
		return c.cfg.HotRF
	}
	return c.cfg.BaseRF
}

// IsHot reports whether key is currently in the hot set, for tests and
// diagnostics.
func (c *Controller) IsHot(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	w, ok := c.windows[key]
	return ok && w.hot
}

// Recalculate rotates every tracked key's window and updates its hot/cold
// state, returning the sets of keys newly promoted and newly demoted. Keys
// that go a full window with zero accesses are dropped entirely.
func (c *Controller) Recalculate() (promoted, demoted []string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	windowSeconds := c.cfg.Window.Seconds()
	for key, w := range c.windows {
		rate := w.rotate(windowSeconds)
		switch {
		case !w.hot && rate >= c.cfg.Threshold:
			w.hot = true
			promoted = append(promoted, key)
		case w.hot && rate < c.cfg.Threshold:
			w.hot = false
			demoted = append(demoted, key)
		}
		if !w.hot && w.sum() == 0 {
			delete(c.windows, key)
		}
	}
	return promoted, demoted
}

// Start runs Recalculate on cfg.RecalcInterval until ctx is canceled.
func (c *Controller) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ticker := c.clock.Interval(c.cfg.RecalcInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C():
				promoted, demoted := c.Recalculate()
				if len(promoted) > 0 {
					c.log.WithField("keys", len(promoted)).Debug("promoted hot keys")
				}
				if len(demoted) > 0 {
					c.log.WithField("keys", len(demoted)).Debug("demoted hot keys")
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop cancels Start's loop and waits for it to exit.
func (c *Controller) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()
}
