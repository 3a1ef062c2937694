package ttlsweep

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dreamware/ridgecache/internal/metrics"
	"github.com/dreamware/ridgecache/internal/shard"
)

// DefaultInterval is how often each shard's active-eviction pass runs absent
// an explicit override (REDIS_SWEEP_INTERVAL_MS).
const DefaultInterval = 1 * time.Second

// DefaultMinCount and DefaultFraction give the sampled-scan budget
// max(DefaultMinCount, DefaultFraction*shardLen), bounding pause time on
// large shards while guaranteeing progress on small ones.
const (
	DefaultMinCount = 100
	DefaultFraction = 0.10
)

// Sweeper runs one ticking loop per shard, each calling shard.Shard.SweepNow
// on its own cadence. It mirrors internal/coordinator's HealthMonitor: a
// clock-driven ticker inside a context/WaitGroup-guarded goroutine per unit
// of work, started with Start and stopped with Stop.
type Sweeper struct {
	shards   []*shard.Shard
	interval time.Duration
	minCount int
	fraction float64
	metrics  metrics.Recorder
	log      *logrus.Entry

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New builds a Sweeper over shards. rec may be nil.
func New(shards []*shard.Shard, interval time.Duration, rec metrics.Recorder) *Sweeper {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if rec == nil {
		rec = metrics.NoOp{}
	}
	return &Sweeper{
		shards:   shards,
		interval: interval,
		minCount: DefaultMinCount,
		fraction: DefaultFraction,
		metrics:  rec,
		log:      logrus.WithField("component", "ttlsweep"),
	}
}

// Start launches one background goroutine per shard. It returns immediately;
// call Stop to request shutdown and wait for every goroutine to exit.
func (s *Sweeper) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	for _, sh := range s.shards {
		sh := sh
		s.wg.Add(1)
		go s.run(ctx, sh)
	}
	s.log.WithField("shards", len(s.shards)).WithField("interval", s.interval).Info("ttl sweeper started")
}

func (s *Sweeper) run(ctx context.Context, sh *shard.Shard) {
	defer s.wg.Done()
	ticker := sh.Interval(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C():
			n, err := sh.SweepNow(ctx, s.minCount, s.fraction)
			if err != nil {
				return
			}
			if n > 0 {
				s.metrics.RecordTTLEviction(n)
				s.log.WithField("shard", sh.ID).WithField("evicted", n).Debug("swept expired keys")
			}
		case <-ctx.Done():
			return
		}
	}
}

// Stop cancels every sweep goroutine and waits for them to exit.
func (s *Sweeper) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}
