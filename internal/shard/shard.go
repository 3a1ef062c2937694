package shard

import (
	"context"
	"sync"
	"time"

	"github.com/dreamware/ridgecache/internal/clock"
	"github.com/dreamware/ridgecache/internal/metrics"
	"github.com/dreamware/ridgecache/internal/resp"
	"github.com/dreamware/ridgecache/internal/store"
)

// request is one mailbox entry: a command and the channel its reply goes
// back on. reply is always buffered (capacity 1) so the run loop never
// blocks handing a result back to a caller that gave up waiting on it.
type request struct {
	cmd   store.Command
	reply chan resp.Value
}

// sweepRequest is the mailbox entry internal/ttlsweep uses to run an active
// eviction pass on the actor goroutine, kept as its own message type rather
// than a synthetic store.Command so store.Executor never has to special-case
// a command that isn't part of the wire protocol.
type sweepRequest struct {
	minCount int
	fraction float64
	reply    chan int
}

// DeltaFunc is invoked by the run loop after every successfully applied
// mutating command, letting internal/replshard observe writes without the
// shard package importing the replication package (replshard wraps a Shard,
// so the dependency can only run one way). A nil DeltaFunc disables
// replication for this shard.
type DeltaFunc func(cmd store.Command, reply resp.Value)

// Shard is one partition's actor: an Engine (via its Executor) plus the
// mailbox that serializes every access to it. No field on Shard is safe to
// touch from any goroutine other than the one running Run, except through
// Submit/SweepNow, which hand off work through channels instead of sharing
// memory.
type Shard struct {
	ID       int
	executor *store.Executor
	clock    clock.Source
	metrics  metrics.Recorder
	onDelta  DeltaFunc

	mailbox chan request
	sweepCh chan sweepRequest
	applyCh chan applyRequest
	wg      sync.WaitGroup
}

// applyRequest lets code outside the package run an arbitrary function on
// the actor goroutine against the shard's Executor, used by
// internal/replshard to merge a remote delta without either package needing
// to know about the other's message types.
type applyRequest struct {
	fn   func(*store.Executor)
	done chan struct{}
}

// New creates a Shard with its own private Engine. rec may be nil
// (metrics.NoOp{} is substituted).
func New(id int, src clock.Source, rec metrics.Recorder) *Shard {
	if rec == nil {
		rec = metrics.NoOp{}
	}
	eng := store.NewEngine(src)
	return &Shard{
		ID:       id,
		executor: store.NewExecutor(eng, rec),
		clock:    src,
		metrics:  rec,
		mailbox:  make(chan request, 4096),
		sweepCh:  make(chan sweepRequest),
		applyCh:  make(chan applyRequest),
	}
}

// SetDeltaFunc installs the replication hook, invoked after every applied
// mutating command while still running on the actor goroutine, so it
// observes a consistent Engine state without any extra synchronization.
func (s *Shard) SetDeltaFunc(fn DeltaFunc) {
	s.onDelta = fn
}

// Executor exposes the shard's store.Executor for code that itself runs on
// the actor goroutine (internal/replshard's delta hook, which handle invokes
// synchronously). Calling this from any other goroutine is a
// bug — go through Submit instead.
func (s *Shard) Executor() *store.Executor {
	return s.executor
}

// Run executes the actor's receive loop until ctx is canceled. Callers start
// Run in its own goroutine and use Stop to wait for a clean shutdown.
func (s *Shard) Run(ctx context.Context) {
	s.wg.Add(1)
	defer s.wg.Done()

	for {
		select {
		case req := <-s.mailbox:
			s.handle(req)
		case sw := <-s.sweepCh:
			budget := int(float64(s.executor.Engine.Len()) * sw.fraction)
			if budget < sw.minCount {
				budget = sw.minCount
			}
			sw.reply <- s.executor.Engine.EvictExpired(budget)
		case ar := <-s.applyCh:
			ar.fn(s.executor)
			close(ar.done)
		case <-ctx.Done():
			s.drain()
			return
		}
	}
}

// drain replies to any requests still queued at shutdown with an error
// rather than leaving their callers blocked forever.
func (s *Shard) drain() {
	for {
		select {
		case req := <-s.mailbox:
			req.reply <- resp.Error("ERR shard shutting down")
		default:
			return
		}
	}
}

func (s *Shard) handle(req request) {
	start := s.clock.NowMillis()
	reply := s.executor.Execute(req.cmd)
	s.metrics.RecordCommand(req.cmd.Name, float64(s.clock.NowMillis()-start), reply.Kind != resp.KindError)

	if s.onDelta != nil && req.cmd.IsReplicated() && reply.Kind != resp.KindError {
		s.onDelta(req.cmd, reply)
	}

	req.reply <- reply
}

// Submit enqueues cmd and blocks for its reply, or returns ctx.Err() if ctx
// is canceled first (the command may still execute; Submit only stops
// waiting for its result).
func (s *Shard) Submit(ctx context.Context, cmd store.Command) (resp.Value, error) {
	req := request{cmd: cmd, reply: make(chan resp.Value, 1)}
	select {
	case s.mailbox <- req:
	case <-ctx.Done():
		return resp.Value{}, ctx.Err()
	}

	select {
	case reply := <-req.reply:
		return reply, nil
	case <-ctx.Done():
		return resp.Value{}, ctx.Err()
	}
}

// SweepNow runs one active-eviction pass on the actor goroutine and returns
// the number of keys removed, or ctx.Err() if canceled first. The scan
// budget is max(minCount, fraction*Engine.Len()); the sweeper's defaults
// are minCount=100, fraction=0.10 — 100 keys or 10% of the shard, whichever
// is larger.
func (s *Shard) SweepNow(ctx context.Context, minCount int, fraction float64) (int, error) {
	req := sweepRequest{minCount: minCount, fraction: fraction, reply: make(chan int, 1)}
	select {
	case s.sweepCh <- req:
	case <-ctx.Done():
		return 0, ctx.Err()
	}

	select {
	case n := <-req.reply:
		return n, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// Stop waits for Run's goroutine to exit. Callers must cancel the context
// passed to Run before calling Stop.
func (s *Shard) Stop() {
	s.wg.Wait()
}

// RunOnActor runs fn synchronously on the actor goroutine, giving fn
// exclusive access to the shard's Executor for its duration. Used by
// internal/replshard to apply a remote delta without racing the shard's own
// command processing.
func (s *Shard) RunOnActor(ctx context.Context, fn func(*store.Executor)) error {
	req := applyRequest{fn: fn, done: make(chan struct{})}
	select {
	case s.applyCh <- req:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-req.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Interval is a passthrough to the shard's clock source, used by
// internal/ttlsweep to build its ticker from the same time source the
// shard's lazy expiry checks against (so tests using a clock.Virtual see
// consistent behavior across both mechanisms).
func (s *Shard) Interval(period time.Duration) clock.Ticker {
	return s.clock.Interval(period)
}
