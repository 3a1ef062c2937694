package gossip

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dreamware/ridgecache/internal/crdt"
	"github.com/dreamware/ridgecache/internal/metrics"
	"github.com/dreamware/ridgecache/internal/replshard"
	"github.com/dreamware/ridgecache/internal/ring"
	"github.com/dreamware/ridgecache/internal/topology"
)

// DefaultTickInterval is how often the actor drains its outbound queues and
// hands them to the transport.
const DefaultTickInterval = 100 * time.Millisecond

// Batch is one delivery to one peer: a snapshot of the epoch at drain time
// plus the deltas queued for that peer since the previous drain.
type Batch struct {
	Epoch     uint64
	Deltas    []crdt.Delta
	Heartbeat bool
}

// ShardIndexer resolves which shard owns a key, satisfied by
// internal/sharded.Router so the actor's inbound path doesn't need to
// reimplement key routing.
type ShardIndexer interface {
	IndexFor(key string) int
}

// Actor owns a replica's outbound gossip state: an epoch counter and one
// pending-delta queue per peer, plus routing received deltas back into the
// right shard's ReplicatedShard. All state is guarded by mu; messages
// are ordinary method calls rather than channels, since the actor has no
// blocking work of its own beyond what Run's tick does.
type Actor struct {
	mu     sync.Mutex
	epoch  uint64
	queues map[crdt.ReplicaID][]crdt.Delta
	ring   *ring.Ring

	self      crdt.ReplicaID
	selective bool
	peers     *topology.PeerSet
	shards    []*replshard.ReplicatedShard
	indexer   ShardIndexer
	metrics   metrics.Recorder

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New builds an Actor for replica self. peers supplies the membership list
// consulted when selective gossip has no router installed (or is disabled);
// shards/indexer let ApplyInbound route a received delta to the shard
// responsible for its key.
func New(self crdt.ReplicaID, peers *topology.PeerSet, shards []*replshard.ReplicatedShard, indexer ShardIndexer, rec metrics.Recorder) *Actor {
	if rec == nil {
		rec = metrics.NoOp{}
	}
	return &Actor{
		self:    self,
		queues:  make(map[crdt.ReplicaID][]crdt.Delta),
		peers:   peers,
		shards:  shards,
		indexer: indexer,
		metrics: rec,
	}
}

// SetRouter atomically installs (or clears, with nil) the hash ring used for
// selective targeting.
func (a *Actor) SetRouter(r *ring.Ring) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.ring = r
}

// SetSelective toggles whether QueueDeltas targets only a key's ring
// replicas (true) or every known peer (false, the default — full
// broadcast, matching a deployment with no ring installed yet).
func (a *Actor) SetSelective(enabled bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.selective = enabled
}

// QueueDeltas appends deltas to the outbound queue of every target peer. If
// selective gossip is enabled and a router is installed, the target set for
// each delta is ring.replicas(key, rf) minus self; otherwise every known
// peer is targeted.
func (a *Actor) QueueDeltas(deltas []crdt.Delta) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, d := range deltas {
		targets := a.targetsLocked(d.Key)
		for _, peer := range targets {
			a.queues[peer] = append(a.queues[peer], d)
		}
	}
}

func (a *Actor) targetsLocked(key string) []crdt.ReplicaID {
	if a.selective && a.ring != nil {
		return a.ring.ReplicasExcluding(key, 0, a.self)
	}
	var out []crdt.ReplicaID
	if a.peers != nil {
		for _, id := range a.peers.IDs() {
			if id != a.self {
				out = append(out, id)
			}
		}
	}
	return out
}

// QueueHeartbeat enqueues an empty, heartbeat-flagged batch marker for every
// known peer, so a replica with no recent writes still signals liveness.
func (a *Actor) QueueHeartbeat() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.peers == nil {
		return
	}
	for _, id := range a.peers.IDs() {
		if id == a.self {
			continue
		}
		if _, ok := a.queues[id]; !ok {
			a.queues[id] = nil
		}
	}
}

// AdvanceEpoch increments and returns the actor's epoch counter, emitted on
// every tick regardless of whether there is anything to send.
func (a *Actor) AdvanceEpoch() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.epoch++
	return a.epoch
}

// DrainOutbound returns the current per-peer batches and clears the queues,
// stamping each with the current epoch.
func (a *Actor) DrainOutbound() map[crdt.ReplicaID]Batch {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make(map[crdt.ReplicaID]Batch, len(a.queues))
	for peer, deltas := range a.queues {
		out[peer] = Batch{Epoch: a.epoch, Deltas: deltas, Heartbeat: len(deltas) == 0}
	}
	a.queues = make(map[crdt.ReplicaID][]crdt.Delta)
	return out
}

// ApplyInbound merges a delta received from the network into the shard
// responsible for its key, routing through internal/shard.Shard.RunOnActor
// so it never races a local command.
func (a *Actor) ApplyInbound(ctx context.Context, delta crdt.Delta) error {
	idx := a.indexer.IndexFor(delta.Key)
	return a.shards[idx].ApplyRemote(ctx, delta)
}

// Run starts the periodic tick that drains outbound batches and hands each
// one to t for delivery, until ctx is canceled.
func (a *Actor) Run(ctx context.Context, t Transport, tickInterval time.Duration) {
	if tickInterval <= 0 {
		tickInterval = DefaultTickInterval
	}
	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		ticker := time.NewTicker(tickInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				a.tick(ctx, t)
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (a *Actor) tick(ctx context.Context, t Transport) {
	a.AdvanceEpoch()
	batches := a.DrainOutbound()
	g, gctx := errgroup.WithContext(ctx)
	for peer, batch := range batches {
		peer, batch := peer, batch
		info, ok := a.peers.Get(peer)
		if !ok {
			continue
		}
		g.Go(func() error {
			if err := t.Send(gctx, info, batch); err != nil {
				a.metrics.Incr("gossip.send_error", map[string]string{"peer": string(peer)})
				// Transport failures are absorbed here: the batch's deltas go
				// back onto the queue so the next tick retries them. One slow
				// peer doesn't delay the others' sends.
				if len(batch.Deltas) > 0 {
					a.requeue(peer, batch.Deltas)
				}
			}
			return nil
		})
	}
	g.Wait()
}

func (a *Actor) requeue(peer crdt.ReplicaID, deltas []crdt.Delta) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.queues[peer] = append(deltas, a.queues[peer]...)
}

// Stop cancels Run's loop and waits for it to exit.
func (a *Actor) Stop() {
	if a.cancel != nil {
		a.cancel()
	}
	a.wg.Wait()
}
