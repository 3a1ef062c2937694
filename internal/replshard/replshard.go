package replshard

import (
	"context"
	"sync"

	"github.com/dreamware/ridgecache/internal/crdt"
	"github.com/dreamware/ridgecache/internal/deltasink"
	"github.com/dreamware/ridgecache/internal/resp"
	"github.com/dreamware/ridgecache/internal/shard"
	"github.com/dreamware/ridgecache/internal/store"
)

// ReplicaClock hands out this replica's Lamport stamps. A single ReplicaClock
// is shared by every shard belonging to one replica process: time must
// strictly increase per replica, not per shard.
type ReplicaClock struct {
	mu   sync.Mutex
	last crdt.Lamport
}

// NewReplicaClock creates a clock for the given replica, starting at time 0.
func NewReplicaClock(id crdt.ReplicaID) *ReplicaClock {
	return &ReplicaClock{last: crdt.Lamport{ReplicaID: id}}
}

// Tick stamps a local write, strictly advancing time.
func (c *ReplicaClock) Tick() crdt.Lamport {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.last = c.last.Tick()
	return c.last
}

// Observe folds a remote Lamport tuple into the clock (time becomes
// max(time, incoming.time)+1). mergeRemote calls it on every remote merge,
// whichever side wins, so later local writes stay ordered after it.
func (c *ReplicaClock) Observe(remote crdt.Lamport) crdt.Lamport {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.last = c.last.Observe(remote)
	return c.last
}

// ReplicatedShard wires one internal/shard.Shard into the replication layer:
// every applied mutation becomes a crdt.Delta pushed onto a sink, and remote
// deltas are merged back in via the shard's actor goroutine.
type ReplicatedShard struct {
	sh     *shard.Shard
	self   crdt.ReplicaID
	clock  *ReplicaClock
	sink   *deltasink.Sink
	causal bool

	// persist is the optional second delta consumer feeding the external
	// persistence worker. nil when persistence is disabled.
	persist *deltasink.Sink

	// meta tracks the replication Value (Lamport stamp, vector clock, payload)
	// last observed for each key. It is touched only from onLocalMutation and
	// from the function passed to RunOnActor in ApplyRemote, both of which
	// always run on sh's single actor goroutine, so no lock is needed here —
	// the same non-concurrency guarantee internal/store.Engine relies on.
	meta map[string]crdt.Value
}

// Wire attaches replication to sh: local mutations are stamped and pushed
// onto out, using clk for Lamport timestamps.
func Wire(sh *shard.Shard, self crdt.ReplicaID, clk *ReplicaClock, out *deltasink.Sink) *ReplicatedShard {
	rs := &ReplicatedShard{
		sh:    sh,
		self:  self,
		clock: clk,
		sink:  out,
		meta:  make(map[string]crdt.Value),
	}
	sh.SetDeltaFunc(rs.onLocalMutation)
	return rs
}

// SetCausal toggles causal mode: local writes additionally increment this
// replica's vector-clock slot, and merges fold remote vector clocks in. The
// vector clock is advisory metadata only — it never blocks a read.
func (rs *ReplicatedShard) SetCausal(enabled bool) {
	rs.causal = enabled
}

// SetPersistSink installs the optional second delta consumer feeding the
// external persistence worker. Pushes are best-effort, same as the gossip
// sink; a nil sink disables persistence for this shard.
func (rs *ReplicatedShard) SetPersistSink(s *deltasink.Sink) {
	rs.persist = s
}

// emit pushes d onto the gossip sink and, when configured, the persistence
// sink.
func (rs *ReplicatedShard) emit(d crdt.Delta) {
	rs.sink.Push(d)
	if rs.persist != nil {
		rs.persist.Push(d)
	}
}

// onLocalMutation is internal/shard.Shard's DeltaFunc hook: it runs
// synchronously on the actor goroutine immediately after a replicated
// command's effect has been applied, before the client's reply is sent, so
// reading the Engine here sees exactly the post-mutation state.
func (rs *ReplicatedShard) onLocalMutation(cmd store.Command, _ resp.Value) {
	for _, key := range cmd.Keys() {
		rs.recordLocal(key)
	}
}

// recordLocal snapshots key's current Engine state into a crdt.Value stamped
// with a fresh Lamport tick, updates rs.meta, and pushes the resulting delta
// onto the sink. A key absent from the Engine after a replicated mutation
// means the command deleted it (DEL, EXPIRE to the past, ...), so it is
// recorded as a tombstone rather than skipped — a tombstone is itself the
// delta that must propagate so the delete eventually wins over stale writes
// on other replicas.
func (rs *ReplicatedShard) recordLocal(key string) {
	eng := rs.sh.Executor().Engine
	lamport := rs.clock.Tick()

	var vclock crdt.VectorClock
	if rs.causal {
		vclock = rs.meta[key].VClock.Increment(rs.self)
	}

	val, ok := eng.Get(key)
	if !ok {
		tomb := crdt.Value{Tombstone: true, Lamport: lamport, VClock: vclock}
		rs.meta[key] = tomb
		rs.emit(crdt.Delta{Key: key, Value: tomb, OriginReplica: rs.self})
		return
	}

	payload, err := store.Encode(val)
	if err != nil {
		return
	}
	live := crdt.Value{Payload: payload, Lamport: lamport, VClock: vclock}
	if ms, hasTTL := eng.ExpireAtMs(key); hasTTL {
		live.ExpiryMs = &ms
	}
	rs.meta[key] = live
	rs.emit(crdt.Delta{Key: key, Value: live, OriginReplica: rs.self})
}

// ApplyRemote merges a delta received from another replica into this shard.
// The merge itself runs on sh's actor goroutine via RunOnActor so it is
// serialized against every local command the same way a client write would
// be.
func (rs *ReplicatedShard) ApplyRemote(ctx context.Context, delta crdt.Delta) error {
	return rs.sh.RunOnActor(ctx, func(ex *store.Executor) {
		rs.mergeRemote(ex, delta)
	})
}

// mergeRemote applies delta's LWW merge against whatever this replica last
// recorded for delta.Key, writing the winner back into both rs.meta and the
// Engine. Runs only on the actor goroutine, via ApplyRemote.
func (rs *ReplicatedShard) mergeRemote(ex *store.Executor, delta crdt.Delta) {
	current := rs.meta[delta.Key]
	merged := current.Merge(delta.Value)
	rs.meta[delta.Key] = merged
	rs.clock.Observe(delta.Value.Lamport)

	if merged.Tombstone {
		ex.Engine.Del(delta.Key)
		return
	}

	val, err := store.Decode(merged.Payload)
	if err != nil {
		return
	}
	if merged.ExpiryMs != nil {
		ex.Engine.SetReplicated(delta.Key, val, *merged.ExpiryMs, true)
	} else {
		ex.Engine.SetReplicated(delta.Key, val, 0, false)
	}
}
