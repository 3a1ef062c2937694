package gossip

import (
	"context"
	"testing"
	"time"

	"github.com/dreamware/ridgecache/internal/clock"
	"github.com/dreamware/ridgecache/internal/crdt"
	"github.com/dreamware/ridgecache/internal/deltasink"
	"github.com/dreamware/ridgecache/internal/metrics"
	"github.com/dreamware/ridgecache/internal/replshard"
	"github.com/dreamware/ridgecache/internal/ring"
	"github.com/dreamware/ridgecache/internal/shard"
	"github.com/dreamware/ridgecache/internal/sharded"
	"github.com/dreamware/ridgecache/internal/store"
	"github.com/dreamware/ridgecache/internal/topology"
)

func newTestReplica(t *testing.T, id crdt.ReplicaID, n int) ([]*shard.Shard, []*replshard.ReplicatedShard, *sharded.Router) {
	t.Helper()
	shards := make([]*shard.Shard, n)
	rshards := make([]*replshard.ReplicatedShard, n)
	clk := replshard.NewReplicaClock(id)
	for i := 0; i < n; i++ {
		sh := shard.New(i, clock.NewVirtual(0), metrics.NoOp{})
		rs := replshard.Wire(sh, id, clk, deltasink.New(64))
		shards[i] = sh
		rshards[i] = rs
		ctx, cancel := context.WithCancel(context.Background())
		go sh.Run(ctx)
		t.Cleanup(func() {
			cancel()
			sh.Stop()
		})
	}
	return shards, rshards, sharded.New(shards)
}

func TestActorQueueDeltasBroadcastsToAllPeersWithoutRouter(t *testing.T) {
	peers := topology.NewPeerSet()
	peers.Upsert(topology.ReplicaInfo{ID: "b", GossipAddr: "b:1"})
	peers.Upsert(topology.ReplicaInfo{ID: "c", GossipAddr: "c:1"})

	a := New("a", peers, nil, nil, metrics.NoOp{})
	a.QueueDeltas([]crdt.Delta{{Key: "k"}})

	batches := a.DrainOutbound()
	if len(batches) != 2 {
		t.Fatalf("got %d batches, want 2", len(batches))
	}
	if len(batches["b"].Deltas) != 1 || len(batches["c"].Deltas) != 1 {
		t.Fatalf("expected one delta queued for each peer, got %+v", batches)
	}
}

func TestActorQueueDeltasUsesRingWhenSelective(t *testing.T) {
	peers := topology.NewPeerSet()
	peers.Upsert(topology.ReplicaInfo{ID: "b", GossipAddr: "b:1"})
	peers.Upsert(topology.ReplicaInfo{ID: "c", GossipAddr: "c:1"})

	a := New("a", peers, nil, nil, metrics.NoOp{})
	a.SetSelective(true)
	r := ring.New([]crdt.ReplicaID{"a", "b", "c"}, 50, nil)
	a.SetRouter(r)

	a.QueueDeltas([]crdt.Delta{{Key: "some-key"}})
	batches := a.DrainOutbound()

	want := r.ReplicasExcluding("some-key", 0, "a")
	if len(batches) != len(want) {
		t.Fatalf("got %d batches, want %d matching ring.ReplicasExcluding", len(batches), len(want))
	}
}

func TestActorDrainOutboundClearsQueues(t *testing.T) {
	peers := topology.NewPeerSet()
	peers.Upsert(topology.ReplicaInfo{ID: "b", GossipAddr: "b:1"})
	a := New("a", peers, nil, nil, metrics.NoOp{})
	a.QueueDeltas([]crdt.Delta{{Key: "k"}})

	first := a.DrainOutbound()
	if len(first["b"].Deltas) != 1 {
		t.Fatalf("first drain = %+v, want 1 delta", first)
	}
	second := a.DrainOutbound()
	if len(second["b"].Deltas) != 0 {
		t.Fatalf("second drain = %+v, want empty (queues cleared)", second)
	}
}

func TestActorAdvanceEpochIncrements(t *testing.T) {
	a := New("a", topology.NewPeerSet(), nil, nil, metrics.NoOp{})
	if a.AdvanceEpoch() != 1 {
		t.Fatal("first AdvanceEpoch should return 1")
	}
	if a.AdvanceEpoch() != 2 {
		t.Fatal("second AdvanceEpoch should return 2")
	}
}

func TestActorApplyInboundRoutesToOwningShard(t *testing.T) {
	_, rshards, router := newTestReplica(t, "a", 4)
	a := New("a", topology.NewPeerSet(), rshards, router, metrics.NoOp{})

	payload, err := store.Encode(store.NewString([]byte("v")))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	delta := crdt.Delta{
		Key:           "some-key",
		Value:         crdt.Value{Payload: payload, Lamport: crdt.Lamport{ReplicaID: "b", Time: 10}},
		OriginReplica: "b",
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := a.ApplyInbound(ctx, delta); err != nil {
		t.Fatalf("ApplyInbound: %v", err)
	}

	reply, err := router.Dispatch(ctx, store.Command{Name: "GET", Args: [][]byte{[]byte("some-key")}})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(reply.Str) != "v" {
		t.Fatalf("GET after ApplyInbound = %q, want v", reply.Str)
	}
}
