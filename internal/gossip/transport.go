package gossip

import (
	"context"
	"fmt"
	"math/rand"
	"sync"

	"github.com/dreamware/ridgecache/internal/buggify"
	"github.com/dreamware/ridgecache/internal/crdt"
	"github.com/dreamware/ridgecache/internal/topology"
)

// Transport ships one peer's Batch over the network. Its narrow interface
// lets tests substitute an in-memory implementation instead of a real HTTP
// round trip.
type Transport interface {
	Send(ctx context.Context, peer topology.ReplicaInfo, batch Batch) error
}

// gossipDeltasPath is the HTTP endpoint every replica exposes to receive a
// batch.
const gossipDeltasPath = "/gossip/deltas"

// HTTPTransport posts each batch as JSON to its peer's GossipAddr, built
// directly on internal/topology.PostJSON. Fault injection is consulted only
// here, never inside Actor, so the actor's queueing logic stays
// deterministic under test.
type HTTPTransport struct {
	faults *buggify.Config
	rand   *rand.Rand
	mu     sync.Mutex
}

// NewHTTPTransport builds a transport whose fault injection is governed by
// faults (may be nil, equivalent to buggify.NewConfig(buggify.PresetDisabled)).
func NewHTTPTransport(faults *buggify.Config) *HTTPTransport {
	if faults == nil {
		faults = buggify.NewConfig(buggify.PresetDisabled)
	}
	return &HTTPTransport{faults: faults, rand: rand.New(rand.NewSource(1))}
}

func (t *HTTPTransport) nextRandom() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.rand.Float64()
}

// Send posts batch to peer's gossip endpoint. A network.packet_drop fault
// drops the send entirely (returns nil, as if it were delivered and simply
// lost — the caller has no way to distinguish a dropped packet from one that
// arrived and was merged, matching real UDP-like gossip semantics).
// network.reorder shuffles the delta order within the batch before sending;
// since LWW merge is commutative this never changes the eventual result,
// only the path taken to reach it.
func (t *HTTPTransport) Send(ctx context.Context, peer topology.ReplicaInfo, batch Batch) error {
	if t.faults.ShouldTrigger(buggify.FaultNetworkPacketDrop, t.nextRandom()) {
		return nil
	}
	if t.faults.ShouldTrigger(buggify.FaultNetworkReorder, t.nextRandom()) {
		t.shuffle(batch.Deltas)
	}

	url := fmt.Sprintf("http://%s%s", peer.GossipAddr, gossipDeltasPath)
	return topology.PostJSON(ctx, url, batch, nil)
}

func (t *HTTPTransport) shuffle(deltas []crdt.Delta) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rand.Shuffle(len(deltas), func(i, j int) {
		deltas[i], deltas[j] = deltas[j], deltas[i]
	})
}

// InMemoryTransport delivers batches directly to a set of registered Actors
// in-process, for tests that exercise multi-replica convergence without a
// real network.
type InMemoryTransport struct {
	mu      sync.Mutex
	inboxes map[string]*Actor
}

// NewInMemoryTransport builds an empty in-memory transport.
func NewInMemoryTransport() *InMemoryTransport {
	return &InMemoryTransport{inboxes: make(map[string]*Actor)}
}

// Register makes actor reachable at addr (matching the ReplicaInfo.GossipAddr
// a test constructs for it).
func (t *InMemoryTransport) Register(addr string, actor *Actor) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.inboxes[addr] = actor
}

// Send delivers batch's deltas directly into the registered actor's
// ApplyInbound, skipping heartbeats (nothing to merge).
func (t *InMemoryTransport) Send(ctx context.Context, peer topology.ReplicaInfo, batch Batch) error {
	t.mu.Lock()
	actor, ok := t.inboxes[peer.GossipAddr]
	t.mu.Unlock()
	if !ok {
		return fmt.Errorf("gossip: no registered peer at %s", peer.GossipAddr)
	}
	for _, d := range batch.Deltas {
		if err := actor.ApplyInbound(ctx, d); err != nil {
			return err
		}
	}
	return nil
}
