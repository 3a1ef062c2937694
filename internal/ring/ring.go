package ring

import (
	"fmt"
	"sync"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/exp/slices"

	"github.com/dreamware/ridgecache/internal/crdt"
)

// DefaultVirtualNodes is the per-replica virtual node count.
const DefaultVirtualNodes = 150

// RFProvider resolves the replication factor for a key, consulted by Ring so
// the adaptive controller (internal/adaptive) can promote hot keys without
// the ring owning any hot-key state itself: the controller owns the hot-key
// map, the ring only reads it.
type RFProvider interface {
	RFOf(key string) int
}

type vnode struct {
	replica  crdt.ReplicaID
	position uint64
}

// Ring is a consistent-hash ring with virtual nodes over a fixed replica
// set. The zero value is not usable; construct with New.
type Ring struct {
	mu       sync.RWMutex
	vnodes   []vnode // sorted by position
	replicas []crdt.ReplicaID
	perNode  int
	version  uint64
	rf       RFProvider
}

// New builds a Ring over replicas with vnodesPerReplica virtual nodes each.
// rf may be nil, in which case Replicas always honors the rf argument passed
// by the caller rather than consulting a provider.
func New(replicas []crdt.ReplicaID, vnodesPerReplica int, rf RFProvider) *Ring {
	if vnodesPerReplica <= 0 {
		vnodesPerReplica = DefaultVirtualNodes
	}
	r := &Ring{perNode: vnodesPerReplica, rf: rf}
	r.rebuild(replicas)
	return r
}

func (r *Ring) rebuild(replicas []crdt.ReplicaID) {
	vnodes := make([]vnode, 0, len(replicas)*r.perNode)
	for _, replica := range replicas {
		for i := 0; i < r.perNode; i++ {
			pos := positionFor(replica, i)
			vnodes = append(vnodes, vnode{replica: replica, position: pos})
		}
	}
	slices.SortFunc(vnodes, func(a, b vnode) int {
		switch {
		case a.position < b.position:
			return -1
		case a.position > b.position:
			return 1
		default:
			return 0
		}
	})

	r.mu.Lock()
	r.vnodes = vnodes
	r.replicas = append([]crdt.ReplicaID(nil), replicas...)
	r.version++
	r.mu.Unlock()
}

func positionFor(replica crdt.ReplicaID, vnodeIndex int) uint64 {
	return xxhash.Sum64String(fmt.Sprintf("%s#%d", replica, vnodeIndex))
}

// SetReplicas atomically replaces the ring's membership. Bumps Version().
func (r *Ring) SetReplicas(replicas []crdt.ReplicaID) {
	r.rebuild(replicas)
}

// SetRFProvider installs (or clears, with nil) the adaptive controller
// consulted by Replicas when rf <= 0 is passed.
func (r *Ring) SetRFProvider(rf RFProvider) {
	r.mu.Lock()
	r.rf = rf
	r.mu.Unlock()
}

// Version returns a counter that increases on every membership change.
func (r *Ring) Version() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.version
}

// NodeCount returns the number of distinct physical replicas in the ring.
func (r *Ring) NodeCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.replicas)
}

// Replicas returns the distinct physical replicas responsible for key,
// walking clockwise from key's ring position until min(rf, NodeCount())
// distinct replicas are collected. If rf <= 0 and an
// RFProvider is installed, the provider's RFOf(key) is used instead.
func (r *Ring) Replicas(key string, rf int) []crdt.ReplicaID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if rf <= 0 {
		if r.rf != nil {
			rf = r.rf.RFOf(key)
		}
		if rf <= 0 {
			rf = 1
		}
	}
	if len(r.vnodes) == 0 {
		return nil
	}
	if rf > len(r.replicas) {
		rf = len(r.replicas)
	}

	hash := xxhash.Sum64String(key)
	start, _ := slices.BinarySearchFunc(r.vnodes, hash, func(v vnode, target uint64) int {
		switch {
		case v.position < target:
			return -1
		case v.position > target:
			return 1
		default:
			return 0
		}
	})

	seen := make(map[crdt.ReplicaID]struct{}, rf)
	out := make([]crdt.ReplicaID, 0, rf)
	for i := 0; i < len(r.vnodes) && len(out) < rf; i++ {
		idx := (start + i) % len(r.vnodes)
		replica := r.vnodes[idx].replica
		if _, dup := seen[replica]; dup {
			continue
		}
		seen[replica] = struct{}{}
		out = append(out, replica)
	}
	return out
}

// ReplicasExcluding is Replicas with self removed from the result, used by
// the gossip actor to compute "targets minus origin".
func (r *Ring) ReplicasExcluding(key string, rf int, self crdt.ReplicaID) []crdt.ReplicaID {
	all := r.Replicas(key, rf)
	out := all[:0:0]
	for _, replica := range all {
		if replica != self {
			out = append(out, replica)
		}
	}
	return out
}
