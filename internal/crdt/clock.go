package crdt

// ReplicaID identifies one participant in the gossip mesh. Assigned at
// startup from REDIS_REPLICA_ID (internal/topology), typically a
// github.com/google/uuid string but any non-empty, cluster-unique string
// works — the Lamport tiebreak only needs a total order over ReplicaIDs,
// which Go's string comparison already provides.
type ReplicaID string

// Lamport is the (logical_time, replica_id) tuple used to totally order
// concurrent writes across replicas.
type Lamport struct {
	ReplicaID ReplicaID
	Time      uint64
}

// Less reports whether l strictly precedes other in the comparison order:
// lower Time loses; on a Time tie, the lower ReplicaID loses.
func (l Lamport) Less(other Lamport) bool {
	if l.Time != other.Time {
		return l.Time < other.Time
	}
	return l.ReplicaID < other.ReplicaID
}

// Tick returns l advanced by a local write: time strictly increases.
func (l Lamport) Tick() Lamport {
	return Lamport{ReplicaID: l.ReplicaID, Time: l.Time + 1}
}

// Observe returns the Lamport value this replica should adopt after merging
// in a remote Lamport tuple: time becomes max(local, remote)+1.
func (l Lamport) Observe(remote Lamport) Lamport {
	t := l.Time
	if remote.Time > t {
		t = remote.Time
	}
	return Lamport{ReplicaID: l.ReplicaID, Time: t + 1}
}

// VectorClock is a per-replica logical counter used only by the (advisory)
// causal mode. A nil VectorClock is valid and behaves as an all-zero clock.
type VectorClock map[ReplicaID]uint64

// Clone returns a deep copy of v.
func (v VectorClock) Clone() VectorClock {
	if v == nil {
		return nil
	}
	out := make(VectorClock, len(v))
	for k, val := range v {
		out[k] = val
	}
	return out
}

// Merge returns the component-wise max of v and other. Merge itself never
// increments; call Increment separately after a local write.
func (v VectorClock) Merge(other VectorClock) VectorClock {
	out := v.Clone()
	if out == nil && len(other) > 0 {
		out = make(VectorClock, len(other))
	}
	for replica, count := range other {
		if count > out[replica] {
			out[replica] = count
		}
	}
	return out
}

// Increment returns v with replica's slot incremented by one, used on local
// writes in causal mode.
func (v VectorClock) Increment(replica ReplicaID) VectorClock {
	out := v.Clone()
	if out == nil {
		out = make(VectorClock, 1)
	}
	out[replica]++
	return out
}
