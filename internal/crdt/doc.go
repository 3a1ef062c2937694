// Package crdt implements the Lamport clock, the (advisory) vector clock,
// and the LWW-with-tombstones merge rule that the replicated shard
// (internal/replshard) and gossip actor (internal/gossip) build on.
//
// Merge is total, commutative, associative and idempotent: two Values
// always compare via the tuple (Lamport.Time, Lamport.ReplicaID), with a
// higher ReplicaID winning ties. Tombstones participate in the same
// ordering as live values — a delete with a higher Lamport tuple beats a
// write with a lower one and vice versa, so deletes never resurrect and
// writes never un-delete a later tombstone.
//
// Vector clocks are carried and merged (component-wise max) alongside the
// Lamport winner, but they are advisory only: nothing in this repository
// uses them to block or filter a read. See CausalNotEnforced below.
package crdt

// CausalNotEnforced documents that causal-mode vector clocks are carried
// and merged but never consulted by internal/store to delay or reject a
// read. A causal read barrier is left as a future extension, not
// implemented here.
const CausalNotEnforced = true
