// Package replshard wires a shard's mutations into the
// replication layer. A ReplicatedShard observes every applied write through
// internal/shard.Shard's DeltaFunc hook, turns it into a crdt.Delta stamped
// with this replica's Lamport clock, and pushes it onto an
// internal/deltasink.Sink for the gossip actor to ship out. It also accepts
// remote deltas (via ApplyRemote) and merges them into the shard's Engine
// through internal/shard.Shard's RunOnActor, so a merge never races a local
// command running on the same shard.
//
// FLUSHDB and FLUSHALL are local-only: they are never recorded as deltas, so
// a flush clears this replica and no other. Cross-replica flush semantics are
// intentionally undefined.
package replshard
