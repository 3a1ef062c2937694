// Package gossip implements the actor that owns a replica's outbound delta
// queues and epoch counter, plus the inbound path that routes a received
// delta to the internal/shard.Shard responsible for its key.
//
// The actor itself is transport-agnostic: QueueDeltas/QueueHeartbeat/
// AdvanceEpoch/DrainOutbound/SetRouter manipulate only in-memory state, so
// they can be tested without a network. Run drives a periodic tick (default
// 100ms) that drains the current batch per peer and hands it to a
// Transport; the bundled HTTPTransport posts batches as JSON via
// internal/topology.PostJSON.
package gossip
