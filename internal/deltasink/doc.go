// Package deltasink implements the single-producer, single-consumer channel
// between a replicated shard (the producer, running on its own actor
// goroutine) and the single consumer goroutine that drains it into the
// gossip actor, which ships deltas to peers.
//
// The channel is bounded and non-blocking on the producer side: a shard
// actor must never stall serving client commands because the gossip
// consumer is slow or a peer is down, so a full sink drops its oldest
// pending delta rather than blocking Push.
package deltasink
