// Package ring implements a consistent-hash ring with virtual nodes, used
// by the gossip actor (internal/gossip) to pick the target replica set for a
// key's deltas.
//
// Membership is static for the ring's lifetime — SetReplicas exists for
// startup configuration and tests, not for runtime cluster resizing.
package ring
