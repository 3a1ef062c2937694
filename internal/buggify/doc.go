// Package buggify implements a fault-probability table keyed by short
// fault identifiers, consulted only by the gossip transport (internal/gossip).
// It is never consulted on the single-node serving path or by CRDT merges.
package buggify
