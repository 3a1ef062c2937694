// Package topology tracks cluster membership for the replication layer:
// which replicas exist, their gossip addresses, and the shared PostJSON/
// GetJSON helpers the gossip transport (internal/gossip) uses to talk to
// them over HTTP.
package topology
