// Package server implements the TCP listener and accept loop that hands
// each incoming connection to internal/connserve, bounded by a concurrency
// semaphore so a flood of connections can't exhaust file descriptors or
// memory.
package server
