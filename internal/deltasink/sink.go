package deltasink

import (
	"sync/atomic"

	"github.com/dreamware/ridgecache/internal/crdt"
)

// DefaultCapacity bounds the number of pending deltas a Sink buffers before
// it starts dropping the oldest to make room for new ones.
const DefaultCapacity = 4096

// Sink is a bounded SPSC queue of crdt.Delta values. The zero value is not
// usable; construct with New.
type Sink struct {
	ch      chan crdt.Delta
	dropped uint64
}

// New creates a Sink with the given capacity (DefaultCapacity if <= 0).
func New(capacity int) *Sink {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Sink{ch: make(chan crdt.Delta, capacity)}
}

// Push enqueues d, never blocking. If the sink is full, the oldest queued
// delta is discarded to make room, so under sustained overload the sink
// keeps the newest writes and loses the oldest. A discarded delta is counted
// in Dropped and is not re-sent.
func (s *Sink) Push(d crdt.Delta) {
	select {
	case s.ch <- d:
		return
	default:
	}
	select {
	case <-s.ch:
		atomic.AddUint64(&s.dropped, 1)
	default:
	}
	select {
	case s.ch <- d:
	default:
		atomic.AddUint64(&s.dropped, 1)
	}
}

// Chan returns the receive side of the queue for the sole consumer goroutine
// (cmd/ridgecached's drainSinks, which forwards each delta into the gossip
// actor) to range or select over.
func (s *Sink) Chan() <-chan crdt.Delta {
	return s.ch
}

// Dropped returns the count of deltas discarded due to a full sink.
func (s *Sink) Dropped() uint64 {
	return atomic.LoadUint64(&s.dropped)
}
