package deltasink

import (
	"testing"

	"github.com/dreamware/ridgecache/internal/crdt"
)

func TestSinkPushAndDrain(t *testing.T) {
	s := New(2)
	s.Push(crdt.Delta{Key: "a"})
	s.Push(crdt.Delta{Key: "b"})

	d := <-s.Chan()
	if d.Key != "a" {
		t.Fatalf("first drained delta = %s, want a", d.Key)
	}
	d = <-s.Chan()
	if d.Key != "b" {
		t.Fatalf("second drained delta = %s, want b", d.Key)
	}
}

func TestSinkDropsOldestWhenFull(t *testing.T) {
	s := New(2)
	s.Push(crdt.Delta{Key: "a"})
	s.Push(crdt.Delta{Key: "b"})
	s.Push(crdt.Delta{Key: "c"}) // sink full, "a" should be dropped

	if s.Dropped() != 1 {
		t.Fatalf("Dropped() = %d, want 1", s.Dropped())
	}

	first := <-s.Chan()
	second := <-s.Chan()
	if first.Key != "b" || second.Key != "c" {
		t.Fatalf("drained %s, %s; want b, c", first.Key, second.Key)
	}
}

func TestSinkNeverBlocks(t *testing.T) {
	s := New(1)
	done := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			s.Push(crdt.Delta{Key: "k"})
		}
		close(done)
	}()
	select {
	case <-done:
	default:
	}
	<-done
}
