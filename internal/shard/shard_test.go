package shard

import (
	"context"
	"testing"
	"time"

	"github.com/dreamware/ridgecache/internal/clock"
	"github.com/dreamware/ridgecache/internal/metrics"
	"github.com/dreamware/ridgecache/internal/resp"
	"github.com/dreamware/ridgecache/internal/store"
)

func startShard(t *testing.T) (*Shard, context.Context, context.CancelFunc) {
	t.Helper()
	vc := clock.NewVirtual(1_000_000)
	s := New(0, vc, metrics.NoOp{})
	ctx, cancel := context.WithCancel(context.Background())
	go s.Run(ctx)
	t.Cleanup(func() {
		cancel()
		s.Stop()
	})
	return s, ctx, cancel
}

func strCmd(name string, args ...string) store.Command {
	c := store.Command{Name: name}
	for _, a := range args {
		c.Args = append(c.Args, []byte(a))
	}
	return c
}

func TestShardSubmitSetGet(t *testing.T) {
	s, ctx, _ := startShard(t)

	reply, err := s.Submit(ctx, strCmd("SET", "k", "v"))
	if err != nil || string(reply.Str) != "OK" {
		t.Fatalf("SET = %+v, %v", reply, err)
	}

	reply, err = s.Submit(ctx, strCmd("GET", "k"))
	if err != nil || string(reply.Str) != "v" {
		t.Fatalf("GET = %+v, %v", reply, err)
	}
}

func TestShardSerializesConcurrentSubmits(t *testing.T) {
	s, ctx, _ := startShard(t)

	const n = 200
	done := make(chan struct{}, n)
	for i := 0; i < n; i++ {
		go func() {
			s.Submit(ctx, strCmd("INCR", "counter"))
			done <- struct{}{}
		}()
	}
	for i := 0; i < n; i++ {
		<-done
	}

	reply, err := s.Submit(ctx, strCmd("GET", "counter"))
	if err != nil {
		t.Fatalf("GET error: %v", err)
	}
	if string(reply.Str) != "200" {
		t.Fatalf("counter = %s, want 200 (no lost updates under concurrent Submit)", reply.Str)
	}
}

func TestShardCanceledContextStopsWaiting(t *testing.T) {
	s := New(0, clock.NewVirtual(0), metrics.NoOp{})
	// No Run goroutine started: Submit must give up once ctx is canceled
	// instead of blocking forever on a mailbox nobody drains.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Submit(ctx, strCmd("PING"))
	if err == nil {
		t.Fatal("Submit with no receiver and a canceled context should return an error")
	}
}

func TestShardSweepNowEvictsExpired(t *testing.T) {
	s, ctx, _ := startShard(t)

	s.Submit(ctx, strCmd("SETEX", "k", "1", "v"))
	vc := s.clock.(*clock.Virtual)
	vc.Advance(2 * time.Second)

	n, err := s.SweepNow(ctx, 100, 0.10)
	if err != nil {
		t.Fatalf("SweepNow error: %v", err)
	}
	if n != 1 {
		t.Fatalf("SweepNow evicted %d keys, want 1", n)
	}

	reply, _ := s.Submit(ctx, strCmd("EXISTS", "k"))
	if reply.Int != 0 {
		t.Fatalf("EXISTS after sweep = %d, want 0", reply.Int)
	}
}

func TestShardDeltaFuncInvokedOnMutation(t *testing.T) {
	s, ctx, _ := startShard(t)

	var seen []string
	s.SetDeltaFunc(func(cmd store.Command, reply resp.Value) {
		seen = append(seen, cmd.Name)
	})

	s.Submit(ctx, strCmd("SET", "k", "v"))
	s.Submit(ctx, strCmd("GET", "k")) // read-only, must not trigger onDelta

	if len(seen) != 1 || seen[0] != "SET" {
		t.Fatalf("onDelta calls = %v, want exactly [SET]", seen)
	}
}

func TestShardRunOnActorHasExclusiveAccess(t *testing.T) {
	s, ctx, _ := startShard(t)
	s.Submit(ctx, strCmd("SET", "k", "v"))

	var seenLen int
	err := s.RunOnActor(ctx, func(ex *store.Executor) {
		seenLen = ex.Engine.Len()
	})
	if err != nil {
		t.Fatalf("RunOnActor error: %v", err)
	}
	if seenLen != 1 {
		t.Fatalf("RunOnActor observed Engine.Len() = %d, want 1", seenLen)
	}
}
