package sharded

import (
	"context"
	"testing"

	"github.com/dreamware/ridgecache/internal/clock"
	"github.com/dreamware/ridgecache/internal/metrics"
	"github.com/dreamware/ridgecache/internal/shard"
	"github.com/dreamware/ridgecache/internal/store"
)

func newTestRouter(t *testing.T, n int) (*Router, context.Context) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	shards := make([]*shard.Shard, n)
	vc := clock.NewVirtual(1_000_000)
	for i := range shards {
		shards[i] = shard.New(i, vc, metrics.NoOp{})
		go shards[i].Run(ctx)
	}
	t.Cleanup(func() {
		cancel()
		for _, s := range shards {
			s.Stop()
		}
	})
	return New(shards), ctx
}

func rcmd(name string, args ...string) store.Command {
	c := store.Command{Name: name}
	for _, a := range args {
		c.Args = append(c.Args, []byte(a))
	}
	return c
}

func TestRouterSingleKeyRouting(t *testing.T) {
	r, ctx := newTestRouter(t, 4)
	if _, err := r.Dispatch(ctx, rcmd("SET", "alpha", "1")); err != nil {
		t.Fatal(err)
	}
	reply, err := r.Dispatch(ctx, rcmd("GET", "alpha"))
	if err != nil || string(reply.Str) != "1" {
		t.Fatalf("GET alpha = %+v, %v", reply, err)
	}
}

func TestRouterMGetAcrossShards(t *testing.T) {
	r, ctx := newTestRouter(t, 8)
	keys := []string{"a", "b", "c", "d", "e"}
	for _, k := range keys {
		if _, err := r.Dispatch(ctx, rcmd("SET", k, k+"-val")); err != nil {
			t.Fatal(err)
		}
	}

	reply, err := r.Dispatch(ctx, rcmd("MGET", keys...))
	if err != nil {
		t.Fatal(err)
	}
	if len(reply.Elems) != len(keys) {
		t.Fatalf("MGET returned %d elements, want %d", len(reply.Elems), len(keys))
	}
	for i, k := range keys {
		if string(reply.Elems[i].Str) != k+"-val" {
			t.Fatalf("MGET[%d] = %s, want %s-val", i, reply.Elems[i].Str, k)
		}
	}
}

func TestRouterDelAcrossShards(t *testing.T) {
	r, ctx := newTestRouter(t, 8)
	keys := []string{"a", "b", "c", "d", "e", "f"}
	for _, k := range keys {
		r.Dispatch(ctx, rcmd("SET", k, "v"))
	}

	reply, err := r.Dispatch(ctx, rcmd("DEL", keys...))
	if err != nil {
		t.Fatal(err)
	}
	if reply.Int != int64(len(keys)) {
		t.Fatalf("DEL count = %d, want %d", reply.Int, len(keys))
	}
}

func TestRouterFlushAllFansOutToEveryShard(t *testing.T) {
	r, ctx := newTestRouter(t, 4)
	r.Dispatch(ctx, rcmd("SET", "x", "1"))
	r.Dispatch(ctx, rcmd("SET", "y", "2"))

	if _, err := r.Dispatch(ctx, rcmd("FLUSHALL")); err != nil {
		t.Fatal(err)
	}

	reply, _ := r.Dispatch(ctx, rcmd("EXISTS", "x", "y"))
	if reply.Int != 0 {
		t.Fatalf("EXISTS after FLUSHALL = %d, want 0", reply.Int)
	}
}

func TestRouterKeysConcatenatesAllShards(t *testing.T) {
	r, ctx := newTestRouter(t, 4)
	for _, k := range []string{"foo:1", "foo:2", "foo:3", "bar:1"} {
		r.Dispatch(ctx, rcmd("SET", k, "v"))
	}

	reply, err := r.Dispatch(ctx, rcmd("KEYS", "foo:*"))
	if err != nil {
		t.Fatal(err)
	}
	if len(reply.Elems) != 3 {
		t.Fatalf("KEYS foo:* = %d matches, want 3", len(reply.Elems))
	}
}

func TestRouterIndexForIsStable(t *testing.T) {
	r, _ := newTestRouter(t, 16)
	a := r.IndexFor("somekey")
	b := r.IndexFor("somekey")
	if a != b {
		t.Fatalf("IndexFor not stable across calls: %d != %d", a, b)
	}
}
