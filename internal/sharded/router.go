package sharded

import (
	"context"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/sync/errgroup"

	"github.com/dreamware/ridgecache/internal/resp"
	"github.com/dreamware/ridgecache/internal/shard"
	"github.com/dreamware/ridgecache/internal/store"
)

// Router dispatches commands across a fixed set of shards.
type Router struct {
	shards []*shard.Shard
}

// New builds a Router over shards, indexed 0..len(shards)-1. The slice order
// must match each Shard's ID (shards[i].ID == i) since IndexFor assumes it.
func New(shards []*shard.Shard) *Router {
	return &Router{shards: shards}
}

// Count returns the number of shards the router fans out over.
func (r *Router) Count() int {
	return len(r.shards)
}

// IndexFor returns the shard index owning key.
func (r *Router) IndexFor(key string) int {
	return int(xxhash.Sum64String(key) % uint64(len(r.shards)))
}

// Dispatch routes cmd to the appropriate shard(s) and returns its RESP
// reply, handling three shapes:
//
//   - Single-key commands go straight to one shard.
//   - Multi-key commands (DEL, EXISTS, MGET, MSET) fan out to every shard
//     touched and recombine partial results.
//   - Fan-out commands (FLUSHDB, FLUSHALL, KEYS, PING, INFO) go to every
//     shard and their results are merged (KEYS) or shard 0's reply is used.
func (r *Router) Dispatch(ctx context.Context, cmd store.Command) (resp.Value, error) {
	switch {
	case cmd.IsFanOut():
		return r.dispatchFanOut(ctx, cmd)
	case isMultiKey(cmd.Name):
		return r.dispatchMultiKey(ctx, cmd)
	default:
		keys := cmd.Keys()
		idx := 0
		if len(keys) > 0 {
			idx = r.IndexFor(keys[0])
		}
		return r.shards[idx].Submit(ctx, cmd)
	}
}

func isMultiKey(name string) bool {
	switch name {
	case "DEL", "EXISTS", "MGET", "MSET":
		return true
	default:
		return false
	}
}

func (r *Router) dispatchMultiKey(ctx context.Context, cmd store.Command) (resp.Value, error) {
	switch cmd.Name {
	case "DEL", "EXISTS":
		return r.fanOutCountingKeys(ctx, cmd)
	case "MGET":
		return r.fanOutMGet(ctx, cmd)
	case "MSET":
		return r.fanOutMSet(ctx, cmd)
	default:
		return resp.Errorf("ERR unsupported multi-key command '%s'", cmd.Name), nil
	}
}

// fanOutCountingKeys handles DEL and EXISTS: partition the argument keys by
// owning shard, submit one sub-command per shard concurrently, and sum the
// per-shard integer replies.
func (r *Router) fanOutCountingKeys(ctx context.Context, cmd store.Command) (resp.Value, error) {
	buckets := r.bucketKeys(cmd.Args)

	totals := make([]int64, len(buckets))
	g, gctx := errgroup.WithContext(ctx)
	for idx, args := range buckets {
		if len(args) == 0 {
			continue
		}
		idx, args := idx, args
		g.Go(func() error {
			reply, err := r.shards[idx].Submit(gctx, store.Command{Name: cmd.Name, Args: args})
			if err != nil {
				return err
			}
			totals[idx] = reply.Int
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return resp.Value{}, err
	}

	var sum int64
	for _, n := range totals {
		sum += n
	}
	return resp.Integer(sum), nil
}

// fanOutMGet preserves the caller's key order in the combined reply, unlike
// fanOutCountingKeys which only needs a sum.
func (r *Router) fanOutMGet(ctx context.Context, cmd store.Command) (resp.Value, error) {
	results := make([]resp.Value, len(cmd.Args))
	g, gctx := errgroup.WithContext(ctx)
	for i, k := range cmd.Args {
		i, k := i, k
		g.Go(func() error {
			idx := r.IndexFor(string(k))
			reply, err := r.shards[idx].Submit(gctx, store.Command{Name: "GET", Args: [][]byte{k}})
			if err != nil {
				return err
			}
			results[i] = reply
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return resp.Value{}, err
	}
	return resp.Array(results...), nil
}

func (r *Router) fanOutMSet(ctx context.Context, cmd store.Command) (resp.Value, error) {
	type pair struct{ key, val []byte }
	byShard := make(map[int][]pair)
	for i := 0; i+1 < len(cmd.Args); i += 2 {
		idx := r.IndexFor(string(cmd.Args[i]))
		byShard[idx] = append(byShard[idx], pair{cmd.Args[i], cmd.Args[i+1]})
	}

	g, gctx := errgroup.WithContext(ctx)
	for idx, pairs := range byShard {
		idx, pairs := idx, pairs
		g.Go(func() error {
			args := make([][]byte, 0, len(pairs)*2)
			for _, p := range pairs {
				args = append(args, p.key, p.val)
			}
			_, err := r.shards[idx].Submit(gctx, store.Command{Name: "MSET", Args: args})
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return resp.Value{}, err
	}
	return resp.SimpleString("OK"), nil
}

func (r *Router) bucketKeys(keys [][]byte) [][][]byte {
	buckets := make([][][]byte, len(r.shards))
	for _, k := range keys {
		idx := r.IndexFor(string(k))
		buckets[idx] = append(buckets[idx], k)
	}
	return buckets
}

// dispatchFanOut sends cmd to every shard concurrently. FLUSHDB/FLUSHALL and
// PING/INFO all return the same reply from every shard, so the first result
// is representative; KEYS concatenates every shard's matches.
func (r *Router) dispatchFanOut(ctx context.Context, cmd store.Command) (resp.Value, error) {
	results := make([]resp.Value, len(r.shards))
	g, gctx := errgroup.WithContext(ctx)
	for i, sh := range r.shards {
		i, sh := i, sh
		g.Go(func() error {
			reply, err := sh.Submit(gctx, cmd)
			if err != nil {
				return err
			}
			results[i] = reply
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return resp.Value{}, err
	}

	if cmd.Name == "KEYS" {
		var all []resp.Value
		for _, reply := range results {
			all = append(all, reply.Elems...)
		}
		return resp.Array(all...), nil
	}
	return results[0], nil
}
