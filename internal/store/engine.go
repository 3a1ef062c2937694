package store

import (
	"strconv"

	"github.com/dreamware/ridgecache/internal/clock"
)

// entry pairs a Value with its optional expiry.
type entry struct {
	value    Value
	expireMs uint64
	hasTTL   bool
}

// Engine owns one shard's key space: a map[key]Value and a map[key]expiry.
// Not safe for concurrent use — callers (internal/shard) serialize all
// access through a single actor goroutine.
type Engine struct {
	data  map[string]*entry
	clock clock.Source
}

// NewEngine creates an empty engine reading "now" from src.
func NewEngine(src clock.Source) *Engine {
	return &Engine{data: make(map[string]*entry), clock: src}
}

// lazyExpire removes key if it has expired as of now, returning true if the
// key was (or is now) absent. Invoked at the top of every Engine method
// that reads or writes a key, so an expired key is never observable.
func (e *Engine) lazyExpire(key string) bool {
	ent, ok := e.data[key]
	if !ok {
		return true
	}
	if ent.hasTTL && ent.expireMs <= e.clock.NowMillis() {
		delete(e.data, key)
		return true
	}
	return false
}

func (e *Engine) get(key string) (*entry, bool) {
	if e.lazyExpire(key) {
		return nil, false
	}
	ent, ok := e.data[key]
	return ent, ok
}

// Len returns the number of keys in the map, including expired keys that
// lazy or active expiry has not yet removed. Used by internal/shard to size
// the active-eviction budget.
func (e *Engine) Len() int {
	return len(e.data)
}

// Keys returns a snapshot of every key currently in the map (including ones
// that have not yet been lazily expired — callers needing liveness should
// use KeysMatching or accept the lazy semantics).
func (e *Engine) Keys() []string {
	out := make([]string, 0, len(e.data))
	for k := range e.data {
		out = append(out, k)
	}
	return out
}

// KeysMatching returns live keys whose name satisfies match.
func (e *Engine) KeysMatching(match func(string) bool) []string {
	var out []string
	for k := range e.data {
		if e.lazyExpireCheck(k) {
			continue
		}
		if match(k) {
			out = append(out, k)
		}
	}
	if out == nil {
		out = []string{}
	}
	return out
}

// lazyExpireCheck applies lazyExpire to a key taken from iterating the map,
// used by iteration paths that already hold the key.
func (e *Engine) lazyExpireCheck(key string) bool {
	return e.lazyExpire(key)
}

// EvictExpired removes every key (up to budget scans, 0 = unlimited) whose
// expiry has passed, returning the count removed. This is the active
// eviction path, independent of and additive to lazy expiry.
func (e *Engine) EvictExpired(budget int) int {
	now := e.clock.NowMillis()
	removed := 0
	scanned := 0
	for k, ent := range e.data {
		if budget > 0 && scanned >= budget {
			break
		}
		scanned++
		if ent.hasTTL && ent.expireMs <= now {
			delete(e.data, k)
			removed++
		}
	}
	return removed
}

// Get returns the live value at key, or (Value{}, false) if absent/expired.
func (e *Engine) Get(key string) (Value, bool) {
	ent, ok := e.get(key)
	if !ok {
		return Value{}, false
	}
	return ent.value, true
}

// Set installs value at key, clearing any existing TTL (plain SET
// semantics); ttlMs == 0 means no expiry.
func (e *Engine) Set(key string, value Value, ttlMs uint64) {
	ent := &entry{value: value}
	if ttlMs > 0 {
		ent.hasTTL = true
		ent.expireMs = e.clock.NowMillis() + ttlMs
	}
	e.data[key] = ent
}

// SetKeepTTL installs value at key without touching any existing expiry.
// The executor's structural commands (HSET and the like) do not call it:
// they modify the value in place, which also leaves the TTL untouched.
func (e *Engine) SetKeepTTL(key string, value Value) {
	if ent, ok := e.data[key]; ok {
		ent.value = value
		return
	}
	e.data[key] = &entry{value: value}
}

// Del removes keys, returning the count actually present beforehand.
func (e *Engine) Del(keys ...string) int {
	n := 0
	for _, k := range keys {
		if e.lazyExpire(k) {
			continue
		}
		if _, ok := e.data[k]; ok {
			delete(e.data, k)
			n++
		}
	}
	return n
}

// Exists reports how many of keys are currently live.
func (e *Engine) Exists(keys ...string) int {
	n := 0
	for _, k := range keys {
		if _, ok := e.get(k); ok {
			n++
		}
	}
	return n
}

// Expire sets key's TTL to ttlSeconds from now, returning false if the key
// doesn't exist.
func (e *Engine) Expire(key string, ttlSeconds int64) bool {
	ent, ok := e.get(key)
	if !ok {
		return false
	}
	if ttlSeconds <= 0 {
		delete(e.data, key)
		return true
	}
	ent.hasTTL = true
	ent.expireMs = e.clock.NowMillis() + uint64(ttlSeconds)*1000
	return true
}

// TTL returns the key's remaining TTL in seconds, -1 if it has no TTL, or -2
// if it doesn't exist.
func (e *Engine) TTL(key string) int64 {
	ent, ok := e.get(key)
	if !ok {
		return -2
	}
	if !ent.hasTTL {
		return -1
	}
	now := e.clock.NowMillis()
	if ent.expireMs <= now {
		return -2
	}
	remainMs := ent.expireMs - now
	secs := int64(remainMs / 1000)
	if remainMs%1000 != 0 {
		secs++
	}
	return secs
}

// Persist removes key's TTL, returning true if a TTL was actually removed.
func (e *Engine) Persist(key string) bool {
	ent, ok := e.get(key)
	if !ok || !ent.hasTTL {
		return false
	}
	ent.hasTTL = false
	ent.expireMs = 0
	return true
}

// ExpireAtMs reports the absolute expiry (if any) of key, for building
// replication deltas in internal/replshard.
func (e *Engine) ExpireAtMs(key string) (ms uint64, ok bool) {
	ent, exists := e.get(key)
	if !exists || !ent.hasTTL {
		return 0, false
	}
	return ent.expireMs, true
}

// SetReplicated installs value at key with an already-computed absolute
// expiry timestamp, used by internal/replshard's merge path: a replicated
// write's TTL was computed relative to the originating replica's clock, so
// it must be stored as-is rather than recomputed relative to this replica's
// NowMillis() (which Set does for locally-issued commands).
func (e *Engine) SetReplicated(key string, value Value, expireAtMs uint64, hasTTL bool) {
	e.data[key] = &entry{value: value, expireMs: expireAtMs, hasTTL: hasTTL}
}

// Flush removes every key in the shard.
func (e *Engine) Flush() {
	e.data = make(map[string]*entry)
}

// Incr parses key as a signed 64-bit integer (treating a missing key as 0),
// adds delta, stores and returns the result. Returns ErrWrongType if key
// holds a non-string value, ErrNotInteger if it can't be parsed, and
// ErrOutOfRange on overflow.
func (e *Engine) Incr(key string, delta int64) (int64, error) {
	ent, ok := e.get(key)
	var current int64
	if ok {
		if ent.value.Kind != KindString {
			return 0, ErrWrongType
		}
		parsed, err := strconv.ParseInt(string(ent.value.Str), 10, 64)
		if err != nil {
			return 0, ErrNotInteger
		}
		current = parsed
	}

	result := current + delta
	if (delta > 0 && result < current) || (delta < 0 && result > current) {
		return 0, ErrOutOfRange
	}

	str := []byte(strconv.FormatInt(result, 10))
	if ok {
		ent.value = NewString(str)
	} else {
		e.data[key] = &entry{value: NewString(str)}
	}
	return result, nil
}
