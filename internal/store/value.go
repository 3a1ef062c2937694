package store

import (
	"bytes"
	"encoding/gob"
	"errors"
	"sort"
)

// Kind discriminates the Value sum type. Integer is not a separate Kind —
// integers and strings are interchangeable by numeric parse (INCR family
// operates on Kind == KindString).
type Kind uint8

const (
	KindString Kind = iota
	KindHash
	KindList
	KindSet
	KindSortedSet
)

// ErrWrongType is returned whenever a command is applied to a key holding a
// different Kind, surfaced to the client as "WRONGTYPE Operation against a
// key holding the wrong kind of value".
var ErrWrongType = errors.New("WRONGTYPE Operation against a key holding the wrong kind of value")

// ErrNotInteger is returned by the INCR family when the existing value isn't
// parseable as a signed 64-bit integer.
var ErrNotInteger = errors.New("ERR value is not an integer or out of range")

// ErrOutOfRange is returned by the INCR family on signed 64-bit overflow.
var ErrOutOfRange = errors.New("ERR value is out of range")

// Value is the polymorphic per-key payload. Exactly one of the fields is
// meaningful, selected by Kind. List is kept as a slice used as a deque
// (push/pop from both ends); SortedSet keeps a score map and a
// lazily-rebuilt sorted member list.
type Value struct {
	Str      []byte
	Hash     map[string][]byte
	List     [][]byte
	Set      map[string]struct{}
	ZSet     map[string]float64
	zsorted  []string // cached ZRANGE order, rebuilt when dirty
	zdirty   bool
	Kind     Kind
}

// NewString builds a KindString Value.
func NewString(b []byte) Value { return Value{Kind: KindString, Str: b} }

// Clone deep-copies v.
func (v Value) Clone() Value {
	out := v
	if v.Str != nil {
		out.Str = append([]byte(nil), v.Str...)
	}
	if v.Hash != nil {
		out.Hash = make(map[string][]byte, len(v.Hash))
		for k, val := range v.Hash {
			out.Hash[k] = append([]byte(nil), val...)
		}
	}
	if v.List != nil {
		out.List = make([][]byte, len(v.List))
		for i, val := range v.List {
			out.List[i] = append([]byte(nil), val...)
		}
	}
	if v.Set != nil {
		out.Set = make(map[string]struct{}, len(v.Set))
		for k := range v.Set {
			out.Set[k] = struct{}{}
		}
	}
	if v.ZSet != nil {
		out.ZSet = make(map[string]float64, len(v.ZSet))
		for k, s := range v.ZSet {
			out.ZSet[k] = s
		}
	}
	out.zsorted = nil
	out.zdirty = true
	return out
}

// sortedMembers returns ZSet members ordered by (score, member), rebuilding
// the cache if dirty: mutate ZSet eagerly on ZADD, defer the sort until
// ZRANGE asks.
func (v *Value) sortedMembers() []string {
	if !v.zdirty && v.zsorted != nil {
		return v.zsorted
	}
	members := make([]string, 0, len(v.ZSet))
	for m := range v.ZSet {
		members = append(members, m)
	}
	sort.Slice(members, func(i, j int) bool {
		si, sj := v.ZSet[members[i]], v.ZSet[members[j]]
		if si != sj {
			return si < sj
		}
		return members[i] < members[j]
	})
	v.zsorted = members
	v.zdirty = false
	return members
}

// gobValue is the wire shape persisted by Encode/Decode — a plain struct so
// encoding/gob never has to cross the unexported-field boundary of Value
// itself.
type gobValue struct {
	Str  []byte
	Hash map[string][]byte
	List [][]byte
	Set  map[string]struct{}
	ZSet map[string]float64
	Kind Kind
}

// Encode serializes v into the replication wire format consumed by
// internal/replshard and internal/crdt. The CRDT layer replicates whole
// values — LWW with tombstones, no per-field structural merge — so one
// opaque payload blob per key is all the replication layer needs regardless
// of Kind.
func Encode(v Value) ([]byte, error) {
	var buf bytes.Buffer
	gv := gobValue{Str: v.Str, Hash: v.Hash, List: v.List, Set: v.Set, ZSet: v.ZSet, Kind: v.Kind}
	if err := gob.NewEncoder(&buf).Encode(&gv); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode is the inverse of Encode.
func Decode(payload []byte) (Value, error) {
	var gv gobValue
	if err := gob.NewDecoder(bytes.NewReader(payload)).Decode(&gv); err != nil {
		return Value{}, err
	}
	return Value{Str: gv.Str, Hash: gv.Hash, List: gv.List, Set: gv.Set, ZSet: gv.ZSet, Kind: gv.Kind, zdirty: true}, nil
}
