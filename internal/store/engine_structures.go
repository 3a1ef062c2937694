package store

// getOrCreate returns the entry at key, creating one of the given kind if
// absent, or ErrWrongType if key holds a value of a different kind.
func (e *Engine) getOrCreate(key string, kind Kind) (*entry, error) {
	if ent, ok := e.get(key); ok {
		if ent.value.Kind != kind {
			return nil, ErrWrongType
		}
		return ent, nil
	}
	ent := &entry{value: zeroValue(kind)}
	e.data[key] = ent
	return ent, nil
}

func zeroValue(kind Kind) Value {
	switch kind {
	case KindHash:
		return Value{Kind: KindHash, Hash: make(map[string][]byte)}
	case KindList:
		return Value{Kind: KindList}
	case KindSet:
		return Value{Kind: KindSet, Set: make(map[string]struct{})}
	case KindSortedSet:
		return Value{Kind: KindSortedSet, ZSet: make(map[string]float64)}
	default:
		return Value{Kind: KindString}
	}
}

// --- strings ---

// Append appends suffix to key's string value (creating it if absent),
// returning the resulting length.
func (e *Engine) Append(key string, suffix []byte) (int, error) {
	ent, err := e.getOrCreate(key, KindString)
	if err != nil {
		return 0, err
	}
	ent.value.Str = append(ent.value.Str, suffix...)
	return len(ent.value.Str), nil
}

// StrLen returns the byte length of key's string value, 0 if absent.
func (e *Engine) StrLen(key string) (int, error) {
	ent, ok := e.get(key)
	if !ok {
		return 0, nil
	}
	if ent.value.Kind != KindString {
		return 0, ErrWrongType
	}
	return len(ent.value.Str), nil
}

// GetSet atomically sets key to value and returns the previous value (and
// whether it existed).
func (e *Engine) GetSet(key string, value []byte) ([]byte, bool, error) {
	ent, ok := e.get(key)
	var old []byte
	existed := false
	if ok {
		if ent.value.Kind != KindString {
			return nil, false, ErrWrongType
		}
		old = ent.value.Str
		existed = true
	}
	e.data[key] = &entry{value: NewString(value)}
	return old, existed, nil
}

// SetNX sets key to value only if it doesn't already exist, returning
// whether the set happened.
func (e *Engine) SetNX(key string, value []byte) bool {
	if _, ok := e.get(key); ok {
		return false
	}
	e.data[key] = &entry{value: NewString(value)}
	return true
}

// --- hashes ---

func (e *Engine) HSet(key string, field string, value []byte) (bool, error) {
	ent, err := e.getOrCreate(key, KindHash)
	if err != nil {
		return false, err
	}
	_, existed := ent.value.Hash[field]
	ent.value.Hash[field] = append([]byte(nil), value...)
	return !existed, nil
}

func (e *Engine) HGet(key, field string) ([]byte, bool, error) {
	ent, ok := e.get(key)
	if !ok {
		return nil, false, nil
	}
	if ent.value.Kind != KindHash {
		return nil, false, ErrWrongType
	}
	v, ok := ent.value.Hash[field]
	return v, ok, nil
}

func (e *Engine) HDel(key string, fields ...string) (int, error) {
	ent, ok := e.get(key)
	if !ok {
		return 0, nil
	}
	if ent.value.Kind != KindHash {
		return 0, ErrWrongType
	}
	n := 0
	for _, f := range fields {
		if _, ok := ent.value.Hash[f]; ok {
			delete(ent.value.Hash, f)
			n++
		}
	}
	return n, nil
}

func (e *Engine) HGetAll(key string) (map[string][]byte, error) {
	ent, ok := e.get(key)
	if !ok {
		return nil, nil
	}
	if ent.value.Kind != KindHash {
		return nil, ErrWrongType
	}
	return ent.value.Hash, nil
}

// --- lists ---

func (e *Engine) LPush(key string, values ...[]byte) (int, error) {
	ent, err := e.getOrCreate(key, KindList)
	if err != nil {
		return 0, err
	}
	// values alias the connection's read buffer; copy before storing.
	for _, v := range values {
		ent.value.List = append([][]byte{append([]byte(nil), v...)}, ent.value.List...)
	}
	return len(ent.value.List), nil
}

func (e *Engine) RPush(key string, values ...[]byte) (int, error) {
	ent, err := e.getOrCreate(key, KindList)
	if err != nil {
		return 0, err
	}
	for _, v := range values {
		ent.value.List = append(ent.value.List, append([]byte(nil), v...))
	}
	return len(ent.value.List), nil
}

func (e *Engine) LPop(key string) ([]byte, bool, error) {
	ent, ok := e.get(key)
	if !ok {
		return nil, false, nil
	}
	if ent.value.Kind != KindList {
		return nil, false, ErrWrongType
	}
	if len(ent.value.List) == 0 {
		return nil, false, nil
	}
	v := ent.value.List[0]
	ent.value.List = ent.value.List[1:]
	return v, true, nil
}

func (e *Engine) RPop(key string) ([]byte, bool, error) {
	ent, ok := e.get(key)
	if !ok {
		return nil, false, nil
	}
	if ent.value.Kind != KindList {
		return nil, false, ErrWrongType
	}
	n := len(ent.value.List)
	if n == 0 {
		return nil, false, nil
	}
	v := ent.value.List[n-1]
	ent.value.List = ent.value.List[:n-1]
	return v, true, nil
}

func (e *Engine) LLen(key string) (int, error) {
	ent, ok := e.get(key)
	if !ok {
		return 0, nil
	}
	if ent.value.Kind != KindList {
		return 0, ErrWrongType
	}
	return len(ent.value.List), nil
}

// LRange returns elements in [start, stop] with Redis-style negative
// indexing (-1 is the last element), clamped to the list bounds.
func (e *Engine) LRange(key string, start, stop int) ([][]byte, error) {
	ent, ok := e.get(key)
	if !ok {
		return nil, nil
	}
	if ent.value.Kind != KindList {
		return nil, ErrWrongType
	}
	n := len(ent.value.List)
	start = normalizeIndex(start, n)
	stop = normalizeIndex(stop, n)
	if start < 0 {
		start = 0
	}
	if stop >= n {
		stop = n - 1
	}
	if start > stop || n == 0 {
		return [][]byte{}, nil
	}
	return ent.value.List[start : stop+1], nil
}

func normalizeIndex(i, n int) int {
	if i < 0 {
		i = n + i
	}
	return i
}

// --- sets ---

func (e *Engine) SAdd(key string, members ...string) (int, error) {
	ent, err := e.getOrCreate(key, KindSet)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, m := range members {
		if _, ok := ent.value.Set[m]; !ok {
			ent.value.Set[m] = struct{}{}
			n++
		}
	}
	return n, nil
}

func (e *Engine) SRem(key string, members ...string) (int, error) {
	ent, ok := e.get(key)
	if !ok {
		return 0, nil
	}
	if ent.value.Kind != KindSet {
		return 0, ErrWrongType
	}
	n := 0
	for _, m := range members {
		if _, ok := ent.value.Set[m]; ok {
			delete(ent.value.Set, m)
			n++
		}
	}
	return n, nil
}

func (e *Engine) SMembers(key string) ([]string, error) {
	ent, ok := e.get(key)
	if !ok {
		return []string{}, nil
	}
	if ent.value.Kind != KindSet {
		return nil, ErrWrongType
	}
	out := make([]string, 0, len(ent.value.Set))
	for m := range ent.value.Set {
		out = append(out, m)
	}
	return out, nil
}

func (e *Engine) SIsMember(key, member string) (bool, error) {
	ent, ok := e.get(key)
	if !ok {
		return false, nil
	}
	if ent.value.Kind != KindSet {
		return false, ErrWrongType
	}
	_, ok = ent.value.Set[member]
	return ok, nil
}

// --- sorted sets ---

func (e *Engine) ZAdd(key string, member string, score float64) (bool, error) {
	ent, err := e.getOrCreate(key, KindSortedSet)
	if err != nil {
		return false, err
	}
	_, existed := ent.value.ZSet[member]
	ent.value.ZSet[member] = score
	ent.value.zdirty = true
	return !existed, nil
}

func (e *Engine) ZScore(key, member string) (float64, bool, error) {
	ent, ok := e.get(key)
	if !ok {
		return 0, false, nil
	}
	if ent.value.Kind != KindSortedSet {
		return 0, false, ErrWrongType
	}
	score, ok := ent.value.ZSet[member]
	return score, ok, nil
}

func (e *Engine) ZRange(key string, start, stop int) ([]string, error) {
	ent, ok := e.get(key)
	if !ok {
		return []string{}, nil
	}
	if ent.value.Kind != KindSortedSet {
		return nil, ErrWrongType
	}
	members := ent.value.sortedMembers()
	n := len(members)
	start = normalizeIndex(start, n)
	stop = normalizeIndex(stop, n)
	if start < 0 {
		start = 0
	}
	if stop >= n {
		stop = n - 1
	}
	if start > stop || n == 0 {
		return []string{}, nil
	}
	out := make([]string, stop-start+1)
	copy(out, members[start:stop+1])
	return out, nil
}
