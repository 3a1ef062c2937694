package store

import (
	"strings"

	"github.com/dreamware/ridgecache/internal/resp"
)

// Command is a parsed RESP command: an upper-cased name plus its raw
// argument bytes (still aliasing the connection's read buffer at parse
// time — internal/connserve does not reuse that buffer until the command
// has been handled, and the Executor copies any bytes it stores).
type Command struct {
	Name string
	Args [][]byte
}

// ParseCommand converts a RESP array-of-bulk-strings Value into a Command.
// Returns a *ProtocolError-compatible error if v isn't a non-empty array of
// bulk strings — malformed at the RESP level, not merely an unknown command.
func ParseCommand(v resp.Value) (Command, error) {
	if v.Kind != resp.KindArray || len(v.Elems) == 0 {
		return Command{}, &resp.ProtocolError{Reason: "expected non-empty array command"}
	}
	args := make([][]byte, len(v.Elems))
	for i, e := range v.Elems {
		if e.Kind != resp.KindBulkString {
			return Command{}, &resp.ProtocolError{Reason: "command arguments must be bulk strings"}
		}
		args[i] = e.Str
	}
	return Command{
		Name: strings.ToUpper(string(args[0])),
		Args: args[1:],
	}, nil
}

// Keys returns the set of keys this command addresses; internal/sharded
// routes a single-key command by its first key. Commands not handled here
// (fan-out commands) return nil.
func (c Command) Keys() []string {
	switch c.Name {
	case "GET", "SET", "SETEX", "SETNX", "GETSET", "APPEND", "STRLEN",
		"INCR", "DECR", "INCRBY", "DECRBY",
		"EXPIRE", "TTL", "PERSIST",
		"HSET", "HGET", "HDEL", "HGETALL",
		"LPUSH", "RPUSH", "LPOP", "RPOP", "LRANGE", "LLEN",
		"SADD", "SREM", "SMEMBERS", "SISMEMBER",
		"ZADD", "ZRANGE", "ZSCORE":
		if len(c.Args) > 0 {
			return []string{string(c.Args[0])}
		}
		return nil
	case "DEL":
		return bytesToStrings(c.Args)
	case "EXISTS":
		return bytesToStrings(c.Args)
	case "MGET":
		return bytesToStrings(c.Args)
	case "MSET":
		var keys []string
		for i := 0; i+1 < len(c.Args); i += 2 {
			keys = append(keys, string(c.Args[i]))
		}
		return keys
	default:
		return nil
	}
}

func bytesToStrings(in [][]byte) []string {
	out := make([]string, len(in))
	for i, b := range in {
		out[i] = string(b)
	}
	return out
}

// IsFanOut reports whether this command must be routed to every shard.
func (c Command) IsFanOut() bool {
	switch c.Name {
	case "FLUSHDB", "FLUSHALL", "KEYS", "INFO", "PING":
		return true
	default:
		return false
	}
}

// IsReplicated reports whether a successful mutation from this command
// should be recorded as a replication delta. FLUSHDB, FLUSHALL and
// read-only/administrative commands are never replicated.
func (c Command) IsReplicated() bool {
	switch c.Name {
	case "FLUSHDB", "FLUSHALL", "PING", "INFO",
		"GET", "MGET", "EXISTS", "KEYS", "TTL",
		"STRLEN", "HGET", "HGETALL", "LRANGE", "LLEN",
		"SMEMBERS", "SISMEMBER", "ZRANGE", "ZSCORE":
		return false
	default:
		return true
	}
}
