package store

import (
	"strconv"
	"strings"

	"github.com/dreamware/ridgecache/internal/metrics"
	"github.com/dreamware/ridgecache/internal/resp"
)

// Executor applies parsed Commands to one Engine, producing RESP replies.
// Like Engine, it is owned by a single shard actor goroutine; it never
// blocks and never yields.
type Executor struct {
	Engine  *Engine
	Metrics metrics.Recorder
}

// NewExecutor wires an Executor over engine, recording command outcomes to
// rec (metrics.NoOp{} is a valid choice when no recorder is configured).
func NewExecutor(engine *Engine, rec metrics.Recorder) *Executor {
	if rec == nil {
		rec = metrics.NoOp{}
	}
	return &Executor{Engine: engine, Metrics: rec}
}

func arityErr(name string) resp.Value {
	return resp.Errorf("ERR wrong number of arguments for '%s'", strings.ToLower(name))
}

func wrongTypeErr() resp.Value {
	return resp.Error(ErrWrongType.Error())
}

// Execute dispatches cmd and returns its RESP reply. Every typed-operation
// error (WRONGTYPE, out-of-range, arity) becomes a RESP error reply;
// command errors don't terminate the connection.
func (ex *Executor) Execute(cmd Command) resp.Value {
	reply := ex.dispatch(cmd)
	ex.Metrics.RecordCommand(cmd.Name, 0, reply.Kind != resp.KindError)
	return reply
}

func (ex *Executor) dispatch(cmd Command) resp.Value {
	switch cmd.Name {
	case "PING":
		if len(cmd.Args) == 0 {
			return resp.SimpleString("PONG")
		}
		if len(cmd.Args) == 1 {
			return resp.BulkString(cmd.Args[0])
		}
		return arityErr(cmd.Name)

	case "FLUSHDB", "FLUSHALL":
		ex.Engine.Flush()
		return resp.SimpleString("OK")

	case "GET":
		if len(cmd.Args) != 1 {
			return arityErr(cmd.Name)
		}
		v, ok := ex.Engine.Get(string(cmd.Args[0]))
		if !ok {
			return resp.Nil
		}
		if v.Kind != KindString {
			return wrongTypeErr()
		}
		return resp.BulkString(v.Str)

	case "SET":
		if len(cmd.Args) != 2 {
			return arityErr(cmd.Name)
		}
		ex.Engine.Set(string(cmd.Args[0]), NewString(append([]byte(nil), cmd.Args[1]...)), 0)
		return resp.SimpleString("OK")

	case "SETEX":
		if len(cmd.Args) != 3 {
			return arityErr(cmd.Name)
		}
		secs, err := strconv.ParseInt(string(cmd.Args[1]), 10, 64)
		if err != nil || secs <= 0 {
			return resp.Error("ERR invalid expire time in 'setex' command")
		}
		ex.Engine.Set(string(cmd.Args[0]), NewString(append([]byte(nil), cmd.Args[2]...)), uint64(secs)*1000)
		return resp.SimpleString("OK")

	case "SETNX":
		if len(cmd.Args) != 2 {
			return arityErr(cmd.Name)
		}
		if ex.Engine.SetNX(string(cmd.Args[0]), append([]byte(nil), cmd.Args[1]...)) {
			return resp.Integer(1)
		}
		return resp.Integer(0)

	case "GETSET":
		if len(cmd.Args) != 2 {
			return arityErr(cmd.Name)
		}
		old, existed, err := ex.Engine.GetSet(string(cmd.Args[0]), append([]byte(nil), cmd.Args[1]...))
		if err != nil {
			return wrongTypeErr()
		}
		if !existed {
			return resp.Nil
		}
		return resp.BulkString(old)

	case "APPEND":
		if len(cmd.Args) != 2 {
			return arityErr(cmd.Name)
		}
		n, err := ex.Engine.Append(string(cmd.Args[0]), cmd.Args[1])
		if err != nil {
			return wrongTypeErr()
		}
		return resp.Integer(int64(n))

	case "STRLEN":
		if len(cmd.Args) != 1 {
			return arityErr(cmd.Name)
		}
		n, err := ex.Engine.StrLen(string(cmd.Args[0]))
		if err != nil {
			return wrongTypeErr()
		}
		return resp.Integer(int64(n))

	case "MGET":
		if len(cmd.Args) == 0 {
			return arityErr(cmd.Name)
		}
		elems := make([]resp.Value, len(cmd.Args))
		for i, k := range cmd.Args {
			v, ok := ex.Engine.Get(string(k))
			if !ok || v.Kind != KindString {
				elems[i] = resp.Nil
				continue
			}
			elems[i] = resp.BulkString(v.Str)
		}
		return resp.Array(elems...)

	case "MSET":
		if len(cmd.Args) == 0 || len(cmd.Args)%2 != 0 {
			return arityErr(cmd.Name)
		}
		for i := 0; i < len(cmd.Args); i += 2 {
			ex.Engine.Set(string(cmd.Args[i]), NewString(append([]byte(nil), cmd.Args[i+1]...)), 0)
		}
		return resp.SimpleString("OK")

	case "INCR":
		return ex.incrReply(cmd, 1)
	case "DECR":
		return ex.incrReply(cmd, -1)
	case "INCRBY":
		return ex.incrByReply(cmd, 1)
	case "DECRBY":
		return ex.incrByReply(cmd, -1)

	case "DEL":
		if len(cmd.Args) == 0 {
			return arityErr(cmd.Name)
		}
		n := ex.Engine.Del(bytesToStrings(cmd.Args)...)
		return resp.Integer(int64(n))

	case "EXISTS":
		n := ex.Engine.Exists(bytesToStrings(cmd.Args)...)
		return resp.Integer(int64(n))

	case "KEYS":
		if len(cmd.Args) != 1 {
			return arityErr(cmd.Name)
		}
		g := compileGlob(string(cmd.Args[0]))
		keys := ex.Engine.KeysMatching(g.Match)
		elems := make([]resp.Value, len(keys))
		for i, k := range keys {
			elems[i] = resp.BulkStringFrom(k)
		}
		return resp.Array(elems...)

	case "EXPIRE":
		if len(cmd.Args) != 2 {
			return arityErr(cmd.Name)
		}
		secs, err := strconv.ParseInt(string(cmd.Args[1]), 10, 64)
		if err != nil {
			return resp.Error("ERR value is not an integer or out of range")
		}
		if ex.Engine.Expire(string(cmd.Args[0]), secs) {
			return resp.Integer(1)
		}
		return resp.Integer(0)

	case "TTL":
		if len(cmd.Args) != 1 {
			return arityErr(cmd.Name)
		}
		return resp.Integer(ex.Engine.TTL(string(cmd.Args[0])))

	case "PERSIST":
		if len(cmd.Args) != 1 {
			return arityErr(cmd.Name)
		}
		if ex.Engine.Persist(string(cmd.Args[0])) {
			return resp.Integer(1)
		}
		return resp.Integer(0)

	case "HSET":
		if len(cmd.Args) != 3 {
			return arityErr(cmd.Name)
		}
		created, err := ex.Engine.HSet(string(cmd.Args[0]), string(cmd.Args[1]), cmd.Args[2])
		if err != nil {
			return wrongTypeErr()
		}
		if created {
			return resp.Integer(1)
		}
		return resp.Integer(0)

	case "HGET":
		if len(cmd.Args) != 2 {
			return arityErr(cmd.Name)
		}
		v, ok, err := ex.Engine.HGet(string(cmd.Args[0]), string(cmd.Args[1]))
		if err != nil {
			return wrongTypeErr()
		}
		if !ok {
			return resp.Nil
		}
		return resp.BulkString(v)

	case "HDEL":
		if len(cmd.Args) < 2 {
			return arityErr(cmd.Name)
		}
		n, err := ex.Engine.HDel(string(cmd.Args[0]), bytesToStrings(cmd.Args[1:])...)
		if err != nil {
			return wrongTypeErr()
		}
		return resp.Integer(int64(n))

	case "HGETALL":
		if len(cmd.Args) != 1 {
			return arityErr(cmd.Name)
		}
		m, err := ex.Engine.HGetAll(string(cmd.Args[0]))
		if err != nil {
			return wrongTypeErr()
		}
		elems := make([]resp.Value, 0, len(m)*2)
		for k, v := range m {
			elems = append(elems, resp.BulkStringFrom(k), resp.BulkString(v))
		}
		return resp.Array(elems...)

	case "LPUSH", "RPUSH":
		if len(cmd.Args) < 2 {
			return arityErr(cmd.Name)
		}
		var n int
		var err error
		if cmd.Name == "LPUSH" {
			n, err = ex.Engine.LPush(string(cmd.Args[0]), cmd.Args[1:]...)
		} else {
			n, err = ex.Engine.RPush(string(cmd.Args[0]), cmd.Args[1:]...)
		}
		if err != nil {
			return wrongTypeErr()
		}
		return resp.Integer(int64(n))

	case "LPOP":
		if len(cmd.Args) != 1 {
			return arityErr(cmd.Name)
		}
		v, ok, err := ex.Engine.LPop(string(cmd.Args[0]))
		if err != nil {
			return wrongTypeErr()
		}
		if !ok {
			return resp.Nil
		}
		return resp.BulkString(v)

	case "RPOP":
		if len(cmd.Args) != 1 {
			return arityErr(cmd.Name)
		}
		v, ok, err := ex.Engine.RPop(string(cmd.Args[0]))
		if err != nil {
			return wrongTypeErr()
		}
		if !ok {
			return resp.Nil
		}
		return resp.BulkString(v)

	case "LRANGE":
		if len(cmd.Args) != 3 {
			return arityErr(cmd.Name)
		}
		start, err1 := strconv.Atoi(string(cmd.Args[1]))
		stop, err2 := strconv.Atoi(string(cmd.Args[2]))
		if err1 != nil || err2 != nil {
			return resp.Error("ERR value is not an integer or out of range")
		}
		items, err := ex.Engine.LRange(string(cmd.Args[0]), start, stop)
		if err != nil {
			return wrongTypeErr()
		}
		elems := make([]resp.Value, len(items))
		for i, it := range items {
			elems[i] = resp.BulkString(it)
		}
		return resp.Array(elems...)

	case "LLEN":
		if len(cmd.Args) != 1 {
			return arityErr(cmd.Name)
		}
		n, err := ex.Engine.LLen(string(cmd.Args[0]))
		if err != nil {
			return wrongTypeErr()
		}
		return resp.Integer(int64(n))

	case "SADD":
		if len(cmd.Args) < 2 {
			return arityErr(cmd.Name)
		}
		n, err := ex.Engine.SAdd(string(cmd.Args[0]), bytesToStrings(cmd.Args[1:])...)
		if err != nil {
			return wrongTypeErr()
		}
		return resp.Integer(int64(n))

	case "SREM":
		if len(cmd.Args) < 2 {
			return arityErr(cmd.Name)
		}
		n, err := ex.Engine.SRem(string(cmd.Args[0]), bytesToStrings(cmd.Args[1:])...)
		if err != nil {
			return wrongTypeErr()
		}
		return resp.Integer(int64(n))

	case "SMEMBERS":
		if len(cmd.Args) != 1 {
			return arityErr(cmd.Name)
		}
		members, err := ex.Engine.SMembers(string(cmd.Args[0]))
		if err != nil {
			return wrongTypeErr()
		}
		elems := make([]resp.Value, len(members))
		for i, m := range members {
			elems[i] = resp.BulkStringFrom(m)
		}
		return resp.Array(elems...)

	case "SISMEMBER":
		if len(cmd.Args) != 2 {
			return arityErr(cmd.Name)
		}
		ok, err := ex.Engine.SIsMember(string(cmd.Args[0]), string(cmd.Args[1]))
		if err != nil {
			return wrongTypeErr()
		}
		if ok {
			return resp.Integer(1)
		}
		return resp.Integer(0)

	case "ZADD":
		if len(cmd.Args) != 3 {
			return arityErr(cmd.Name)
		}
		score, err := strconv.ParseFloat(string(cmd.Args[1]), 64)
		if err != nil {
			return resp.Error("ERR value is not a valid float")
		}
		created, err := ex.Engine.ZAdd(string(cmd.Args[0]), string(cmd.Args[2]), score)
		if err != nil {
			return wrongTypeErr()
		}
		if created {
			return resp.Integer(1)
		}
		return resp.Integer(0)

	case "ZRANGE":
		if len(cmd.Args) != 3 {
			return arityErr(cmd.Name)
		}
		start, err1 := strconv.Atoi(string(cmd.Args[1]))
		stop, err2 := strconv.Atoi(string(cmd.Args[2]))
		if err1 != nil || err2 != nil {
			return resp.Error("ERR value is not an integer or out of range")
		}
		members, err := ex.Engine.ZRange(string(cmd.Args[0]), start, stop)
		if err != nil {
			return wrongTypeErr()
		}
		elems := make([]resp.Value, len(members))
		for i, m := range members {
			elems[i] = resp.BulkStringFrom(m)
		}
		return resp.Array(elems...)

	case "ZSCORE":
		if len(cmd.Args) != 2 {
			return arityErr(cmd.Name)
		}
		score, ok, err := ex.Engine.ZScore(string(cmd.Args[0]), string(cmd.Args[1]))
		if err != nil {
			return wrongTypeErr()
		}
		if !ok {
			return resp.Nil
		}
		return resp.BulkStringFrom(strconv.FormatFloat(score, 'f', -1, 64))

	case "INFO":
		return resp.BulkStringFrom("# Server\r\nridgecache_mode:standalone\r\n")

	default:
		return resp.Errorf("ERR unknown command '%s'", cmd.Name)
	}
}

func (ex *Executor) incrReply(cmd Command, sign int64) resp.Value {
	if len(cmd.Args) != 1 {
		return arityErr(cmd.Name)
	}
	n, err := ex.Engine.Incr(string(cmd.Args[0]), sign)
	return incrResult(n, err)
}

func (ex *Executor) incrByReply(cmd Command, sign int64) resp.Value {
	if len(cmd.Args) != 2 {
		return arityErr(cmd.Name)
	}
	delta, err := strconv.ParseInt(string(cmd.Args[1]), 10, 64)
	if err != nil {
		return resp.Error("ERR value is not an integer or out of range")
	}
	n, err := ex.Engine.Incr(string(cmd.Args[0]), sign*delta)
	return incrResult(n, err)
}

func incrResult(n int64, err error) resp.Value {
	switch err {
	case nil:
		return resp.Integer(n)
	case ErrWrongType:
		return wrongTypeErr()
	default:
		return resp.Error(err.Error())
	}
}
