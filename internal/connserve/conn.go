package connserve

import (
	"context"
	"errors"
	"io"
	"net"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dreamware/ridgecache/internal/bufpool"
	"github.com/dreamware/ridgecache/internal/metrics"
	"github.com/dreamware/ridgecache/internal/resp"
	"github.com/dreamware/ridgecache/internal/store"
)

// MaxBufferedBytes bounds how much unconsumed input a connection may
// accumulate before it's dropped as abusive.
const MaxBufferedBytes = 1 << 20 // 1 MiB

// Dispatcher routes one parsed command to wherever it's handled (normally
// internal/sharded.Router.Dispatch), decoupling connserve from the sharding
// package.
type Dispatcher interface {
	Dispatch(ctx context.Context, cmd store.Command) (resp.Value, error)
}

// Conn serves one client connection: read, parse, dispatch, encode, write,
// repeated until the connection closes or a protocol error occurs.
type Conn struct {
	id     string
	nc     net.Conn
	disp   Dispatcher
	pool   *bufpool.Pool
	rec    metrics.Recorder
	log    *logrus.Entry
	readTO time.Duration
}

// New wraps nc for serving. id is a caller-assigned connection identifier
// used only for logging and metrics tags (internal/server mints these from
// google/uuid).
func New(id string, nc net.Conn, disp Dispatcher, pool *bufpool.Pool, rec metrics.Recorder) *Conn {
	if rec == nil {
		rec = metrics.NoOp{}
	}
	return &Conn{
		id:   id,
		nc:   nc,
		disp: disp,
		pool: pool,
		rec:  rec,
		log:  logrus.WithField("component", "connserve").WithField("conn", id),
	}
}

// Serve runs the read/dispatch/write loop until ctx is canceled, the peer
// closes the connection, or a RESP protocol error forces a close. It always
// closes nc before returning.
func (c *Conn) Serve(ctx context.Context) {
	defer c.nc.Close()
	// Closing nc once ctx is canceled unblocks a pending Read, so Serve
	// returns on shutdown instead of waiting for the peer.
	served := make(chan struct{})
	defer close(served)
	go func() {
		select {
		case <-ctx.Done():
			c.nc.Close()
		case <-served:
		}
	}()
	c.rec.RecordConnection("open")
	defer c.rec.RecordConnection("close")

	if tc, ok := c.nc.(*net.TCPConn); ok {
		tc.SetNoDelay(true)
	}

	buf := c.pool.Acquire()
	defer c.pool.Release(buf)

	readChunk := make([]byte, 4096)
	writeBuf := make([]byte, 0, 4096)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		n, err := c.nc.Read(readChunk)
		if n > 0 {
			buf = append(buf, readChunk[:n]...)
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				c.log.WithError(err).Debug("connection read error")
			}
			return
		}
		if n == 0 {
			continue
		}

		if len(buf) > MaxBufferedBytes {
			c.log.Warn("connection exceeded max buffered bytes, closing")
			writeBuf = resp.Encode(writeBuf[:0], resp.Error("ERR input buffer limit exceeded"))
			c.nc.Write(writeBuf)
			return
		}

		writeBuf = writeBuf[:0]
		var consumedTotal int
		for {
			v, n, err := resp.Parse(buf[consumedTotal:])
			if err == resp.ErrIncomplete {
				break
			}
			if err != nil {
				var perr *resp.ProtocolError
				if errors.As(err, &perr) {
					writeBuf = resp.Encode(writeBuf, resp.Errorf("ERR Protocol error: %s", perr.Reason))
					c.nc.Write(writeBuf)
					return
				}
				return
			}
			consumedTotal += n

			// A frame that isn't an array of bulk strings is a protocol
			// error, same as malformed framing: reply once and close.
			cmd, cerr := store.ParseCommand(v)
			if cerr != nil {
				writeBuf = resp.Encode(writeBuf, resp.Error("ERR Protocol error: invalid command frame"))
				c.nc.Write(writeBuf)
				return
			}

			reply, derr := c.disp.Dispatch(ctx, cmd)
			if derr != nil {
				writeBuf = resp.Encode(writeBuf, resp.Errorf("ERR %s", derr.Error()))
				continue
			}
			writeBuf = resp.Encode(writeBuf, reply)
		}

		if consumedTotal > 0 {
			remaining := len(buf) - consumedTotal
			copy(buf, buf[consumedTotal:])
			buf = buf[:remaining]
		}

		if len(writeBuf) > 0 {
			if _, err := c.nc.Write(writeBuf); err != nil {
				return
			}
		}
	}
}
