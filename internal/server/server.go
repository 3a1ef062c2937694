package server

import (
	"context"
	"net"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"github.com/dreamware/ridgecache/internal/bufpool"
	"github.com/dreamware/ridgecache/internal/connserve"
	"github.com/dreamware/ridgecache/internal/metrics"
)

// DefaultConnLimit bounds the number of connections served concurrently
// (REDIS_CONN_LIMIT), independent of the OS file descriptor limit.
const DefaultConnLimit = 10000

// Server listens on one TCP address and serves RESP connections until
// stopped.
type Server struct {
	addr    string
	disp    connserve.Dispatcher
	pool    *bufpool.Pool
	metrics metrics.Recorder
	connSem *semaphore.Weighted
	active  int64
	log     *logrus.Entry

	listener net.Listener
	wg       sync.WaitGroup
}

// New builds a Server. rec may be nil. connLimit <= 0 uses DefaultConnLimit.
func New(addr string, disp connserve.Dispatcher, connLimit int, rec metrics.Recorder) *Server {
	if connLimit <= 0 {
		connLimit = DefaultConnLimit
	}
	if rec == nil {
		rec = metrics.NoOp{}
	}
	return &Server{
		addr:    addr,
		disp:    disp,
		pool:    bufpool.New(256, bufpool.DefaultNominalCapacity),
		metrics: rec,
		connSem: semaphore.NewWeighted(int64(connLimit)),
		log:     logrus.WithField("component", "server"),
	}
}

// ListenAndServe binds addr and runs the accept loop until ctx is canceled
// or the listener fails. It blocks; callers typically run it in its own
// goroutine and cancel ctx to shut down.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.listener = ln
	s.log.WithField("addr", s.addr).Info("listening")

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		nc, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				s.wg.Wait()
				return nil
			default:
				s.log.WithError(err).Warn("accept error")
				return err
			}
		}

		if err := s.connSem.Acquire(ctx, 1); err != nil {
			nc.Close()
			continue
		}

		id := uuid.New().String()
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.connSem.Release(1)
			s.metrics.SetConnections(int(atomic.AddInt64(&s.active, 1)))
			defer func() {
				s.metrics.SetConnections(int(atomic.AddInt64(&s.active, -1)))
			}()
			c := connserve.New(id, nc, s.disp, s.pool, s.metrics)
			c.Serve(ctx)
		}()
	}
}

// Addr returns the listener's actual address, valid only after
// ListenAndServe has started listening. Used by tests that bind to ":0".
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}
