// Package main implements ridgecached, the single-binary RESP2-compatible
// in-memory key-value server. A process owns a fixed number of shards, each
// running as its own actor goroutine, fanned out to by internal/sharded and
// served over TCP by internal/server. When REDIS_REPLICATION is not "off",
// the process also runs the gossip actor that propagates writes to the other
// replicas named in REDIS_PEERS.
//
// Configuration is read once at startup from the environment:
//
//	REDIS_PORT               listen port for client connections (default 6380)
//	REDIS_SHARDS              number of shards (default 16)
//	REDIS_CONN_LIMIT          max concurrent client connections (default 10000)
//	REDIS_SWEEP_INTERVAL_MS   active-eviction tick per shard (default 1000)
//	REDIS_REPLICATION         off | lww | causal (default off)
//	REDIS_REPLICA_ID          this replica's id (required unless replication is off)
//	REDIS_PEERS               comma-separated id=host:port peer list
//	REDIS_GOSSIP_LISTEN       listen address for inbound gossip (default :7380)
//	REDIS_BASE_RF             replication factor for cold keys (default 3)
//	REDIS_HOT_RF              replication factor for hot keys (default 5)
//	REDIS_VNODES              virtual nodes per replica on the hash ring (default 150)
//	REDIS_BUGGIFY             disabled | calm | moderate | chaos (default disabled)
package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dreamware/ridgecache/internal/adaptive"
	"github.com/dreamware/ridgecache/internal/buggify"
	"github.com/dreamware/ridgecache/internal/clock"
	"github.com/dreamware/ridgecache/internal/connserve"
	"github.com/dreamware/ridgecache/internal/crdt"
	"github.com/dreamware/ridgecache/internal/deltasink"
	"github.com/dreamware/ridgecache/internal/gossip"
	"github.com/dreamware/ridgecache/internal/metrics"
	"github.com/dreamware/ridgecache/internal/replshard"
	"github.com/dreamware/ridgecache/internal/resp"
	"github.com/dreamware/ridgecache/internal/ring"
	"github.com/dreamware/ridgecache/internal/server"
	"github.com/dreamware/ridgecache/internal/shard"
	"github.com/dreamware/ridgecache/internal/sharded"
	"github.com/dreamware/ridgecache/internal/store"
	"github.com/dreamware/ridgecache/internal/topology"
	"github.com/dreamware/ridgecache/internal/ttlsweep"
)

// logFatal is a variable so tests can intercept a fatal configuration error
// without terminating the test process.
var logFatal = logrus.StandardLogger().Fatalf

func main() {
	log := logrus.WithField("component", "main")

	port := getenvInt("REDIS_PORT", 6380)
	numShards := getenvInt("REDIS_SHARDS", 16)
	connLimit := getenvInt("REDIS_CONN_LIMIT", server.DefaultConnLimit)
	sweepMs := getenvInt("REDIS_SWEEP_INTERVAL_MS", int(ttlsweep.DefaultInterval/time.Millisecond))

	rec := metrics.NoOp{}

	clk := clock.NewWall()
	shards := make([]*shard.Shard, numShards)
	for i := range shards {
		shards[i] = shard.New(i, clk, rec)
	}
	router := sharded.New(shards)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	for _, sh := range shards {
		go sh.Run(ctx)
	}

	sweeper := ttlsweep.New(shards, time.Duration(sweepMs)*time.Millisecond, rec)
	sweeper.Start(ctx)

	var disp connserve.Dispatcher = router
	var gossipActor *gossip.Actor
	var gossipSrv *http.Server
	var hotCtl *adaptive.Controller
	replMode := strings.ToLower(getenv("REDIS_REPLICATION", "off"))
	if replMode != "off" {
		gossipActor, gossipSrv, hotCtl = wireReplication(ctx, replMode, shards, router, rec, log)
		disp = &hotKeyDispatcher{next: router, ctl: hotCtl}
	}

	addr := fmt.Sprintf(":%d", port)
	srv := server.New(addr, disp, connLimit, rec)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- srv.ListenAndServe(ctx)
	}()

	log.WithField("addr", addr).WithField("shards", numShards).WithField("replication", replMode).
		Info("ridgecached started")

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case <-stop:
		log.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			log.WithError(err).Error("server stopped unexpectedly")
		}
	}

	cancel()
	sweeper.Stop()
	if hotCtl != nil {
		hotCtl.Stop()
	}
	if gossipActor != nil {
		gossipActor.Stop()
	}
	if gossipSrv != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := gossipSrv.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Warn("gossip server shutdown error")
		}
	}
	for _, sh := range shards {
		sh.Stop()
	}
	log.Info("ridgecached stopped")
}

// wireReplication builds the replication stack: a ReplicatedShard per
// shard (each pushing local mutation deltas into its own deltasink.Sink), a
// hash ring over REDIS_PEERS (optionally backed by an adaptive.Controller
// for hot-key replication factor), and a gossip.Actor that drains every
// shard's sink, fans deltas out to the ring's chosen peers, and serves
// inbound deltas at REDIS_GOSSIP_LISTEN.
func wireReplication(ctx context.Context, mode string, shards []*shard.Shard, router *sharded.Router, rec metrics.Recorder, log *logrus.Entry) (*gossip.Actor, *http.Server, *adaptive.Controller) {
	selfID := crdt.ReplicaID(mustGetenv("REDIS_REPLICA_ID"))
	peers := parsePeers(getenv("REDIS_PEERS", ""))
	gossipListen := getenv("REDIS_GOSSIP_LISTEN", ":7380")
	vnodes := getenvInt("REDIS_VNODES", ring.DefaultVirtualNodes)
	baseRF := getenvInt("REDIS_BASE_RF", adaptive.DefaultBaseRF)
	hotRF := getenvInt("REDIS_HOT_RF", adaptive.DefaultHotRF)
	buggifyPreset := buggify.Preset(strings.ToLower(getenv("REDIS_BUGGIFY", string(buggify.PresetDisabled))))

	replicaClock := replshard.NewReplicaClock(selfID)
	sinks := make([]*deltasink.Sink, len(shards))
	rshards := make([]*replshard.ReplicatedShard, len(shards))
	for i, sh := range shards {
		sinks[i] = deltasink.New(deltasink.DefaultCapacity)
		rshards[i] = replshard.Wire(sh, selfID, replicaClock, sinks[i])
		rshards[i].SetCausal(mode == "causal")
	}

	hotCtl := adaptive.New(adaptive.Config{BaseRF: baseRF, HotRF: hotRF}, clock.NewWall(), log)
	hotCtl.Start(ctx)

	replicaIDs := append([]crdt.ReplicaID{selfID}, peers.IDs()...)
	hashRing := ring.New(replicaIDs, vnodes, hotCtl)

	actor := gossip.New(selfID, peers, rshards, router, rec)
	actor.SetRouter(hashRing)
	actor.SetSelective(true)

	faults := buggify.NewConfig(buggifyPreset)
	transport := gossip.NewHTTPTransport(faults)
	actor.Run(ctx, transport, gossip.DefaultTickInterval)

	go drainSinks(ctx, sinks, actor)

	mux := http.NewServeMux()
	mux.Handle("/gossip/deltas", actor.HTTPHandler(log))
	gossipSrv := &http.Server{
		Addr:              gossipListen,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.WithField("addr", gossipListen).Info("gossip listener started")
		if err := gossipSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("gossip listener stopped unexpectedly")
		}
	}()

	return actor, gossipSrv, hotCtl
}

// hotKeyDispatcher feeds every dispatched command's keys into the adaptive
// controller before routing it, so the hot-key detector observes the live
// client access stream rather than only replicated writes.
type hotKeyDispatcher struct {
	next connserve.Dispatcher
	ctl  *adaptive.Controller
}

func (d *hotKeyDispatcher) Dispatch(ctx context.Context, cmd store.Command) (resp.Value, error) {
	for _, k := range cmd.Keys() {
		d.ctl.RecordAccess(k)
	}
	return d.next.Dispatch(ctx, cmd)
}

// drainSinks forwards every shard's locally produced deltas into the gossip
// actor's outbound queues until ctx is canceled. One goroutine per sink keeps
// a slow shard's backlog from blocking another's.
func drainSinks(ctx context.Context, sinks []*deltasink.Sink, actor *gossip.Actor) {
	for _, sink := range sinks {
		sink := sink
		go func() {
			for {
				select {
				case d := <-sink.Chan():
					actor.QueueDeltas([]crdt.Delta{d})
				case <-ctx.Done():
					return
				}
			}
		}()
	}
}

// parsePeers parses REDIS_PEERS ("id=host:port,id2=host2:port2") into a
// topology.PeerSet. Entries that don't match the expected shape are skipped
// with a log warning rather than aborting startup.
func parsePeers(raw string) *topology.PeerSet {
	set := topology.NewPeerSet()
	if raw == "" {
		return set
	}
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		idAddr := strings.SplitN(entry, "=", 2)
		if len(idAddr) != 2 {
			logrus.WithField("entry", entry).Warn("ignoring malformed REDIS_PEERS entry")
			continue
		}
		if _, _, err := net.SplitHostPort(idAddr[1]); err != nil {
			logrus.WithField("entry", entry).WithError(err).Warn("ignoring malformed REDIS_PEERS entry")
			continue
		}
		set.Upsert(topology.ReplicaInfo{ID: crdt.ReplicaID(idAddr[0]), GossipAddr: idAddr[1]})
	}
	return set
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func mustGetenv(k string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	logFatal("missing env %s", k)
	return ""
}

func getenvInt(k string, def int) int {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		logFatal("invalid int for %s: %v", k, err)
		return def
	}
	return n
}
