package gossip

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dreamware/ridgecache/internal/buggify"
	"github.com/dreamware/ridgecache/internal/crdt"
	"github.com/dreamware/ridgecache/internal/store"
	"github.com/dreamware/ridgecache/internal/topology"
)

func TestHTTPTransportSendPostsBatchJSON(t *testing.T) {
	var gotBatch Batch
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != gossipDeltasPath {
			t.Errorf("request path = %s, want %s", r.URL.Path, gossipDeltasPath)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBatch); err != nil {
			t.Errorf("decode request body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	payload, _ := store.Encode(store.NewString([]byte("v")))
	batch := Batch{Epoch: 7, Deltas: []crdt.Delta{
		{Key: "k", Value: crdt.Value{Payload: payload, Lamport: crdt.Lamport{ReplicaID: "a", Time: 1}}, OriginReplica: "a"},
	}}

	tr := NewHTTPTransport(buggify.NewConfig(buggify.PresetDisabled))
	peer := topology.ReplicaInfo{ID: "b", GossipAddr: srv.Listener.Addr().String()}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := tr.Send(ctx, peer, batch); err != nil {
		t.Fatalf("Send: %v", err)
	}

	if gotBatch.Epoch != 7 || len(gotBatch.Deltas) != 1 || gotBatch.Deltas[0].Key != "k" {
		t.Fatalf("server observed batch = %+v, want epoch 7 with key k", gotBatch)
	}
}

func TestHTTPTransportDroppedPacketReturnsNoError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("server should never be contacted when the send is dropped")
	}))
	defer srv.Close()

	faults := buggify.NewConfig(buggify.PresetChaos)
	faults.SetMultiplier(1000) // clamps packet_drop's threshold to 1: always triggers
	tr := NewHTTPTransport(faults)

	peer := topology.ReplicaInfo{ID: "b", GossipAddr: srv.Listener.Addr().String()}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := tr.Send(ctx, peer, Batch{}); err != nil {
		t.Fatalf("Send with dropped packet should report no error: %v", err)
	}
}

func TestInMemoryTransportDeliversToRegisteredActor(t *testing.T) {
	_, rshards, router := newTestReplica(t, "b", 2)
	receiver := New("b", topology.NewPeerSet(), rshards, router, nil)

	tr := NewInMemoryTransport()
	tr.Register("b-addr", receiver)

	payload, _ := store.Encode(store.NewString([]byte("v")))
	batch := Batch{Deltas: []crdt.Delta{
		{Key: "k", Value: crdt.Value{Payload: payload, Lamport: crdt.Lamport{ReplicaID: "a", Time: 1}}, OriginReplica: "a"},
	}}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := tr.Send(ctx, topology.ReplicaInfo{GossipAddr: "b-addr"}, batch); err != nil {
		t.Fatalf("Send: %v", err)
	}

	reply, err := router.Dispatch(ctx, store.Command{Name: "GET", Args: [][]byte{[]byte("k")}})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(reply.Str) != "v" {
		t.Fatalf("GET after delivery = %q, want v", reply.Str)
	}
}

func TestInMemoryTransportUnknownPeerErrors(t *testing.T) {
	tr := NewInMemoryTransport()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := tr.Send(ctx, topology.ReplicaInfo{GossipAddr: "nowhere"}, Batch{}); err == nil {
		t.Fatal("expected an error sending to an unregistered peer")
	}
}
