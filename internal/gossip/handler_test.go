package gossip

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/dreamware/ridgecache/internal/crdt"
	"github.com/dreamware/ridgecache/internal/metrics"
	"github.com/dreamware/ridgecache/internal/store"
	"github.com/dreamware/ridgecache/internal/topology"
)

func TestActorHTTPHandlerAppliesDeltas(t *testing.T) {
	_, rshards, router := newTestReplica(t, "b", 2)
	a := New("b", topology.NewPeerSet(), rshards, router, metrics.NoOp{})
	handler := a.HTTPHandler(nil)

	payload, _ := store.Encode(store.NewString([]byte("v")))
	batch := Batch{Deltas: []crdt.Delta{
		{Key: "k", Value: crdt.Value{Payload: payload, Lamport: crdt.Lamport{ReplicaID: "a", Time: 1}}, OriginReplica: "a"},
	}}
	body, err := json.Marshal(batch)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	req := httptest.NewRequest("POST", "/gossip/deltas", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	ctx := req.Context()
	reply, err := router.Dispatch(ctx, store.Command{Name: "GET", Args: [][]byte{[]byte("k")}})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(reply.Str) != "v" {
		t.Fatalf("GET after handler = %q, want v", reply.Str)
	}
}

func TestActorHTTPHandlerRejectsGet(t *testing.T) {
	a := New("b", topology.NewPeerSet(), nil, nil, metrics.NoOp{})
	handler := a.HTTPHandler(nil)

	req := httptest.NewRequest("GET", "/gossip/deltas", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != 405 {
		t.Fatalf("status = %d, want 405", rec.Code)
	}
}
