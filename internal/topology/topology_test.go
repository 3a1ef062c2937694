package topology

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestPeerSetUpsertAndAll(t *testing.T) {
	ps := NewPeerSet()
	ps.Upsert(ReplicaInfo{ID: "r1", GossipAddr: "10.0.0.1:7000"})
	ps.Upsert(ReplicaInfo{ID: "r2", GossipAddr: "10.0.0.2:7000"})

	all := ps.All()
	if len(all) != 2 {
		t.Fatalf("All() = %d peers, want 2", len(all))
	}

	info, ok := ps.Get("r1")
	if !ok || info.GossipAddr != "10.0.0.1:7000" {
		t.Fatalf("Get(r1) = %+v, %v", info, ok)
	}

	ps.Remove("r1")
	if _, ok := ps.Get("r1"); ok {
		t.Fatal("r1 should have been removed")
	}
}

func TestPeerSetIDs(t *testing.T) {
	ps := NewPeerSet()
	ps.Upsert(ReplicaInfo{ID: "a"})
	ps.Upsert(ReplicaInfo{ID: "b"})
	ids := ps.IDs()
	if len(ids) != 2 {
		t.Fatalf("IDs() = %v, want 2 entries", ids)
	}
}

func TestPostJSONAndGetJSON(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/echo", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		json.NewEncoder(w).Encode(body)
	})
	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	var out map[string]string
	if err := PostJSON(context.Background(), srv.URL+"/echo", map[string]string{"hello": "world"}, &out); err != nil {
		t.Fatalf("PostJSON error: %v", err)
	}
	if out["hello"] != "world" {
		t.Fatalf("PostJSON roundtrip = %+v", out)
	}

	var status map[string]string
	if err := GetJSON(context.Background(), srv.URL+"/status", &status); err != nil {
		t.Fatalf("GetJSON error: %v", err)
	}
	if status["status"] != "ok" {
		t.Fatalf("GetJSON = %+v", status)
	}
}
