package reel

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/toasterreels/reels/internal/feed"
	"github.com/toasterreels/reels/internal/store"
)

func TestStreamPushesSnapshots(t *testing.T) {
	mem := store.NewMemory(feed.NewController(feed.SamplePool()))
	h := localHandler(mem)

	r := chi.NewRouter()
	r.Get("/api/feed/ws", h.Stream)
	srv := httptest.NewServer(r)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/feed/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()
	defer resp.Body.Close()

	var msg snapshotMessage
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read initial snapshot: %v", err)
	}
	if msg.Type != "snapshot" {
		t.Errorf("type = %q, want snapshot", msg.Type)
	}
	if len(msg.Records) != 3 {
		t.Fatalf("initial snapshot has %d records, want 3", len(msg.Records))
	}

	// Every mutation pushes a complete replacement set.
	if _, ok := mem.ExtendNearEnd(); !ok {
		t.Fatal("extend failed")
	}
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read pushed snapshot: %v", err)
	}
	if len(msg.Records) != 4 {
		t.Errorf("pushed snapshot has %d records, want 4", len(msg.Records))
	}
}
