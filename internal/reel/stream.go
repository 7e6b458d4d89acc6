package reel

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/toasterreels/reels/internal/feed"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = (wsPongWait * 9) / 10
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
}

type snapshotMessage struct {
	Type    string        `json:"type"`
	Records []feed.Record `json:"records"`
}

// Stream upgrades to a websocket and pushes the full record set: once on
// connect, then after every store mutation, in receipt order. Each message
// is a complete replacement for the client's materialized list. The
// subscription tears down with the connection.
func (h *Handler) Stream(w http.ResponseWriter, r *http.Request) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("reel: websocket upgrade failed", "error", err)
		return
	}
	defer func() { _ = conn.Close() }()

	snapshots, unsubscribe := h.feed.Subscribe(r.Context())
	defer unsubscribe()

	// Reader: only control frames are expected; a read error means the
	// client went away.
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(wsPongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case snapshot, ok := <-snapshots:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(snapshotMessage{Type: "snapshot", Records: snapshot}); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
