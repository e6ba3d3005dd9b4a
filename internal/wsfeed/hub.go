// Package wsfeed broadcasts emitted view lines to connected websocket
// viewers. Grounded in the teacher's wsHandler/AppState broadcaster in
// main.go, rewritten to fan out raw emitted text instead of Binance/CTP
// JSON snapshots.
package wsfeed

import (
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Hub fans out every line written to it to all connected viewers.
// It implements io.Writer so an Orchestrator can write straight to it.
type Hub struct {
	mu      sync.Mutex
	viewers map[*viewer]struct{}
}

type viewer struct {
	conn *websocket.Conn
	send chan []byte
}

// NewHub constructs an empty broadcast hub.
func NewHub() *Hub {
	return &Hub{viewers: make(map[*viewer]struct{})}
}

// Write implements io.Writer, broadcasting p to every connected viewer.
// It never blocks on a slow viewer: a full send buffer drops the line
// for that viewer rather than stalling the orchestrator.
func (h *Hub) Write(p []byte) (int, error) {
	line := append([]byte(nil), p...)
	h.mu.Lock()
	for v := range h.viewers {
		select {
		case v.send <- line:
		default:
		}
	}
	h.mu.Unlock()
	return len(p), nil
}

// Handler returns an http.HandlerFunc that upgrades to a websocket and
// streams every subsequent Write to the new connection.
func (h *Hub) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("wsfeed: upgrade failed: %v", err)
			return
		}
		v := &viewer{conn: conn, send: make(chan []byte, 256)}
		h.mu.Lock()
		h.viewers[v] = struct{}{}
		h.mu.Unlock()

		go h.pump(v)
	}
}

func (h *Hub) pump(v *viewer) {
	defer func() {
		h.mu.Lock()
		delete(h.viewers, v)
		h.mu.Unlock()
		v.conn.Close()
	}()
	for line := range v.send {
		if err := v.conn.WriteMessage(websocket.TextMessage, line); err != nil {
			return
		}
	}
}
