// Package ws streams committed lifecycle events to WebSocket
// subscribers. The hub is the engine's Notifier: every announce and
// holder fact fans out to all connected clients.
package ws

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/maddasher/titlebot/internal/core"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

const writeTimeout = 5 * time.Second

type Hub struct {
	mu    sync.RWMutex
	conns map[*websocket.Conn]struct{}
}

func NewHub() *Hub {
	return &Hub{conns: make(map[*websocket.Conn]struct{})}
}

// Handler accepts a subscriber on /ws/events and parks it until the
// client disconnects. Inbound frames are drained and ignored; the
// stream is one-way.
func (h *Hub) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}

		h.add(conn)
		defer h.remove(conn)

		ctx := r.Context()
		for {
			var v any
			if err := wsjson.Read(ctx, conn, &v); err != nil {
				return
			}
		}
	}
}

// Broadcast writes event to every subscriber. A connection that misses
// the write deadline is closed and dropped in the background so one
// slow client cannot stall the rest.
func (h *Hub) Broadcast(event any) {
	for _, conn := range h.snapshot() {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		err := wsjson.Write(ctx, conn, event)
		cancel()
		if err != nil {
			go func(conn *websocket.Conn) {
				conn.Close(websocket.StatusGoingAway, "write error")
				h.remove(conn)
			}(conn)
		}
	}
}

// Announce implements engine.Notifier.
func (h *Hub) Announce(channel string, n core.Notification) {
	h.Broadcast(map[string]any{
		"type":           "notification",
		"channel":        channel,
		"kind":           string(n.Kind),
		"title":          n.Title,
		"prior_holder":   n.PriorHolder,
		"next_holder":    n.NextHolder,
		"queue_position": n.QueuePosition,
	})
}

// HolderChanged implements engine.Notifier.
func (h *Hub) HolderChanged(title, prev, next string) {
	h.Broadcast(map[string]any{
		"type":  "holder.changed",
		"title": title,
		"prev":  prev,
		"next":  next,
	})
}

func (h *Hub) snapshot() []*websocket.Conn {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*websocket.Conn, 0, len(h.conns))
	for conn := range h.conns {
		out = append(out, conn)
	}
	return out
}

func (h *Hub) add(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[conn] = struct{}{}
}

func (h *Hub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.conns, conn)
}
