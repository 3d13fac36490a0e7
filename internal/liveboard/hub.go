// Package liveboard broadcasts WaveGateStatus changes over a websocket
// to connected watchers such as browser tabs, running as the server side
// of the protocol rather than a
// client reconnecting outward.
package liveboard

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/flyingrobots/waveops/internal/wavegate"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Hub tracks connected watchers and fans out WaveGateStatus updates to
// all of them. The zero value is not usable; construct with NewHub.
type Hub struct {
	mu      sync.Mutex
	clients map[*watcher]struct{}
	last    *wavegate.WaveGateStatus
}

type watcher struct {
	conn *websocket.Conn
	send chan []byte
}

// NewHub builds an empty Hub.
func NewHub() *Hub {
	return &Hub{clients: make(map[*watcher]struct{})}
}

// ServeHTTP upgrades the request to a websocket connection and
// registers it as a watcher, immediately sending the last known status
// (if any) so a new tab doesn't wait for the next cycle to render.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	wc := &watcher{conn: conn, send: make(chan []byte, 8)}
	h.register(wc)
	defer h.unregister(wc)

	go wc.writeLoop()

	h.mu.Lock()
	last := h.last
	h.mu.Unlock()
	if last != nil {
		if data, err := json.Marshal(last); err == nil {
			select {
			case wc.send <- data:
			default:
			}
		}
	}

	// The hub only pushes; it has no use for inbound messages, but it
	// must still read the connection to notice closes and respond to
	// control frames (ping/pong), per gorilla/websocket's documented
	// contract for every open connection.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) register(w *watcher) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[w] = struct{}{}
}

func (h *Hub) unregister(w *watcher) {
	h.mu.Lock()
	_, ok := h.clients[w]
	delete(h.clients, w)
	h.mu.Unlock()
	if ok {
		close(w.send)
		w.conn.Close()
	}
}

// Broadcast pushes status to every connected watcher and remembers it
// as the last known status for late joiners. Slow or stalled watchers
// are dropped rather than allowed to back-pressure the coordinator.
func (h *Hub) Broadcast(status wavegate.WaveGateStatus) error {
	data, err := json.Marshal(status)
	if err != nil {
		return err
	}

	h.mu.Lock()
	h.last = &status
	targets := make([]*watcher, 0, len(h.clients))
	for w := range h.clients {
		targets = append(targets, w)
	}
	h.mu.Unlock()

	for _, w := range targets {
		select {
		case w.send <- data:
		default:
			h.unregister(w)
		}
	}
	return nil
}

// Len reports the current number of connected watchers.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (w *watcher) writeLoop() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case data, ok := <-w.send:
			if !ok {
				w.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			if err := w.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			if err := w.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
