package telemetry

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"github.com/RudolfRTC/CCS-Charger/internal/engine"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// Hub broadcasts engine snapshots to every connected WebSocket client on
// every engine event and on a slow keepalive cadence.
type Hub struct {
	eng *engine.Engine

	mu      sync.Mutex
	clients map[*websocket.Conn]chan []byte
}

// NewHub builds a Hub over eng. Run must be called to start broadcasting.
func NewHub(eng *engine.Engine) *Hub {
	return &Hub{eng: eng, clients: make(map[*websocket.Conn]chan []byte)}
}

// ServeHTTP upgrades the request to a WebSocket and registers the
// connection for broadcast until it disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.WithError(err).Warn("telemetry: websocket upgrade failed")
		return
	}
	out := make(chan []byte, 16)
	h.mu.Lock()
	h.clients[conn] = out
	h.mu.Unlock()

	go h.writePump(conn, out)
	h.readPump(conn)
}

func (h *Hub) readPump(conn *websocket.Conn) {
	defer h.unregister(conn)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(conn *websocket.Conn, out chan []byte) {
	for msg := range out {
		if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			h.unregister(conn)
			return
		}
	}
}

func (h *Hub) unregister(conn *websocket.Conn) {
	h.mu.Lock()
	if out, ok := h.clients[conn]; ok {
		close(out)
		delete(h.clients, conn)
	}
	h.mu.Unlock()
	conn.Close()
}

func (h *Hub) broadcast(payload snapshotPayload) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.WithError(err).Error("telemetry: failed to marshal broadcast payload")
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn, out := range h.clients {
		select {
		case out <- data:
		default:
			log.Warn("telemetry: websocket client too slow, dropping")
			go h.unregister(conn)
		}
	}
}

// Run consumes engine events and pushes a fresh snapshot to every
// connected client on each one, plus a keepalive snapshot every 5s. It
// blocks until stop is closed.
func (h *Hub) Run(stop <-chan struct{}) {
	keepalive := time.NewTicker(5 * time.Second)
	defer keepalive.Stop()
	for {
		select {
		case <-stop:
			return
		case <-h.eng.Events():
			h.broadcast(h.currentPayload())
		case <-keepalive.C:
			h.broadcast(h.currentPayload())
		}
	}
}

func (h *Hub) currentPayload() snapshotPayload {
	return snapshotPayload{
		Timestamp:  time.Now(),
		Supervisor: h.eng.Snapshot(),
		Vcu:        h.eng.VcuSnapshot(),
	}
}
