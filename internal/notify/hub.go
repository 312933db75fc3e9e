package notify

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // OK for demo; restrict in production
	},
}

// Hub fans player events out to the websocket clients subscribed to each
// reading session. A session may have several clients (e.g. a parent's
// phone mirroring a child's tablet).
type Hub struct {
	mu      sync.Mutex
	clients map[string]map[*websocket.Conn]struct{} // session ID -> conns
}

// Stats reports hub occupancy
type Stats struct {
	Sessions int `json:"sessions"`
	Clients  int `json:"clients"`
}

// NewHub creates an empty hub
func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]map[*websocket.Conn]struct{}),
	}
}

// Add registers a websocket client for a session
func (h *Hub) Add(sessionID string, ws *websocket.Conn) {
	h.mu.Lock()
	conns, ok := h.clients[sessionID]
	if !ok {
		conns = make(map[*websocket.Conn]struct{})
		h.clients[sessionID] = conns
	}
	conns[ws] = struct{}{}
	h.mu.Unlock()
}

// Remove unregisters a websocket client and closes it
func (h *Hub) Remove(sessionID string, ws *websocket.Conn) {
	h.mu.Lock()
	if conns, ok := h.clients[sessionID]; ok {
		delete(conns, ws)
		if len(conns) == 0 {
			delete(h.clients, sessionID)
		}
	}
	h.mu.Unlock()
	_ = ws.Close()
}

// BroadcastJSON sends v to every client of the session. Clients whose
// writes fail are dropped.
func (h *Hub) BroadcastJSON(sessionID string, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	conns, ok := h.clients[sessionID]
	if !ok {
		return
	}

	for ws := range conns {
		_ = ws.SetWriteDeadline(time.Now().Add(2 * time.Second))
		if err := ws.WriteMessage(websocket.TextMessage, b); err != nil {
			_ = ws.Close()
			delete(conns, ws)
		}
	}

	if len(conns) == 0 {
		delete(h.clients, sessionID)
	}
}

// CloseSession disconnects every client of a session
func (h *Hub) CloseSession(sessionID string) {
	h.mu.Lock()
	conns := h.clients[sessionID]
	delete(h.clients, sessionID)
	h.mu.Unlock()

	for ws := range conns {
		_ = ws.Close()
	}
}

// CloseAll disconnects every client of every session
func (h *Hub) CloseAll() {
	h.mu.Lock()
	all := h.clients
	h.clients = make(map[string]map[*websocket.Conn]struct{})
	h.mu.Unlock()

	for _, conns := range all {
		for ws := range conns {
			_ = ws.Close()
		}
	}
}

// Stats reports hub occupancy
func (h *Hub) Stats() Stats {
	h.mu.Lock()
	defer h.mu.Unlock()

	total := 0
	for _, conns := range h.clients {
		total += len(conns)
	}

	return Stats{
		Sessions: len(h.clients),
		Clients:  total,
	}
}

// ServeWS upgrades the request and keeps the connection registered until
// the client goes away. Incoming messages are ignored; this channel is
// server-to-client only.
func (h *Hub) ServeWS(sessionID string, w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	h.Add(sessionID, ws)
	log.Printf("[Notify] Client connected to session %s", sessionID)

	_ = ws.WriteMessage(
		websocket.TextMessage,
		[]byte(`{"type":"welcome","transport":"websocket"}`),
	)

	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			break
		}
	}

	h.Remove(sessionID, ws)
	log.Printf("[Notify] Client disconnected from session %s", sessionID)
}
