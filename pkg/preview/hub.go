package preview

import (
	"context"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/quayside/deckhand/pkg/logger"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The preview server only ever binds locally, so cross-origin
	// upgrades are not a concern.
	CheckOrigin: func(_ *http.Request) bool { return true },
}

// Hub tracks the browsers connected for live reload and pushes messages to
// all of them. Clients never send anything meaningful back; the read loop
// exists only to notice disconnects.
type Hub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]bool
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{
		clients: make(map[*websocket.Conn]bool),
	}
}

// Register adds a client connection to the hub.
func (h *Hub) Register(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[conn] = true
}

// Unregister removes a client connection and closes it.
func (h *Hub) Unregister(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[conn]; ok {
		delete(h.clients, conn)
		conn.Close()
	}
}

// Broadcast sends message to every registered client. Clients that fail to
// take the write are assumed gone and dropped.
func (h *Hub) Broadcast(ctx context.Context, message []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		if err := client.WriteMessage(websocket.TextMessage, message); err != nil {
			logger.G(ctx).WithError(err).Debug("dropping unresponsive live-reload client")
			client.Close()
			delete(h.clients, client)
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// ServeWS upgrades the request to a websocket and keeps the connection
// registered until the client goes away.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.G(r.Context()).WithError(err).Error("websocket upgrade failed")
		return
	}

	h.Register(conn)
	logger.G(r.Context()).Debug("live-reload client connected")

	defer func() {
		h.Unregister(conn)
		logger.G(r.Context()).Debug("live-reload client disconnected")
	}()
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}
