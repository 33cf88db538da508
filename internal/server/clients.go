package server

import (
	"sync"
	"time"

	"github.com/coder/websocket"
)

// client is one connected WebSocket peer.
type client struct {
	remoteAddr  string
	connectedAt time.Time
}

// ClientRegistry manages connected WebSocket clients thread-safely
type ClientRegistry struct {
	clients map[*websocket.Conn]client
	mu      sync.RWMutex
}

// NewClientRegistry creates a new client registry
func NewClientRegistry() *ClientRegistry {
	return &ClientRegistry{
		clients: make(map[*websocket.Conn]client),
	}
}

// Add registers a new client connection
func (r *ClientRegistry) Add(conn *websocket.Conn, remoteAddr string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[conn] = client{remoteAddr: remoteAddr, connectedAt: time.Now()}
}

// Remove unregisters a client connection and reports whether it was
// registered.
func (r *ClientRegistry) Remove(conn *websocket.Conn) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.clients[conn]
	delete(r.clients, conn)
	return ok
}

// Count returns the number of connected clients
func (r *ClientRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

// Snapshot returns the connected clients so callers can write to them
// without holding the lock.
func (r *ClientRegistry) Snapshot() []*websocket.Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conns := make([]*websocket.Conn, 0, len(r.clients))
	for conn := range r.clients {
		conns = append(conns, conn)
	}
	return conns
}
