// Package server exposes the Brother facade to scripting clients over WebSocket.
package server

import (
	"sync"

	"github.com/coder/websocket"
)

type clientState struct {
	addr          string
	authenticated bool
}

// ClientRegistry manages connected WebSocket clients thread-safely
type ClientRegistry struct {
	clients map[*websocket.Conn]*clientState
	mu      sync.RWMutex
}

// NewClientRegistry creates a new client registry
func NewClientRegistry() *ClientRegistry {
	return &ClientRegistry{
		clients: make(map[*websocket.Conn]*clientState),
	}
}

// Add registers a new client connection
func (r *ClientRegistry) Add(conn *websocket.Conn, addr string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[conn] = &clientState{addr: addr}
}

// Remove unregisters a client connection
func (r *ClientRegistry) Remove(conn *websocket.Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.clients, conn)
}

// Count returns the number of connected clients
func (r *ClientRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

// Contains checks if a client is registered
func (r *ClientRegistry) Contains(conn *websocket.Conn) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.clients[conn]
	return ok
}

// MarkAuthenticated records that conn presented a valid token
func (r *ClientRegistry) MarkAuthenticated(conn *websocket.Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if st, ok := r.clients[conn]; ok {
		st.authenticated = true
	}
}

// IsAuthenticated reports whether conn already presented a valid token
func (r *ClientRegistry) IsAuthenticated(conn *websocket.Conn) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	st, ok := r.clients[conn]
	return ok && st.authenticated
}

// ForEach executes a function for each connected client
func (r *ClientRegistry) ForEach(fn func(*websocket.Conn)) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for conn := range r.clients {
		fn(conn)
	}
}
