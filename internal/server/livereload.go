package server

import (
	"bytes"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

// LiveReloadPath is the websocket endpoint injected clients connect to.
const LiveReloadPath = "/__nitro__/livereload"

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The dev server binds to localhost; cross-origin checks only get in
	// the way of proxied setups.
	CheckOrigin: func(*http.Request) bool { return true },
}

// Hub tracks connected live-reload clients and broadcasts reload commands.
type Hub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]bool
	logger  *slog.Logger
}

// NewHub creates an empty hub.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{clients: make(map[*websocket.Conn]bool), logger: logger}
}

// ServeHTTP upgrades the connection and parks it until the client leaves.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("Live reload upgrade failed", "error", err)
		return
	}

	h.mu.Lock()
	h.clients[conn] = true
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug("Live reload client connected", "clients", n)

	go func() {
		defer h.drop(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (h *Hub) drop(conn *websocket.Conn) {
	h.mu.Lock()
	delete(h.clients, conn)
	h.mu.Unlock()
	_ = conn.Close()
}

// Broadcast tells every connected client to reload.
func (h *Hub) Broadcast() {
	h.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(h.clients))
	for c := range h.clients {
		conns = append(conns, c)
	}
	h.mu.Unlock()

	for _, c := range conns {
		if err := c.WriteMessage(websocket.TextMessage, []byte("reload")); err != nil {
			h.drop(c)
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects all clients.
func (h *Hub) Close() {
	h.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(h.clients))
	for c := range h.clients {
		conns = append(conns, c)
	}
	h.clients = make(map[*websocket.Conn]bool)
	h.mu.Unlock()
	for _, c := range conns {
		_ = c.Close()
	}
}

const reloadSnippet = `<script>(function(){var s=location.protocol==="https:"?"wss":"ws";var c=new WebSocket(s+"://"+location.host+"` + LiveReloadPath + `");c.onmessage=function(){location.reload()};c.onclose=function(){setTimeout(function(){location.reload()},1000)}})();</script>`

// injectReloadSnippet adds the live-reload client before the closing body
// tag, or appends it when the page has none.
func injectReloadSnippet(doc []byte) []byte {
	if bytes.Contains(doc, []byte(LiveReloadPath)) {
		return doc
	}
	idx := bytes.LastIndex(doc, []byte("</body>"))
	if idx < 0 {
		return append(doc, []byte(reloadSnippet)...)
	}
	out := make([]byte, 0, len(doc)+len(reloadSnippet))
	out = append(out, doc[:idx]...)
	out = append(out, []byte(reloadSnippet)...)
	out = append(out, doc[idx:]...)
	return out
}
