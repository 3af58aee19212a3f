// Package ws broadcasts job lifecycle events to websocket subscribers.
package ws

import (
	"log"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// broadcastBuffer bounds the publish queue so a slow fan-out never
// stalls a running download.
const broadcastBuffer = 64

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// envelope is the wire shape of every notification.
type envelope struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// Hub owns the subscriber set and fans notifications out to it. It
// implements progress.Notifier.
type Hub struct {
	mu        sync.Mutex
	clients   map[*websocket.Conn]bool
	broadcast chan envelope
}

func NewHub() *Hub {
	return &Hub{
		clients:   make(map[*websocket.Conn]bool),
		broadcast: make(chan envelope, broadcastBuffer),
	}
}

// Run drains the broadcast queue until the hub is closed. Call it from
// its own goroutine.
func (h *Hub) Run() {
	for msg := range h.broadcast {
		h.mu.Lock()
		for client := range h.clients {
			if err := client.WriteJSON(msg); err != nil {
				client.Close()
				delete(h.clients, client)
			}
		}
		h.mu.Unlock()
	}
}

// Publish enqueues one event for every connected subscriber. When the
// queue is full the event is dropped; job state in the registry stays
// authoritative.
func (h *Hub) Publish(event string, data any) {
	select {
	case h.broadcast <- envelope{Event: event, Data: data}:
	default:
		log.Printf("ws: broadcast queue full, dropping %s", event)
	}
}

// ServeWS upgrades the request and registers the connection.
func (h *Hub) ServeWS(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("ws: upgrade failed: %v", err)
		return
	}

	h.mu.Lock()
	h.clients[conn] = true
	h.mu.Unlock()
}

// ClientCount reports the number of live subscribers.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close stops the fan-out loop and disconnects all subscribers.
func (h *Hub) Close() {
	close(h.broadcast)

	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		client.Close()
		delete(h.clients, client)
	}
}
