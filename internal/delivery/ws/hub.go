// Package ws pushes every control event to websocket clients.
package ws

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/smartcity/signalctl/internal/domain"
)

var log = logrus.WithField("module", "ws")

const (
	outboxSize   = 256
	writeTimeout = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Envelope is the wire form of one event
type Envelope struct {
	Kind      domain.EventKind `json:"kind"`
	EntityID  string           `json:"entity_id"`
	Timestamp time.Time        `json:"timestamp"`
	Payload   domain.Event     `json:"payload"`
}

// Hub fans bus events out to connected clients. Handle only enqueues, so a
// slow client never stalls the publisher.
type Hub struct {
	outbox chan Envelope

	clientsMutex sync.Mutex
	clients      map[*websocket.Conn]bool

	mu     sync.Mutex
	closed bool
	done   chan struct{}
}

// NewHub starts the broadcast loop
func NewHub() *Hub {
	h := &Hub{
		outbox:  make(chan Envelope, outboxSize),
		clients: make(map[*websocket.Conn]bool),
		done:    make(chan struct{}),
	}
	go h.broadcast()
	return h
}

// Handle is a bus subscriber
func (h *Hub) Handle(ev domain.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	select {
	case h.outbox <- Envelope{Kind: ev.Kind(), EntityID: ev.EntityID(), Timestamp: ev.OccurredAt(), Payload: ev}:
	default:
		log.WithField("event", ev.Kind()).Warn("event stream backlog full, dropping event")
	}
}

// Clients returns the number of connected clients
func (h *Hub) Clients() int {
	h.clientsMutex.Lock()
	defer h.clientsMutex.Unlock()
	return len(h.clients)
}

// ServeHTTP upgrades the request and registers the client
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warnf("err upgrading connection: %v", err)
		return
	}

	h.clientsMutex.Lock()
	h.clients[conn] = true
	total := len(h.clients)
	h.clientsMutex.Unlock()

	log.Infof("new websocket client connected. Total clients: %d", total)
	go h.readLoop(conn)
}

// readLoop drains client frames until the connection closes
func (h *Hub) readLoop(conn *websocket.Conn) {
	defer h.drop(conn)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Warnf("websocket error: %v", err)
			}
			return
		}
	}
}

func (h *Hub) drop(conn *websocket.Conn) {
	h.clientsMutex.Lock()
	defer h.clientsMutex.Unlock()
	if h.clients[conn] {
		delete(h.clients, conn)
		conn.Close()
		log.Infof("websocket client disconnected. Remaining clients: %d", len(h.clients))
	}
}

func (h *Hub) broadcast() {
	defer close(h.done)
	for env := range h.outbox {
		msg, err := json.Marshal(env)
		if err != nil {
			log.Errorf("err marshaling event: %v", err)
			continue
		}

		h.clientsMutex.Lock()
		for conn := range h.clients {
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				log.Warnf("websocket write error: %v", err)
				conn.Close()
				delete(h.clients, conn)
			}
		}
		h.clientsMutex.Unlock()
	}
}

// Close stops the broadcast loop after flushing queued events and
// disconnects every client
func (h *Hub) Close() {
	h.mu.Lock()
	if !h.closed {
		h.closed = true
		close(h.outbox)
	}
	h.mu.Unlock()
	<-h.done

	h.clientsMutex.Lock()
	for conn := range h.clients {
		conn.Close()
		delete(h.clients, conn)
	}
	h.clientsMutex.Unlock()
}
