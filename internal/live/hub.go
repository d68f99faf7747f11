// Package live pushes scorecard updates to websocket subscribers grouped in
// rooms.
package live

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBuffer     = 64
)

// Message is the frame sent to subscribers.
type Message struct {
	Type    string `json:"type"`
	Room    string `json:"room"`
	Payload any    `json:"payload"`
}

type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
	room string
}

// Hub fans messages out to the clients of a room.
type Hub struct {
	logger     *slog.Logger
	upgrader   websocket.Upgrader
	register   chan *client
	unregister chan *client
	done       chan struct{}

	mu    sync.RWMutex
	rooms map[string]map[*client]struct{}
}

// NewHub returns a hub accepting connections from allowedOrigins. An empty
// list or "*" accepts any origin.
func NewHub(logger *slog.Logger, allowedOrigins []string) *Hub {
	h := &Hub{
		logger:     logger,
		register:   make(chan *client),
		unregister: make(chan *client),
		done:       make(chan struct{}),
		rooms:      make(map[string]map[*client]struct{}),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" || len(allowedOrigins) == 0 || slices.Contains(allowedOrigins, "*") {
				return true
			}
			return slices.Contains(allowedOrigins, origin)
		},
	}
	return h
}

// Run registers and drops clients until ctx is done, then disconnects
// everyone.
func (h *Hub) Run(ctx context.Context) error {
	defer close(h.done)
	for {
		select {
		case c := <-h.register:
			h.mu.Lock()
			if _, ok := h.rooms[c.room]; !ok {
				h.rooms[c.room] = make(map[*client]struct{})
			}
			h.rooms[c.room][c] = struct{}{}
			n := len(h.rooms[c.room])
			h.mu.Unlock()
			h.logger.DebugContext(ctx, "live client joined", slog.String("room", c.room), slog.Int("clients", n))

		case c := <-h.unregister:
			h.mu.Lock()
			h.drop(c)
			h.mu.Unlock()
			h.logger.DebugContext(ctx, "live client left", slog.String("room", c.room))

		case <-ctx.Done():
			h.mu.Lock()
			for _, clients := range h.rooms {
				for c := range clients {
					h.drop(c)
				}
			}
			h.mu.Unlock()
			return nil
		}
	}
}

// drop removes c and closes its send channel. The caller holds h.mu.
func (h *Hub) drop(c *client) {
	clients, ok := h.rooms[c.room]
	if !ok {
		return
	}
	if _, ok := clients[c]; !ok {
		return
	}
	close(c.send)
	delete(clients, c)
	if len(clients) == 0 {
		delete(h.rooms, c.room)
	}
}

// Publish sends a message to every client in room. Slow clients miss the
// message rather than block the publisher.
func (h *Hub) Publish(room, typ string, payload any) {
	b, err := json.Marshal(Message{Type: typ, Room: room, Payload: payload})
	if err != nil {
		h.logger.Error("marshalling live message", slog.String("room", room), slog.Any("error", err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.rooms[room] {
		select {
		case c.send <- b:
		default:
			h.logger.Warn("live client too slow, message dropped", slog.String("room", room))
		}
	}
}

// Clients returns the number of clients in room.
func (h *Hub) Clients(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// Serve upgrades the request and subscribes the connection to room. A
// non-nil snapshot is sent before any published message.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, room string, snapshot *Message) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WarnContext(r.Context(), "websocket upgrade failed", slog.String("room", room), slog.Any("error", err))
		return
	}

	c := &client{hub: h, conn: conn, send: make(chan []byte, sendBuffer), room: room}
	if snapshot != nil {
		snapshot.Room = room
		if b, err := json.Marshal(snapshot); err == nil {
			c.send <- b
		}
	}
	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return
	}

	go c.writePump()
	go c.readPump()
}

// readPump discards client frames and unregisters on disconnect.
func (c *client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Warn("live client read failed", slog.String("room", c.room), slog.Any("error", err))
			}
			return
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
