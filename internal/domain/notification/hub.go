package notification

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/siterank/siterank-api/internal/middleware"
	"github.com/siterank/siterank-api/internal/pkg/response"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4 * 1024
)

// UserScoped payloads know which user they belong to; the hub delivers them
// to that user's open connections only.
type UserScoped interface {
	OwnerID() uuid.UUID
}

// Connection is one websocket client. All outbound frames go through Send;
// the writer goroutine is the only one touching the underlying conn.
type Connection struct {
	UserID uuid.UUID
	Conn   *websocket.Conn
	Send   chan []byte
}

// Hub tracks websocket connections per user and fans events out to them.
type Hub struct {
	mu    sync.RWMutex
	conns map[uuid.UUID]map[*Connection]bool

	upgrader websocket.Upgrader
}

func NewHub(allowedOrigins []string) *Hub {
	origins := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		origins[o] = true
	}

	return &Hub{
		conns: make(map[uuid.UUID]map[*Connection]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || origins[origin]
			},
		},
	}
}

// ServeWS upgrades the request and keeps the connection registered until
// the client goes away.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Str("user_id", userID.String()).Msg("websocket upgrade failed")
		return
	}

	client := &Connection{
		UserID: userID,
		Conn:   conn,
		Send:   make(chan []byte, 64),
	}

	h.register(client)
	log.Debug().Str("user_id", userID.String()).Msg("websocket connected")

	go h.reader(client)
	go h.writer(client)
}

func (h *Hub) register(c *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.conns[c.UserID] == nil {
		h.conns[c.UserID] = make(map[*Connection]bool)
	}
	h.conns[c.UserID][c] = true
}

func (h *Hub) unregister(c *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()

	conns, ok := h.conns[c.UserID]
	if !ok {
		return
	}
	if _, exists := conns[c]; exists {
		delete(conns, c)
		close(c.Send)
	}
	if len(conns) == 0 {
		delete(h.conns, c.UserID)
	}
}

// reader discards inbound frames; the socket exists to push events. The
// read loop detects disconnects and answers pings.
func (h *Hub) reader(c *Connection) {
	defer func() {
		h.unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writer(c *Connection) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub closed the channel
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ConnectionCount returns the number of open connections on this instance.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	total := 0
	for _, conns := range h.conns {
		total += len(conns)
	}
	return total
}

// SendToUser enqueues the payload for every open connection of one user.
// A connection with a full buffer drops the event instead of blocking
// the publisher.
func (h *Hub) SendToUser(userID uuid.UUID, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.conns[userID] {
		select {
		case c.Send <- data:
		default:
			log.Warn().Str("user_id", userID.String()).Msg("websocket send buffer full, event dropped")
		}
	}
	return nil
}

// Publish implements Publisher: user-scoped events go to the owning user's
// connections, anything else is dropped silently.
func (h *Hub) Publish(ctx context.Context, topic string, payload interface{}) error {
	scoped, ok := payload.(UserScoped)
	if !ok {
		return nil
	}

	return h.SendToUser(scoped.OwnerID(), map[string]interface{}{
		"type": topic,
		"data": payload,
	})
}
