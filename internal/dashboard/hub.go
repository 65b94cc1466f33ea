package dashboard

import (
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"codeberg.org/mutker/blinktrack/internal/logger"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	sendBuffer   = 256
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingInterval = (pongWait * 9) / 10
	maxReadSize  = 4096
)

// Message types the hub itself produces.
const (
	MessageWelcome = "welcome"
	MessagePing    = "ping"
	MessagePong    = "pong"
)

// Message is the envelope of every websocket frame.
type Message struct {
	Type      string `json:"type"`
	Payload   any    `json:"payload,omitempty"`
	ClientID  string `json:"client_id,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

type client struct {
	id   string
	conn *websocket.Conn
	send chan Message
	once sync.Once
}

func (c *client) close() {
	c.once.Do(func() { close(c.send) })
}

// Hub fans messages out to connected websocket clients. Slow clients lose
// messages instead of blocking the broadcaster.
type Hub struct {
	log      logger.Logger
	upgrader websocket.Upgrader
	now      func() time.Time

	mu      sync.RWMutex
	clients map[string]*client
	closed  bool
	dropped atomic.Uint64
}

func NewHub(log logger.Logger) *Hub {
	if log == nil {
		log = logger.Default()
	}

	return &Hub{
		log: log.With("websocket"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		now:     time.Now,
		clients: make(map[string]*client),
	}
}

// Broadcast queues a message for every client.
func (h *Hub) Broadcast(msgType string, payload any) {
	msg := Message{Type: msgType, Payload: payload, Timestamp: h.now().Unix()}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, c := range h.clients {
		select {
		case c.send <- msg:
		default:
			h.dropped.Add(1)
		}
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.clients)
}

// Dropped returns how many messages were discarded for slow clients.
func (h *Hub) Dropped() uint64 {
	return h.dropped.Load()
}

// ServeHTTP upgrades the request and serves the client until it disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("Websocket upgrade failed")
		return
	}

	c := &client{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan Message, sendBuffer),
	}

	if !h.register(c) {
		conn.Close()
		return
	}

	h.log.Debug().Str("client_id", c.id).Msg("Websocket client connected")

	h.sendTo(c, Message{
		Type:      MessageWelcome,
		ClientID:  c.id,
		Timestamp: h.now().Unix(),
		Payload: map[string]any{
			"message": "Connected to blinktrack",
		},
	})

	go h.writePump(c)
	h.readPump(c)
}

// sendTo queues msg for c if it is still registered.
func (h *Hub) sendTo(c *client, msg Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.clients[c.id] != c {
		return
	}

	select {
	case c.send <- msg:
	default:
		h.dropped.Add(1)
	}
}

func (h *Hub) register(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return false
	}
	h.clients[c.id] = c

	return true
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c.id]; ok {
		delete(h.clients, c.id)
		c.close()
	}
	h.mu.Unlock()

	h.log.Debug().Str("client_id", c.id).Msg("Websocket client disconnected")
}

func (h *Hub) readPump(c *client) {
	defer func() {
		h.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxReadSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Debug().Err(err).Str("client_id", c.id).Msg("Websocket read failed")
			}
			return
		}

		switch msg.Type {
		case MessagePing:
			h.sendTo(c, Message{Type: MessagePong, ClientID: c.id, Timestamp: h.now().Unix()})
		default:
			h.log.Debug().Str("type", msg.Type).Msg("Ignoring websocket message")
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	for id, c := range h.clients {
		delete(h.clients, id)
		c.close()
	}
}
