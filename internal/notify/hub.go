package notify

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/anstrom/alicorn/internal/logging"
	"github.com/anstrom/alicorn/internal/metrics"
)

const (
	// WebSocket configuration constants.
	writeWait       = 10 * time.Second                                   // Time allowed to write a message to the peer
	pongWait        = 60 * time.Second                                   // Time to read next pong message from peer
	pingPeriodRatio = 0.9                                                // Ratio of pongWait for pingPeriod
	pingPeriod      = time.Duration(float64(pongWait) * pingPeriodRatio) // Send pings to peer (must be < pongWait)
	maxMessageSize  = 512                                                // Maximum message size allowed from peer
	bufferSize      = 256                                                // Size of the broadcast and per-client buffers
)

// MessageTypeNotification is the envelope type of session notifications.
const MessageTypeNotification = "notification"

// ErrBufferFull is returned by Publish when the hub cannot keep up.
var ErrBufferFull = errors.New("notification buffer full")

// Message is the envelope written to WebSocket clients.
type Message struct {
	Type      string      `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

type client struct {
	conn    *websocket.Conn
	session string
	send    chan []byte
}

type outbound struct {
	session string
	data    []byte
}

// Hub broadcasts session notifications to WebSocket clients. A client that
// subscribed with a session id only receives that session's notifications;
// a client without one receives everything. Publishing never blocks: when a
// buffer is full the message is dropped.
type Hub struct {
	logger   *logging.Logger
	metrics  metrics.MetricsRegistry
	upgrader websocket.Upgrader

	clients    map[*client]struct{}
	broadcast  chan outbound
	register   chan *client
	unregister chan *client
	shutdown   chan struct{}
	done       chan struct{}
	closeOnce  sync.Once
	mutex      sync.RWMutex
}

// NewHub creates a hub and starts its dispatch loop. registry may be nil.
func NewHub(logger *logging.Logger, registry metrics.MetricsRegistry) *Hub {
	if logger == nil {
		logger = logging.Default()
	}

	h := &Hub{
		logger:  logger.WithComponent("websocket"),
		metrics: registry,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		clients:    make(map[*client]struct{}),
		broadcast:  make(chan outbound, bufferSize),
		register:   make(chan *client),
		unregister: make(chan *client),
		shutdown:   make(chan struct{}),
		done:       make(chan struct{}),
	}

	go h.run()

	return h
}

// ServeHTTP upgrades the request and subscribes the connection. The
// optional "session" query parameter restricts delivery to one session.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	session := r.URL.Query().Get("session")
	if session != "" {
		if _, err := uuid.Parse(session); err != nil {
			http.Error(w, "invalid session id", http.StatusBadRequest)
			return
		}
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade WebSocket connection", "error", err)
		return
	}

	c := &client{conn: conn, session: session, send: make(chan []byte, bufferSize)}

	select {
	case h.register <- c:
	case <-h.done:
		_ = conn.Close()
		return
	}

	h.logger.Debug("WebSocket client connected", "remote_addr", r.RemoteAddr, "session_id", session)

	go h.writePump(c)
	h.readPump(c)
}

// Publish queues n for delivery.
func (h *Hub) Publish(n Notification) error {
	data, err := json.Marshal(Message{
		Type:      MessageTypeNotification,
		Timestamp: n.Timestamp,
		Data:      n,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	select {
	case h.broadcast <- outbound{session: n.SessionID, data: data}:
		return nil
	default:
		h.logger.Warn("Notification broadcast channel full, dropping message", "session_id", n.SessionID)
		return ErrBufferFull
	}
}

// ForSession returns a Notifier that publishes on behalf of a session.
func (h *Hub) ForSession(id uuid.UUID) *SessionNotifier {
	return &SessionNotifier{hub: h, session: id.String(), now: time.Now}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

// Close disconnects every client and stops the dispatch loop.
func (h *Hub) Close() {
	h.closeOnce.Do(func() {
		close(h.shutdown)
		<-h.done
		h.logger.Info("WebSocket hub closed")
	})
}

func (h *Hub) run() {
	defer close(h.done)

	for {
		select {
		case <-h.shutdown:
			h.mutex.Lock()
			for c := range h.clients {
				close(c.send)
				delete(h.clients, c)
			}
			h.mutex.Unlock()
			return

		case c := <-h.register:
			h.mutex.Lock()
			h.clients[c] = struct{}{}
			total := len(h.clients)
			h.mutex.Unlock()
			h.logger.Debug("Client registered", "total_clients", total)

		case c := <-h.unregister:
			h.remove(c)

		case msg := <-h.broadcast:
			h.deliver(msg)
		}
	}
}

func (h *Hub) remove(c *client) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

func (h *Hub) deliver(msg outbound) {
	sent := 0
	var slow []*client

	h.mutex.RLock()
	for c := range h.clients {
		if c.session != "" && msg.session != "" && c.session != msg.session {
			continue
		}
		select {
		case c.send <- msg.data:
			sent++
		default:
			slow = append(slow, c)
		}
	}
	h.mutex.RUnlock()

	for _, c := range slow {
		h.logger.Warn("Client too slow, disconnecting", "session_id", c.session)
		h.remove(c)
	}

	if h.metrics != nil && sent > 0 {
		h.metrics.Counter("websocket_messages_sent_total", metrics.Labels{"type": MessageTypeNotification})
	}
}

// readPump discards client input and detects disconnects.
func (h *Hub) readPump(c *client) {
	defer func() {
		select {
		case h.unregister <- c:
		case <-h.done:
		}
		if err := c.conn.Close(); err != nil {
			h.logger.Debug("Error closing connection in readPump", "error", err)
		}
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		h.logger.Error("Failed to set read deadline", "error", err)
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Warn("WebSocket unexpected close", "error", err)
			}
			return
		}
	}
}

// writePump writes queued messages and keepalive pings to the connection.
func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				h.logger.Debug("Write failed, closing connection", "error", err)
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.logger.Debug("Ping failed, closing connection", "error", err)
				return
			}
		}
	}
}

// SessionNotifier publishes a session's notifications through a Hub.
type SessionNotifier struct {
	hub     *Hub
	session string
	now     func() time.Time
}

// Info implements Notifier.
func (n *SessionNotifier) Info(title, detail string) {
	n.publish(LevelInfo, title, detail)
}

// Error implements Notifier.
func (n *SessionNotifier) Error(title, detail string) {
	n.publish(LevelError, title, detail)
}

func (n *SessionNotifier) publish(level, title, detail string) {
	_ = n.hub.Publish(Notification{
		SessionID: n.session,
		Level:     level,
		Title:     title,
		Detail:    detail,
		Timestamp: n.now().UTC(),
	})
}
