package web

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/TitusNeyland/Pathread/internal/interfaces"
	"github.com/TitusNeyland/Pathread/internal/models"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 512
	sendBuffer     = 32
)

// subscribedEvent is the first message every subscriber receives.
const subscribedEvent = "subscribed"

// Client is one WebSocket subscriber to a single session.
type Client struct {
	ID        string
	SessionID string
	Conn      *websocket.Conn
	Send      chan []byte
	Hub       *SessionHub
	mu        sync.Mutex
	closed    bool
}

// SessionMessage is the JSON frame pushed to subscribers.
type SessionMessage struct {
	Type      string               `json:"type"`
	SessionID string               `json:"sessionId"`
	Session   *models.StorySession `json:"session,omitempty"`
	Turn      *models.StoryTurn    `json:"turn,omitempty"`
	Action    string               `json:"action,omitempty"`
	Time      time.Time            `json:"time"`
}

// SessionHub fans session events out to WebSocket subscribers of that session.
type SessionHub struct {
	clients    map[string]map[*Client]struct{}
	unregister chan *Client
	broadcast  chan interfaces.SessionEvent
	closed     *atomic.Bool
	done       chan struct{}
	upgrader   websocket.Upgrader
	logger     *zap.Logger
	mu         sync.RWMutex
}

// NewSessionHub creates a hub accepting browser connections from
// allowedOrigins. Run must be started before events are delivered.
func NewSessionHub(allowedOrigins []string, logger *zap.Logger) *SessionHub {
	if logger == nil {
		logger = zap.NewNop()
	}
	origins := newOriginPolicy(allowedOrigins)
	return &SessionHub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || origins.allows(origin)
			},
		},
		clients:    make(map[string]map[*Client]struct{}),
		unregister: make(chan *Client, 100),
		broadcast:  make(chan interfaces.SessionEvent, 1000),
		closed:     atomic.NewBool(false),
		done:       make(chan struct{}),
		logger:     logger.Named("hub"),
	}
}

// Run starts the hub's event loop and blocks until ctx is canceled.
func (h *SessionHub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return

		case client := <-h.unregister:
			h.unregisterClient(client)

		case event := <-h.broadcast:
			h.broadcastEvent(event)
		}
	}
}

// Done is closed once Run has returned.
func (h *SessionHub) Done() <-chan struct{} {
	return h.done
}

// Publish queues event for delivery without blocking the caller.
func (h *SessionHub) Publish(event interfaces.SessionEvent) {
	if h.closed.Load() {
		return
	}
	select {
	case h.broadcast <- event:
	default:
		h.logger.Warn("broadcast channel full, dropping event",
			zap.String("session_id", event.SessionID),
			zap.String("type", string(event.Type)))
	}
}

// ClientCount returns the number of connected subscribers.
func (h *SessionHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, clients := range h.clients {
		n += len(clients)
	}
	return n
}

// Serve upgrades the request and subscribes the connection to sessionID.
func (h *SessionHub) Serve(w http.ResponseWriter, r *http.Request, sessionID string) {
	if h.closed.Load() {
		http.Error(w, "hub is shutting down", http.StatusServiceUnavailable)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := &Client{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Conn:      conn,
		Send:      make(chan []byte, sendBuffer),
		Hub:       h,
	}
	if !h.registerClient(client) {
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

func (h *SessionHub) registerClient(client *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed.Load() {
		return false
	}

	clients, ok := h.clients[client.SessionID]
	if !ok {
		clients = make(map[*Client]struct{})
		h.clients[client.SessionID] = clients
	}
	clients[client] = struct{}{}

	if data, err := encodeMessage(SessionMessage{Type: subscribedEvent, SessionID: client.SessionID, Time: time.Now().UTC()}); err == nil {
		client.Send <- data
	}

	h.logger.Debug("client connected",
		zap.String("client_id", client.ID),
		zap.String("session_id", client.SessionID),
		zap.Int("session_clients", len(clients)))
	return true
}

func (h *SessionHub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients, ok := h.clients[client.SessionID]
	if !ok {
		return
	}
	if _, ok := clients[client]; !ok {
		return
	}
	delete(clients, client)
	if len(clients) == 0 {
		delete(h.clients, client.SessionID)
	}
	close(client.Send)
	h.logger.Debug("client disconnected", zap.String("client_id", client.ID), zap.String("session_id", client.SessionID))
}

func (h *SessionHub) broadcastEvent(event interfaces.SessionEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	clients := h.clients[event.SessionID]
	if len(clients) == 0 {
		return
	}

	data, err := encodeMessage(SessionMessage{
		Type:      string(event.Type),
		SessionID: event.SessionID,
		Session:   event.Session,
		Turn:      event.Turn,
		Action:    event.Action,
		Time:      event.Timestamp,
	})
	if err != nil {
		h.logger.Error("failed to marshal session event", zap.Error(err))
		return
	}

	for client := range clients {
		select {
		case client.Send <- data:
		default:
			h.logger.Warn("client send buffer full", zap.String("client_id", client.ID))
		}
	}
}

// shutdown closes every subscriber. Later Publish and Serve calls are no-ops.
func (h *SessionHub) shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed.Store(true)
	for sessionID, clients := range h.clients {
		for client := range clients {
			close(client.Send)
		}
		delete(h.clients, sessionID)
	}
}

func encodeMessage(msg SessionMessage) ([]byte, error) {
	return json.Marshal(msg)
}

// writePump pumps messages from the hub to the WebSocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.mu.Lock()
			if c.closed {
				c.mu.Unlock()
				return
			}
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub closed the channel
				_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				c.mu.Unlock()
				return
			}

			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.Hub.logger.Debug("write failed", zap.String("client_id", c.ID), zap.Error(err))
				c.mu.Unlock()
				return
			}
			c.mu.Unlock()

		case <-ticker.C:
			c.mu.Lock()
			if c.closed {
				c.mu.Unlock()
				return
			}
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Hub.logger.Debug("ping failed", zap.String("client_id", c.ID), zap.Error(err))
				c.mu.Unlock()
				return
			}
			c.mu.Unlock()
		}
	}
}

// Close closes the client connection
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}

	c.closed = true
	c.Conn.Close()
}

// readPump drains the connection so control frames are handled; subscribers
// never send data.
func (c *Client) readPump() {
	defer func() {
		if !c.Hub.closed.Load() {
			c.Hub.unregister <- c
		}
		c.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.Hub.logger.Debug("unexpected close", zap.String("client_id", c.ID), zap.Error(err))
			}
			return
		}
	}
}
