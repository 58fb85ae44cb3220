package websocket

import (
	"encoding/json"
	"sync"
	"time"

	"chatcore/config"
	"chatcore/pkg/logger"
	"chatcore/pkg/metrics"
	"chatcore/services/events"

	"github.com/gofiber/contrib/websocket"
	"github.com/google/uuid"
)

// Frame is one inbound WebSocket frame
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Client represents one WebSocket session. Send is never closed: a removed
// client simply stops being delivered to, and its WritePump exits when the
// connection dies. Closing the channel instead would race concurrent
// Deliver calls.
type Client struct {
	SessionID string
	Conn      *websocket.Conn
	Send      chan *events.Event

	manager *Manager
}

// Manager tracks live WebSocket sessions and delivers outbound events to
// them. It is the delivery sink of the whole service layer: an event for a
// session that is gone, or whose send queue is full, is dropped.
type Manager struct {
	cfg config.DeliveryConfig

	mu      sync.RWMutex
	clients map[string]*Client // session id -> client
}

// NewManager creates a new WebSocket session manager
func NewManager(cfg config.DeliveryConfig) *Manager {
	return &Manager{
		cfg:     cfg,
		clients: make(map[string]*Client),
	}
}

// Add wraps a fresh connection in a client with a new session id and tracks
// it. The caller runs the pumps.
func (m *Manager) Add(conn *websocket.Conn) *Client {
	client := &Client{
		SessionID: uuid.NewString(),
		Conn:      conn,
		Send:      make(chan *events.Event, m.cfg.SessionQueueSize),
		manager:   m,
	}

	m.mu.Lock()
	m.clients[client.SessionID] = client
	total := len(m.clients)
	m.mu.Unlock()

	logger.WithFields(map[string]any{
		"session_id":    client.SessionID,
		"total_clients": total,
	}).Info("WebSocket client registered")

	return client
}

// Remove drops the session from the manager. Idempotent; in-flight Deliver
// calls racing the removal either enqueue onto the abandoned queue or drop.
func (m *Manager) Remove(sessionID string) {
	m.mu.Lock()
	_, exists := m.clients[sessionID]
	if exists {
		delete(m.clients, sessionID)
	}
	total := len(m.clients)
	m.mu.Unlock()

	if !exists {
		return
	}

	logger.WithFields(map[string]any{
		"session_id":    sessionID,
		"total_clients": total,
	}).Info("WebSocket client unregistered")
}

// Deliver queues an event for one session. Best-effort: never blocks the
// caller.
func (m *Manager) Deliver(sessionID string, ev *events.Event) {
	m.mu.RLock()
	client, exists := m.clients[sessionID]
	m.mu.RUnlock()

	if !exists {
		metrics.RecordDrop(string(ev.Name))
		return
	}

	select {
	case client.Send <- ev:
		metrics.RecordDelivery(string(ev.Name))
	default:
		logger.WithFields(map[string]any{
			"session_id": sessionID,
			"event":      ev.Name,
		}).Warn("Client send buffer full, dropping event")
		metrics.RecordDrop(string(ev.Name))
	}
}

// CloseAll force-closes every tracked connection
func (m *Manager) CloseAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, client := range m.clients {
		client.Conn.Close()
	}
	m.clients = make(map[string]*Client)
}

// ReadPump reads inbound frames until the connection dies, handing each one
// to the dispatcher. The onClose callback runs exactly once afterwards.
func (c *Client) ReadPump(handle func(*Client, *Frame), onClose func(*Client)) {
	defer func() {
		onClose(c)
		c.Conn.Close()
	}()

	pongWait := c.manager.cfg.PongTimeout
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var frame Frame
		if err := c.Conn.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.WithError(err).Error("WebSocket read error")
			}
			break
		}

		handle(c, &frame)
	}
}

// WritePump drains the send queue onto the wire and keeps the connection
// alive with pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(c.manager.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	writeWait := c.manager.cfg.WriteTimeout

	for {
		select {
		case ev := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteJSON(ev); err != nil {
				logger.WithError(err).Error("WebSocket write error")
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
