package hub

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/fmonfasani/nexus/internal/config"
	"github.com/fmonfasani/nexus/internal/domain"
	"github.com/fmonfasani/nexus/pkg/log"
)

// DisconnectHandler is called once when a client disconnects, before the
// client is unregistered from the hub.
type DisconnectHandler func(*Client)

// Client represents a connected WebSocket client. Conn may be nil in
// tests; everything except the pumps works without a socket.
type Client struct {
	ID      string
	Hub     *Hub
	Conn    *websocket.Conn
	Send    chan []byte
	Session *domain.Session

	config            config.WebSocketConfig
	disconnectOnce    sync.Once
	disconnectHandler DisconnectHandler

	reasonMu         sync.Mutex
	disconnectReason string
}

// NewClient creates a new client attached to the hub.
func NewClient(id string, hub *Hub, conn *websocket.Conn, cfg config.WebSocketConfig) *Client {
	buffer := cfg.SendBuffer
	if buffer <= 0 {
		buffer = 256
	}
	return &Client{
		ID:      id,
		Hub:     hub,
		Conn:    conn,
		Send:    make(chan []byte, buffer),
		Session: domain.NewSession(id),
		config:  cfg,
	}
}

// SetDisconnectHandler sets the handler to be called on disconnect.
func (c *Client) SetDisconnectHandler(handler DisconnectHandler) {
	c.disconnectHandler = handler
}

// DisconnectReason reports why this client disconnected. "disconnect"
// unless the hub force-dropped it.
func (c *Client) DisconnectReason() string {
	c.reasonMu.Lock()
	defer c.reasonMu.Unlock()
	if c.disconnectReason == "" {
		return domain.LeaveReasonDisconnect
	}
	return c.disconnectReason
}

func (c *Client) setDisconnectReason(reason string) {
	c.reasonMu.Lock()
	c.disconnectReason = reason
	c.reasonMu.Unlock()
}

// ReadPump pumps messages from the WebSocket connection to the handler.
func (c *Client) ReadPump(handler func(*Client, []byte)) {
	defer c.disconnect()

	c.Conn.SetReadLimit(c.config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.config.PongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.config.PongWait))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				l := log.L()
				l.Error().Err(err).Str(log.FieldClientID, c.ID).Msg("websocket error")
			}
			break
		}

		if c.Session != nil {
			c.Session.UpdateActivity()
		}

		handler(c, message)
	}
}

// WritePump pumps messages from the send queue to the WebSocket connection.
func (c *Client) WritePump() {
	ticker := time.NewTicker(c.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.closeConn()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.config.WriteWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.Conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.config.WriteWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// SendMessage enqueues a message to the client, best-effort.
func (c *Client) SendMessage(message interface{}) error {
	data, err := json.Marshal(message)
	if err != nil {
		return err
	}

	select {
	case c.Send <- data:
	default:
	}
	return nil
}

// disconnect runs the disconnect handler exactly once, then unregisters
// the client and closes the socket.
func (c *Client) disconnect() {
	c.disconnectOnce.Do(func() {
		if c.disconnectHandler != nil {
			c.disconnectHandler(c)
		}
		c.Hub.Unregister(c)
		c.closeConn()
	})
}

func (c *Client) closeConn() {
	if c.Conn != nil {
		c.Conn.Close()
	}
}
