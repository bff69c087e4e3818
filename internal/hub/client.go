package hub

import (
	"time"

	"github.com/gorilla/websocket"
	"github.com/weiawesome/live-poll/internal/config"
	"github.com/weiawesome/live-poll/internal/domain"
	"github.com/weiawesome/live-poll/pkg/log"
)

const defaultSendBuffer = 256

// DisconnectHandler runs once after a client's read loop ends.
type DisconnectHandler func(*Client)

type Client struct {
	ID   string
	Role domain.Role
	Hub  *Hub
	Conn *websocket.Conn
	// Send is closed by the hub only, under its lock.
	Send   chan []byte
	config config.WebSocketConfig

	onDisconnect DisconnectHandler
}

func NewClient(id string, role domain.Role, hub *Hub, conn *websocket.Conn, cfg config.WebSocketConfig) *Client {
	size := cfg.SendBuffer
	if size <= 0 {
		size = defaultSendBuffer
	}
	return &Client{
		ID:     id,
		Role:   role,
		Hub:    hub,
		Conn:   conn,
		Send:   make(chan []byte, size),
		config: cfg,
	}
}

// SetDisconnectHandler sets the handler called when the connection closes.
func (c *Client) SetDisconnectHandler(handler DisconnectHandler) {
	c.onDisconnect = handler
}

func (c *Client) ReadPump(handler func(*Client, []byte)) {
	defer func() {
		c.Hub.Unregister(c)
		c.Conn.Close()
		if c.onDisconnect != nil {
			c.onDisconnect(c)
		}
	}()

	c.Conn.SetReadLimit(c.config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.config.PongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.config.PongWait))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				l := log.L()
				l.Warn().Err(err).Str(log.FieldConnectionID, c.ID).Msg("websocket read error")
			}
			break
		}

		handler(c, message)
	}
}

func (c *Client) WritePump() {
	ticker := time.NewTicker(c.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.config.WriteWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
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
