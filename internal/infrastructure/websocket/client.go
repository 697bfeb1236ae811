package websocket

import (
	"log"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 64 * 1024
	sendBufferSize = 256
)

// Client is one registered transport-level connection. Each client maps to
// exactly one resolved identity; an identity may own many clients (tabs).
// All outbound traffic for a client goes through its Send channel, which the
// write pump drains single-writer.
type Client struct {
	Handle      string // arena id assigned by the Manager
	UserID      string
	Role        string
	Conn        *websocket.Conn
	Send        chan []byte
	idleTimeout time.Duration
}

func NewClient(conn *websocket.Conn, userID, role string, idleTimeout time.Duration) *Client {
	return &Client{
		UserID:      userID,
		Role:        role,
		Conn:        conn,
		Send:        make(chan []byte, sendBufferSize),
		idleTimeout: idleTimeout,
	}
}

// ReadPump reads frames from the connection and hands them to handle. It
// enforces the liveness contract: the read deadline is pushed forward on
// every frame and every pong, so an idle or dead peer times out and gets
// unregistered, releasing its subscriptions.
func (c *Client) ReadPump(m *Manager, handle func(*Client, []byte)) {
	defer func() {
		m.Unregister(c.Handle)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.idleTimeout))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.idleTimeout))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket: read error for client %s (%s): %v", c.Handle, c.UserID, err)
			}
			break
		}
		c.Conn.SetReadDeadline(time.Now().Add(c.idleTimeout))
		handle(c, message)
	}
}

// WritePump drains the Send channel to the connection and keeps the peer
// alive with periodic pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(c.idleTimeout * 9 / 10)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Printf("WebSocket: write error for client %s (%s): %v", c.Handle, c.UserID, err)
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
