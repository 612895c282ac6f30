package websocket

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"creatorlink/pkg/logger"
)

const (
	writeWait      = 10 * time.Second
	sendBufferSize = 256
)

// Client is the presence entry for one connected identity: the socket, its
// outbound queue and the display metadata broadcast with presence events.
// It exists only in process memory and dies with the connection.
type Client struct {
	UserID      string
	DisplayName string
	Conn        *websocket.Conn
	Send        chan []byte
	ConnectedAt time.Time

	// StatusLabel is the optional free-form label set via update_status.
	// Guarded by the manager's mutex.
	StatusLabel string

	done     chan struct{}
	doneOnce sync.Once
}

// NewClient wraps an upgraded connection for the given identity.
func NewClient(userID, displayName string, conn *websocket.Conn) *Client {
	return &Client{
		UserID:      userID,
		DisplayName: displayName,
		Conn:        conn,
		Send:        make(chan []byte, sendBufferSize),
		ConnectedAt: time.Now(),
		done:        make(chan struct{}),
	}
}

// shutdown stops the write loop and closes the socket. Safe to call more
// than once; the send channel is never closed so publishers cannot panic
// on a racing disconnect.
func (c *Client) shutdown() {
	c.doneOnce.Do(func() {
		close(c.done)
		if c.Conn != nil {
			c.Conn.Close()
		}
	})
}

// ReadPump reads frames from the socket and hands them to the manager.
// It unregisters the client when the connection drops.
func (c *Client) ReadPump(m *Manager) {
	defer m.Unregister(c)

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Warn("websocket read error for user %s: %v", c.UserID, err)
			}
			return
		}

		m.HandleClientMessage(c, message)
	}
}

// WritePump drains the send queue onto the socket until shutdown.
func (c *Client) WritePump() {
	defer c.shutdown()

	for {
		select {
		case <-c.done:
			c.Conn.WriteControl(websocket.CloseMessage, []byte{}, time.Now().Add(writeWait))
			return
		case message := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				logger.Warn("websocket write error for user %s: %v", c.UserID, err)
				return
			}
		}
	}
}
