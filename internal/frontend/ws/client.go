package ws

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Client frame types.
const (
	FrameJoin  = "join"
	FrameLeave = "leave"
)

// Frame is a message sent by a client.
type Frame struct {
	Type   string `json:"type"`
	RoomID string `json:"roomId"`
}

type client struct {
	hub       *Hub
	conn      *websocket.Conn
	accountID string

	// rooms is guarded by hub.mu.
	rooms map[string]struct{}

	mu     sync.Mutex
	send   chan []byte
	closed bool
}

// enqueue queues msg without blocking. Returns false when the queue is full.
func (c *client) enqueue(msg []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return true
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

func (c *client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

func (c *client) readPump() {
	defer func() {
		c.hub.remove(c)
		c.conn.Close()
	}()
	pongWait := c.hub.pongWait()
	c.conn.SetReadLimit(maxFrameBytes)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Debug("websocket read", zap.String("account_id", c.accountID), zap.Error(err))
			}
			return
		}
		var f Frame
		if err := json.Unmarshal(data, &f); err != nil || f.RoomID == "" {
			continue
		}
		switch f.Type {
		case FrameJoin:
			c.hub.join(c, f.RoomID)
		case FrameLeave:
			c.hub.leave(c, f.RoomID)
		}
	}
}

func (c *client) writePump() {
	pingPeriod := c.hub.pongWait() * 9 / 10
	writeWait := c.hub.writeWait()
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
