package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/davidmoltin/efiling-workflows/pkg/logger"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Client frames are small control messages
	maxMessageSize = 4 * 1024

	sendBuffer = 64
)

// Client is one user's connection to the notification stream
type Client struct {
	id        uuid.UUID
	userID    uuid.UUID
	hub       *Hub
	conn      *websocket.Conn
	send      chan []byte
	logger    *logger.Logger
	closeOnce sync.Once

	mu     sync.Mutex
	closed bool
}

// NewClient creates a client for an upgraded connection
func NewClient(hub *Hub, conn *websocket.Conn, userID uuid.UUID) *Client {
	id := uuid.New()
	return &Client{
		id:     id,
		userID: userID,
		hub:    hub,
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
		logger: hub.logger.With(logger.UUID("client_id", id), logger.UUID("user_id", userID)),
	}
}

// Start registers the client and starts its read and write goroutines.
// It returns false when the hub is already stopped.
func (c *Client) Start() bool {
	select {
	case c.hub.register <- c:
	case <-c.hub.ctx.Done():
		c.conn.Close()
		return false
	}

	go c.writePump()
	go c.readPump()
	c.queue(MessageTypeConnected, map[string]string{"user_id": c.userID.String()})
	return true
}

// Close unregisters the client; the write pump then closes the connection
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.ctx.Done():
		}
	})
}

func (c *Client) readPump() {
	defer c.Close()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("WebSocket read error", zap.Error(err))
			}
			return
		}
		c.handleMessage(data)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
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

func (c *Client) handleMessage(data []byte) {
	msg, err := ParseMessage(data)
	if err != nil {
		c.queue(MessageTypeError, ErrorData{Code: "PARSE_ERROR", Message: "invalid message format"})
		return
	}

	switch msg.Type {
	case MessageTypePing:
		c.queue(MessageTypePong, nil)

	case MessageTypeMarkRead:
		var req MarkReadData
		if err := json.Unmarshal(msg.Data, &req); err != nil || req.ID == uuid.Nil {
			c.queue(MessageTypeError, ErrorData{Code: "VALIDATION_FAILED", Message: "mark_read needs a notification id"})
			return
		}
		if c.hub.marker == nil {
			c.queue(MessageTypeError, ErrorData{Code: "UNSUPPORTED", Message: "mark_read is not available"})
			return
		}

		ctx, cancel := context.WithTimeout(c.hub.ctx, writeWait)
		err := c.hub.marker.MarkRead(ctx, req.ID, c.userID)
		cancel()
		if err != nil {
			c.logger.Warn("Failed to mark notification read", logger.UUID("notification_id", req.ID), zap.Error(err))
			c.queue(MessageTypeError, ErrorData{Code: "NOT_FOUND", Message: "notification not found"})
			return
		}
		c.queue(MessageTypeMarkedRead, req)

	default:
		c.queue(MessageTypeError, ErrorData{Code: "UNKNOWN_TYPE", Message: "unknown message type " + string(msg.Type)})
	}
}

// queue sends a frame to this client only, dropping it when the buffer is full
func (c *Client) queue(msgType MessageType, data interface{}) {
	msg, err := NewMessage(msgType, data)
	if err != nil {
		c.logger.Error("Failed to build message", zap.Error(err))
		return
	}
	raw, err := msg.ToJSON()
	if err != nil {
		return
	}

	if !c.trySend(raw) {
		c.logger.Warn("Send buffer full, dropping message", zap.String("type", string(msgType)))
	}
}

// trySend queues a frame without blocking. It reports false only when the
// buffer is full; frames for a closed client are discarded.
func (c *Client) trySend(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return true
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// closeSend closes the send buffer, which ends the write pump
func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.send)
	}
}
