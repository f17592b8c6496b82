package websocket

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// MessageType represents the type of WebSocket message
type MessageType string

const (
	// Server to client
	MessageTypeConnected    MessageType = "connected"
	MessageTypeNotification MessageType = "notification.created"
	MessageTypeMarkedRead   MessageType = "notification.read"
	MessageTypePong         MessageType = "pong"
	MessageTypeError        MessageType = "error"

	// Client to server
	MessageTypePing     MessageType = "ping"
	MessageTypeMarkRead MessageType = "mark_read"
)

// Message is the frame exchanged over the notification stream
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// MarkReadData is the payload of a mark_read request
type MarkReadData struct {
	ID uuid.UUID `json:"id"`
}

// ErrorData contains error details
type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewMessage creates a message with data marshaled as its payload
func NewMessage(msgType MessageType, data interface{}) (*Message, error) {
	msg := &Message{Type: msgType, Timestamp: time.Now().UTC()}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal %s payload: %w", msgType, err)
		}
		msg.Data = raw
	}
	return msg, nil
}

// ToJSON encodes the message
func (m *Message) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ParseMessage decodes a client frame
func ParseMessage(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Type == "" {
		return nil, fmt.Errorf("message type is required")
	}
	return &msg, nil
}
