// Package websocket pushes notifications to connected users as they are
// published.
package websocket

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/davidmoltin/efiling-workflows/internal/services"
	"github.com/davidmoltin/efiling-workflows/pkg/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Subscriber delivers the payloads published on a pub/sub channel.
// *database.RedisClient satisfies it.
type Subscriber interface {
	Subscribe(ctx context.Context, channel string) (<-chan []byte, func() error, error)
}

// NotificationMarker marks a user's notification read
type NotificationMarker interface {
	MarkRead(ctx context.Context, id, userID uuid.UUID) error
}

// MarkerFunc adapts a function to NotificationMarker
type MarkerFunc func(ctx context.Context, id, userID uuid.UUID) error

// MarkRead calls f
func (f MarkerFunc) MarkRead(ctx context.Context, id, userID uuid.UUID) error {
	return f(ctx, id, userID)
}

// Hub tracks the connected clients of this replica and delivers each
// notification to the connections of its recipient
type Hub struct {
	clients map[uuid.UUID]map[*Client]struct{}
	mu      sync.RWMutex

	register   chan *Client
	unregister chan *Client
	deliver    chan services.NotificationEnvelope

	channel    string
	subscriber Subscriber
	marker     NotificationMarker
	logger     *logger.Logger

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	unsub  func() error
}

// NewHub creates a hub for the notification channel. With a subscriber the
// hub listens on channel, so notifications published by any replica reach
// local clients. Without one it must be handed the notifications directly
// through Publish. marker may be nil.
func NewHub(channel string, subscriber Subscriber, marker NotificationMarker, log *logger.Logger) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		clients:    make(map[uuid.UUID]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		deliver:    make(chan services.NotificationEnvelope, 256),
		channel:    channel,
		subscriber: subscriber,
		marker:     marker,
		logger:     log.Named("websocket"),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
}

// Start starts the hub loop and, when configured, the channel subscription
func (h *Hub) Start() error {
	if h.subscriber != nil {
		payloads, unsub, err := h.subscriber.Subscribe(h.ctx, h.channel)
		if err != nil {
			return err
		}
		h.unsub = unsub
		go h.consume(payloads)
	}

	go h.run()

	h.logger.Info("WebSocket hub started", zap.String("channel", h.channel), zap.Bool("subscribed", h.subscriber != nil))
	return nil
}

// Stop disconnects every client and stops the hub
func (h *Hub) Stop() error {
	h.cancel()
	<-h.done

	var err error
	if h.unsub != nil {
		err = h.unsub()
	}

	h.logger.Info("WebSocket hub stopped")
	return err
}

// Publish accepts a payload published on the notification channel. It
// lets the hub stand in for the pub/sub broker on a single replica.
// Publishes on other channels are ignored.
func (h *Hub) Publish(ctx context.Context, channel string, message interface{}) error {
	if channel != h.channel {
		return nil
	}
	payload, ok := message.([]byte)
	if !ok {
		raw, err := json.Marshal(message)
		if err != nil {
			return err
		}
		payload = raw
	}
	h.accept(payload)
	return nil
}

func (h *Hub) consume(payloads <-chan []byte) {
	for {
		select {
		case <-h.ctx.Done():
			return
		case payload, ok := <-payloads:
			if !ok {
				h.logger.Warn("Notification subscription closed")
				return
			}
			h.accept(payload)
		}
	}
}

func (h *Hub) accept(payload []byte) {
	var env services.NotificationEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		h.logger.Error("Failed to decode notification payload", zap.Error(err))
		return
	}

	select {
	case h.deliver <- env:
	default:
		h.logger.Warn("Delivery queue full, dropping notification", logger.UUID("notification_id", env.Notification.ID))
	}
}

func (h *Hub) run() {
	defer close(h.done)
	for {
		select {
		case <-h.ctx.Done():
			h.closeAll()
			return

		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case env := <-h.deliver:
			h.deliverEnvelope(env)
		}
	}
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.clients[client.userID] == nil {
		h.clients[client.userID] = make(map[*Client]struct{})
	}
	h.clients[client.userID][client] = struct{}{}

	h.logger.Debug("Client registered",
		logger.UUID("client_id", client.id),
		logger.UUID("user_id", client.userID),
		zap.Int("total_clients", h.totalClients()),
	)
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients, ok := h.clients[client.userID]
	if !ok {
		return
	}
	if _, exists := clients[client]; !exists {
		return
	}

	delete(clients, client)
	client.closeSend()
	if len(clients) == 0 {
		delete(h.clients, client.userID)
	}

	h.logger.Debug("Client unregistered",
		logger.UUID("client_id", client.id),
		logger.UUID("user_id", client.userID),
		zap.Int("total_clients", h.totalClients()),
	)
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for userID, clients := range h.clients {
		for client := range clients {
			client.closeSend()
		}
		delete(h.clients, userID)
	}
}

func (h *Hub) deliverEnvelope(env services.NotificationEnvelope) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	clients := h.clients[env.Notification.UserID]
	if len(clients) == 0 {
		return
	}

	msg, err := NewMessage(MessageTypeNotification, env)
	if err != nil {
		h.logger.Error("Failed to build notification message", zap.Error(err))
		return
	}
	data, err := msg.ToJSON()
	if err != nil {
		h.logger.Error("Failed to encode notification message", zap.Error(err))
		return
	}

	for client := range clients {
		if !client.trySend(data) {
			h.logger.Warn("Client send buffer full, disconnecting",
				logger.UUID("client_id", client.id),
				logger.UUID("user_id", client.userID),
			)
			go client.Close()
		}
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.totalClients()
}

// UserClientCount returns the number of connections a user holds
func (h *Hub) UserClientCount(userID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

// totalClients must be called with the lock held
func (h *Hub) totalClients() int {
	count := 0
	for _, clients := range h.clients {
		count += len(clients)
	}
	return count
}
