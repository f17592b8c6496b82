package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/davidmoltin/efiling-workflows/internal/api/rest/middleware"
	"github.com/davidmoltin/efiling-workflows/internal/models"
	"github.com/davidmoltin/efiling-workflows/internal/services"
	"github.com/davidmoltin/efiling-workflows/pkg/logger"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testChannel = "efiling:test"

type fakeMarker struct {
	mu     sync.Mutex
	marked map[uuid.UUID]uuid.UUID
}

func (f *fakeMarker) MarkRead(ctx context.Context, id, userID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if id == uuid.Nil {
		return errors.New("not found")
	}
	f.marked[id] = userID
	return nil
}

type fakeSubscriber struct {
	payloads chan []byte
}

func (f *fakeSubscriber) Subscribe(ctx context.Context, channel string) (<-chan []byte, func() error, error) {
	return f.payloads, func() error { return nil }, nil
}

// streamServer serves the handler with the user id taken from the X-User header
func streamServer(t *testing.T, hub *Hub) *httptest.Server {
	t.Helper()
	h := NewHandler(hub, []string{"http://localhost:3000"})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id, err := uuid.Parse(r.Header.Get("X-User")); err == nil {
			r = r.WithContext(middleware.WithActor(r.Context(), models.Actor{ID: id, Role: "CE"}))
		}
		h.ServeHTTP(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server, userID uuid.UUID) *websocket.Conn {
	t.Helper()
	header := http.Header{}
	header.Set("X-User", userID.String())
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), header)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	msg := readMessage(t, conn)
	require.Equal(t, MessageTypeConnected, msg.Type)
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) *Message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	msg, err := ParseMessage(data)
	require.NoError(t, err)
	return msg
}

func publishPayload(t *testing.T, n models.Notification) []byte {
	t.Helper()
	payload, err := json.Marshal(services.NotificationEnvelope{Title: "File assigned", Notification: n})
	require.NoError(t, err)
	return payload
}

func waitForClients(t *testing.T, hub *Hub, userID uuid.UUID, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return hub.UserClientCount(userID) == n }, 2*time.Second, 10*time.Millisecond)
}

func TestHub_DeliversPublishedNotificationToRecipientOnly(t *testing.T) {
	hub := NewHub(testChannel, nil, nil, logger.NewForTesting())
	require.NoError(t, hub.Start())
	defer hub.Stop()
	srv := streamServer(t, hub)

	recipient, other := uuid.New(), uuid.New()
	conn := dial(t, srv, recipient)
	otherConn := dial(t, srv, other)
	waitForClients(t, hub, recipient, 1)
	waitForClients(t, hub, other, 1)

	n := models.Notification{ID: uuid.New(), UserID: recipient, FileID: uuid.New(), Type: models.NotificationAssigned, Message: "File EF-1 awaits your review"}

	// The per-user channel is ignored so each notification arrives once
	require.NoError(t, hub.Publish(context.Background(), testChannel+":"+recipient.String(), publishPayload(t, n)))
	require.NoError(t, hub.Publish(context.Background(), testChannel, publishPayload(t, n)))

	msg := readMessage(t, conn)
	assert.Equal(t, MessageTypeNotification, msg.Type)
	var env services.NotificationEnvelope
	require.NoError(t, json.Unmarshal(msg.Data, &env))
	assert.Equal(t, n.ID, env.Notification.ID)
	assert.Equal(t, "File assigned", env.Title)

	otherConn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	_, _, err := otherConn.ReadMessage()
	assert.Error(t, err, "other users receive nothing")
}

func TestHub_ForwardsSubscribedPayloads(t *testing.T) {
	sub := &fakeSubscriber{payloads: make(chan []byte, 1)}
	hub := NewHub(testChannel, sub, nil, logger.NewForTesting())
	require.NoError(t, hub.Start())
	defer hub.Stop()
	srv := streamServer(t, hub)

	user := uuid.New()
	conn := dial(t, srv, user)
	waitForClients(t, hub, user, 1)

	n := models.Notification{ID: uuid.New(), UserID: user, FileID: uuid.New()}
	sub.payloads <- publishPayload(t, n)

	msg := readMessage(t, conn)
	assert.Equal(t, MessageTypeNotification, msg.Type)
}

func TestClient_PingAndMarkRead(t *testing.T) {
	marker := &fakeMarker{marked: map[uuid.UUID]uuid.UUID{}}
	hub := NewHub(testChannel, nil, marker, logger.NewForTesting())
	require.NoError(t, hub.Start())
	defer hub.Stop()
	srv := streamServer(t, hub)

	user := uuid.New()
	conn := dial(t, srv, user)

	require.NoError(t, conn.WriteJSON(Message{Type: MessageTypePing}))
	assert.Equal(t, MessageTypePong, readMessage(t, conn).Type)

	id := uuid.New()
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"mark_read","data":{"id":"`+id.String()+`"}}`)))
	assert.Equal(t, MessageTypeMarkedRead, readMessage(t, conn).Type)
	marker.mu.Lock()
	assert.Equal(t, user, marker.marked[id])
	marker.mu.Unlock()

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"mark_read","data":{}}`)))
	assert.Equal(t, MessageTypeError, readMessage(t, conn).Type)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`not json`)))
	assert.Equal(t, MessageTypeError, readMessage(t, conn).Type)
}

func TestHandler_RejectsUnauthenticatedAndForeignOrigins(t *testing.T) {
	hub := NewHub(testChannel, nil, nil, logger.NewForTesting())
	require.NoError(t, hub.Start())
	defer hub.Stop()
	srv := streamServer(t, hub)
	url := "ws" + strings.TrimPrefix(srv.URL, "http")

	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	header := http.Header{}
	header.Set("X-User", uuid.New().String())
	header.Set("Origin", "http://evil.example")
	_, resp, err = websocket.DefaultDialer.Dial(url, header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestHub_StopDisconnectsClients(t *testing.T) {
	hub := NewHub(testChannel, nil, nil, logger.NewForTesting())
	require.NoError(t, hub.Start())
	srv := streamServer(t, hub)

	user := uuid.New()
	conn := dial(t, srv, user)
	waitForClients(t, hub, user, 1)

	require.NoError(t, hub.Stop())
	assert.Equal(t, 0, hub.ClientCount())

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
}
