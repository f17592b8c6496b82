package handlers

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/davidmoltin/efiling-workflows/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type notificationList struct {
	Notifications []models.Notification `json:"notifications"`
	Count         int                   `json:"count"`
}

func listNotifications(t *testing.T, h *apiHarness, u *models.User, query string) notificationList {
	t.Helper()
	rec := h.do(t, http.MethodGet, "/notifications"+query, u, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body notificationList
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestNotificationHandler_ListAndMarkRead(t *testing.T) {
	h := newAPIHarness(t)
	h.startWorkflow(t)

	inbox := listNotifications(t, h, &h.ce, "?unread=true")
	require.Equal(t, 1, inbox.Count)
	note := inbox.Notifications[0]
	assert.Equal(t, h.ce.ID, note.UserID)
	assert.Equal(t, h.file.ID, note.FileID)
	assert.False(t, note.IsRead)

	// Another user cannot mark it read
	rec := h.do(t, http.MethodPost, "/notifications/"+note.ID.String()+"/read", &h.ceo, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = h.do(t, http.MethodPost, "/notifications/"+note.ID.String()+"/read", &h.ce, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	assert.Equal(t, 0, listNotifications(t, h, &h.ce, "?unread=true").Count)
	assert.Equal(t, 1, listNotifications(t, h, &h.ce, "").Count)

	// The initiator is never notified of their own action
	assert.Equal(t, 0, listNotifications(t, h, &h.creator, "").Count)
}

func TestNotificationHandler_MarkRead_BadRequests(t *testing.T) {
	h := newAPIHarness(t)

	rec := h.do(t, http.MethodPost, "/notifications/nope/read", &h.ce, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = h.do(t, http.MethodPost, "/notifications/"+uuid.NewString()+"/read", &h.ce, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = h.do(t, http.MethodGet, "/notifications", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
