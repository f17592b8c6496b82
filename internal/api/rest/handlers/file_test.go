package handlers

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/davidmoltin/efiling-workflows/internal/engine"
	"github.com/davidmoltin/efiling-workflows/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileHandler_Movements(t *testing.T) {
	h := newAPIHarness(t)
	wf := h.startWorkflow(t)
	h.do(t, http.MethodPost, "/workflows/"+wf.ID.String()+"/stages/"+h.stageID(1)+"/actions", &h.ce, PerformActionRequest{ActionType: "APPROVE"})

	rec := h.do(t, http.MethodGet, "/files/"+h.file.ID.String()+"/movements", &h.creator, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Movements []models.FileMovement `json:"movements"`
		Count     int                   `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, 2, body.Count)
	assert.Equal(t, models.MovementCreate, body.Movements[0].ActionType)
	assert.Equal(t, models.MovementApprove, body.Movements[1].ActionType)

	rec = h.do(t, http.MethodGet, "/files/"+uuid.NewString()+"/movements", &h.creator, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestFileHandler_Workflows(t *testing.T) {
	h := newAPIHarness(t)

	rec := h.do(t, http.MethodGet, "/files/"+h.file.ID.String()+"/workflows", &h.creator, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"workflows":[],"count":0}`, rec.Body.String())

	wf := h.startWorkflow(t)

	rec = h.do(t, http.MethodGet, "/files/"+h.file.ID.String()+"/workflows", &h.creator, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Workflows []models.WorkflowInstance `json:"workflows"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Workflows, 1)
	assert.Equal(t, wf.ID, body.Workflows[0].ID)
}

func TestFileHandler_Sign(t *testing.T) {
	t.Run("first signature succeeds and a repeat is forbidden", func(t *testing.T) {
		h := newAPIHarness(t)
		path := "/files/" + h.file.ID.String() + "/signatures"

		rec := h.do(t, http.MethodPost, path, &h.ce, SignFileRequest{SignatureData: "data:image/png;base64,iVBORw0KGgo="})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var sig models.Signature
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sig))
		assert.Equal(t, h.ce.ID, sig.UserID)

		rec = h.do(t, http.MethodPost, path, &h.ce, SignFileRequest{SignatureData: "data:image/png;base64,iVBORw0KGgo="})
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Equal(t, string(engine.CodeForbidden), decodeError(t, rec).Code)

		rec = h.do(t, http.MethodGet, path, &h.ceo, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var list struct {
			Count int `json:"count"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
		assert.Equal(t, 1, list.Count)
	})

	t.Run("creator re-signs after a return from higher authority", func(t *testing.T) {
		h := newAPIHarness(t)
		path := "/files/" + h.file.ID.String() + "/signatures"
		wf := h.startWorkflow(t)

		rec := h.do(t, http.MethodPost, path, &h.creator, SignFileRequest{SignatureData: "sig-1"})
		require.Equal(t, http.StatusCreated, rec.Code)

		rec = h.do(t, http.MethodPost, "/workflows/"+wf.ID.String()+"/stages/"+h.stageID(1)+"/actions", &h.ce,
			PerformActionRequest{ActionType: "RETURN", Details: models.JSONB{"reason": "attach the estimate"}})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		rec = h.do(t, http.MethodPost, path, &h.creator, SignFileRequest{SignatureData: "sig-2"})
		assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	})

	t.Run("blank signature is rejected", func(t *testing.T) {
		h := newAPIHarness(t)

		rec := h.do(t, http.MethodPost, "/files/"+h.file.ID.String()+"/signatures", &h.ce, SignFileRequest{SignatureData: "   "})

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown file", func(t *testing.T) {
		h := newAPIHarness(t)

		rec := h.do(t, http.MethodPost, "/files/"+uuid.NewString()+"/signatures", &h.ce, SignFileRequest{SignatureData: "sig"})

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}
