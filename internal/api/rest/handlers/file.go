package handlers

import (
	"context"
	"net/http"

	"github.com/davidmoltin/efiling-workflows/internal/models"
	"github.com/davidmoltin/efiling-workflows/pkg/logger"
	"github.com/google/uuid"
)

// Signer is the e-signature service surface the handlers use
type Signer interface {
	SignFile(ctx context.Context, fileID uuid.UUID, actor models.Actor, signatureData string) (*models.Signature, error)
	ListSignatures(ctx context.Context, fileID uuid.UUID) ([]models.Signature, error)
}

// SignFileRequest is the body of POST /files/{id}/signatures
type SignFileRequest struct {
	SignatureData string `json:"signature_data" validate:"required"`
}

// FileHandler serves per-file read models and e-signatures
type FileHandler struct {
	logger    *logger.Logger
	workflows WorkflowCommands
	signer    Signer
}

// NewFileHandler creates a new file handler
func NewFileHandler(log *logger.Logger, workflows WorkflowCommands, signer Signer) *FileHandler {
	return &FileHandler{logger: log, workflows: workflows, signer: signer}
}

// Movements handles GET /api/v1/files/{id}/movements
func (h *FileHandler) Movements(w http.ResponseWriter, r *http.Request) {
	fileID, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	movements, err := h.workflows.GetFileHistory(r.Context(), fileID)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"movements": movements,
		"count":     len(movements),
	})
}

// Workflows handles GET /api/v1/files/{id}/workflows
func (h *FileHandler) Workflows(w http.ResponseWriter, r *http.Request) {
	fileID, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	workflows, err := h.workflows.ListFileWorkflows(r.Context(), fileID)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"workflows": workflows,
		"count":     len(workflows),
	})
}

// Sign handles POST /api/v1/files/{id}/signatures
func (h *FileHandler) Sign(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	fileID, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	var req SignFileRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	sig, err := h.signer.SignFile(r.Context(), fileID, actor, req.SignatureData)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}

	respondJSON(w, http.StatusCreated, sig)
}

// Signatures handles GET /api/v1/files/{id}/signatures
func (h *FileHandler) Signatures(w http.ResponseWriter, r *http.Request) {
	fileID, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	sigs, err := h.signer.ListSignatures(r.Context(), fileID)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"signatures": sigs,
		"count":      len(sigs),
	})
}
