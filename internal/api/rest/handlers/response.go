package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/davidmoltin/efiling-workflows/internal/api/rest/middleware"
	"github.com/davidmoltin/efiling-workflows/internal/engine"
	"github.com/davidmoltin/efiling-workflows/internal/models"
	"github.com/davidmoltin/efiling-workflows/pkg/logger"
	"github.com/davidmoltin/efiling-workflows/pkg/validator"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// ErrorResponse is the JSON body of every failed request
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail carries a machine readable code and a human message
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Codes produced by the HTTP layer itself
const (
	CodeBadRequest       = "BAD_REQUEST"
	CodeValidationFailed = "VALIDATION_FAILED"
	CodeUnauthorized     = "UNAUTHORIZED"
)

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{Error: ErrorDetail{Code: code, Message: message}})
}

// statusFor maps an engine error code onto its HTTP status
func statusFor(code engine.Code) int {
	switch code {
	case engine.CodeNotFound:
		return http.StatusNotFound
	case engine.CodeForbidden:
		return http.StatusForbidden
	case engine.CodeInvalidAction:
		return http.StatusBadRequest
	case engine.CodeConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// respondServiceError writes an engine error. Internal causes are logged
// and replaced by a generic message.
func respondServiceError(w http.ResponseWriter, log *logger.Logger, err error) {
	code := engine.CodeOf(err)
	status := statusFor(code)

	if status == http.StatusInternalServerError {
		log.Error("Request failed", logger.Err(err))
		respondError(w, status, string(engine.CodeInternal), "internal error")
		return
	}

	message := err.Error()
	var e *engine.Error
	if errors.As(err, &e) {
		message = e.Message
	}
	respondError(w, status, string(code), message)
}

// decodeAndValidate reads a JSON body into dst and runs its validate tags
func decodeAndValidate(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body")
		return false
	}
	if err := validator.Validate(dst); err != nil {
		respondError(w, http.StatusBadRequest, CodeValidationFailed, err.Error())
		return false
	}
	return true
}

// uuidParam parses a chi URL parameter as a UUID
func uuidParam(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		respondError(w, http.StatusBadRequest, CodeBadRequest, "Invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

// requireActor returns the authenticated actor or writes 401
func requireActor(w http.ResponseWriter, r *http.Request) (models.Actor, bool) {
	actor, ok := middleware.GetActor(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, CodeUnauthorized, "Authentication required")
	}
	return actor, ok
}
