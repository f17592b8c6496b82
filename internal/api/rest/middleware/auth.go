package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/davidmoltin/efiling-workflows/internal/models"
	"github.com/davidmoltin/efiling-workflows/pkg/auth"
	"github.com/davidmoltin/efiling-workflows/pkg/logger"
	"github.com/davidmoltin/efiling-workflows/pkg/metrics"
	"go.uber.org/zap"
)

type contextKey int

const (
	actorKey contextKey = iota
	claimsKey
	holderKey
)

// TokenValidator verifies a bearer token issued by the identity provider
type TokenValidator interface {
	ValidateToken(tokenString string) (*auth.JWTClaims, error)
}

// JWTAuth resolves the bearer token into the request's Actor. Requests
// without a valid token are rejected with 401.
func JWTAuth(validator TokenValidator, m *metrics.Metrics, log *logger.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				m.AuthFailure("missing_header")
				respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Missing authorization header")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				m.AuthFailure("malformed_header")
				respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid authorization header format")
				return
			}

			claims, err := validator.ValidateToken(parts[1])
			if err != nil {
				m.AuthFailure("invalid_token")
				log.Warn("Invalid JWT token", zap.Error(err))
				respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid or expired token")
				return
			}

			actor := models.Actor{
				ID:         claims.UserID,
				Role:       strings.ToUpper(strings.TrimSpace(claims.Role)),
				Department: claims.Department,
			}

			ctx := WithActor(r.Context(), actor)
			ctx = context.WithValue(ctx, claimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// WithActor stores the authenticated actor on ctx
func WithActor(ctx context.Context, actor models.Actor) context.Context {
	if h, ok := ctx.Value(holderKey).(*actorHolder); ok {
		h.actor, h.set = actor, true
	}
	return context.WithValue(ctx, actorKey, actor)
}

// actorHolder lets outer middleware observe the actor resolved by an
// inner one.
type actorHolder struct {
	actor models.Actor
	set   bool
}

func withActorHolder(ctx context.Context, h *actorHolder) context.Context {
	return context.WithValue(ctx, holderKey, h)
}

// GetActor returns the authenticated actor, if any
func GetActor(ctx context.Context) (models.Actor, bool) {
	actor, ok := ctx.Value(actorKey).(models.Actor)
	return actor, ok
}

// GetClaims extracts JWT claims from request context
func GetClaims(ctx context.Context) *auth.JWTClaims {
	if claims, ok := ctx.Value(claimsKey).(*auth.JWTClaims); ok {
		return claims
	}
	return nil
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// respondError sends an error response with proper JSON encoding
func respondError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(errorBody{Error: errorDetail{Code: code, Message: message}})
}
