package middleware

import (
	"net/http"
	"time"

	"github.com/davidmoltin/efiling-workflows/pkg/logger"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// Logger is a middleware that logs HTTP requests. The actor is read after
// the handler runs so requests authenticated further down the chain carry it.
func Logger(log *logger.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			holder := &actorHolder{}
			r = r.WithContext(withActorHolder(r.Context(), holder))

			defer func() {
				fields := []zap.Field{
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.String("remote_addr", r.RemoteAddr),
					zap.String("user_agent", r.UserAgent()),
					zap.Int("status", ww.Status()),
					zap.Int("bytes", ww.BytesWritten()),
					zap.Duration("duration", time.Since(start)),
					zap.String("request_id", middleware.GetReqID(r.Context())),
				}
				if holder.set {
					fields = append(fields, logger.UUID("actor_id", holder.actor.ID), zap.String("actor_role", holder.actor.Role))
				}

				switch {
				case ww.Status() >= http.StatusInternalServerError:
					log.Error("HTTP request", fields...)
				case ww.Status() >= http.StatusBadRequest:
					log.Warn("HTTP request", fields...)
				default:
					log.Info("HTTP request", fields...)
				}
			}()

			next.ServeHTTP(ww, r)
		})
	}
}
