package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/davidmoltin/efiling-workflows/internal/models"
	"github.com/davidmoltin/efiling-workflows/pkg/logger"
	"github.com/davidmoltin/efiling-workflows/pkg/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeJSON(rec *httptest.ResponseRecorder, v interface{}) error {
	return json.Unmarshal(rec.Body.Bytes(), v)
}

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func TestRateLimit(t *testing.T) {
	rl := NewRateLimiter(1, 2, logger.NewForTesting())
	handler := RateLimit(rl)(okHandler)

	send := func(actor *models.Actor, remoteAddr string) int {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/notifications", nil)
		req.RemoteAddr = remoteAddr
		if actor != nil {
			req = req.WithContext(WithActor(req.Context(), *actor))
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	alice := models.Actor{ID: uuid.New(), Role: "CE"}
	bob := models.Actor{ID: uuid.New(), Role: "CEO"}

	assert.Equal(t, http.StatusOK, send(&alice, "10.0.0.1:5000"))
	assert.Equal(t, http.StatusOK, send(&alice, "10.0.0.1:5001"))
	assert.Equal(t, http.StatusTooManyRequests, send(&alice, "10.0.0.1:5002"))

	// Buckets are per actor, not per address
	assert.Equal(t, http.StatusOK, send(&bob, "10.0.0.1:5003"))

	// Anonymous callers are keyed by host without the port
	assert.Equal(t, http.StatusOK, send(nil, "192.168.1.9:1"))
	assert.Equal(t, http.StatusOK, send(nil, "192.168.1.9:2"))
	assert.Equal(t, http.StatusTooManyRequests, send(nil, "192.168.1.9:3"))
}

func TestRateLimiter_Sweep(t *testing.T) {
	now := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(5, 5, logger.NewForTesting())
	rl.now = func() time.Time { return now }

	rl.getLimiter("user:a")
	now = now.Add(10 * time.Minute)
	rl.getLimiter("user:b")

	assert.Equal(t, 1, rl.sweep(5*time.Minute))
	assert.Len(t, rl.limiters, 1)
	assert.Contains(t, rl.limiters, "user:b")
}

func TestMetrics_LabelsByRoutePattern(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())

	r := chi.NewRouter()
	r.Use(Metrics(m))
	r.Get("/api/v1/workflows/{id}", okHandler)

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/workflows/"+uuid.NewString(), nil))
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nowhere", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)

	assert.Equal(t, 3.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/api/v1/workflows/{id}", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "unmatched", "404")))
}

func TestSecurityHeaders(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Forwarded-Proto", "https")

	SecurityHeaders()(okHandler).ServeHTTP(rec, req)

	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	assert.Contains(t, rec.Header().Get("Content-Security-Policy"), "default-src 'none'")
	assert.NotEmpty(t, rec.Header().Get("Strict-Transport-Security"))
}

func TestRequestSizeLimit(t *testing.T) {
	var readErr error
	handler := RequestSizeLimit(8)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		readErr = json.NewDecoder(r.Body).Decode(&body)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"signature_data":"AAAAAAAAAAAA"}`)))

	assert.Error(t, readErr)
}

func TestGetMaxRequestSize(t *testing.T) {
	t.Setenv("MAX_REQUEST_SIZE_MB", "")
	assert.Equal(t, int64(2*1024*1024), GetMaxRequestSize())

	t.Setenv("MAX_REQUEST_SIZE_MB", "5")
	assert.Equal(t, int64(5*1024*1024), GetMaxRequestSize())

	t.Setenv("MAX_REQUEST_SIZE_MB", "-1")
	assert.Equal(t, int64(2*1024*1024), GetMaxRequestSize())
}
