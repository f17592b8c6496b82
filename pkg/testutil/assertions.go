package testutil

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// AssertJSONResponse asserts that an HTTP response has the expected status code and JSON body
func AssertJSONResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, expectedBody interface{}) {
	t.Helper()

	assert.Equal(t, expectedStatus, w.Code, "unexpected status code")
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"), "unexpected content type")

	if expectedBody != nil {
		expectedJSON, err := json.Marshal(expectedBody)
		require.NoError(t, err, "failed to marshal expected body")

		assert.JSONEq(t, string(expectedJSON), w.Body.String(), "unexpected response body")
	}
}

// AssertErrorResponse asserts the status and the code of an
// {"error": {"code", "message"}} body, returning the message
func AssertErrorResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, expectedCode string) string {
	t.Helper()

	assert.Equal(t, expectedStatus, w.Code, "unexpected status code")

	var response struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response), "failed to decode error body: %s", w.Body.String())
	assert.Equal(t, expectedCode, response.Error.Code, "unexpected error code")

	return response.Error.Message
}

// DecodeJSON decodes a response body into a value of type T
func DecodeJSON[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()

	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), "failed to decode body: %s", w.Body.String())
	return out
}

// MakeJSONRequest creates an HTTP request with a JSON body
func MakeJSONRequest(t *testing.T, method, url string, body interface{}) *http.Request {
	t.Helper()

	if body == nil {
		return httptest.NewRequest(method, url, nil)
	}

	raw, err := json.Marshal(body)
	require.NoError(t, err, "failed to marshal request body")

	req := httptest.NewRequest(method, url, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	return req
}
