package admin

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, nil))
}

func TestAuditMiddlewareLogsMutatingRequests(t *testing.T) {
	var buf bytes.Buffer
	handler := AuditMiddleware(captureLogger(&buf), http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// The body must still be readable downstream.
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		assert.Equal(t, `{"force":true}`, string(body))
		w.WriteHeader(http.StatusAccepted)
	}))

	req := httptest.NewRequest(http.MethodPost, "/admin/v1/sweep", strings.NewReader(`{"force":true}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "admin API audit", entry["msg"])
	assert.Equal(t, http.MethodPost, entry["method"])
	assert.Equal(t, "/admin/v1/sweep", entry["path"])
	assert.Equal(t, `{"force":true}`, entry["body_summary"])
	assert.Equal(t, float64(http.StatusAccepted), entry["response_status"])
	assert.NotEmpty(t, entry["request_id"])
}

func TestAuditMiddlewareSkipsReads(t *testing.T) {
	var buf bytes.Buffer
	handler := AuditMiddleware(captureLogger(&buf), http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/v1/status", nil))

	assert.Empty(t, buf.String(), "GET requests are not audited")
}

func TestAuditMiddlewareTruncatesLargeBodies(t *testing.T) {
	var buf bytes.Buffer
	handler := AuditMiddleware(captureLogger(&buf), http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	large := strings.Repeat("x", maxAuditBodyBytes*2)
	req := httptest.NewRequest(http.MethodPost, "/admin/v1/sweep", strings.NewReader(large))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	summary, ok := entry["body_summary"].(string)
	require.True(t, ok)
	assert.True(t, strings.HasSuffix(summary, "...(truncated)"))
	assert.Less(t, len(summary), len(large))
}
