package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"veritax/internal/pii/detector"
)

func newRouter() chi.Router {
	r := chi.NewRouter()
	New(slog.New(slog.NewTextHandler(io.Discard, nil))).Register(r)
	return r
}

func TestHandleDetect(t *testing.T) {
	router := newRouter()

	body := `{"headers":["name","ssn"],"fileData":[["Acme","123-45-6789"]]}`
	req := httptest.NewRequest(http.MethodPost, "/api/pii/detect", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var detection detector.Detection
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &detection))
	assert.Equal(t, detector.SeverityHigh, detection.Severity)
	assert.Equal(t, 1, detection.TotalIssues)
	// Flagged values are never echoed back.
	assert.NotContains(t, rec.Body.String(), "123-45-6789")
}

func TestHandleDetect_MissingHeaders(t *testing.T) {
	router := newRouter()

	req := httptest.NewRequest(http.MethodPost, "/api/pii/detect", bytes.NewBufferString(`{"fileData":[]}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestHandleDetect_BadJSON(t *testing.T) {
	router := newRouter()

	req := httptest.NewRequest(http.MethodPost, "/api/pii/detect", bytes.NewBufferString("{"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
