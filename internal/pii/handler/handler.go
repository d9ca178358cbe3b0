package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"veritax/internal/pii/detector"
	dErrors "veritax/pkg/domain-errors"
	"veritax/pkg/platform/httputil"
)

// Handler exposes pre-upload PII screening. The scan is pure and
// request-scoped; nothing submitted here is persisted.
type Handler struct {
	logger *slog.Logger
}

func New(logger *slog.Logger) *Handler {
	return &Handler{logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/api/pii/detect", h.handleDetect)
}

type detectRequest struct {
	Headers  []string   `json:"headers"`
	FileData [][]string `json:"fileData"`
}

func (h *Handler) handleDetect(w http.ResponseWriter, r *http.Request) {
	var req detectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	if len(req.Headers) == 0 {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "headers are required"))
		return
	}

	detection := detector.Scan(req.Headers, req.FileData)
	httputil.WriteJSON(w, http.StatusOK, detection)
}
