package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"veritax/internal/audit"
	id "veritax/pkg/domain"
	dErrors "veritax/pkg/domain-errors"
	"veritax/pkg/platform/httputil"
	"veritax/pkg/requestcontext"
)

const defaultRecentLimit = 50

// Publisher is the audit surface exposed over HTTP.
type Publisher interface {
	Emit(ctx context.Context, event audit.Event) error
	Trail(ctx context.Context, orgID id.OrgID, entityType, entityID string) ([]audit.Event, error)
	Recent(ctx context.Context, orgID id.OrgID, limit int) ([]audit.Event, error)
}

// Handler exposes the audit log. Writes append; there is no update or delete
// route by design of the trail.
type Handler struct {
	logger    *slog.Logger
	publisher Publisher
}

func New(publisher Publisher, logger *slog.Logger) *Handler {
	return &Handler{logger: logger, publisher: publisher}
}

func (h *Handler) Register(r chi.Router) {
	r.Route("/api/audit", func(r chi.Router) {
		r.Post("/log", h.handleLog)
		r.Get("/trail/{entityType}/{entityID}", h.handleTrail)
		r.Get("/recent", h.handleRecent)
	})
}

type logRequest struct {
	Action     string `json:"action"`
	EntityType string `json:"entityType"`
	EntityID   string `json:"entityId"`
	Severity   string `json:"severity,omitempty"`
	Details    string `json:"details,omitempty"`
}

// handleLog appends a caller-supplied event. Identity fields come from the
// authenticated context, never from the body.
func (h *Handler) handleLog(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req logRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	if req.Action == "" || req.EntityType == "" || req.EntityID == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "action, entityType, and entityId are required"))
		return
	}
	severity := id.Severity(req.Severity)
	if req.Severity != "" && !severity.Valid() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "unknown severity"))
		return
	}

	event := audit.Event{
		Action:     req.Action,
		EntityType: req.EntityType,
		EntityID:   req.EntityID,
		Severity:   severity,
		Details:    req.Details,
	}
	if err := h.publisher.Emit(ctx, event); err != nil {
		h.logger.ErrorContext(ctx, "failed to append audit event",
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "failed to append audit event"))
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, map[string]string{"status": "logged"})
}

func (h *Handler) handleTrail(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	events, err := h.publisher.Trail(ctx, requestcontext.OrgID(ctx),
		chi.URLParam(r, "entityType"), chi.URLParam(r, "entityID"))
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load trail"))
		return
	}
	if events == nil {
		events = []audit.Event{}
	}
	httputil.WriteJSON(w, http.StatusOK, events)
}

func (h *Handler) handleRecent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	limit := defaultRecentLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "limit must be a positive integer"))
			return
		}
		limit = parsed
	}

	events, err := h.publisher.Recent(ctx, requestcontext.OrgID(ctx), limit)
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load recent events"))
		return
	}
	if events == nil {
		events = []audit.Event{}
	}
	httputil.WriteJSON(w, http.StatusOK, events)
}
