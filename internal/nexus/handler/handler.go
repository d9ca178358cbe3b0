package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"veritax/internal/nexus/models"
	"veritax/internal/nexus/service"
	id "veritax/pkg/domain"
	dErrors "veritax/pkg/domain-errors"
	"veritax/pkg/platform/httputil"
	"veritax/pkg/requestcontext"
)

// Service defines the interface for threshold evaluation and the alert
// lifecycle.
type Service interface {
	RecordActivity(ctx context.Context, raw map[string]any) (*service.Evaluation, error)
	ReviewAlert(ctx context.Context, alertID id.AlertID) (*models.NexusAlert, error)
	ResolveAlert(ctx context.Context, alertID id.AlertID) (*models.NexusAlert, error)
	GetAlert(ctx context.Context, alertID id.AlertID) (*models.NexusAlert, error)
	ListAlerts(ctx context.Context, status id.AlertStatus) ([]*models.NexusAlert, error)
	ClientStates(ctx context.Context, clientID id.ClientID) ([]*models.ClientState, error)
}

// Handler exposes evaluation and alert endpoints.
type Handler struct {
	logger *slog.Logger
	nexus  Service
}

func New(nexus Service, logger *slog.Logger) *Handler {
	return &Handler{logger: logger, nexus: nexus}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/api/nexus/evaluate", h.handleEvaluate)
	r.Get("/api/nexus/clients/{clientID}/states", h.handleClientStates)

	r.Route("/api/alerts", func(r chi.Router) {
		r.Get("/", h.handleListAlerts)
		r.Get("/{alertID}", h.handleGetAlert)
		r.Post("/{alertID}/review", h.handleReviewAlert)
		r.Post("/{alertID}/resolve", h.handleResolveAlert)
	})
}

// handleEvaluate accepts a raw per-state revenue record. The body is left as
// a loose map on purpose: sanitization of dirty upstream data is part of the
// contract, not a transport concern.
func (h *Handler) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var raw map[string]any
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	evaluation, err := h.nexus.RecordActivity(ctx, raw)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInternal) {
			h.logger.ErrorContext(ctx, "evaluation failed",
				"request_id", requestcontext.RequestID(ctx),
				"error", err.Error(),
			)
		}
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, evaluation)
}

func (h *Handler) handleClientStates(w http.ResponseWriter, r *http.Request) {
	clientID, err := id.ParseClientID(chi.URLParam(r, "clientID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	states, err := h.nexus.ClientStates(r.Context(), clientID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if states == nil {
		states = []*models.ClientState{}
	}
	httputil.WriteJSON(w, http.StatusOK, states)
}

func (h *Handler) handleListAlerts(w http.ResponseWriter, r *http.Request) {
	status := id.AlertStatus(r.URL.Query().Get("status"))

	alerts, err := h.nexus.ListAlerts(r.Context(), status)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if alerts == nil {
		alerts = []*models.NexusAlert{}
	}
	httputil.WriteJSON(w, http.StatusOK, alerts)
}

func (h *Handler) handleGetAlert(w http.ResponseWriter, r *http.Request) {
	alertID, err := id.ParseAlertID(chi.URLParam(r, "alertID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	alert, err := h.nexus.GetAlert(r.Context(), alertID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, alert)
}

func (h *Handler) handleReviewAlert(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.nexus.ReviewAlert)
}

func (h *Handler) handleResolveAlert(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.nexus.ResolveAlert)
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, apply func(context.Context, id.AlertID) (*models.NexusAlert, error)) {
	ctx := r.Context()

	alertID, err := id.ParseAlertID(chi.URLParam(r, "alertID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	alert, err := apply(ctx, alertID)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInternal) {
			h.logger.ErrorContext(ctx, "alert transition failed",
				"request_id", requestcontext.RequestID(ctx),
				"alert_id", alertID,
				"error", err.Error(),
			)
		}
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, alert)
}
