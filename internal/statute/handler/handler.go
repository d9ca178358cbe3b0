package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	nexusModels "veritax/internal/nexus/models"
	"veritax/internal/platform/middleware"
	"veritax/internal/statute/models"
	id "veritax/pkg/domain"
	dErrors "veritax/pkg/domain-errors"
	"veritax/pkg/platform/httputil"
	"veritax/pkg/requestcontext"
)

// Service defines the interface for statute override operations.
type Service interface {
	CreateOverride(ctx context.Context, req *models.CreateOverrideRequest) (*models.Override, error)
	ValidateOverride(ctx context.Context, overrideID id.OverrideID) (*models.Override, error)
	GetOverride(ctx context.Context, overrideID id.OverrideID) (*models.Override, error)
	ListOverrides(ctx context.Context) ([]*models.Override, error)
	AffectedClients(ctx context.Context, overrideID id.OverrideID) ([]*nexusModels.ClientState, error)
}

// Handler exposes the statute override workflow.
type Handler struct {
	logger  *slog.Logger
	statute Service
}

func New(statute Service, logger *slog.Logger) *Handler {
	return &Handler{logger: logger, statute: statute}
}

// Register mounts the statute routes. Validation is partner-only.
func (h *Handler) Register(r chi.Router) {
	r.Route("/api/statutes/overrides", func(r chi.Router) {
		r.Post("/", h.handleCreate)
		r.Get("/", h.handleList)
		r.Get("/{overrideID}", h.handleGet)
		r.Get("/{overrideID}/affected-clients", h.handleAffectedClients)
		r.With(middleware.RequireRole("partner", h.logger)).
			Post("/{overrideID}/validate", h.handleValidate)
	})
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req models.CreateOverrideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	override, err := h.statute.CreateOverride(ctx, &req)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInternal) {
			h.logger.ErrorContext(ctx, "failed to create override",
				"request_id", requestcontext.RequestID(ctx),
				"error", err.Error(),
			)
		}
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, override)
}

func (h *Handler) handleValidate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	overrideID, err := id.ParseOverrideID(chi.URLParam(r, "overrideID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	override, err := h.statute.ValidateOverride(ctx, overrideID)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInternal) {
			h.logger.ErrorContext(ctx, "failed to validate override",
				"request_id", requestcontext.RequestID(ctx),
				"override_id", overrideID,
				"error", err.Error(),
			)
		}
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, override)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	overrideID, err := id.ParseOverrideID(chi.URLParam(r, "overrideID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	override, err := h.statute.GetOverride(r.Context(), overrideID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, override)
}

func (h *Handler) handleAffectedClients(w http.ResponseWriter, r *http.Request) {
	overrideID, err := id.ParseOverrideID(chi.URLParam(r, "overrideID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	states, err := h.statute.AffectedClients(r.Context(), overrideID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, states)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	overrides, err := h.statute.ListOverrides(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if overrides == nil {
		overrides = []*models.Override{}
	}
	httputil.WriteJSON(w, http.StatusOK, overrides)
}
