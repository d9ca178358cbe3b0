package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"veritax/internal/client/models"
	"veritax/internal/client/service"
	id "veritax/pkg/domain"
	dErrors "veritax/pkg/domain-errors"
	"veritax/pkg/platform/httputil"
	"veritax/pkg/requestcontext"
)

// Service defines the interface for client management and ingestion.
type Service interface {
	Create(ctx context.Context, raw map[string]any) (*models.Client, error)
	Get(ctx context.Context, clientID id.ClientID) (*models.Client, error)
	List(ctx context.Context, includeArchived bool) ([]*models.Client, error)
	Archive(ctx context.Context, clientID id.ClientID) (*models.Client, error)
	IngestStateRevenue(ctx context.Context, clientID id.ClientID, rows []map[string]any) (*service.BatchResult, error)
}

// Handler exposes client management endpoints.
type Handler struct {
	logger  *slog.Logger
	clients Service
}

func New(clients Service, logger *slog.Logger) *Handler {
	return &Handler{logger: logger, clients: clients}
}

func (h *Handler) Register(r chi.Router) {
	r.Route("/api/clients", func(r chi.Router) {
		r.Post("/", h.handleCreate)
		r.Get("/", h.handleList)
		r.Get("/{clientID}", h.handleGet)
		r.Post("/{clientID}/archive", h.handleArchive)
		r.Post("/{clientID}/ingest", h.handleIngest)
	})
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var raw map[string]any
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	client, err := h.clients.Create(ctx, raw)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInternal) {
			h.logger.ErrorContext(ctx, "failed to create client",
				"request_id", requestcontext.RequestID(ctx),
				"error", err.Error(),
			)
		}
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, client)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	clientID, err := id.ParseClientID(chi.URLParam(r, "clientID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	client, err := h.clients.Get(r.Context(), clientID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, client)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	includeArchived := r.URL.Query().Get("includeArchived") == "true"

	clients, err := h.clients.List(r.Context(), includeArchived)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if clients == nil {
		clients = []*models.Client{}
	}
	httputil.WriteJSON(w, http.StatusOK, clients)
}

func (h *Handler) handleArchive(w http.ResponseWriter, r *http.Request) {
	clientID, err := id.ParseClientID(chi.URLParam(r, "clientID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	client, err := h.clients.Archive(r.Context(), clientID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, client)
}

func (h *Handler) handleIngest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	clientID, err := id.ParseClientID(chi.URLParam(r, "clientID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	var body struct {
		Rows []map[string]any `json:"rows"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	if len(body.Rows) == 0 {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "rows must not be empty"))
		return
	}

	result, err := h.clients.IngestStateRevenue(ctx, clientID, body.Rows)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInternal) {
			h.logger.ErrorContext(ctx, "ingestion failed",
				"request_id", requestcontext.RequestID(ctx),
				"client_id", clientID,
				"error", err.Error(),
			)
		}
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}
