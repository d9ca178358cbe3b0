package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"veritax/internal/approval/models"
	"veritax/internal/approval/service"
	id "veritax/pkg/domain"
	dErrors "veritax/pkg/domain-errors"
	"veritax/pkg/platform/httputil"
	"veritax/pkg/requestcontext"
)

// Service defines the interface for approval operations.
type Service interface {
	CreateRequirement(ctx context.Context, req *service.CreateRequirementRequest) (*models.Approval, error)
	Submit(ctx context.Context, approvalID id.ApprovalID, notes string) (*models.Approval, error)
	GetApproval(ctx context.Context, approvalID id.ApprovalID) (*models.Approval, error)
	CheckStatus(ctx context.Context, entityType, entityID string) (*service.Status, error)
}

// Handler exposes the approval gate workflow. Role enforcement lives in the
// service: the required role is data on each gate, not a fixed route policy.
type Handler struct {
	logger   *slog.Logger
	approval Service
}

func New(approval Service, logger *slog.Logger) *Handler {
	return &Handler{logger: logger, approval: approval}
}

func (h *Handler) Register(r chi.Router) {
	r.Route("/api/approvals", func(r chi.Router) {
		r.Post("/", h.handleCreate)
		r.Post("/requirements", h.handleCreate)
		r.Get("/{approvalID}", h.handleGet)
		r.Post("/{approvalID}/submit", h.handleSubmit)
		r.Get("/status/{entityType}/{entityID}", h.handleStatus)
	})
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req service.CreateRequirementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	approval, err := h.approval.CreateRequirement(ctx, &req)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInternal) {
			h.logger.ErrorContext(ctx, "failed to create approval requirement",
				"request_id", requestcontext.RequestID(ctx),
				"error", err.Error(),
			)
		}
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, approval)
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	approvalID, err := id.ParseApprovalID(chi.URLParam(r, "approvalID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	var body struct {
		Notes string `json:"notes"`
	}
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
			return
		}
	}

	approval, err := h.approval.Submit(r.Context(), approvalID, body.Notes)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, approval)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	approvalID, err := id.ParseApprovalID(chi.URLParam(r, "approvalID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	approval, err := h.approval.GetApproval(r.Context(), approvalID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, approval)
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.approval.CheckStatus(r.Context(),
		chi.URLParam(r, "entityType"), chi.URLParam(r, "entityID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, status)
}
