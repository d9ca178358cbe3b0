package handler

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"veritax/internal/memo/models"
	"veritax/internal/memo/service"
	"veritax/internal/platform/middleware"
	id "veritax/pkg/domain"
	dErrors "veritax/pkg/domain-errors"
	"veritax/pkg/platform/httputil"
	"veritax/pkg/requestcontext"
)

// Uploaded PDFs feed a hash, not storage; anything bigger is a mistake.
const maxPDFBytes = 32 << 20

// Service defines the interface for memo operations.
type Service interface {
	CreateMemo(ctx context.Context, req *service.CreateMemoRequest) (*models.Memo, error)
	GetMemo(ctx context.Context, memoID id.MemoID) (*models.Memo, error)
	ListMemos(ctx context.Context, clientID id.ClientID) ([]*models.Memo, error)
	UpdateMemo(ctx context.Context, memoID id.MemoID, req *service.UpdateMemoRequest) (*models.Memo, error)
	Seal(ctx context.Context, memoID id.MemoID, pdf []byte) (*models.Memo, error)
	Verify(ctx context.Context, memoID id.MemoID, pdf []byte) (*service.VerifyResult, error)
	Verifications(ctx context.Context, memoID id.MemoID) ([]models.Verification, error)
}

// Handler exposes memo drafting, sealing, and verification.
type Handler struct {
	logger *slog.Logger
	memo   Service
}

func New(memo Service, logger *slog.Logger) *Handler {
	return &Handler{logger: logger, memo: memo}
}

// Register mounts the memo routes. Sealing is partner-only; anyone in the
// organization may verify.
func (h *Handler) Register(r chi.Router) {
	r.Route("/api/memos", func(r chi.Router) {
		r.Post("/", h.handleCreate)
		r.Get("/", h.handleList)
		r.Get("/{memoID}", h.handleGet)
		r.Patch("/{memoID}", h.handleUpdate)
		r.With(middleware.RequireRole("partner", h.logger)).
			Post("/{memoID}/seal", h.handleSeal)
		r.Post("/{memoID}/verify", h.handleVerify)
		r.Get("/{memoID}/verifications", h.handleVerifications)
	})
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req service.CreateMemoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	memo, err := h.memo.CreateMemo(ctx, &req)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInternal) {
			h.logger.ErrorContext(ctx, "failed to create memo",
				"request_id", requestcontext.RequestID(ctx),
				"error", err.Error(),
			)
		}
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, memo)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	clientID, err := id.ParseClientID(r.URL.Query().Get("clientId"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "clientId query parameter is required"))
		return
	}

	memos, err := h.memo.ListMemos(r.Context(), clientID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if memos == nil {
		memos = []*models.Memo{}
	}
	httputil.WriteJSON(w, http.StatusOK, memos)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	memoID, err := id.ParseMemoID(chi.URLParam(r, "memoID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	memo, err := h.memo.GetMemo(r.Context(), memoID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, memo)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	memoID, err := id.ParseMemoID(chi.URLParam(r, "memoID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	var req service.UpdateMemoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	memo, err := h.memo.UpdateMemo(r.Context(), memoID, &req)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, memo)
}

func (h *Handler) handleSeal(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	memoID, err := id.ParseMemoID(chi.URLParam(r, "memoID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	pdf, err := readPDF(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	memo, err := h.memo.Seal(ctx, memoID, pdf)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInternal) {
			h.logger.ErrorContext(ctx, "failed to seal memo",
				"request_id", requestcontext.RequestID(ctx),
				"memo_id", memoID,
				"error", err.Error(),
			)
		}
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, memo)
}

func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	memoID, err := id.ParseMemoID(chi.URLParam(r, "memoID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	pdf, err := readPDF(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	result, err := h.memo.Verify(r.Context(), memoID, pdf)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) handleVerifications(w http.ResponseWriter, r *http.Request) {
	memoID, err := id.ParseMemoID(chi.URLParam(r, "memoID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	verifications, err := h.memo.Verifications(r.Context(), memoID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if verifications == nil {
		verifications = []models.Verification{}
	}
	httputil.WriteJSON(w, http.StatusOK, verifications)
}

// readPDF extracts the optional PDF attachment. Multipart uploads carry it as
// the "pdf" file part; JSON bodies as a base64 "pdf" field. No body at all is
// fine, the seal then covers content only.
func readPDF(r *http.Request) ([]byte, error) {
	if r.ContentLength == 0 {
		return nil, nil
	}

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		file, _, err := r.FormFile("pdf")
		if err != nil {
			if err == http.ErrMissingFile {
				return nil, nil
			}
			return nil, dErrors.New(dErrors.CodeBadRequest, "invalid multipart body")
		}
		defer file.Close()
		pdf, err := io.ReadAll(io.LimitReader(file, maxPDFBytes))
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeBadRequest, "read pdf upload")
		}
		return pdf, nil
	}

	var body struct {
		PDF string `json:"pdf"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return nil, dErrors.New(dErrors.CodeBadRequest, "invalid request body")
	}
	if body.PDF == "" {
		return nil, nil
	}
	pdf, err := base64.StdEncoding.DecodeString(body.PDF)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeBadRequest, "pdf field is not valid base64")
	}
	return pdf, nil
}
