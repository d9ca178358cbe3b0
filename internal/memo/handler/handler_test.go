package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"veritax/internal/memo/models"
	"veritax/internal/memo/service"
	id "veritax/pkg/domain"
	dErrors "veritax/pkg/domain-errors"
	"veritax/pkg/requestcontext"
)

type fakeService struct {
	createFn        func(ctx context.Context, req *service.CreateMemoRequest) (*models.Memo, error)
	getFn           func(ctx context.Context, memoID id.MemoID) (*models.Memo, error)
	listFn          func(ctx context.Context, clientID id.ClientID) ([]*models.Memo, error)
	updateFn        func(ctx context.Context, memoID id.MemoID, req *service.UpdateMemoRequest) (*models.Memo, error)
	sealFn          func(ctx context.Context, memoID id.MemoID, pdf []byte) (*models.Memo, error)
	verifyFn        func(ctx context.Context, memoID id.MemoID, pdf []byte) (*service.VerifyResult, error)
	verificationsFn func(ctx context.Context, memoID id.MemoID) ([]models.Verification, error)
}

func (f *fakeService) CreateMemo(ctx context.Context, req *service.CreateMemoRequest) (*models.Memo, error) {
	return f.createFn(ctx, req)
}

func (f *fakeService) GetMemo(ctx context.Context, memoID id.MemoID) (*models.Memo, error) {
	return f.getFn(ctx, memoID)
}

func (f *fakeService) ListMemos(ctx context.Context, clientID id.ClientID) ([]*models.Memo, error) {
	return f.listFn(ctx, clientID)
}

func (f *fakeService) UpdateMemo(ctx context.Context, memoID id.MemoID, req *service.UpdateMemoRequest) (*models.Memo, error) {
	return f.updateFn(ctx, memoID, req)
}

func (f *fakeService) Seal(ctx context.Context, memoID id.MemoID, pdf []byte) (*models.Memo, error) {
	return f.sealFn(ctx, memoID, pdf)
}

func (f *fakeService) Verify(ctx context.Context, memoID id.MemoID, pdf []byte) (*service.VerifyResult, error) {
	return f.verifyFn(ctx, memoID, pdf)
}

func (f *fakeService) Verifications(ctx context.Context, memoID id.MemoID) ([]models.Verification, error) {
	if f.verificationsFn == nil {
		return []models.Verification{}, nil
	}
	return f.verificationsFn(ctx, memoID)
}

func newRouter(svc Service) chi.Router {
	r := chi.NewRouter()
	New(svc, slog.New(slog.NewTextHandler(io.Discard, nil))).Register(r)
	return r
}

func sampleMemo() *models.Memo {
	memo, _ := models.NewMemo(
		id.MemoID(uuid.New()),
		id.OrgID(uuid.New()),
		id.ClientID(uuid.New()),
		id.MemoInitial,
		"California nexus determination",
		nil, "", "", nil,
		time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
	)
	return memo
}

func TestHandleCreate(t *testing.T) {
	memo := sampleMemo()
	svc := &fakeService{
		createFn: func(_ context.Context, req *service.CreateMemoRequest) (*models.Memo, error) {
			require.Equal(t, "INITIAL", req.MemoType)
			return memo, nil
		},
	}
	router := newRouter(svc)

	body := `{"clientId":"` + memo.ClientID.String() + `","memoType":"INITIAL","title":"California nexus determination"}`
	req := httptest.NewRequest(http.MethodPost, "/api/memos/", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	var got models.Memo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, memo.ID, got.ID)
	assert.Equal(t, id.MemoDraft, got.Status)
}

func TestHandleCreate_BadJSON(t *testing.T) {
	router := newRouter(&fakeService{})

	req := httptest.NewRequest(http.MethodPost, "/api/memos/", bytes.NewBufferString("{"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleList_RequiresClientID(t *testing.T) {
	router := newRouter(&fakeService{})

	req := httptest.NewRequest(http.MethodGet, "/api/memos/", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestHandleSeal_RequiresPartnerRole(t *testing.T) {
	memo := sampleMemo()
	svc := &fakeService{
		sealFn: func(_ context.Context, memoID id.MemoID, pdf []byte) (*models.Memo, error) {
			return memo, nil
		},
	}
	router := newRouter(svc)

	t.Run("staff role denied", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/memos/"+memo.ID.String()+"/seal", nil)
		req = req.WithContext(requestcontext.WithRole(req.Context(), "staff"))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("partner role allowed", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/memos/"+memo.ID.String()+"/seal", nil)
		req = req.WithContext(requestcontext.WithRole(req.Context(), "partner"))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestHandleSeal_MultipartPDF(t *testing.T) {
	memo := sampleMemo()
	var captured []byte
	svc := &fakeService{
		sealFn: func(_ context.Context, memoID id.MemoID, pdf []byte) (*models.Memo, error) {
			captured = pdf
			return memo, nil
		},
	}
	router := newRouter(svc)

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("pdf", "memo.pdf")
	require.NoError(t, err)
	_, err = part.Write([]byte("%PDF-1.7 rendering"))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/memos/"+memo.ID.String()+"/seal", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req = req.WithContext(requestcontext.WithRole(req.Context(), "partner"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []byte("%PDF-1.7 rendering"), captured)
}

func TestHandleVerify_Base64PDF(t *testing.T) {
	memo := sampleMemo()
	var captured []byte
	svc := &fakeService{
		verifyFn: func(_ context.Context, memoID id.MemoID, pdf []byte) (*service.VerifyResult, error) {
			captured = pdf
			return &service.VerifyResult{MemoID: memoID, Status: id.VerifyVerified}, nil
		},
	}
	router := newRouter(svc)

	body := `{"pdf":"JVBERi0xLjc="}`
	req := httptest.NewRequest(http.MethodPost, "/api/memos/"+memo.ID.String()+"/verify", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []byte("%PDF-1.7"), captured)

	var result service.VerifyResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, id.VerifyVerified, result.Status)
}

func TestHandleVerify_TamperedIsStill200(t *testing.T) {
	svc := &fakeService{
		verifyFn: func(_ context.Context, memoID id.MemoID, pdf []byte) (*service.VerifyResult, error) {
			return &service.VerifyResult{MemoID: memoID, Status: id.VerifyTampered}, nil
		},
	}
	router := newRouter(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/memos/"+uuid.NewString()+"/verify", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "TAMPERED")
}

func TestHandleUpdate_SealedConflict(t *testing.T) {
	svc := &fakeService{
		updateFn: func(_ context.Context, memoID id.MemoID, req *service.UpdateMemoRequest) (*models.Memo, error) {
			return nil, dErrors.New(dErrors.CodeConflict, "sealed memo content is immutable")
		},
	}
	router := newRouter(svc)

	req := httptest.NewRequest(http.MethodPatch, "/api/memos/"+uuid.NewString(), bytes.NewBufferString(`{"title":"x"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestHandleVerifications_EmptyReturnsArray(t *testing.T) {
	svc := &fakeService{
		verificationsFn: func(_ context.Context, memoID id.MemoID) ([]models.Verification, error) {
			return nil, nil
		},
	}
	router := newRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/memos/"+uuid.NewString()+"/verifications", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())
}
