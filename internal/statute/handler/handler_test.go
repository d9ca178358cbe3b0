package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	nexusModels "veritax/internal/nexus/models"
	"veritax/internal/statute/models"
	id "veritax/pkg/domain"
	dErrors "veritax/pkg/domain-errors"
	"veritax/pkg/requestcontext"
)

type fakeService struct {
	createFn   func(ctx context.Context, req *models.CreateOverrideRequest) (*models.Override, error)
	validateFn func(ctx context.Context, overrideID id.OverrideID) (*models.Override, error)
	getFn      func(ctx context.Context, overrideID id.OverrideID) (*models.Override, error)
	listFn     func(ctx context.Context) ([]*models.Override, error)
	affectedFn func(ctx context.Context, overrideID id.OverrideID) ([]*nexusModels.ClientState, error)
}

func (f *fakeService) CreateOverride(ctx context.Context, req *models.CreateOverrideRequest) (*models.Override, error) {
	return f.createFn(ctx, req)
}

func (f *fakeService) ValidateOverride(ctx context.Context, overrideID id.OverrideID) (*models.Override, error) {
	return f.validateFn(ctx, overrideID)
}

func (f *fakeService) GetOverride(ctx context.Context, overrideID id.OverrideID) (*models.Override, error) {
	return f.getFn(ctx, overrideID)
}

func (f *fakeService) ListOverrides(ctx context.Context) ([]*models.Override, error) {
	return f.listFn(ctx)
}

func (f *fakeService) AffectedClients(ctx context.Context, overrideID id.OverrideID) ([]*nexusModels.ClientState, error) {
	if f.affectedFn == nil {
		return []*nexusModels.ClientState{}, nil
	}
	return f.affectedFn(ctx, overrideID)
}

func newRouter(svc Service) chi.Router {
	r := chi.NewRouter()
	New(svc, slog.New(slog.NewTextHandler(io.Discard, nil))).Register(r)
	return r
}

func sampleOverride() *models.Override {
	override, _ := models.NewOverride(
		id.OverrideID(uuid.New()),
		id.OrgID(uuid.New()),
		"CA", id.TaxSales, id.ChangeThresholdAdjustment,
		nil, models.ThresholdPayload{Threshold: 600_000},
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		"notice", "", "",
		id.UserID(uuid.New()),
		time.Now().UTC(),
	)
	return override
}

func TestHandleCreate(t *testing.T) {
	override := sampleOverride()
	svc := &fakeService{
		createFn: func(_ context.Context, req *models.CreateOverrideRequest) (*models.Override, error) {
			require.Equal(t, "CA", req.StateCode)
			return override, nil
		},
	}
	router := newRouter(svc)

	body := `{"stateCode":"CA","taxType":"SALES_TAX","changeType":"THRESHOLD_ADJUSTMENT","newValue":{"threshold":600000},"effectiveDate":"2024-01-01T00:00:00Z","source":"notice"}`
	req := httptest.NewRequest(http.MethodPost, "/api/statutes/overrides/", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	var got models.Override
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, override.ID, got.ID)
	assert.Equal(t, id.OverridePending, got.Status)
}

func TestHandleCreate_BadJSON(t *testing.T) {
	router := newRouter(&fakeService{})

	req := httptest.NewRequest(http.MethodPost, "/api/statutes/overrides/", bytes.NewBufferString("{"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleValidate_RequiresPartnerRole(t *testing.T) {
	override := sampleOverride()
	svc := &fakeService{
		validateFn: func(_ context.Context, overrideID id.OverrideID) (*models.Override, error) {
			return override, nil
		},
	}
	router := newRouter(svc)

	t.Run("staff role denied", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/statutes/overrides/"+override.ID.String()+"/validate", nil)
		req = req.WithContext(requestcontext.WithRole(req.Context(), "staff"))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("partner role allowed", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/statutes/overrides/"+override.ID.String()+"/validate", nil)
		req = req.WithContext(requestcontext.WithRole(req.Context(), "partner"))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestHandleValidate_NotFound(t *testing.T) {
	svc := &fakeService{
		validateFn: func(_ context.Context, overrideID id.OverrideID) (*models.Override, error) {
			return nil, dErrors.New(dErrors.CodeNotFound, "override not found")
		},
	}
	router := newRouter(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/statutes/overrides/"+uuid.NewString()+"/validate", nil)
	req = req.WithContext(requestcontext.WithRole(req.Context(), "partner"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleList_EmptyReturnsArray(t *testing.T) {
	svc := &fakeService{
		listFn: func(_ context.Context) ([]*models.Override, error) { return nil, nil },
	}
	router := newRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/statutes/overrides/", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())
}
