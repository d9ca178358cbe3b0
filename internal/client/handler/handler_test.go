package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"veritax/internal/client/models"
	"veritax/internal/client/service"
	id "veritax/pkg/domain"
	dErrors "veritax/pkg/domain-errors"
)

type fakeService struct {
	createFn  func(ctx context.Context, raw map[string]any) (*models.Client, error)
	getFn     func(ctx context.Context, clientID id.ClientID) (*models.Client, error)
	listFn    func(ctx context.Context, includeArchived bool) ([]*models.Client, error)
	archiveFn func(ctx context.Context, clientID id.ClientID) (*models.Client, error)
	ingestFn  func(ctx context.Context, clientID id.ClientID, rows []map[string]any) (*service.BatchResult, error)
}

func (f *fakeService) Create(ctx context.Context, raw map[string]any) (*models.Client, error) {
	return f.createFn(ctx, raw)
}

func (f *fakeService) Get(ctx context.Context, clientID id.ClientID) (*models.Client, error) {
	return f.getFn(ctx, clientID)
}

func (f *fakeService) List(ctx context.Context, includeArchived bool) ([]*models.Client, error) {
	return f.listFn(ctx, includeArchived)
}

func (f *fakeService) Archive(ctx context.Context, clientID id.ClientID) (*models.Client, error) {
	return f.archiveFn(ctx, clientID)
}

func (f *fakeService) IngestStateRevenue(ctx context.Context, clientID id.ClientID, rows []map[string]any) (*service.BatchResult, error) {
	return f.ingestFn(ctx, clientID, rows)
}

func newRouter(svc Service) chi.Router {
	r := chi.NewRouter()
	New(svc, slog.New(slog.NewTextHandler(io.Discard, nil))).Register(r)
	return r
}

func sampleClient() *models.Client {
	now := time.Now().UTC()
	return &models.Client{
		ID:            id.ClientID(uuid.New()),
		OrgID:         id.OrgID(uuid.New()),
		Name:          "Acme LLC",
		AnnualRevenue: 350_000,
		RiskLevel:     id.RiskMedium,
		Active:        true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func TestHandleCreate(t *testing.T) {
	client := sampleClient()
	svc := &fakeService{
		createFn: func(_ context.Context, raw map[string]any) (*models.Client, error) {
			assert.Equal(t, "Acme LLC", raw["name"])
			return client, nil
		},
	}

	body := `{"organizationId":"` + client.OrgID.String() + `","name":"Acme LLC"}`
	req := httptest.NewRequest(http.MethodPost, "/api/clients/", strings.NewReader(body))
	rec := httptest.NewRecorder()
	newRouter(svc).ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), client.ID.String())
}

func TestHandleGet_NotFound(t *testing.T) {
	svc := &fakeService{
		getFn: func(context.Context, id.ClientID) (*models.Client, error) {
			return nil, dErrors.New(dErrors.CodeNotFound, "client not found")
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/clients/"+uuid.New().String(), nil)
	rec := httptest.NewRecorder()
	newRouter(svc).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleList_IncludeArchivedFlag(t *testing.T) {
	var captured bool
	svc := &fakeService{
		listFn: func(_ context.Context, includeArchived bool) ([]*models.Client, error) {
			captured = includeArchived
			return nil, nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/clients/?includeArchived=true", nil)
	rec := httptest.NewRecorder()
	newRouter(svc).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, captured)
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestHandleIngest(t *testing.T) {
	clientID := id.ClientID(uuid.New())
	svc := &fakeService{
		ingestFn: func(_ context.Context, got id.ClientID, rows []map[string]any) (*service.BatchResult, error) {
			assert.Equal(t, clientID, got)
			require.Len(t, rows, 2)
			return &service.BatchResult{Processed: 2}, nil
		},
	}

	body := `{"rows":[{"stateCode":"CA","currentAmount":510000},{"stateCode":"NY","currentAmount":90000}]}`
	req := httptest.NewRequest(http.MethodPost, "/api/clients/"+clientID.String()+"/ingest", strings.NewReader(body))
	rec := httptest.NewRecorder()
	newRouter(svc).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"processed":2`)
}

func TestHandleIngest_EmptyRows(t *testing.T) {
	svc := &fakeService{}

	req := httptest.NewRequest(http.MethodPost, "/api/clients/"+uuid.New().String()+"/ingest", strings.NewReader(`{"rows":[]}`))
	rec := httptest.NewRecorder()
	newRouter(svc).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestHandleArchive(t *testing.T) {
	client := sampleClient()
	client.Active = false
	svc := &fakeService{
		archiveFn: func(_ context.Context, got id.ClientID) (*models.Client, error) {
			assert.Equal(t, client.ID, got)
			return client, nil
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/api/clients/"+client.ID.String()+"/archive", nil)
	rec := httptest.NewRecorder()
	newRouter(svc).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"active":false`)
}
