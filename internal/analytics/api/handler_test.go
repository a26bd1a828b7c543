package analytics_api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-vitotrips/internal/analytics"
	analytics_api "ms-vitotrips/internal/analytics/api"
	"ms-vitotrips/internal/database/dbtest"
	"ms-vitotrips/internal/logger"
	"ms-vitotrips/internal/models"
	tourdb "ms-vitotrips/internal/tours/db"
)

func setupRouter(t *testing.T) (http.Handler, *models.Tour) {
	db := dbtest.Open(t)
	tours := tourdb.New(db)
	now := time.Now().UTC()
	tour := &models.Tour{ID: uuid.NewString(), Name: "Sintra Palaces", Location: "Sintra", CreatedAt: now, UpdatedAt: now}
	require.NoError(t, tours.CreateTour(context.Background(), tour))

	h := analytics_api.NewHandler(analytics.NewService(analytics.NewDB(db), tours, logger.Nop()), logger.Nop())
	r := chi.NewRouter()
	r.Route("/api/v1/analytics", h.Mount)
	return r, tour
}

func TestTourRevenueEndpoint(t *testing.T) {
	router, tour := setupRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics/tours/"+tour.ID, nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data analytics.TourRevenue `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, tour.ID, body.Data.TourID)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics/tours/"+tour.ID+"?from=yesterday", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics/tours/unknown", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestBatchTourRevenueEndpoint(t *testing.T) {
	router, tour := setupRouter(t)

	body := `{"tourIds":["` + tour.ID + `","nope"]}`
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/analytics/tours/batch", strings.NewReader(body)))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data analytics_api.BatchResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp.Data.Tours, tour.ID)
	assert.Equal(t, []string{"nope"}, resp.Data.Missing)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/analytics/tours/batch", strings.NewReader(`{"tourIds":[]}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
