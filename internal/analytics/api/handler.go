package analytics_api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"ms-vitotrips/internal/analytics"
	"ms-vitotrips/internal/logger"
	"ms-vitotrips/internal/utils"
)

// Handler handles analytics HTTP endpoints
type Handler struct {
	Service *analytics.Service
	Logger  *logger.Logger
}

func NewHandler(service *analytics.Service, log *logger.Logger) *Handler {
	return &Handler{Service: service, Logger: log}
}

func (h *Handler) Mount(r chi.Router) {
	r.Get("/tours/{tourId}", h.GetTourRevenue)
	r.Post("/tours/batch", h.GetBatchTourRevenue)
}

type BatchRequest struct {
	TourIDs []string   `json:"tourIds"`
	From    *time.Time `json:"from,omitempty"`
	To      *time.Time `json:"to,omitempty"`
}

type BatchResponse struct {
	Tours   map[string]*analytics.TourRevenue `json:"tours"`
	Missing []string                          `json:"missing,omitempty"`
}

func (h *Handler) GetTourRevenue(w http.ResponseWriter, r *http.Request) {
	from, err := parseTime(r.URL.Query().Get("from"))
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid from parameter", err.Error())
		return
	}
	to, err := parseTime(r.URL.Query().Get("to"))
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid to parameter", err.Error())
		return
	}

	rev, err := h.Service.GetTourRevenue(r.Context(), chi.URLParam(r, "tourId"), from, to)
	if err != nil {
		utils.WriteAppError(w, "Failed to compute tour revenue", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Tour revenue retrieved", rev)
}

func (h *Handler) GetBatchTourRevenue(w http.ResponseWriter, r *http.Request) {
	var req BatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}

	results, missing, err := h.Service.GetBatchTourRevenue(r.Context(), req.TourIDs, req.From, req.To)
	if err != nil {
		utils.WriteAppError(w, "Failed to compute tour revenue", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Tour revenue retrieved", BatchResponse{Tours: results, Missing: missing})
}

func parseTime(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
