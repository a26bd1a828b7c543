package tour_api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"ms-vitotrips/internal/auth"
	"ms-vitotrips/internal/logger"
	"ms-vitotrips/internal/tours"
	"ms-vitotrips/internal/utils"
)

type Handler struct {
	Service *tours.TourService
	Logger  *logger.Logger
}

func NewHandler(svc *tours.TourService, log *logger.Logger) *Handler {
	return &Handler{Service: svc, Logger: log}
}

func (h *Handler) MountTours(r chi.Router) {
	r.Get("/", h.ListTours)
	r.Post("/", h.CreateTour)
	r.Get("/location/{location}", h.ListToursByLocation)
	r.Get("/{id}", h.GetTour)
	r.Delete("/{id}", h.DeleteTour)
}

func (h *Handler) MountGroups(r chi.Router) {
	r.Post("/", h.CreateGroup)
	r.Get("/{id}", h.GetGroup)
	r.Post("/{id}/members", h.AddMember)
	r.Delete("/{id}", h.DeleteGroup)
}

func (h *Handler) ListTours(w http.ResponseWriter, r *http.Request) {
	list, err := h.Service.ListTours(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		utils.WriteAppError(w, "Failed to list tours", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Tours retrieved", list)
}

func (h *Handler) ListToursByLocation(w http.ResponseWriter, r *http.Request) {
	list, err := h.Service.ListToursByLocation(r.Context(), chi.URLParam(r, "location"))
	if err != nil {
		utils.WriteAppError(w, "Failed to list tours", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Tours retrieved", list)
}

func (h *Handler) GetTour(w http.ResponseWriter, r *http.Request) {
	tour, err := h.Service.GetTour(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		utils.WriteAppError(w, "Failed to fetch tour", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Tour retrieved", tour)
}

func (h *Handler) CreateTour(w http.ResponseWriter, r *http.Request) {
	var req tours.CreateTourRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}
	tour, err := h.Service.CreateTour(r.Context(), req)
	if err != nil {
		utils.WriteAppError(w, "Failed to create tour", err)
		return
	}
	utils.WriteSuccess(w, http.StatusCreated, "Tour created", tour)
}

func (h *Handler) DeleteTour(w http.ResponseWriter, r *http.Request) {
	if err := h.Service.DeleteTour(r.Context(), chi.URLParam(r, "id")); err != nil {
		utils.WriteAppError(w, "Failed to delete tour", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) CreateGroup(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.PrincipalFrom(r.Context())
	if !ok {
		utils.WriteError(w, http.StatusUnauthorized, "Unauthorized", "authentication required")
		return
	}

	var req tours.CreateGroupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}
	group, err := h.Service.CreateGroup(r.Context(), principal.UserID, req)
	if err != nil {
		utils.WriteAppError(w, "Failed to create group", err)
		return
	}
	utils.WriteSuccess(w, http.StatusCreated, "Group created", group)
}

func (h *Handler) GetGroup(w http.ResponseWriter, r *http.Request) {
	group, err := h.Service.GetGroup(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		utils.WriteAppError(w, "Failed to fetch group", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Group retrieved", group)
}

func (h *Handler) AddMember(w http.ResponseWriter, r *http.Request) {
	var body struct {
		UserID string `json:"userId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}
	group, err := h.Service.AddMember(r.Context(), chi.URLParam(r, "id"), body.UserID)
	if err != nil {
		utils.WriteAppError(w, "Failed to add member", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Member added", group)
}

func (h *Handler) DeleteGroup(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.PrincipalFrom(r.Context())
	if !ok {
		utils.WriteError(w, http.StatusUnauthorized, "Unauthorized", "authentication required")
		return
	}

	err := h.Service.DeleteGroup(r.Context(), chi.URLParam(r, "id"), principal.UserID, principal.Role)
	if errors.Is(err, tours.ErrNotGroupLeader) {
		utils.WriteError(w, http.StatusForbidden, "Forbidden", err.Error())
		return
	}
	if err != nil {
		utils.WriteAppError(w, "Failed to delete group", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
