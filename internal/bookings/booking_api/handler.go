package booking_api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"ms-vitotrips/internal/auth"
	"ms-vitotrips/internal/bookings"
	"ms-vitotrips/internal/logger"
	"ms-vitotrips/internal/models"
	"ms-vitotrips/internal/utils"
)

type Handler struct {
	Service *bookings.BookingService
	Logger  *logger.Logger
}

func NewHandler(svc *bookings.BookingService, log *logger.Logger) *Handler {
	return &Handler{Service: svc, Logger: log}
}

func (h *Handler) Mount(r chi.Router) {
	r.Post("/", h.CreateBooking)
	r.Get("/", h.ListBookings)
	r.Get("/{id}", h.GetBooking)
	r.Get("/{id}/voucher", h.GetVoucher)
}

func (h *Handler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	caller, ok := auth.PrincipalFrom(r.Context())
	if !ok {
		utils.WriteError(w, http.StatusUnauthorized, "Unauthorized", "authentication required")
		return
	}

	var req models.CreateBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}

	booking, err := h.Service.CreateBooking(r.Context(), caller, req)
	if err != nil {
		utils.WriteAppError(w, "Failed to create booking", err)
		return
	}
	utils.WriteSuccess(w, http.StatusCreated, "Booking created", booking)
}

func (h *Handler) GetBooking(w http.ResponseWriter, r *http.Request) {
	caller, ok := auth.PrincipalFrom(r.Context())
	if !ok {
		utils.WriteError(w, http.StatusUnauthorized, "Unauthorized", "authentication required")
		return
	}

	booking, err := h.Service.GetBooking(r.Context(), caller, chi.URLParam(r, "id"))
	if err != nil {
		h.writeErr(w, "Failed to fetch booking", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Booking retrieved", booking)
}

// ListBookings accepts status, tourId, type, from and to (RFC 3339) filters.
func (h *Handler) ListBookings(w http.ResponseWriter, r *http.Request) {
	caller, ok := auth.PrincipalFrom(r.Context())
	if !ok {
		utils.WriteError(w, http.StatusUnauthorized, "Unauthorized", "authentication required")
		return
	}

	q := r.URL.Query()
	filter := models.BookingFilter{
		UserID: q.Get("userId"),
		TourID: q.Get("tourId"),
		Status: models.BookingStatus(q.Get("status")),
		Type:   models.BookingType(q.Get("type")),
	}
	for name, dst := range map[string]*time.Time{"from": &filter.From, "to": &filter.To} {
		raw := q.Get(name)
		if raw == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			utils.WriteError(w, http.StatusBadRequest, "Invalid "+name+" parameter", err.Error())
			return
		}
		*dst = t
	}

	list, err := h.Service.ListBookings(r.Context(), caller, filter)
	if err != nil {
		utils.WriteAppError(w, "Failed to list bookings", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Bookings retrieved", list)
}

func (h *Handler) GetVoucher(w http.ResponseWriter, r *http.Request) {
	caller, ok := auth.PrincipalFrom(r.Context())
	if !ok {
		utils.WriteError(w, http.StatusUnauthorized, "Unauthorized", "authentication required")
		return
	}

	png, err := h.Service.Voucher(r.Context(), caller, chi.URLParam(r, "id"))
	if err != nil {
		h.writeErr(w, "Failed to render voucher", err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	w.Write(png)
}

func (h *Handler) writeErr(w http.ResponseWriter, message string, err error) {
	if errors.Is(err, bookings.ErrNotBookingOwner) {
		utils.WriteError(w, http.StatusForbidden, "Forbidden", err.Error())
		return
	}
	utils.WriteAppError(w, message, err)
}
