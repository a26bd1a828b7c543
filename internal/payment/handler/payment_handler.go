package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"ms-vitotrips/internal/logger"
	"ms-vitotrips/internal/models"
	"ms-vitotrips/internal/payment"
	"ms-vitotrips/internal/utils"
)

const maxWebhookBytes = 65536

type PaymentService interface {
	CreatePayment(ctx context.Context, req models.CreatePaymentRequest) (*models.CreatePaymentResponse, error)
	RefundPayment(ctx context.Context, paymentID, reason string) (*models.Payment, error)
	GetPayment(ctx context.Context, id string) (*models.Payment, error)
	ListPayments(ctx context.Context) ([]models.Payment, error)
	ListPaymentsByBooking(ctx context.Context, bookingID string) ([]models.Payment, error)
	HandleNotification(ctx context.Context, payload []byte, signature string) error
}

type PaymentHandler struct {
	service PaymentService
	logger  *logger.Logger
}

func NewPaymentHandler(service PaymentService, logger *logger.Logger) *PaymentHandler {
	return &PaymentHandler{service: service, logger: logger}
}

func (h *PaymentHandler) Mount(r chi.Router) {
	r.Post("/", h.CreatePayment)
	r.Get("/", h.ListPayments)
	r.Post("/webhook", h.Webhook)
	r.Get("/booking/{bookingId}", h.ListBookingPayments)
	r.Get("/{id}", h.GetPayment)
	r.Post("/{id}/refund", h.RefundPayment)
}

func (h *PaymentHandler) CreatePayment(w http.ResponseWriter, r *http.Request) {
	var req models.CreatePaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid request payload", err.Error())
		return
	}

	resp, err := h.service.CreatePayment(r.Context(), req)
	if err != nil {
		h.logger.Warn("PAYMENT", fmt.Sprintf("Create payment for booking %s failed: %v", req.BookingID, err))
		utils.WriteAppError(w, "Payment processing failed", err)
		return
	}
	utils.WriteSuccess(w, http.StatusCreated, "Payment created", resp)
}

func (h *PaymentHandler) ListPayments(w http.ResponseWriter, r *http.Request) {
	payments, err := h.service.ListPayments(r.Context())
	if err != nil {
		utils.WriteAppError(w, "Failed to list payments", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Payments retrieved", payments)
}

func (h *PaymentHandler) GetPayment(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.GetPayment(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		utils.WriteAppError(w, "Failed to fetch payment", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Payment retrieved", p)
}

func (h *PaymentHandler) ListBookingPayments(w http.ResponseWriter, r *http.Request) {
	payments, err := h.service.ListPaymentsByBooking(r.Context(), chi.URLParam(r, "bookingId"))
	if err != nil {
		utils.WriteAppError(w, "Failed to list payments", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Payments retrieved", payments)
}

// RefundPayment accepts an optional {"reason": "..."} body.
func (h *PaymentHandler) RefundPayment(w http.ResponseWriter, r *http.Request) {
	var req models.RefundRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			utils.WriteError(w, http.StatusBadRequest, "Invalid request payload", err.Error())
			return
		}
	}

	id := chi.URLParam(r, "id")
	p, err := h.service.RefundPayment(r.Context(), id, req.Reason)
	if err != nil {
		h.logger.Warn("PAYMENT", fmt.Sprintf("Refund of %s failed: %v", id, err))
		utils.WriteAppError(w, "Refund failed", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Payment refunded", p)
}

// Webhook is the processor's callback endpoint. It answers 200 for every
// notification that passed verification.
func (h *PaymentHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBytes))
	if err != nil {
		h.logger.Error("WEBHOOK", fmt.Sprintf("Failed to read webhook payload: %v", err))
		utils.WriteError(w, http.StatusBadRequest, "Invalid webhook payload", "payload could not be read")
		return
	}

	err = h.service.HandleNotification(r.Context(), payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		var whErr *payment.WebhookError
		if errors.As(err, &whErr) {
			utils.WriteError(w, whErr.StatusCode, whErr.PublicError, whErr.Category)
			return
		}
		utils.WriteAppError(w, "Webhook processing error", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, map[string]bool{"received": true})
}
