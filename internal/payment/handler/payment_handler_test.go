package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"ms-vitotrips/internal/apperror"
	"ms-vitotrips/internal/logger"
	"ms-vitotrips/internal/models"
	"ms-vitotrips/internal/payment"
	"ms-vitotrips/internal/utils"
)

type MockPaymentService struct {
	mock.Mock
}

func (m *MockPaymentService) CreatePayment(ctx context.Context, req models.CreatePaymentRequest) (*models.CreatePaymentResponse, error) {
	args := m.Called(ctx, req)
	resp, _ := args.Get(0).(*models.CreatePaymentResponse)
	return resp, args.Error(1)
}

func (m *MockPaymentService) RefundPayment(ctx context.Context, paymentID, reason string) (*models.Payment, error) {
	args := m.Called(ctx, paymentID, reason)
	p, _ := args.Get(0).(*models.Payment)
	return p, args.Error(1)
}

func (m *MockPaymentService) GetPayment(ctx context.Context, id string) (*models.Payment, error) {
	args := m.Called(ctx, id)
	p, _ := args.Get(0).(*models.Payment)
	return p, args.Error(1)
}

func (m *MockPaymentService) ListPayments(ctx context.Context) ([]models.Payment, error) {
	args := m.Called(ctx)
	list, _ := args.Get(0).([]models.Payment)
	return list, args.Error(1)
}

func (m *MockPaymentService) ListPaymentsByBooking(ctx context.Context, bookingID string) ([]models.Payment, error) {
	args := m.Called(ctx, bookingID)
	list, _ := args.Get(0).([]models.Payment)
	return list, args.Error(1)
}

func (m *MockPaymentService) HandleNotification(ctx context.Context, payload []byte, signature string) error {
	return m.Called(ctx, payload, signature).Error(0)
}

func setupRouter(svc PaymentService) http.Handler {
	r := chi.NewRouter()
	r.Route("/api/v1/payments", NewPaymentHandler(svc, logger.Nop()).Mount)
	return r
}

func serve(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	req.Header.Set("Stripe-Signature", "t=1,v1=abc")
	h.ServeHTTP(rec, req)
	return rec
}

func TestCreatePaymentEndpoint(t *testing.T) {
	svc := new(MockPaymentService)
	router := setupRouter(svc)

	svc.On("CreatePayment", mock.Anything, models.CreatePaymentRequest{BookingID: "b-1", Amount: 60}).
		Return(&models.CreatePaymentResponse{PaymentID: "p-1", ClientSecret: "cs_1", Status: models.PaymentPending}, nil).Once()

	rec := serve(router, http.MethodPost, "/api/v1/payments", `{"bookingId":"b-1","amount":60}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp struct {
		Success bool                         `json:"success"`
		Data    models.CreatePaymentResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "cs_1", resp.Data.ClientSecret)

	rec = serve(router, http.MethodPost, "/api/v1/payments", `{"bookingId":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	svc.AssertExpectations(t)
}

func TestPaymentErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		code int
	}{
		{"validation", apperror.Validation("amount must be greater than zero"), http.StatusBadRequest},
		{"not found", apperror.NotFound("booking b-9 not found"), http.StatusNotFound},
		{"gateway", apperror.Gateway(errors.New("stripe down"), "payment processing failed"), http.StatusBadRequest},
		{"conflict", apperror.Conflict("booking is being updated"), http.StatusConflict},
		{"internal", errors.New("connection reset"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := new(MockPaymentService)
			svc.On("CreatePayment", mock.Anything, mock.Anything).Return(nil, tc.err).Once()

			rec := serve(setupRouter(svc), http.MethodPost, "/api/v1/payments", `{"bookingId":"b-9","amount":5}`)
			assert.Equal(t, tc.code, rec.Code)

			var body utils.APIResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.False(t, body.Success)
		})
	}
}

func TestRefundEndpoint(t *testing.T) {
	svc := new(MockPaymentService)
	router := setupRouter(svc)

	svc.On("RefundPayment", mock.Anything, "p-1", "changed plans").
		Return(&models.Payment{ID: "p-1", Status: models.PaymentRefunded}, nil).Once()
	svc.On("RefundPayment", mock.Anything, "p-2", "").
		Return(nil, apperror.InvalidState("cannot refund a payment that is not confirmed")).Once()

	rec := serve(router, http.MethodPost, "/api/v1/payments/p-1/refund", `{"reason":"changed plans"}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = serve(router, http.MethodPost, "/api/v1/payments/p-2/refund", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "cannot refund a payment that is not confirmed")
	svc.AssertExpectations(t)
}

func TestReadEndpoints(t *testing.T) {
	svc := new(MockPaymentService)
	router := setupRouter(svc)

	svc.On("ListPayments", mock.Anything).Return([]models.Payment{{ID: "p-1"}, {ID: "p-2"}}, nil).Once()
	svc.On("GetPayment", mock.Anything, "p-1").Return(&models.Payment{ID: "p-1"}, nil).Once()
	svc.On("GetPayment", mock.Anything, "missing").Return(nil, apperror.NotFound("payment missing not found")).Once()
	svc.On("ListPaymentsByBooking", mock.Anything, "b-1").Return([]models.Payment{{ID: "p-1"}}, nil).Once()

	assert.Equal(t, http.StatusOK, serve(router, http.MethodGet, "/api/v1/payments", "").Code)
	assert.Equal(t, http.StatusOK, serve(router, http.MethodGet, "/api/v1/payments/p-1", "").Code)
	assert.Equal(t, http.StatusNotFound, serve(router, http.MethodGet, "/api/v1/payments/missing", "").Code)
	assert.Equal(t, http.StatusOK, serve(router, http.MethodGet, "/api/v1/payments/booking/b-1", "").Code)
	svc.AssertExpectations(t)
}

func TestWebhookEndpoint(t *testing.T) {
	svc := new(MockPaymentService)
	router := setupRouter(svc)

	svc.On("HandleNotification", mock.Anything, []byte(`{"ok":true}`), "t=1,v1=abc").Return(nil).Once()
	svc.On("HandleNotification", mock.Anything, []byte(`{"forged":true}`), "t=1,v1=abc").
		Return(&payment.WebhookError{Category: "validation", StatusCode: http.StatusBadRequest, PublicError: "Invalid webhook signature"}).Once()

	rec := serve(router, http.MethodPost, "/api/v1/payments/webhook", `{"ok":true}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"received":true}`, rec.Body.String())

	rec = serve(router, http.MethodPost, "/api/v1/payments/webhook", `{"forged":true}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Invalid webhook signature")
	svc.AssertExpectations(t)
}
