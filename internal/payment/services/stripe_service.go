package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
	"github.com/stripe/stripe-go/v82/webhook"

	"ms-vitotrips/internal/config"
	"ms-vitotrips/internal/logger"
	"ms-vitotrips/internal/payment"
)

var (
	ErrStripeAPIError         = errors.New("stripe API error")
	ErrStripeClientInitFailed = errors.New("failed to initialize Stripe client")
	ErrInvalidNotification    = errors.New("invalid stripe notification")
)

// StripeService is the Stripe-backed payment gateway.
type StripeService struct {
	client        *client.API
	webhookSecret string
	log           *logger.Logger
}

func NewStripeService(cfg config.StripeConfig, log *logger.Logger) (*StripeService, error) {
	if cfg.SecretKey == "" {
		log.Error("STRIPE", "Stripe secret key is not configured")
		return nil, ErrStripeClientInitFailed
	}

	sc := client.New(cfg.SecretKey, nil)
	if sc == nil {
		log.Error("STRIPE", "Failed to initialize Stripe client")
		return nil, ErrStripeClientInitFailed
	}

	log.Info("STRIPE", "Stripe client initialized successfully")
	return &StripeService{
		client:        sc,
		webhookSecret: cfg.WebhookSecret,
		log:           log,
	}, nil
}

func (s *StripeService) CreateIntent(ctx context.Context, req payment.IntentRequest) (*payment.Intent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:      stripe.Int64(req.AmountMinor),
		Currency:    stripe.String(req.Currency),
		Description: stripe.String(req.Description),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	if req.ReceiptEmail != "" {
		params.ReceiptEmail = stripe.String(req.ReceiptEmail)
	}
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}
	params.Context = ctx

	pi, err := s.client.PaymentIntents.New(params)
	if err != nil {
		s.log.Error("STRIPE", fmt.Sprintf("Failed to create payment intent: %v", err))
		return nil, fmt.Errorf("%w: %v", ErrStripeAPIError, err)
	}
	s.log.Info("STRIPE", fmt.Sprintf("Payment intent created: %s (%d %s)", pi.ID, pi.Amount, pi.Currency))
	return toIntent(pi), nil
}

func (s *StripeService) RetrieveIntent(ctx context.Context, intentID string) (*payment.Intent, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx

	pi, err := s.client.PaymentIntents.Get(intentID, params)
	if err != nil {
		s.log.Error("STRIPE", fmt.Sprintf("Failed to retrieve payment intent %s: %v", intentID, err))
		return nil, fmt.Errorf("%w: %v", ErrStripeAPIError, err)
	}
	return toIntent(pi), nil
}

func (s *StripeService) CancelIntent(ctx context.Context, intentID string) error {
	params := &stripe.PaymentIntentCancelParams{
		CancellationReason: stripe.String(string(stripe.PaymentIntentCancellationReasonAbandoned)),
	}
	params.Context = ctx

	if _, err := s.client.PaymentIntents.Cancel(intentID, params); err != nil {
		s.log.Error("STRIPE", fmt.Sprintf("Failed to cancel payment intent %s: %v", intentID, err))
		return fmt.Errorf("%w: %v", ErrStripeAPIError, err)
	}
	s.log.Info("STRIPE", fmt.Sprintf("Payment intent cancelled: %s", intentID))
	return nil
}

// CreateRefund refunds the full captured amount of the intent.
func (s *StripeService) CreateRefund(ctx context.Context, intentID string) (string, error) {
	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(intentID),
	}
	params.Context = ctx

	r, err := s.client.Refunds.New(params)
	if err != nil {
		s.log.Error("STRIPE", fmt.Sprintf("Failed to refund payment intent %s: %v", intentID, err))
		return "", fmt.Errorf("%w: %v", ErrStripeAPIError, err)
	}
	s.log.Info("STRIPE", fmt.Sprintf("Refund %s created for %s (%s)", r.ID, intentID, r.Status))
	return r.ID, nil
}

// intentEventData is the slice of a payment_intent event object we read.
type intentEventData struct {
	ID               string `json:"id"`
	LastPaymentError *struct {
		Message string `json:"message"`
	} `json:"last_payment_error"`
}

func (s *StripeService) ParseNotification(payload []byte, signature string) (*payment.Notification, error) {
	if s.webhookSecret == "" {
		return nil, fmt.Errorf("%w: webhook secret is not configured", ErrInvalidNotification)
	}

	opts := webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true}
	event, err := webhook.ConstructEventWithOptions(payload, signature, s.webhookSecret, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidNotification, err)
	}

	n := &payment.Notification{Type: payment.NotificationType(event.Type)}
	if event.Data == nil || len(event.Data.Raw) == 0 {
		return n, nil
	}

	var data intentEventData
	if err := json.Unmarshal(event.Data.Raw, &data); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidNotification, err)
	}
	n.IntentID = data.ID
	if data.LastPaymentError != nil {
		n.FailureMessage = data.LastPaymentError.Message
	}
	return n, nil
}

func toIntent(pi *stripe.PaymentIntent) *payment.Intent {
	return &payment.Intent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		Status:       payment.IntentStatus(pi.Status),
	}
}
