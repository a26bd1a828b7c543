package payment

import (
	"context"
	"fmt"
	"net/http"
)

// WebhookError is returned when a notification cannot be accepted at all.
// Processing outcomes for accepted notifications never surface as errors.
type WebhookError struct {
	Category      string // "validation" or "processing"
	StatusCode    int
	PublicError   string
	InternalError string
	OriginalErr   error
}

func (e *WebhookError) Error() string {
	return e.InternalError
}

func (e *WebhookError) Unwrap() error {
	return e.OriginalErr
}

// HandleNotification verifies a processor callback and applies it. Unknown
// payments and replayed transitions are logged and acknowledged so the
// processor stops redelivering them.
func (s *PaymentService) HandleNotification(ctx context.Context, payload []byte, signature string) error {
	if len(payload) == 0 {
		return &WebhookError{
			Category:      "validation",
			StatusCode:    http.StatusBadRequest,
			PublicError:   "Invalid webhook payload",
			InternalError: "empty webhook payload",
		}
	}

	n, err := s.gateway.ParseNotification(payload, signature)
	if err != nil {
		s.log.LogSecurity("WEBHOOK_REJECTED", fmt.Sprintf("Notification failed verification: %v", err))
		return &WebhookError{
			Category:      "validation",
			StatusCode:    http.StatusBadRequest,
			PublicError:   "Invalid webhook signature",
			InternalError: fmt.Sprintf("notification verification failed: %v", err),
			OriginalErr:   err,
		}
	}

	s.log.Info("WEBHOOK", fmt.Sprintf("Processing %s for intent %s", n.Type, n.IntentID))

	switch n.Type {
	case NotificationSucceeded:
		_, err = s.ConfirmPayment(ctx, n.IntentID)
	case NotificationFailed:
		reason := n.FailureMessage
		if reason == "" {
			reason = "payment failed at processor"
		}
		_, err = s.FailPayment(ctx, n.IntentID, reason)
	default:
		s.log.Debug("WEBHOOK", fmt.Sprintf("Ignoring notification type %s", n.Type))
		return nil
	}

	if err == nil {
		return nil
	}
	if isBenign(err) {
		s.log.Warn("WEBHOOK", fmt.Sprintf("Acknowledged %s for intent %s without changes: %v", n.Type, n.IntentID, err))
		return nil
	}
	s.log.Error("WEBHOOK", fmt.Sprintf("Failed to apply %s for intent %s: %v", n.Type, n.IntentID, err))
	return &WebhookError{
		Category:      "processing",
		StatusCode:    http.StatusInternalServerError,
		PublicError:   "Webhook processing error",
		InternalError: err.Error(),
		OriginalErr:   err,
	}
}
