package payment

import "context"

// IntentStatus mirrors the processor's payment intent lifecycle.
type IntentStatus string

const (
	IntentRequiresPaymentMethod IntentStatus = "requires_payment_method"
	IntentRequiresConfirmation  IntentStatus = "requires_confirmation"
	IntentRequiresAction        IntentStatus = "requires_action"
	IntentProcessing            IntentStatus = "processing"
	IntentSucceeded             IntentStatus = "succeeded"
	IntentCanceled              IntentStatus = "canceled"
)

type NotificationType string

const (
	NotificationSucceeded NotificationType = "payment_intent.succeeded"
	NotificationFailed    NotificationType = "payment_intent.payment_failed"
)

type IntentRequest struct {
	AmountMinor  int64
	Currency     string
	Description  string
	Metadata     map[string]string
	ReceiptEmail string
}

type Intent struct {
	ID           string
	ClientSecret string
	Status       IntentStatus
}

// Notification is a verified processor callback.
type Notification struct {
	Type           NotificationType
	IntentID       string
	FailureMessage string
}

// Gateway is the external payment processor.
type Gateway interface {
	CreateIntent(ctx context.Context, req IntentRequest) (*Intent, error)
	RetrieveIntent(ctx context.Context, intentID string) (*Intent, error)
	CancelIntent(ctx context.Context, intentID string) error
	CreateRefund(ctx context.Context, intentID string) (refundID string, err error)

	// ParseNotification verifies the signature and decodes the payload.
	ParseNotification(payload []byte, signature string) (*Notification, error)
}
